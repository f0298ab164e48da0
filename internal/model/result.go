package model

import (
	"encoding/json"
	"time"
)

// InputMeta describes an input file for vendor selection.
type InputMeta struct {
	IsPDF     bool  `json:"isPdf,omitempty"`
	Pages     int   `json:"pages,omitempty"`
	SizeBytes int64 `json:"sizeBytes,omitempty"`
	Offline   bool  `json:"offline,omitempty"`
	Cheap     bool  `json:"cheap,omitempty"`
}

// PageCount returns the page count, treating an unset value as a single page.
func (m InputMeta) PageCount() int {
	if m.Pages <= 0 {
		return 1
	}
	return m.Pages
}

// OcrResult is the outcome of one recognition call.
type OcrResult struct {
	Text       string            `json:"text"`
	Fields     map[string]string `json:"fields,omitempty"`
	Confidence float64           `json:"confidence"`
	Meta       map[string]any    `json:"meta"`
}

// CacheEntry is a stored recognition result keyed by the SHA-256 of the file bytes.
type CacheEntry struct {
	ID        string          `json:"id"`
	FileHash  string          `json:"file_hash"`
	Vendor    string          `json:"vendor"`
	Result    json.RawMessage `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
}
