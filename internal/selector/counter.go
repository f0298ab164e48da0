package selector

import (
	"sync"

	"github.com/sells-group/payrecon-ocr/internal/ocr"
)

// FailureCounter tracks reported failures per vendor.
type FailureCounter interface {
	RecordFailure(vendor ocr.Vendor) int
	Failures(vendor ocr.Vendor) int
}

// MemoryCounter is a process-local FailureCounter. Counts only grow; they
// reset when the process restarts.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[ocr.Vendor]int
}

// NewMemoryCounter creates an empty MemoryCounter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[ocr.Vendor]int)}
}

// RecordFailure increments the count for vendor.
func (c *MemoryCounter) RecordFailure(vendor ocr.Vendor) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[vendor]++
	return c.counts[vendor]
}

// Failures returns the count for vendor.
func (c *MemoryCounter) Failures(vendor ocr.Vendor) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[vendor]
}
