// Package extract parses payment fields out of noisy OCR text.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/payrecon-ocr/internal/digits"
)

// Fields holds the values recovered from a payment receipt. A nil field was
// not found.
type Fields struct {
	Amount        *float64 `json:"amount,omitempty"`
	Currency      *string  `json:"currency,omitempty"`
	Date          *string  `json:"date,omitempty"`
	ReferenceCode *string  `json:"referenceCode,omitempty"`
	BankName      *string  `json:"bankName,omitempty"`
	TransactionID *string  `json:"transactionId,omitempty"`
}

// Confidence holds a score in [0,1] per field.
type Confidence struct {
	Amount        float64 `json:"amount"`
	Currency      float64 `json:"currency"`
	Date          float64 `json:"date"`
	ReferenceCode float64 `json:"referenceCode"`
	BankName      float64 `json:"bankName"`
	TransactionID float64 `json:"transactionId"`
}

// Mean returns the average of the six field confidences.
func (c Confidence) Mean() float64 {
	return (c.Amount + c.Currency + c.Date + c.ReferenceCode + c.BankName + c.TransactionID) / 6
}

// Result is the output of Extract.
type Result struct {
	Fields             Fields     `json:"fields"`
	ConfidencePerField Confidence `json:"confidencePerField"`
}

const (
	confMatch        = 1.0
	confCurrencyCode = 0.8
	confBankName     = 0.9
	confDateUnparsed = 0.5
)

var (
	amountRe       = regexp.MustCompile(`(?i)(?:amount|total)[:\-]?\s*([0-9.,]+)`)
	currencyRe     = regexp.MustCompile(`(?i)(?:currency|cur|curr)[:\-]?\s*([A-Za-z]{3})`)
	currencyCodeRe = regexp.MustCompile(`(?i)(MVR|USD|EUR|GBP)`)
	dateRe         = regexp.MustCompile(`(?i)(?:date)[:\-]?\s*([0-9]{1,2}[/.\-][0-9]{1,2}[/.\-][0-9]{2,4}|[0-9]{4}[/.\-][0-9]{2}[/.\-][0-9]{2}|[0-9]{1,2}\s+[A-Za-z]{3,9}\s+[0-9]{4})`)
	referenceRe    = regexp.MustCompile(`(?i)(?:reference|ref(?:erence)?|memo)[:\-]?\s*([A-Za-z0-9-]+)`)
	bankRe         = regexp.MustCompile(`(?i)([A-Za-z ]+ bank|bank of maldives|BML)`)
	transactionRe  = regexp.MustCompile(`(?i)(?:transaction\s*id|txn\s*id|txid)[:\-]?\s*([A-Za-z0-9-]+)`)
	numberPrefixRe = regexp.MustCompile(`^(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)`)
	dateSepRe      = regexp.MustCompile(`[-.]`)
)

// Extract normalizes digits in text and scans it for each field
// independently. It never fails: a field that does not match is reported
// with confidence 0.
func Extract(text string) Result {
	normalized := digits.Normalize(text)
	var res Result

	if m := amountRe.FindStringSubmatch(normalized); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			res.Fields.Amount = &v
			res.ConfidencePerField.Amount = confMatch
		}
	}

	if m := currencyRe.FindStringSubmatch(normalized); m != nil {
		code := strings.ToUpper(m[1])
		res.Fields.Currency = &code
		res.ConfidencePerField.Currency = confMatch
	} else if m := currencyCodeRe.FindStringSubmatch(normalized); m != nil {
		code := strings.ToUpper(m[1])
		res.Fields.Currency = &code
		res.ConfidencePerField.Currency = confCurrencyCode
	}

	if m := dateRe.FindStringSubmatch(normalized); m != nil {
		if iso, ok := ParseDate(m[1]); ok {
			res.Fields.Date = &iso
			res.ConfidencePerField.Date = confMatch
		} else {
			res.ConfidencePerField.Date = confDateUnparsed
		}
	}

	if m := referenceRe.FindStringSubmatch(normalized); m != nil {
		ref := m[1]
		res.Fields.ReferenceCode = &ref
		res.ConfidencePerField.ReferenceCode = confMatch
	}

	if m := bankRe.FindStringSubmatch(normalized); m != nil {
		bank := strings.TrimSpace(m[1])
		res.Fields.BankName = &bank
		res.ConfidencePerField.BankName = confBankName
	}

	if m := transactionRe.FindStringSubmatch(normalized); m != nil {
		tx := m[1]
		res.Fields.TransactionID = &tx
		res.ConfidencePerField.TransactionID = confMatch
	}

	return res
}

// parseAmount strips thousands separators and parses the longest numeric
// prefix, so "1.234.5" reads as 1.234 and "." is rejected.
func parseAmount(raw string) (float64, bool) {
	prefix := numberPrefixRe.FindString(strings.ReplaceAll(raw, ",", ""))
	if prefix == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var dateLayouts = []string{
	"2006/01/02",
	"2006/1/2",
	"2/1/2006",
	"2/1/06",
	"1/2/2006",
	"1/2/06",
	"2 January 2006",
	"2 Jan 2006",
}

// ParseDate parses a date token matched in receipt text and returns it as an
// ISO-8601 UTC instant with millisecond precision. Day-first layouts are
// tried before month-first ones.
func ParseDate(raw string) (string, bool) {
	cleaned := dateSepRe.ReplaceAllString(strings.TrimSpace(raw), "/")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, cleaned, time.UTC)
		if err == nil {
			return t.Format(ISOLayout), true
		}
	}
	return "", false
}

// ISOLayout is the timestamp format used for extracted dates.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// Map flattens the non-nil fields to strings, keyed by their JSON names.
func (f Fields) Map() map[string]string {
	out := make(map[string]string, 6)
	if f.Amount != nil {
		out["amount"] = strconv.FormatFloat(*f.Amount, 'f', -1, 64)
	}
	if f.Currency != nil {
		out["currency"] = *f.Currency
	}
	if f.Date != nil {
		out["date"] = *f.Date
	}
	if f.ReferenceCode != nil {
		out["referenceCode"] = *f.ReferenceCode
	}
	if f.BankName != nil {
		out["bankName"] = *f.BankName
	}
	if f.TransactionID != nil {
		out["transactionId"] = *f.TransactionID
	}
	return out
}
