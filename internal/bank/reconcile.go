// Package bank decides how a bank transaction is matched to a payment.
package bank

import (
	"strings"

	"github.com/sells-group/payrecon-ocr/internal/extract"
)

// Transaction is a bank statement line awaiting reconciliation.
type Transaction struct {
	Memo    string `json:"memo,omitempty"`
	OCRText string `json:"ocrText,omitempty"`
}

// Result carries either the memo verbatim or the fields parsed from OCR text.
// Both are empty when the transaction had neither.
type Result struct {
	Memo   string          `json:"memo,omitempty"`
	Parsed *extract.Fields `json:"parsed,omitempty"`
}

// Reconcile prefers a non-blank memo and falls back to extracting fields from
// the OCR text of the attached receipt.
func Reconcile(tx Transaction) Result {
	if strings.TrimSpace(tx.Memo) != "" {
		return Result{Memo: tx.Memo}
	}
	if tx.OCRText != "" {
		fields := extract.Extract(tx.OCRText).Fields
		return Result{Parsed: &fields}
	}
	return Result{}
}
