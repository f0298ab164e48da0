// Package selector picks an OCR vendor for an input and fails over away from
// vendors that callers have reported as failing.
package selector

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/payrecon-ocr/internal/model"
	"github.com/sells-group/payrecon-ocr/internal/ocr"
)

// DefaultThreshold is the failure count a vendor may reach before it is
// skipped. Failover happens once the count exceeds it.
const DefaultThreshold = 3

// smallImageBytes is the size below which the cheap hosted vendor is used.
const smallImageBytes = 1_000_000

// Base selection reasons.
const (
	ReasonDefault    = "default"
	ReasonMultiPage  = "pdf or multi-page"
	ReasonSmallImage = "image <1MB"
	ReasonOffline    = "offline/cheap"
)

// Decision is the outcome of a selection.
type Decision struct {
	Vendor ocr.Vendor `json:"vendor"`
	Reason string     `json:"reason"`
}

// Selector chooses vendors. It is safe for concurrent use when its counter is.
type Selector struct {
	counter   FailureCounter
	threshold int
}

// New creates a Selector. A negative threshold falls back to DefaultThreshold.
func New(counter FailureCounter, threshold int) *Selector {
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	return &Selector{counter: counter, threshold: threshold}
}

// Select picks a vendor for meta. It never fails.
func (s *Selector) Select(meta model.InputMeta) Decision {
	vendor, reason := base(meta)

	if failures := s.counter.Failures(vendor); failures > s.threshold {
		next := vendor.Next()
		failovers.WithLabelValues(string(vendor), string(next)).Inc()
		vendor = next
		reason += fmt.Sprintf("; failover after %d failures", failures)
	}

	selections.WithLabelValues(string(vendor)).Inc()
	zap.L().Info("ocr vendor selected", zap.String("vendor", string(vendor)), zap.String("reason", reason))
	return Decision{Vendor: vendor, Reason: reason}
}

// ReportFailure records that vendor failed for a request and returns the
// new count.
func (s *Selector) ReportFailure(vendor ocr.Vendor) int {
	n := s.counter.RecordFailure(vendor)
	failureReports.WithLabelValues(string(vendor)).Inc()
	zap.L().Warn("ocr vendor failure reported", zap.String("vendor", string(vendor)), zap.Int("failures", n))
	return n
}

// Failures returns the current count for every vendor.
func (s *Selector) Failures() map[ocr.Vendor]int {
	out := make(map[ocr.Vendor]int, len(ocr.Vendors))
	for _, v := range ocr.Vendors {
		out[v] = s.counter.Failures(v)
	}
	return out
}

func base(meta model.InputMeta) (ocr.Vendor, string) {
	switch {
	case meta.IsPDF || meta.PageCount() > 1:
		return ocr.Vision, ReasonMultiPage
	case meta.SizeBytes < smallImageBytes:
		return ocr.OCRSpace, ReasonSmallImage
	case meta.Offline || meta.Cheap:
		return ocr.Tesseract, ReasonOffline
	default:
		return ocr.Vision, ReasonDefault
	}
}
