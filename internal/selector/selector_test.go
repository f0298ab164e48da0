package selector

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/payrecon-ocr/internal/model"
	"github.com/sells-group/payrecon-ocr/internal/ocr"
)

func TestSelect_Base(t *testing.T) {
	tests := []struct {
		name   string
		meta   model.InputMeta
		vendor ocr.Vendor
		reason string
	}{
		{"pdf", model.InputMeta{IsPDF: true, SizeBytes: 10}, ocr.Vision, ReasonMultiPage},
		{"multi page image", model.InputMeta{Pages: 2, SizeBytes: 10}, ocr.Vision, ReasonMultiPage},
		{"small image", model.InputMeta{SizeBytes: 200_000}, ocr.OCRSpace, ReasonSmallImage},
		{"empty meta", model.InputMeta{}, ocr.OCRSpace, ReasonSmallImage},
		{"small image offline", model.InputMeta{SizeBytes: 999_999, Offline: true}, ocr.OCRSpace, ReasonSmallImage},
		{"large offline", model.InputMeta{SizeBytes: 2_000_000, Offline: true}, ocr.Tesseract, ReasonOffline},
		{"large cheap", model.InputMeta{SizeBytes: 1_000_000, Cheap: true}, ocr.Tesseract, ReasonOffline},
		{"large default", model.InputMeta{SizeBytes: 5_000_000}, ocr.Vision, ReasonDefault},
		{"pdf beats offline", model.InputMeta{IsPDF: true, SizeBytes: 5_000_000, Offline: true}, ocr.Vision, ReasonMultiPage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(NewMemoryCounter(), DefaultThreshold)
			d := s.Select(tt.meta)
			assert.Equal(t, tt.vendor, d.Vendor)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestSelect_Deterministic(t *testing.T) {
	s := New(NewMemoryCounter(), DefaultThreshold)
	meta := model.InputMeta{SizeBytes: 2_000_000, Cheap: true}
	first := s.Select(meta)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Select(meta))
	}
}

func TestSelect_FailoverAfterThreshold(t *testing.T) {
	s := New(NewMemoryCounter(), 3)
	pdf := model.InputMeta{IsPDF: true, Pages: 2}

	for i := 0; i < 3; i++ {
		s.ReportFailure(ocr.Vision)
	}
	d := s.Select(pdf)
	assert.Equal(t, ocr.Vision, d.Vendor, "count equal to threshold does not fail over")

	s.ReportFailure(ocr.Vision)
	d = s.Select(pdf)
	assert.Equal(t, ocr.OCRSpace, d.Vendor)
	assert.Equal(t, "pdf or multi-page; failover after 4 failures", d.Reason)
}

func TestSelect_FailoverWraps(t *testing.T) {
	s := New(NewMemoryCounter(), 0)
	s.ReportFailure(ocr.Tesseract)

	d := s.Select(model.InputMeta{SizeBytes: 2_000_000, Offline: true})
	assert.Equal(t, ocr.Vision, d.Vendor)
	assert.Equal(t, "offline/cheap; failover after 1 failures", d.Reason)
}

func TestSelect_SingleStepFailover(t *testing.T) {
	s := New(NewMemoryCounter(), 0)
	s.ReportFailure(ocr.OCRSpace)
	s.ReportFailure(ocr.Tesseract)

	d := s.Select(model.InputMeta{SizeBytes: 10})
	assert.Equal(t, ocr.Tesseract, d.Vendor, "only the base choice's counter is consulted")
}

func TestNew_NegativeThreshold(t *testing.T) {
	s := New(NewMemoryCounter(), -1)
	assert.Equal(t, DefaultThreshold, s.threshold)
}

func TestReportFailure_Counts(t *testing.T) {
	s := New(NewMemoryCounter(), DefaultThreshold)
	assert.Equal(t, 1, s.ReportFailure(ocr.Vision))
	assert.Equal(t, 2, s.ReportFailure(ocr.Vision))
	assert.Equal(t, 1, s.ReportFailure(ocr.OCRSpace))

	got := s.Failures()
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[ocr.Vision])
	assert.Equal(t, 1, got[ocr.OCRSpace])
	assert.Equal(t, 0, got[ocr.Tesseract])
}

func TestMemoryCounter_Concurrent(t *testing.T) {
	c := NewMemoryCounter()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordFailure(ocr.OCRSpace)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, c.Failures(ocr.OCRSpace))
}
