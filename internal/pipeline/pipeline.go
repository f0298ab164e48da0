// Package pipeline runs synchronous recognition: input policy, result cache,
// vendor selection, recognition and field extraction.
package pipeline

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/payrecon-ocr/internal/cache"
	"github.com/sells-group/payrecon-ocr/internal/cost"
	"github.com/sells-group/payrecon-ocr/internal/extract"
	"github.com/sells-group/payrecon-ocr/internal/model"
	"github.com/sells-group/payrecon-ocr/internal/ocr"
	"github.com/sells-group/payrecon-ocr/internal/selector"
)

// Recognizer runs a named vendor. *ocr.Registry satisfies it.
type Recognizer interface {
	Recognize(ctx context.Context, vendor ocr.Vendor, img ocr.Image) (string, error)
}

// Request is one file submitted for recognition.
type Request struct {
	Data     []byte
	Declared string // MIME type claimed by the client, used when sniffing is inconclusive
	Offline  bool
	Cheap    bool
}

// Response is the outcome of Recognize.
type Response struct {
	FileHash string          `json:"file_hash"`
	Result   model.OcrResult `json:"result"`
	Cached   bool            `json:"cached"`
}

// Pipeline wires the OCR stages together.
type Pipeline struct {
	policy     ocr.Policy
	selector   *selector.Selector
	recognizer Recognizer
	cache      *cache.Service
	costs      *cost.Calculator
	now        func() time.Time
}

// New creates a Pipeline.
func New(policy ocr.Policy, sel *selector.Selector, rec Recognizer, c *cache.Service, costs *cost.Calculator) *Pipeline {
	return &Pipeline{
		policy:     policy,
		selector:   sel,
		recognizer: rec,
		cache:      c,
		costs:      costs,
		now:        time.Now,
	}
}

// Recognize returns the OCR result for req, from cache when the same bytes
// were recognized before. Inputs that break the policy are rejected before
// hashing.
func (p *Pipeline) Recognize(ctx context.Context, req Request) (*Response, error) {
	in, err := ocr.Inspect(req.Data, req.Declared)
	if err != nil {
		return nil, err
	}
	in.Meta.Offline = req.Offline
	in.Meta.Cheap = req.Cheap

	if err := p.policy.Check(in); err != nil {
		return nil, err
	}

	fileHash := cache.HashBytes(req.Data)
	hit, cached, err := p.cache.GetOrCompute(ctx, fileHash, func(ctx context.Context) (string, model.OcrResult, error) {
		return p.recognize(ctx, fileHash, in)
	})
	if err != nil {
		return nil, err
	}

	result := hit.Result
	result.Meta = maps.Clone(result.Meta)

	return &Response{FileHash: fileHash, Result: result, Cached: cached}, nil
}

func (p *Pipeline) recognize(ctx context.Context, fileHash string, in ocr.Input) (string, model.OcrResult, error) {
	decision := p.selector.Select(in.Meta)
	log := zap.L().With(
		zap.String("file_hash", fileHash),
		zap.String("vendor", string(decision.Vendor)),
	)

	start := p.now()
	text, err := p.recognizer.Recognize(ctx, decision.Vendor, in.Image)
	if err != nil {
		log.Warn("pipeline: recognition failed", zap.Error(err))
		return "", model.OcrResult{}, eris.Wrapf(err, "pipeline: recognize with %s", decision.Vendor)
	}

	result := BuildResult(text)
	vendor := string(decision.Vendor)
	pages := in.Meta.PageCount()
	maps.Copy(result.Meta, map[string]any{
		"vendor":        vendor,
		"reason":        decision.Reason,
		"file_hash":     fileHash,
		"mime":          in.MIME,
		"pages":         pages,
		"cost_usd":      p.costs.Recognition(vendor, pages),
		"needs_review":  p.policy.NeedsReview(result.Confidence),
		"request_id":    uuid.New().String(),
		"recognized_at": start.UTC().Format(extract.ISOLayout),
		"duration_ms":   p.now().Sub(start).Milliseconds(),
	})

	log.Info("pipeline: recognized",
		zap.Float64("confidence", result.Confidence),
		zap.Int("fields", len(result.Fields)),
	)
	return vendor, result, nil
}

// BuildResult runs field extraction over text and packages it as an
// OcrResult whose confidence is the mean of the field confidences.
func BuildResult(text string) model.OcrResult {
	ex := extract.Extract(text)
	return model.OcrResult{
		Text:       text,
		Fields:     ex.Fields.Map(),
		Confidence: ex.ConfidencePerField.Mean(),
		Meta: map[string]any{
			"confidencePerField": ex.ConfidencePerField,
		},
	}
}
