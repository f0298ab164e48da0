package ocr

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/payrecon-ocr/internal/config"
)

// Vendor names an OCR backend.
type Vendor string

// Supported vendors, in failover order.
const (
	Vision    Vendor = "vision"
	OCRSpace  Vendor = "ocrspace"
	Tesseract Vendor = "tesseract"
)

// Vendors is the fixed failover order.
var Vendors = []Vendor{Vision, OCRSpace, Tesseract}

var (
	// ErrMissingCredential is returned before any network call when a hosted
	// vendor has no API key configured.
	ErrMissingCredential = errors.New("ocr: missing credential")
	// ErrUnknownVendor is returned for vendor names outside Vendors.
	ErrUnknownVendor = errors.New("ocr: unknown vendor")
	// ErrEngineUnavailable is returned when the binary was built without
	// the local tesseract engine.
	ErrEngineUnavailable = errors.New("ocr: tesseract engine not available in this build")
)

// ParseVendor validates a vendor name.
func ParseVendor(name string) (Vendor, error) {
	for _, v := range Vendors {
		if string(v) == name {
			return v, nil
		}
	}
	return "", eris.Wrapf(ErrUnknownVendor, "%q", name)
}

// Next returns the vendor after v in failover order, wrapping around.
func (v Vendor) Next() Vendor {
	for i, cand := range Vendors {
		if cand == v {
			return Vendors[(i+1)%len(Vendors)]
		}
	}
	return Vendors[0]
}

// Profile describes the call behavior of a vendor adapter.
type Profile struct {
	Vendor      Vendor
	Timeout     time.Duration // per attempt; informational for tesseract
	MaxRetries  int
	USDPerImage float64
}

// Profiles holds the built-in adapter profiles.
var Profiles = map[Vendor]Profile{
	Vision:    {Vendor: Vision, Timeout: 10 * time.Second, MaxRetries: 2, USDPerImage: 0.0015},
	OCRSpace:  {Vendor: OCRSpace, Timeout: 20 * time.Second, MaxRetries: 3, USDPerImage: 0.0005},
	Tesseract: {Vendor: Tesseract, Timeout: 30 * time.Second, MaxRetries: 0, USDPerImage: 0},
}

// Image is the payload handed to a recognizer.
type Image struct {
	Data []byte
	MIME string
}

// Recognizer turns an image into raw text.
type Recognizer interface {
	Profile() Profile
	Recognize(ctx context.Context, img Image) (string, error)
}

// New creates the adapter for vendor from config.
func New(cfg config.OCRConfig, vendor Vendor) (Recognizer, error) {
	switch vendor {
	case Vision:
		return NewVision(cfg.Credential(string(Vision)), cfg.Vision), nil
	case OCRSpace:
		return NewOCRSpace(cfg.Credential(string(OCRSpace)), cfg.OCRSpace), nil
	case Tesseract:
		return NewTesseract(cfg.Tesseract), nil
	default:
		return nil, eris.Wrapf(ErrUnknownVendor, "%q", vendor)
	}
}

// Registry holds one adapter per vendor.
type Registry struct {
	adapters map[Vendor]Recognizer
}

// NewRegistry builds adapters for every vendor.
func NewRegistry(cfg config.OCRConfig) (*Registry, error) {
	r := &Registry{adapters: make(map[Vendor]Recognizer, len(Vendors))}
	for _, v := range Vendors {
		a, err := New(cfg, v)
		if err != nil {
			return nil, err
		}
		r.adapters[v] = a
	}
	return r, nil
}

// NewRegistryFrom builds a registry from explicit adapters, keyed by their
// profile vendor.
func NewRegistryFrom(adapters ...Recognizer) *Registry {
	r := &Registry{adapters: make(map[Vendor]Recognizer, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Profile().Vendor] = a
	}
	return r
}

// Get returns the adapter for vendor.
func (r *Registry) Get(vendor Vendor) (Recognizer, error) {
	a, ok := r.adapters[vendor]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownVendor, "%q", vendor)
	}
	return a, nil
}

// Recognize runs the adapter for vendor and records metrics.
func (r *Registry) Recognize(ctx context.Context, vendor Vendor, img Image) (string, error) {
	a, err := r.Get(vendor)
	if err != nil {
		return "", err
	}
	start := time.Now()
	text, err := a.Recognize(ctx, img)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	recognitionOps.WithLabelValues(string(vendor), outcome).Inc()
	recognitionDuration.WithLabelValues(string(vendor)).Observe(time.Since(start).Seconds())
	return text, err
}
