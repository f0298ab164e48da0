package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/payrecon-ocr/internal/config"
)

// Engine is the subset of a tesseract client the adapter drives.
type Engine interface {
	SetLanguage(langs ...string) error
	SetImageFromBytes(data []byte) error
	Text() (string, error)
	Close() error
}

// EngineFactory creates a fresh engine. dataPath may be empty.
type EngineFactory func(dataPath string) (Engine, error)

// TesseractAdapter runs the local tesseract engine. It needs no credential
// and is never retried.
type TesseractAdapter struct {
	language  string
	dataPath  string
	newEngine EngineFactory
}

// NewTesseract creates a tesseract adapter backed by the compiled-in engine.
func NewTesseract(cfg config.TesseractConfig) *TesseractAdapter {
	return NewTesseractWithEngine(cfg, newEngine)
}

// NewTesseractWithEngine creates a tesseract adapter with a custom engine factory.
func NewTesseractWithEngine(cfg config.TesseractConfig, factory EngineFactory) *TesseractAdapter {
	lang := cfg.Language
	if lang == "" {
		lang = "eng"
	}
	return &TesseractAdapter{language: lang, dataPath: cfg.DataPath, newEngine: factory}
}

// Profile returns the adapter profile.
func (a *TesseractAdapter) Profile() Profile {
	return Profiles[Tesseract]
}

// Recognize creates an engine, reads img and releases the engine whether or
// not recognition succeeded.
func (a *TesseractAdapter) Recognize(ctx context.Context, img Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	eng, err := a.newEngine(a.dataPath)
	if err != nil {
		return "", eris.Wrap(err, "ocr: create tesseract engine")
	}
	defer eng.Close() //nolint:errcheck

	if err := eng.SetLanguage(a.language); err != nil {
		return "", eris.Wrapf(err, "ocr: tesseract language %s", a.language)
	}
	if err := eng.SetImageFromBytes(img.Data); err != nil {
		return "", eris.Wrap(err, "ocr: tesseract load image")
	}
	text, err := eng.Text()
	if err != nil {
		return "", eris.Wrap(err, "ocr: tesseract recognize")
	}
	return text, nil
}
