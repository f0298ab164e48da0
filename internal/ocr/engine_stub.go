//go:build !tesseract

package ocr

func newEngine(string) (Engine, error) {
	return nil, ErrEngineUnavailable
}
