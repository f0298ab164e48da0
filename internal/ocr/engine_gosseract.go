//go:build tesseract

package ocr

import "github.com/otiai10/gosseract/v2"

func newEngine(dataPath string) (Engine, error) {
	c := gosseract.NewClient()
	if dataPath != "" {
		if err := c.SetTessdataPrefix(dataPath); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}
