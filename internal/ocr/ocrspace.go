package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/payrecon-ocr/internal/config"
)

// OCRSpaceAdapter calls the OCR.space parse/image API.
type OCRSpaceAdapter struct {
	hosted
}

// NewOCRSpace creates an ocrspace adapter. An empty apiKey is reported on
// the first Recognize call.
func NewOCRSpace(apiKey string, cfg config.VendorConfig) *OCRSpaceAdapter {
	return &OCRSpaceAdapter{hosted: newHosted(Profiles[OCRSpace], apiKey, cfg)}
}

type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
	ErrorMessage          any  `json:"ErrorMessage"`
}

// Recognize uploads img as a base64 data URL and returns the first parsed
// result's text, or "" when there is none.
func (a *OCRSpaceAdapter) Recognize(ctx context.Context, img Image) (string, error) {
	if a.apiKey == "" {
		return "", eris.Wrap(ErrMissingCredential, "ocrspace requires OCRSPACE_API_KEY")
	}

	mimeType := img.MIME
	if mimeType == "" {
		mimeType = "image/png"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("base64Image", "data:"+mimeType+";base64,"+base64.StdEncoding.EncodeToString(img.Data)); err != nil {
		return "", eris.Wrap(err, "ocr: write ocrspace form")
	}
	if err := mw.WriteField("language", "eng"); err != nil {
		return "", eris.Wrap(err, "ocr: write ocrspace form")
	}
	if err := mw.Close(); err != nil {
		return "", eris.Wrap(err, "ocr: close ocrspace form")
	}
	body := buf.Bytes()
	contentType := mw.FormDataContentType()

	return a.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("apikey", a.apiKey)
		return req, nil
	}, parseOCRSpace)
}

func parseOCRSpace(body []byte) (string, error) {
	var resp ocrSpaceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", eris.Wrap(err, "ocr: unmarshal ocrspace response")
	}
	if len(resp.ParsedResults) == 0 {
		if resp.IsErroredOnProcessing {
			zap.L().Warn("ocrspace reported a processing error", zap.Any("error_message", resp.ErrorMessage))
		}
		return "", nil
	}
	return resp.ParsedResults[0].ParsedText, nil
}
