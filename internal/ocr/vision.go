package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"

	"github.com/sells-group/payrecon-ocr/internal/config"
)

// VisionAdapter calls the Google Cloud Vision images:annotate API.
type VisionAdapter struct {
	hosted
}

// NewVision creates a vision adapter. An empty apiKey is reported on the
// first Recognize call.
func NewVision(apiKey string, cfg config.VendorConfig) *VisionAdapter {
	return &VisionAdapter{hosted: newHosted(Profiles[Vision], apiKey, cfg)}
}

type visionRequest struct {
	Requests []visionImageRequest `json:"requests"`
}

type visionImageRequest struct {
	Image    visionImage     `json:"image"`
	Features []visionFeature `json:"features"`
}

type visionImage struct {
	Content string `json:"content"`
}

type visionFeature struct {
	Type string `json:"type"`
}

type visionResponse struct {
	Responses []struct {
		FullTextAnnotation *struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
	} `json:"responses"`
}

// Recognize sends img for TEXT_DETECTION and returns the full text
// annotation, or "" when the response carries none.
func (a *VisionAdapter) Recognize(ctx context.Context, img Image) (string, error) {
	if a.apiKey == "" {
		return "", eris.Wrap(ErrMissingCredential, "vision requires GOOGLE_VISION_API_KEY")
	}

	body, err := json.Marshal(visionRequest{
		Requests: []visionImageRequest{{
			Image:    visionImage{Content: base64.StdEncoding.EncodeToString(img.Data)},
			Features: []visionFeature{{Type: "TEXT_DETECTION"}},
		}},
	})
	if err != nil {
		return "", eris.Wrap(err, "ocr: marshal vision request")
	}

	u, err := url.Parse(a.endpoint)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: parse vision endpoint %q", a.endpoint)
	}
	q := u.Query()
	q.Set("key", a.apiKey)
	u.RawQuery = q.Encode()

	return a.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, parseVision)
}

func parseVision(body []byte) (string, error) {
	var resp visionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", eris.Wrap(err, "ocr: unmarshal vision response")
	}
	if len(resp.Responses) == 0 || resp.Responses[0].FullTextAnnotation == nil {
		return "", nil
	}
	return resp.Responses[0].FullTextAnnotation.Text, nil
}
