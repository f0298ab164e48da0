package ocr

import (
	"context"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/payrecon-ocr/internal/config"
	"github.com/sells-group/payrecon-ocr/internal/resilience"
)

// hosted carries what the vision and ocrspace adapters share: endpoint,
// HTTP client, rate limiter and the retry loop.
type hosted struct {
	profile  Profile
	apiKey   string
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

func newHosted(profile Profile, apiKey string, cfg config.VendorConfig) hosted {
	h := hosted{
		profile:  profile,
		apiKey:   apiKey,
		endpoint: cfg.BaseURL,
		client:   &http.Client{},
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return h
}

// Profile returns the adapter profile.
func (h *hosted) Profile() Profile {
	return h.profile
}

// do sends the request produced by build up to MaxRetries+1 times. Each
// attempt gets its own Timeout. Transport errors and 408/429/5xx responses
// are retried immediately; anything else is returned as is.
func (h *hosted) do(ctx context.Context, build func(ctx context.Context) (*http.Request, error), parse func(body []byte) (string, error)) (string, error) {
	name := string(h.profile.Vendor)
	retry := resilience.Immediate(h.profile.MaxRetries)
	retry.OnRetry = resilience.RetryLogger(name, "recognize")

	return resilience.DoVal(ctx, retry, func(ctx context.Context) (string, error) {
		if h.limiter != nil {
			if err := h.limiter.Wait(ctx); err != nil {
				return "", eris.Wrapf(err, "ocr: %s rate limit", name)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, h.profile.Timeout)
		defer cancel()

		req, err := build(attemptCtx)
		if err != nil {
			return "", eris.Wrapf(err, "ocr: create %s request", name)
		}

		resp, err := h.client.Do(req)
		if err != nil {
			return "", resilience.NewTransientError(eris.Wrapf(err, "ocr: %s API call", name), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", resilience.NewTransientError(eris.Wrapf(err, "ocr: read %s response", name), resp.StatusCode)
		}

		if err := resilience.CheckStatus(name, resp.StatusCode, body); err != nil {
			return "", err
		}
		return parse(body)
	})
}
