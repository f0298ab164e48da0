package ocr

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"slices"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"

	"github.com/sells-group/payrecon-ocr/internal/config"
	"github.com/sells-group/payrecon-ocr/internal/model"
)

var (
	// ErrUnsupportedMedia is returned when the input MIME type is not allowed.
	ErrUnsupportedMedia = errors.New("ocr: unsupported media type")
	// ErrTooManyPages is returned when a PDF exceeds the page limit.
	ErrTooManyPages = errors.New("ocr: too many pages")
	// ErrUnreadablePDF is returned when a PDF cannot be parsed for its page count.
	ErrUnreadablePDF = errors.New("ocr: unreadable pdf")
)

const mimePDF = "application/pdf"

// Input is an uploaded file with the metadata derived from its bytes.
type Input struct {
	Image
	Meta model.InputMeta
}

// Inspect sniffs the MIME type of data and derives selection metadata. The
// declared type (usually a multipart header) is used only when sniffing is
// inconclusive.
func Inspect(data []byte, declared string) (Input, error) {
	in := Input{
		Image: Image{Data: data, MIME: DetectMIME(data, declared)},
		Meta:  model.InputMeta{SizeBytes: int64(len(data)), Pages: 1},
	}
	if in.MIME == mimePDF {
		pages, err := CountPages(data)
		if err != nil {
			return in, err
		}
		in.Meta.IsPDF = true
		in.Meta.Pages = pages
	}
	return in, nil
}

// DetectMIME returns the media type of data without parameters.
func DetectMIME(data []byte, declared string) string {
	detected := baseType(http.DetectContentType(data))
	if detected != "application/octet-stream" && !strings.HasPrefix(detected, "text/") {
		return detected
	}
	if d := baseType(declared); d != "" {
		return d
	}
	return detected
}

func baseType(v string) string {
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(v, ";", 2)[0]))
	}
	return mt
}

// CountPages returns the number of pages in a PDF document.
func CountPages(data []byte) (pages int, err error) {
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = eris.Wrapf(ErrUnreadablePDF, "%v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, eris.Wrapf(ErrUnreadablePDF, "%v", err)
	}
	n := r.NumPage()
	if n == 0 {
		return 0, eris.Wrap(ErrUnreadablePDF, "pdf has no pages")
	}
	return n, nil
}

// Policy is the input policy shared by every recognition entrypoint.
type Policy struct {
	AllowedMime   []string
	MaxPages      int
	MinConfidence float64
}

// PolicyFrom builds a Policy from config.
func PolicyFrom(cfg config.OCRConfig) Policy {
	return Policy{AllowedMime: cfg.AllowedMime, MaxPages: cfg.MaxPages, MinConfidence: cfg.MinConfidence}
}

// Check rejects inputs with a disallowed MIME type or too many pages.
func (p Policy) Check(in Input) error {
	if len(p.AllowedMime) > 0 && !slices.Contains(p.AllowedMime, in.MIME) {
		return eris.Wrapf(ErrUnsupportedMedia, "%s not in %v", in.MIME, p.AllowedMime)
	}
	if p.MaxPages > 0 && in.Meta.PageCount() > p.MaxPages {
		return eris.Wrapf(ErrTooManyPages, "%d pages, limit %d", in.Meta.PageCount(), p.MaxPages)
	}
	return nil
}

// NeedsReview reports whether an aggregate confidence falls below the
// configured minimum.
func (p Policy) NeedsReview(confidence float64) bool {
	return confidence < p.MinConfidence
}
