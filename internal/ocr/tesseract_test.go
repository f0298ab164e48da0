package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/payrecon-ocr/internal/config"
)

type fakeEngine struct {
	langs    []string
	image    []byte
	text     string
	imageErr error
	textErr  error
	closed   bool
}

func (e *fakeEngine) SetLanguage(langs ...string) error { e.langs = langs; return nil }

func (e *fakeEngine) SetImageFromBytes(data []byte) error {
	e.image = data
	return e.imageErr
}

func (e *fakeEngine) Text() (string, error) { return e.text, e.textErr }

func (e *fakeEngine) Close() error { e.closed = true; return nil }

func factoryFor(e *fakeEngine, dataPath *string) EngineFactory {
	return func(p string) (Engine, error) {
		if dataPath != nil {
			*dataPath = p
		}
		return e, nil
	}
}

func TestTesseract_Recognize(t *testing.T) {
	eng := &fakeEngine{text: "Date: 15/01/2024"}
	var gotPath string
	a := NewTesseractWithEngine(config.TesseractConfig{DataPath: "/usr/share/tessdata"}, factoryFor(eng, &gotPath))

	text, err := a.Recognize(context.Background(), Image{Data: []byte("png")})
	require.NoError(t, err)
	assert.Equal(t, "Date: 15/01/2024", text)
	assert.Equal(t, []string{"eng"}, eng.langs)
	assert.Equal(t, []byte("png"), eng.image)
	assert.Equal(t, "/usr/share/tessdata", gotPath)
	assert.True(t, eng.closed)
	assert.Equal(t, Tesseract, a.Profile().Vendor)
}

func TestTesseract_ReleasesEngineOnFailure(t *testing.T) {
	tests := []struct {
		name string
		eng  *fakeEngine
		want string
	}{
		{"image error", &fakeEngine{imageErr: errors.New("bad image")}, "tesseract load image"},
		{"text error", &fakeEngine{textErr: errors.New("engine crashed")}, "tesseract recognize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewTesseractWithEngine(config.TesseractConfig{Language: "dhv"}, factoryFor(tt.eng, nil))
			_, err := a.Recognize(context.Background(), Image{Data: []byte("x")})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, tt.eng.closed)
			assert.Equal(t, []string{"dhv"}, tt.eng.langs)
		})
	}
}

func TestTesseract_FactoryError(t *testing.T) {
	a := NewTesseractWithEngine(config.TesseractConfig{}, func(string) (Engine, error) {
		return nil, ErrEngineUnavailable
	})
	_, err := a.Recognize(context.Background(), Image{Data: []byte("x")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEngineUnavailable))
}

func TestTesseract_CanceledContext(t *testing.T) {
	created := false
	a := NewTesseractWithEngine(config.TesseractConfig{}, func(string) (Engine, error) {
		created = true
		return &fakeEngine{}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Recognize(ctx, Image{Data: []byte("x")})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, created)
}
