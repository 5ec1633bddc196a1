// Package ocr extracts text from uploaded images.
package ocr

import (
	"context"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
)

// Providers.
const (
	ProviderTesseract = "tesseract"
	ProviderMistral   = "mistral"
)

// Extractor extracts the text printed in an image.
type Extractor interface {
	ExtractImage(ctx context.Context, image []byte, mime string) (string, error)
}

// Config selects an OCR engine.
type Config struct {
	Provider      string
	TesseractPath string
	MistralKey    string
	MistralModel  string
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg Config) (Extractor, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderTesseract, "":
		return NewTesseract(cfg.TesseractPath), nil
	case ProviderMistral:
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// DetectMIME returns mime when set, otherwise the type sniffed from data.
func DetectMIME(data []byte, mime string) string {
	if mime != "" && mime != "application/octet-stream" {
		return mime
	}
	return http.DetectContentType(data)
}
