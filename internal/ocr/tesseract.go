package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// Tesseract extracts text using the tesseract CLI, feeding the image on stdin.
type Tesseract struct {
	binPath string
	lang    string
}

// NewTesseract creates a Tesseract extractor. If binPath is empty, "tesseract" is used.
func NewTesseract(binPath string) *Tesseract {
	if binPath == "" {
		binPath = "tesseract"
	}
	return &Tesseract{binPath: binPath, lang: "eng"}
}

// ExtractImage runs `tesseract stdin stdout` and returns the trimmed text.
func (t *Tesseract) ExtractImage(ctx context.Context, image []byte, _ string) (string, error) {
	if len(image) == 0 {
		return "", eris.New("ocr: empty image")
	}
	cmd := exec.CommandContext(ctx, t.binPath, "stdin", "stdout", "-l", t.lang)
	cmd.Stdin = bytes.NewReader(image)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: tesseract failed: %s", strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
