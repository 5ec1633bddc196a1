package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestNewExtractor(t *testing.T) {
	ext, err := NewExtractor(Config{Provider: "tesseract", TesseractPath: "/usr/bin/tesseract"})
	require.NoError(t, err)
	assert.IsType(t, &Tesseract{}, ext)

	ext, err = NewExtractor(Config{})
	require.NoError(t, err)
	assert.IsType(t, &Tesseract{}, ext)

	ext, err = NewExtractor(Config{Provider: "mistral", MistralKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &MistralOCR{}, ext)
}

func TestNewExtractor_MistralMissingKey(t *testing.T) {
	_, err := NewExtractor(Config{Provider: "mistral"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires mistral_key")
}

func TestNewExtractor_UnknownProvider(t *testing.T) {
	_, err := NewExtractor(Config{Provider: "unknown"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "unknown"`)
}

func TestDetectMIME(t *testing.T) {
	assert.Equal(t, "image/jpeg", DetectMIME(pngHeader, "image/jpeg"))
	assert.Equal(t, "image/png", DetectMIME(pngHeader, ""))
	assert.Equal(t, "image/png", DetectMIME(pngHeader, "application/octet-stream"))
}

func TestTesseract_BinPath(t *testing.T) {
	assert.Equal(t, "tesseract", NewTesseract("").binPath)
	assert.Equal(t, "/opt/tesseract", NewTesseract("/opt/tesseract").binPath)
}

func TestTesseract_Success(t *testing.T) {
	fakeBin := filepath.Join(t.TempDir(), "tesseract")
	script := "#!/bin/sh\ncat >/dev/null\necho '  Breaking: moon made of cheese  '\n"
	require.NoError(t, os.WriteFile(fakeBin, []byte(script), 0o755))

	text, err := NewTesseract(fakeBin).ExtractImage(context.Background(), pngHeader, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "Breaking: moon made of cheese", text)
}

func TestTesseract_Failure(t *testing.T) {
	fakeBin := filepath.Join(t.TempDir(), "tesseract")
	script := "#!/bin/sh\necho 'Error in pixReadStream' >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(fakeBin, []byte(script), 0o755))

	_, err := NewTesseract(fakeBin).ExtractImage(context.Background(), pngHeader, "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract failed: Error in pixReadStream")
}

func TestTesseract_BinaryNotFound(t *testing.T) {
	_, err := NewTesseract("/nonexistent/tesseract").ExtractImage(context.Background(), pngHeader, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract failed")
}

func TestExtractImage_Empty(t *testing.T) {
	_, err := NewTesseract("").ExtractImage(context.Background(), nil, "")
	assert.Error(t, err)
	_, err = NewMistralOCR("k", "").ExtractImage(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestMistralOCR_DefaultModel(t *testing.T) {
	m := NewMistralOCR("key", "")
	assert.Equal(t, defaultMistralModel, m.model)
	assert.Equal(t, mistralOCREndpoint, m.endpoint)
	assert.Equal(t, "custom-model", NewMistralOCR("key", "custom-model").model)
}

func mistralServer(t *testing.T, h http.HandlerFunc) *MistralOCR {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &MistralOCR{apiKey: "test-key", model: "test-model", endpoint: srv.URL, client: srv.Client()}
}

func TestMistralOCR_ExtractImage(t *testing.T) {
	m := mistralServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "image_url", req.Document.Type)
		assert.Contains(t, req.Document.ImageURL, "data:image/png;base64,")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mistralOCRResponse{Pages: []mistralOCRPage{ //nolint:errcheck
			{Index: 0, Markdown: "Headline"},
			{Index: 1, Markdown: "Body"},
		}})
	})

	text, err := m.ExtractImage(context.Background(), pngHeader, "")
	require.NoError(t, err)
	assert.Equal(t, "Headline\n\nBody", text)
}

func TestMistralOCR_APIError(t *testing.T) {
	m := mistralServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
	})

	_, err := m.ExtractImage(context.Background(), pngHeader, "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral API returned 401")
}

func TestMistralOCR_MalformedResponse(t *testing.T) {
	m := mistralServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{invalid json`))
	})

	_, err := m.ExtractImage(context.Background(), pngHeader, "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal mistral response")
}

func TestMistralOCR_EmptyPages(t *testing.T) {
	m := mistralServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pages":[]}`))
	})

	text, err := m.ExtractImage(context.Background(), pngHeader, "image/png")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestMistralOCR_RetriesServerError(t *testing.T) {
	calls := 0
	m := mistralServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(mistralOCRResponse{Pages: []mistralOCRPage{ //nolint:errcheck
			{Index: 0, Markdown: "  "},
			{Index: 1, Markdown: "Only page with text"},
		}})
	})

	text, err := m.ExtractImage(context.Background(), pngHeader, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "Only page with text", text)
	assert.Equal(t, 2, calls)
}
