package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInputKind(t *testing.T) {
	assert.Equal(t, KindURL, ParseInputKind("url"))
	assert.Equal(t, KindImage, ParseInputKind(" IMAGE "))
	assert.Equal(t, KindAudio, ParseInputKind("audio"))
	assert.Equal(t, KindText, ParseInputKind("text"))
	assert.Equal(t, KindText, ParseInputKind(""))
	assert.Equal(t, KindText, ParseInputKind("video"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     AnalysisRequest
		summary string
		reason  string
	}{
		{"empty text", AnalysisRequest{Kind: KindText, Text: "   "}, "No content provided", "Text input is required"},
		{"empty url", AnalysisRequest{Kind: KindURL}, "No URL provided", "URL input is required"},
		{"bad scheme", AnalysisRequest{Kind: KindURL, URL: "ftp://example.com/x"}, "Invalid URL provided", "URL must be an absolute http(s) address"},
		{"relative url", AnalysisRequest{Kind: KindURL, URL: "/news/1"}, "Invalid URL provided", "URL must be an absolute http(s) address"},
		{"no image", AnalysisRequest{Kind: KindImage}, "No image provided", "Image input is required"},
		{"no audio", AnalysisRequest{Kind: KindAudio}, "No audio provided", "Audio input is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			require.Error(t, err)
			var inErr *InputError
			require.ErrorAs(t, err, &inErr)
			assert.Equal(t, tt.summary, inErr.Summary)
			assert.Equal(t, tt.reason, inErr.Reason)
		})
	}
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, AnalysisRequest{Kind: KindText, Text: "claim"}.Validate())
	assert.NoError(t, AnalysisRequest{Kind: KindURL, URL: "https://example.com/a?b=1"}.Validate())
	assert.NoError(t, AnalysisRequest{Kind: KindImage, Image: []byte{0x89}}.Validate())
	assert.NoError(t, AnalysisRequest{Kind: KindAudio, Audio: []byte{1}}.Validate())
}

func TestIsHTTPURL(t *testing.T) {
	assert.True(t, IsHTTPURL("http://example.com"))
	assert.True(t, IsHTTPURL(" https://example.com/x "))
	assert.False(t, IsHTTPURL("example.com"))
	assert.False(t, IsHTTPURL("https://"))
	assert.False(t, IsHTTPURL("javascript:alert(1)"))
}
