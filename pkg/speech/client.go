// Package speech provides a client for the Google Cloud Speech-to-Text v1
// synchronous recognize endpoint.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client transcribes short audio clips.
type Client interface {
	Recognize(ctx context.Context, audio []byte, mimeType string) (*Transcript, error)
}

// Transcript is the joined recognition result.
type Transcript struct {
	Text       string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
	Words      []Word  `json:"words"`
}

// Word is a recognized word with offsets in seconds.
type Word struct {
	Word       string  `json:"word"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Confidence float64 `json:"confidence"`
}

var encodings = map[string]string{
	"audio/wav":    "LINEAR16",
	"audio/wave":   "LINEAR16",
	"audio/x-wav":  "LINEAR16",
	"audio/webm":   "WEBM_OPUS",
	"audio/ogg":    "OGG_OPUS",
	"audio/mp3":    "MP3",
	"audio/mpeg":   "MP3",
	"audio/mp4":    "MP3",
	"audio/flac":   "FLAC",
	"audio/x-flac": "FLAC",
}

// Encoding maps an audio MIME type to a recognition encoding. Parameters such
// as "codecs=opus" are ignored; unknown types fall back to LINEAR16.
func Encoding(mimeType string) string {
	mt, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(mimeType)), ";")
	if enc, ok := encodings[strings.TrimSpace(mt)]; ok {
		return enc
	}
	return "LINEAR16"
}

type recognitionConfig struct {
	Encoding                   string   `json:"encoding"`
	LanguageCode               string   `json:"languageCode"`
	AlternativeLanguageCodes   []string `json:"alternativeLanguageCodes,omitempty"`
	EnableAutomaticPunctuation bool     `json:"enableAutomaticPunctuation"`
	EnableWordTimeOffsets      bool     `json:"enableWordTimeOffsets"`
	Model                      string   `json:"model"`
	UseEnhanced                bool     `json:"useEnhanced"`
}

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  struct {
		Content string `json:"content"`
	} `json:"audio"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				StartTime  string  `json:"startTime"`
				EndTime    string  `json:"endTime"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
		LanguageCode string `json:"languageCode"`
	} `json:"results"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithLanguages sets the primary and alternative recognition languages.
func WithLanguages(primary string, alternatives ...string) Option {
	return func(c *httpClient) {
		c.language = primary
		c.alternatives = alternatives
	}
}

type httpClient struct {
	apiKey       string
	baseURL      string
	language     string
	alternatives []string
	http         *http.Client
}

// NewClient creates a Speech-to-Text client. Recognition defaults to en-US
// with Hindi, Tamil, Telugu and Marathi as alternatives.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:       apiKey,
		baseURL:      "https://speech.googleapis.com/v1",
		language:     "en-US",
		alternatives: []string{"hi-IN", "ta-IN", "te-IN", "mr-IN"},
		http:         &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Recognize(ctx context.Context, audio []byte, mimeType string) (*Transcript, error) {
	var payload recognizeRequest
	payload.Config = recognitionConfig{
		Encoding:                   Encoding(mimeType),
		LanguageCode:               c.language,
		AlternativeLanguageCodes:   c.alternatives,
		EnableAutomaticPunctuation: true,
		EnableWordTimeOffsets:      true,
		Model:                      "default",
		UseEnhanced:                true,
	}
	payload.Audio.Content = base64.StdEncoding.EncodeToString(audio)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "speech: marshal request")
	}

	endpoint := c.baseURL + "/speech:recognize?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "speech: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "speech: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "speech: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("speech: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out recognizeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, eris.Wrap(err, "speech: unmarshal response")
	}

	t := &Transcript{Language: c.language, Words: []Word{}}
	var parts []string
	for i, r := range out.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if i == 0 {
			t.Confidence = alt.Confidence
			if r.LanguageCode != "" {
				t.Language = r.LanguageCode
			}
		}
		if alt.Transcript != "" {
			parts = append(parts, strings.TrimSpace(alt.Transcript))
		}
		for _, w := range alt.Words {
			t.Words = append(t.Words, Word{
				Word:       w.Word,
				StartTime:  offsetSeconds(w.StartTime),
				EndTime:    offsetSeconds(w.EndTime),
				Confidence: w.Confidence,
			})
		}
	}
	t.Text = strings.Join(parts, " ")
	return t, nil
}

// offsetSeconds parses a protobuf JSON duration such as "1.300s".
func offsetSeconds(s string) float64 {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d.Seconds()
}
