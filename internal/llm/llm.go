// Package llm provides text generation over an OpenAI-compatible chat API
// (Gemini or OpenAI) or Anthropic, with timeout and retry.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"

	"github.com/misintel/misintel/internal/resilience"
	"github.com/misintel/misintel/pkg/anthropic"
)

// Providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Defaults per provider.
const (
	GeminiBaseURL         = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultMaxTokens      = 2048
	DefaultTimeout        = 60 * time.Second
)

// ErrNoAPIKey is returned by New when no key is configured.
var ErrNoAPIKey = eris.New("llm: API key not configured")

// Generator submits a prompt and returns the model's raw text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and tunes a provider.
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	Timeout   time.Duration
	MaxTokens int64
	// System, when set, is sent as the system instruction of every request.
	System string
	// Temperature overrides the provider default when non-nil.
	Temperature *float64
	// Attempts is the total number of tries for transient failures.
	Attempts int
	// Backoff is the first retry delay.
	Backoff time.Duration
}

// New builds the configured Generator wrapped with timeout and retry.
func New(cfg Config) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	var inner Generator
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGemini:
		inner = newChat(cfg, orDefault(cfg.BaseURL, GeminiBaseURL), orDefault(cfg.Model, DefaultGeminiModel))
	case ProviderOpenAI:
		inner = newChat(cfg, cfg.BaseURL, orDefault(cfg.Model, DefaultOpenAIModel))
	case ProviderAnthropic:
		var opts []anthropic.Option
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		inner = &Claude{
			client:      anthropic.NewClient(cfg.APIKey, opts...),
			model:       orDefault(cfg.Model, DefaultAnthropicModel),
			maxTokens:   cfg.MaxTokens,
			system:      cfg.System,
			temperature: cfg.Temperature,
		}
	default:
		return nil, eris.Errorf("llm: unknown provider %q", cfg.Provider)
	}

	return &retrying{
		inner:   inner,
		timeout: cfg.Timeout,
		retry: resilience.RetryConfig{
			Attempts:    max(cfg.Attempts, 1),
			Backoff:     cfg.Backoff,
			ShouldRetry: Retryable,
			Service:     "llm",
		},
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

type retrying struct {
	inner   Generator
	timeout time.Duration
	retry   resilience.RetryConfig
}

func (r *retrying) Generate(ctx context.Context, prompt string) (string, error) {
	return resilience.Retry(ctx, r.retry, func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return r.inner.Generate(ctx, prompt)
	})
}

// Retryable reports whether a provider error is worth retrying: rate limits,
// server errors and timeouts.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return resilience.RetryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return resilience.RetryableStatus(reqErr.HTTPStatusCode)
	}
	var sdkErr *sdk.Error
	if errors.As(err, &sdkErr) {
		return resilience.RetryableStatus(sdkErr.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return resilience.IsTransient(err)
}
