package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/misintel/misintel/internal/resilience"
	"github.com/misintel/misintel/pkg/jina"
)

// JinaAdapter reads pages through the Jina reader behind a circuit breaker.
type JinaAdapter struct {
	client  jina.Client
	breaker *resilience.Breaker
}

// NewJinaAdapter wraps client. Three consecutive failures open the breaker for
// a minute, during which the adapter reports itself unsupported.
func NewJinaAdapter(client jina.Client) *JinaAdapter {
	return &JinaAdapter{
		client: client,
		breaker: resilience.NewBreaker("jina", resilience.BreakerConfig{
			FailureThreshold: 3,
			Cooldown:         time.Minute,
		}),
	}
}

func (j *JinaAdapter) Name() string { return "jina" }

// Supports returns false while the breaker is open.
func (j *JinaAdapter) Supports(_ string) bool {
	return j.breaker.State() != resilience.Open
}

// Scrape reads targetURL as plain text.
func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := resilience.Call(ctx, j.breaker, func(ctx context.Context) (*jina.ReadResponse, error) {
		resp, err := j.client.Read(ctx, targetURL, jina.WithFormat("text"))
		if err != nil {
			return nil, err
		}
		if needsFallback(resp) {
			return nil, eris.New("jina: unusable response")
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	text := spaceRe.ReplaceAllString(strings.TrimSpace(resp.Data.Content), " ")
	u := resp.Data.URL
	if u == "" {
		u = targetURL
	}
	return &Result{
		URL:    u,
		Title:  resp.Data.Title,
		Text:   text,
		Source: j.Name(),
	}, nil
}

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"attention required",
}

// needsFallback reports whether a reader response is empty or a challenge page.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}
	if resp.Code != 0 && resp.Code != 200 {
		return true
	}
	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < 100 {
		return true
	}
	if len(content) < 1000 {
		lower := strings.ToLower(content)
		for _, sig := range challengeSignatures {
			if strings.Contains(lower, sig) {
				return true
			}
		}
	}
	return false
}
