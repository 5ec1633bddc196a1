package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/misintel/misintel/pkg/anthropic"
)

// Claude generates through the Anthropic messages API.
type Claude struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	system      string
	temperature *float64
}

func (c *Claude) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      c.system,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.Log(c.model)

	text := resp.Text()
	if text == "" {
		return "", eris.New("llm: empty anthropic response")
	}
	return text, nil
}
