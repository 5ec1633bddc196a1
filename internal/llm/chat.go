package llm

import (
	"context"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Chat generates through an OpenAI-compatible chat completions endpoint.
type Chat struct {
	client      *openai.Client
	model       string
	maxTokens   int
	system      string
	temperature *float64
}

func newChat(c Config, baseURL, model string) *Chat {
	cfg := openai.DefaultConfig(c.APIKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Chat{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   int(c.MaxTokens),
		system:      c.System,
		temperature: c.Temperature,
	}
}

func (c *Chat) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
	}
	if c.system != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.system})
	}
	req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
	if c.temperature != nil {
		req.Temperature = float32(*c.temperature)
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", eris.Wrap(err, "llm: chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", eris.New("llm: chat completion returned no choices")
	}

	zap.L().Debug("llm: chat completion",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}
