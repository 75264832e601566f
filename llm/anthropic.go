package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

// AnthropicGenerator titles content through the Anthropic Messages API.
type AnthropicGenerator struct {
	client      *anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// AnthropicOption configures an AnthropicGenerator.
type AnthropicOption func(*AnthropicGenerator)

// WithAnthropicModel overrides the default model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(g *AnthropicGenerator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithAnthropicMaxTokens caps the response size (default 256).
func WithAnthropicMaxTokens(n int64) AnthropicOption {
	return func(g *AnthropicGenerator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithAnthropicTemperature sets sampling temperature (default 0.7).
func WithAnthropicTemperature(t float64) AnthropicOption {
	return func(g *AnthropicGenerator) {
		g.temperature = t
	}
}

// NewAnthropicGenerator wraps an Anthropic client for title generation. A
// nil client yields a generator that reports unavailable.
func NewAnthropicGenerator(client *anthropic.Client, opts ...AnthropicOption) *AnthropicGenerator {
	g := &AnthropicGenerator{
		client:      client,
		model:       "claude-3-5-haiku-latest",
		maxTokens:   256,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateTitle asks the model for a title and cleans the reply.
func (g *AnthropicGenerator) GenerateTitle(ctx context.Context, content string) (string, error) {
	if g.client == nil {
		return "", ErrUnavailable
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   g.maxTokens,
		Temperature: anthropic.Float(g.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(titlePrompt(content))),
		},
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: anthropic: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	title := cleanTitle(text)
	if title == "" {
		return "", fmt.Errorf("llm: anthropic returned an empty title")
	}
	return title, nil
}

// Available reports whether a client is configured. The Messages API has
// no ping; errors surface on the first call instead.
func (g *AnthropicGenerator) Available(ctx context.Context) bool {
	return g.client != nil
}
