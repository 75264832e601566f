package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaGenerator titles content with a local Ollama model.
type OllamaGenerator struct {
	client      *api.Client
	model       string
	maxTokens   int
	temperature float64
}

// OllamaOption configures an OllamaGenerator.
type OllamaOption func(*OllamaGenerator)

// WithOllamaClient supplies a preconfigured API client.
func WithOllamaClient(client *api.Client) OllamaOption {
	return func(g *OllamaGenerator) {
		g.client = client
	}
}

// WithOllamaBaseURL points the generator at an explicit server instead of
// OLLAMA_HOST.
func WithOllamaBaseURL(rawURL string) OllamaOption {
	return func(g *OllamaGenerator) {
		if u, err := url.Parse(rawURL); err == nil {
			g.client = api.NewClient(u, http.DefaultClient)
		}
	}
}

// WithOllamaMaxTokens caps the response size (default 256).
func WithOllamaMaxTokens(n int) OllamaOption {
	return func(g *OllamaGenerator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithOllamaTemperature sets sampling temperature (default 0.7).
func WithOllamaTemperature(t float64) OllamaOption {
	return func(g *OllamaGenerator) {
		g.temperature = t
	}
}

// NewOllamaGenerator builds a title generator for the given model. Without
// WithOllamaClient or WithOllamaBaseURL the client comes from the
// environment.
func NewOllamaGenerator(model string, opts ...OllamaOption) (*OllamaGenerator, error) {
	if model == "" {
		return nil, fmt.Errorf("llm: ollama model name required")
	}
	g := &OllamaGenerator{
		model:       model,
		maxTokens:   256,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.client == nil {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("llm: ollama client from environment: %w", err)
		}
		g.client = client
	}
	return g, nil
}

// GenerateTitle prompts the model and cleans the reply.
func (g *OllamaGenerator) GenerateTitle(ctx context.Context, content string) (string, error) {
	if g.client == nil {
		return "", ErrUnavailable
	}

	stream := false
	req := &api.GenerateRequest{
		Model:  g.model,
		Prompt: titlePrompt(content),
		Stream: &stream,
		Options: map[string]any{
			"temperature": g.temperature,
			"num_predict": g.maxTokens,
		},
	}

	var reply strings.Builder
	err := g.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		reply.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("llm: ollama generate with %s: %w", g.model, err)
	}

	title := cleanTitle(reply.String())
	if title == "" {
		return "", fmt.Errorf("llm: ollama returned an empty title")
	}
	return title, nil
}

// Available probes the server with a heartbeat.
func (g *OllamaGenerator) Available(ctx context.Context) bool {
	return g.client != nil && g.client.Heartbeat(ctx) == nil
}
