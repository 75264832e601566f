// Package ollama embeds text through a local Ollama server. The MiniLM
// family it is typically pointed at (all-minilm:l6-v2, all-minilm:l12-v2)
// produces 384-dimensional vectors, matching the index default.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// Embedder generates embeddings with a single Ollama model. Pair two of
// these, one per model, for dual-channel indexing.
type Embedder struct {
	client *api.Client
	model  string
	dims   int
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithClient supplies a preconfigured API client, overriding the
// environment-derived default.
func WithClient(client *api.Client) Option {
	return func(e *Embedder) {
		e.client = client
	}
}

// WithBaseURL points the embedder at an explicit server instead of
// OLLAMA_HOST.
func WithBaseURL(rawURL string) Option {
	return func(e *Embedder) {
		if u, err := url.Parse(rawURL); err == nil {
			e.client = api.NewClient(u, http.DefaultClient)
		}
	}
}

// WithDimensions overrides the advertised vector size (default 384).
func WithDimensions(dims int) Option {
	return func(e *Embedder) {
		if dims > 0 {
			e.dims = dims
		}
	}
}

// New builds an embedder for the given model. Without WithClient or
// WithBaseURL the client comes from the environment (OLLAMA_HOST, falling
// back to localhost:11434).
func New(model string, opts ...Option) (*Embedder, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama: model name required")
	}
	e := &Embedder{model: model, dims: 384}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama: client from environment: %w", err)
		}
		e.client = client
	}
	return e, nil
}

// Embed returns the model's embedding for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: embed with %s: %w", e.model, err)
	}
	if len(resp.Embeddings) != 1 {
		return nil, fmt.Errorf("ollama: embed with %s: got %d embeddings for one input", e.model, len(resp.Embeddings))
	}
	return resp.Embeddings[0], nil
}

// EmbedBatch embeds texts in a single request; Ollama batches natively.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: embed batch with %s: %w", e.model, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: embed batch with %s: got %d embeddings for %d inputs", e.model, len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// Dimensions reports the configured vector size.
func (e *Embedder) Dimensions() int {
	return e.dims
}
