// Package mock provides a deterministic embedder for tests and offline
// development. Vectors are derived from a hash of the input, so identical
// text always embeds identically and there is nothing to download.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder generates unit vectors from a text hash. The model name salts
// the hash, so two instances with different names behave like two distinct
// models, one per embedding channel.
type Embedder struct {
	model string
	dims  int
}

// New creates a mock embedder. Non-positive dims defaults to 384 to match
// the all-MiniLM family.
func New(model string, dims int) *Embedder {
	if dims <= 0 {
		dims = 384
	}
	return &Embedder{model: model, dims: dims}
}

// Embed derives a deterministic unit vector from the text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(e.model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.dims)
	for i := range vec {
		// LCG over the hash seed, mapped into [-1, 1].
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

// EmbedBatch embeds each text in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dims
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
