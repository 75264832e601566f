// Package cache wraps an Embedder with a ristretto-backed vector cache
// keyed by content hash. Embedders are deterministic for identical text, so
// caching is transparent: wrap a channel's embedder and repeated renders
// (re-indexing, repeated queries) skip the model.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/memorizer-ai/memorizer-go/memory"
)

// Config tunes the cache.
type Config struct {
	// MaxVectors caps how many embeddings stay cached (default 8192).
	// Each cached vector costs one unit.
	MaxVectors int64
}

// Embedder decorates another embedder with a vector cache. Each wrapped
// embedder owns its cache, so text-only keys cannot collide across
// channels.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// Wrap builds a caching decorator around inner.
func Wrap(inner memory.Embedder, cfg Config) (*Embedder, error) {
	max := cfg.MaxVectors
	if max <= 0 {
		max = 8192
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: max * 10,
		MaxCost:     max,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Embedder{inner: inner, cache: c}, nil
}

// Embed returns the cached vector for text, or embeds and caches it.
// Callers must treat returned vectors as read-only; cache hits share the
// underlying slice.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := hashKey(text)
	if v, ok := e.cache.Get(key); ok {
		return v.([]float32), nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(key, vec, 1)
	// Set is buffered; wait so the next identical text hits. Embeddings
	// are orders of magnitude slower than this flush.
	e.cache.Wait()
	return vec, nil
}

// EmbedBatch serves what it can from cache and embeds the rest in one inner
// call when the wrapped embedder supports batching.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v, ok := e.cache.Get(hashKey(t)); ok {
			out[i] = v.([]float32)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missIdx) == 0 {
		return out, nil
	}

	var vecs [][]float32
	var err error
	if be, ok := e.inner.(memory.BatchEmbedder); ok {
		vecs, err = be.EmbedBatch(ctx, missTexts)
	} else {
		vecs = make([][]float32, len(missTexts))
		for i, t := range missTexts {
			if vecs[i], err = e.inner.Embed(ctx, t); err != nil {
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("cache: inner embedder returned %d vectors for %d texts", len(vecs), len(missTexts))
	}

	for j, i := range missIdx {
		out[i] = vecs[j]
		e.cache.Set(hashKey(texts[i]), vecs[j], 1)
	}
	e.cache.Wait()
	return out, nil
}

// Dimensions returns the wrapped embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close releases the cache's internal goroutines.
func (e *Embedder) Close() error {
	e.cache.Close()
	return nil
}

func hashKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
