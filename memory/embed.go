package memory

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Pair composes one Embedder per channel into a DualEmbedder. The two
// channels embed the same text concurrently.
//
// Pair owns the blank-text rule: empty or whitespace-only input yields
// all-zero vectors of each channel's dimension without touching the models,
// so degenerate records index cleanly instead of failing.
type Pair struct {
	primary   Embedder
	secondary Embedder
}

// NewPair builds a DualEmbedder from a required primary channel and an
// optional secondary channel (nil disables it).
func NewPair(primary, secondary Embedder) *Pair {
	if primary == nil {
		panic("memory: NewPair requires a primary embedder")
	}
	return &Pair{primary: primary, secondary: secondary}
}

// EmbedDual returns both channel vectors for text. The secondary vector is
// nil when no secondary channel is configured.
func (p *Pair) EmbedDual(ctx context.Context, text string) ([]float32, []float32, error) {
	if strings.TrimSpace(text) == "" {
		var sec []float32
		if p.secondary != nil {
			sec = make([]float32, p.secondary.Dimensions())
		}
		return make([]float32, p.primary.Dimensions()), sec, nil
	}

	var prim, sec []float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := p.primary.Embed(gctx, text)
		if err != nil {
			return fmt.Errorf("primary channel: %w", err)
		}
		prim = v
		return nil
	})
	if p.secondary != nil {
		g.Go(func() error {
			v, err := p.secondary.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("secondary channel: %w", err)
			}
			sec = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return prim, sec, nil
}

// EmbedDualBatch embeds many texts per channel, preserving input order.
// Channels that implement BatchEmbedder get one batched call; others are
// driven text by text. The secondary slice is nil when no secondary channel
// is configured.
func (p *Pair) EmbedDualBatch(ctx context.Context, texts []string) ([][]float32, [][]float32, error) {
	var prim, sec [][]float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := embedAll(gctx, p.primary, texts)
		if err != nil {
			return fmt.Errorf("primary channel: %w", err)
		}
		prim = v
		return nil
	})
	if p.secondary != nil {
		g.Go(func() error {
			v, err := embedAll(gctx, p.secondary, texts)
			if err != nil {
				return fmt.Errorf("secondary channel: %w", err)
			}
			sec = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return prim, sec, nil
}

func embedAll(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var todo []int
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = make([]float32, e.Dimensions())
			continue
		}
		todo = append(todo, i)
	}
	if len(todo) == 0 {
		return out, nil
	}

	if be, ok := e.(BatchEmbedder); ok {
		batch := make([]string, len(todo))
		for j, i := range todo {
			batch[j] = texts[i]
		}
		vecs, err := be.EmbedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("batch embed returned %d vectors for %d texts", len(vecs), len(batch))
		}
		for j, i := range todo {
			out[i] = vecs[j]
		}
		return out, nil
	}

	for _, i := range todo {
		v, err := e.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
