package memory

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// candidate accumulates one record's per-channel similarities during search,
// keeping the metadata of whichever channel surfaced it first.
type candidate struct {
	id       string
	meta     map[string]string
	primSim  float64
	secSim   float64
	combined float64
}

// Search runs the blended dual-channel query:
//
//  1. Embed the query on both channels (same generator as storage).
//  2. Query each channel for 2x limit neighbours, concurrently.
//  3. Per channel, similarity = 1 - distance.
//  4. Union by id, blending with the configured channel weights; a channel
//     that did not return the id contributes 0. This penalizes records
//     strongly matched on only one channel, a known approximation, not a
//     bug. Corpora with no secondary channel score on the primary alone.
//  5. Add the tag boost where the record's tags intersect the request's.
//  6. Sort descending (stable: ties keep channel rank order) and drop
//     scores below the active threshold.
//  7. If nothing passed and fallback is allowed, refilter the already
//     scored set with the fallback threshold. No re-query.
//  8. Truncate to limit and decode survivors, attaching the blended score
//     as the record's transient similarity.
func (s *Store) Search(ctx context.Context, req SearchRequest) ([]*Record, error) {
	limit := s.clampLimit(req.Limit)
	threshold := s.cfg.SimilarityThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	primVec, secVec, err := s.embedder.EmbedDual(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	dual := s.secondary != nil && secVec != nil
	fetch := limit * 2

	var primHits, secHits []Hit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := s.primary.Query(gctx, primVec, fetch)
		if err != nil {
			return fmt.Errorf("primary query: %w", err)
		}
		primHits = h
		return nil
	})
	if dual {
		g.Go(func() error {
			h, err := s.secondary.Query(gctx, secVec, fetch)
			if err != nil {
				return fmt.Errorf("secondary query: %w", err)
			}
			secHits = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]*candidate, len(primHits)+len(secHits))
	order := make([]*candidate, 0, len(primHits)+len(secHits))
	for _, h := range primHits {
		c := &candidate{id: h.ID, meta: h.Metadata, primSim: 1 - float64(h.Distance)}
		byID[h.ID] = c
		order = append(order, c)
	}
	for _, h := range secHits {
		if c, ok := byID[h.ID]; ok {
			c.secSim = 1 - float64(h.Distance)
			continue
		}
		c := &candidate{id: h.ID, meta: h.Metadata, secSim: 1 - float64(h.Distance)}
		byID[h.ID] = c
		order = append(order, c)
	}

	for _, c := range order {
		if dual {
			c.combined = s.cfg.PrimaryWeight*c.primSim + s.cfg.SecondaryWeight*c.secSim
		} else {
			c.combined = c.primSim
		}
		if len(req.Tags) > 0 && tagsIntersect(req.Tags, splitTags(c.meta[metaTags])) {
			c.combined += s.cfg.TagBoost
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].combined > order[j].combined
	})

	passed := atThreshold(order, threshold)
	if len(passed) == 0 && req.AllowFallback {
		logger.Info("no results at threshold, trying fallback",
			"threshold", threshold, "fallback", s.cfg.FallbackThreshold)
		passed = atThreshold(order, s.cfg.FallbackThreshold)
	}
	if len(passed) > limit {
		passed = passed[:limit]
	}

	out := make([]*Record, 0, len(passed))
	for _, c := range passed {
		rec, err := decodeRecord(c.meta)
		if err != nil {
			logger.Warn("skipping undecodable hit", "id", c.id, "error", err)
			continue
		}
		rec.Similarity = c.combined
		if req.IncludeRelationships {
			rec.Relationships = s.graph.For(rec.ID)
		}
		out = append(out, rec)
	}

	logger.Info("search complete", "query", truncate(req.Query, 60), "hits", len(out))
	return out, nil
}

func atThreshold(cands []*candidate, threshold float64) []*candidate {
	var out []*candidate
	for _, c := range cands {
		if c.combined >= threshold {
			out = append(out, c)
		}
	}
	return out
}

func tagsIntersect(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
