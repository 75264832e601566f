package memory

import (
	"context"
	"fmt"
	"time"
)

// Stats streams the corpus (bounded by the configured cap) and derives
// aggregate numbers. Read-only and O(n) over the corpus; keep it off
// request-critical paths.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	recs, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}

	st := &Stats{
		TotalRecords:       len(recs),
		TotalRelationships: s.graph.Count(),
	}
	tags := make(map[string]struct{})
	types := make(map[string]struct{})
	var confidenceSum float64
	var oldest, newest time.Time

	for _, rec := range recs {
		if rec.Title != "" {
			st.WithTitles++
		}
		for _, t := range rec.Tags {
			tags[t] = struct{}{}
		}
		types[rec.Type] = struct{}{}
		confidenceSum += rec.Confidence
		if oldest.IsZero() || rec.CreatedAt.Before(oldest) {
			oldest = rec.CreatedAt
		}
		if newest.IsZero() || rec.CreatedAt.After(newest) {
			newest = rec.CreatedAt
		}
	}

	st.WithoutTitles = st.TotalRecords - st.WithTitles
	st.UniqueTags = len(tags)
	st.UniqueTypes = len(types)
	if st.TotalRecords > 0 {
		st.AvgConfidence = confidenceSum / float64(st.TotalRecords)
		st.OldestRecord = &oldest
		st.NewestRecord = &newest
	}
	return st, nil
}

// listAll decodes up to StatsCap records straight off the primary channel,
// bypassing the List clamp.
func (s *Store) listAll(ctx context.Context) ([]*Record, error) {
	entries, err := s.primary.List(ctx, s.cfg.StatsCap, 0)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	recs := make([]*Record, 0, len(entries))
	for _, e := range entries {
		rec, err := decodeRecord(e.Metadata)
		if err != nil {
			logger.Warn("skipping undecodable record", "id", e.ID, "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
