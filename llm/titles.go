package llm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/memorizer-ai/memorizer-go/memory"
)

// RecordStore is the slice of the store the title pass needs.
type RecordStore interface {
	List(ctx context.Context, limit, offset int) ([]*memory.Record, error)
	Update(ctx context.Context, id string, patch memory.UpdateRequest) (*memory.Record, error)
}

// TitleReport summarizes one GenerateMissingTitles pass.
type TitleReport struct {
	Scanned int
	Missing int
	Titled  int
	Failed  int
}

// titleScanLimit bounds how many records one pass considers.
const titleScanLimit = 1000

// GenerateMissingTitles titles every untitled record the store returns,
// batchSize generations at a time (default 10). Title patches do not
// re-embed, so a pass is cheap even on large corpora. Per-record failures
// are logged and counted, not fatal; the returned error covers listing
// failures, an unavailable backend, and context cancellation.
func GenerateMissingTitles(ctx context.Context, store RecordStore, gen Generator, batchSize int) (TitleReport, error) {
	var report TitleReport

	if gen == nil || !gen.Available(ctx) {
		return report, ErrUnavailable
	}
	if batchSize <= 0 {
		batchSize = 10
	}

	records, err := store.List(ctx, titleScanLimit, 0)
	if err != nil {
		return report, fmt.Errorf("llm: list records: %w", err)
	}
	report.Scanned = len(records)

	var untitled []*memory.Record
	for _, rec := range records {
		if rec.Title == "" {
			untitled = append(untitled, rec)
		}
	}
	report.Missing = len(untitled)
	if report.Missing == 0 {
		return report, nil
	}

	logger.Info("generating titles", "missing", report.Missing, "batch_size", batchSize)

	var mu sync.Mutex
	for start := 0; start < len(untitled); start += batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		end := start + batchSize
		if end > len(untitled) {
			end = len(untitled)
		}

		var g errgroup.Group
		for _, rec := range untitled[start:end] {
			rec := rec
			g.Go(func() error {
				title, err := gen.GenerateTitle(ctx, rec.Text)
				if err == nil {
					_, err = store.Update(ctx, rec.ID, memory.UpdateRequest{Title: &title})
				}

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					logger.Warn("title generation failed", "id", rec.ID, "err", err)
					report.Failed++
				} else {
					report.Titled++
				}
				return nil
			})
		}
		g.Wait()
	}

	logger.Info("title pass complete",
		"titled", report.Titled,
		"failed", report.Failed,
		"missing", report.Missing)
	return report, nil
}
