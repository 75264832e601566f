// Package chromem adapts a chromem-go collection to the memory.Index
// contract. chromem-go is a pure Go, embedded vector database; one Index
// instance wraps one collection and serves one embedding channel.
package chromem

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	chromem "github.com/philippgille/chromem-go"

	"github.com/memorizer-ai/memorizer-go/memory"
)

var logger = log.WithPrefix("chromem")

// Config describes one channel index.
type Config struct {
	// Name is the collection name, unique per channel.
	Name string

	// Dimensions is the vector size this channel stores (default 384).
	Dimensions int

	// Path persists the collection under this directory when non-empty;
	// empty keeps everything in memory. Channels must not share a path.
	Path string

	// Compress gzips persisted documents. Only meaningful with Path.
	Compress bool
}

// Index wraps one chromem collection. chromem has no listing API, so the
// adapter tracks insertion order itself; opening a persisted collection
// rebuilds that bookkeeping with a full-corpus probe query.
type Index struct {
	col  *chromem.Collection
	dims int

	mu     sync.RWMutex
	order  []string
	member map[string]struct{}
}

// New opens the collection described by cfg, loading persisted state when
// cfg.Path is set. The context bounds the reload pass.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("chromem: collection name is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}

	var db *chromem.DB
	var err error
	if cfg.Path != "" {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open persistent db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	// Embeddings are always provided explicitly, so no embedding func
	// and the default cosine distance.
	col, err := db.GetOrCreateCollection(cfg.Name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", cfg.Name, err)
	}

	idx := &Index{
		col:    col,
		dims:   cfg.Dimensions,
		member: make(map[string]struct{}),
	}
	if err := idx.reload(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// reload restores iteration-order bookkeeping for documents already in the
// collection. chromem cannot enumerate documents, so the whole corpus is
// pulled with one probe query and ordered by stored creation time.
func (x *Index) reload(ctx context.Context) error {
	n := x.col.Count()
	if n == 0 {
		return nil
	}

	probe := make([]float32, x.dims)
	probe[0] = 1
	results, err := x.col.QueryEmbedding(ctx, probe, n, nil, nil)
	if err != nil {
		return fmt.Errorf("reload collection: %w", err)
	}

	type doc struct {
		id      string
		created time.Time
	}
	docs := make([]doc, 0, len(results))
	for _, r := range results {
		created, _ := time.Parse(time.RFC3339Nano, r.Metadata[memory.MetaCreatedAt])
		docs = append(docs, doc{id: r.ID, created: created})
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].created.Equal(docs[j].created) {
			return docs[i].created.Before(docs[j].created)
		}
		return docs[i].id < docs[j].id
	})

	for _, d := range docs {
		x.order = append(x.order, d.id)
		x.member[d.id] = struct{}{}
	}
	logger.Info("reloaded persisted collection", "count", n)
	return nil
}

// Upsert writes the document stored under id, overwriting any previous
// version. A nil vector reuses the stored one so metadata can be rewritten
// without re-embedding; that is an error when no document exists yet.
func (x *Index) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string, text string) error {
	if vector == nil {
		existing, err := x.col.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("upsert %s without vector: %w", id, err)
		}
		vector = existing.Embedding
	}

	doc := chromem.Document{
		ID:        id,
		Content:   text,
		Embedding: vector,
		Metadata:  metadata,
	}
	if err := x.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document %s: %w", id, err)
	}

	x.mu.Lock()
	if _, ok := x.member[id]; !ok {
		x.member[id] = struct{}{}
		x.order = append(x.order, id)
	}
	x.mu.Unlock()
	return nil
}

// Get returns the stored metadata and whether the id exists.
func (x *Index) Get(ctx context.Context, id string) (map[string]string, bool, error) {
	x.mu.RLock()
	_, ok := x.member[id]
	x.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	doc, err := x.col.GetByID(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", id, err)
	}
	return doc.Metadata, true, nil
}

// Delete removes the document. Deleting an absent id is a no-op.
func (x *Index) Delete(ctx context.Context, id string) error {
	if err := x.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}

	x.mu.Lock()
	if _, ok := x.member[id]; ok {
		delete(x.member, id)
		for i, oid := range x.order {
			if oid == id {
				x.order = append(x.order[:i], x.order[i+1:]...)
				break
			}
		}
	}
	x.mu.Unlock()
	return nil
}

// Query returns the k nearest documents by ascending distance.
func (x *Index) Query(ctx context.Context, vector []float32, k int) ([]memory.Hit, error) {
	if k < 1 {
		return nil, nil
	}
	if n := x.col.Count(); k > n {
		if n == 0 {
			return nil, nil
		}
		k = n
	}

	// Count is racy under concurrent deletes and chromem rejects
	// nResults above the live size, so shrink and retry.
	var results []chromem.Result
	for current := k; current >= 1; current-- {
		var err error
		results, err = x.col.QueryEmbedding(ctx, vector, current, nil, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if current == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("query: %w", err)
	}

	hits := make([]memory.Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, memory.Hit{
			ID:       r.ID,
			Metadata: r.Metadata,
			Distance: 1 - r.Similarity,
		})
	}
	return hits, nil
}

// List pages documents in insertion order.
func (x *Index) List(ctx context.Context, limit, offset int) ([]memory.Entry, error) {
	if offset < 0 {
		offset = 0
	}

	x.mu.RLock()
	var ids []string
	if offset < len(x.order) {
		end := len(x.order)
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		ids = append(ids, x.order[offset:end]...)
	}
	x.mu.RUnlock()

	entries := make([]memory.Entry, 0, len(ids))
	for _, id := range ids {
		doc, err := x.col.GetByID(ctx, id)
		if err != nil {
			logger.Warn("skipping unreadable document", "id", id, "error", err)
			continue
		}
		entries = append(entries, memory.Entry{ID: id, Metadata: doc.Metadata})
	}
	return entries, nil
}

// Count returns the number of stored documents.
func (x *Index) Count() int {
	return x.col.Count()
}

// Close releases resources. chromem keeps everything in memory (or flushed
// to disk on write), so there is nothing to tear down.
func (x *Index) Close() error {
	return nil
}

// isInsufficientDocsError matches chromem's complaint when nResults exceeds
// the collection size.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
