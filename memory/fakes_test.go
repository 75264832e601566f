package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// fakeIndex is an in-memory Index with brute-force cosine queries. It keeps
// the adapter contract: nil-vector upserts reuse the stored vector, k above
// the corpus size is shrunk, and List follows insertion order.
type fakeIndex struct {
	mu    sync.Mutex
	order []string
	docs  map[string]*fakeDoc
}

type fakeDoc struct {
	vector []float32
	meta   map[string]string
	text   string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string]*fakeDoc)}
}

func (f *fakeIndex) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, exists := f.docs[id]
	if vector == nil {
		if !exists {
			return fmt.Errorf("upsert %s without vector", id)
		}
		vector = doc.vector
	}
	meta2 := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta2[k] = v
	}
	if !exists {
		f.order = append(f.order, id)
	}
	f.docs[id] = &fakeDoc{vector: vector, meta: meta2, text: text}
	return nil
}

func (f *fakeIndex) Get(ctx context.Context, id string) (map[string]string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, false, nil
	}
	return doc.meta, true, nil
}

func (f *fakeIndex) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return nil
	}
	delete(f.docs, id)
	for i, x := range f.order {
		if x == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if k < 1 {
		return nil, nil
	}
	hits := make([]Hit, 0, len(f.order))
	for _, id := range f.order {
		doc := f.docs[id]
		hits = append(hits, Hit{
			ID:       id,
			Metadata: doc.meta,
			Distance: float32(1 - cosine(vector, doc.vector)),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *fakeIndex) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if offset >= len(f.order) || limit < 1 {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.order) {
		end = len(f.order)
	}
	out := make([]Entry, 0, end-offset)
	for _, id := range f.order[offset:end] {
		out = append(out, Entry{ID: id, Metadata: f.docs[id].meta})
	}
	return out, nil
}

func (f *fakeIndex) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

func (f *fakeIndex) Close() error { return nil }

// vectorOf exposes the stored vector for write-path assertions.
func (f *fakeIndex) vectorOf(id string) []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.docs[id]; ok {
		return doc.vector
	}
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// scriptedEmbedder returns pre-assigned vectors per text so score assertions
// are exact. Unscripted text uses the fallback vector when set and errors
// otherwise. Calls are counted for re-embedding assertions.
type scriptedEmbedder struct {
	mu       sync.Mutex
	dims     int
	vectors  map[string][]float32
	fallback []float32
	calls    int
}

func newScriptedEmbedder(dims int) *scriptedEmbedder {
	return &scriptedEmbedder{dims: dims, vectors: make(map[string][]float32)}
}

func (s *scriptedEmbedder) script(text string, vec []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[text] = vec
}

func (s *scriptedEmbedder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	if s.fallback != nil {
		return s.fallback, nil
	}
	return nil, fmt.Errorf("unscripted text %q", text)
}

func (s *scriptedEmbedder) Dimensions() int { return s.dims }

// storeFixture bundles a store with direct handles on its collaborators.
type storeFixture struct {
	store   *Store
	prim    *fakeIndex
	sec     *fakeIndex
	primEmb *scriptedEmbedder
	secEmb  *scriptedEmbedder
}

// newStoreFixture builds a dual-channel store whose embedders fall back to
// fixed vectors, so lifecycle tests need no per-text scripting. Score
// assertions script their own texts instead.
func newStoreFixture(cfg *Config) *storeFixture {
	prim := newFakeIndex()
	sec := newFakeIndex()
	primEmb := newScriptedEmbedder(4)
	primEmb.fallback = []float32{1, 0, 0, 0}
	secEmb := newScriptedEmbedder(4)
	secEmb.fallback = []float32{0, 0, 1, 0}
	return &storeFixture{
		store:   NewStore(prim, sec, NewPair(primEmb, secEmb), nil, cfg),
		prim:    prim,
		sec:     sec,
		primEmb: primEmb,
		secEmb:  secEmb,
	}
}
