package memory

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"testing"
)

// batchEmbedder wraps a scriptedEmbedder with an EmbedBatch so tests can
// drive the batched path of embedAll.
type batchEmbedder struct {
	*scriptedEmbedder
	mu         sync.Mutex
	batchCalls int
}

func (b *batchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	b.mu.Lock()
	b.batchCalls++
	b.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := b.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestPairRequiresPrimary(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewPair(nil, nil) did not panic")
		}
	}()
	NewPair(nil, nil)
}

func TestEmbedDualBlankText(t *testing.T) {
	prim := newScriptedEmbedder(4)
	sec := newScriptedEmbedder(6)
	pair := NewPair(prim, sec)

	pv, sv, err := pair.EmbedDual(context.Background(), "  \t\n")
	if err != nil {
		t.Fatalf("EmbedDual: %v", err)
	}
	if len(pv) != 4 || len(sv) != 6 {
		t.Fatalf("dims = %d/%d, want 4/6", len(pv), len(sv))
	}
	for _, x := range pv {
		if x != 0 {
			t.Fatalf("primary vector not zero: %v", pv)
		}
	}
	for _, x := range sv {
		if x != 0 {
			t.Fatalf("secondary vector not zero: %v", sv)
		}
	}
	if prim.callCount() != 0 || sec.callCount() != 0 {
		t.Error("blank text must not reach the models")
	}
}

func TestEmbedDualBothChannels(t *testing.T) {
	prim := newScriptedEmbedder(4)
	sec := newScriptedEmbedder(4)
	prim.script("hello", []float32{1, 0, 0, 0})
	sec.script("hello", []float32{0, 0, 1, 0})

	pv, sv, err := NewPair(prim, sec).EmbedDual(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedDual: %v", err)
	}
	if !reflect.DeepEqual(pv, []float32{1, 0, 0, 0}) {
		t.Errorf("primary = %v", pv)
	}
	if !reflect.DeepEqual(sv, []float32{0, 0, 1, 0}) {
		t.Errorf("secondary = %v", sv)
	}
}

func TestEmbedDualSingleChannel(t *testing.T) {
	prim := newScriptedEmbedder(4)
	prim.script("hello", []float32{1, 0, 0, 0})

	pv, sv, err := NewPair(prim, nil).EmbedDual(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedDual: %v", err)
	}
	if pv == nil {
		t.Error("primary vector missing")
	}
	if sv != nil {
		t.Errorf("secondary = %v, want nil without a second channel", sv)
	}
}

func TestEmbedDualWrapsChannelErrors(t *testing.T) {
	prim := newScriptedEmbedder(4)
	prim.fallback = []float32{1, 0, 0, 0}
	sec := newScriptedEmbedder(4) // no script, no fallback: every call errors

	_, _, err := NewPair(prim, sec).EmbedDual(context.Background(), "hello")
	if err == nil {
		t.Fatal("EmbedDual succeeded, want secondary failure")
	}
	if !strings.Contains(err.Error(), "secondary channel:") {
		t.Errorf("error = %v, want the failing channel named", err)
	}
}

func TestEmbedDualBatchPerText(t *testing.T) {
	prim := newScriptedEmbedder(2)
	prim.script("a", []float32{1, 0})
	prim.script("b", []float32{0, 1})
	pair := NewPair(prim, nil)

	pvs, svs, err := pair.EmbedDualBatch(context.Background(), []string{"a", " ", "b"})
	if err != nil {
		t.Fatalf("EmbedDualBatch: %v", err)
	}
	if svs != nil {
		t.Errorf("secondary = %v, want nil", svs)
	}
	want := [][]float32{{1, 0}, {0, 0}, {0, 1}}
	if !reflect.DeepEqual(pvs, want) {
		t.Errorf("vectors = %v, want %v", pvs, want)
	}
	// Blank entries are zero-filled without a model call.
	if prim.callCount() != 2 {
		t.Errorf("calls = %d, want 2", prim.callCount())
	}
}

func TestEmbedDualBatchUsesBatchEmbedder(t *testing.T) {
	inner := newScriptedEmbedder(2)
	inner.script("a", []float32{1, 0})
	inner.script("b", []float32{0, 1})
	be := &batchEmbedder{scriptedEmbedder: inner}
	pair := NewPair(be, nil)

	pvs, _, err := pair.EmbedDualBatch(context.Background(), []string{"a", "", "b"})
	if err != nil {
		t.Fatalf("EmbedDualBatch: %v", err)
	}
	want := [][]float32{{1, 0}, {0, 0}, {0, 1}}
	if !reflect.DeepEqual(pvs, want) {
		t.Errorf("vectors = %v, want %v", pvs, want)
	}
	if be.batchCalls != 1 {
		t.Errorf("batch calls = %d, want 1", be.batchCalls)
	}
}

func TestEmbedDualBatchAllBlank(t *testing.T) {
	prim := newScriptedEmbedder(3)
	pvs, _, err := NewPair(prim, nil).EmbedDualBatch(context.Background(), []string{"", "   "})
	if err != nil {
		t.Fatalf("EmbedDualBatch: %v", err)
	}
	if len(pvs) != 2 || len(pvs[0]) != 3 || len(pvs[1]) != 3 {
		t.Fatalf("vectors = %v", pvs)
	}
	if prim.callCount() != 0 {
		t.Error("all-blank batch must not reach the model")
	}
}

func TestEmbedDualBatchError(t *testing.T) {
	prim := newScriptedEmbedder(2)
	prim.script("a", []float32{1, 0})
	// "b" is unscripted, so the per-text loop fails partway through.
	_, _, err := NewPair(prim, nil).EmbedDualBatch(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("EmbedDualBatch succeeded, want error")
	}
	if !strings.Contains(err.Error(), "primary channel:") {
		t.Errorf("error = %v", err)
	}

	if got, _, _ := NewPair(prim, nil).EmbedDualBatch(context.Background(), nil); len(got) != 0 {
		t.Errorf("empty input = %v, want empty", got)
	}
}

func TestEmbedDualBatchLengthMismatch(t *testing.T) {
	inner := newScriptedEmbedder(2)
	inner.fallback = []float32{1, 0}
	be := &shortBatchEmbedder{scriptedEmbedder: inner}

	_, _, err := NewPair(be, nil).EmbedDualBatch(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("short batch accepted")
	}
	if !strings.Contains(err.Error(), "2 texts") {
		t.Errorf("error = %v", err)
	}
}

// shortBatchEmbedder drops the last vector to exercise the length check.
type shortBatchEmbedder struct {
	*scriptedEmbedder
}

func (s *shortBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts[:len(texts)-1] {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
