package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memorizer-ai/memorizer-go/memory/content"
)

// citrusFixture is the scoring scenario used across the search tests. Three
// records with hand-picked cosines against the query on each channel:
//
//	          primary  secondary  blended (0.4/0.6)
//	juice       0.90      0.95       0.93
//	pie         0.20      0.10       0.14
//	grapefruit  0.75      0.65       0.69
func citrusFixture(t *testing.T) (*storeFixture, string) {
	t.Helper()
	fx := newStoreFixture(nil)
	fx.primEmb.fallback = nil
	fx.secEmb.fallback = nil

	query := "citrus drinks in the fridge"
	fx.primEmb.script(query, []float32{1, 0, 0, 0})
	fx.secEmb.script(query, []float32{0, 0, 1, 0})

	seed := []struct {
		id   string
		text string
		tags []string
		prim []float32
		sec  []float32
	}{
		{"juice", "orange juice carton", []string{"juice"},
			[]float32{0.9, 0.43588989, 0, 0}, []float32{0, 0, 0.95, 0.31224990}},
		{"pie", "apple pie recipe", []string{"dessert"},
			[]float32{0.2, 0.97979590, 0, 0}, []float32{0, 0, 0.1, 0.99498744}},
		{"grapefruit", "grapefruit tasting notes", []string{"citrus"},
			[]float32{0.75, 0.66143783, 0, 0}, []float32{0, 0, 0.65, 0.75993421}},
	}
	ctx := context.Background()
	for _, s := range seed {
		fx.primEmb.script(s.text, s.prim)
		fx.secEmb.script(s.text, s.sec)
		_, err := fx.store.Create(ctx, CreateRequest{
			ID:      s.id,
			Type:    "note",
			Source:  "test",
			Content: content.String(s.text),
			Tags:    s.tags,
		})
		require.NoError(t, err)
	}
	return fx, query
}

func ids(recs []*Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestSearchBlending(t *testing.T) {
	ctx := context.Background()
	fx, query := citrusFixture(t)

	recs, err := fx.store.Search(ctx, SearchRequest{Query: query})
	require.NoError(t, err)
	require.Equal(t, []string{"juice"}, ids(recs), "only the 0.93 blend clears 0.7")
	require.InDelta(t, 0.93, recs[0].Similarity, 1e-3)
	require.Empty(t, recs[0].Relationships, "relationships are opt-in")
}

func TestSearchTagBoost(t *testing.T) {
	ctx := context.Background()
	fx, query := citrusFixture(t)

	recs, err := fx.store.Search(ctx, SearchRequest{Query: query, Tags: []string{"citrus"}})
	require.NoError(t, err)
	require.Equal(t, []string{"juice", "grapefruit"}, ids(recs),
		"the boost lifts 0.69 to 0.74; juice still outranks it")
	require.InDelta(t, 0.93, recs[0].Similarity, 1e-3, "non-intersecting tags get no boost")
	require.InDelta(t, 0.74, recs[1].Similarity, 1e-3)
}

func TestSearchThresholdOverride(t *testing.T) {
	ctx := context.Background()
	fx, query := citrusFixture(t)

	recs, err := fx.store.Search(ctx, SearchRequest{Query: query, Threshold: floatPtr(0.5)})
	require.NoError(t, err)
	require.Equal(t, []string{"juice", "grapefruit"}, ids(recs), "0.14 stays excluded")

	recs, err = fx.store.Search(ctx, SearchRequest{Query: query, Threshold: floatPtr(0.95)})
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestSearchLimit(t *testing.T) {
	ctx := context.Background()
	fx, query := citrusFixture(t)

	recs, err := fx.store.Search(ctx, SearchRequest{Query: query, Threshold: floatPtr(0.1), Limit: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"juice", "grapefruit"}, ids(recs), "descending order, truncated")
}

func TestSearchFallback(t *testing.T) {
	ctx := context.Background()
	fx := newStoreFixture(nil)
	fx.primEmb.fallback = nil
	fx.secEmb.fallback = nil

	// One record blending to 0.65: below the 0.7 threshold, above 0.6.
	fx.primEmb.script("tea notes", []float32{1, 0, 0, 0})
	fx.secEmb.script("tea notes", []float32{0, 0, 1, 0})
	fx.primEmb.script("herbal query", []float32{0.65, 0.75993421, 0, 0})
	fx.secEmb.script("herbal query", []float32{0, 0, 0.65, 0.75993421})
	_, err := fx.store.Create(ctx, CreateRequest{
		ID: "tea", Type: "note", Source: "test", Content: content.String("tea notes"),
	})
	require.NoError(t, err)

	recs, err := fx.store.Search(ctx, SearchRequest{Query: "herbal query"})
	require.NoError(t, err)
	require.Empty(t, recs, "0.65 misses the default threshold")

	recs, err = fx.store.Search(ctx, SearchRequest{Query: "herbal query", AllowFallback: true})
	require.NoError(t, err)
	require.Equal(t, []string{"tea"}, ids(recs), "fallback refilters the scored set")
	require.InDelta(t, 0.65, recs[0].Similarity, 1e-3)

	// Below even the fallback threshold nothing comes back.
	fx.primEmb.script("weak query", []float32{0.4, 0.91651514, 0, 0})
	fx.secEmb.script("weak query", []float32{0, 0, 0.4, 0.91651514})
	recs, err = fx.store.Search(ctx, SearchRequest{Query: "weak query", AllowFallback: true})
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestSearchSingleChannel(t *testing.T) {
	ctx := context.Background()
	prim := newFakeIndex()
	primEmb := newScriptedEmbedder(4)
	primEmb.script("solo text", []float32{0.9, 0.43588989, 0, 0})
	primEmb.script("solo query", []float32{1, 0, 0, 0})
	store := NewStore(prim, nil, NewPair(primEmb, nil), nil, nil)

	_, err := store.Create(ctx, CreateRequest{
		ID: "solo", Type: "note", Source: "test", Content: content.String("solo text"),
	})
	require.NoError(t, err)

	// With no secondary channel the weighted blend would cap at 0.4;
	// single-channel corpora score on the primary similarity alone.
	recs, err := store.Search(ctx, SearchRequest{Query: "solo query"})
	require.NoError(t, err)
	require.Equal(t, []string{"solo"}, ids(recs))
	require.InDelta(t, 0.9, recs[0].Similarity, 1e-3)
}

func TestSearchBlankQuery(t *testing.T) {
	ctx := context.Background()
	fx, _ := citrusFixture(t)

	recs, err := fx.store.Search(ctx, SearchRequest{Query: "   ", AllowFallback: true})
	require.NoError(t, err)
	require.Empty(t, recs, "a blank query embeds to zero vectors and matches nothing")
	// The blank-text rule short-circuits before the models.
	require.Equal(t, 3, fx.primEmb.callCount(), "creates only")
}

func TestSearchIncludeRelationships(t *testing.T) {
	ctx := context.Background()
	fx, query := citrusFixture(t)
	_, err := fx.store.CreateRelationship(ctx, "juice", "grapefruit", RelationRelatedTo)
	require.NoError(t, err)

	recs, err := fx.store.Search(ctx, SearchRequest{Query: query, IncludeRelationships: true})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Len(t, recs[0].Relationships, 1)
	require.Equal(t, "grapefruit", recs[0].Relationships[0].ToID)
}

func TestSearchStableTieOrder(t *testing.T) {
	ctx := context.Background()
	fx := newStoreFixture(nil)
	fx.primEmb.fallback = nil
	fx.secEmb.fallback = nil

	// Two records with identical vectors on both channels tie exactly;
	// the earlier primary-channel rank must win.
	vecP := []float32{1, 0, 0, 0}
	vecS := []float32{0, 0, 1, 0}
	for _, tc := range []struct{ id, text string }{
		{"first", "twin one"},
		{"second", "twin two"},
	} {
		fx.primEmb.script(tc.text, vecP)
		fx.secEmb.script(tc.text, vecS)
		_, err := fx.store.Create(ctx, CreateRequest{
			ID: tc.id, Type: "note", Source: "test", Content: content.String(tc.text),
		})
		require.NoError(t, err)
	}
	fx.primEmb.script("twin query", vecP)
	fx.secEmb.script("twin query", vecS)

	recs, err := fx.store.Search(ctx, SearchRequest{Query: "twin query"})
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, ids(recs))
}
