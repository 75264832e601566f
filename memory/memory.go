package memory

import (
	"context"
	"errors"
	"time"

	"github.com/memorizer-ai/memorizer-go/memory/content"
)

// Sentinel errors returned by Store operations. Wrap-aware: branch with
// errors.Is.
var (
	// ErrNotFound reports that the requested record does not exist.
	ErrNotFound = errors.New("memory: not found")

	// ErrInvalidInput reports a request rejected before any mutation.
	ErrInvalidInput = errors.New("memory: invalid input")
)

// RelationType labels a directed edge between two records.
type RelationType string

const (
	RelationRelatedTo   RelationType = "related-to"
	RelationExampleOf   RelationType = "example-of"
	RelationExplains    RelationType = "explains"
	RelationContradicts RelationType = "contradicts"
	RelationDependsOn   RelationType = "depends-on"
	RelationSupersedes  RelationType = "supersedes"
)

// Valid reports whether t is one of the defined relation types.
func (t RelationType) Valid() bool {
	switch t {
	case RelationRelatedTo, RelationExampleOf, RelationExplains,
		RelationContradicts, RelationDependsOn, RelationSupersedes:
		return true
	}
	return false
}

// Record is one stored memory.
//
// Text is always derived from Content through the current render rules and
// is regenerated whenever content changes; the vectors stored in the index
// channels always reflect the current Text.
type Record struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	Source     string        `json:"source"`
	Content    content.Value `json:"content"`
	Text       string        `json:"text"`
	Tags       []string      `json:"tags,omitempty"`
	Confidence float64       `json:"confidence"`
	Title      string        `json:"title,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`

	// Similarity is the blended search score. Populated on search results
	// only, zero otherwise.
	Similarity float64 `json:"similarity,omitempty"`

	// Relationships is populated on demand from the relationship graph;
	// it is never stored with the record.
	Relationships []Relationship `json:"relationships,omitempty"`
}

// Relationship is a directed, typed edge between two records. Edges are
// directed but queried symmetrically: listing relationships of a record
// returns every edge where it is either endpoint.
type Relationship struct {
	ID        string       `json:"id"`
	FromID    string       `json:"from_memory_id"`
	ToID      string       `json:"to_memory_id"`
	Type      RelationType `json:"type"`
	CreatedAt time.Time    `json:"created_at"`
}

// CreateRequest describes a record to store.
type CreateRequest struct {
	// ID is optional; a fresh UUID is assigned when empty. Reusing an
	// existing id overwrites it (last write wins).
	ID string

	Type    string // required
	Source  string // required
	Content content.Value

	Tags       []string
	Confidence *float64 // nil defaults to 1.0
	Title      string

	// Relationships seeds edges from the new record to existing ones.
	// Every target must already exist.
	Relationships []RelationshipSeed
}

// RelationshipSeed is an edge requested at record creation time.
type RelationshipSeed struct {
	ToID string
	Type RelationType
}

// UpdateRequest is a sparse patch: nil fields are left unchanged. Patches
// that change the content payload trigger re-rendering and re-embedding;
// all other patches reuse the stored vectors.
type UpdateRequest struct {
	Type       *string
	Source     *string
	Content    *content.Value
	Tags       *[]string
	Confidence *float64
	Title      *string
}

// SearchRequest parameterizes a blended search.
type SearchRequest struct {
	Query string

	// Limit caps the result count. Non-positive means the configured
	// default; values above the configured maximum are clamped.
	Limit int

	// Tags boost (not filter) records whose tag set intersects them.
	Tags []string

	// Threshold overrides the configured similarity threshold.
	Threshold *float64

	// AllowFallback retries the threshold filter with the configured
	// fallback threshold when nothing passes the active one.
	AllowFallback bool

	// IncludeRelationships populates each result's relationship list.
	IncludeRelationships bool
}

// Stats summarizes the stored corpus.
type Stats struct {
	TotalRecords       int        `json:"total_memories"`
	WithTitles         int        `json:"memories_with_titles"`
	WithoutTitles      int        `json:"memories_without_titles"`
	TotalRelationships int        `json:"total_relationships"`
	UniqueTags         int        `json:"unique_tags"`
	UniqueTypes        int        `json:"unique_types"`
	AvgConfidence      float64    `json:"avg_confidence"`
	OldestRecord       *time.Time `json:"oldest_memory,omitempty"`
	NewestRecord       *time.Time `json:"newest_memory,omitempty"`
}

// Embedder converts text into one embedding channel's vector.
// Implementations: mock.Embedder (testing), ollama.Embedder (served models),
// onnx.Embedder (local inference, build tag onnx), cache.Embedder (wrapper).
type Embedder interface {
	// Embed converts a single text to its embedding vector. It must be
	// deterministic for identical input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// BatchEmbedder is implemented by embedders that can amortize model
// round-trips across many texts. Vectors are returned in input order.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// DualEmbedder produces both channel vectors from the same text.
//
// Blank (empty or whitespace-only) text yields all-zero vectors of each
// channel's dimension instead of an error. A nil secondary vector means the
// secondary channel is not configured.
type DualEmbedder interface {
	EmbedDual(ctx context.Context, text string) (primary, secondary []float32, err error)
	EmbedDualBatch(ctx context.Context, texts []string) (primary, secondary [][]float32, err error)
}

// Hit is one nearest-neighbour result from an index channel, ordered by
// ascending distance.
type Hit struct {
	ID       string
	Metadata map[string]string
	Distance float32
}

// Entry is one listed document's stored metadata.
type Entry struct {
	ID       string
	Metadata map[string]string
}

// Index is one vector index channel. A Store drives one Index per embedding
// channel; both hold the same record ids with channel-specific vectors.
// Implementations: chromem.Index (embedded, optionally persistent).
type Index interface {
	// Upsert writes or overwrites the document stored under id. A nil
	// vector reuses the vector already stored under id; it is an error
	// if none exists.
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string, text string) error

	// Get returns the stored metadata and whether the id exists.
	Get(ctx context.Context, id string) (map[string]string, bool, error)

	// Delete removes the document. Deleting an absent id is a no-op.
	Delete(ctx context.Context, id string) error

	// Query returns the k nearest documents by ascending distance, where
	// distance is 1 - cosine similarity. k larger than the corpus is
	// shrunk, not an error.
	Query(ctx context.Context, vector []float32, k int) ([]Hit, error)

	// List pages stored documents in the index's native iteration order.
	List(ctx context.Context, limit, offset int) ([]Entry, error)

	// Count returns the number of stored documents.
	Count() int

	// Close releases resources.
	Close() error
}
