package memory

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/memorizer-ai/memorizer-go/memory/content"
)

var logger = log.WithPrefix("memory")

// Config tunes search blending and listing behaviour.
type Config struct {
	// PrimaryWeight and SecondaryWeight blend the two channel
	// similarities. They are treated as summing to 1.0.
	PrimaryWeight   float64
	SecondaryWeight float64

	// SimilarityThreshold is the default minimum blended score for a
	// search hit.
	SimilarityThreshold float64

	// FallbackThreshold is retried when a search with fallback enabled
	// matches nothing at the active threshold.
	FallbackThreshold float64

	// TagBoost is added to a record's score when its tags intersect the
	// request's tags.
	TagBoost float64

	// SearchLimit is the default result count. SearchMaxLimit caps
	// caller-supplied limits for search and listing.
	SearchLimit    int
	SearchMaxLimit int

	// StatsCap bounds how many records Stats and Scan stream.
	StatsCap int
}

// DefaultConfig mirrors the stock deployment tuning.
var DefaultConfig = Config{
	PrimaryWeight:       0.4,
	SecondaryWeight:     0.6,
	SimilarityThreshold: 0.7,
	FallbackThreshold:   0.6,
	TagBoost:            0.05,
	SearchLimit:         10,
	SearchMaxLimit:      100,
	StatsCap:            10000,
}

// Store owns record lifecycle: validation, text rendering, dual embedding,
// metadata encoding, and the two index channels. It is also the
// verification layer over the relationship graph: endpoints are checked
// here, so the graph itself never re-validates.
type Store struct {
	primary   Index
	secondary Index
	embedder  DualEmbedder
	graph     *Graph
	cfg       Config
}

// NewStore wires a record store over its collaborators. The secondary index
// may be nil for single-channel deployments. A nil graph gets a fresh empty
// one; a nil config uses DefaultConfig.
func NewStore(primary, secondary Index, embedder DualEmbedder, graph *Graph, cfg *Config) *Store {
	if graph == nil {
		graph = NewGraph()
	}
	c := DefaultConfig
	if cfg != nil {
		c = *cfg
	}
	return &Store{
		primary:   primary,
		secondary: secondary,
		embedder:  embedder,
		graph:     graph,
		cfg:       c,
	}
}

// Create validates, renders, embeds, and stores a new record in both index
// channels. Reusing an existing id overwrites it (last write wins).
// Relationship seeds are verified against existing records before anything
// is written.
func (s *Store) Create(ctx context.Context, req CreateRequest) (*Record, error) {
	if err := validateCreate(&req); err != nil {
		return nil, err
	}
	for _, seed := range req.Relationships {
		if !seed.Type.Valid() {
			return nil, fmt.Errorf("%w: relation type %q", ErrInvalidInput, seed.Type)
		}
		_, ok, err := s.primary.Get(ctx, seed.ToID)
		if err != nil {
			return nil, fmt.Errorf("verify relationship target %s: %w", seed.ToID, err)
		}
		if !ok {
			return nil, fmt.Errorf("relationship target %s: %w", seed.ToID, ErrNotFound)
		}
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}
	text, err := content.Render(req.Content, content.CurrentRenderVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	confidence := 1.0
	if req.Confidence != nil {
		confidence = *req.Confidence
	}

	now := time.Now().UTC()
	rec := &Record{
		ID:         id,
		Type:       req.Type,
		Source:     req.Source,
		Content:    req.Content,
		Text:       text,
		Tags:       req.Tags,
		Confidence: confidence,
		Title:      req.Title,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.write(ctx, rec); err != nil {
		return nil, err
	}

	for _, seed := range req.Relationships {
		rel := &Relationship{
			ID:        uuid.New().String(),
			FromID:    id,
			ToID:      seed.ToID,
			Type:      seed.Type,
			CreatedAt: now,
		}
		s.graph.Add(rel)
		rec.Relationships = append(rec.Relationships, *rel)
	}

	logger.Info("memory created", "id", id, "type", rec.Type, "tags", len(rec.Tags))
	return rec, nil
}

// Get returns the record stored under id, decoded from the primary
// channel's metadata with its relationships populated from the graph.
// Returns ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	meta, ok, err := s.primary.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	rec, err := decodeRecord(meta)
	if err != nil {
		return nil, err
	}
	rec.Relationships = s.graph.For(id)
	return rec, nil
}

// Update applies a sparse patch to an existing record and overwrites it in
// place under the same id, so relationships survive and there is no window
// where the record is absent. Content patches re-render the text and
// re-embed both channels; all other patches reuse the stored vectors.
// Returns ErrNotFound when absent.
func (s *Store) Update(ctx context.Context, id string, patch UpdateRequest) (*Record, error) {
	if err := validatePatch(&patch); err != nil {
		return nil, err
	}
	meta, ok, err := s.primary.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	rec, err := decodeRecord(meta)
	if err != nil {
		return nil, err
	}

	contentChanged := false
	if patch.Content != nil {
		text, err := content.Render(*patch.Content, content.CurrentRenderVersion)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		rec.Content = *patch.Content
		contentChanged = text != rec.Text
		rec.Text = text
	}
	if patch.Type != nil {
		rec.Type = *patch.Type
	}
	if patch.Source != nil {
		rec.Source = *patch.Source
	}
	if patch.Tags != nil {
		rec.Tags = *patch.Tags
	}
	if patch.Confidence != nil {
		rec.Confidence = *patch.Confidence
	}
	if patch.Title != nil {
		rec.Title = *patch.Title
	}
	rec.UpdatedAt = time.Now().UTC()

	if contentChanged {
		err = s.write(ctx, rec)
	} else {
		err = s.upsert(ctx, rec, nil, nil)
	}
	if err != nil {
		return nil, err
	}

	rec.Relationships = s.graph.For(id)
	logger.Info("memory updated", "id", id, "reembedded", contentChanged)
	return rec, nil
}

// Delete removes the record from both channels and cascade-deletes every
// relationship naming it as either endpoint. Reports whether a record was
// present; deleting an absent id is not an error.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	_, ok, err := s.primary.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", id, err)
	}
	if !ok {
		return false, nil
	}

	if err := s.primary.Delete(ctx, id); err != nil {
		return false, fmt.Errorf("primary delete %s: %w", id, err)
	}
	if s.secondary != nil {
		if err := s.secondary.Delete(ctx, id); err != nil {
			return false, fmt.Errorf("secondary delete %s: %w", id, err)
		}
	}
	if n := s.graph.RemoveFor(id); n > 0 {
		logger.Info("cascade deleted relationships", "id", id, "count", n)
	}
	logger.Info("memory deleted", "id", id)
	return true, nil
}

// List pages stored records in the primary index's native iteration order.
// Non-positive limits use the configured default; limits above the
// configured maximum are clamped.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*Record, error) {
	limit = s.clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	entries, err := s.primary.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	out := make([]*Record, 0, len(entries))
	for _, e := range entries {
		rec, err := decodeRecord(e.Metadata)
		if err != nil {
			logger.Warn("skipping undecodable record", "id", e.ID, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Reembed regenerates both channel vectors for every stored record with the
// current models, reusing the stored text. The repair path after a model
// upgrade. Returns how many records were rewritten.
func (s *Store) Reembed(ctx context.Context) (int, error) {
	const page = 256
	total := 0
	for offset := 0; ; offset += page {
		entries, err := s.primary.List(ctx, page, offset)
		if err != nil {
			return total, fmt.Errorf("list: %w", err)
		}
		if len(entries) == 0 {
			break
		}

		recs := make([]*Record, 0, len(entries))
		texts := make([]string, 0, len(entries))
		for _, e := range entries {
			rec, err := decodeRecord(e.Metadata)
			if err != nil {
				logger.Warn("skipping undecodable record", "id", e.ID, "error", err)
				continue
			}
			recs = append(recs, rec)
			texts = append(texts, rec.Text)
		}

		prim, sec, err := s.embedder.EmbedDualBatch(ctx, texts)
		if err != nil {
			return total, fmt.Errorf("batch embed: %w", err)
		}
		for i, rec := range recs {
			var sv []float32
			if sec != nil {
				sv = sec[i]
			}
			if err := s.upsert(ctx, rec, prim[i], sv); err != nil {
				return total, err
			}
			total++
		}

		if len(entries) < page {
			break
		}
	}
	logger.Info("reembedded corpus", "count", total)
	return total, nil
}

// CreateRelationship links two existing records. Both endpoints are
// verified here; ErrNotFound names the missing one, ErrInvalidInput an
// unknown relation type.
func (s *Store) CreateRelationship(ctx context.Context, fromID, toID string, typ RelationType) (*Relationship, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: relation type %q", ErrInvalidInput, typ)
	}
	for _, id := range []string{fromID, toID} {
		_, ok, err := s.primary.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", id, err)
		}
		if !ok {
			return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
		}
	}

	rel := &Relationship{
		ID:        uuid.New().String(),
		FromID:    fromID,
		ToID:      toID,
		Type:      typ,
		CreatedAt: time.Now().UTC(),
	}
	s.graph.Add(rel)
	logger.Info("relationship created", "from", fromID, "to", toID, "type", typ)
	return rel, nil
}

// Relationships returns every edge where id is either endpoint.
func (s *Store) Relationships(id string) []Relationship {
	return s.graph.For(id)
}

// DeleteRelationship removes a single edge by its own id, reporting whether
// it existed.
func (s *Store) DeleteRelationship(relID string) bool {
	return s.graph.Remove(relID)
}

// write embeds the record's current text and overwrites both channels.
func (s *Store) write(ctx context.Context, rec *Record) error {
	prim, sec, err := s.embedder.EmbedDual(ctx, rec.Text)
	if err != nil {
		return fmt.Errorf("embed %s: %w", rec.ID, err)
	}
	return s.upsert(ctx, rec, prim, sec)
}

// upsert encodes the record and writes it to both channels. Nil vectors
// reuse whatever each index already stores under the id.
func (s *Store) upsert(ctx context.Context, rec *Record, prim, sec []float32) error {
	meta, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.primary.Upsert(ctx, rec.ID, prim, meta, rec.Text); err != nil {
		return fmt.Errorf("primary upsert %s: %w", rec.ID, err)
	}
	if s.secondary != nil {
		if err := s.secondary.Upsert(ctx, rec.ID, sec, meta, rec.Text); err != nil {
			return fmt.Errorf("secondary upsert %s: %w", rec.ID, err)
		}
	}
	return nil
}

func (s *Store) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.SearchLimit
	}
	if limit > s.cfg.SearchMaxLimit {
		return s.cfg.SearchMaxLimit
	}
	return limit
}

func validateCreate(req *CreateRequest) error {
	if strings.TrimSpace(req.Type) == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Source) == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidInput)
	}
	if req.Confidence != nil {
		if err := validateConfidence(*req.Confidence); err != nil {
			return err
		}
	}
	return validateTags(req.Tags)
}

func validatePatch(p *UpdateRequest) error {
	if p.Type != nil && strings.TrimSpace(*p.Type) == "" {
		return fmt.Errorf("%w: type cannot be blank", ErrInvalidInput)
	}
	if p.Source != nil && strings.TrimSpace(*p.Source) == "" {
		return fmt.Errorf("%w: source cannot be blank", ErrInvalidInput)
	}
	if p.Confidence != nil {
		if err := validateConfidence(*p.Confidence); err != nil {
			return err
		}
	}
	if p.Tags != nil {
		return validateTags(*p.Tags)
	}
	return nil
}

func validateConfidence(c float64) error {
	if math.IsNaN(c) || c < 0 || c > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidInput, c)
	}
	return nil
}

// Tags round-trip through a comma-joined scalar in index metadata, so the
// separator cannot appear inside a tag.
func validateTags(tags []string) error {
	for _, t := range tags {
		if strings.Contains(t, tagSeparator) {
			return fmt.Errorf("%w: tag %q contains %q", ErrInvalidInput, t, tagSeparator)
		}
	}
	return nil
}
