package memory

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/memorizer-ai/memorizer-go/memory/content"
)

// Index metadata is flat string-to-string, so every record field gets a
// scalar encoding: tags are comma-joined, confidence is formatted with
// strconv, content is its compact canonical JSON, and timestamps use
// RFC 3339 with nanoseconds so update ordering survives the round trip.
const (
	metaID         = "id"
	metaType       = "type"
	metaSource     = "source"
	metaContent    = "content"
	metaText       = "text"
	metaTags       = "tags"
	metaConfidence = "confidence"
	metaTitle      = "title"
	metaCreatedAt  = MetaCreatedAt
	metaUpdatedAt  = "updated_at"
)

// MetaCreatedAt keys the RFC 3339 creation timestamp in index metadata.
// Index adapters may read it to restore iteration order when reopening
// persisted state; everything else in the metadata map is opaque to them.
const MetaCreatedAt = "created_at"

const tagSeparator = ","

func encodeRecord(rec *Record) (map[string]string, error) {
	contentJSON, err := json.Marshal(rec.Content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}

	meta := map[string]string{
		metaID:         rec.ID,
		metaType:       rec.Type,
		metaSource:     rec.Source,
		metaContent:    string(contentJSON),
		metaText:       rec.Text,
		metaConfidence: strconv.FormatFloat(rec.Confidence, 'f', -1, 64),
		metaCreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		metaUpdatedAt:  rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(rec.Tags) > 0 {
		meta[metaTags] = strings.Join(rec.Tags, tagSeparator)
	}
	if rec.Title != "" {
		meta[metaTitle] = rec.Title
	}
	return meta, nil
}

func decodeRecord(meta map[string]string) (*Record, error) {
	id := meta[metaID]
	if id == "" {
		return nil, fmt.Errorf("decode record: missing id")
	}

	rec := &Record{
		ID:     id,
		Type:   meta[metaType],
		Source: meta[metaSource],
		Text:   meta[metaText],
		Title:  meta[metaTitle],
		Tags:   splitTags(meta[metaTags]),
	}

	if raw, ok := meta[metaContent]; ok && raw != "" {
		v, err := content.Parse([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decode record %s: %w", id, err)
		}
		rec.Content = v
	}

	rec.Confidence = 1.0
	if raw, ok := meta[metaConfidence]; ok {
		c, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("decode record %s: confidence %q: %w", id, raw, err)
		}
		rec.Confidence = c
	}

	var err error
	if rec.CreatedAt, err = parseTime(meta[metaCreatedAt]); err != nil {
		return nil, fmt.Errorf("decode record %s: created_at: %w", id, err)
	}
	if rec.UpdatedAt, err = parseTime(meta[metaUpdatedAt]); err != nil {
		return nil, fmt.Errorf("decode record %s: updated_at: %w", id, err)
	}
	return rec, nil
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, tagSeparator)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
