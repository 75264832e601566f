package content

import (
	"encoding/json"
	"fmt"
)

// RenderVersion selects a text-extraction rule set. The rendering of stored
// payloads must stay byte-stable across releases, so rule changes get a new
// version instead of mutating an existing one.
type RenderVersion int

const (
	// RenderV1 renders string payloads as themselves and everything else
	// as two-space-indented JSON with sorted map keys.
	RenderV1 RenderVersion = 1

	// CurrentRenderVersion is the rule set applied to newly written records.
	CurrentRenderVersion = RenderV1
)

// Render derives the plain-text form of v that embeddings and search run on.
func Render(v Value, ver RenderVersion) (string, error) {
	switch ver {
	case RenderV1:
		return renderV1(v)
	default:
		return "", fmt.Errorf("content: unknown render version %d", ver)
	}
}

func renderV1(v Value) (string, error) {
	if v.kind == KindString {
		return v.str, nil
	}
	b, err := json.MarshalIndent(v.Interface(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("content: render: %w", err)
	}
	return string(b), nil
}
