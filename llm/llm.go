// Package llm generates titles for stored records. Backends are
// best-effort: a store works fine without one, and callers decide when a
// title pass runs.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"
)

var logger = log.WithPrefix("llm")

// ErrUnavailable reports that no generation backend can serve requests,
// because none is configured or the server cannot be reached.
var ErrUnavailable = errors.New("llm: backend unavailable")

// Generator produces a short title for a piece of content.
type Generator interface {
	// GenerateTitle returns a cleaned title of at most ten words.
	GenerateTitle(ctx context.Context, content string) (string, error)

	// Available reports whether the backend can currently serve requests.
	Available(ctx context.Context) bool
}

// previewLimit caps how much content reaches the prompt. Titles key off
// the opening of a record, not its full body.
const previewLimit = 100

// maxTitleWords bounds generated titles.
const maxTitleWords = 10

func titlePrompt(content string) string {
	return "Generate a short, descriptive title (max 10 words) for this content:\n\n" +
		preview(content) +
		"\n\nTitle:"
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLimit {
		return content
	}
	return string(runes[:previewLimit])
}

// cleanTitle normalizes a model reply: surrounding quotes dropped,
// whitespace trimmed, clamped to maxTitleWords.
func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	title = strings.TrimSpace(title)

	words := strings.Fields(title)
	if len(words) > maxTitleWords {
		words = words[:maxTitleWords]
	}
	return strings.Join(words, " ")
}
