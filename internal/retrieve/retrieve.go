// Package retrieve assembles prompt context from vector search results.
//
// Retrieval is best-effort by design: a query that cannot be embedded, a
// store that is unreachable, or a collection with no relevant entries all
// produce an empty context block. The conversation proceeds without
// augmentation rather than failing.
package retrieve

import (
	"context"
	"log/slog"
	"strings"

	"github.com/swasthai/swasth/internal/vecstore"
)

const (
	// DefaultKnowledgeLimit is how many knowledge chunks a query pulls in.
	DefaultKnowledgeLimit = 4

	// DefaultMemoryLimit is how many past exchanges a query pulls in.
	DefaultMemoryLimit = 2

	// snippetMaxRunes caps each knowledge snippet inside the context block.
	// Memory entries are short summaries and are never truncated.
	snippetMaxRunes = 400
)

// QueryEmbedder produces a vector for a search query. ok=false means the
// query has no usable embedding.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, bool)
}

// EntrySearcher finds the nearest entries in a collection.
type EntrySearcher interface {
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]vecstore.Hit, error)
}

// Retriever builds context blocks from the knowledge and memory collections.
type Retriever struct {
	embedder QueryEmbedder
	searcher EntrySearcher
	logger   *slog.Logger
}

// New creates a Retriever.
func New(embedder QueryEmbedder, searcher EntrySearcher, logger *slog.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		logger:   logger.With("component", "retrieve"),
	}
}

// Knowledge returns a context block of up to limit knowledge snippets
// relevant to query, separated by blank lines. Each snippet is truncated to
// a fixed rune budget. Returns "" when nothing relevant can be retrieved.
func (r *Retriever) Knowledge(ctx context.Context, query string, limit int) string {
	if limit <= 0 {
		limit = DefaultKnowledgeLimit
	}
	snippets := r.search(ctx, vecstore.CollectionKnowledge, query, limit, snippetMaxRunes)
	return strings.Join(snippets, "\n\n")
}

// Memory returns a context block of up to limit past-exchange summaries
// relevant to query, one per line. Returns "" when nothing relevant can be
// retrieved.
func (r *Retriever) Memory(ctx context.Context, query string, limit int) string {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	snippets := r.search(ctx, vecstore.CollectionMemory, query, limit, 0)
	return strings.Join(snippets, "\n")
}

// search runs an embed-then-search round trip and returns the non-empty
// payload texts, truncated to maxRunes when maxRunes > 0.
func (r *Retriever) search(ctx context.Context, collection, query string, limit, maxRunes int) []string {
	vector, ok := r.embedder.Embed(ctx, query)
	if !ok {
		return nil
	}

	hits, err := r.searcher.Search(ctx, collection, vector, limit)
	if err != nil {
		r.logger.Warn("context search failed", "collection", collection, "error", err)
		return nil
	}

	snippets := make([]string, 0, len(hits))
	for _, hit := range hits {
		text := hit.Payload.Text
		if text == "" {
			continue
		}
		if maxRunes > 0 {
			if runes := []rune(text); len(runes) > maxRunes {
				text = string(runes[:maxRunes])
			}
		}
		snippets = append(snippets, text)
	}
	return snippets
}
