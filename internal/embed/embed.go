// Package embed wraps a Genkit embedder with the input-shaping and failure
// semantics the rest of the pipeline relies on: text is trimmed and capped
// before submission, results are dimension-checked, and any failure collapses
// to a "no embedding" outcome so callers can degrade instead of aborting.
package embed

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
)

const (
	// Dimension is the expected embedding width (nomic-embed-text).
	Dimension = 768

	// maxInputRunes caps text submitted to the embedding model. Longer
	// inputs are truncated, not rejected.
	maxInputRunes = 2000

	embedTimeout = 30 * time.Second
)

// Embedder converts text into fixed-width vectors via a Genkit ai.Embedder.
type Embedder struct {
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates an Embedder backed by the given Genkit embedder.
func New(embedder ai.Embedder, logger *slog.Logger) *Embedder {
	return &Embedder{
		embedder: embedder,
		logger:   logger.With("component", "embed"),
	}
}

// SubmitText normalizes raw text for embedding: surrounding whitespace is
// stripped and the result is truncated to the model's input cap. Truncation
// counts runes, not bytes, so multibyte text is never split mid-character.
func SubmitText(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > maxInputRunes {
		return string(runes[:maxInputRunes])
	}
	return text
}

// Embed returns the vector for text, or ok=false if no usable embedding
// could be produced. Model errors, empty responses, and wrong-width vectors
// all report ok=false; the caller decides whether that skips a chunk or
// degrades a search. Failures are logged, never returned.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, bool) {
	prepared := SubmitText(text)
	if prepared == "" {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(prepared, nil),
		},
	})
	if err != nil {
		e.logger.Warn("embedding request failed", "error", err)
		return nil, false
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		e.logger.Warn("embedding response empty")
		return nil, false
	}

	vector := resp.Embeddings[0].Embedding
	if len(vector) != Dimension {
		e.logger.Warn("embedding has unexpected dimension",
			"got", len(vector), "want", Dimension)
		return nil, false
	}

	return vector, true
}
