// Package memrec persists completed exchanges as searchable conversation
// memory. Recording is strictly best-effort: a failed embedding or store
// write drops the memory without surfacing an error, since the reply has
// already been delivered to the user.
package memrec

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/swasthai/swasth/internal/vecstore"
)

// TextEmbedder produces a vector for a memory summary. ok=false means the
// summary cannot be embedded and the memory is dropped.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, bool)
}

// EntryWriter persists an embedded memory entry.
type EntryWriter interface {
	Upsert(ctx context.Context, collection string, id uuid.UUID, vector []float32, payload vecstore.Payload) error
}

// Recorder writes exchange summaries into the memory collection.
type Recorder struct {
	embedder TextEmbedder
	writer   EntryWriter
	logger   *slog.Logger
}

// New creates a Recorder.
func New(embedder TextEmbedder, writer EntryWriter, logger *slog.Logger) *Recorder {
	return &Recorder{
		embedder: embedder,
		writer:   writer,
		logger:   logger.With("component", "memrec"),
	}
}

// Summary renders one completed exchange in the canonical two-line form
// that both recording and retrieval rely on.
func Summary(userMessage, assistantReply string) string {
	return fmt.Sprintf("User asked: %s\nAssistant replied: %s", userMessage, assistantReply)
}

// Record stores the summary of a completed exchange. Failures are logged
// and swallowed; the exchange simply leaves no memory behind.
func (r *Recorder) Record(ctx context.Context, userMessage, assistantReply string) {
	summary := Summary(userMessage, assistantReply)

	vector, ok := r.embedder.Embed(ctx, summary)
	if !ok {
		r.logger.Warn("memory dropped, no embedding")
		return
	}

	err := r.writer.Upsert(ctx, vecstore.CollectionMemory, uuid.New(), vector, vecstore.Payload{
		Text: summary,
	})
	if err != nil {
		r.logger.Warn("memory dropped, store failed", "error", err)
	}
}
