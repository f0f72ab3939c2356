package memrec

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/swasthai/swasth/internal/log"
	"github.com/swasthai/swasth/internal/vecstore"
)

type mockEmbedder struct {
	fail     bool
	lastText string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, bool) {
	m.lastText = text
	if m.fail {
		return nil, false
	}
	return []float32{1}, true
}

type mockWriter struct {
	err error

	calls          int
	lastCollection string
	lastPayload    vecstore.Payload
}

func (m *mockWriter) Upsert(_ context.Context, collection string, _ uuid.UUID, _ []float32, payload vecstore.Payload) error {
	m.calls++
	m.lastCollection = collection
	m.lastPayload = payload
	return m.err
}

func TestSummaryFormat(t *testing.T) {
	got := Summary("What helps a sore throat?", "Warm fluids and rest.")
	want := "User asked: What helps a sore throat?\nAssistant replied: Warm fluids and rest."
	if got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestRecordStoresSummary(t *testing.T) {
	embedder := &mockEmbedder{}
	writer := &mockWriter{}
	r := New(embedder, writer, log.NewNop())

	r.Record(context.Background(), "question", "answer")

	if writer.calls != 1 {
		t.Fatalf("Upsert called %d times, want 1", writer.calls)
	}
	if writer.lastCollection != vecstore.CollectionMemory {
		t.Errorf("collection = %q, want %q", writer.lastCollection, vecstore.CollectionMemory)
	}
	want := Summary("question", "answer")
	if writer.lastPayload.Text != want {
		t.Errorf("payload text = %q, want %q", writer.lastPayload.Text, want)
	}
	if embedder.lastText != want {
		t.Errorf("embedded text = %q, want %q", embedder.lastText, want)
	}
}

func TestRecordSkipsStoreOnEmbedFailure(t *testing.T) {
	writer := &mockWriter{}
	r := New(&mockEmbedder{fail: true}, writer, log.NewNop())

	r.Record(context.Background(), "question", "answer")

	if writer.calls != 0 {
		t.Errorf("Upsert called %d times after embed failure, want 0", writer.calls)
	}
}

func TestRecordSwallowsStoreError(t *testing.T) {
	writer := &mockWriter{err: errors.New("store offline")}
	r := New(&mockEmbedder{}, writer, log.NewNop())

	// Must not panic or surface the error.
	r.Record(context.Background(), "question", "answer")
}
