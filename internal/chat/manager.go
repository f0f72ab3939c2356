// Package chat holds per-session conversation state and drives the language
// model. A Manager owns one session's transcript: the persona system prompt,
// a capped rolling history, and the prompt-assembly rules that splice
// retrieved context into each model call.
//
// The transcript stays clean: retrieved knowledge and memory are injected as
// ephemeral system messages at generation time and are never stored in
// history, so a retrieval result from one turn cannot leak into later turns.
package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
)

// SystemPrompt is the persona instruction pinned at the head of every
// session transcript.
const SystemPrompt = "You are Swasth AI, a medical assistant. " +
	"Provide safe, evidence-based medical information. " +
	"Never provide emergency instructions or final diagnosis. " +
	"Always recommend consulting a licensed doctor when appropriate."

const (
	// historyKeep is how many trailing messages survive truncation,
	// in addition to the pinned system prompt.
	historyKeep = 10

	// promptWindow is how many trailing transcript messages are sent to
	// the model, in addition to the system messages.
	promptWindow = 6
)

// ModelClient runs one model call over an assembled prompt. When onChunk is
// non-nil the call streams and onChunk receives each text fragment as it
// arrives; an error from onChunk aborts the call and is returned unchanged.
// The full reply text is returned in both modes.
type ModelClient interface {
	Generate(ctx context.Context, model string, messages []Message, onChunk func(ctx context.Context, text string) error) (string, error)
}

// ContextRetriever supplies the context blocks spliced into prompts.
// Implementations return "" when nothing relevant is available.
type ContextRetriever interface {
	Knowledge(ctx context.Context, query string, limit int) string
	Memory(ctx context.Context, query string, limit int) string
}

// MemoryRecorder persists a completed exchange. Best-effort; never fails.
type MemoryRecorder interface {
	Record(ctx context.Context, userMessage, assistantReply string)
}

// Manager owns a single session's conversation. All methods are safe for
// concurrent use; generation holds the session lock for its full duration,
// so concurrent requests against one session serialize.
type Manager struct {
	client    ModelClient
	retriever ContextRetriever
	recorder  MemoryRecorder
	logger    *slog.Logger

	defaultModel string

	mu      sync.Mutex
	model   string
	history []Message
}

// NewManager creates a session manager with an empty transcript.
func NewManager(client ModelClient, retriever ContextRetriever, recorder MemoryRecorder, model string, logger *slog.Logger) *Manager {
	return &Manager{
		client:       client,
		retriever:    retriever,
		recorder:     recorder,
		logger:       logger.With("component", "chat"),
		defaultModel: model,
		model:        model,
		history:      []Message{{Role: RoleSystem, Content: SystemPrompt}},
	}
}

// AddUserMessage appends the user's message to the transcript verbatim.
func (m *Manager) AddUserMessage(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, Message{Role: RoleUser, Content: message})
	m.truncate()
}

// SetModel switches the model used for subsequent generations. The
// transcript is unaffected.
func (m *Manager) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
}

// Model returns the model currently in use.
func (m *Manager) Model() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// Reset reinitializes the session: the transcript collapses back to the
// persona system prompt and any model override reverts to the default.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = []Message{{Role: RoleSystem, Content: SystemPrompt}}
	m.model = m.defaultModel
}

// History returns a copy of the transcript.
func (m *Manager) History() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.history...)
}

// Generate runs one blocking model call over the current transcript,
// appends the reply, and records the exchange as memory. The last message
// must be a user message (added via AddUserMessage).
func (m *Manager) Generate(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	query, err := m.pendingQuery()
	if err != nil {
		return "", err
	}

	prompt := m.assemblePrompt(ctx, query)
	reply, err := m.client.Generate(ctx, m.model, prompt, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	m.finalize(ctx, query, reply)
	return reply, nil
}

// errStreamStopped aborts the model call when the consumer stops iterating.
var errStreamStopped = errors.New("stream consumer stopped")

// GenerateStream runs one streaming model call over the current transcript,
// yielding text fragments as they arrive. The sequence is single-use.
//
// The accumulated fragments are the canonical reply: on clean completion the
// exchange is finalized exactly as Generate does. If the consumer stops
// early the call is aborted and nothing is recorded. If the model fails
// mid-stream after producing output, the partial reply is finalized
// best-effort; if it fails before producing anything, the error is yielded.
func (m *Manager) GenerateStream(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		m.mu.Lock()
		defer m.mu.Unlock()

		query, err := m.pendingQuery()
		if err != nil {
			yield("", err)
			return
		}

		prompt := m.assemblePrompt(ctx, query)

		var sb strings.Builder
		_, err = m.client.Generate(ctx, m.model, prompt, func(_ context.Context, text string) error {
			sb.WriteString(text)
			if !yield(text, nil) {
				return errStreamStopped
			}
			return nil
		})

		switch {
		case err == nil:
			m.finalize(ctx, query, sb.String())
		case errors.Is(err, errStreamStopped):
			// Consumer walked away; the exchange never completed.
		case sb.Len() > 0:
			// Partial reply already reached the consumer; keep it.
			m.logger.Warn("stream ended uncleanly, keeping partial reply", "error", err)
			m.finalize(ctx, query, sb.String())
		default:
			yield("", fmt.Errorf("%w: %w", ErrGenerationFailed, err))
		}
	}
}

// pendingQuery returns the trailing user message awaiting a reply.
// Caller must hold mu.
func (m *Manager) pendingQuery() (string, error) {
	if len(m.history) == 0 || m.history[len(m.history)-1].Role != RoleUser {
		return "", fmt.Errorf("%w: no pending user message", ErrGenerationFailed)
	}
	return m.history[len(m.history)-1].Content, nil
}

// finalize appends the reply to the transcript and records the exchange.
// Caller must hold mu.
func (m *Manager) finalize(ctx context.Context, query, reply string) {
	m.history = append(m.history, Message{Role: RoleAssistant, Content: reply})
	m.truncate()
	m.recorder.Record(ctx, query, reply)
}

// assemblePrompt builds the outbound message list: the persona prompt,
// ephemeral system messages carrying retrieved context, and the trailing
// window of the transcript. Caller must hold mu.
func (m *Manager) assemblePrompt(ctx context.Context, query string) []Message {
	m.truncate()

	prompt := []Message{m.history[0]}

	if knowledge := m.retriever.Knowledge(ctx, query, 0); knowledge != "" {
		prompt = append(prompt, Message{
			Role:    RoleSystem,
			Content: "Medical knowledge (use if relevant):\n" + knowledge,
		})
	}
	if memory := m.retriever.Memory(ctx, query, 0); memory != "" {
		prompt = append(prompt, Message{
			Role:    RoleSystem,
			Content: "Previous conversation context:\n" + memory,
		})
	}

	transcript := m.history[1:]
	if len(transcript) > promptWindow {
		transcript = transcript[len(transcript)-promptWindow:]
	}
	return append(prompt, transcript...)
}

// truncate caps the transcript at the system prompt plus the most recent
// historyKeep messages. Caller must hold mu.
func (m *Manager) truncate() {
	if len(m.history) <= 1+historyKeep {
		return
	}
	kept := make([]Message, 0, 1+historyKeep)
	kept = append(kept, m.history[0])
	kept = append(kept, m.history[len(m.history)-historyKeep:]...)
	m.history = kept
}
