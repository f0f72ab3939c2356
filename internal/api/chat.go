package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/swasthai/swasth/internal/chat"
)

// maxChatBodyBytes caps chat request bodies.
const maxChatBodyBytes = 1024 * 1024

// chatHandler serves the chat endpoints.
//
// Endpoints:
//   - POST /api/chat        - Synchronous chat (JSON request/response)
//   - POST /api/chat/stream - Streaming chat (SSE - Server-Sent Events)
type chatHandler struct {
	sessions *chat.Registry
	logger   *slog.Logger
}

// chatRequest is the JSON body for both chat endpoints.
type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// chatResponse is the JSON body for the synchronous endpoint.
type chatResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
}

// SSE event types for chat streaming.
const (
	EventChunk = "chunk" // Partial response text
	EventDone  = "done"  // Stream completed successfully
	EventError = "error" // Error occurred during streaming
)

// ChunkPayload is the SSE data payload for streaming text chunks.
type ChunkPayload struct {
	Text string `json:"text"`
}

// DonePayload is the SSE data payload when streaming completes successfully.
type DonePayload struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
}

// ErrorPayload is the SSE data payload when an error occurs.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// decodeChatRequest parses and validates the shared request body.
func decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatRequest, error) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	if req.SessionID == "" {
		return req, errors.New("sessionId is required")
	}
	if req.Message == "" {
		return req, errors.New("message is required")
	}
	return req, nil
}

// send handles POST /api/chat.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	mgr := h.sessions.Get(req.SessionID)
	mgr.AddUserMessage(req.Message)

	reply, err := mgr.Generate(r.Context())
	if err != nil {
		h.logger.Error("generation failed", "sessionId", req.SessionID, "error", err)
		writeError(w, http.StatusBadGateway, "generation_failed", "model backend unavailable")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Reply: reply, SessionID: req.SessionID})
}

// stream handles POST /api/chat/stream, emitting SSE events as the model
// produces text.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	// Validate before committing to an event stream so bad requests get a
	// plain JSON 400 rather than a 200 with an SSE error event.
	req, err := decodeChatRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	mgr := h.sessions.Get(req.SessionID)
	mgr.AddUserMessage(req.Message)

	h.logger.Debug("SSE stream started", "sessionId", req.SessionID)

	var reply string
	for chunk, err := range mgr.GenerateStream(ctx) {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected", "sessionId", req.SessionID)
			return
		}
		if err != nil {
			h.logger.Error("stream failed", "sessionId", req.SessionID, "error", err)
			_ = writeEvent(w, flusher, EventError, ErrorPayload{
				Code:    "generation_failed",
				Message: err.Error(),
			})
			return
		}

		reply += chunk
		if err := writeEvent(w, flusher, EventChunk, ChunkPayload{Text: chunk}); err != nil {
			// Write failure usually means connection closed.
			h.logger.Debug("failed to write chunk", "error", err)
			return
		}
	}

	_ = writeEvent(w, flusher, EventDone, DonePayload{Reply: reply, SessionID: req.SessionID})
	h.logger.Debug("SSE stream completed", "sessionId", req.SessionID)
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
