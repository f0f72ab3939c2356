package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/swasthai/swasth/internal/chat"
)

// sessionHandler serves session control endpoints: model selection and
// conversation reset.
type sessionHandler struct {
	sessions *chat.Registry
	logger   *slog.Logger
}

type modelRequest struct {
	SessionID string `json:"sessionId"`
	Model     string `json:"model"`
}

type resetRequest struct {
	SessionID string `json:"sessionId"`
}

// setModel handles POST /api/model. The identifier is not validated against
// the backend; an unknown model surfaces on the next generation call.
func (h *sessionHandler) setModel(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "sessionId is required")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "model is required")
		return
	}

	h.sessions.Get(req.SessionID).SetModel(req.Model)
	h.logger.Info("model switched", "sessionId", req.SessionID, "model", req.Model)

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "model updated",
		"model":  req.Model,
	})
}

// reset handles POST /api/reset.
func (h *sessionHandler) reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "sessionId is required")
		return
	}

	h.sessions.Get(req.SessionID).Reset()
	h.logger.Info("session reset", "sessionId", req.SessionID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "conversation reset"})
}
