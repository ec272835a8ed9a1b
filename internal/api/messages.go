package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/arealhq/arealbot/internal/agent"
	"github.com/arealhq/arealbot/internal/log"
	"github.com/arealhq/arealbot/internal/rbac"
)

const maxMessageBytes = 64 << 10

// Turner processes one conversation turn. Implemented by agent.Orchestrator.
type Turner interface {
	Turn(ctx context.Context, threadID string, role rbac.Role, text string) (*agent.TurnResult, error)
}

// Recorder persists user feedback. Implemented by feedback.Store.
type Recorder interface {
	Record(ctx context.Context, threadID, turnRef string, rating int, comment string) (uuid.UUID, error)
}

type messageHandler struct {
	orchestrator Turner
	logger       log.Logger
}

type messageRequest struct {
	ThreadID string `json:"thread_id"`
	Role     string `json:"role"`
	Text     string `json:"text"`
}

type messageResponse struct {
	Reply     string `json:"reply"`
	Persisted bool   `json:"persisted"`
}

// send handles POST /api/v1/messages. The role is trusted as resolved by
// the channel adapter; unknown values degrade to public inside Normalize.
// A concurrent message for the same thread queues behind the in-flight one.
func (h *messageHandler) send(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body", h.logger)
		return
	}
	if req.ThreadID == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "thread_id and text are required", h.logger)
		return
	}

	result, err := h.orchestrator.Turn(r.Context(), req.ThreadID, rbac.Normalize(req.Role), req.Text)
	if err != nil {
		h.logger.Error("turn failed", "thread_id", req.ThreadID, "error", err)
		writeError(w, http.StatusInternalServerError, "turn_failed", "could not process the message", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Reply:     result.Reply,
		Persisted: result.Persisted,
	}, h.logger)
}

type feedbackHandler struct {
	store  Recorder
	logger log.Logger
}

type feedbackRequest struct {
	ThreadID string `json:"thread_id"`
	TurnRef  string `json:"turn_ref"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

// record handles POST /api/v1/feedback.
func (h *feedbackHandler) record(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body", h.logger)
		return
	}

	id, err := h.store.Record(r.Context(), req.ThreadID, req.TurnRef, req.Rating, req.Comment)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_feedback", "feedback not accepted", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()}, h.logger)
}
