package handler

import (
	"log/slog"
	"net/http"

	chatSvc "cadence/internal/domain/services/chat"
	"cadence/internal/httputil"
)

// ConversationHandler handles conversation lifecycle HTTP requests.
type ConversationHandler struct {
	convService chatSvc.ConversationService
	logger      *slog.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(convService chatSvc.ConversationService, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{convService: convService, logger: logger}
}

// Create starts an empty conversation.
// POST /api/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	conv, err := h.convService.Create(r.Context(), httputil.GetUserID(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, conv)
}

// List returns the caller's conversations, newest first.
// GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.convService.List(r.Context(), httputil.GetUserID(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, conversations)
}

// Get returns one conversation, including its fork lineage.
// GET /api/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.convService.Get(r.Context(), r.PathValue("id"), httputil.GetUserID(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, conv)
}

// Delete soft-deletes a conversation.
// DELETE /api/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.convService.Delete(r.Context(), r.PathValue("id"), httputil.GetUserID(r)); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMessages returns the conversation's ordered message log. Clients call
// this after a seq_mismatch to reload before retrying.
// GET /api/conversations/{id}/messages
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.convService.ListMessages(r.Context(), r.PathValue("id"), httputil.GetUserID(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"conversation_id": r.PathValue("id"),
		"messages":        messages,
	})
}
