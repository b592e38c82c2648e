package handler

import (
	"log/slog"
	"net/http"

	chatModels "cadence/internal/domain/models/chat"
	chatSvc "cadence/internal/domain/services/chat"
	"cadence/internal/httputil"
)

// SyncHandler exposes the sync engine over HTTP.
type SyncHandler struct {
	syncService chatSvc.SyncService
	convService chatSvc.ConversationService
	logger      *slog.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(syncService chatSvc.SyncService, convService chatSvc.ConversationService, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		convService: convService,
		logger:      logger,
	}
}

// Append applies an explicit append intent.
// POST /api/messages/append                        (implicit conversation create)
// POST /api/conversations/{id}/messages/append
func (h *SyncHandler) Append(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req chatSvc.AppendRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondParseError(w, err)
		return
	}
	if id := r.PathValue("id"); id != "" {
		req.ConversationID = id
	}

	if req.ConversationID != "" {
		if !h.authorize(w, r, req.ConversationID, userID) {
			return
		}
	}

	result, err := h.syncService.Append(r.Context(), userID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	status := http.StatusOK
	if req.ConversationID == "" {
		status = http.StatusCreated
	}
	httputil.RespondJSON(w, status, result)
}

// Edit applies an explicit edit intent and reports the fork conversation that
// received the detached tail.
// POST /api/messages/{id}/edit
func (h *SyncHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req chatSvc.EditRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondParseError(w, err)
		return
	}
	req.MessageID = r.PathValue("id")

	// The message's conversation is only known after a read, so the
	// ownership check lives inside the service transaction.
	result, err := h.syncService.Edit(r.Context(), userID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// legacySyncRequest is the raw-list payload older clients send.
type legacySyncRequest struct {
	Messages []chatModels.IncomingMessage `json:"messages"`
}

// LegacySync reconciles a raw message list against the stored log.
// PUT /api/conversations/{id}/messages
func (h *SyncHandler) LegacySync(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	conversationID := r.PathValue("id")

	if !h.authorize(w, r, conversationID, userID) {
		return
	}

	var req legacySyncRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondParseError(w, err)
		return
	}

	result, err := h.syncService.LegacySync(r.Context(), conversationID, req.Messages)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// authorize verifies the caller owns the conversation, writing the error
// response itself when they do not.
func (h *SyncHandler) authorize(w http.ResponseWriter, r *http.Request, conversationID, userID string) bool {
	if _, err := h.convService.Get(r.Context(), conversationID, userID); err != nil {
		handleError(w, err)
		return false
	}
	return true
}
