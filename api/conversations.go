package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/taxline/taxline/internal/conversation"
	"github.com/taxline/taxline/internal/log"
)

// Pagination bounds for history reads.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// ConversationReader is the read-side of the conversation store the API
// needs.
type ConversationReader interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	History(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error)
}

// ConversationHandler serves conversation history.
type ConversationHandler struct {
	store  ConversationReader
	logger log.Logger
}

// NewConversationHandler creates a conversation handler.
func NewConversationHandler(store ConversationReader, logger log.Logger) *ConversationHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &ConversationHandler{store: store, logger: logger}
}

// RegisterRoutes registers conversation routes on the given mux.
func (h *ConversationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/conversations/{id}", h.history)
}

// history returns a conversation's messages in chronological order.
// Query parameters:
//   - limit: maximum number of messages (default: 50, max: 500)
func (h *ConversationHandler) history(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "conversation id must be a UUID")
		return
	}

	exists, err := h.store.Exists(r.Context(), id)
	if err != nil {
		h.logger.Error("conversation lookup failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup_failed", "failed to look up conversation")
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "not_found", "conversation does not exist")
		return
	}

	limit := parseIntParam(r, "limit", DefaultHistoryLimit, 1, MaxHistoryLimit)
	messages, err := h.store.History(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("history load failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "history_failed", "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"messages":        messages,
		"total":           len(messages),
		"limit":           limit,
	})
}

// parseIntParam parses an integer query parameter with bounds clamping.
func parseIntParam(r *http.Request, name string, defaultVal, minVal, maxVal int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}
