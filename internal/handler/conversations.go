package handler

import (
	"net/http"

	"github.com/responderhq/opschat/internal/middleware"
	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/internal/service"
	"github.com/responderhq/opschat/pkg/logger"
)

// ConversationHandler serves the directory poll.
type ConversationHandler struct {
	directory *service.Directory
	logger    *logger.Logger
}

// NewConversationHandler creates a conversation handler.
func NewConversationHandler(directory *service.Directory, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		directory: directory,
		logger:    log,
	}
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	conversations, err := h.directory.List(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list conversations")
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &model.ListConversationsResponse{
		Conversations: conversations,
	})
}
