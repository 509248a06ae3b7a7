package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/responderhq/opschat/internal/middleware"
	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/internal/service"
	"github.com/responderhq/opschat/pkg/logger"
)

// MessageHandler handles thread fetch, send and clear endpoints.
type MessageHandler struct {
	messages *service.MessageService
	logger   *logger.Logger
}

// NewMessageHandler creates a message handler.
func NewMessageHandler(messages *service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		logger:   log,
	}
}

// List handles GET /api/v1/conversations/{key}/messages?since=N
//
// Fetching a thread is what advances the caller's read cursor; the thread
// poll loop calls this with the last sequence it has seen.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	key, err := model.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation key")
		return
	}

	sinceSeq := uint64(0)
	if since := r.URL.Query().Get("since"); since != "" {
		parsed, err := strconv.ParseUint(since, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
		sinceSeq = parsed
	}

	resp, err := h.messages.ListThread(ctx, userID, key, sinceSeq)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Send handles POST /api/v1/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateAttachments(req.Attachments); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ClientMessageID == "" {
		req.ClientMessageID = r.Header.Get("X-Client-Message-ID")
	}

	msg, err := h.messages.Send(ctx, actor, &req)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, &model.SendMessageResponse{Message: msg})
}

// Clear handles DELETE /api/v1/conversations/{key}/messages
func (h *MessageHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	key, err := model.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation key")
		return
	}

	if err := h.messages.Clear(ctx, actor, key); err != nil {
		writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
