package handler

import (
	"encoding/json"
	"net/http"

	"github.com/responderhq/opschat/internal/middleware"
	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/internal/push"
	"github.com/responderhq/opschat/pkg/logger"
)

// NotificationHandler forwards device tokens to the external push
// collaborator. No chat logic lives here.
type NotificationHandler struct {
	sink   push.Sink
	logger *logger.Logger
}

// NewNotificationHandler creates a notification handler.
func NewNotificationHandler(sink push.Sink, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		sink:   sink,
		logger: log,
	}
}

// RegisterToken handles POST /api/v1/notification-token
func (h *NotificationHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.NotificationTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token cannot be empty")
		return
	}

	if err := h.sink.RegisterToken(ctx, push.TokenRegistration{
		UserID:     userID,
		Token:      req.Token,
		DeviceInfo: req.DeviceInfo,
	}); err != nil {
		h.logger.Error("failed to forward notification token")
		writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
