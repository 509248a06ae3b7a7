package handler

import (
	"encoding/json"
	"net/http"

	"github.com/responderhq/opschat/internal/middleware"
	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/internal/service"
	"github.com/responderhq/opschat/pkg/logger"
)

// IngestHandler is the HTTP entry point of the External Ingestion Adapter.
// It sits behind the gateway-key middleware, not the user session auth.
type IngestHandler struct {
	ingest *service.IngestService
	logger *logger.Logger
}

// NewIngestHandler creates an ingest handler.
func NewIngestHandler(ingest *service.IngestService, log *logger.Logger) *IngestHandler {
	return &IngestHandler{
		ingest: ingest,
		logger: log,
	}
}

// Ingest handles POST /ingest/v1/messages
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.IngestRequest
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

	msg, err := h.ingest.Ingest(ctx, &req)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, &model.SendMessageResponse{Message: msg})
}
