package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/responderhq/opschat/internal/middleware"
	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/internal/service"
	"github.com/responderhq/opschat/pkg/logger"
	"github.com/responderhq/opschat/pkg/metrics"
)

// GroupHandler handles group registry endpoints.
type GroupHandler struct {
	groups *service.GroupService
	logger *logger.Logger
}

// NewGroupHandler creates a group handler.
func NewGroupHandler(groups *service.GroupService, log *logger.Logger) *GroupHandler {
	return &GroupHandler{
		groups: groups,
		logger: log,
	}
}

// List handles GET /api/v1/groups
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	groups, err := h.groups.ListForUser(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list groups")
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &model.ListGroupsResponse{Groups: groups})
}

// Create handles POST /api/v1/groups
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	var req model.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateGroupName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, err := h.groups.CreateCustom(ctx, actor, &req)
	if err != nil {
		writeErr(w, err)
		return
	}

	metrics.GroupsTotal.WithLabelValues(string(model.KindCustom)).Inc()
	writeJSON(w, http.StatusCreated, g)
}

// AddMembers handles POST /api/v1/groups/{ref}/members
func (h *GroupHandler) AddMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)
	ref := chi.URLParam(r, "ref")

	var req struct {
		MemberIDs []string `json:"member_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	g, err := h.groups.AddMembers(ctx, actor, ref, req.MemberIDs)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, g)
}

// Delete handles DELETE /api/v1/groups/{ref}
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)
	ref := chi.URLParam(r, "ref")

	if err := h.groups.DeleteCustom(ctx, actor, ref); err != nil {
		writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
