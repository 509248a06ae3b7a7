package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/internal/store"
	"github.com/responderhq/opschat/pkg/errs"
	"github.com/responderhq/opschat/pkg/logger"
)

// GroupService owns the group registry operations.
type GroupService struct {
	groups  store.GroupStore
	msgs    store.MessageStore
	cursors store.CursorStore
	gate    Gate
	logger  *logger.Logger
	now     func() time.Time
}

// NewGroupService creates a group service.
func NewGroupService(backend store.Backend, log *logger.Logger) *GroupService {
	return &GroupService{
		groups:  backend,
		msgs:    backend,
		cursors: backend,
		logger:  log,
		now:     time.Now,
	}
}

// ProvisionPredefined ensures the system groups exist. Called once at
// bootstrap; re-running is a no-op for groups already present.
func (s *GroupService) ProvisionPredefined(ctx context.Context) error {
	predefined := []struct {
		subtype string
		name    string
		desc    string
	}{
		{model.SubtypeBroadcast, "Broadcast", "Announcements to the whole organization"},
		{model.SubtypeCallout, "Callout", "Dispatch callouts and external alerts"},
	}

	for _, p := range predefined {
		_, err := s.groups.GetPredefined(ctx, p.subtype)
		if err == nil {
			continue
		}
		if !errs.Is(err, errs.KindNotFound) {
			return err
		}
		g := &model.Group{
			ID:          uuid.Must(uuid.NewV7()).String(),
			Name:        p.name,
			Kind:        model.KindPredefined,
			Subtype:     p.subtype,
			Description: p.desc,
			CreatedAt:   s.now(),
		}
		if err := s.groups.Put(ctx, g); err != nil {
			return err
		}
		s.logger.Info("predefined group provisioned",
			zap.String("group_id", g.ID),
			zap.String("subtype", g.Subtype),
		)
	}
	return nil
}

// CreateCustom creates a user-created group. The creator always ends up in
// the membership set.
func (s *GroupService) CreateCustom(ctx context.Context, actor model.Actor, req *model.CreateGroupRequest) (*model.Group, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errs.Validationf("group name cannot be empty")
	}
	// Resolution gives predefined subtypes precedence, so a custom group
	// with a subtype name would be unreachable by its natural key.
	switch name {
	case model.SubtypeBroadcast, model.SubtypeCallout:
		return nil, errs.Validationf("group name %q is reserved", name)
	}
	if len(req.MemberIDs) == 0 {
		return nil, errs.Validationf("group needs at least one member")
	}

	g := &model.Group{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Name:        name,
		Kind:        model.KindCustom,
		Description: req.Description,
		CreatedBy:   actor.ID,
		CreatedAt:   s.now(),
	}
	g.AddMember(actor.ID)
	for _, m := range req.MemberIDs {
		if m == "" {
			return nil, errs.Validationf("member id cannot be empty")
		}
		g.AddMember(m)
	}

	if err := s.groups.Put(ctx, g); err != nil {
		return nil, err
	}

	s.logger.Info("custom group created",
		zap.String("group_id", g.ID),
		zap.String("name", g.Name),
		zap.Int("members", len(g.Members)),
	)
	return g, nil
}

// Resolve maps a group reference to a group. Predefined subtypes take
// precedence, then custom names, then raw ids.
func (s *GroupService) Resolve(ctx context.Context, ref string) (*model.Group, error) {
	if ref == "" {
		return nil, errs.Validationf("group reference cannot be empty")
	}
	switch ref {
	case model.SubtypeBroadcast, model.SubtypeCallout:
		return s.groups.GetPredefined(ctx, ref)
	}
	g, err := s.groups.GetCustomByName(ctx, ref)
	if err == nil {
		return g, nil
	}
	if !errs.Is(err, errs.KindNotFound) {
		return nil, err
	}
	return s.groups.GetByID(ctx, ref)
}

// ListForUser returns the groups the user is a member of.
func (s *GroupService) ListForUser(ctx context.Context, userID string) ([]model.Group, error) {
	return s.groups.ListByMember(ctx, userID)
}

// AddMembers extends a group's membership set. Adding an existing member is
// a no-op.
func (s *GroupService) AddMembers(ctx context.Context, actor model.Actor, ref string, memberIDs []string) (*model.Group, error) {
	if len(memberIDs) == 0 {
		return nil, errs.Validationf("no members given")
	}
	g, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanManageMembers(actor, g); err != nil {
		return nil, err
	}
	return s.groups.AddMembers(ctx, g.ID, memberIDs)
}

// DeleteCustom removes a custom group entirely: its messages, its read
// cursors and the group entity itself.
func (s *GroupService) DeleteCustom(ctx context.Context, actor model.Actor, ref string) error {
	g, err := s.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.gate.CanDeleteGroup(actor, g); err != nil {
		return err
	}

	key := model.GroupConversationKey(g.ID)
	if err := s.msgs.Clear(ctx, key); err != nil {
		return err
	}
	if err := s.cursors.ResetCursors(ctx, key); err != nil {
		return err
	}
	if err := s.groups.Delete(ctx, g.ID); err != nil {
		return err
	}

	s.logger.Info("custom group deleted",
		zap.String("group_id", g.ID),
		zap.String("actor_id", actor.ID),
	)
	return nil
}
