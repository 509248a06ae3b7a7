// Package service provides business logic for the chat core.
package service

import (
	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/pkg/errs"
)

// Gate holds the role and group-kind permission rules for destructive
// group operations.
type Gate struct{}

// CanClear reports whether the actor may clear the conversation. For direct
// conversations g is nil and any participant may clear; participation is
// checked by the caller. Predefined callout groups are restricted to
// privileged roles.
func (Gate) CanClear(actor model.Actor, g *model.Group) error {
	if g == nil {
		return nil
	}
	if g.Kind == model.KindPredefined && g.Subtype == model.SubtypeCallout {
		switch actor.Role {
		case model.RoleAdmin, model.RoleOperator, model.RoleTrainer:
			return nil
		}
		return errs.Authorizationf("role %q may not clear the callout group", actor.Role)
	}
	return nil
}

// CanDeleteGroup reports whether the actor may delete the group entity.
// Predefined groups are never deletable; custom groups may be deleted by
// their creator or an admin.
func (Gate) CanDeleteGroup(actor model.Actor, g *model.Group) error {
	if g.Kind == model.KindPredefined {
		return errs.Authorizationf("predefined groups cannot be deleted")
	}
	if actor.Role == model.RoleAdmin || g.CreatedBy == actor.ID {
		return nil
	}
	return errs.Authorizationf("only the creator or an admin may delete a custom group")
}

// CanManageMembers reports whether the actor may extend a group's
// membership set.
func (Gate) CanManageMembers(actor model.Actor, g *model.Group) error {
	if g.Kind == model.KindPredefined && actor.Role != model.RoleAdmin {
		return errs.Authorizationf("only admins manage predefined group membership")
	}
	if g.Kind == model.KindCustom && actor.Role != model.RoleAdmin && !g.HasMember(actor.ID) {
		return errs.Authorizationf("only members extend a custom group")
	}
	return nil
}
