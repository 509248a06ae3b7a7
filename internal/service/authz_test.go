package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/responderhq/opschat/internal/model"
)

func TestGateCanClear(t *testing.T) {
	callout := &model.Group{Kind: model.KindPredefined, Subtype: model.SubtypeCallout}
	broadcast := &model.Group{Kind: model.KindPredefined, Subtype: model.SubtypeBroadcast}
	custom := &model.Group{Kind: model.KindCustom, Name: "night-shift"}

	tests := []struct {
		name  string
		actor model.Actor
		group *model.Group
		allow bool
	}{
		{"direct conversation any participant", alice, nil, true},
		{"custom group any member", alice, custom, true},
		{"broadcast any member", alice, broadcast, true},
		{"callout plain member denied", alice, callout, false},
		{"callout admin", admin, callout, true},
		{"callout operator", opUser, callout, true},
		{"callout trainer", model.Actor{ID: "t1", Role: model.RoleTrainer}, callout, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Gate{}.CanClear(tt.actor, tt.group)
			if tt.allow {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestGateCanDeleteGroup(t *testing.T) {
	predefined := &model.Group{Kind: model.KindPredefined, Subtype: model.SubtypeBroadcast}
	custom := &model.Group{Kind: model.KindCustom, CreatedBy: "alice"}

	assert.Error(t, Gate{}.CanDeleteGroup(admin, predefined))
	assert.NoError(t, Gate{}.CanDeleteGroup(alice, custom))
	assert.NoError(t, Gate{}.CanDeleteGroup(admin, custom))
	assert.Error(t, Gate{}.CanDeleteGroup(bob, custom))
}

func TestGateCanManageMembers(t *testing.T) {
	predefined := &model.Group{Kind: model.KindPredefined, Subtype: model.SubtypeBroadcast}
	custom := &model.Group{Kind: model.KindCustom, Members: []string{"alice"}}

	assert.NoError(t, Gate{}.CanManageMembers(admin, predefined))
	assert.Error(t, Gate{}.CanManageMembers(alice, predefined))

	assert.NoError(t, Gate{}.CanManageMembers(alice, custom))
	assert.NoError(t, Gate{}.CanManageMembers(admin, custom))
	assert.Error(t, Gate{}.CanManageMembers(bob, custom))
}
