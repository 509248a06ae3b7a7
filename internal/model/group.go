package model

import (
	"time"
)

// GroupKind distinguishes system-provisioned groups from user-created ones.
type GroupKind string

const (
	// KindPredefined groups are provisioned at bootstrap and never deleted.
	KindPredefined GroupKind = "predefined"
	// KindCustom groups are created by users; name is their natural key.
	KindCustom GroupKind = "custom"
)

// Predefined group subtypes.
const (
	SubtypeBroadcast = "broadcast"
	SubtypeCallout   = "callout"
)

// Group is a persisted chat group with a membership set.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        GroupKind `json:"kind"`
	Subtype     string    `json:"subtype,omitempty"`
	Description string    `json:"description,omitempty"`
	Members     []string  `json:"members"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// AddMember appends userID with set semantics; duplicates are a no-op.
func (g *Group) AddMember(userID string) {
	if !g.HasMember(userID) {
		g.Members = append(g.Members, userID)
	}
}

// CreateGroupRequest is the request to create a custom group.
type CreateGroupRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	MemberIDs   []string `json:"member_ids"`
}

// ListGroupsResponse is the response for listing the caller's groups.
type ListGroupsResponse struct {
	Groups []Group `json:"groups"`
}
