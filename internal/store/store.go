// Package store defines the persistence contracts for the chat core.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/pkg/errs"
)

// ReadCursor marks the boundary between read and unread messages for one
// user in one conversation. Owned and mutated only by the unread tracker.
type ReadCursor struct {
	UserID          string    `json:"user_id"`
	ConversationKey model.Key `json:"conversation_key"`
	LastReadAt      time.Time `json:"last_read_at"`
}

// MessageStore holds append-only ordered message records per conversation.
type MessageStore interface {
	// Append persists msg, assigning its insertion sequence. A non-empty
	// dedupeID enables best-effort duplicate suppression on caller retry.
	Append(ctx context.Context, msg *model.Message, dedupeID string) (*model.Message, error)

	// List returns the conversation's messages with Sequence > sinceSeq in
	// ascending (CreatedAt, Sequence) order.
	List(ctx context.Context, key model.Key, sinceSeq uint64) ([]model.Message, error)

	// Latest returns the newest message of the conversation, or nil.
	Latest(ctx context.Context, key model.Key) (*model.Message, error)

	// Clear deletes all messages of the conversation. Idempotent.
	Clear(ctx context.Context, key model.Key) error

	// DirectPartners returns the distinct users the given user has a direct
	// message history with.
	DirectPartners(ctx context.Context, userID string) ([]string, error)
}

// GroupStore is the group registry.
type GroupStore interface {
	// Put inserts a group. Custom names are a natural key; a duplicate
	// custom name fails with a conflict error.
	Put(ctx context.Context, g *model.Group) error
	GetByID(ctx context.Context, id string) (*model.Group, error)
	GetCustomByName(ctx context.Context, name string) (*model.Group, error)
	GetPredefined(ctx context.Context, subtype string) (*model.Group, error)
	ListByMember(ctx context.Context, userID string) ([]model.Group, error)
	// AddMembers extends the membership set; existing members are no-ops.
	AddMembers(ctx context.Context, id string, memberIDs []string) (*model.Group, error)
	// Delete removes the group entity. Kind policy is enforced above the
	// registry, not here.
	Delete(ctx context.Context, id string) error
}

// CursorStore persists read cursors, one row per (user, conversation).
type CursorStore interface {
	// GetCursor returns the user's cursor for the conversation, or nil if
	// the user has never read it.
	GetCursor(ctx context.Context, userID string, key model.Key) (*ReadCursor, error)
	// SetCursor creates or advances the cursor.
	SetCursor(ctx context.Context, userID string, key model.Key, lastReadAt time.Time) error
	// ResetCursors drops every cursor for the conversation.
	ResetCursors(ctx context.Context, key model.Key) error
}

// Backend bundles the three stores a chat backend must provide.
type Backend interface {
	MessageStore
	GroupStore
	CursorStore
}

// SortMessages puts messages into the List contract's ascending
// (CreatedAt, Sequence) order. Backends whose physical order is insertion
// order must still apply this: under concurrent sends a later-stamped
// message can be persisted first.
func SortMessages(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].Sequence < msgs[j].Sequence
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

// ValidateMessage enforces the append contract shared by all backends.
func ValidateMessage(msg *model.Message) error {
	if msg.Content == "" && len(msg.Attachments) == 0 {
		return errs.Validationf("message needs content or attachments")
	}
	if msg.IsExternal {
		if msg.SenderID != nil {
			return errs.Validationf("external message must not carry a sender")
		}
		if msg.ExternalSource == nil || !model.ValidSource(*msg.ExternalSource) {
			return errs.Validationf("external message needs a valid source")
		}
		if msg.ExternalSenderName == nil || *msg.ExternalSenderName == "" {
			return errs.Validationf("external message needs a sender name")
		}
	} else {
		if msg.SenderID == nil || *msg.SenderID == "" {
			return errs.Validationf("message needs a sender")
		}
		if msg.ExternalSource != nil || msg.ExternalSenderName != nil {
			return errs.Validationf("internal message must not carry external metadata")
		}
	}
	return nil
}
