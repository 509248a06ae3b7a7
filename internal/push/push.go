// Package push is the boundary to the external push-notification
// collaborator. The chat core only posts into it; delivery, device fan-out
// and token lifecycle live outside this repository.
package push

import (
	"context"

	"github.com/responderhq/opschat/internal/model"
)

// Notification is the payload posted to the sink when a message is appended.
type Notification struct {
	ConversationKey model.Key `json:"conversation_key"`
	MessageID       string    `json:"message_id"`
	SenderName      string    `json:"sender_name"`
	Preview         string    `json:"preview"`
	Recipients      []string  `json:"recipients"`
}

// TokenRegistration forwards a device token to the collaborator.
type TokenRegistration struct {
	UserID     string            `json:"user_id"`
	Token      string            `json:"token"`
	DeviceInfo map[string]string `json:"device_info,omitempty"`
}

// Sink receives message and token posts. Implementations must be safe for
// concurrent use.
type Sink interface {
	MessageAppended(ctx context.Context, n Notification) error
	RegisterToken(ctx context.Context, reg TokenRegistration) error
}
