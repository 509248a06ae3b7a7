package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/responderhq/opschat/internal/push"
)

const (
	// NotifySubject carries message notifications for the push collaborator.
	NotifySubject = "push.notify"
	// TokenSubject carries device-token registrations.
	TokenSubject = "push.tokens"
)

// Sink posts push payloads onto core NATS subjects where the external
// push-notification service picks them up. Delivery is its problem.
type Sink struct {
	client *Client
}

// NewSink creates a NATS-backed push sink.
func NewSink(client *Client) *Sink {
	return &Sink{client: client}
}

func (s *Sink) MessageAppended(ctx context.Context, n push.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return s.client.Conn().Publish(NotifySubject, data)
}

func (s *Sink) RegisterToken(ctx context.Context, reg push.TokenRegistration) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("failed to marshal token registration: %w", err)
	}
	return s.client.Conn().Publish(TokenSubject, data)
}
