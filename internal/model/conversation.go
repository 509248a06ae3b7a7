package model

import (
	"fmt"
	"strings"
)

// ConversationType tags the two conversation shapes.
type ConversationType string

const (
	ConversationGroup  ConversationType = "group"
	ConversationDirect ConversationType = "direct"
)

// Key identifies a conversation. Group conversations use "group.<groupID>";
// direct conversations use "direct.<loUserID>.<hiUserID>" with the user pair
// sorted so both directions resolve to one key.
type Key string

// GroupConversationKey returns the key for a group's conversation.
func GroupConversationKey(groupID string) Key {
	return Key("group." + groupID)
}

// DirectConversationKey returns the canonical key for a user pair.
func DirectConversationKey(a, b string) Key {
	if b < a {
		a, b = b, a
	}
	return Key("direct." + a + "." + b)
}

// ParseKey validates a wire-format conversation key.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ".")
	switch {
	case len(parts) == 2 && parts[0] == "group" && parts[1] != "":
		return Key(s), nil
	case len(parts) == 3 && parts[0] == "direct" && parts[1] != "" && parts[2] != "":
		if parts[2] < parts[1] {
			return "", fmt.Errorf("direct key pair not canonical: %q", s)
		}
		return Key(s), nil
	}
	return "", fmt.Errorf("malformed conversation key: %q", s)
}

// Type returns the conversation shape encoded in the key.
func (k Key) Type() ConversationType {
	if strings.HasPrefix(string(k), "group.") {
		return ConversationGroup
	}
	return ConversationDirect
}

// GroupID returns the group id for a group key, or "".
func (k Key) GroupID() string {
	if k.Type() != ConversationGroup {
		return ""
	}
	return strings.TrimPrefix(string(k), "group.")
}

// DirectPair returns the two user ids of a direct key.
func (k Key) DirectPair() (string, string, bool) {
	if k.Type() != ConversationDirect {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(string(k), "direct."), ".", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// Partner returns the other participant of a direct key.
func (k Key) Partner(userID string) (string, bool) {
	a, b, ok := k.DirectPair()
	if !ok {
		return "", false
	}
	switch userID {
	case a:
		return b, true
	case b:
		return a, true
	}
	return "", false
}

// Conversation is a derived view over either a group or a direct user pair.
// It is never persisted; LatestMessage and UnreadCount are computed per poll.
type Conversation struct {
	Type          ConversationType `json:"type"`
	Key           Key              `json:"key"`
	Group         *Group           `json:"group,omitempty"`
	PartnerID     string           `json:"partner_id,omitempty"`
	LatestMessage *Message         `json:"latest_message,omitempty"`
	UnreadCount   int              `json:"unread_count"`
}

// ListConversationsResponse is the directory poll payload.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}
