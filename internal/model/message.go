// Package model defines data structures for the operations chat core.
package model

import (
	"time"
)

// Source identifies an external dispatch origin for ingested messages.
type Source string

const (
	SourceDispatch Source = "dispatch"
	SourceFire     Source = "fire"
	SourceEMS      Source = "ems"
	SourcePolice   Source = "police"
	SourceOther    Source = "other"
)

// ValidSource reports whether s is part of the closed source set.
func ValidSource(s Source) bool {
	switch s {
	case SourceDispatch, SourceFire, SourceEMS, SourcePolice, SourceOther:
		return true
	}
	return false
}

// Attachment is an opaque reference into the external blob store.
type Attachment struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// Message is an immutable append-only record belonging to a conversation.
//
// Internal messages carry SenderID and IsExternal=false; ingested messages
// carry SenderID=nil, IsExternal=true and the external source fields. No
// record mixes the two shapes.
type Message struct {
	ID              string       `json:"id"`
	ConversationKey Key          `json:"conversation_key"`
	SenderID        *string      `json:"sender_id,omitempty"`
	SenderName      string       `json:"sender_name,omitempty"`
	Content         string       `json:"content"`
	Attachments     []Attachment `json:"attachments,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`

	// Sequence is the store's insertion sequence, the tie-break for
	// identical timestamps and the cursor for incremental fetch.
	Sequence uint64 `json:"sequence"`

	IsExternal         bool    `json:"is_external"`
	ExternalSource     *Source `json:"external_source,omitempty"`
	ExternalSenderName *string `json:"external_sender_name,omitempty"`
}

// SentBy reports whether the message was sent by the given user.
func (m *Message) SentBy(userID string) bool {
	return m.SenderID != nil && *m.SenderID == userID
}

// SendMessageRequest is the request to send a new message. Exactly one of
// TargetUserID and TargetGroup must be set.
type SendMessageRequest struct {
	TargetUserID string       `json:"target_user_id,omitempty"`
	TargetGroup  string       `json:"target_group,omitempty"`
	Content      string       `json:"content"`
	Attachments  []Attachment `json:"attachments,omitempty"`

	// ClientMessageID enables best-effort send deduplication on retry.
	ClientMessageID string `json:"client_message_id,omitempty"`
}

// SendMessageResponse is the response after sending a message.
type SendMessageResponse struct {
	Message *Message `json:"message"`
}

// ListMessagesResponse is the response for listing a conversation thread.
type ListMessagesResponse struct {
	Messages     []Message `json:"messages"`
	LastSequence uint64    `json:"last_sequence"`
}

// IngestRequest is the External Ingestion Adapter entry payload.
type IngestRequest struct {
	TargetGroup string       `json:"target_group"`
	Source      Source       `json:"source"`
	SenderName  string       `json:"sender_name"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}
