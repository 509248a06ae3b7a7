package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/responderhq/opschat/internal/model"
)

// ValidateMessageContent validates message content size and encoding.
// Emptiness is not checked here: a message may carry attachments only.
func ValidateMessageContent(content string) error {
	if len(content) > 100000 { // ~100KB limit
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateGroupName validates a group name.
func ValidateGroupName(name string) error {
	if len(name) > 128 {
		return errors.New("group name exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("group name must be valid UTF-8")
	}
	return nil
}

// ValidateAttachments validates attachment metadata shape; the blobs
// themselves live in the external store.
func ValidateAttachments(attachments []model.Attachment) error {
	if len(attachments) > 10 {
		return errors.New("too many attachments")
	}
	for _, a := range attachments {
		if a.Name == "" || a.URL == "" {
			return errors.New("attachment needs a name and a url")
		}
		if a.Size < 0 {
			return errors.New("attachment size cannot be negative")
		}
	}
	return nil
}
