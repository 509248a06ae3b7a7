package service

import (
	"context"
	"time"

	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/internal/store"
)

// UnreadTracker computes unread counts lazily from the message store and
// the read cursors. No running counter exists, so there is nothing to drift.
type UnreadTracker struct {
	msgs    store.MessageStore
	cursors store.CursorStore
}

// NewUnreadTracker creates an unread tracker over the backend.
func NewUnreadTracker(backend store.Backend) *UnreadTracker {
	return &UnreadTracker{msgs: backend, cursors: backend}
}

// UnreadCount returns the number of messages in the conversation newer than
// the user's cursor, excluding the user's own.
func (t *UnreadTracker) UnreadCount(ctx context.Context, userID string, key model.Key) (int, error) {
	var lastRead time.Time
	cur, err := t.cursors.GetCursor(ctx, userID, key)
	if err != nil {
		return 0, err
	}
	if cur != nil {
		lastRead = cur.LastReadAt
	}

	msgs, err := t.msgs.List(ctx, key, 0)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range msgs {
		if m.SentBy(userID) {
			continue
		}
		if m.CreatedAt.After(lastRead) {
			count++
		}
	}
	return count, nil
}

// MarkRead advances the user's cursor after a thread fetch. The cursor moves
// to the CreatedAt of the newest message the fetch actually returned, never
// to wall-clock now, so a message appended while the response is in flight
// stays unread.
func (t *UnreadTracker) MarkRead(ctx context.Context, userID string, key model.Key, fetched []model.Message) error {
	if len(fetched) == 0 {
		return nil
	}
	// Take the max over the batch rather than the last element: the batch
	// is contractually ordered, but a cursor below any fetched message
	// would leave it counted unread forever.
	newest := fetched[0].CreatedAt
	for _, m := range fetched[1:] {
		if m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}
	}
	return t.cursors.SetCursor(ctx, userID, key, newest)
}
