package service

import (
	"context"
	"sort"
	"time"

	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/internal/store"
	"github.com/responderhq/opschat/pkg/metrics"
)

// Directory merges a user's group and direct threads into one ordered,
// summarized list. It owns no state of its own; every poll recomputes from
// the stores.
type Directory struct {
	msgs   store.MessageStore
	groups *GroupService
	unread *UnreadTracker
}

// NewDirectory creates a conversation directory.
func NewDirectory(backend store.Backend, groups *GroupService, unread *UnreadTracker) *Directory {
	return &Directory{msgs: backend, groups: groups, unread: unread}
}

// List returns the user's conversations sorted by latest message, newest
// first. Conversations with no messages sort last, stable by key.
func (d *Directory) List(ctx context.Context, userID string) ([]model.Conversation, error) {
	start := time.Now()
	defer func() {
		metrics.DirectoryDuration.Observe(time.Since(start).Seconds())
	}()

	groups, err := d.groups.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	partners, err := d.msgs.DirectPartners(ctx, userID)
	if err != nil {
		return nil, err
	}

	conversations := make([]model.Conversation, 0, len(groups)+len(partners))

	for i := range groups {
		g := groups[i]
		conv, err := d.summarize(ctx, userID, model.Conversation{
			Type:  model.ConversationGroup,
			Key:   model.GroupConversationKey(g.ID),
			Group: &g,
		})
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}

	for _, partner := range partners {
		conv, err := d.summarize(ctx, userID, model.Conversation{
			Type:      model.ConversationDirect,
			Key:       model.DirectConversationKey(userID, partner),
			PartnerID: partner,
		})
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i].LatestMessage, conversations[j].LatestMessage
		switch {
		case a == nil && b == nil:
			return conversations[i].Key < conversations[j].Key
		case a == nil:
			return false
		case b == nil:
			return true
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Sequence > b.Sequence
	})

	return conversations, nil
}

func (d *Directory) summarize(ctx context.Context, userID string, conv model.Conversation) (model.Conversation, error) {
	latest, err := d.msgs.Latest(ctx, conv.Key)
	if err != nil {
		return conv, err
	}
	conv.LatestMessage = latest

	count, err := d.unread.UnreadCount(ctx, userID, conv.Key)
	if err != nil {
		return conv, err
	}
	conv.UnreadCount = count
	return conv, nil
}
