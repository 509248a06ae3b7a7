package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/internal/push"
	"github.com/responderhq/opschat/internal/store/memory"
	"github.com/responderhq/opschat/pkg/logger"
)

type fakeSink struct {
	notifications []push.Notification
	tokens        []push.TokenRegistration
	fail          bool
}

func (f *fakeSink) MessageAppended(ctx context.Context, n push.Notification) error {
	if f.fail {
		return errors.New("sink down")
	}
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeSink) RegisterToken(ctx context.Context, reg push.TokenRegistration) error {
	if f.fail {
		return errors.New("sink down")
	}
	f.tokens = append(f.tokens, reg)
	return nil
}

type fixture struct {
	store     *memory.Store
	sink      *fakeSink
	groups    *GroupService
	unread    *UnreadTracker
	messages  *MessageService
	directory *Directory
	ingest    *IngestService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()
	st := memory.New()
	sink := &fakeSink{}
	groups := NewGroupService(st, log)
	unread := NewUnreadTracker(st)
	return &fixture{
		store:     st,
		sink:      sink,
		groups:    groups,
		unread:    unread,
		messages:  NewMessageService(st, groups, unread, sink, log),
		directory: NewDirectory(st, groups, unread),
		ingest:    NewIngestService(st, groups, sink, log),
	}
}

func (f *fixture) mustCreateGroup(t *testing.T, creator model.Actor, name string, members ...string) *model.Group {
	t.Helper()
	g, err := f.groups.CreateCustom(context.Background(), creator, &model.CreateGroupRequest{
		Name:      name,
		MemberIDs: members,
	})
	require.NoError(t, err)
	return g
}

// appendAt drives the store directly with an explicit timestamp, for tests
// that need deterministic read-cursor arithmetic.
func (f *fixture) appendAt(t *testing.T, key model.Key, sender, content string, at time.Time) model.Message {
	t.Helper()
	senderID := sender
	stored, err := f.store.Append(context.Background(), &model.Message{
		ID:              "m-" + content,
		ConversationKey: key,
		SenderID:        &senderID,
		SenderName:      sender,
		Content:         content,
		CreatedAt:       at,
	}, "")
	require.NoError(t, err)
	return *stored
}

var (
	alice  = model.Actor{ID: "alice", Name: "Alice", Role: model.RoleMember}
	bob    = model.Actor{ID: "bob", Name: "Bob", Role: model.RoleMember}
	admin  = model.Actor{ID: "root", Name: "Root", Role: model.RoleAdmin}
	opUser = model.Actor{ID: "ops", Name: "Ops", Role: model.RoleOperator}
)
