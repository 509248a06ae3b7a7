package service

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/internal/push"
	"github.com/responderhq/opschat/internal/store"
	"github.com/responderhq/opschat/pkg/errs"
	"github.com/responderhq/opschat/pkg/logger"
	"github.com/responderhq/opschat/pkg/metrics"
)

// MessageService handles sending, thread fetches and conversation clearing.
type MessageService struct {
	msgs    store.MessageStore
	cursors store.CursorStore
	groups  *GroupService
	unread  *UnreadTracker
	gate    Gate
	sink    push.Sink
	logger  *logger.Logger
	now     func() time.Time
}

// NewMessageService creates a message service.
func NewMessageService(
	backend store.Backend,
	groups *GroupService,
	unread *UnreadTracker,
	sink push.Sink,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		msgs:    backend,
		cursors: backend,
		groups:  groups,
		unread:  unread,
		sink:    sink,
		logger:  log,
		now:     time.Now,
	}
}

// Send appends a message from an authenticated user to a direct partner or
// a group the user belongs to.
func (s *MessageService) Send(ctx context.Context, actor model.Actor, req *model.SendMessageRequest) (*model.Message, error) {
	if (req.TargetUserID == "") == (req.TargetGroup == "") {
		return nil, errs.Validationf("exactly one of target_user_id and target_group must be set")
	}

	var key model.Key
	var recipients []string

	if req.TargetUserID != "" {
		if req.TargetUserID == actor.ID {
			return nil, errs.Validationf("cannot message yourself")
		}
		key = model.DirectConversationKey(actor.ID, req.TargetUserID)
		recipients = []string{req.TargetUserID}
	} else {
		g, err := s.groups.Resolve(ctx, req.TargetGroup)
		if err != nil {
			return nil, err
		}
		if !g.HasMember(actor.ID) {
			return nil, errs.Authorizationf("not a member of group %q", g.Name)
		}
		key = model.GroupConversationKey(g.ID)
		for _, m := range g.Members {
			if m != actor.ID {
				recipients = append(recipients, m)
			}
		}
	}

	senderID := actor.ID
	msg := &model.Message{
		ID:              uuid.Must(uuid.NewV7()).String(),
		ConversationKey: key,
		SenderID:        &senderID,
		SenderName:      actor.Name,
		Content:         req.Content,
		Attachments:     req.Attachments,
		CreatedAt:       s.now(),
	}

	stored, err := s.msgs.Append(ctx, msg, req.ClientMessageID)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, stored, recipients)
	metrics.RecordMessage(string(key.Type()), "internal")

	s.logger.Info("message sent",
		zap.String("message_id", stored.ID),
		zap.String("conversation_key", string(key)),
		zap.Uint64("sequence", stored.Sequence),
	)
	return stored, nil
}

// ListThread returns the conversation's messages after sinceSeq in stable
// ascending order. Fetching implies reading: the caller's cursor advances to
// the newest returned message.
func (s *MessageService) ListThread(ctx context.Context, userID string, key model.Key, sinceSeq uint64) (*model.ListMessagesResponse, error) {
	if err := s.checkParticipant(ctx, userID, key); err != nil {
		return nil, err
	}

	msgs, err := s.msgs.List(ctx, key, sinceSeq)
	if err != nil {
		return nil, err
	}

	if err := s.unread.MarkRead(ctx, userID, key, msgs); err != nil {
		return nil, err
	}

	var lastSeq uint64
	if len(msgs) > 0 {
		lastSeq = msgs[len(msgs)-1].Sequence
	}
	return &model.ListMessagesResponse{Messages: msgs, LastSequence: lastSeq}, nil
}

// Clear deletes every message of the conversation and resets all of its
// read cursors. The group and its membership survive. Idempotent.
func (s *MessageService) Clear(ctx context.Context, actor model.Actor, key model.Key) error {
	var g *model.Group
	switch key.Type() {
	case model.ConversationDirect:
		if _, ok := key.Partner(actor.ID); !ok {
			return errs.Authorizationf("not a participant of this conversation")
		}
	case model.ConversationGroup:
		var err error
		g, err = s.groups.Resolve(ctx, key.GroupID())
		if err != nil {
			return err
		}
		// The callout group is cleared on role alone; every other group
		// also requires membership.
		callout := g.Kind == model.KindPredefined && g.Subtype == model.SubtypeCallout
		if !callout && !g.HasMember(actor.ID) {
			return errs.Authorizationf("not a member of group %q", g.Name)
		}
	}
	if err := s.gate.CanClear(actor, g); err != nil {
		metrics.ClearsTotal.WithLabelValues("denied").Inc()
		return err
	}

	if err := s.msgs.Clear(ctx, key); err != nil {
		metrics.ClearsTotal.WithLabelValues("error").Inc()
		return err
	}
	if err := s.cursors.ResetCursors(ctx, key); err != nil {
		return err
	}

	metrics.ClearsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("conversation cleared",
		zap.String("conversation_key", string(key)),
		zap.String("actor_id", actor.ID),
	)
	return nil
}

// checkParticipant verifies the user may touch the conversation: direct
// keys must contain the user, group keys require membership.
func (s *MessageService) checkParticipant(ctx context.Context, userID string, key model.Key) error {
	switch key.Type() {
	case model.ConversationDirect:
		if _, ok := key.Partner(userID); !ok {
			return errs.Authorizationf("not a participant of this conversation")
		}
		return nil
	case model.ConversationGroup:
		g, err := s.groups.Resolve(ctx, key.GroupID())
		if err != nil {
			return err
		}
		if !g.HasMember(userID) {
			return errs.Authorizationf("not a member of group %q", g.Name)
		}
		return nil
	}
	return errs.Validationf("malformed conversation key")
}

// notify posts into the push sink. Delivery is the collaborator's problem;
// a sink failure never fails the send.
func (s *MessageService) notify(ctx context.Context, msg *model.Message, recipients []string) {
	if len(recipients) == 0 {
		return
	}
	n := push.Notification{
		ConversationKey: msg.ConversationKey,
		MessageID:       msg.ID,
		SenderName:      msg.SenderName,
		Preview:         preview(msg.Content),
		Recipients:      recipients,
	}
	if msg.IsExternal && msg.ExternalSenderName != nil {
		n.SenderName = *msg.ExternalSenderName
	}
	if err := s.sink.MessageAppended(ctx, n); err != nil {
		metrics.PushNotifyTotal.WithLabelValues("error").Inc()
		s.logger.Warn("push sink rejected notification", zap.Error(err))
		return
	}
	metrics.PushNotifyTotal.WithLabelValues("ok").Inc()
}

func preview(content string) string {
	const max = 120
	if len(content) <= max {
		return content
	}
	// Back off to a rune boundary so the cut never emits invalid UTF-8.
	cut := max
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}
