package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/internal/push"
	"github.com/responderhq/opschat/internal/store"
	"github.com/responderhq/opschat/pkg/errs"
	"github.com/responderhq/opschat/pkg/logger"
	"github.com/responderhq/opschat/pkg/metrics"
)

// IngestService normalizes inbound messages from external dispatch sources
// into message records. It bypasses the user send-authorization path; the
// gateway credential on the ingest endpoint is checked by middleware before
// requests reach this service.
type IngestService struct {
	msgs   store.MessageStore
	groups *GroupService
	sink   push.Sink
	logger *logger.Logger
	now    func() time.Time
}

// NewIngestService creates an ingest service.
func NewIngestService(backend store.Backend, groups *GroupService, sink push.Sink, log *logger.Logger) *IngestService {
	return &IngestService{
		msgs:   backend,
		groups: groups,
		sink:   sink,
		logger: log,
		now:    time.Now,
	}
}

// Ingest validates and appends one external message to the target group's
// conversation.
func (s *IngestService) Ingest(ctx context.Context, req *model.IngestRequest) (*model.Message, error) {
	if !model.ValidSource(req.Source) {
		return nil, errs.Validationf("unknown external source %q", req.Source)
	}
	if req.SenderName == "" {
		return nil, errs.Validationf("sender name is required")
	}

	g, err := s.groups.Resolve(ctx, req.TargetGroup)
	if err != nil {
		return nil, err
	}
	key := model.GroupConversationKey(g.ID)

	src := req.Source
	senderName := req.SenderName
	msg := &model.Message{
		ID:                 uuid.Must(uuid.NewV7()).String(),
		ConversationKey:    key,
		Content:            req.Content,
		Attachments:        req.Attachments,
		CreatedAt:          s.now(),
		IsExternal:         true,
		ExternalSource:     &src,
		ExternalSenderName: &senderName,
	}

	stored, err := s.msgs.Append(ctx, msg, "")
	if err != nil {
		return nil, err
	}

	if len(g.Members) > 0 {
		n := push.Notification{
			ConversationKey: key,
			MessageID:       stored.ID,
			SenderName:      senderName,
			Preview:         preview(stored.Content),
			Recipients:      append([]string(nil), g.Members...),
		}
		if err := s.sink.MessageAppended(ctx, n); err != nil {
			metrics.PushNotifyTotal.WithLabelValues("error").Inc()
			s.logger.Warn("push sink rejected ingest notification", zap.Error(err))
		} else {
			metrics.PushNotifyTotal.WithLabelValues("ok").Inc()
		}
	}

	metrics.IngestTotal.WithLabelValues(string(req.Source)).Inc()
	metrics.RecordMessage(string(model.ConversationGroup), "external")

	s.logger.Info("external message ingested",
		zap.String("message_id", stored.ID),
		zap.String("source", string(req.Source)),
		zap.String("group_id", g.ID),
	)
	return stored, nil
}
