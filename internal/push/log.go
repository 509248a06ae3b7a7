package push

import (
	"context"

	"go.uber.org/zap"

	"github.com/responderhq/opschat/pkg/logger"
)

// LogSink logs posts instead of delivering them. Default when no push
// transport is configured, and used by tests.
type LogSink struct {
	logger *logger.Logger
}

// NewLogSink creates a logging sink.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) MessageAppended(ctx context.Context, n Notification) error {
	s.logger.Debug("push notification",
		zap.String("conversation_key", string(n.ConversationKey)),
		zap.String("message_id", n.MessageID),
		zap.Int("recipients", len(n.Recipients)),
	)
	return nil
}

func (s *LogSink) RegisterToken(ctx context.Context, reg TokenRegistration) error {
	s.logger.Debug("push token registered",
		zap.String("user_id", reg.UserID),
	)
	return nil
}
