package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes notifications to the structured log. It is the default sink
// when no broker is configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(_ context.Context, n Notification) error {
	s.logger.Info("notification",
		zap.String("user_id", n.UserID),
		zap.String("ticket_id", n.TicketID),
		zap.String("severity", string(n.Severity)),
		zap.String("title", n.Title),
		zap.String("message", n.Message))
	return nil
}

func (s *LogSink) Close() error { return nil }
