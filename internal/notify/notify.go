// Package notify delivers booking results back to the people who asked for
// them.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrDeliveryFailed marks a notification that was built correctly but never
// reached the recipient.
var ErrDeliveryFailed = errors.New("notification delivery failed")

// Sink sends a message to one delivery channel.
type Sink interface {
	Send(ctx context.Context, chatID, text string) error
}

// LogSink writes notifications to the log. It backs deployments without a
// bot token.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("notify")}
}

func (s *LogSink) Send(_ context.Context, chatID, text string) error {
	s.log.Info("notification",
		zap.String("chat_id", chatID),
		zap.String("text", text))
	return nil
}
