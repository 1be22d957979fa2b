package push

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogSender writes notifications to the log instead of a push channel.
// Used for local development.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "push.log").Logger()}
}

// Send logs the notification and returns a generated message ID.
func (s *LogSender) Send(_ context.Context, n Notification) (string, error) {
	id := "log-" + uuid.New().String()
	s.logger.Info().
		Str("provider_message_id", id).
		Str("title", n.Title).
		Str("body", n.Body).
		Str("user_id", n.Data[DataUserID]).
		Str("message_id", n.Data[DataMessageID]).
		Msg("push notification (not sent)")
	return id, nil
}

// Ensure LogSender implements Sender.
var _ Sender = (*LogSender)(nil)
