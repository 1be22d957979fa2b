// Package worker consumes send requests published to Pub/Sub and runs them
// through the relay, so backends can enqueue messages without waiting on
// the HTTP API.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/api/models"
)

// Disposition is what to do with a received message.
type Disposition int

const (
	// Ack removes the message from the subscription.
	Ack Disposition = iota
	// Nack asks Pub/Sub to redeliver the message later.
	Nack
)

func (d Disposition) String() string {
	if d == Nack {
		return "nack"
	}
	return "ack"
}

// Relay is the send operation the worker runs for each message.
type Relay interface {
	SendMessage(ctx context.Context, req *models.SendRequest) (*models.SendResponse, error)
}

// SendJob is the Pub/Sub payload of a send request.
type SendJob struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

// SendWorker turns send jobs into relay sends.
type SendWorker struct {
	relay  Relay
	logger zerolog.Logger
}

// NewSendWorker creates a new send worker.
func NewSendWorker(relay Relay, logger zerolog.Logger) *SendWorker {
	return &SendWorker{
		relay:  relay,
		logger: logger.With().Str("component", "worker").Logger(),
	}
}

// Handle processes one job payload. Accepted sends and payloads that can
// never succeed are acked; storage faults are nacked for redelivery.
func (w *SendWorker) Handle(ctx context.Context, messageID string, data []byte) Disposition {
	start := time.Now()
	logger := w.logger.With().Str("pubsub_message_id", messageID).Logger()

	var job SendJob
	if err := json.Unmarshal(data, &job); err != nil {
		logger.Error().Err(err).Msg("dropping unparseable send job")
		return Ack
	}

	resp, err := w.relay.SendMessage(ctx, &models.SendRequest{UserID: job.UserID, Text: job.Text})
	if err != nil {
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			logger.Warn().Str("detail", validationErr.Detail()).Msg("dropping invalid send job")
			return Ack
		}
		logger.Error().Err(err).Str("user_id", job.UserID).Msg("send job failed, requesting redelivery")
		return Nack
	}

	logger.Info().
		Str("user_id", resp.UserID).
		Str("message_id", resp.MessageID).
		Str("outcome", resp.Outcome).
		Dur("duration", time.Since(start)).
		Msg("send job completed")
	return Ack
}
