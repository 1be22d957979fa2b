package worker

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubConfig holds configuration for the Pub/Sub consumer.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	MaxOutstanding   int
	Worker           *SendWorker
	Logger           zerolog.Logger
}

// PubSubHandler receives send jobs from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	worker           *SendWorker
	logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	maxOutstanding := cfg.MaxOutstanding
	if maxOutstanding <= 0 {
		maxOutstanding = 10
	}
	subscriber.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	subscriber.ReceiveSettings.MaxExtension = 2 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		worker:           cfg.Worker,
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.logger.Debug().
			Str("pubsub_message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Msg("received pubsub message")

		switch h.worker.Handle(ctx, msg.ID, msg.Data) {
		case Nack:
			msg.Nack()
		default:
			msg.Ack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}
