package message

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the message service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
	// NewID overrides message ID generation, for tests.
	NewID func() string
}

// Service provides the message store operations.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService creates a new message service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger.With().Str("component", "message").Logger(),
		now:    cfg.Now,
		newID:  cfg.NewID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = NewID
	}
	return s
}

// Enqueue persists a new pending message for the user and returns it.
// Any error is a storage fault.
func (s *Service) Enqueue(ctx context.Context, userID, text string) (*Message, error) {
	msg := &Message{
		ID:        s.newID(),
		UserID:    userID,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	s.logger.Debug().
		Str("user_id", userID).
		Str("message_id", msg.ID).
		Int("text_len", len(text)).
		Msg("message stored")

	return msg, nil
}

// Drain atomically removes and returns all pending messages for the user,
// newest first. On error nothing has been consumed.
func (s *Service) Drain(ctx context.Context, userID string) ([]*Message, error) {
	messages, err := s.repo.Drain(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("drain messages: %w", err)
	}

	if len(messages) > 0 {
		s.logger.Info().
			Str("user_id", userID).
			Int("count", len(messages)).
			Msg("messages drained")
	}

	return messages, nil
}

// Ping checks that the message store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
