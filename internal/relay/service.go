// Package relay implements the register, send and fetch operations on top
// of the device registry, the message store and the push dispatcher.
package relay

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pushrelay/pushrelay/internal/api/models"
	"github.com/pushrelay/pushrelay/internal/device"
	"github.com/pushrelay/pushrelay/internal/message"
	"github.com/pushrelay/pushrelay/internal/push"
)

const tracerName = "github.com/pushrelay/pushrelay/internal/relay"

// Registry is the device registry used by the relay.
type Registry interface {
	Register(ctx context.Context, input device.RegisterInput) (*device.Registration, error)
}

// Store is the message store used by the relay.
type Store interface {
	Enqueue(ctx context.Context, userID, text string) (*message.Message, error)
	Drain(ctx context.Context, userID string) ([]*message.Message, error)
}

// Dispatcher attempts push delivery of a stored message.
type Dispatcher interface {
	Dispatch(ctx context.Context, req push.Request) push.Outcome
}

// ServiceConfig holds the collaborators of the relay service.
type ServiceConfig struct {
	Devices    Registry
	Messages   Store
	Dispatcher Dispatcher
	Logger     zerolog.Logger
}

// Service provides the relay operations.
type Service struct {
	devices    Registry
	messages   Store
	dispatcher Dispatcher
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewService creates a new relay service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		devices:    cfg.Devices,
		messages:   cfg.Messages,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger.With().Str("component", "relay").Logger(),
		tracer:     otel.Tracer(tracerName),
	}
}

// RegisterDevice registers or updates the caller's device.
// Returns *models.ValidationError for rejected input.
func (s *Service) RegisterDevice(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResponse, error) {
	ctx, span := s.tracer.Start(ctx, "relay.register")
	defer span.End()

	req.Normalize()
	reg, err := s.devices.Register(ctx, device.RegisterInput{
		UserID:         req.UserID,
		ContactAddress: req.ContactAddress,
		PushToken:      req.PushToken,
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("relay.user_id", reg.Device.UserID),
		attribute.Bool("relay.device_created", reg.Created),
	)

	return &models.RegisterResponse{
		UserID:         reg.Device.UserID,
		ContactAddress: reg.Device.ContactAddress,
		RegisteredAt:   models.Timestamp(reg.RegisteredAt),
	}, nil
}

// SendMessage stores the message and then attempts a push. Once the
// message is stored the call succeeds; the push outcome is only reported.
func (s *Service) SendMessage(ctx context.Context, req *models.SendRequest) (*models.SendResponse, error) {
	ctx, span := s.tracer.Start(ctx, "relay.send")
	defer span.End()

	userID := strings.TrimSpace(req.UserID)
	if fieldErrors := validateSend(userID, req.Text); len(fieldErrors) > 0 {
		err := &models.ValidationError{Errors: fieldErrors}
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("relay.user_id", userID))

	msg, err := s.messages.Enqueue(ctx, userID, req.Text)
	if err != nil {
		recordError(span, err)
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to store message")
		return nil, err
	}

	outcome := s.dispatcher.Dispatch(ctx, push.Request{
		UserID:    msg.UserID,
		MessageID: msg.ID,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	})

	span.SetAttributes(
		attribute.String("relay.message_id", msg.ID),
		attribute.String("relay.push_outcome", string(outcome.Status)),
	)

	return &models.SendResponse{
		UserID:            msg.UserID,
		ContactAddress:    outcome.ContactAddress,
		MessageID:         msg.ID,
		NotificationSent:  outcome.Sent(),
		Outcome:           string(outcome.Status),
		ProviderMessageID: outcome.ProviderMessageID,
		Detail:            outcome.Reason,
	}, nil
}

// FetchMessages drains the user's pending messages, newest first.
// An empty result is not an error.
func (s *Service) FetchMessages(ctx context.Context, userID string) (*models.FetchResponse, error) {
	ctx, span := s.tracer.Start(ctx, "relay.fetch")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if fieldErr := validateUserID(userID); fieldErr != nil {
		err := &models.ValidationError{Errors: []models.FieldError{*fieldErr}}
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("relay.user_id", userID))

	drained, err := s.messages.Drain(ctx, userID)
	if err != nil {
		recordError(span, err)
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to drain messages")
		return nil, err
	}

	messages := make([]models.PendingMessage, 0, len(drained))
	for _, m := range drained {
		messages = append(messages, models.PendingMessage{
			MessageID: m.ID,
			Text:      m.Text,
			CreatedAt: models.Timestamp(m.CreatedAt),
		})
	}
	span.SetAttributes(attribute.Int("relay.drained_count", len(messages)))

	return &models.FetchResponse{
		UserID:   userID,
		Messages: messages,
		Count:    len(messages),
	}, nil
}

// validateUserID applies the registry's user ID rules, so no message is
// queued for an ID that could never register.
func validateUserID(userID string) *models.FieldError {
	switch {
	case userID == "":
		return &models.FieldError{Field: "userId", Message: "is required", Code: models.CodeRequired}
	case utf8.RuneCountInString(userID) > device.MaxUserIDLength:
		return &models.FieldError{Field: "userId", Message: "must be at most 128 characters", Code: models.CodeTooLong}
	}
	return nil
}

func validateSend(userID, text string) []models.FieldError {
	var errs []models.FieldError
	if fieldErr := validateUserID(userID); fieldErr != nil {
		errs = append(errs, *fieldErr)
	}
	if strings.TrimSpace(text) == "" {
		errs = append(errs, models.FieldError{Field: "text", Message: "is required", Code: models.CodeRequired})
	}
	return errs
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
