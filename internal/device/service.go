package device

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/pushrelay/pushrelay/internal/api/models"
)

// Validation constants.
const (
	MaxUserIDLength    = 128
	MaxPushTokenLength = 4096
)

// contactAddressRegex is an E.164-like phone number, checked after
// dashes and whitespace have been removed.
var contactAddressRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// contactSeparators are stripped before the contact address is checked.
var contactSeparators = regexp.MustCompile(`[-\s]`)

// RegisterInput is a registration request after transport decoding.
type RegisterInput struct {
	UserID         string
	ContactAddress string
	// PushToken is optional. Nil or blank leaves any stored token in place.
	PushToken *string
}

// Registration is the result of a successful Register call.
type Registration struct {
	Device       *Device
	Created      bool
	RegisteredAt time.Time
}

// ServiceConfig holds configuration for the device service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service provides device registry operations.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new device service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger.With().Str("component", "device").Logger(),
		now:    now,
	}
}

// Register validates the input and upserts the device record for the user.
// Returns a *models.ValidationError if the input is rejected; nothing is
// written in that case.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Registration, error) {
	input.UserID = strings.TrimSpace(input.UserID)
	input.ContactAddress = strings.TrimSpace(input.ContactAddress)

	if fieldErrors := validateRegisterInput(input); len(fieldErrors) > 0 {
		return nil, &models.ValidationError{Errors: fieldErrors}
	}

	var token *string
	if input.PushToken != nil {
		if trimmed := strings.TrimSpace(*input.PushToken); trimmed != "" {
			token = &trimmed
		}
	}

	now := s.now().UTC()
	device, created, err := s.repo.Upsert(ctx, UpsertParams{
		UserID:         input.UserID,
		ContactAddress: input.ContactAddress,
		PushToken:      token,
		Now:            now,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", device.UserID).
		Bool("created", created).
		Bool("token_supplied", token != nil).
		Str("token_last4", device.TokenLast4()).
		Msg("device registered")

	return &Registration{
		Device:       device,
		Created:      created,
		RegisteredAt: now,
	}, nil
}

// Lookup returns the device registered for a user, or ErrDeviceNotFound.
func (s *Service) Lookup(ctx context.Context, userID string) (*Device, error) {
	return s.repo.Get(ctx, userID)
}

// NormalizeContactAddress strips the separators tolerated in phone numbers.
func NormalizeContactAddress(address string) string {
	return contactSeparators.ReplaceAllString(address, "")
}

// ValidContactAddress reports whether address is an acceptable phone number.
func ValidContactAddress(address string) bool {
	return contactAddressRegex.MatchString(NormalizeContactAddress(address))
}

func validateRegisterInput(input RegisterInput) []models.FieldError {
	var errs []models.FieldError

	if input.UserID == "" {
		errs = append(errs, models.FieldError{Field: "userId", Message: "is required", Code: models.CodeRequired})
	} else if utf8.RuneCountInString(input.UserID) > MaxUserIDLength {
		errs = append(errs, models.FieldError{Field: "userId", Message: "must be at most 128 characters", Code: models.CodeTooLong})
	}

	if input.ContactAddress == "" {
		errs = append(errs, models.FieldError{Field: "contactAddress", Message: "is required", Code: models.CodeRequired})
	} else if !ValidContactAddress(input.ContactAddress) {
		errs = append(errs, models.FieldError{Field: "contactAddress", Message: "must be a valid phone number", Code: models.CodeInvalidFormat})
	}

	if input.PushToken != nil && len(*input.PushToken) > MaxPushTokenLength {
		errs = append(errs, models.FieldError{Field: "pushToken", Message: "must be at most 4096 bytes", Code: models.CodeTooLong})
	}

	return errs
}
