package device

import "context"

// Repository defines the interface for device persistence.
type Repository interface {
	// Get retrieves the device registered for a user.
	// Returns ErrDeviceNotFound if the user has never registered.
	Get(ctx context.Context, userID string) (*Device, error)

	// Upsert creates or merges the record for params.UserID and returns the
	// persisted snapshot. CreatedAt is preserved on update, and the push
	// token is only overwritten when params.PushToken is non-nil.
	// Returns true if a new record was created.
	Upsert(ctx context.Context, params UpsertParams) (*Device, bool, error)
}
