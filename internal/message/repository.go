package message

import "context"

// Repository defines the interface for message persistence.
type Repository interface {
	// Insert persists a new pending message. The repository assigns Seq.
	Insert(ctx context.Context, msg *Message) error

	// Drain removes and returns every undelivered message for a user, newest
	// first. The read and the delete form one unit: either all returned
	// messages are removed, or on error none are. Concurrent drains for the
	// same user observe disjoint sets. No pending messages yields an empty
	// slice and a nil error.
	Drain(ctx context.Context, userID string) ([]*Message, error)

	// Ping checks that the underlying store is reachable.
	Ping(ctx context.Context) error
}
