package message

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and local development.
type InMemoryRepository struct {
	mu       sync.Mutex
	seq      int64
	messages map[string][]*Message // keyed by user ID
}

// NewInMemoryRepository creates a new in-memory message repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		messages: make(map[string][]*Message),
	}
}

// Insert persists a new pending message.
func (r *InMemoryRepository) Insert(_ context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	msg.Seq = r.seq
	r.messages[msg.UserID] = append(r.messages[msg.UserID], copyMessage(msg))
	return nil
}

// Drain removes and returns the user's undelivered messages, newest first.
func (r *InMemoryRepository) Drain(_ context.Context, userID string) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.messages[userID]
	drained := make([]*Message, 0, len(stored))
	var kept []*Message
	for _, msg := range stored {
		if msg.Delivered {
			kept = append(kept, msg)
			continue
		}
		drained = append(drained, copyMessage(msg))
	}

	if len(kept) == 0 {
		delete(r.messages, userID)
	} else {
		r.messages[userID] = kept
	}

	SortNewestFirst(drained)
	return drained, nil
}

// Ping always succeeds.
func (r *InMemoryRepository) Ping(context.Context) error {
	return nil
}

// Count returns the number of messages held for a user.
func (r *InMemoryRepository) Count(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages[userID])
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
