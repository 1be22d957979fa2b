package device

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the PostgreSQL implementation.
type InMemoryRepository struct {
	mu      sync.RWMutex
	devices map[string]*Device // keyed by user ID
}

// NewInMemoryRepository creates a new in-memory device repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		devices: make(map[string]*Device),
	}
}

// Get retrieves the device registered for a user.
func (r *InMemoryRepository) Get(_ context.Context, userID string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[userID]
	if !ok {
		return nil, ErrDeviceNotFound
	}

	return copyDevice(device), nil
}

// Upsert creates or merges the record for a user.
func (r *InMemoryRepository) Upsert(_ context.Context, params UpsertParams) (*Device, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.devices[params.UserID]; ok {
		existing.ContactAddress = params.ContactAddress
		if params.PushToken != nil {
			existing.PushToken = *params.PushToken
		}
		existing.UpdatedAt = params.Now
		return copyDevice(existing), false, nil
	}

	device := &Device{
		UserID:         params.UserID,
		ContactAddress: params.ContactAddress,
		CreatedAt:      params.Now,
		UpdatedAt:      params.Now,
	}
	if params.PushToken != nil {
		device.PushToken = *params.PushToken
	}
	r.devices[params.UserID] = device
	return copyDevice(device), true, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
