package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ChannelHealth is a point-in-time view of one delivery channel.
type ChannelHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// IsHealthy returns true if the breaker is closed.
func (h *ChannelHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded returns true if the breaker is half-open.
func (h *ChannelHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy returns true if the breaker is open.
func (h *ChannelHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry tracks channel clients and the outcome of their last calls.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*registeredChannel
	now      func() time.Time
}

type registeredChannel struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty channel registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]*registeredChannel),
		now:      time.Now,
	}
}

// Register adds a client under name, replacing any previous entry.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[name] = &registeredChannel{client: client}
}

// Unregister removes a channel from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, name)
}

// RecordSuccess stamps the last successful call for a channel.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[name]; ok {
		now := r.now()
		ch.lastSuccessAt = &now
	}
}

// RecordFailure stamps the last failed call for a channel.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[name]; ok {
		now := r.now()
		ch.lastFailureAt = &now
		if err != nil {
			ch.lastError = err.Error()
		}
	}
}

// GetHealth returns the health of one channel, or nil if it is unknown.
func (r *Registry) GetHealth(name string) *ChannelHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[name]
	if !ok {
		return nil
	}
	return ch.health(name)
}

// GetAllHealth returns the health of every channel, sorted by name.
func (r *Registry) GetAllHealth() []*ChannelHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*ChannelHealth, 0, len(r.channels))
	for name, ch := range r.channels {
		health = append(health, ch.health(name))
	}
	sort.Slice(health, func(i, j int) bool { return health[i].Name < health[j].Name })
	return health
}

// ChannelCount returns the number of registered channels.
func (r *Registry) ChannelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

func (ch *registeredChannel) health(name string) *ChannelHealth {
	return &ChannelHealth{
		Name:          name,
		CircuitState:  ch.client.CircuitBreakerState(),
		Counts:        ch.client.CircuitBreakerCounts(),
		LastSuccessAt: ch.lastSuccessAt,
		LastFailureAt: ch.lastFailureAt,
		LastError:     ch.lastError,
	}
}
