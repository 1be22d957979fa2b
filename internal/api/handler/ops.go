package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/pushrelay/pushrelay/internal/api/models"
	"github.com/pushrelay/pushrelay/internal/api/response"
	"github.com/pushrelay/pushrelay/internal/resilience"
)

// readyTimeout bounds the store ping made by the readiness check.
const readyTimeout = 2 * time.Second

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsConfig holds the dependencies of the operational endpoints.
type OpsConfig struct {
	ServiceName string
	Version     string
	BuildTime   string
	// Store is pinged by the readiness check. Nil means always ready.
	Store Pinger
	// Channels reports push channel health. May be nil.
	Channels *resilience.Registry
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &OpsHandler{cfg: cfg, now: now}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(h.now()),
		Service: h.cfg.ServiceName,
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// Returns 503 when the message store cannot be reached.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.pingStore(r.Context()); err != nil {
		response.ServiceUnavailable(w, r, "message store unavailable")
		return
	}
	response.JSON(w, r, http.StatusOK, models.Health{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(h.now()),
		Service: h.cfg.ServiceName,
	})
}

// SystemStatus handles GET /v1/ops/status - store and push channel status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: []models.SubsystemStatus{h.storeStatus(r.Context())},
		Channels:   h.channelStatuses(),
	}

	for _, sub := range status.Subsystems {
		status.Status = worst(status.Status, sub.Status)
	}
	for _, ch := range status.Channels {
		// Messages are still stored when push is down.
		if ch.Status != models.HealthStatusOK {
			status.Status = worst(status.Status, models.HealthStatusDegraded)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) pingStore(ctx context.Context) error {
	if h.cfg.Store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	return h.cfg.Store.Ping(ctx)
}

func (h *OpsHandler) storeStatus(ctx context.Context) models.SubsystemStatus {
	sub := models.SubsystemStatus{Name: "message-store", Status: models.HealthStatusOK}
	if err := h.pingStore(ctx); err != nil {
		detail := err.Error()
		sub.Status = models.HealthStatusFail
		sub.Detail = &detail
	}
	return sub
}

func (h *OpsHandler) channelStatuses() []models.ChannelStatus {
	channels := []models.ChannelStatus{}
	if h.cfg.Channels == nil {
		return channels
	}

	for _, health := range h.cfg.Channels.GetAllHealth() {
		ch := models.ChannelStatus{Channel: health.Name, Status: models.HealthStatusOK}
		switch {
		case health.IsUnhealthy():
			ch.Status = models.HealthStatusFail
		case health.IsDegraded():
			ch.Status = models.HealthStatusDegraded
		}
		if health.LastSuccessAt != nil {
			ts := models.Timestamp(*health.LastSuccessAt)
			ch.LastSuccessAt = &ts
		}
		if health.LastFailureAt != nil {
			ts := models.Timestamp(*health.LastFailureAt)
			ch.LastFailureAt = &ts
		}
		if health.LastError != "" {
			msg := health.LastError
			ch.Message = &msg
		}
		channels = append(channels, ch)
	}
	return channels
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
