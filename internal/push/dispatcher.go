package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pushrelay/pushrelay/internal/device"
)

// DeviceLookup resolves the device registered for a user.
type DeviceLookup interface {
	Lookup(ctx context.Context, userID string) (*device.Device, error)
}

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	Devices DeviceLookup
	Sender  Sender
	Logger  zerolog.Logger
	Metrics *Metrics

	// Title is the fixed notification title. Defaults to DefaultTitle.
	Title string

	// Timeout bounds one dispatch, including the device lookup and any
	// wait for the rate limiter. Defaults to 10 seconds.
	Timeout time.Duration

	// RatePerSecond limits outbound sends. Zero or less disables limiting.
	RatePerSecond float64
	Burst         int
}

// Dispatcher attempts best-effort delivery of stored messages.
type Dispatcher struct {
	devices DeviceLookup
	sender  Sender
	logger  zerolog.Logger
	metrics *Metrics
	title   string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		devices: cfg.Devices,
		sender:  cfg.Sender,
		logger:  cfg.Logger.With().Str("component", "push").Logger(),
		metrics: cfg.Metrics,
		title:   cfg.Title,
		timeout: cfg.Timeout,
	}
	if d.title == "" {
		d.title = DefaultTitle
	}
	if d.timeout <= 0 {
		d.timeout = 10 * time.Second
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return d
}

// Dispatch looks up the user's device and tries to push a notification
// for the stored message. It never fails: unknown users, missing tokens and
// channel errors are all reported through the returned Outcome.
//
// The attempt is detached from ctx cancellation and bounded by the
// configured timeout, so a caller that goes away does not abort it.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Outcome {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	outcome := d.safeDispatch(ctx, req)
	d.metrics.Record(outcome.Status, time.Since(start))

	event := d.logger.Info()
	if outcome.Status == StatusDeliveryFailed {
		event = d.logger.Warn()
	}
	event.
		Str("user_id", req.UserID).
		Str("message_id", req.MessageID).
		Str("outcome", string(outcome.Status)).
		Str("reason", outcome.Reason).
		Str("provider_message_id", outcome.ProviderMessageID).
		Dur("duration", time.Since(start)).
		Msg("push dispatch")

	return outcome
}

// safeDispatch turns a panicking sender into a failed outcome.
func (d *Dispatcher) safeDispatch(ctx context.Context, req Request) (outcome Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = Outcome{Status: StatusDeliveryFailed, Reason: fmt.Sprintf("panic: %v", rec)}
		}
	}()
	return d.dispatch(ctx, req)
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) Outcome {
	dev, err := d.devices.Lookup(ctx, req.UserID)
	if errors.Is(err, device.ErrDeviceNotFound) {
		return Outcome{Status: StatusSkippedUserUnknown, Reason: "user is not registered"}
	}
	if err != nil {
		return Outcome{Status: StatusDeliveryFailed, Reason: fmt.Sprintf("device lookup: %v", err)}
	}
	if !dev.HasToken() {
		return Outcome{Status: StatusSkippedNoToken, Reason: "no push token registered", ContactAddress: dev.ContactAddress}
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return Outcome{
				Status:         StatusDeliveryFailed,
				Reason:         fmt.Sprintf("rate limited: %v", err),
				ContactAddress: dev.ContactAddress,
			}
		}
	}

	n := BuildNotification(dev.PushToken, d.title, req)
	providerID, err := d.sender.Send(ctx, n)
	if err != nil {
		return Outcome{Status: StatusDeliveryFailed, Reason: err.Error(), ContactAddress: dev.ContactAddress}
	}

	return Outcome{Status: StatusDelivered, ProviderMessageID: providerID, ContactAddress: dev.ContactAddress}
}
