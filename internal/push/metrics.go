package push

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/pushrelay/pushrelay/internal/push"

// Metrics holds the dispatch instruments.
type Metrics struct {
	dispatchTotal    metric.Int64Counter
	dispatchDuration metric.Float64Histogram
}

// NewMetrics creates the dispatch instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	dispatchTotal, err := meter.Int64Counter(
		"push.dispatch.total",
		metric.WithDescription("Number of push dispatch attempts by outcome"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		return nil, err
	}

	dispatchDuration, err := meter.Float64Histogram(
		"push.dispatch.duration",
		metric.WithDescription("Duration of push dispatch attempts in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		dispatchTotal:    dispatchTotal,
		dispatchDuration: dispatchDuration,
	}, nil
}

// Record records one dispatch outcome. Safe to call on a nil receiver.
func (m *Metrics) Record(status Status, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("push.status", string(status)))
	// Background context: the request context may already be done.
	ctx := context.Background()
	m.dispatchTotal.Add(ctx, 1, attrs)
	m.dispatchDuration.Record(ctx, duration.Seconds(), attrs)
}
