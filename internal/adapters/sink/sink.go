// Package sink provides consumers for filed detections: logging, metrics, a
// TTL ledger and fan-out.
package sink

import (
	"context"

	"github.com/okian/warden/internal/domain/detection"
	"github.com/okian/warden/pkg/metrics"
)

// Sink consumes detections. Publish must not block the caller for long; it
// runs on the goroutine that filed the detection.
type Sink interface {
	Publish(ctx context.Context, d detection.Detection)
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, d detection.Detection)

// Publish calls f.
func (f Func) Publish(ctx context.Context, d detection.Detection) { f(ctx, d) }

// Multi publishes to every sink in order.
type Multi []Sink

// Publish implements Sink.
func (m Multi) Publish(ctx context.Context, d detection.Detection) {
	for _, s := range m {
		if s != nil {
			s.Publish(ctx, d)
		}
	}
}

// Metrics records detections in prometheus.
type Metrics struct{}

// NewMetrics returns the metrics sink.
func NewMetrics() Metrics { return Metrics{} }

// Publish implements Sink.
func (Metrics) Publish(_ context.Context, d detection.Detection) {
	metrics.RecordDetection(d.Check.String(), d.Version, d.Certainty)
}
