package sink

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/warden/internal/domain/detection"
	"github.com/okian/warden/pkg/logger"
	"github.com/okian/warden/pkg/metrics"
	"golang.org/x/time/rate"
)

// Default alert throttling.
const (
	defaultAlertRate   = 1.0
	defaultAlertBurst  = 5
	limiterIdleTimeout = 10 * time.Minute
)

// Log writes detections as warnings, throttled per entity so a repeatedly
// flagged entity cannot flood the log. Throttled detections are counted, not
// lost: they are still in the profile's log.
type Log struct {
	logger logger.Logger
	rate   rate.Limit
	burst  int
	now    func() time.Time

	mu       sync.Mutex
	limiters map[uuid.UUID]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LogOption configures a Log sink.
type LogOption func(*Log)

// WithRate sets the sustained alerts per second and burst per entity.
func WithRate(perSecond float64, burst int) LogOption {
	return func(l *Log) {
		if perSecond > 0 {
			l.rate = rate.Limit(perSecond)
		}
		if burst > 0 {
			l.burst = burst
		}
	}
}

// WithLogClock overrides the clock used for throttling.
func WithLogClock(now func() time.Time) LogOption {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLog creates a throttled log sink.
func NewLog(log logger.Logger, opts ...LogOption) *Log {
	if log == nil {
		log = logger.Nop()
	}
	l := &Log{
		logger:   log,
		rate:     rate.Limit(defaultAlertRate),
		burst:    defaultAlertBurst,
		now:      time.Now,
		limiters: make(map[uuid.UUID]*limiterEntry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Publish implements Sink.
func (l *Log) Publish(ctx context.Context, d detection.Detection) {
	if !l.allow(d.Entity) {
		metrics.RecordSinkDropped("log")
		return
	}
	l.logger.Warn(ctx, "detection",
		logger.String("entity", d.Entity.String()),
		logger.Stringer("check", d.Check),
		logger.String("version", d.Version),
		logger.Float64("certainty", d.Certainty),
		logger.String("detection_id", d.ID.String()),
	)
}

func (l *Log) allow(id uuid.UUID) bool {
	now := l.now()
	l.mu.Lock()
	e, ok := l.limiters[id]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[id] = e
	}
	e.lastSeen = now
	lim := e.limiter
	l.mu.Unlock()
	return lim.AllowN(now, 1)
}

// Forget drops the limiter for id, e.g. when the entity leaves.
func (l *Log) Forget(id uuid.UUID) {
	l.mu.Lock()
	delete(l.limiters, id)
	l.mu.Unlock()
}

// Cleanup removes limiters idle for longer than the idle timeout.
func (l *Log) Cleanup() {
	now := l.now()
	l.mu.Lock()
	for id, e := range l.limiters {
		if now.Sub(e.lastSeen) > limiterIdleTimeout {
			delete(l.limiters, id)
		}
	}
	l.mu.Unlock()
}

// Tracked returns the number of entities with a live limiter.
func (l *Log) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
