package service

import (
	"time"

	"github.com/okian/warden/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithShardCount sets the number of dispatch shards.
func WithShardCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithQueueSize sets the capacity of each dispatch shard.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithTickInterval sets how often Serve advances the host clock.
func WithTickInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithRefreshInterval sets how often Serve re-ranks every online profile.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshInterval = d
		}
	}
}

// WithLedgerTTL sets how long detections stay in the ledger.
func WithLedgerTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ledgerTTL = d
		}
	}
}

// WithAlertRate sets the per-entity alert log throttle.
func WithAlertRate(perSecond float64, burst int) Option {
	return func(s *Service) {
		if perSecond > 0 {
			s.alertRate = perSecond
		}
		if burst > 0 {
			s.alertBurst = burst
		}
	}
}

// WithClock overrides the clock used for detections and the ledger.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
