package repository

import (
	"math/rand/v2"

	"github.com/okian/warden/internal/domain/checks"
	"github.com/okian/warden/internal/domain/profile"
	"github.com/okian/warden/pkg/logger"
)

// BoardOption configures a SuspectBoard.
type BoardOption func(*SuspectBoard)

// WithSeed makes node priorities deterministic.
func WithSeed(seed uint64) BoardOption {
	return func(b *SuspectBoard) {
		b.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// StoreOption configures a ProfileStore.
type StoreOption func(*ProfileStore)

// WithCheckDeps sets the capabilities handed to every registered check.
func WithCheckDeps(d checks.Deps) StoreOption {
	return func(s *ProfileStore) { s.deps = d }
}

// WithProfileOptions appends options applied to every new profile.
func WithProfileOptions(opts ...profile.Option) StoreOption {
	return func(s *ProfileStore) { s.profileOpts = append(s.profileOpts, opts...) }
}

// WithOnLeave registers a hook called after a profile leaves the store.
func WithOnLeave(fn LeaveFunc) StoreOption {
	return func(s *ProfileStore) {
		if fn != nil {
			s.onLeave = append(s.onLeave, fn)
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) StoreOption {
	return func(s *ProfileStore) {
		if l != nil {
			s.logger = l
		}
	}
}
