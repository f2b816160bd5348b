// Package repository holds live session state: the profile store and the
// suspect board ranking entities by certainty.
package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/okian/warden/internal/domain/checks"
	"github.com/okian/warden/internal/domain/profile"
	"github.com/okian/warden/internal/domain/world"
	"github.com/okian/warden/pkg/logger"
	"github.com/okian/warden/pkg/metrics"
)

// LeaveFunc is called with a profile that has just left the store.
type LeaveFunc func(ctx context.Context, p *profile.Profile)

// ProfileStore keeps one profile per connected entity.
type ProfileStore struct {
	view        world.View
	deps        checks.Deps
	profileOpts []profile.Option
	onLeave     []LeaveFunc
	logger      logger.Logger

	mu       sync.RWMutex
	profiles map[uuid.UUID]*profile.Profile
}

// NewProfileStore creates an empty store whose profiles read from view.
func NewProfileStore(view world.View, opts ...StoreOption) *ProfileStore {
	s := &ProfileStore{
		view:     view,
		logger:   logger.Nop(),
		profiles: make(map[uuid.UUID]*profile.Profile),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join creates a profile for id and registers the check catalogue on it.
func (s *ProfileStore) Join(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	s.mu.RLock()
	_, exists := s.profiles[id]
	s.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("join %s: %w", id, ErrProfileExists)
	}

	p := profile.New(id, s.view, s.profileOpts...)
	if err := checks.Register(p, s.deps); err != nil {
		return nil, fmt.Errorf("join %s: %w", id, err)
	}

	s.mu.Lock()
	if _, exists := s.profiles[id]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("join %s: %w", id, ErrProfileExists)
	}
	s.profiles[id] = p
	count := len(s.profiles)
	s.mu.Unlock()

	metrics.UpdateProfilesOnline(count)
	s.logger.Debug(ctx, "profile joined", logger.String("entity", id.String()), logger.Int("online", count))
	return p, nil
}

// Leave removes the profile for id, closes it and runs the leave hooks.
// The closed profile is returned with its detection log intact; deferred
// verifications scheduled for it abort without a sample, even when the host
// still has the entity or the same id joins again.
func (s *ProfileStore) Leave(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	s.mu.Lock()
	p, ok := s.profiles[id]
	if ok {
		delete(s.profiles, id)
	}
	count := len(s.profiles)
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("leave %s: %w", id, ErrProfileNotFound)
	}

	p.Close()
	metrics.UpdateProfilesOnline(count)
	metrics.RecordProfileArchived()
	for _, fn := range s.onLeave {
		fn(ctx, p)
	}
	s.logger.Debug(ctx, "profile left",
		logger.String("entity", id.String()),
		logger.Int("detections", p.DetectionCount()),
	)
	return p, nil
}

// Get returns the profile for id.
func (s *ProfileStore) Get(_ context.Context, id uuid.UUID) (*profile.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	return p, ok
}

// Count returns the number of profiles.
func (s *ProfileStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// Range calls fn for each profile until fn returns false. fn runs on a
// snapshot, so it may call back into the store.
func (s *ProfileStore) Range(_ context.Context, fn func(p *profile.Profile) bool) {
	s.mu.RLock()
	list := make([]*profile.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		list = append(list, p)
	}
	s.mu.RUnlock()
	for _, p := range list {
		if !fn(p) {
			return
		}
	}
}
