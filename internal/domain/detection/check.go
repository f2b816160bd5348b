package detection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Check groups the versions of one category for one entity. It keeps no
// statistics of its own.
type Check struct {
	typ      CheckType
	entity   uuid.UUID
	recorder Recorder
	now      func() time.Time

	mu       sync.RWMutex
	versions []Version
}

// CheckOption configures a Check.
type CheckOption func(*Check)

// WithClock overrides the clock used to stamp detections.
func WithClock(now func() time.Time) CheckOption {
	return func(c *Check) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCheck creates an empty check for entity reporting into recorder.
func NewCheck(typ CheckType, entity uuid.UUID, recorder Recorder, opts ...CheckOption) *Check {
	c := &Check{
		typ:      typ,
		entity:   entity,
		recorder: recorder,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Type returns the category.
func (c *Check) Type() CheckType { return c.typ }

// Entity returns the identity of the entity this check watches.
func (c *Check) Entity() uuid.UUID { return c.entity }

// AddVersion appends v; dispatch follows insertion order.
func (c *Check) AddVersion(v Version) error {
	if v == nil {
		return ErrNilVersion
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.versions {
		if existing.Name() == v.Name() {
			return fmt.Errorf("%s version %s: %w", c.typ, v.Name(), ErrDuplicateVersion)
		}
	}
	c.versions = append(c.versions, v)
	return nil
}

// Versions returns the registered versions in dispatch order.
func (c *Check) Versions() []Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Version(nil), c.versions...)
}

// Version returns the version labelled name.
func (c *Check) Version(name string) (Version, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, v := range c.versions {
		if v.Name() == name {
			return v, true
		}
	}
	return nil, false
}

// Call forwards event to every version in order. Versions look for
// independent evidence so no version short-circuits another.
func (c *Check) Call(ctx context.Context, event any) {
	for _, v := range c.Versions() {
		v.Call(ctx, event)
	}
}

// Certainty aggregates the category score as the highest certainty among
// versions with samples. It is NoSamples when no version has any.
func (c *Check) Certainty() float64 {
	best := NoSamples
	for _, v := range c.Versions() {
		if got := v.CheckCurrentCertainty(); got != NoSamples && got > best {
			best = got
		}
	}
	return best
}

// Flag files a detection for v at its current certainty. Versions call it
// once per confirmed violation, after updating their statistics.
func (c *Check) Flag(ctx context.Context, v Version) Detection {
	d := Detection{
		ID:        uuid.New(),
		Entity:    c.entity,
		Check:     c.typ,
		Version:   v.Name(),
		Certainty: v.CheckCurrentCertainty(),
		At:        c.now(),
	}
	if c.recorder != nil {
		c.recorder.AddDetection(ctx, d)
	}
	return d
}
