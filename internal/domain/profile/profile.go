// Package profile holds the per-entity detection state for one session.
package profile

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/warden/internal/domain/behaviour"
	"github.com/okian/warden/internal/domain/detection"
	"github.com/okian/warden/internal/domain/world"
	"github.com/okian/warden/pkg/logger"
)

// Sink consumes detections filed on a profile.
type Sink interface {
	Publish(ctx context.Context, d detection.Detection)
}

// Option configures a Profile.
type Option func(*Profile)

// WithSink forwards every filed detection to s.
func WithSink(s Sink) Option {
	return func(p *Profile) { p.sink = s }
}

// WithLogger sets the profile logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Profile) {
		if l != nil {
			p.log = l
		}
	}
}

// WithJoinedAt overrides the session start time.
func WithJoinedAt(t time.Time) Option {
	return func(p *Profile) { p.joined = t }
}

// Profile owns an entity's behaviour, its checks and its detection log.
//
// handleMu serializes event handling with deferred verification callbacks.
// The detection log has its own lock because detections are filed from
// inside handled code. A closed profile belongs to an ended session: it no
// longer resolves its entity, even when the host still has it.
type Profile struct {
	id        uuid.UUID
	view      world.View
	behaviour *behaviour.Behaviour
	sink      Sink
	log       logger.Logger
	joined    time.Time

	handleMu sync.Mutex
	closed   atomic.Bool

	checksMu sync.RWMutex
	checks   []*detection.Check

	detMu      sync.RWMutex
	detections []detection.Detection
}

// New creates an empty profile for id. Checks are added by the catalogue
// registration step.
func New(id uuid.UUID, view world.View, opts ...Option) *Profile {
	p := &Profile{
		id:        id,
		view:      view,
		behaviour: behaviour.New(id, view),
		log:       logger.Nop(),
		joined:    time.Now(),
		checks:    make([]*detection.Check, 0, detection.CatalogueSize()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the entity identity.
func (p *Profile) ID() uuid.UUID { return p.id }

// JoinedAt returns the session start time.
func (p *Profile) JoinedAt() time.Time { return p.joined }

// Behaviour returns the owned behaviour view.
func (p *Profile) Behaviour() *behaviour.Behaviour { return p.behaviour }

// View returns the world view the profile reads from.
func (p *Profile) View() world.View { return p.view }

// Entity re-resolves the live entity. Callers must not keep the result
// beyond the current operation. A closed profile resolves nothing.
func (p *Profile) Entity() (world.Entity, bool) {
	if p.closed.Load() {
		return nil, false
	}
	return p.view.Entity(p.id)
}

// Close ends the session. It waits for any handling or deferred callback in
// progress, so nothing runs against the profile once Close returns.
func (p *Profile) Close() {
	p.handleMu.Lock()
	defer p.handleMu.Unlock()
	p.closed.Store(true)
}

// Closed reports whether the session has ended.
func (p *Profile) Closed() bool { return p.closed.Load() }

// IsOnline reports whether the entity is currently resolvable.
func (p *Profile) IsOnline() bool {
	_, ok := p.Entity()
	return ok
}

// AddCheck registers c. A category may be added once and the number of
// checks is bounded by the catalogue size.
func (p *Profile) AddCheck(c *detection.Check) error {
	if c == nil {
		return ErrNilCheck
	}
	if !c.Type().Valid() {
		return fmt.Errorf("add check %d: %w", c.Type(), detection.ErrUnknownCheckType)
	}
	p.checksMu.Lock()
	defer p.checksMu.Unlock()
	for _, existing := range p.checks {
		if existing.Type() == c.Type() {
			return fmt.Errorf("add check %s: %w", c.Type(), ErrDuplicateCheck)
		}
	}
	if len(p.checks) >= detection.CatalogueSize() {
		return ErrCatalogueFull
	}
	p.checks = append(p.checks, c)
	return nil
}

// Check returns the registered check for t.
func (p *Profile) Check(t detection.CheckType) (*detection.Check, bool) {
	p.checksMu.RLock()
	defer p.checksMu.RUnlock()
	for _, c := range p.checks {
		if c.Type() == t {
			return c, true
		}
	}
	return nil, false
}

// Checks returns the registered checks in insertion order.
func (p *Profile) Checks() []*detection.Check {
	p.checksMu.RLock()
	defer p.checksMu.RUnlock()
	return append([]*detection.Check(nil), p.checks...)
}

// Certainties returns the aggregate certainty of every registered check.
func (p *Profile) Certainties() map[detection.CheckType]float64 {
	checks := p.Checks()
	out := make(map[detection.CheckType]float64, len(checks))
	for _, c := range checks {
		out[c.Type()] = c.Certainty()
	}
	return out
}

// MaxCertainty returns the highest category certainty, or NoSamples.
func (p *Profile) MaxCertainty() float64 {
	best := detection.NoSamples
	for _, c := range p.Checks() {
		if got := c.Certainty(); got > best {
			best = got
		}
	}
	return best
}

// Handle dispatches one event to every check.
func (p *Profile) Handle(ctx context.Context, event any) {
	p.handleMu.Lock()
	defer p.handleMu.Unlock()
	for _, c := range p.Checks() {
		c.Call(ctx, event)
	}
}

// Do runs fn while holding the handling lock. Deferred callbacks use it so
// they never interleave with an event being handled for the same entity.
func (p *Profile) Do(fn func()) {
	p.handleMu.Lock()
	defer p.handleMu.Unlock()
	fn()
}

// AddDetection appends d to the log and forwards it to the sink. It does no
// deduplication.
func (p *Profile) AddDetection(ctx context.Context, d detection.Detection) {
	p.detMu.Lock()
	p.detections = append(p.detections, d)
	p.detMu.Unlock()

	p.log.Debug(ctx, "detection filed",
		logger.String("entity", p.id.String()),
		logger.Stringer("check", d.Check),
		logger.String("version", d.Version),
		logger.Float64("certainty", d.Certainty),
	)
	if p.sink != nil {
		p.sink.Publish(ctx, d)
	}
}

// Detections returns a copy of the detection log.
func (p *Profile) Detections() []detection.Detection {
	p.detMu.RLock()
	defer p.detMu.RUnlock()
	return append([]detection.Detection(nil), p.detections...)
}

// DetectionCount returns the number of filed detections.
func (p *Profile) DetectionCount() int {
	p.detMu.RLock()
	defer p.detMu.RUnlock()
	return len(p.detections)
}

var _ detection.Recorder = (*Profile)(nil)
