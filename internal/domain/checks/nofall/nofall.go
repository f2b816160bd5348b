// Package nofall detects fall damage suppression: an entity that lands and
// keeps more health than the fall damage model allows.
package nofall

import (
	"context"
	"errors"
	"math"

	"github.com/okian/warden/internal/domain/detection"
	"github.com/okian/warden/internal/domain/model"
	"github.com/okian/warden/internal/domain/profile"
	"github.com/okian/warden/internal/domain/world"
	"github.com/okian/warden/pkg/logger"
	"github.com/okian/warden/pkg/metrics"
)

const (
	// minFallDistance is the shortest fall judged at all.
	minFallDistance = 4.0
	// verificationDelayTicks lets the host apply its own fall damage before
	// health is compared.
	verificationDelayTicks = 2
	// unsetHeight marks that no stable height is recorded.
	unsetHeight = -1.0
)

// Landing outcomes, as reported to metrics.
const (
	landingJudged      = "judged"
	landingExempt      = "exempt"
	landingOverlapping = "overlapping"
)

// Verification results, as reported to metrics.
const (
	verifyPassed        = "passed"
	verifyViolated      = "violated"
	verifyAbortOffline  = "aborted_offline"
	verifyAbortGameMode = "aborted_gamemode"
	verifyAbortClosed   = "aborted_closed"
)

// ErrNoScheduler is returned when a version is built without a scheduler.
var ErrNoScheduler = errors.New("nofall: scheduler is required")

// Deps are the host capabilities a version needs beyond its profile.
type Deps struct {
	Scheduler world.Scheduler
	Logger    logger.Logger
}

// A compares the health an entity keeps after landing with the health the
// fall damage model predicts.
//
// Call and the deferred verification both run under the profile's handling
// lock, so the private state below has a single writer at a time.
type A struct {
	check     *detection.Check
	profile   *profile.Profile
	scheduler world.Scheduler
	log       logger.Logger

	stats     detection.Stats
	displaced detection.Displacement

	lastY   float64
	pending bool
}

// verification is the snapshot taken at impact.
type verification struct {
	expectedHealth float64
	healthBefore   float64
	damage         float64
}

// NewA builds version A for p, reporting through check.
func NewA(check *detection.Check, p *profile.Profile, deps Deps) (*A, error) {
	if deps.Scheduler == nil {
		return nil, ErrNoScheduler
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &A{
		check:     check,
		profile:   p,
		scheduler: deps.Scheduler,
		log:       log,
		lastY:     unsetHeight,
	}, nil
}

func (a *A) Name() string { return "A" }

func (a *A) Description() string {
	return "Checks the damage the entity took against the damage it should have taken."
}

// CheckCurrentCertainty is the share of verified landings that kept too much
// health, or detection.NoSamples before the first verification.
func (a *A) CheckCurrentCertainty() float64 { return a.stats.Certainty() }

// DisplacedHealthRatio is the share of expected fall damage that was never
// taken, or detection.NoSamples before the first verification.
func (a *A) DisplacedHealthRatio() float64 { return a.displaced.Ratio() }

// Pending reports whether a verification is outstanding. It takes the
// profile's handling lock, so it must not be called from handled code.
func (a *A) Pending() bool {
	var pending bool
	a.profile.Do(func() { pending = a.pending })
	return pending
}

// Call handles move events; anything else is ignored.
func (a *A) Call(ctx context.Context, event any) {
	var ev model.MoveEvent
	switch e := event.(type) {
	case model.MoveEvent:
		ev = e
	case *model.MoveEvent:
		if e == nil {
			return
		}
		ev = *e
	default:
		return
	}

	ent, ok := a.profile.Entity()
	if !ok {
		return
	}
	if ent.GameMode().Exempt() {
		a.lastY = unsetHeight
		return
	}

	view := a.profile.View()
	if world.BlockBelow(view, ev.To).IsAir() {
		a.lastY = ent.Position().Y()
		return
	}

	fall := ent.FallDistance()
	if fall < minFallDistance {
		return
	}
	if !world.BlockBelow(view, ev.From).IsAir() {
		return
	}

	drop := 0.0
	if a.lastY != unsetHeight {
		drop = a.lastY - ent.Position().Y()
	}
	a.lastY = unsetHeight

	if a.pending {
		metrics.RecordLanding(landingOverlapping)
		a.log.Debug(ctx, "landing ignored, verification pending", logger.String("entity", a.profile.ID().String()))
		return
	}
	if a.profile.Behaviour().Read().Exempt() {
		metrics.RecordLanding(landingExempt)
		return
	}

	damage := ExpectedDamage(DamageInput{
		FallDistance: fall,
		HeightDrop:   drop,
		MaxHealth:    ent.MaxHealth(),
		Boots:        ent.BootsEnchantments(),
		Effects:      ent.ActiveEffects(),
	})
	health := ent.Health()
	snap := verification{
		expectedHealth: ExpectedHealth(health, ent.MaxHealth(), damage),
		healthBefore:   health,
		damage:         math.Max(damage, 0),
	}
	metrics.RecordLanding(landingJudged)
	metrics.RecordExpectedDamage(snap.damage)
	a.log.Debug(ctx, "landing judged",
		logger.String("entity", a.profile.ID().String()),
		logger.Float64("fall_distance", fall),
		logger.Float64("expected_damage", snap.damage),
		logger.Float64("expected_health", snap.expectedHealth),
		logger.Float64("health", health),
	)

	a.pending = true
	vctx := context.WithoutCancel(ctx)
	a.scheduler.After(verificationDelayTicks, func() {
		a.profile.Do(func() { a.verify(vctx, snap) })
	})
}

// verify re-resolves the entity and compares its health with the snapshot.
func (a *A) verify(ctx context.Context, snap verification) {
	a.pending = false

	if a.profile.Closed() {
		metrics.RecordVerification(verifyAbortClosed)
		a.log.Debug(ctx, "verification aborted, session closed", logger.String("entity", a.profile.ID().String()))
		return
	}
	ent, ok := a.profile.Entity()
	if !ok {
		metrics.RecordVerification(verifyAbortOffline)
		a.log.Debug(ctx, "verification aborted, entity offline", logger.String("entity", a.profile.ID().String()))
		return
	}
	if ent.GameMode().Exempt() {
		metrics.RecordVerification(verifyAbortGameMode)
		return
	}

	health := ent.Health()
	violated := health > snap.expectedHealth
	a.stats.Judge(violated)
	a.displaced.Observe(snap.damage, snap.healthBefore-health)

	if !violated {
		metrics.RecordVerification(verifyPassed)
		return
	}
	metrics.RecordVerification(verifyViolated)
	d := a.check.Flag(ctx, a)
	a.log.Info(ctx, "fall damage suppressed",
		logger.String("entity", a.profile.ID().String()),
		logger.Float64("expected_health", snap.expectedHealth),
		logger.Float64("health", health),
		logger.Float64("certainty", d.Certainty),
	)
}

var _ detection.Version = (*A)(nil)
