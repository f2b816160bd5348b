package replay

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/okian/warden/internal/adapters/memworld"
	service "github.com/okian/warden/internal/app"
	"github.com/okian/warden/internal/domain/model"
	"github.com/okian/warden/pkg/logger"
)

// settleTicks lets verifications scheduled by the last steps complete.
const settleTicks = 2

// Runner plays scenarios against a world and the service reading it.
type Runner struct {
	world  *memworld.World
	svc    *service.Service
	logger logger.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a runner. svc must read from w.
func NewRunner(w *memworld.World, svc *service.Service, opts ...Option) *Runner {
	r := &Runner{world: w, svc: svc, logger: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EntityID returns the id an entity spec plays under. Named entities
// without an explicit id get a stable name-derived one.
func EntityID(e EntitySpec) uuid.UUID {
	if id, err := uuid.Parse(e.ID); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("warden/"+e.Name))
}

type run struct {
	*Runner
	ids    map[string]uuid.UUID
	report *Report
}

// Run builds the scenario world, joins every entity, plays the steps
// synchronously and reports the outcome.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	st := &run{
		Runner: r,
		ids:    make(map[string]uuid.UUID, len(sc.Entities)),
		report: newReport(sc.Name),
	}

	for _, b := range sc.Blocks {
		m, _ := model.ParseMaterial(b.Material)
		r.world.Fill(b.From.vec3(), b.To.vec3(), m)
	}
	for _, e := range sc.Entities {
		if err := st.spawn(ctx, e); err != nil {
			return nil, err
		}
	}
	for i := range sc.Steps {
		if err := st.step(ctx, &sc.Steps[i]); err != nil {
			return nil, fmt.Errorf("%w: step %d: %w", ErrStep, i, err)
		}
	}
	r.svc.Tick(ctx, settleTicks)

	for _, e := range sc.Entities {
		st.capture(ctx, e.Name)
	}
	top, err := r.svc.TopN(ctx, max(1, len(sc.Entities)))
	if err != nil {
		return nil, err
	}
	st.report.Suspects = top
	st.report.Ticks = r.svc.GetStats(ctx).Tick
	r.logger.Info(ctx, "scenario finished",
		logger.String("scenario", sc.Name),
		logger.Int("steps", len(sc.Steps)),
		logger.Int("detections", st.report.DetectionCount()),
	)
	return st.report, nil
}

func (st *run) spawn(ctx context.Context, e EntitySpec) error {
	id := EntityID(e)
	p := st.world.Spawn(id, e.Position.vec3())
	mode, _ := model.ParseGameMode(e.GameMode)
	p.SetGameMode(mode)
	if e.MaxHealth != nil {
		p.SetMaxHealth(*e.MaxHealth)
	}
	if e.Health != nil {
		p.SetHealth(*e.Health)
	}
	p.SetSuppressFallDamage(e.SuppressFallDamage)
	if len(e.Boots) > 0 {
		boots := make(map[model.EnchantmentType]int, len(e.Boots))
		for name, level := range e.Boots {
			t, _ := model.ParseEnchantment(name)
			boots[t] = level
		}
		p.SetBoots(boots)
	}
	for _, eff := range e.Effects {
		p.AddEffect(model.Effect{Type: model.ParseEffect(eff.Type), Amplifier: eff.Amplifier})
	}
	if err := st.svc.Join(ctx, id); err != nil {
		return fmt.Errorf("join %s: %w", e.Name, err)
	}
	st.ids[e.Name] = id
	return nil
}

func (st *run) step(ctx context.Context, s *Step) error {
	if s.Tick > 0 {
		st.svc.Tick(ctx, s.Tick)
		return nil
	}
	id := st.ids[s.Entity]
	p, ok := st.world.Player(id)
	if !ok {
		return fmt.Errorf("%s has left", s.Entity)
	}
	st.logger.Debug(ctx, "step", logger.String("entity", s.Entity))

	switch {
	case s.Move != nil:
		return st.move(ctx, id, *s.Move)
	case s.FallTo != nil:
		pos := p.Position()
		for y := pos.Y() - 1; y >= *s.FallTo; y-- {
			if err := st.move(ctx, id, Vec{pos.X(), y, pos.Z()}); err != nil {
				return err
			}
		}
		st.world.ApplyLanding(id)
	case s.Land:
		st.world.ApplyLanding(id)
	case s.SetHealth != nil:
		p.SetHealth(*s.SetHealth)
	case s.GameMode != "":
		mode, _ := model.ParseGameMode(s.GameMode)
		p.SetGameMode(mode)
	case s.Mount != nil:
		p.SetInsideVehicle(*s.Mount)
	case s.Sleep != nil:
		p.SetSleeping(*s.Sleep)
	case s.Leave:
		st.capture(ctx, s.Entity)
		if err := st.svc.Leave(ctx, id); err != nil {
			return err
		}
		st.world.Despawn(id)
	}
	return nil
}

func (st *run) move(ctx context.Context, id uuid.UUID, to Vec) error {
	ev, ok := st.world.Move(id, to.vec3())
	if !ok {
		return fmt.Errorf("move %s: unknown player", id)
	}
	return st.svc.HandleMove(ctx, ev)
}

// capture records the entity's state the last time it was still online.
func (st *run) capture(ctx context.Context, name string) {
	id := st.ids[name]
	summary, err := st.svc.Profile(ctx, id)
	if err != nil {
		return
	}
	er := EntityReport{
		Name:       name,
		Entity:     id,
		Online:     summary.Online,
		Certainty:  summary.Certainties,
		Detections: summary.Detections,
	}
	if p, ok := st.world.Player(id); ok {
		er.Health = p.Health()
	}
	st.report.set(er)
}
