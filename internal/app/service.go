// Package service wires the detection core to its adapters: the tick
// scheduler, the profile store, the suspect board, the detection sinks and
// the dispatch pool. It implements the dependencies the HTTP API reads.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	workerpool "github.com/okian/warden/internal/adapters/mq/worker"
	repository "github.com/okian/warden/internal/adapters/repository"
	"github.com/okian/warden/internal/adapters/scheduler"
	"github.com/okian/warden/internal/adapters/sink"
	"github.com/okian/warden/internal/domain/checks"
	"github.com/okian/warden/internal/domain/detection"
	"github.com/okian/warden/internal/domain/model"
	"github.com/okian/warden/internal/domain/profile"
	"github.com/okian/warden/internal/domain/world"
	"github.com/okian/warden/pkg/logger"
	"github.com/okian/warden/pkg/metrics"
	"github.com/thejerf/suture/v4"
)

const (
	defaultQueueSize       = 4096
	defaultRefreshInterval = time.Second
	defaultLedgerTTL       = 10 * time.Minute
	defaultAlertRate       = 1.0
	defaultAlertBurst      = 5
	stopTimeout            = 30 * time.Second
)

// ProfileSummary is a read-only view of one online profile.
type ProfileSummary struct {
	Entity      uuid.UUID             `json:"entity"`
	Online      bool                  `json:"online"`
	JoinedAt    time.Time             `json:"joinedAt"`
	Certainties map[string]float64    `json:"certainties"`
	Detections  []detection.Detection `json:"detections"`
}

// Stats is a point-in-time snapshot for monitoring.
type Stats struct {
	Started          bool   `json:"started"`
	ShardCount       int    `json:"shardCount"`
	QueueSize        int    `json:"queueSize"`
	QueueLength      int    `json:"queueLength"`
	ProfilesOnline   int    `json:"profilesOnline"`
	Suspects         int    `json:"suspects"`
	PendingTasks     int    `json:"pendingTasks"`
	Tick             uint64 `json:"tick"`
	LedgerEntities   int    `json:"ledgerEntities"`
	LedgerDetections int    `json:"ledgerDetections"`
}

// Service is the application facade over one host world.
type Service struct {
	mu sync.RWMutex

	view   world.View
	sched  *scheduler.TickScheduler
	store  *repository.ProfileStore
	board  *repository.SuspectBoard
	ledger *sink.Ledger
	alerts *sink.Log
	pool   *workerpool.Pool

	shardCount      int
	queueSize       int
	tickInterval    time.Duration
	refreshInterval time.Duration
	ledgerTTL       time.Duration
	alertRate       float64
	alertBurst      int
	now             func() time.Time

	started bool
	stopped bool

	logger logger.Logger
}

// New constructs a Service reading from view. Events can be handled
// synchronously right away; Start launches the dispatch pool.
func New(view world.View, opts ...Option) *Service {
	s := &Service{
		view:            view,
		shardCount:      runtime.NumCPU(),
		queueSize:       defaultQueueSize,
		tickInterval:    scheduler.DefaultInterval,
		refreshInterval: defaultRefreshInterval,
		ledgerTTL:       defaultLedgerTTL,
		alertRate:       defaultAlertRate,
		alertBurst:      defaultAlertBurst,
		now:             time.Now,
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.sched = scheduler.New(
		scheduler.WithInterval(s.tickInterval),
		scheduler.WithLogger(s.logger.Named("scheduler")),
	)
	s.board = repository.NewSuspectBoard()
	s.ledger = sink.NewLedger(sink.WithTTL(s.ledgerTTL), sink.WithLedgerClock(s.now))
	s.alerts = sink.NewLog(s.logger.Named("alerts"),
		sink.WithRate(s.alertRate, s.alertBurst),
		sink.WithLogClock(s.now),
	)

	fanout := sink.Multi{
		s.alerts,
		sink.NewMetrics(),
		s.ledger,
		sink.Func(s.onDetection),
	}
	s.store = repository.NewProfileStore(view,
		repository.WithCheckDeps(checks.Deps{
			Scheduler: s.sched,
			Logger:    s.logger,
			Clock:     s.now,
		}),
		repository.WithProfileOptions(
			profile.WithSink(fanout),
			profile.WithLogger(s.logger.Named("profile")),
		),
		repository.WithOnLeave(s.onLeave),
		repository.WithLogger(s.logger.Named("store")),
	)
	s.pool = workerpool.NewPool(s.shardCount, workerpool.HandlerFunc(s.HandleMove),
		workerpool.WithShardCapacity(s.queueSize),
		workerpool.WithPoolLogger(s.logger.Named("dispatch")),
	)
	return s
}

// Start launches the dispatch pool. It is a no-op when already started.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("start: %w", workerpool.ErrPoolStopped)
	}
	if s.started {
		return nil
	}
	s.pool.Start(ctx)
	s.started = true
	s.logger.Info(ctx, "warden service started",
		logger.Int("shards", s.shardCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("tickInterval", s.tickInterval),
	)
	return nil
}

// Stop drains the dispatch pool. A stopped service cannot be restarted.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := s.pool.Shutdown(ctx); err != nil && !errors.Is(err, workerpool.ErrPoolStopped) {
		s.logger.Error(ctx, "dispatch pool shutdown", logger.Error(err))
	}
	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "warden service stopped")
}

// Serve starts the service and drives the tick clock, the ledger cleanup
// and the suspect board refresh until ctx is done. It satisfies
// suture.Service.
func (s *Service) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("%w: %w", suture.ErrDoNotRestart, err)
	}
	defer s.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = s.sched.Serve(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = s.ledger.Serve(ctx)
	}()

	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.Refresh(ctx)
			s.alerts.Cleanup()
		}
	}
}

// Join creates the profile for id and registers every check on it.
func (s *Service) Join(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.Join(ctx, id); err != nil {
		return err
	}
	return nil
}

// Leave removes the profile for id. Its suspect board entry goes with it;
// ledger entries expire on their own.
func (s *Service) Leave(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.Leave(ctx, id); err != nil {
		return err
	}
	return nil
}

func (s *Service) onLeave(ctx context.Context, p *profile.Profile) {
	s.board.Remove(ctx, p.ID())
	s.alerts.Forget(p.ID())
}

// HandleMove routes one movement event to its entity's profile on the
// caller's goroutine.
func (s *Service) HandleMove(ctx context.Context, ev model.MoveEvent) error { //nolint:gocritic // hugeParam: events travel by value
	p, ok := s.store.Get(ctx, ev.Entity)
	if !ok {
		metrics.RecordEventDropped("unknown_entity")
		return fmt.Errorf("handle move %s: %w", ev.Entity, ErrUnknownEntity)
	}
	p.Handle(ctx, ev)
	metrics.RecordEventHandled()
	s.refresh(ctx, p)
	return nil
}

// Dispatch queues ev for asynchronous handling. It never blocks and returns
// false when the entity's shard is full or the service is stopped.
func (s *Service) Dispatch(ctx context.Context, ev model.MoveEvent) bool { //nolint:gocritic // hugeParam: events travel by value
	return s.pool.Submit(ctx, ev)
}

// Tick advances the host clock by n ticks on the caller's goroutine, running
// due verifications, then re-ranks every profile.
func (s *Service) Tick(ctx context.Context, n int) {
	s.sched.Advance(n)
	s.Refresh(ctx)
}

// Refresh re-ranks every online profile on the suspect board.
func (s *Service) Refresh(ctx context.Context) {
	s.store.Range(ctx, func(p *profile.Profile) bool {
		s.refresh(ctx, p)
		return true
	})
}

func (s *Service) refresh(ctx context.Context, p *profile.Profile) {
	best, check := detection.NoSamples, detection.CheckType(0)
	for t, c := range p.Certainties() {
		if c > best || (c == best && t < check) {
			best, check = c, t
		}
	}
	if best == detection.NoSamples {
		s.board.Remove(ctx, p.ID())
		return
	}
	s.board.Upsert(ctx, repository.Suspect{
		Entity:     p.ID(),
		Certainty:  best,
		Check:      check,
		Detections: p.DetectionCount(),
		UpdatedAt:  s.now(),
	})
}

func (s *Service) onDetection(ctx context.Context, d detection.Detection) {
	if p, ok := s.store.Get(ctx, d.Entity); ok {
		s.refresh(ctx, p)
	}
}

// Certainty returns the aggregate certainty of one check for id, or
// detection.NoSamples when nothing has been judged yet.
func (s *Service) Certainty(ctx context.Context, id uuid.UUID, t detection.CheckType) (float64, error) {
	p, ok := s.store.Get(ctx, id)
	if !ok {
		return 0, fmt.Errorf("certainty %s: %w", id, ErrUnknownEntity)
	}
	c, ok := p.Check(t)
	if !ok {
		return 0, fmt.Errorf("certainty %s %s: %w", id, t, ErrUnknownCheck)
	}
	return c.Certainty(), nil
}

// Detections returns the detection log of id.
func (s *Service) Detections(ctx context.Context, id uuid.UUID) ([]detection.Detection, error) {
	p, ok := s.store.Get(ctx, id)
	if !ok {
		return nil, fmt.Errorf("detections %s: %w", id, ErrUnknownEntity)
	}
	return p.Detections(), nil
}

// Profile returns a read-only summary of id.
func (s *Service) Profile(ctx context.Context, id uuid.UUID) (ProfileSummary, error) {
	p, ok := s.store.Get(ctx, id)
	if !ok {
		return ProfileSummary{}, fmt.Errorf("profile %s: %w", id, ErrUnknownEntity)
	}
	certs := p.Certainties()
	out := ProfileSummary{
		Entity:      p.ID(),
		Online:      p.IsOnline(),
		JoinedAt:    p.JoinedAt(),
		Certainties: make(map[string]float64, len(certs)),
		Detections:  p.Detections(),
	}
	for t, c := range certs {
		out.Certainties[t.String()] = c
	}
	return out, nil
}

// TopN returns the n most suspicious entities.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Suspect, error) {
	return s.board.TopN(ctx, n)
}

// Rank returns the suspect board entry of id.
func (s *Service) Rank(ctx context.Context, id uuid.UUID) (repository.Suspect, error) {
	return s.board.Rank(ctx, id)
}

// Summary aggregates the detection ledger.
func (s *Service) Summary(_ context.Context) sink.LedgerSummary {
	return s.ledger.Summary()
}

// Ledger exposes the detection ledger.
func (s *Service) Ledger() *sink.Ledger { return s.ledger }

// ExportDetections writes the live ledger entries as JSON.
func (s *Service) ExportDetections(w io.Writer) error {
	return s.ledger.Export(w)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	summary := s.ledger.Summary()
	st := Stats{
		Started:          started,
		ShardCount:       s.pool.Shards(),
		QueueSize:        s.queueSize,
		QueueLength:      s.pool.Len(ctx),
		ProfilesOnline:   s.store.Count(ctx),
		Suspects:         s.board.Count(ctx),
		PendingTasks:     s.sched.Pending(),
		Tick:             s.sched.Now(),
		LedgerEntities:   summary.ActiveEntities,
		LedgerDetections: summary.TotalDetections,
	}
	metrics.UpdateQueueSize(st.QueueLength)
	return st
}
