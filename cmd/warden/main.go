// Command warden runs the movement check service and its read-only HTTP API
// under a supervisor tree.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/warden/internal/adapters/http/api"
	"github.com/okian/warden/internal/adapters/http/swagger"
	"github.com/okian/warden/internal/adapters/memworld"
	service "github.com/okian/warden/internal/app"
	"github.com/okian/warden/internal/config"
	"github.com/okian/warden/internal/replay"
	"github.com/okian/warden/pkg/logger"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// Supervisor restart policy.
const (
	failureThreshold = 5.0
	failureDecay     = 30.0
	failureBackoff   = 15 * time.Second
)

func main() {
	scenario := flag.String("scenario", "", "YAML scenario to replay before serving")
	flag.Parse()

	if err := run(*scenario); err != nil && !errors.Is(err, context.Canceled) {
		os.Stderr.WriteString("warden: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(scenario string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}
	log := logger.Get()

	world := memworld.New()
	svc := newService(cfg, world)

	if scenario != "" {
		if err := replayScenario(ctx, scenario, world, svc); err != nil {
			return err
		}
	}

	sup := newSupervisor(cfg, svc, newHTTPServer(ctx, cfg, svc))
	log.Info(ctx, "starting warden", logger.String("addr", cfg.Addr))
	err = sup.Serve(ctx)
	log.Info(ctx, "warden stopped")
	return err
}

func newService(cfg *config.Config, world *memworld.World) *service.Service {
	return service.New(world,
		service.WithLogger(logger.Named("service")),
		service.WithShardCount(cfg.ShardCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithTickInterval(cfg.TickInterval()),
		service.WithLedgerTTL(cfg.LedgerTTL()),
		service.WithAlertRate(cfg.AlertRatePerSecond, cfg.AlertBurst),
	)
}

func newHTTPServer(ctx context.Context, cfg *config.Config, svc *service.Service) *http.Server {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, cfg.MaxSuspectsLimit).Register(ctx, mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func newSupervisor(cfg *config.Config, svc *service.Service, srv *http.Server) *suture.Supervisor {
	handler := &sutureslog.Handler{Logger: logger.Slog()}
	sup := suture.New("warden", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: failureThreshold,
		FailureDecay:     failureDecay,
		FailureBackoff:   failureBackoff,
		Timeout:          shutdownTimeout,
	})
	sup.Add(svc)
	sup.Add(api.NewServerService(srv, shutdownTimeout))
	return sup
}

func replayScenario(ctx context.Context, path string, world *memworld.World, svc *service.Service) error {
	sc, err := replay.LoadFile(path)
	if err != nil {
		return err
	}
	report, err := replay.NewRunner(world, svc, replay.WithLogger(logger.Named("replay"))).Run(ctx, sc)
	if err != nil {
		return err
	}
	return report.WriteText(os.Stdout)
}
