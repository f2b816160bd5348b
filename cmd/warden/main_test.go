package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/warden/internal/adapters/memworld"
	"github.com/okian/warden/internal/config"
	"github.com/okian/warden/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestWiring(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		convey.So(logger.Init(logger.WithOutput(io.Discard)), convey.ShouldBeNil)
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.ShardCount = 2
		world := memworld.New()
		svc := newService(cfg, world)

		convey.Convey("Then the service reflects the configuration", func() {
			st := svc.GetStats(ctx)
			convey.So(st.ShardCount, convey.ShouldEqual, 2)
			convey.So(st.QueueSize, convey.ShouldEqual, cfg.QueueSize)
		})

		convey.Convey("Then the HTTP server serves the API and its description", func() {
			srv := newHTTPServer(ctx, cfg, svc)
			convey.So(srv.Addr, convey.ShouldEqual, cfg.Addr)

			for _, path := range []string{"/stats", "/suspects", "/detections/summary", "/openapi.yaml"} {
				w := httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("Then the supervisor stops when the context is cancelled", func() {
			cfg.Addr = "127.0.0.1:0"
			sup := newSupervisor(cfg, svc, newHTTPServer(ctx, cfg, svc))
			runCtx, cancel := context.WithCancel(ctx)
			errCh := sup.ServeBackground(runCtx)
			cancel()
			select {
			case err := <-errCh:
				convey.So(err == nil || errors.Is(err, context.Canceled), convey.ShouldBeTrue)
			case <-time.After(5 * time.Second):
				t.Error("supervisor did not stop")
			}
		})

		convey.Convey("When a scenario is replayed before serving", func() {
			path := filepath.Join("..", "..", "internal", "replay", "testdata", "landings.yaml")
			_, err := os.Stat(path)
			convey.So(err, convey.ShouldBeNil)
			convey.So(replayScenario(ctx, path, world, svc), convey.ShouldBeNil)

			convey.Convey("Then its suspects are on the board", func() {
				top, err := svc.TopN(ctx, 10)
				convey.So(err, convey.ShouldBeNil)
				convey.So(top, convey.ShouldNotBeEmpty)
			})
		})
	})
}
