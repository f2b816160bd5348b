// Command replay plays a YAML scenario against an in-memory world and prints
// each entity's certainties and the suspect board.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/okian/warden/internal/adapters/memworld"
	service "github.com/okian/warden/internal/app"
	"github.com/okian/warden/internal/replay"
	"github.com/okian/warden/pkg/logger"
)

func main() {
	scenario := flag.String("scenario", "", "path to the YAML scenario")
	asJSON := flag.Bool("json", false, "write the report as JSON")
	verbose := flag.Bool("verbose", false, "log service activity to stderr")
	flag.Parse()

	if *scenario == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(context.Background(), *scenario, *asJSON, *verbose); err != nil {
		os.Stderr.WriteString("replay: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, asJSON, verbose bool) error {
	level := "warn"
	if verbose {
		level = "debug"
	}
	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		return err
	}
	if err := logger.SetLevelString(level); err != nil {
		return err
	}

	sc, err := replay.LoadFile(path)
	if err != nil {
		return err
	}

	world := memworld.New()
	svc := service.New(world, service.WithLogger(logger.Named("service")))
	report, err := replay.NewRunner(world, svc, replay.WithLogger(logger.Named("replay"))).Run(ctx, sc)
	if err != nil {
		return err
	}

	if asJSON {
		return report.WriteJSON(os.Stdout)
	}
	return report.WriteText(os.Stdout)
}
