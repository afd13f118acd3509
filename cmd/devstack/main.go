package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/docboxhq/docbox/internal/devserver"
	"github.com/docboxhq/docbox/internal/version"
)

// devstack boots a local sync server with a scripted job, so the CLI
// and the SDK can be exercised without a production backend.
func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("DOCBOX_DEV_ADDR", devserver.DefaultHTTPAddr), "listen address")
	scenarioPath := flag.String("scenario", os.Getenv("DOCBOX_DEV_SCENARIO"), "scenario yaml file")
	tick := flag.Duration("tick", devserver.DefaultTickInterval, "progress update interval")
	autostart := flag.String("autostart", "", "source id to start a job for at boot")
	flag.Parse()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))

	if err := run(*addr, *scenarioPath, *tick, *autostart); err != nil {
		slog.Error("devstack failed", "error", err)
		os.Exit(1)
	}
}

func run(addr, scenarioPath string, tick time.Duration, autostart string) error {
	slog.Info("devstack", "version", version.ShortWithApp(), "addr", addr)

	cfg := &devserver.Config{
		HTTPAddr:     addr,
		AuthToken:    os.Getenv("DOCBOX_DEV_TOKEN"),
		ScenarioPath: scenarioPath,
		TickInterval: tick,
	}

	srv, err := devserver.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start(gctx)
	})

	if autostart != "" {
		g.Go(func() error {
			scenario := devserver.DefaultScenario()
			if scenarioPath != "" {
				if scenario, err = devserver.LoadScenario(scenarioPath); err != nil {
					return err
				}
			}
			if err := srv.Service().Start(gctx, autostart, scenario); err != nil {
				return fmt.Errorf("autostart %s: %w", autostart, err)
			}
			return nil
		})
	}

	return g.Wait()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
