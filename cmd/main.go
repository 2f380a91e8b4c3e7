// Command folio runs the portfolio engine: gather market data, decide,
// execute against the paper broker and reconcile, on a New York session
// cron cadence.
//
// Usage:
//
//	folio --config config.yaml
//	folio --once
//
// With no config file present the interactive wizard writes
// config.gen.yaml first.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal"
	"github.com/vadiminshakov/folio/internal/setup"
)

func main() {
	cfg, err := config.Get()
	if errors.Is(err, config.ErrNoConfig) {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		cfg, err = config.Get()
	}
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	app, err := internal.NewApp(logger, cfg)
	if err != nil {
		logger.Fatal("failed to assemble engine", zap.Error(err))
	}
	defer app.Close()

	if cfg.Once {
		if err := app.Engine.RunCycle(context.Background()); err != nil {
			logger.Fatal("cycle failed", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app.Scheduler.Start(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("shutting down", zap.String("signal", s.String()))

	// Stop waits for an in-flight cycle; the cycle deadline bounds the wait.
	app.Scheduler.Stop()
}
