// Package internal wires the engine together from configuration. The
// factory is the single place that knows which concrete feed, oracle and
// stores back the interfaces the engine consumes.
package internal

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/broker"
	"github.com/vadiminshakov/folio/internal/clients"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/feed"
	"github.com/vadiminshakov/folio/internal/market"
	"github.com/vadiminshakov/folio/internal/scheduler"
	"github.com/vadiminshakov/folio/internal/services/engine"
	"github.com/vadiminshakov/folio/internal/services/fundamentals"
	marketdata "github.com/vadiminshakov/folio/internal/services/market"
	"github.com/vadiminshakov/folio/internal/services/promptbuilder"
	"github.com/vadiminshakov/folio/internal/storage/decisions"
	"github.com/vadiminshakov/folio/internal/storage/ledger"
	"github.com/vadiminshakov/folio/internal/storage/recorder"
)

type sentimentOracle interface {
	Score(ctx context.Context, ticker string) (*domain.SentimentAssessment, error)
}

// App is the assembled engine plus everything main manages around it:
// the cron scheduler and the stores that close on shutdown.
type App struct {
	Engine    *engine.Engine
	Scheduler *scheduler.Scheduler

	logger  *zap.Logger
	store   *ledger.Store
	audit   *decisions.WALStore
	metrics *recorder.SQLiteRecorder
}

// NewApp wires every component the config names. Storage lives under
// cfg.DataDir; the caller owns Close.
func NewApp(l *zap.Logger, cfg config.Config) (*App, error) {
	calendar, err := market.NewCalendar()
	if err != nil {
		return nil, errors.Wrap(err, "create trading calendar")
	}

	src, err := feed.New(cfg.Feed)
	if err != nil {
		return nil, errors.Wrap(err, "create candle source")
	}

	snapshots := marketdata.NewBuilder(l, src, cfg.Feed.HistoryBars)
	macro := marketdata.NewMacroProvider(l, src, cfg.Feed.HistoryBars)

	oracle, err := buildOracle(l, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create sentiment oracle")
	}

	funds, err := fundamentals.New(l, cfg.Feed)
	if err != nil {
		return nil, errors.Wrap(err, "create fundamentals provider")
	}

	paper, err := broker.NewPaper(l, cfg.Broker, feed.NewPricer(src), filepath.Join(cfg.DataDir, "broker"))
	if err != nil {
		return nil, errors.Wrap(err, "create paper broker")
	}

	store, err := ledger.Open(l, filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return nil, errors.Wrap(err, "open portfolio ledger")
	}

	audit, err := decisions.NewWALStore(filepath.Join(cfg.DataDir, "decisions"))
	if err != nil {
		return nil, errors.Wrap(err, "open decision audit store")
	}

	metrics, err := recorder.NewSQLiteRecorder(l, filepath.Join(cfg.DataDir, "folio.db"))
	if err != nil {
		return nil, errors.Wrap(err, "open cycle recorder")
	}

	eng := engine.New(l, cfg, calendar, snapshots, macro, oracle, funds, paper, store, audit, metrics)

	sched, err := scheduler.New(l, cfg.Schedule.Cron, calendar.Location(), eng)
	if err != nil {
		return nil, err
	}

	return &App{
		Engine:    eng,
		Scheduler: sched,
		logger:    l,
		store:     store,
		audit:     audit,
		metrics:   metrics,
	}, nil
}

// buildOracle picks the sentiment source for the feed mode: a synthetic
// scorer for self-contained dry runs, the LLM client otherwise.
func buildOracle(l *zap.Logger, cfg config.Config) (sentimentOracle, error) {
	if cfg.Feed.Mode == "synthetic" {
		return clients.NewSyntheticOracle(), nil
	}
	prompts := promptbuilder.NewPromptBuilder(l)
	return clients.NewSentimentOracle(l, cfg.Oracle, prompts)
}

// Close releases the storage layers. Call after the scheduler stopped.
func (a *App) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close ledger", zap.Error(err))
	}
	if err := a.audit.Close(); err != nil {
		a.logger.Warn("close decision store", zap.Error(err))
	}
	if err := a.metrics.Close(); err != nil {
		a.logger.Warn("close recorder", zap.Error(err))
	}
}
