// Package engine runs the decision cycle end to end: reconcile the ledger
// against the broker, gather market data, evaluate every ticker, execute the
// approved plan and persist the outcome. All portfolio mutation happens here;
// the services the engine calls are pure planners.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/market"
	"github.com/vadiminshakov/folio/internal/services/evaluator"
	"github.com/vadiminshakov/folio/internal/services/hedge"
	"github.com/vadiminshakov/folio/internal/services/rebalancer"
	"github.com/vadiminshakov/folio/internal/services/reconciler"
	"github.com/vadiminshakov/folio/internal/services/sizer"
	"github.com/vadiminshakov/folio/internal/storage/decisions"
	"github.com/vadiminshakov/folio/internal/storage/ledger"
	"github.com/vadiminshakov/folio/internal/storage/recorder"
)

type snapshotProvider interface {
	Snapshot(ctx context.Context, ticker string) (*domain.InstrumentSnapshot, error)
}

type macroProvider interface {
	Snapshot(ctx context.Context) (*domain.MacroSnapshot, error)
}

type sentimentOracle interface {
	Score(ctx context.Context, ticker string) (*domain.SentimentAssessment, error)
}

type fundamentalsProvider interface {
	Assessment(ticker string) (*domain.FundamentalAssessment, error)
}

type brokerClient interface {
	GetState(ctx context.Context) (*domain.BrokerState, error)
	PlaceMarketOrder(ctx context.Context, ticker string, side domain.OrderSide, quantity decimal.Decimal, clientOrderID string) (domain.Fill, error)
}

// Engine owns one portfolio and trades it on a cycle cadence.
type Engine struct {
	l        *zap.Logger
	cfg      config.Config
	calendar *market.Calendar

	snapshots    snapshotProvider
	macro        macroProvider
	oracle       sentimentOracle
	fundamentals fundamentalsProvider
	broker       brokerClient

	eval  *evaluator.Evaluator
	sizer *sizer.Sizer
	hedge *hedge.Controller
	swaps *rebalancer.Planner
	recon *reconciler.Reconciler

	store   *ledger.Store
	audit   *decisions.WALStore
	metrics *recorder.SQLiteRecorder

	// cycleMu makes RunCycle single-flight: an overlapping trigger is
	// dropped, never queued.
	cycleMu sync.Mutex
	now     func() time.Time
}

func New(
	l *zap.Logger,
	cfg config.Config,
	calendar *market.Calendar,
	snapshots snapshotProvider,
	macro macroProvider,
	oracle sentimentOracle,
	fundamentals fundamentalsProvider,
	broker brokerClient,
	store *ledger.Store,
	audit *decisions.WALStore,
	metrics *recorder.SQLiteRecorder,
) *Engine {
	if l == nil {
		l = zap.NewNop()
	}
	eval := evaluator.New(cfg.Evaluator)

	return &Engine{
		l:            l,
		cfg:          cfg,
		calendar:     calendar,
		snapshots:    snapshots,
		macro:        macro,
		oracle:       oracle,
		fundamentals: fundamentals,
		broker:       broker,
		eval:         eval,
		sizer:        sizer.New(cfg.Sizing, eval),
		hedge:        hedge.New(l, cfg.Hedge, cfg.HedgeTicker, oracle),
		swaps:        rebalancer.New(cfg.Swap),
		recon:        reconciler.New(l),
		store:        store,
		audit:        audit,
		metrics:      metrics,
		now:          time.Now,
	}
}

// cycleRun is the scratch state of one cycle in flight.
type cycleRun struct {
	id     string
	book   *domain.Portfolio
	data   map[string]*tickerData
	macro  *domain.MacroSnapshot
	events []domain.DecisionEvent
	fills  int
}

// RunCycle executes one full decision cycle. It returns an error only when
// the cycle had to be aborted; per-ticker failures degrade into HOLDs and
// are absorbed.
func (e *Engine) RunCycle(ctx context.Context) error {
	if !e.cycleMu.TryLock() {
		e.l.Warn("cycle already in flight, dropping trigger")
		return nil
	}
	defer e.cycleMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Schedule.CycleDeadline)
	defer cancel()

	cycleID := uuid.New().String()
	startedAt := e.now()
	l := e.l.With(zap.String("cycle_id", cycleID))
	l.Info("cycle started")

	if !e.calendar.IsOpen(startedAt) {
		return e.runClosed(l, cycleID, startedAt)
	}

	// Broker truth gates the whole cycle: without it the ledger cannot be
	// trusted and no order may be placed.
	brokerState, err := e.broker.GetState(ctx)
	if err != nil {
		l.Error("broker unreachable, cycle aborted before evaluation", zap.Error(err))
		return errors.Wrapf(domain.ErrBrokerUnavailable, "pre-trade reconcile: %v", err)
	}
	book, drift := e.recon.Merge(e.store.Portfolio(), *brokerState, startedAt)
	e.recordDrift(l, cycleID, drift)
	e.resolvePendingIntents(l)

	run := &cycleRun{
		id:    cycleID,
		book:  book,
		macro: e.fetchMacro(ctx, l),
	}
	run.data = e.gather(ctx, e.gatherSet(book))
	e.refreshPositions(book, run.data)

	plan := e.decide(l, run)
	e.mergeSwap(l, run, plan)
	if hd, _ := e.hedge.Plan(ctx, run.macro, book.TotalEquity(), e.hedgeValue(book)); hd.Ticker != "" {
		plan[hd.Ticker] = hd
	}

	execErr := e.executePlan(ctx, l, run, plan)

	if run.fills > 0 && execErr == nil {
		e.settle(ctx)
		state, err := e.broker.GetState(ctx)
		if err != nil {
			l.Error("post-trade reconcile failed, ledger keeps locally applied fills", zap.Error(err))
			execErr = errors.Wrapf(domain.ErrBrokerUnavailable, "post-trade reconcile: %v", err)
		} else {
			merged, drift := e.recon.Merge(run.book, *state, e.now())
			e.recordDrift(l, cycleID, drift)
			run.book = merged
		}
	}

	e.saveBook(l, run.book)
	e.finish(l, run, startedAt)
	return execErr
}

// runClosed audits a MARKET_CLOSED hold for every ticker and touches
// neither the broker nor the portfolio.
func (e *Engine) runClosed(l *zap.Logger, cycleID string, startedAt time.Time) error {
	book := e.store.Portfolio()
	if book == nil {
		book = domain.NewPortfolio(decimal.Zero)
	}
	run := &cycleRun{id: cycleID, book: book}

	for _, ticker := range e.decisionSet(book) {
		d, err := e.eval.Evaluate(evaluator.Input{
			Ticker:   ticker,
			Position: book.Position(ticker),
		})
		if err != nil {
			l.Error("decision abandoned", zap.String("ticker", ticker), zap.Error(err))
			continue
		}
		run.events = append(run.events, domain.NewDecisionEvent(cycleID, d, "", false, nil))
	}

	l.Info("market closed, no trading this cycle", zap.Int("tickers", len(run.events)))
	e.finish(l, run, startedAt)
	return nil
}

// resolvePendingIntents closes out intents left pending by an interrupted
// run. The order may or may not have reached the broker; the pre-trade merge
// has already pulled the truth either way, so the intent is never re-placed.
func (e *Engine) resolvePendingIntents(l *zap.Logger) {
	for _, intent := range e.store.PendingIntents() {
		l.Warn("pending intent from interrupted run, closing as failed",
			zap.String("intent", intent.ID),
			zap.String("ticker", intent.Ticker),
			zap.String("side", intent.Side))
		if err := e.store.MarkFailed(intent, "unresolved at restart"); err != nil {
			l.Error("failed to close out pending intent", zap.String("intent", intent.ID), zap.Error(err))
		}
	}
}

func (e *Engine) fetchMacro(ctx context.Context, l *zap.Logger) *domain.MacroSnapshot {
	macro, err := e.macro.Snapshot(ctx)
	if err != nil {
		l.Warn("macro snapshot unavailable, hedge reads clear", zap.Error(err))
		return nil
	}
	return macro
}

func (e *Engine) recordDrift(l *zap.Logger, cycleID string, drift []domain.DriftRecord) {
	for _, d := range drift {
		if err := e.metrics.RecordDrift(cycleID, d); err != nil {
			l.Warn("drift not recorded", zap.String("ticker", d.Ticker), zap.Error(err))
		}
	}
}

func (e *Engine) settle(ctx context.Context) {
	select {
	case <-time.After(e.cfg.Schedule.SettleDelay):
	case <-ctx.Done():
	}
}

func (e *Engine) saveBook(l *zap.Logger, book *domain.Portfolio) {
	if err := e.store.SavePortfolio(book); err != nil {
		l.Error("portfolio not persisted, ledger will lag until next cycle", zap.Error(err))
	}
}

// finish writes the audit trail and the cycle summary. Failures here are
// logged and swallowed: the trades are already journaled.
func (e *Engine) finish(l *zap.Logger, run *cycleRun, startedAt time.Time) {
	for _, event := range run.events {
		if err := e.audit.Save(event); err != nil {
			l.Warn("audit event not saved", zap.String("ticker", event.Ticker), zap.Error(err))
		}
	}

	vix := decimal.Zero
	if run.macro != nil {
		vix = run.macro.VIX
	}
	summary := recorder.CycleSummary{
		CycleID:     run.id,
		StartedAt:   startedAt,
		FinishedAt:  e.now(),
		Equity:      run.book.TotalEquity(),
		Cash:        run.book.Cash,
		ExposurePct: run.book.ExposurePct(),
		Positions:   len(run.book.Tickers()),
		Decisions:   len(run.events),
		Executed:    run.fills,
		HedgeLevel:  e.hedge.AlertLevel(run.macro).String(),
		VIX:         vix,
	}
	if err := e.metrics.RecordCycle(summary); err != nil {
		l.Warn("cycle summary not recorded", zap.Error(err))
	}

	l.Info("cycle finished",
		zap.Int("decisions", summary.Decisions),
		zap.Int("fills", summary.Executed),
		zap.String("equity", summary.Equity.String()),
		zap.String("hedge_level", summary.HedgeLevel),
		zap.Duration("took", summary.FinishedAt.Sub(startedAt)))
}
