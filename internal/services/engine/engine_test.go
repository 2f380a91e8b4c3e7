package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/market"
	"github.com/vadiminshakov/folio/internal/storage/decisions"
	"github.com/vadiminshakov/folio/internal/storage/ledger"
	"github.com/vadiminshakov/folio/internal/storage/recorder"
)

// Tuesday 2025-06-10 11:00 ET, regular session trading.
var openTuesday = time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

// Saturday, exchange closed.
var closedSaturday = time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type stubSnapshots struct {
	snaps map[string]*domain.InstrumentSnapshot
}

func (s *stubSnapshots) Snapshot(_ context.Context, ticker string) (*domain.InstrumentSnapshot, error) {
	snap, ok := s.snaps[ticker]
	if !ok {
		return nil, errors.Wrapf(domain.ErrDataUnavailable, "no feed for %s", ticker)
	}
	return snap, nil
}

type stubMacro struct {
	snap *domain.MacroSnapshot
	err  error
}

func (s *stubMacro) Snapshot(_ context.Context) (*domain.MacroSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

type stubOracle struct {
	scores map[string]*domain.SentimentAssessment
}

func (s *stubOracle) Score(_ context.Context, ticker string) (*domain.SentimentAssessment, error) {
	sent, ok := s.scores[ticker]
	if !ok {
		return nil, errors.Wrapf(domain.ErrDataUnavailable, "no sentiment for %s", ticker)
	}
	return sent, nil
}

type stubFundamentals struct {
	assessments map[string]*domain.FundamentalAssessment
}

func (s *stubFundamentals) Assessment(ticker string) (*domain.FundamentalAssessment, error) {
	return s.assessments[ticker], nil
}

// stubBroker keeps a tiny commission-free book so post-trade reconciliation
// sees consistent state.
type stubBroker struct {
	mu        sync.Mutex
	cash      decimal.Decimal
	positions map[string]domain.BrokerPosition
	prices    map[string]decimal.Decimal

	stateErr   error
	rejects    map[string]error
	stateCalls int
	orders     []domain.Fill
}

func newStubBroker(cash string) *stubBroker {
	return &stubBroker{
		cash:      d(cash),
		positions: make(map[string]domain.BrokerPosition),
		prices:    make(map[string]decimal.Decimal),
		rejects:   make(map[string]error),
	}
}

func (b *stubBroker) hold(ticker, quantity, avgCost string) {
	b.positions[ticker] = domain.BrokerPosition{
		Ticker:   ticker,
		Quantity: d(quantity),
		AvgCost:  d(avgCost),
	}
}

func (b *stubBroker) GetState(_ context.Context) (*domain.BrokerState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stateCalls++
	if b.stateErr != nil {
		return nil, b.stateErr
	}

	positions := make(map[string]domain.BrokerPosition, len(b.positions))
	for ticker, pos := range b.positions {
		positions[ticker] = pos
	}
	return &domain.BrokerState{Cash: b.cash, Positions: positions}, nil
}

func (b *stubBroker) PlaceMarketOrder(_ context.Context, ticker string, side domain.OrderSide, quantity decimal.Decimal, clientOrderID string) (domain.Fill, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.rejects[ticker]; err != nil {
		return domain.Fill{}, err
	}
	price, ok := b.prices[ticker]
	if !ok {
		return domain.Fill{}, errors.Errorf("no fill price for %s", ticker)
	}

	fill := domain.Fill{
		ClientOrderID: clientOrderID,
		Ticker:        ticker,
		Side:          side,
		Quantity:      quantity,
		Price:         price,
		FilledAt:      time.Now(),
	}

	pos := b.positions[ticker]
	if side == domain.SideBuy {
		b.cash = b.cash.Sub(fill.Notional())
		newQuantity := pos.Quantity.Add(quantity)
		if pos.Quantity.IsPositive() {
			pos.AvgCost = pos.AvgCost.Mul(pos.Quantity).Add(fill.Notional()).Div(newQuantity)
		} else {
			pos.AvgCost = price
		}
		pos.Ticker = ticker
		pos.Quantity = newQuantity
		b.positions[ticker] = pos
	} else {
		b.cash = b.cash.Add(fill.Notional())
		pos.Quantity = pos.Quantity.Sub(quantity)
		if pos.Quantity.IsPositive() {
			b.positions[ticker] = pos
		} else {
			delete(b.positions, ticker)
		}
	}

	b.orders = append(b.orders, fill)
	return fill, nil
}

// reversionSnapshot sits on the lower band: a buy signal for any positive
// sentiment above the gate. Band width is 6%.
func reversionSnapshot(ticker string, price int64) *domain.InstrumentSnapshot {
	p := decimal.NewFromInt(price)
	return &domain.InstrumentSnapshot{
		Ticker:      ticker,
		Price:       p,
		SMA20:       p.Mul(d("1.02")),
		SMA50:       p.Mul(d("1.03")),
		BBUpper:     p.Mul(d("1.06")),
		BBLower:     p,
		RSI14:       decimal.NewFromInt(45),
		Volume:      decimal.NewFromInt(1_000_000),
		AvgVolume20: decimal.NewFromInt(1_000_000),
		CapturedAt:  time.Now(),
	}
}

// neutralSnapshot sits mid-band with calm RSI: no technical signal fires.
func neutralSnapshot(ticker string, price int64) *domain.InstrumentSnapshot {
	p := decimal.NewFromInt(price)
	return &domain.InstrumentSnapshot{
		Ticker:      ticker,
		Price:       p,
		SMA20:       p,
		SMA50:       p,
		BBUpper:     p.Mul(d("1.03")),
		BBLower:     p.Mul(d("0.97")),
		RSI14:       decimal.NewFromInt(50),
		Volume:      decimal.NewFromInt(1_000_000),
		AvgVolume20: decimal.NewFromInt(1_000_000),
		CapturedAt:  time.Now(),
	}
}

func healthyFund(fscore int, sector string) *domain.FundamentalAssessment {
	return &domain.FundamentalAssessment{
		FScore:  &fscore,
		EPS:     d("2.5"),
		PERatio: decimal.NewFromInt(24),
		Sector:  sector,
	}
}

func sentimentOf(score string, confidence int64) *domain.SentimentAssessment {
	return &domain.SentimentAssessment{
		Score:      d(score),
		Confidence: decimal.NewFromInt(confidence),
		Reasoning:  "stub",
	}
}

func testConfig(t *testing.T, watchlist ...string) config.Config {
	t.Helper()

	var raw strings.Builder
	raw.WriteString("watchlist:\n")
	for _, ticker := range watchlist {
		raw.WriteString("  - " + ticker + "\n")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw.String()), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.Schedule.SettleDelay = time.Millisecond
	return cfg
}

type testRig struct {
	engine  *Engine
	broker  *stubBroker
	store   *ledger.Store
	audit   *decisions.WALStore
	metrics *recorder.SQLiteRecorder
}

func newTestRig(t *testing.T, cfg config.Config, snaps *stubSnapshots, macro *stubMacro, oracle *stubOracle, funds *stubFundamentals, broker *stubBroker) *testRig {
	t.Helper()

	calendar, err := market.NewCalendar()
	require.NoError(t, err)

	store, err := ledger.Open(zap.NewNop(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	audit, err := decisions.NewWALStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = audit.Close() })

	metrics, err := recorder.NewSQLiteRecorder(zap.NewNop(), filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = metrics.Close() })

	eng := New(zap.NewNop(), cfg, calendar, snaps, macro, oracle, funds, broker, store, audit, metrics)
	eng.now = func() time.Time { return openTuesday }

	return &testRig{engine: eng, broker: broker, store: store, audit: audit, metrics: metrics}
}

func auditEvents(t *testing.T, audit *decisions.WALStore) []domain.DecisionEvent {
	t.Helper()

	records, err := audit.EventsAfter(0)
	require.NoError(t, err)

	events := make([]domain.DecisionEvent, 0, len(records))
	for _, record := range records {
		events = append(events, record.Event)
	}
	return events
}

func findEvent(events []domain.DecisionEvent, ticker string, reason domain.ReasonCode) *domain.DecisionEvent {
	for i := range events {
		if events[i].Ticker == ticker && events[i].Reason == reason {
			return &events[i]
		}
	}
	return nil
}

func TestRunCycleBuysOnBandReversion(t *testing.T) {
	broker := newStubBroker("100000")
	broker.prices["AAPL"] = decimal.NewFromInt(100)

	rig := newTestRig(t, testConfig(t, "AAPL"),
		&stubSnapshots{snaps: map[string]*domain.InstrumentSnapshot{
			"AAPL": reversionSnapshot("AAPL", 100),
		}},
		&stubMacro{err: errors.New("macro feed down")},
		&stubOracle{scores: map[string]*domain.SentimentAssessment{
			"AAPL": sentimentOf("0.5", 60),
		}},
		&stubFundamentals{assessments: map[string]*domain.FundamentalAssessment{
			"AAPL": healthyFund(6, "Technology"),
		}},
		broker)

	require.NoError(t, rig.engine.RunCycle(context.Background()))

	require.Len(t, broker.orders, 1)
	assert.Equal(t, "AAPL", broker.orders[0].Ticker)
	assert.Equal(t, domain.SideBuy, broker.orders[0].Side)
	// conviction 80 -> risk 0.88%, band damper 0.7, stop 7.5%:
	// 100000 * 0.00616 / 0.075 = 8213.33 -> 82 whole shares at 100
	assert.True(t, broker.orders[0].Quantity.Equal(decimal.NewFromInt(82)),
		"quantity = %s", broker.orders[0].Quantity)

	saved := rig.store.Portfolio()
	require.NotNil(t, saved)
	assert.True(t, saved.Cash.Equal(decimal.NewFromInt(91800)), "cash = %s", saved.Cash)

	pos := saved.Position("AAPL")
	require.NotNil(t, pos)
	assert.True(t, pos.Quantity.Equal(decimal.NewFromInt(82)))
	assert.True(t, pos.AvgCost.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "Technology", pos.Sector)

	events := auditEvents(t, rig.audit)
	executed := findEvent(events, "AAPL", domain.ReasonBandReversionBuy)
	require.NotNil(t, executed)
	assert.True(t, executed.Executed)
	assert.Equal(t, 80, executed.Conviction)
}

func TestRunCycleMarketClosed(t *testing.T) {
	broker := newStubBroker("100000")
	broker.stateErr = errors.New("must not be called")

	rig := newTestRig(t, testConfig(t, "AAPL", "MSFT"),
		&stubSnapshots{snaps: map[string]*domain.InstrumentSnapshot{}},
		&stubMacro{},
		&stubOracle{scores: map[string]*domain.SentimentAssessment{}},
		&stubFundamentals{assessments: map[string]*domain.FundamentalAssessment{}},
		broker)
	rig.engine.now = func() time.Time { return closedSaturday }

	require.NoError(t, rig.engine.RunCycle(context.Background()))

	assert.Zero(t, broker.stateCalls, "closed cycle must not touch the broker")
	assert.Empty(t, broker.orders)
	assert.Nil(t, rig.store.Portfolio())

	events := auditEvents(t, rig.audit)
	require.Len(t, events, 2)
	for _, event := range events {
		assert.Equal(t, domain.ReasonMarketClosed, event.Reason)
		assert.False(t, event.Executed)
	}
}

func TestRunCycleAbortsWhenBrokerUnreachable(t *testing.T) {
	broker := newStubBroker("100000")
	broker.stateErr = errors.New("api 500")

	rig := newTestRig(t, testConfig(t, "AAPL"),
		&stubSnapshots{snaps: map[string]*domain.InstrumentSnapshot{
			"AAPL": reversionSnapshot("AAPL", 100),
		}},
		&stubMacro{},
		&stubOracle{scores: map[string]*domain.SentimentAssessment{
			"AAPL": sentimentOf("0.5", 60),
		}},
		&stubFundamentals{assessments: map[string]*domain.FundamentalAssessment{
			"AAPL": healthyFund(6, "Technology"),
		}},
		broker)

	err := rig.engine.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBrokerUnavailable))

	assert.Empty(t, broker.orders)
	assert.Nil(t, rig.store.Portfolio(), "aborted cycle must not touch the ledger")
}

func TestRunCycleSellsBeforeBuys(t *testing.T) {
	broker := newStubBroker("50000")
	broker.hold("NVDA", "10", "100")
	broker.prices["NVDA"] = decimal.NewFromInt(106)
	broker.prices["TSLA"] = decimal.NewFromInt(100)

	rig := newTestRig(t, testConfig(t, "TSLA"),
		&stubSnapshots{snaps: map[string]*domain.InstrumentSnapshot{
			"NVDA": neutralSnapshot("NVDA", 106),
			"TSLA": reversionSnapshot("TSLA", 100),
		}},
		&stubMacro{err: errors.New("macro feed down")},
		&stubOracle{scores: map[string]*domain.SentimentAssessment{
			"NVDA": sentimentOf("0.1", 50),
			"TSLA": sentimentOf("0.5", 60),
		}},
		&stubFundamentals{assessments: map[string]*domain.FundamentalAssessment{
			"NVDA": healthyFund(6, "Technology"),
			"TSLA": healthyFund(6, "Automotive"),
		}},
		broker)

	require.NoError(t, rig.engine.RunCycle(context.Background()))

	// 6% profit triggered the scale-out; its proceeds fund the entry
	require.Len(t, broker.orders, 2)
	assert.Equal(t, "NVDA", broker.orders[0].Ticker)
	assert.Equal(t, domain.SideSell, broker.orders[0].Side)
	assert.True(t, broker.orders[0].Quantity.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "TSLA", broker.orders[1].Ticker)
	assert.Equal(t, domain.SideBuy, broker.orders[1].Side)

	saved := rig.store.Portfolio()
	require.NotNil(t, saved)

	nvda := saved.Position("NVDA")
	require.NotNil(t, nvda)
	assert.True(t, nvda.Quantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, nvda.ScaledOut, "scale-out must arm the one-shot flag")
	assert.True(t, nvda.HighWaterMark.Equal(decimal.NewFromInt(106)))

	tsla := saved.Position("TSLA")
	require.NotNil(t, tsla)
	// equity 51060 after the sell: 51060 * 0.00616 / 0.075 = 4193 -> 41 shares
	assert.True(t, tsla.Quantity.Equal(decimal.NewFromInt(41)), "quantity = %s", tsla.Quantity)
	assert.True(t, saved.Cash.Equal(decimal.NewFromInt(46430)), "cash = %s", saved.Cash)
}

func TestRunCycleHedgesOnPanic(t *testing.T) {
	broker := newStubBroker("100000")
	broker.prices["PSQ"] = decimal.NewFromInt(15)

	rig := newTestRig(t, testConfig(t, "AAPL"),
		&stubSnapshots{snaps: map[string]*domain.InstrumentSnapshot{
			"AAPL": neutralSnapshot("AAPL", 100),
			"PSQ":  {Ticker: "PSQ", Price: decimal.NewFromInt(15)},
		}},
		&stubMacro{snap: &domain.MacroSnapshot{VIX: decimal.NewFromInt(50)}},
		&stubOracle{scores: map[string]*domain.SentimentAssessment{
			"AAPL": sentimentOf("0", 50),
			"PSQ":  sentimentOf("0", 50),
		}},
		&stubFundamentals{assessments: map[string]*domain.FundamentalAssessment{
			"AAPL": healthyFund(6, "Technology"),
		}},
		broker)

	require.NoError(t, rig.engine.RunCycle(context.Background()))

	// panic level targets 10% of equity: 10000 / 15 = 666 whole shares
	require.Len(t, broker.orders, 1)
	assert.Equal(t, "PSQ", broker.orders[0].Ticker)
	assert.Equal(t, domain.SideBuy, broker.orders[0].Side)
	assert.True(t, broker.orders[0].Quantity.Equal(decimal.NewFromInt(666)),
		"quantity = %s", broker.orders[0].Quantity)

	saved := rig.store.Portfolio()
	require.NotNil(t, saved)
	assert.True(t, saved.Cash.Equal(decimal.NewFromInt(90010)), "cash = %s", saved.Cash)
	require.NotNil(t, saved.Position("PSQ"))

	events := auditEvents(t, rig.audit)
	hedge := findEvent(events, "PSQ", domain.ReasonHedgeIncrease)
	require.NotNil(t, hedge)
	assert.True(t, hedge.Executed)
}

func TestRunCycleHedgeVetoedBySentiment(t *testing.T) {
	broker := newStubBroker("100000")
	broker.prices["PSQ"] = decimal.NewFromInt(15)

	rig := newTestRig(t, testConfig(t, "AAPL"),
		&stubSnapshots{snaps: map[string]*domain.InstrumentSnapshot{
			"AAPL": neutralSnapshot("AAPL", 100),
			"PSQ":  {Ticker: "PSQ", Price: decimal.NewFromInt(15)},
		}},
		&stubMacro{snap: &domain.MacroSnapshot{VIX: decimal.NewFromInt(50)}},
		&stubOracle{scores: map[string]*domain.SentimentAssessment{
			"AAPL": sentimentOf("0", 50),
			"PSQ":  sentimentOf("-0.3", 60),
		}},
		&stubFundamentals{assessments: map[string]*domain.FundamentalAssessment{
			"AAPL": healthyFund(6, "Technology"),
		}},
		broker)

	require.NoError(t, rig.engine.RunCycle(context.Background()))

	assert.Empty(t, broker.orders, "vetoed hedge must not trade")

	events := auditEvents(t, rig.audit)
	veto := findEvent(events, "PSQ", domain.ReasonHedgeVetoed)
	require.NotNil(t, veto)
	assert.Equal(t, domain.ActionHold.String(), veto.Action)
	assert.False(t, veto.Executed)
}

func TestRunCycleRotatesConvictionSwap(t *testing.T) {
	broker := newStubBroker("50000")
	broker.hold("CRM", "10", "200")
	broker.prices["CRM"] = decimal.NewFromInt(200)
	broker.prices["SNOW"] = decimal.NewFromInt(100)

	// confidence 60 keeps the proactive promotion quiet: the entry can only
	// come from the swap planner
	rig := newTestRig(t, testConfig(t, "CRM", "SNOW"),
		&stubSnapshots{snaps: map[string]*domain.InstrumentSnapshot{
			"CRM":  neutralSnapshot("CRM", 200),
			"SNOW": neutralSnapshot("SNOW", 100),
		}},
		&stubMacro{err: errors.New("macro feed down")},
		&stubOracle{scores: map[string]*domain.SentimentAssessment{
			"CRM":  sentimentOf("-0.3", 60),
			"SNOW": sentimentOf("0.9", 60),
		}},
		&stubFundamentals{assessments: map[string]*domain.FundamentalAssessment{
			"CRM":  healthyFund(4, "Technology"),
			"SNOW": healthyFund(8, "Technology"),
		}},
		broker)

	require.NoError(t, rig.engine.RunCycle(context.Background()))

	require.Len(t, broker.orders, 2)
	assert.Equal(t, "CRM", broker.orders[0].Ticker)
	assert.Equal(t, domain.SideSell, broker.orders[0].Side)
	assert.True(t, broker.orders[0].Quantity.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "SNOW", broker.orders[1].Ticker)
	assert.Equal(t, domain.SideBuy, broker.orders[1].Side)
	// conviction 100 -> risk 1%, band damper 0.7, stop 7.5%:
	// 52000 * 0.007 / 0.075 = 4853.33 -> 48 whole shares at 100
	assert.True(t, broker.orders[1].Quantity.Equal(decimal.NewFromInt(48)),
		"quantity = %s", broker.orders[1].Quantity)

	saved := rig.store.Portfolio()
	require.NotNil(t, saved)
	assert.Nil(t, saved.Position("CRM"))
	require.NotNil(t, saved.Position("SNOW"))
	assert.True(t, saved.Cash.Equal(decimal.NewFromInt(47200)), "cash = %s", saved.Cash)

	events := auditEvents(t, rig.audit)
	exit := findEvent(events, "CRM", domain.ReasonSwapExit)
	require.NotNil(t, exit)
	assert.True(t, exit.Executed)
	entry := findEvent(events, "SNOW", domain.ReasonSwapEntry)
	require.NotNil(t, entry)
	assert.True(t, entry.Executed)
	assert.Equal(t, 100, entry.Conviction)
}

func TestRunCycleNoSwapWhenHoldingDataMissing(t *testing.T) {
	broker := newStubBroker("50000")
	broker.hold("CRM", "10", "200")
	broker.prices["CRM"] = decimal.NewFromInt(200)
	broker.prices["SNOW"] = decimal.NewFromInt(100)

	// CRM sentiment is unavailable this cycle: the holding must not read
	// as weak, so the entry stands alone and is funded from cash.
	rig := newTestRig(t, testConfig(t, "CRM", "SNOW"),
		&stubSnapshots{snaps: map[string]*domain.InstrumentSnapshot{
			"CRM":  neutralSnapshot("CRM", 200),
			"SNOW": neutralSnapshot("SNOW", 100),
		}},
		&stubMacro{err: errors.New("macro feed down")},
		&stubOracle{scores: map[string]*domain.SentimentAssessment{
			"SNOW": sentimentOf("0.9", 90),
		}},
		&stubFundamentals{assessments: map[string]*domain.FundamentalAssessment{
			"CRM":  healthyFund(4, "Technology"),
			"SNOW": healthyFund(8, "Technology"),
		}},
		broker)

	require.NoError(t, rig.engine.RunCycle(context.Background()))

	require.Len(t, broker.orders, 1)
	assert.Equal(t, "SNOW", broker.orders[0].Ticker)
	assert.Equal(t, domain.SideBuy, broker.orders[0].Side)

	saved := rig.store.Portfolio()
	require.NotNil(t, saved)
	crm := saved.Position("CRM")
	require.NotNil(t, crm, "holding with missing data must be kept")
	assert.True(t, crm.Quantity.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, saved.Position("SNOW"))
}

func TestRunCycleResolvesPendingIntents(t *testing.T) {
	broker := newStubBroker("100000")

	rig := newTestRig(t, testConfig(t, "AAPL"),
		&stubSnapshots{snaps: map[string]*domain.InstrumentSnapshot{
			"AAPL": neutralSnapshot("AAPL", 100),
		}},
		&stubMacro{err: errors.New("macro feed down")},
		&stubOracle{scores: map[string]*domain.SentimentAssessment{
			"AAPL": sentimentOf("0", 50),
		}},
		&stubFundamentals{assessments: map[string]*domain.FundamentalAssessment{
			"AAPL": healthyFund(6, "Technology"),
		}},
		broker)

	// simulate a crash between journal and broker on a previous run
	_, err := rig.store.Prepare("interrupted-cycle", "AAPL", "buy", d("5"), d("100"), "BAND_REVERSION_BUY")
	require.NoError(t, err)
	require.Len(t, rig.store.PendingIntents(), 1)

	require.NoError(t, rig.engine.RunCycle(context.Background()))

	assert.Empty(t, rig.store.PendingIntents(), "stale intent must be closed out")
	assert.Empty(t, broker.orders, "stale intent must never be re-placed")
}

func TestRunCycleSingleFlight(t *testing.T) {
	broker := newStubBroker("100000")

	rig := newTestRig(t, testConfig(t, "AAPL"),
		&stubSnapshots{snaps: map[string]*domain.InstrumentSnapshot{}},
		&stubMacro{},
		&stubOracle{scores: map[string]*domain.SentimentAssessment{}},
		&stubFundamentals{assessments: map[string]*domain.FundamentalAssessment{}},
		broker)

	rig.engine.cycleMu.Lock()
	defer rig.engine.cycleMu.Unlock()

	require.NoError(t, rig.engine.RunCycle(context.Background()))
	assert.Zero(t, broker.stateCalls, "overlapping trigger must be dropped")
}

func TestRunCycleIsolatesRejectedOrder(t *testing.T) {
	broker := newStubBroker("100000")
	broker.prices["AAPL"] = decimal.NewFromInt(100)
	broker.prices["MSFT"] = decimal.NewFromInt(100)
	broker.rejects["AAPL"] = errors.Wrap(domain.ErrOrderRejected, "insufficient buying power")

	rig := newTestRig(t, testConfig(t, "AAPL", "MSFT"),
		&stubSnapshots{snaps: map[string]*domain.InstrumentSnapshot{
			"AAPL": reversionSnapshot("AAPL", 100),
			"MSFT": reversionSnapshot("MSFT", 100),
		}},
		&stubMacro{err: errors.New("macro feed down")},
		&stubOracle{scores: map[string]*domain.SentimentAssessment{
			"AAPL": sentimentOf("0.5", 60),
			"MSFT": sentimentOf("0.5", 60),
		}},
		&stubFundamentals{assessments: map[string]*domain.FundamentalAssessment{
			"AAPL": healthyFund(6, "Technology"),
			"MSFT": healthyFund(6, "Technology"),
		}},
		broker)

	require.NoError(t, rig.engine.RunCycle(context.Background()),
		"a rejected order must not abort the cycle")

	require.Len(t, broker.orders, 1)
	assert.Equal(t, "MSFT", broker.orders[0].Ticker)

	saved := rig.store.Portfolio()
	require.NotNil(t, saved)
	assert.Nil(t, saved.Position("AAPL"))
	require.NotNil(t, saved.Position("MSFT"))
	assert.Empty(t, rig.store.PendingIntents(), "rejected intent must be marked failed")

	events := auditEvents(t, rig.audit)
	rejected := findEvent(events, "AAPL", domain.ReasonBandReversionBuy)
	require.NotNil(t, rejected)
	assert.False(t, rejected.Executed)
	assert.Contains(t, rejected.Error, "insufficient buying power")
}

func TestRunCycleAdoptsExternalPosition(t *testing.T) {
	broker := newStubBroker("100000")
	broker.hold("GME", "5", "20")

	rig := newTestRig(t, testConfig(t, "AAPL"),
		&stubSnapshots{snaps: map[string]*domain.InstrumentSnapshot{
			"AAPL": neutralSnapshot("AAPL", 100),
		}},
		&stubMacro{err: errors.New("macro feed down")},
		&stubOracle{scores: map[string]*domain.SentimentAssessment{
			"AAPL": sentimentOf("0", 50),
		}},
		&stubFundamentals{assessments: map[string]*domain.FundamentalAssessment{
			"AAPL": healthyFund(6, "Technology"),
		}},
		broker)

	require.NoError(t, rig.engine.RunCycle(context.Background()))

	assert.Empty(t, broker.orders)

	saved := rig.store.Portfolio()
	require.NotNil(t, saved)
	gme := saved.Position("GME")
	require.NotNil(t, gme, "externally opened position must be adopted")
	assert.True(t, gme.Quantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, gme.HighWaterMark.Equal(decimal.NewFromInt(20)),
		"adopted position starts its high-water mark at avg cost")

	events := auditEvents(t, rig.audit)
	assert.NotNil(t, findEvent(events, "GME", domain.ReasonNeutralHold))
}
