package market

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/market/indicators"
)

const (
	// VIXTicker and BenchmarkTicker are the instruments behind the macro
	// stress read. Feed sources must be able to serve both.
	VIXTicker       = "^VIX"
	BenchmarkTicker = "QQQ"
)

// MacroProvider captures the market-wide stress snapshot once per cycle.
type MacroProvider struct {
	l    *zap.Logger
	src  candleSource
	bars int
}

func NewMacroProvider(l *zap.Logger, src candleSource, bars int) *MacroProvider {
	return &MacroProvider{l: l, src: src, bars: bars}
}

// Snapshot reads the VIX level and whether the benchmark trades below its
// 50-day average. A failure leaves the cycle without macro data; the hedge
// controller treats that as all-clear and the sizer skips its VIX damper.
func (m *MacroProvider) Snapshot(ctx context.Context) (*domain.MacroSnapshot, error) {
	vixCandles, err := m.src.History(ctx, VIXTicker, m.bars)
	if err != nil {
		return nil, errors.Wrap(err, "vix history")
	}
	if len(vixCandles) == 0 {
		return nil, errors.New("empty vix history")
	}

	benchCandles, err := m.src.History(ctx, BenchmarkTicker, m.bars)
	if err != nil {
		return nil, errors.Wrap(err, "benchmark history")
	}

	closes := domain.Closes(benchCandles)
	sma, err := indicators.SMA(closes, smaLongPeriod)
	if err != nil {
		return nil, errors.Wrap(err, "benchmark sma")
	}
	smaLast, err := indicators.Last(sma)
	if err != nil {
		return nil, errors.Wrap(err, "benchmark sma")
	}

	snap := &domain.MacroSnapshot{
		VIX:           vixCandles[len(vixCandles)-1].Close,
		QQQBelowSMA50: closes[len(closes)-1].LessThan(smaLast),
		CapturedAt:    time.Now(),
	}

	m.l.Debug("macro snapshot",
		zap.String("vix", snap.VIX.String()),
		zap.Bool("benchmark_below_sma50", snap.QQQBelowSMA50))

	return snap, nil
}
