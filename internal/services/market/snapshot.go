// Package market turns raw candle history into the per-ticker and
// market-wide snapshots the decision pipeline consumes.
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
	smaShortPeriod  = 20
	smaLongPeriod   = 50
	rsiPeriod       = 14
	volumeAvgPeriod = 20
)

type candleSource interface {
	History(ctx context.Context, ticker string, bars int) ([]domain.Candle, error)
}

// Builder captures instrument snapshots from daily candles.
type Builder struct {
	l    *zap.Logger
	src  candleSource
	bars int
}

func NewBuilder(l *zap.Logger, src candleSource, bars int) *Builder {
	return &Builder{l: l, src: src, bars: bars}
}

// Snapshot builds the instrument picture for one ticker. Indicators that
// lack warmup data stay zero; the snapshot reports itself incomplete and
// the pipeline rejects entries on it while exits still see the price.
func (b *Builder) Snapshot(ctx context.Context, ticker string) (*domain.InstrumentSnapshot, error) {
	candles, err := b.src.History(ctx, ticker, b.bars)
	if err != nil {
		return nil, errors.Wrapf(err, "history for %s", ticker)
	}
	if len(candles) == 0 {
		return nil, errors.Errorf("no candles for %s", ticker)
	}

	closes := domain.Closes(candles)
	volumes := domain.Volumes(candles)

	snap := &domain.InstrumentSnapshot{
		Ticker:     ticker,
		Price:      closes[len(closes)-1],
		Volume:     volumes[len(volumes)-1],
		CapturedAt: time.Now(),
	}

	if sma, err := indicators.SMA(closes, smaShortPeriod); err == nil {
		snap.SMA20, _ = indicators.Last(sma)
	}
	if sma, err := indicators.SMA(closes, smaLongPeriod); err == nil {
		snap.SMA50, _ = indicators.Last(sma)
	}
	if rsi, err := indicators.RSI(closes, rsiPeriod); err == nil {
		snap.RSI14, _ = indicators.Last(rsi)
	}
	if bands, err := indicators.BollingerBands(closes); err == nil && len(bands) > 0 {
		snap.BBUpper = bands[len(bands)-1].Upper
		snap.BBLower = bands[len(bands)-1].Lower
	}
	if avg, err := indicators.SMA(volumes, volumeAvgPeriod); err == nil {
		snap.AvgVolume20, _ = indicators.Last(avg)
	}

	if !snap.Complete() {
		b.l.Debug("instrument snapshot incomplete",
			zap.String("ticker", ticker),
			zap.Int("candles", len(candles)))
	}

	return snap, nil
}
