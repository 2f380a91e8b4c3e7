package market

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
)

type stubSource struct {
	histories map[string][]domain.Candle
	errs      map[string]error
}

func (s *stubSource) History(_ context.Context, ticker string, bars int) ([]domain.Candle, error) {
	if err, ok := s.errs[ticker]; ok {
		return nil, err
	}
	candles := s.histories[ticker]
	if len(candles) > bars {
		candles = candles[len(candles)-bars:]
	}
	return candles, nil
}

// risingCandles builds n daily candles with closes start, start+1, ... and
// constant volume except a doubled final bar.
func risingCandles(n int, start float64) []domain.Candle {
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, n)
	for i := 0; i < n; i++ {
		price := decimal.NewFromFloat(start + float64(i))
		volume := decimal.NewFromInt(1_000_000)
		if i == n-1 {
			volume = decimal.NewFromInt(2_000_000)
		}
		candles[i] = domain.Candle{
			Time:   day.AddDate(0, 0, i),
			Open:   price,
			High:   price.Add(decimal.NewFromInt(1)),
			Low:    price.Sub(decimal.NewFromInt(1)),
			Close:  price,
			Volume: volume,
		}
	}
	return candles
}

func fallingCandles(n int, start float64) []domain.Candle {
	candles := risingCandles(n, start)
	for i := range candles {
		price := decimal.NewFromFloat(start - float64(i))
		candles[i].Open = price
		candles[i].Close = price
		candles[i].High = price.Add(decimal.NewFromInt(1))
		candles[i].Low = price.Sub(decimal.NewFromInt(1))
	}
	return candles
}

func TestSnapshotComputesIndicators(t *testing.T) {
	src := &stubSource{histories: map[string][]domain.Candle{
		"AAPL": risingCandles(60, 100),
	}}
	b := NewBuilder(zap.NewNop(), src, 60)

	snap, err := b.Snapshot(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.True(t, snap.Complete(), "60 bars must produce a complete snapshot")
	assert.InDelta(t, 159, snap.Price.InexactFloat64(), 1e-9)
	assert.InDelta(t, 149.5, snap.SMA20.InexactFloat64(), 1e-6, "mean of closes 140..159")
	assert.InDelta(t, 134.5, snap.SMA50.InexactFloat64(), 1e-6, "mean of closes 110..159")
	assert.InDelta(t, 100, snap.RSI14.InexactFloat64(), 1e-6, "monotonic rise pins RSI at 100")
	assert.InDelta(t, 1_050_000, snap.AvgVolume20.InexactFloat64(), 1e-3)

	// 2-sigma bands straddle the 20-day mean.
	assert.True(t, snap.BBUpper.GreaterThan(snap.SMA20))
	assert.True(t, snap.BBLower.LessThan(snap.SMA20))
	assert.InDelta(t, 149.5, snap.BBUpper.Add(snap.BBLower).Div(decimal.NewFromInt(2)).InexactFloat64(), 0.01)
}

func TestSnapshotIncompleteOnShortHistory(t *testing.T) {
	src := &stubSource{histories: map[string][]domain.Candle{
		"IPO": risingCandles(10, 30),
	}}
	b := NewBuilder(zap.NewNop(), src, 60)

	snap, err := b.Snapshot(context.Background(), "IPO")
	require.NoError(t, err)

	assert.False(t, snap.Complete())
	assert.InDelta(t, 39, snap.Price.InexactFloat64(), 1e-9, "price still usable for exits")
	assert.True(t, snap.SMA50.IsZero())
	assert.True(t, snap.BBUpper.IsZero())
}

func TestSnapshotSourceFailure(t *testing.T) {
	src := &stubSource{errs: map[string]error{"AAPL": errors.New("file missing")}}
	b := NewBuilder(zap.NewNop(), src, 60)

	_, err := b.Snapshot(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AAPL")
}

func TestSnapshotEmptyHistory(t *testing.T) {
	src := &stubSource{histories: map[string][]domain.Candle{}}
	b := NewBuilder(zap.NewNop(), src, 60)

	_, err := b.Snapshot(context.Background(), "GHOST")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candles")
}

func TestMacroSnapshot(t *testing.T) {
	vix := risingCandles(5, 28) // last close 32

	t.Run("benchmark above its average", func(t *testing.T) {
		src := &stubSource{histories: map[string][]domain.Candle{
			VIXTicker:       vix,
			BenchmarkTicker: risingCandles(60, 400),
		}}
		m := NewMacroProvider(zap.NewNop(), src, 60)

		snap, err := m.Snapshot(context.Background())
		require.NoError(t, err)
		assert.InDelta(t, 32, snap.VIX.InexactFloat64(), 1e-9)
		assert.False(t, snap.QQQBelowSMA50)
	})

	t.Run("benchmark below its average", func(t *testing.T) {
		src := &stubSource{histories: map[string][]domain.Candle{
			VIXTicker:       vix,
			BenchmarkTicker: fallingCandles(60, 500),
		}}
		m := NewMacroProvider(zap.NewNop(), src, 60)

		snap, err := m.Snapshot(context.Background())
		require.NoError(t, err)
		assert.True(t, snap.QQQBelowSMA50)
	})

	t.Run("vix unavailable", func(t *testing.T) {
		src := &stubSource{
			histories: map[string][]domain.Candle{BenchmarkTicker: risingCandles(60, 400)},
			errs:      map[string]error{VIXTicker: errors.New("feed down")},
		}
		m := NewMacroProvider(zap.NewNop(), src, 60)

		_, err := m.Snapshot(context.Background())
		require.Error(t, err)
	})

	t.Run("benchmark history too short for sma", func(t *testing.T) {
		src := &stubSource{histories: map[string][]domain.Candle{
			VIXTicker:       vix,
			BenchmarkTicker: risingCandles(20, 400),
		}}
		m := NewMacroProvider(zap.NewNop(), src, 60)

		_, err := m.Snapshot(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "benchmark sma")
	})
}
