package sizer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/domain"
)

type fixedStops struct {
	base decimal.Decimal
}

func (f fixedStops) StopDistance(decimal.Decimal) decimal.Decimal {
	return f.base
}

func testSizing() config.Sizing {
	d := decimal.RequireFromString
	return config.Sizing{
		MinRiskPct:         d("0.004"),
		MaxRiskPct:         d("0.010"),
		VIXDamperThreshold: d("20"),
		VIXDamperFactor:    d("0.5"),
		BandDamperWidth:    d("0.05"),
		BandDamperFactor:   d("0.7"),
		CapPct:             d("0.28"),
		StarFloorPct:       d("0.10"),
		CashReserve:        d("1000"),
	}
}

func buy(ticker string, conviction int) domain.Decision {
	return domain.Decision{Ticker: ticker, Action: domain.ActionBuy, Reason: domain.ReasonBandReversionBuy, Conviction: conviction}
}

func TestSize(t *testing.T) {
	d := decimal.RequireFromString
	equity := decimal.NewFromInt(100000)
	s := New(testSizing(), fixedStops{base: d("0.05")})

	t.Run("risk budget lerps on conviction", func(t *testing.T) {
		// conviction 80: risk 0.004+0.006*0.8=0.0088, /0.05 stop = 17.6k
		got := s.Size(buy("AAPL", 80), decimal.Zero, equity, nil)
		require.True(t, got.Equal(d("17600")), got.String())

		// conviction 0 uses the floor risk
		got = s.Size(buy("AAPL", 0), decimal.Zero, equity, nil)
		require.True(t, got.Equal(d("8000")), got.String())
	})

	t.Run("vix damper halves the budget", func(t *testing.T) {
		macro := &domain.MacroSnapshot{VIX: decimal.NewFromInt(25)}
		got := s.Size(buy("AAPL", 80), decimal.Zero, equity, macro)
		require.True(t, got.Equal(d("8800")), got.String())
	})

	t.Run("calm vix leaves the budget alone", func(t *testing.T) {
		macro := &domain.MacroSnapshot{VIX: decimal.NewFromInt(15)}
		got := s.Size(buy("AAPL", 80), decimal.Zero, equity, macro)
		require.True(t, got.Equal(d("17600")), got.String())
	})

	t.Run("band damper shrinks the budget", func(t *testing.T) {
		got := s.Size(buy("AAPL", 80), d("0.06"), equity, nil)
		// 0.0088*0.7=0.00616, /0.05 = 12320
		require.True(t, got.Equal(d("12320")), got.String())
	})

	t.Run("cap clamps oversized positions", func(t *testing.T) {
		tight := New(testSizing(), fixedStops{base: d("0.025")})
		got := tight.Size(buy("AAPL", 100), decimal.Zero, equity, nil)
		// 0.01/0.025 would be 40k, capped at 28% of equity
		require.True(t, got.Equal(d("28000")), got.String())
	})

	t.Run("star floor raises small positions", func(t *testing.T) {
		star := buy("AAPL", 0)
		star.IsStar = true
		got := s.Size(star, decimal.Zero, equity, nil)
		require.True(t, got.Equal(d("10000")), got.String())
	})

	t.Run("star floor never beats the cap", func(t *testing.T) {
		cfg := testSizing()
		cfg.StarFloorPct = d("0.50")
		wide := New(cfg, fixedStops{base: d("0.05")})

		star := buy("AAPL", 0)
		star.IsStar = true
		got := wide.Size(star, decimal.Zero, equity, nil)
		require.True(t, got.Equal(d("28000")), got.String())
	})

	t.Run("zero equity sizes zero", func(t *testing.T) {
		got := s.Size(buy("AAPL", 90), decimal.Zero, decimal.Zero, nil)
		require.True(t, got.IsZero())
	})
}

func TestAllocate(t *testing.T) {
	d := decimal.RequireFromString
	equity := decimal.NewFromInt(100000)
	s := New(testSizing(), fixedStops{base: d("0.05")})

	t.Run("allocates in descending conviction order", func(t *testing.T) {
		buys := []domain.Decision{buy("LOW", 40), buy("HIGH", 90), buy("MID", 70)}

		got := s.Allocate(buys, nil, equity, decimal.NewFromInt(50000), nil)
		require.Len(t, got, 3)
		require.Equal(t, "HIGH", got[0].Ticker)
		require.Equal(t, "MID", got[1].Ticker)
		require.Equal(t, "LOW", got[2].Ticker)

		// HIGH: risk 0.0094 -> 18800; MID: 0.0082 -> 16400;
		// LOW wants 12800 and 13800 is still free over the reserve
		require.True(t, got[0].Notional.Equal(d("18800")), got[0].Notional.String())
		require.True(t, got[1].Notional.Equal(d("16400")), got[1].Notional.String())
		require.True(t, got[2].Notional.Equal(d("12800")), got[2].Notional.String())
	})

	t.Run("reserve floor truncates the tail", func(t *testing.T) {
		buys := []domain.Decision{buy("A", 90), buy("B", 90), buy("C", 90)}

		got := s.Allocate(buys, nil, equity, decimal.NewFromInt(40000), nil)
		// each wants 18800; 40000-1000 reserve leaves 39000
		require.True(t, got[0].Notional.Equal(d("18800")))
		require.True(t, got[1].Notional.Equal(d("18800")))
		require.True(t, got[2].Notional.Equal(d("1400")), got[2].Notional.String())
	})

	t.Run("skipped buys keep zero notional", func(t *testing.T) {
		buys := []domain.Decision{buy("A", 90), buy("B", 50)}

		got := s.Allocate(buys, nil, equity, decimal.NewFromInt(5000), nil)
		require.True(t, got[0].Notional.Equal(d("4000")), got[0].Notional.String())
		require.True(t, got[1].Notional.IsZero())
	})

	t.Run("never dips under the reserve", func(t *testing.T) {
		buys := []domain.Decision{buy("A", 100), buy("B", 100), buy("C", 100)}

		cash := decimal.NewFromInt(30000)
		got := s.Allocate(buys, nil, equity, cash, nil)

		total := decimal.Zero
		for _, g := range got {
			total = total.Add(g.Notional)
		}
		require.True(t, cash.Sub(total).GreaterThanOrEqual(d("1000")),
			"allocated %s of %s", total.String(), cash.String())
	})

	t.Run("no cash means every buy is skipped", func(t *testing.T) {
		buys := []domain.Decision{buy("A", 90)}
		got := s.Allocate(buys, nil, equity, decimal.NewFromInt(900), nil)
		require.True(t, got[0].Notional.IsZero())
	})

	t.Run("ties break on ticker for determinism", func(t *testing.T) {
		buys := []domain.Decision{buy("ZZZ", 80), buy("AAA", 80)}
		got := s.Allocate(buys, nil, equity, decimal.NewFromInt(50000), nil)
		require.Equal(t, "AAA", got[0].Ticker)
		require.Equal(t, "ZZZ", got[1].Ticker)
	})
}

func TestCapToReserve(t *testing.T) {
	d := decimal.RequireFromString
	s := New(testSizing(), fixedStops{base: d("0.05")})

	require.True(t, s.CapToReserve(d("5000"), d("10000")).Equal(d("5000")))
	require.True(t, s.CapToReserve(d("5000"), d("4000")).Equal(d("3000")))
	require.True(t, s.CapToReserve(d("5000"), d("800")).IsZero())
}
