package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentSnapshot is the per-ticker market picture captured once per
// cycle. It is immutable for the duration of that cycle.
type InstrumentSnapshot struct {
	Ticker      string          `json:"ticker"`
	Price       decimal.Decimal `json:"price"`
	SMA20       decimal.Decimal `json:"sma20"`
	SMA50       decimal.Decimal `json:"sma50"`
	BBUpper     decimal.Decimal `json:"bb_upper"`
	BBLower     decimal.Decimal `json:"bb_lower"`
	RSI14       decimal.Decimal `json:"rsi14"`
	Volume      decimal.Decimal `json:"volume"`
	AvgVolume20 decimal.Decimal `json:"avg_volume_20"`
	CapturedAt  time.Time       `json:"captured_at"`
}

// Complete reports whether every field the entry pipeline depends on is
// present. Incomplete snapshots still allow exit evaluation on Price.
func (s *InstrumentSnapshot) Complete() bool {
	if s == nil {
		return false
	}
	return s.Price.IsPositive() &&
		s.SMA20.IsPositive() &&
		s.SMA50.IsPositive() &&
		s.BBUpper.IsPositive() &&
		s.BBLower.IsPositive() &&
		!s.RSI14.IsNegative() &&
		s.AvgVolume20.IsPositive()
}

// BandWidth returns (bbUpper-bbLower)/price, the volatility proxy used by
// the entry gate and the sizing damper. Zero when the snapshot is unusable.
func (s *InstrumentSnapshot) BandWidth() decimal.Decimal {
	if s == nil || !s.Price.IsPositive() {
		return decimal.Zero
	}
	return s.BBUpper.Sub(s.BBLower).Div(s.Price)
}

// RelativeVolume returns volume/avgVolume20, zero when the average is unknown.
func (s *InstrumentSnapshot) RelativeVolume() decimal.Decimal {
	if s == nil || !s.AvgVolume20.IsPositive() {
		return decimal.Zero
	}
	return s.Volume.Div(s.AvgVolume20)
}
