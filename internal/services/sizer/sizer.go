// Package sizer translates approved buy decisions into notional amounts.
// Risk budget scales linearly with conviction, macro and volatility dampers
// shrink it, and the stop distance converts budget into position size.
package sizer

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/domain"
)

type stopper interface {
	StopDistance(bandWidth decimal.Decimal) decimal.Decimal
}

// Sizer computes per-decision notionals and runs the cascading allocation
// across a cycle's approved buys.
type Sizer struct {
	cfg   config.Sizing
	stops stopper
}

func New(cfg config.Sizing, stops stopper) *Sizer {
	return &Sizer{cfg: cfg, stops: stops}
}

// Size returns the target notional for one approved buy. macro may be nil
// when the macro picture is unavailable; the VIX damper is skipped then.
func (s *Sizer) Size(d domain.Decision, bandWidth, equity decimal.Decimal, macro *domain.MacroSnapshot) decimal.Decimal {
	if !equity.IsPositive() {
		return decimal.Zero
	}

	riskPct := s.riskBudget(d.Conviction)

	if macro != nil && macro.VIX.GreaterThan(s.cfg.VIXDamperThreshold) {
		riskPct = riskPct.Mul(s.cfg.VIXDamperFactor)
	}
	if bandWidth.GreaterThan(s.cfg.BandDamperWidth) {
		riskPct = riskPct.Mul(s.cfg.BandDamperFactor)
	}

	stopDistance := s.stops.StopDistance(bandWidth)
	notional := equity.Mul(riskPct).Div(stopDistance)

	cap := s.cfg.CapPct.Mul(equity)
	if d.IsStar {
		floor := s.cfg.StarFloorPct.Mul(equity)
		if notional.LessThan(floor) {
			notional = floor
		}
	}
	if notional.GreaterThan(cap) {
		notional = cap
	}
	if notional.IsNegative() {
		return decimal.Zero
	}

	return notional
}

// riskBudget lerps between the configured risk bounds on conviction.
func (s *Sizer) riskBudget(conviction int) decimal.Decimal {
	norm := decimal.NewFromInt(int64(conviction)).Div(decimal.NewFromInt(100))
	span := s.cfg.MaxRiskPct.Sub(s.cfg.MinRiskPct)
	return s.cfg.MinRiskPct.Add(span.Mul(norm))
}

// Allocate distributes working cash across approved buys in descending
// conviction order. Each buy receives min(target, workingCash - reserve);
// buys that get nothing keep a zero notional and are skipped, not failed.
// The returned slice is in allocation order.
func (s *Sizer) Allocate(buys []domain.Decision, bandWidths map[string]decimal.Decimal,
	equity, cash decimal.Decimal, macro *domain.MacroSnapshot) []domain.Decision {

	ordered := make([]domain.Decision, len(buys))
	copy(ordered, buys)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Conviction != ordered[j].Conviction {
			return ordered[i].Conviction > ordered[j].Conviction
		}
		return ordered[i].Ticker < ordered[j].Ticker
	})

	workingCash := cash
	for i := range ordered {
		ordered[i].Notional = decimal.Zero

		if workingCash.LessThanOrEqual(s.cfg.CashReserve) {
			continue
		}

		target := s.Size(ordered[i], bandWidths[ordered[i].Ticker], equity, macro)
		actual := decimal.Min(target, workingCash.Sub(s.cfg.CashReserve))
		if !actual.IsPositive() {
			continue
		}

		ordered[i].Notional = actual
		workingCash = workingCash.Sub(actual)
	}

	return ordered
}

// CapToReserve clamps a spend against the cash reserve floor. Hedge
// adjustments use the same floor as ordinary buys.
func (s *Sizer) CapToReserve(notional, workingCash decimal.Decimal) decimal.Decimal {
	available := workingCash.Sub(s.cfg.CashReserve)
	if !available.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(notional, available)
}
