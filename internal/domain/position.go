package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Position is a held long position in the ledger. Quantity and AvgCost are
// broker-owned (overwritten on reconciliation); HighWaterMark, ScaledOut
// and LastPrice are core-owned derived state the broker knows nothing about.
type Position struct {
	Ticker        string          `json:"ticker"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgCost       decimal.Decimal `json:"avg_cost"`
	HighWaterMark decimal.Decimal `json:"high_water_mark"`
	ScaledOut     bool            `json:"scaled_out"`
	// LastPrice is the most recent snapshot price, kept so exits can still
	// be evaluated when a cycle has no fresh data for the ticker.
	LastPrice decimal.Decimal `json:"last_price"`
	Sector    string          `json:"sector"`
	OpenedAt  time.Time       `json:"opened_at"`
}

// NewPosition constructs a position from a first fill.
func NewPosition(ticker string, quantity, price decimal.Decimal, openedAt time.Time) (*Position, error) {
	if ticker == "" {
		return nil, errors.New("position ticker is required")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("position quantity must be greater than zero")
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("position price must be greater than zero")
	}

	return &Position{
		Ticker:        ticker,
		Quantity:      quantity,
		AvgCost:       price,
		HighWaterMark: price,
		LastPrice:     price,
		OpenedAt:      openedAt,
	}, nil
}

// ApplyBuyFill folds a buy fill into the position, recomputing the
// weighted-average cost.
func (p *Position) ApplyBuyFill(quantity, price decimal.Decimal) error {
	if p == nil {
		return errors.New("nil position")
	}
	if quantity.LessThanOrEqual(decimal.Zero) || price.LessThanOrEqual(decimal.Zero) {
		return errors.New("buy fill quantity and price must be positive")
	}

	total := p.Quantity.Add(quantity)
	existingNotional := p.AvgCost.Mul(p.Quantity)
	addedNotional := price.Mul(quantity)
	p.AvgCost = existingNotional.Add(addedNotional).Div(total)
	p.Quantity = total
	p.LastPrice = price
	if price.GreaterThan(p.HighWaterMark) {
		p.HighWaterMark = price
	}
	return nil
}

// ApplySellFill reduces the position by a sell fill. Returns true when the
// position is fully closed.
func (p *Position) ApplySellFill(quantity decimal.Decimal) (closed bool, err error) {
	if p == nil {
		return false, errors.New("nil position")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return false, errors.New("sell fill quantity must be positive")
	}
	if quantity.GreaterThan(p.Quantity) {
		return false, errors.Errorf("sell fill %s exceeds position quantity %s",
			quantity.String(), p.Quantity.String())
	}

	p.Quantity = p.Quantity.Sub(quantity)
	return p.Quantity.IsZero(), nil
}

// ProfitPct returns (price-avgCost)/avgCost for the given price.
func (p *Position) ProfitPct(price decimal.Decimal) decimal.Decimal {
	if p == nil || !p.AvgCost.IsPositive() {
		return decimal.Zero
	}
	return price.Sub(p.AvgCost).Div(p.AvgCost)
}

// DrawdownFromHWM returns (HWM-price)/HWM, zero when no mark is tracked.
func (p *Position) DrawdownFromHWM(price decimal.Decimal) decimal.Decimal {
	if p == nil || !p.HighWaterMark.IsPositive() {
		return decimal.Zero
	}
	return p.HighWaterMark.Sub(price).Div(p.HighWaterMark)
}

// RaiseHWM lifts the high-water mark when price makes a new high.
func (p *Position) RaiseHWM(price decimal.Decimal) {
	if p == nil {
		return
	}
	if price.GreaterThan(p.HighWaterMark) {
		p.HighWaterMark = price
	}
}

// MarketValue returns quantity times the freshest known price.
func (p *Position) MarketValue() decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	price := p.LastPrice
	if !price.IsPositive() {
		price = p.AvgCost
	}
	return p.Quantity.Mul(price)
}

// Clone returns a deep copy.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
