package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of a market order.
type OrderSide int

const (
	SideBuy OrderSide = iota
	SideSell
)

// String returns the string representation of the side.
func (s OrderSide) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// BrokerPosition is the broker's authoritative view of one holding.
type BrokerPosition struct {
	Ticker   string          `json:"ticker"`
	Quantity decimal.Decimal `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avg_cost"`
}

// BrokerState is the broker's authoritative account snapshot.
type BrokerState struct {
	Cash      decimal.Decimal           `json:"cash"`
	Positions map[string]BrokerPosition `json:"positions"`
}

// Fill is an executed market order.
type Fill struct {
	ClientOrderID string          `json:"client_order_id"`
	Ticker        string          `json:"ticker"`
	Side          OrderSide       `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Commission    decimal.Decimal `json:"commission"`
	FilledAt      time.Time       `json:"filled_at"`
}

// Notional returns the quote value of the fill before commission.
func (f Fill) Notional() decimal.Decimal {
	return f.Quantity.Mul(f.Price)
}
