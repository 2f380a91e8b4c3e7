package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is a single OHLCV bar from a market data feed.
type Candle struct {
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// Closes extracts the close series from candles in order.
func Closes(candles []Candle) []decimal.Decimal {
	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

// Volumes extracts the volume series from candles in order.
func Volumes(candles []Candle) []decimal.Decimal {
	volumes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		volumes[i] = c.Volume
	}
	return volumes
}
