package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertLevel classifies market-wide stress for the hedge controller.
type AlertLevel int

const (
	AlertClear AlertLevel = iota
	AlertCaution
	AlertFear
	AlertPanic
)

// String returns the string representation of the alert level.
func (l AlertLevel) String() string {
	switch l {
	case AlertClear:
		return "clear"
	case AlertCaution:
		return "caution"
	case AlertFear:
		return "fear"
	case AlertPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// MacroSnapshot captures market-wide stress indicators once per cycle.
type MacroSnapshot struct {
	VIX           decimal.Decimal `json:"vix"`
	QQQBelowSMA50 bool            `json:"qqq_below_sma50"`
	CapturedAt    time.Time       `json:"captured_at"`
}
