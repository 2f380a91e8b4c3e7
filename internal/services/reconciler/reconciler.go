// Package reconciler merges broker truth into the ledger. The broker owns
// cash, quantity and average cost; the ledger owns the high-water mark, the
// scaled-out flag and the last known price. Drift is corrected silently and
// recorded for audit, never treated as fatal.
package reconciler

import (
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
)

type Reconciler struct {
	l *zap.Logger
}

func New(l *zap.Logger) *Reconciler {
	return &Reconciler{l: l}
}

// Merge returns a new portfolio with broker-owned fields overwritten from
// brokerState and core-owned fields carried over from ledger. The input
// ledger is never mutated, so an aborted cycle leaves it untouched.
func (r *Reconciler) Merge(ledger *domain.Portfolio, brokerState domain.BrokerState, at time.Time) (*domain.Portfolio, []domain.DriftRecord) {
	if ledger == nil {
		ledger = domain.NewPortfolio(brokerState.Cash)
	}

	merged := domain.NewPortfolio(brokerState.Cash)
	merged.ProcessedIntentIDs = cloneIntentIDs(ledger.ProcessedIntentIDs)
	merged.UpdatedAt = at

	var drift []domain.DriftRecord

	if !ledger.Cash.Equal(brokerState.Cash) {
		drift = append(drift, r.record("", "cash", ledger.Cash.String(), brokerState.Cash.String(), at))
	}

	for ticker, bp := range brokerState.Positions {
		if !bp.Quantity.IsPositive() {
			continue
		}

		known := ledger.Position(ticker)
		if known == nil {
			// opened outside the engine: core-owned state starts fresh
			merged.Positions[ticker] = &domain.Position{
				Ticker:        ticker,
				Quantity:      bp.Quantity,
				AvgCost:       bp.AvgCost,
				HighWaterMark: bp.AvgCost,
				LastPrice:     bp.AvgCost,
				OpenedAt:      at,
			}
			drift = append(drift, r.record(ticker, "quantity", "0", bp.Quantity.String(), at))
			continue
		}

		if !known.Quantity.Equal(bp.Quantity) {
			drift = append(drift, r.record(ticker, "quantity", known.Quantity.String(), bp.Quantity.String(), at))
		}
		if !known.AvgCost.Equal(bp.AvgCost) {
			drift = append(drift, r.record(ticker, "avg_cost", known.AvgCost.String(), bp.AvgCost.String(), at))
		}

		pos := known.Clone()
		pos.Quantity = bp.Quantity
		pos.AvgCost = bp.AvgCost
		merged.Positions[ticker] = pos
	}

	// positions the broker no longer has were closed externally
	for _, ticker := range ledger.Tickers() {
		if _, stillHeld := merged.Positions[ticker]; stillHeld {
			continue
		}
		known := ledger.Position(ticker)
		drift = append(drift, r.record(ticker, "quantity", known.Quantity.String(), "0", at))
	}

	for _, d := range drift {
		r.l.Warn("ledger drift corrected from broker",
			zap.String("ticker", d.Ticker),
			zap.String("field", d.Field),
			zap.String("ledger", d.LedgerValue),
			zap.String("broker", d.BrokerValue))
	}

	return merged, drift
}

func (r *Reconciler) record(ticker, field, ledgerValue, brokerValue string, at time.Time) domain.DriftRecord {
	return domain.DriftRecord{
		Ticker:      ticker,
		Field:       field,
		LedgerValue: ledgerValue,
		BrokerValue: brokerValue,
		DetectedAt:  at,
	}
}

func cloneIntentIDs(ids map[string]bool) map[string]bool {
	clone := make(map[string]bool, len(ids))
	for id, done := range ids {
		clone[id] = done
	}
	return clone
}
