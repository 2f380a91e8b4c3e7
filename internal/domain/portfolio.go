package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is the internal ledger: cash plus held positions. Cash and
// per-position quantity/avgCost mirror broker truth after reconciliation;
// everything else is core-owned.
type Portfolio struct {
	Cash      decimal.Decimal      `json:"cash"`
	Positions map[string]*Position `json:"positions"`
	// ProcessedIntentIDs guards against re-applying a fill when a crashed
	// cycle is resumed from the journal.
	ProcessedIntentIDs map[string]bool `json:"processed_intent_ids"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NewPortfolio returns an empty ledger with the given starting cash.
func NewPortfolio(cash decimal.Decimal) *Portfolio {
	return &Portfolio{
		Cash:               cash,
		Positions:          make(map[string]*Position),
		ProcessedIntentIDs: make(map[string]bool),
	}
}

// Position returns the held position for ticker, nil when not held.
func (p *Portfolio) Position(ticker string) *Position {
	if p == nil {
		return nil
	}
	return p.Positions[ticker]
}

// RemovePosition drops a ticker from the ledger.
func (p *Portfolio) RemovePosition(ticker string) {
	if p == nil {
		return
	}
	delete(p.Positions, ticker)
}

// TotalEquity is cash plus the market value of every position at its
// freshest known price.
func (p *Portfolio) TotalEquity() decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	equity := p.Cash
	for _, pos := range p.Positions {
		equity = equity.Add(pos.MarketValue())
	}
	return equity
}

// ExposurePct is (equity-cash)/equity in [0,1]; zero for an empty book.
func (p *Portfolio) ExposurePct() decimal.Decimal {
	equity := p.TotalEquity()
	if !equity.IsPositive() {
		return decimal.Zero
	}
	return equity.Sub(p.Cash).Div(equity)
}

// Tickers returns held tickers in deterministic order.
func (p *Portfolio) Tickers() []string {
	if p == nil {
		return nil
	}
	tickers := make([]string, 0, len(p.Positions))
	for t := range p.Positions {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// SectorCount returns how many held positions share the given sector.
func (p *Portfolio) SectorCount(sector string) int {
	if p == nil || sector == "" {
		return 0
	}
	n := 0
	for _, pos := range p.Positions {
		if pos.Sector == sector {
			n++
		}
	}
	return n
}

// IsIntentProcessed reports whether a journalled intent was already applied.
func (p *Portfolio) IsIntentProcessed(intentID string) bool {
	if p == nil || intentID == "" {
		return false
	}
	return p.ProcessedIntentIDs[intentID]
}

// MarkIntentProcessed records an applied intent for idempotent recovery.
func (p *Portfolio) MarkIntentProcessed(intentID string) {
	if p == nil || intentID == "" {
		return
	}
	if p.ProcessedIntentIDs == nil {
		p.ProcessedIntentIDs = make(map[string]bool)
	}
	p.ProcessedIntentIDs[intentID] = true
}

// Clone returns a deep copy of the ledger.
func (p *Portfolio) Clone() *Portfolio {
	if p == nil {
		return nil
	}
	clone := &Portfolio{
		Cash:               p.Cash,
		Positions:          make(map[string]*Position, len(p.Positions)),
		ProcessedIntentIDs: make(map[string]bool, len(p.ProcessedIntentIDs)),
		UpdatedAt:          p.UpdatedAt,
	}
	for t, pos := range p.Positions {
		clone.Positions[t] = pos.Clone()
	}
	for id, done := range p.ProcessedIntentIDs {
		clone.ProcessedIntentIDs[id] = done
	}
	return clone
}
