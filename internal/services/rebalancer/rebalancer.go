// Package rebalancer plans conviction swaps: rotate capital out of the
// weakest held position into a decisively stronger candidate. At most one
// swap per cycle; decision merging keeps Stage 1 exits above swap sells.
package rebalancer

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/domain"
)

// Holding is a rated held position. Conviction comes from the same
// sentiment map that rates entries.
type Holding struct {
	Ticker      string
	Conviction  int
	Sentiment   decimal.Decimal
	DeepHealthy bool
}

// Candidate is a rated non-held watchlist ticker.
type Candidate struct {
	Ticker      string
	Conviction  int
	Sentiment   decimal.Decimal
	DeepHealthy bool
	FScore      *int
	IsStar      bool
}

// Swap is the planned rotation. Exit is nil on the cash-only direct entry
// path.
type Swap struct {
	Exit  *domain.Decision
	Entry domain.Decision
}

// Planner selects weakest link and rising star under the configured
// thresholds.
type Planner struct {
	cfg config.Swap
}

func New(cfg config.Swap) *Planner {
	return &Planner{cfg: cfg}
}

// Plan returns the swap for this cycle, or nil when no rotation clears the
// hurdle. The hedge instrument must not be passed in either slice.
func (p *Planner) Plan(held []Holding, candidates []Candidate) *Swap {
	star := p.risingStar(candidates)
	if star == nil {
		return nil
	}

	weakest := p.weakestLink(held)
	if weakest == nil {
		// nothing worth selling; the entry stands alone and the cash
		// reserve floor decides whether it gets funded
		return &Swap{Entry: p.entry(*star)}
	}

	if star.Conviction <= weakest.Conviction+p.cfg.Margin {
		return nil
	}

	exit := p.exit(*weakest)
	return &Swap{Exit: &exit, Entry: p.entry(*star)}
}

// weakestLink picks the lowest-conviction holding among those that are
// weak, deep-unhealthy or sentiment-sour. Ties break toward the lower
// sentiment.
func (p *Planner) weakestLink(held []Holding) *Holding {
	var weakest *Holding
	for i := range held {
		h := &held[i]
		if !p.isWeak(h) {
			continue
		}
		if weakest == nil || h.Conviction < weakest.Conviction ||
			(h.Conviction == weakest.Conviction && h.Sentiment.LessThan(weakest.Sentiment)) {
			weakest = h
		}
	}
	return weakest
}

func (p *Planner) isWeak(h *Holding) bool {
	return h.Conviction < p.cfg.WeakConviction ||
		!h.DeepHealthy ||
		h.Sentiment.LessThan(p.cfg.SentimentFloor)
}

// risingStar picks the highest-conviction candidate that clears the entry
// bars. Ties break toward the higher sentiment.
func (p *Planner) risingStar(candidates []Candidate) *Candidate {
	var star *Candidate
	for i := range candidates {
		c := &candidates[i]
		if !p.isRising(c) {
			continue
		}
		if star == nil || c.Conviction > star.Conviction ||
			(c.Conviction == star.Conviction && c.Sentiment.GreaterThan(star.Sentiment)) {
			star = c
		}
	}
	return star
}

func (p *Planner) isRising(c *Candidate) bool {
	if c.Conviction < p.cfg.StarConviction {
		return false
	}
	if c.Sentiment.LessThan(p.cfg.EntrySentimentFloor) {
		return false
	}
	if !c.DeepHealthy {
		return false
	}
	return c.FScore != nil && *c.FScore >= p.cfg.MinFScore
}

func (p *Planner) exit(weakest Holding) domain.Decision {
	return domain.Decision{
		Ticker:     weakest.Ticker,
		Action:     domain.ActionSell,
		Reason:     domain.ReasonSwapExit,
		Conviction: weakest.Conviction,
		CreatedAt:  time.Now(),
	}
}

func (p *Planner) entry(star Candidate) domain.Decision {
	return domain.Decision{
		Ticker:     star.Ticker,
		Action:     domain.ActionBuy,
		Reason:     domain.ReasonSwapEntry,
		Conviction: star.Conviction,
		IsStar:     star.IsStar,
		CreatedAt:  time.Now(),
	}
}
