package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
)

// tickerData is everything the gather stage could find for one ticker.
// Any field may be nil; the evaluator degrades instead of failing.
type tickerData struct {
	ticker       string
	snapshot     *domain.InstrumentSnapshot
	sentiment    *domain.SentimentAssessment
	fundamentals *domain.FundamentalAssessment
}

// decisionSet is the union of watchlist and held tickers, sorted. The hedge
// ticker is owned by the hedge controller and never evaluated here.
func (e *Engine) decisionSet(book *domain.Portfolio) []string {
	seen := make(map[string]struct{})
	var tickers []string

	for _, ticker := range book.Tickers() {
		if ticker == e.hedge.Ticker() {
			continue
		}
		seen[ticker] = struct{}{}
		tickers = append(tickers, ticker)
	}
	for _, ticker := range e.cfg.Watchlist {
		if _, dup := seen[ticker]; dup {
			continue
		}
		seen[ticker] = struct{}{}
		tickers = append(tickers, ticker)
	}

	sort.Strings(tickers)
	return tickers
}

// gatherSet adds the hedge ticker so its price is fresh for hedge sizing.
func (e *Engine) gatherSet(book *domain.Portfolio) []string {
	return append(e.decisionSet(book), e.hedge.Ticker())
}

// gather fans the per-ticker fetches out on the shared worker pool. Each
// worker writes its own slot, so no lock is needed.
func (e *Engine) gather(ctx context.Context, tickers []string) map[string]*tickerData {
	results := make([]*tickerData, len(tickers))

	var wg sync.WaitGroup
	for i, ticker := range tickers {
		wg.Add(1)
		gopool.CtxGo(ctx, func() {
			defer wg.Done()
			results[i] = e.gatherTicker(ctx, ticker)
		})
	}
	wg.Wait()

	data := make(map[string]*tickerData, len(results))
	for _, r := range results {
		if r != nil {
			data[r.ticker] = r
		}
	}
	return data
}

// gatherTicker fetches snapshot, sentiment and fundamentals best-effort.
// A missing piece is logged and left nil.
func (e *Engine) gatherTicker(ctx context.Context, ticker string) *tickerData {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Schedule.TickerTimeout)
	defer cancel()

	d := &tickerData{ticker: ticker}

	snap, err := e.snapshots.Snapshot(ctx, ticker)
	if err != nil {
		e.l.Warn("snapshot unavailable", zap.String("ticker", ticker), zap.Error(err))
	} else {
		d.snapshot = snap
	}

	sent, err := e.oracle.Score(ctx, ticker)
	if err != nil {
		e.l.Warn("sentiment unavailable", zap.String("ticker", ticker), zap.Error(err))
	} else {
		d.sentiment = sent
	}

	fund, err := e.fundamentals.Assessment(ticker)
	if err != nil {
		e.l.Warn("fundamentals unavailable", zap.String("ticker", ticker), zap.Error(err))
	} else {
		d.fundamentals = fund
	}

	return d
}

// refreshPositions marks every held position to the fresh feed price and
// ratchets the high-water mark before any exit rule runs.
func (e *Engine) refreshPositions(book *domain.Portfolio, data map[string]*tickerData) {
	for ticker, pos := range book.Positions {
		d := data[ticker]
		if d == nil || d.snapshot == nil || !d.snapshot.Price.IsPositive() {
			continue
		}
		pos.LastPrice = d.snapshot.Price
		pos.RaiseHWM(d.snapshot.Price)
	}
}

// exposureExHedge is the invested share of equity with the hedge position
// left out, so a large hedge never blocks ordinary entries.
func (e *Engine) exposureExHedge(book *domain.Portfolio) decimal.Decimal {
	equity := book.TotalEquity()
	if !equity.IsPositive() {
		return decimal.Zero
	}

	invested := equity.Sub(book.Cash)
	if pos := book.Position(e.hedge.Ticker()); pos != nil {
		invested = invested.Sub(pos.MarketValue())
	}
	if invested.IsNegative() {
		return decimal.Zero
	}
	return invested.Div(equity)
}

func (e *Engine) hedgeValue(book *domain.Portfolio) decimal.Decimal {
	return book.Position(e.hedge.Ticker()).MarketValue()
}

func bandWidths(data map[string]*tickerData) map[string]decimal.Decimal {
	widths := make(map[string]decimal.Decimal, len(data))
	for ticker, d := range data {
		widths[ticker] = d.snapshot.BandWidth()
	}
	return widths
}
