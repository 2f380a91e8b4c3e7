package engine

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/evaluator"
	"github.com/vadiminshakov/folio/internal/services/rebalancer"
)

// decide runs the evaluator over the decision set and returns the plan
// keyed by ticker. A ticker whose evaluation violates an invariant is
// dropped from the cycle entirely.
func (e *Engine) decide(l *zap.Logger, run *cycleRun) map[string]domain.Decision {
	exposure := e.exposureExHedge(run.book)
	plan := make(map[string]domain.Decision)

	for _, ticker := range e.decisionSet(run.book) {
		d := run.data[ticker]
		if d == nil {
			d = &tickerData{ticker: ticker}
		}

		decision, err := e.eval.Evaluate(evaluator.Input{
			Ticker:       ticker,
			MarketOpen:   true,
			Snapshot:     d.snapshot,
			Sentiment:    d.sentiment,
			Fundamentals: d.fundamentals,
			Position:     run.book.Position(ticker),
			ExposurePct:  exposure,
			SectorCount:  sectorCount(run.book, d.fundamentals),
		})
		if err != nil {
			l.Error("decision abandoned", zap.String("ticker", ticker), zap.Error(err))
			continue
		}
		plan[ticker] = decision
	}
	return plan
}

func sectorCount(book *domain.Portfolio, fund *domain.FundamentalAssessment) int {
	if fund == nil {
		return 0
	}
	return book.SectorCount(fund.Sector)
}

// mergeSwap folds the conviction-swap plan into the cycle plan. Swap
// decisions outrank HOLDs only: a stage-one exit already frees the capital,
// and a stage-one buy keeps its own, richer entry reason.
func (e *Engine) mergeSwap(l *zap.Logger, run *cycleRun, plan map[string]domain.Decision) {
	swap := e.swaps.Plan(e.holdings(run), e.candidates(run))
	if swap == nil {
		return
	}

	if swap.Exit != nil {
		if existing, ok := plan[swap.Exit.Ticker]; ok && existing.Action.IsExit() {
			l.Info("swap exit superseded by exit rule",
				zap.String("ticker", swap.Exit.Ticker),
				zap.String("reason", string(existing.Reason)))
		} else {
			plan[swap.Exit.Ticker] = *swap.Exit
		}
	}

	if existing, ok := plan[swap.Entry.Ticker]; !ok || existing.Action == domain.ActionHold {
		plan[swap.Entry.Ticker] = swap.Entry
	}

	l.Info("conviction swap planned",
		zap.String("entry", swap.Entry.Ticker),
		zap.Bool("funded_by_exit", swap.Exit != nil))
}

// holdings builds the rebalancer's view of held positions. A holding with no
// fresh sentiment or fundamentals this cycle is left out: a data outage must
// never read as weakness and trigger a swap sell.
func (e *Engine) holdings(run *cycleRun) []rebalancer.Holding {
	var held []rebalancer.Holding
	for _, ticker := range run.book.Tickers() {
		if ticker == e.hedge.Ticker() {
			continue
		}
		d := run.data[ticker]
		if d == nil || d.sentiment == nil || d.fundamentals == nil {
			continue
		}
		held = append(held, rebalancer.Holding{
			Ticker:      ticker,
			Conviction:  e.eval.Rate(d.sentiment, d.fundamentals),
			Sentiment:   d.sentiment.Score,
			DeepHealthy: d.fundamentals.IsDeepHealthy(),
		})
	}
	return held
}

func (e *Engine) candidates(run *cycleRun) []rebalancer.Candidate {
	var out []rebalancer.Candidate
	for _, ticker := range e.cfg.Watchlist {
		if run.book.Position(ticker) != nil {
			continue
		}
		d := run.data[ticker]
		if d == nil || d.sentiment == nil || d.fundamentals == nil {
			continue
		}
		out = append(out, rebalancer.Candidate{
			Ticker:      ticker,
			Conviction:  e.eval.Rate(d.sentiment, d.fundamentals),
			Sentiment:   d.sentiment.Score,
			DeepHealthy: d.fundamentals.IsDeepHealthy(),
			FScore:      d.fundamentals.FScore,
			IsStar:      e.eval.Star(d.sentiment, d.fundamentals),
		})
	}
	return out
}

// executePlan turns the plan into orders: exits first so their proceeds fund
// the entries, then the conviction cascade over the buys, then the hedge
// adjustment against whatever cash is left. Only a dead broker aborts the
// loop; a rejected order is recorded and skipped.
func (e *Engine) executePlan(ctx context.Context, l *zap.Logger, run *cycleRun, plan map[string]domain.Decision) error {
	var sells, buys, holds []domain.Decision
	var hedgeBuy *domain.Decision

	for _, d := range plan {
		switch {
		case d.Action.IsExit():
			sells = append(sells, d)
		case d.Action == domain.ActionBuy && d.Reason == domain.ReasonHedgeIncrease:
			hd := d
			hedgeBuy = &hd
		case d.Action == domain.ActionBuy:
			buys = append(buys, d)
		default:
			holds = append(holds, d)
		}
	}
	sort.Slice(sells, func(i, j int) bool { return sells[i].Ticker < sells[j].Ticker })
	sort.Slice(holds, func(i, j int) bool { return holds[i].Ticker < holds[j].Ticker })

	for _, d := range holds {
		run.events = append(run.events, domain.NewDecisionEvent(run.id, d, priceLabel(run.price(d.Ticker)), false, nil))
	}

	for _, d := range sells {
		if err := e.executeSell(ctx, l, run, d); err != nil {
			return err
		}
	}

	allocated := e.sizer.Allocate(buys, bandWidths(run.data), run.book.TotalEquity(), run.book.Cash, run.macro)
	for _, d := range allocated {
		if d.Notional.IsZero() {
			d.Reason = domain.ReasonAllocationSkip
			run.events = append(run.events, domain.NewDecisionEvent(run.id, d, priceLabel(run.price(d.Ticker)), false, nil))
			continue
		}
		if err := e.executeBuy(ctx, l, run, d); err != nil {
			return err
		}
	}

	if hedgeBuy != nil {
		hedgeBuy.Notional = e.sizer.CapToReserve(hedgeBuy.Notional, run.book.Cash)
		if !hedgeBuy.Notional.IsPositive() {
			hedgeBuy.Reason = domain.ReasonAllocationSkip
			run.events = append(run.events, domain.NewDecisionEvent(run.id, *hedgeBuy, priceLabel(run.price(hedgeBuy.Ticker)), false, nil))
			return nil
		}
		return e.executeBuy(ctx, l, run, *hedgeBuy)
	}
	return nil
}

func (e *Engine) executeSell(ctx context.Context, l *zap.Logger, run *cycleRun, d domain.Decision) error {
	pos := run.book.Position(d.Ticker)
	if pos == nil || !pos.Quantity.IsPositive() {
		run.events = append(run.events, domain.NewDecisionEvent(run.id, d, "", false,
			errors.Errorf("no position in %s to exit", d.Ticker)))
		return nil
	}

	quantity := pos.Quantity
	if d.Action == domain.ActionSellPartial {
		quantity = pos.Quantity.Mul(d.SellPortion).Floor()
		if !quantity.IsPositive() {
			l.Info("partial exit under one share, holding",
				zap.String("ticker", d.Ticker),
				zap.String("held", pos.Quantity.String()))
			run.events = append(run.events, domain.NewDecisionEvent(run.id, d, priceLabel(run.price(d.Ticker)), false, nil))
			return nil
		}
	}

	return e.placeOrder(ctx, l, run, d, domain.SideSell, quantity, run.price(d.Ticker))
}

func (e *Engine) executeBuy(ctx context.Context, l *zap.Logger, run *cycleRun, d domain.Decision) error {
	if d.Notional.IsNegative() {
		run.events = append(run.events, domain.NewDecisionEvent(run.id, d, "", false,
			errors.Wrapf(domain.ErrInvariantViolation, "negative notional %s for %s", d.Notional, d.Ticker)))
		return nil
	}

	price := run.price(d.Ticker)
	if !price.IsPositive() {
		run.events = append(run.events, domain.NewDecisionEvent(run.id, d, "", false,
			errors.Wrapf(domain.ErrDataUnavailable, "no price to size %s buy", d.Ticker)))
		return nil
	}

	quantity := d.Notional.Div(price).Floor()
	if !quantity.IsPositive() {
		l.Info("allocation under one share, skipping",
			zap.String("ticker", d.Ticker),
			zap.String("notional", d.Notional.String()))
		run.events = append(run.events, domain.NewDecisionEvent(run.id, d, price.String(), false, nil))
		return nil
	}

	return e.placeOrder(ctx, l, run, d, domain.SideBuy, quantity, price)
}

// placeOrder journals the intent, sends the order and applies the fill to
// the working book. The intent is written first so a crash between journal
// and broker leaves a pending record instead of an untracked order.
func (e *Engine) placeOrder(ctx context.Context, l *zap.Logger, run *cycleRun, d domain.Decision, side domain.OrderSide, quantity, price decimal.Decimal) error {
	intent, err := e.store.Prepare(run.id, d.Ticker, side.String(), quantity, price, string(d.Reason))
	if err != nil {
		l.Error("intent journal write failed, order not sent", zap.String("ticker", d.Ticker), zap.Error(err))
		run.events = append(run.events, domain.NewDecisionEvent(run.id, d, priceLabel(price), false, err))
		return nil
	}

	fill, err := e.broker.PlaceMarketOrder(ctx, d.Ticker, side, quantity, intent.ID)
	if err != nil {
		if markErr := e.store.MarkFailed(intent, err.Error()); markErr != nil {
			l.Error("failed to journal order failure", zap.String("intent", intent.ID), zap.Error(markErr))
		}
		run.events = append(run.events, domain.NewDecisionEvent(run.id, d, priceLabel(price), false, err))
		if errors.Is(err, domain.ErrBrokerUnavailable) {
			l.Error("broker gone mid-cycle, aborting remaining orders", zap.Error(err))
			return err
		}
		l.Warn("order rejected",
			zap.String("ticker", d.Ticker),
			zap.String("side", side.String()),
			zap.Error(err))
		return nil
	}

	if err := e.store.MarkDone(intent); err != nil {
		l.Error("failed to journal order success", zap.String("intent", intent.ID), zap.Error(err))
	}
	e.applyFill(l, run, d, fill)
	run.book.MarkIntentProcessed(intent.ID)
	run.fills++

	if err := e.metrics.RecordFill(run.id, d.Reason, fill); err != nil {
		l.Warn("fill not recorded", zap.String("ticker", fill.Ticker), zap.Error(err))
	}
	run.events = append(run.events, domain.NewDecisionEvent(run.id, d, fill.Price.String(), true, nil))

	l.Info("order filled",
		zap.String("ticker", fill.Ticker),
		zap.String("side", side.String()),
		zap.String("quantity", fill.Quantity.String()),
		zap.String("price", fill.Price.String()),
		zap.String("reason", string(d.Reason)))
	return nil
}

// applyFill mutates the working book with one fill. Commission comes out of
// cash on both sides; average cost tracks fill prices only.
func (e *Engine) applyFill(l *zap.Logger, run *cycleRun, d domain.Decision, fill domain.Fill) {
	book := run.book

	switch fill.Side {
	case domain.SideBuy:
		book.Cash = book.Cash.Sub(fill.Notional()).Sub(fill.Commission)

		if pos := book.Position(fill.Ticker); pos != nil {
			if err := pos.ApplyBuyFill(fill.Quantity, fill.Price); err != nil {
				l.Error("buy fill not applied", zap.String("ticker", fill.Ticker), zap.Error(err))
			}
			return
		}

		pos, err := domain.NewPosition(fill.Ticker, fill.Quantity, fill.Price, fill.FilledAt)
		if err != nil {
			l.Error("position not opened from fill", zap.String("ticker", fill.Ticker), zap.Error(err))
			return
		}
		if data := run.data[fill.Ticker]; data != nil && data.fundamentals != nil {
			pos.Sector = data.fundamentals.Sector
		}
		book.Positions[fill.Ticker] = pos

	case domain.SideSell:
		book.Cash = book.Cash.Add(fill.Notional()).Sub(fill.Commission)

		pos := book.Position(fill.Ticker)
		if pos == nil {
			return
		}
		closed, err := pos.ApplySellFill(fill.Quantity)
		if err != nil {
			l.Error("sell fill not applied", zap.String("ticker", fill.Ticker), zap.Error(err))
			return
		}
		if closed {
			book.RemovePosition(fill.Ticker)
			return
		}
		if d.Reason == domain.ReasonProfitTargetScaleOut {
			// The remaining half trails from the scale-out price.
			pos.ScaledOut = true
			pos.RaiseHWM(fill.Price)
		}
	}
}

// price is the best known price for a ticker: the fresh snapshot if one
// arrived, otherwise the position's last marked price.
func (run *cycleRun) price(ticker string) decimal.Decimal {
	if d := run.data[ticker]; d != nil && d.snapshot != nil && d.snapshot.Price.IsPositive() {
		return d.snapshot.Price
	}
	if pos := run.book.Position(ticker); pos != nil {
		return pos.LastPrice
	}
	return decimal.Zero
}

func priceLabel(p decimal.Decimal) string {
	if !p.IsPositive() {
		return ""
	}
	return p.String()
}
