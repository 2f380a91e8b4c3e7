// Package hedge maintains one synthetic hedge position sized off the macro
// alert ladder. Increases pass a sentiment veto; decreases never need one.
package hedge

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/domain"
)

// adjustments below this notional are noise next to the commission floor
var dustNotional = decimal.NewFromInt(1)

type sentimentOracle interface {
	Score(ctx context.Context, ticker string) (*domain.SentimentAssessment, error)
}

// Controller plans hedge adjustments as the delta between the current
// hedge value and the alert-ladder target.
type Controller struct {
	cfg    config.Hedge
	ticker string
	oracle sentimentOracle
	l      *zap.Logger
}

func New(l *zap.Logger, cfg config.Hedge, ticker string, oracle sentimentOracle) *Controller {
	return &Controller{cfg: cfg, ticker: ticker, oracle: oracle, l: l}
}

// Ticker returns the hedge instrument.
func (c *Controller) Ticker() string {
	return c.ticker
}

// AlertLevel classifies the macro picture, first match in descending
// severity. A nil macro snapshot reads as Clear.
func (c *Controller) AlertLevel(macro *domain.MacroSnapshot) domain.AlertLevel {
	if macro == nil {
		return domain.AlertClear
	}

	switch {
	case macro.VIX.GreaterThan(c.cfg.PanicVIX):
		return domain.AlertPanic
	case macro.QQQBelowSMA50 && macro.VIX.GreaterThan(c.cfg.FearVIX):
		return domain.AlertFear
	case macro.QQQBelowSMA50 || macro.VIX.GreaterThan(c.cfg.CautionVIX):
		return domain.AlertCaution
	default:
		return domain.AlertClear
	}
}

// TargetPct maps an alert level onto the hedge share of equity.
func (c *Controller) TargetPct(level domain.AlertLevel) decimal.Decimal {
	switch level {
	case domain.AlertPanic:
		return c.cfg.PanicPct
	case domain.AlertFear:
		return c.cfg.FearPct
	case domain.AlertCaution:
		return c.cfg.CautionPct
	default:
		return decimal.Zero
	}
}

// Plan returns the hedge adjustment for this cycle and whether any action
// is warranted. Increases are vetoed when the hedge instrument's own
// sentiment is below the veto threshold; an existing hedge is never
// force-closed by the veto.
func (c *Controller) Plan(ctx context.Context, macro *domain.MacroSnapshot, equity, hedgeValue decimal.Decimal) (domain.Decision, bool) {
	level := c.AlertLevel(macro)
	target := c.TargetPct(level).Mul(equity)
	delta := target.Sub(hedgeValue)

	c.l.Debug("hedge plan",
		zap.String("level", level.String()),
		zap.String("target", target.String()),
		zap.String("held", hedgeValue.String()))

	if delta.Abs().LessThan(dustNotional) {
		return domain.Decision{}, false
	}

	if delta.IsPositive() {
		return c.planIncrease(ctx, delta)
	}
	return c.planDecrease(delta.Neg(), target, hedgeValue), true
}

func (c *Controller) planIncrease(ctx context.Context, delta decimal.Decimal) (domain.Decision, bool) {
	sent, err := c.oracle.Score(ctx, c.ticker)
	if err != nil {
		c.l.Warn("hedge sentiment unavailable, skipping increase",
			zap.String("ticker", c.ticker), zap.Error(err))
		return domain.NewHold(c.ticker, domain.ReasonInsufficientData, 0), false
	}

	if sent.Score.LessThan(c.cfg.VetoSentiment) {
		c.l.Info("hedge increase vetoed by sentiment",
			zap.String("ticker", c.ticker),
			zap.String("score", sent.Score.String()))
		return domain.NewHold(c.ticker, domain.ReasonHedgeVetoed, 0), false
	}

	return domain.Decision{
		Ticker:     c.ticker,
		Action:     domain.ActionBuy,
		Reason:     domain.ReasonHedgeIncrease,
		Conviction: 100,
		Notional:   delta,
		CreatedAt:  time.Now(),
	}, true
}

func (c *Controller) planDecrease(sellNotional, target, hedgeValue decimal.Decimal) domain.Decision {
	if target.IsZero() || sellNotional.GreaterThanOrEqual(hedgeValue) {
		return domain.Decision{
			Ticker:     c.ticker,
			Action:     domain.ActionSell,
			Reason:     domain.ReasonHedgeDecrease,
			Conviction: 100,
			CreatedAt:  time.Now(),
		}
	}

	return domain.Decision{
		Ticker:      c.ticker,
		Action:      domain.ActionSellPartial,
		Reason:      domain.ReasonHedgeDecrease,
		Conviction:  100,
		SellPortion: sellNotional.Div(hedgeValue),
		CreatedAt:   time.Now(),
	}
}
