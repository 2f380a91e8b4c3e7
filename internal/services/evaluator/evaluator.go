// Package evaluator turns per-ticker market state into trade decisions.
// The pipeline is staged: exit overrides run before any entry logic, entry
// candidates pass volatility, sentiment and fundamental gates in strict
// order, and the first terminal stage wins.
package evaluator

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/domain"
)

const (
	maxConviction  = 100
	exitConviction = 100
)

// Input carries everything Evaluate needs for one ticker. Snapshot,
// Sentiment and Fundamentals are nil when the corresponding provider
// failed this cycle; exits still run on the position's last known price.
type Input struct {
	Ticker       string
	MarketOpen   bool
	Snapshot     *domain.InstrumentSnapshot
	Sentiment    *domain.SentimentAssessment
	Fundamentals *domain.FundamentalAssessment
	Position     *domain.Position
	ExposurePct  decimal.Decimal
	// SectorCount is the number of held positions already in the
	// candidate's sector, used by the optional sector gate.
	SectorCount int
}

// Evaluator is a pure rule pipeline: no clocks, no I/O, no hidden state
// beyond its thresholds.
type Evaluator struct {
	cfg config.Evaluator
}

func New(cfg config.Evaluator) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate runs the staged pipeline for one ticker and returns exactly one
// decision. A non-nil error means the produced decision violated its own
// invariants and must be discarded, never clamped.
func (e *Evaluator) Evaluate(in Input) (domain.Decision, error) {
	decision := e.evaluate(in)

	if err := decision.Validate(); err != nil {
		return domain.Decision{}, errors.Wrapf(domain.ErrInvariantViolation, "decision for %s: %v", in.Ticker, err)
	}

	return decision, nil
}

func (e *Evaluator) evaluate(in Input) domain.Decision {
	if !in.MarketOpen {
		return domain.NewHold(in.Ticker, domain.ReasonMarketClosed, 0)
	}

	if held(in.Position) {
		if exit, fired := e.evaluateExits(in); fired {
			return exit
		}
		return e.evaluateHeld(in)
	}

	return e.evaluateEntry(in)
}

func held(p *domain.Position) bool {
	return p != nil && p.Quantity.IsPositive()
}

// evaluateExits walks the exit ladder in priority order. The first match
// wins; exits always outrank any entry signal for the same ticker.
func (e *Evaluator) evaluateExits(in Input) (domain.Decision, bool) {
	pos := in.Position

	price := pos.LastPrice
	if in.Snapshot != nil && in.Snapshot.Price.IsPositive() {
		price = in.Snapshot.Price
	}
	if !price.IsPositive() {
		// no price at all, nothing can fire
		return domain.Decision{}, false
	}

	profitPct := pos.ProfitPct(price)

	if profitPct.GreaterThanOrEqual(e.cfg.ProfitTargetPct) && !pos.ScaledOut {
		return e.exit(in.Ticker, domain.ActionSellPartial, domain.ReasonProfitTargetScaleOut, e.cfg.ScaleOutPortion), true
	}

	if in.Sentiment != nil &&
		profitPct.GreaterThanOrEqual(e.cfg.SoftStopPct) &&
		in.Sentiment.Score.LessThan(e.cfg.SoftStopSentiment) {
		return e.exit(in.Ticker, domain.ActionSellPartial, domain.ReasonSoftStopSentiment, e.cfg.SoftStopPortion), true
	}

	if e.trailingActive(pos) && pos.DrawdownFromHWM(price).GreaterThanOrEqual(e.trailingLimit(in.Snapshot.BandWidth())) {
		return e.exit(in.Ticker, domain.ActionSell, domain.ReasonTrailingStop, decimal.Zero), true
	}

	if profitPct.LessThanOrEqual(e.StopDistance(in.Snapshot.BandWidth()).Neg()) {
		return e.exit(in.Ticker, domain.ActionSell, domain.ReasonHardStop, decimal.Zero), true
	}

	if in.Sentiment != nil && in.Sentiment.Score.LessThan(e.cfg.SentimentCrash) {
		return e.exit(in.Ticker, domain.ActionSell, domain.ReasonSentimentCrash, decimal.Zero), true
	}

	if in.Snapshot != nil && in.Snapshot.RSI14.IsPositive() &&
		in.Snapshot.RSI14.GreaterThanOrEqual(e.cfg.RSIOverbought) {
		return e.exit(in.Ticker, domain.ActionSell, domain.ReasonOverboughtRSI, decimal.Zero), true
	}

	return domain.Decision{}, false
}

// evaluateHeld covers a held position after no exit rule fired. Positions
// are never pyramided, so the only actionable signal left is the band
// exhaustion sell at the upper band without breakout volume.
func (e *Evaluator) evaluateHeld(in Input) domain.Decision {
	snap := in.Snapshot
	if !snap.Complete() {
		return domain.NewHold(in.Ticker, domain.ReasonNeutralHold, e.rate(in.Sentiment, in.Fundamentals))
	}

	if snap.Price.GreaterThanOrEqual(snap.BBUpper) &&
		snap.RelativeVolume().LessThanOrEqual(e.cfg.MomentumVolumeRatio) {
		return e.exit(in.Ticker, domain.ActionSell, domain.ReasonBandExhaustion, decimal.Zero)
	}

	return domain.NewHold(in.Ticker, domain.ReasonNeutralHold, e.rate(in.Sentiment, in.Fundamentals))
}

func (e *Evaluator) evaluateEntry(in Input) domain.Decision {
	if !in.Snapshot.Complete() || in.Sentiment == nil {
		return domain.NewHold(in.Ticker, domain.ReasonInsufficientData, 0)
	}

	snap := in.Snapshot
	bandWidth := snap.BandWidth()

	if bandWidth.GreaterThan(e.cfg.VolatileBandWidth) {
		return domain.NewHold(in.Ticker, domain.ReasonVolatileIgnore, 0)
	}
	if bandWidth.GreaterThan(e.volGate(in.ExposurePct)) {
		return domain.NewHold(in.Ticker, domain.ReasonVolFilter, 0)
	}

	baseline := e.baseline(in)
	if baseline.Action != domain.ActionBuy {
		baseline = e.promoteLowExposure(in, baseline)
	}
	if baseline.Action != domain.ActionBuy {
		return baseline
	}

	gated := e.gatekeeper(in, baseline)
	if gated.Action != domain.ActionBuy {
		return gated
	}

	if e.cfg.SectorLimit > 0 && in.SectorCount >= e.cfg.SectorLimit {
		return domain.NewHold(in.Ticker, domain.ReasonSectorLimit, gated.Conviction)
	}

	gated.IsStar = e.isStar(in)
	return gated
}

// baseline applies the technical rules in order and then the sentiment gate.
func (e *Evaluator) baseline(in Input) domain.Decision {
	snap := in.Snapshot
	sent := in.Sentiment

	if snap.Price.LessThanOrEqual(snap.BBLower) &&
		sent.Score.GreaterThanOrEqual(e.cfg.BuyGateSentiment) {
		return e.buy(in, domain.ReasonBandReversionBuy, e.rate(sent, in.Fundamentals))
	}

	if snap.Price.GreaterThanOrEqual(snap.BBUpper) {
		if snap.RelativeVolume().GreaterThan(e.cfg.MomentumVolumeRatio) {
			return e.gateSentiment(in, e.buy(in, domain.ReasonMomentumBreakout, e.rate(sent, in.Fundamentals)))
		}
		// a sell signal for a ticker we do not hold is a no-op
		return domain.NewHold(in.Ticker, domain.ReasonBandExhaustion, 0)
	}

	if snap.RSI14.LessThanOrEqual(e.cfg.RSIOversold) && sent.Score.GreaterThan(e.cfg.BuyGateSentiment) {
		conviction := e.rate(sent, in.Fundamentals)
		if conviction < e.cfg.ConvictionOversold {
			conviction = e.cfg.ConvictionOversold
		}
		return e.gateSentiment(in, e.buy(in, domain.ReasonOversoldBuy, conviction))
	}

	return domain.NewHold(in.Ticker, domain.ReasonNeutralHold, 0)
}

// gateSentiment demotes BUY-class decisions whose sentiment is below the
// gate. The band reversion rule carries the gate in its own condition, so
// only breakout and oversold entries pass through here.
func (e *Evaluator) gateSentiment(in Input, d domain.Decision) domain.Decision {
	if d.Action != domain.ActionBuy {
		return d
	}

	gate := e.cfg.BuyGateSentiment
	if in.ExposurePct.LessThan(e.cfg.LowExposurePct) {
		gate = e.cfg.BuyGateSentimentLowExposure
	}

	if in.Sentiment.Score.LessThan(gate) {
		return domain.NewHold(in.Ticker, domain.ReasonSentimentGate, 0)
	}
	return d
}

// promoteLowExposure turns a HOLD into a proactive entry when the book is
// underinvested and the scorer is both positive and confident.
func (e *Evaluator) promoteLowExposure(in Input, baseline domain.Decision) domain.Decision {
	if baseline.Action != domain.ActionHold {
		return baseline
	}
	if in.ExposurePct.GreaterThanOrEqual(e.cfg.LowExposurePct) {
		return baseline
	}

	confident := in.Sentiment.Confidence.GreaterThanOrEqual(decimal.NewFromInt(int64(e.cfg.ProactiveConfidence)))
	if in.Sentiment.Score.GreaterThanOrEqual(e.cfg.ProactiveSentiment) && confident {
		return e.buy(in, domain.ReasonProactiveEntry, e.cfg.ConvictionProactive)
	}

	return baseline
}

// gatekeeper applies the fundamental screen to a BUY candidate. The solvency
// veto is absolute: an unhealthy balance sheet rejects no matter how strong
// the technical or sentiment case is.
func (e *Evaluator) gatekeeper(in Input, buy domain.Decision) domain.Decision {
	fund := in.Fundamentals
	if fund == nil {
		return domain.NewHold(in.Ticker, domain.ReasonInsufficientData, 0)
	}

	if !fund.IsHealthy() {
		return domain.NewHold(in.Ticker, domain.ReasonRejectUnhealthy, 0)
	}

	if days := fund.DaysToEarnings; days != nil && *days >= 0 && *days <= e.cfg.EarningsBlackoutDays {
		return domain.NewHold(in.Ticker, domain.ReasonEarningsProximity, 0)
	}

	confidence := in.Sentiment.Confidence

	fscore, known := fund.FScoreValue()
	if !known {
		if confidence.GreaterThanOrEqual(decimal.NewFromInt(int64(e.cfg.NullFScoreConfidence))) &&
			in.Sentiment.Score.GreaterThanOrEqual(e.cfg.NullFScoreSentiment) {
			reduced := buy.Conviction - e.cfg.FScoreBonus
			if reduced < 0 {
				reduced = 0
			}
			buy.Reason = domain.ReasonNullFScoreEntry
			buy.Conviction = reduced
			return buy
		}
		return domain.NewHold(in.Ticker, domain.ReasonRejectNoFScore, 0)
	}

	minScore := e.cfg.MinFScore
	if in.ExposurePct.LessThan(e.cfg.LowExposurePct) {
		minScore = e.cfg.MinFScoreLowExposure
	}
	if fscore >= minScore {
		return buy
	}

	if fscore <= 1 {
		if confidence.GreaterThanOrEqual(decimal.NewFromInt(int64(e.cfg.TurnaroundConfidence))) &&
			in.Sentiment.Score.GreaterThanOrEqual(e.cfg.TurnaroundSentiment) {
			buy.Reason = domain.ReasonTurnaroundEntry
			return buy
		}
		return domain.NewHold(in.Ticker, domain.ReasonRejectWeakFScore, 0)
	}

	if confidence.GreaterThanOrEqual(decimal.NewFromInt(int64(e.cfg.BypassConfidence))) {
		buy.Reason = domain.ReasonFScoreBypass
		return buy
	}

	return domain.NewHold(in.Ticker, domain.ReasonRejectWeakFScore, 0)
}

func (e *Evaluator) isStar(in Input) bool {
	return e.Star(in.Sentiment, in.Fundamentals)
}

// Star reports whether a ticker clears the star bar: high sentiment
// confidence on top of strong, deeply healthy fundamentals. Stars get
// the allocation floor in the sizer.
func (e *Evaluator) Star(sent *domain.SentimentAssessment, fund *domain.FundamentalAssessment) bool {
	if sent == nil || fund == nil {
		return false
	}
	fscore, known := fund.FScoreValue()
	if !known || fscore < e.cfg.StarFScore {
		return false
	}
	if !fund.IsDeepHealthy() {
		return false
	}
	return sent.Confidence.GreaterThanOrEqual(decimal.NewFromInt(int64(e.cfg.StarConfidence)))
}

// Rate maps sentiment and fundamentals onto the 0-100 conviction scale.
// The rebalancer uses it to score held positions with the same map that
// rates entry candidates.
func (e *Evaluator) Rate(sent *domain.SentimentAssessment, fund *domain.FundamentalAssessment) int {
	return e.rate(sent, fund)
}

func (e *Evaluator) rate(sent *domain.SentimentAssessment, fund *domain.FundamentalAssessment) int {
	if sent == nil {
		return 0
	}

	span := decimal.NewFromInt(int64(e.cfg.ConvictionSpan))
	conviction := int64(e.cfg.ConvictionBase) + sent.Score.Mul(span).Round(0).IntPart()

	if fscore, known := fundScore(fund); known && fscore >= e.cfg.StarFScore {
		conviction += int64(e.cfg.FScoreBonus)
	}

	if conviction < 0 {
		return 0
	}
	if conviction > maxConviction {
		return maxConviction
	}
	return int(conviction)
}

func fundScore(fund *domain.FundamentalAssessment) (int, bool) {
	if fund == nil {
		return 0, false
	}
	return fund.FScoreValue()
}

// StopDistance returns the volatility-scaled hard stop distance. Wider
// bands push the stop out, clamped to the configured range. The sizer uses
// the same distance as its risk denominator.
func (e *Evaluator) StopDistance(bandWidth decimal.Decimal) decimal.Decimal {
	return e.volScaled(e.cfg.HardStopBasePct, bandWidth, e.cfg.HardStopMinPct, e.cfg.HardStopMaxPct)
}

func (e *Evaluator) trailingLimit(bandWidth decimal.Decimal) decimal.Decimal {
	return e.volScaled(e.cfg.TrailingBasePct, bandWidth, e.cfg.TrailingMinPct, e.cfg.TrailingMaxPct)
}

func (e *Evaluator) volScaled(base, bandWidth, min, max decimal.Decimal) decimal.Decimal {
	scaled := base
	if bandWidth.IsPositive() {
		scaled = base.Mul(bandWidth.Div(e.cfg.ReferenceBandWidth))
	}
	if scaled.LessThan(min) {
		return min
	}
	if scaled.GreaterThan(max) {
		return max
	}
	return scaled
}

func (e *Evaluator) trailingActive(pos *domain.Position) bool {
	if !pos.HighWaterMark.IsPositive() {
		return false
	}
	maxProfit := pos.HighWaterMark.Sub(pos.AvgCost).Div(pos.AvgCost)
	return maxProfit.GreaterThanOrEqual(e.cfg.TrailingActivation)
}

func (e *Evaluator) volGate(exposurePct decimal.Decimal) decimal.Decimal {
	if exposurePct.LessThan(e.cfg.LowExposurePct) {
		return e.cfg.VolGateRelaxedPct
	}
	return e.cfg.VolGatePct
}

func (e *Evaluator) buy(in Input, reason domain.ReasonCode, conviction int) domain.Decision {
	return domain.Decision{
		Ticker:     in.Ticker,
		Action:     domain.ActionBuy,
		Reason:     reason,
		Conviction: conviction,
		CreatedAt:  time.Now(),
	}
}

// exit builds an exit decision. Exit conviction is pinned to the top of the
// scale so no swap or entry can ever outrank a protective sell.
func (e *Evaluator) exit(ticker string, action domain.Action, reason domain.ReasonCode, portion decimal.Decimal) domain.Decision {
	d := domain.Decision{
		Ticker:     ticker,
		Action:     action,
		Reason:     reason,
		Conviction: exitConviction,
		CreatedAt:  time.Now(),
	}
	if action == domain.ActionSellPartial {
		d.SellPortion = portion
	}
	return d
}
