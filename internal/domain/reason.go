package domain

// ReasonCode explains why a decision was or was not taken. Every Decision
// carries one so a cycle can be reconstructed from the audit trail alone.
type ReasonCode string

const (
	// session / data
	ReasonMarketClosed     ReasonCode = "MARKET_CLOSED"
	ReasonInsufficientData ReasonCode = "REJECT_INSUFFICIENT_DATA"

	// exit ladder, in priority order
	ReasonProfitTargetScaleOut ReasonCode = "PROFIT_TARGET_SCALE_OUT"
	ReasonSoftStopSentiment    ReasonCode = "SOFT_STOP_SENTIMENT_FLIP"
	ReasonTrailingStop         ReasonCode = "TRAILING_STOP"
	ReasonHardStop             ReasonCode = "HARD_STOP"
	ReasonSentimentCrash       ReasonCode = "SENTIMENT_CRASH_EXIT"
	ReasonOverboughtRSI        ReasonCode = "RSI_EXTREME_OVERBOUGHT"

	// entry pipeline
	ReasonVolFilter        ReasonCode = "VOL_FILTER"
	ReasonVolatileIgnore   ReasonCode = "VOLATILE_IGNORE"
	ReasonBandReversionBuy ReasonCode = "BAND_REVERSION_BUY"
	ReasonMomentumBreakout ReasonCode = "MOMENTUM_BREAKOUT"
	ReasonBandExhaustion   ReasonCode = "BAND_EXHAUSTION_SELL"
	ReasonOversoldBuy      ReasonCode = "RSI_OVERSOLD_BUY"
	ReasonSentimentGate    ReasonCode = "SENTIMENT_GATE_HOLD"
	ReasonProactiveEntry   ReasonCode = "PROACTIVE_WARRANTED_ENTRY"
	ReasonNeutralHold      ReasonCode = "NEUTRAL_HOLD"

	// fundamental gatekeeper
	ReasonRejectUnhealthy   ReasonCode = "REJECT_UNHEALTHY"
	ReasonRejectNoFScore    ReasonCode = "REJECT_NO_FSCORE"
	ReasonRejectWeakFScore  ReasonCode = "REJECT_WEAK_FSCORE"
	ReasonFScoreBypass      ReasonCode = "FSCORE_BYPASS"
	ReasonTurnaroundEntry   ReasonCode = "TURNAROUND_WARRANTED"
	ReasonNullFScoreEntry   ReasonCode = "NO_FSCORE_SENTIMENT_ENTRY"
	ReasonSectorLimit       ReasonCode = "SECTOR_LIMIT"
	ReasonEarningsProximity ReasonCode = "SKIP_EARNINGS"

	// portfolio level
	ReasonSwapExit       ReasonCode = "CONVICTION_SWAP_EXIT"
	ReasonSwapEntry      ReasonCode = "CONVICTION_SWAP_ENTRY"
	ReasonHedgeIncrease  ReasonCode = "HEDGE_INCREASE"
	ReasonHedgeDecrease  ReasonCode = "HEDGE_DECREASE"
	ReasonHedgeVetoed    ReasonCode = "HEDGE_SENTIMENT_VETO"
	ReasonAllocationSkip ReasonCode = "ALLOCATION_SKIPPED"
)
