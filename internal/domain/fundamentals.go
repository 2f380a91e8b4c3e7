package domain

import "github.com/shopspring/decimal"

// FundamentalAssessment is the fundamentals provider's view of a ticker.
// FScore is nil when the provider could not compute a Piotroski score.
type FundamentalAssessment struct {
	Ticker            string          `json:"ticker"`
	FScore            *int            `json:"f_score,omitempty"`
	QualityScore      decimal.Decimal `json:"quality_score"`
	EPS               decimal.Decimal `json:"eps"`
	PERatio           decimal.Decimal `json:"pe_ratio"`
	AnalystConsensus  string          `json:"analyst_consensus"`
	InsiderMomentum   decimal.Decimal `json:"insider_momentum"`
	CurrentRatio      decimal.Decimal `json:"current_ratio"`
	DebtToEquity      decimal.Decimal `json:"debt_to_equity"`
	LatestQuarterLoss bool            `json:"latest_quarter_loss"`
	// DaysToEarnings is nil when the next report date is unknown.
	DaysToEarnings *int   `json:"days_to_earnings,omitempty"`
	Sector         string `json:"sector"`
}

var (
	minHealthyEPS   = decimal.Zero
	maxHealthyPE    = decimal.NewFromInt(100)
	minCurrentRatio = decimal.NewFromFloat(0.8)
	maxDebtToEquity = decimal.NewFromInt(3)
)

// IsHealthy reports the hard solvency screen: negative EPS or PE above 100
// fails regardless of any other signal.
func (f *FundamentalAssessment) IsHealthy() bool {
	if f == nil {
		return false
	}
	if f.EPS.LessThan(minHealthyEPS) {
		return false
	}
	if f.PERatio.GreaterThan(maxHealthyPE) {
		return false
	}
	return true
}

// IsDeepHealthy applies the stricter balance-sheet screen. Missing values
// (zero current ratio or debt/equity) do not fail the check; a known bad
// value or an unprofitable latest quarter does.
func (f *FundamentalAssessment) IsDeepHealthy() bool {
	if f == nil {
		return false
	}
	if f.LatestQuarterLoss {
		return false
	}
	if f.CurrentRatio.IsPositive() && f.CurrentRatio.LessThan(minCurrentRatio) {
		return false
	}
	if f.DebtToEquity.IsPositive() && f.DebtToEquity.GreaterThan(maxDebtToEquity) {
		return false
	}
	return true
}

// FScoreValue returns the Piotroski score and whether it is known.
func (f *FundamentalAssessment) FScoreValue() (int, bool) {
	if f == nil || f.FScore == nil {
		return 0, false
	}
	return *f.FScore, true
}
