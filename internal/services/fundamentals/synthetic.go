package fundamentals

import (
	"hash/fnv"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/folio/internal/domain"
)

var sectors = []string{
	"technology", "healthcare", "financials", "energy",
	"industrials", "consumer", "utilities", "materials",
}

// SyntheticProvider derives a stable, plausible assessment from the ticker
// alone. The spread of values is tuned so a watchlist exercises every
// gatekeeper branch: most names pass, a few are unhealthy, a few sit in
// earnings blackout, and some have no f-score at all.
type SyntheticProvider struct{}

func NewSyntheticProvider() *SyntheticProvider {
	return &SyntheticProvider{}
}

func (p *SyntheticProvider) Assessment(ticker string) (*domain.FundamentalAssessment, error) {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	seed := h.Sum64()

	a := &domain.FundamentalAssessment{
		Ticker:           ticker,
		QualityScore:     decimal.NewFromInt(int64(seed>>4%100)).Div(decimal.NewFromInt(100)),
		EPS:              decimal.NewFromInt(int64(seed>>8%120) - 10).Div(decimal.NewFromInt(10)),
		PERatio:          decimal.NewFromInt(int64(8 + seed>>12%110)),
		AnalystConsensus: consensus(seed),
		InsiderMomentum:  decimal.NewFromInt(int64(seed>>16%21) - 10).Div(decimal.NewFromInt(10)),
		CurrentRatio:     decimal.NewFromInt(int64(6 + seed>>20%24)).Div(decimal.NewFromInt(10)),
		DebtToEquity:     decimal.NewFromInt(int64(2 + seed>>24%38)).Div(decimal.NewFromInt(10)),
		Sector:           sectors[seed>>28%uint64(len(sectors))],
	}

	a.LatestQuarterLoss = seed%13 == 0

	// one ticker in six has no computable f-score
	if seed%6 != 0 {
		fscore := int(seed >> 32 % 10)
		a.FScore = &fscore
	}

	days := int(2 + seed>>36%88)
	a.DaysToEarnings = &days

	return a, nil
}

func consensus(seed uint64) string {
	switch seed >> 40 % 4 {
	case 0:
		return "strong_buy"
	case 1:
		return "buy"
	case 2:
		return "hold"
	default:
		return "sell"
	}
}
