package clients

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/folio/internal/domain"
)

// SyntheticOracle scores sentiment deterministically for dry runs without
// an API key. The same ticker and date always produce the same assessment;
// scores drift day to day like a slow news cycle.
type SyntheticOracle struct {
	now func() time.Time
}

func NewSyntheticOracle() *SyntheticOracle {
	return &SyntheticOracle{now: time.Now}
}

func (o *SyntheticOracle) Score(ctx context.Context, ticker string) (*domain.SentimentAssessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	day := o.now().UTC().Format("2006-01-02")
	h := fnv.New64a()
	h.Write([]byte(ticker))
	h.Write([]byte(day))
	rng := rand.New(rand.NewSource(int64(h.Sum64() & math.MaxInt64)))

	// Mildly positive skew so a dry run actually opens positions.
	score := rng.NormFloat64()*0.35 + 0.15
	score = math.Max(-1, math.Min(1, score))
	confidence := 40 + rng.Intn(61)

	return &domain.SentimentAssessment{
		Score:      decimal.NewFromFloat(score).Round(2),
		Confidence: decimal.NewFromInt(int64(confidence)),
		Reasoning:  fmt.Sprintf("synthetic sentiment for %s on %s", ticker, day),
	}, nil
}
