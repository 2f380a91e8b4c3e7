package feed

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/folio/internal/domain"
)

// walkAnchor is the fixed first trading day of every synthetic series.
// Growing the series from a fixed origin keeps earlier candles identical
// across calls and restarts; each new day appends one candle.
var walkAnchor = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

const vixBase = 18.0

// SyntheticSource generates a deterministic daily walk per ticker for dry
// runs without market data. The same ticker and date always produce the
// same candle.
type SyntheticSource struct {
	now func() time.Time
}

func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{now: time.Now}
}

func (s *SyntheticSource) History(ctx context.Context, ticker string, bars int) ([]domain.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seed := tickerSeed(ticker)
	rng := rand.New(rand.NewSource(seed))

	// Volatility indexes mean-revert; plain multiplicative walks drift.
	meanReverting := ticker != "" && ticker[0] == '^'

	price := basePrice(ticker, seed)
	today := s.now().UTC().Truncate(24 * time.Hour)

	var candles []domain.Candle
	for day := walkAnchor; !day.After(today); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}

		open := price
		if meanReverting {
			price += 0.15*(vixBase-price) + (rng.Float64()*2-1)*2.5
			price = math.Max(price, 9)
		} else {
			price *= 1 + (rng.Float64()*2-1)*0.02
		}

		span := math.Abs(price-open) + price*0.004*rng.Float64()
		volume := 1_000_000 * (0.6 + rng.Float64())
		if rng.Float64() > 0.95 {
			volume *= 3
		}

		candles = append(candles, domain.Candle{
			Time:   day,
			Open:   decimal.NewFromFloat(open).Round(2),
			High:   decimal.NewFromFloat(math.Max(open, price) + span/2).Round(2),
			Low:    decimal.NewFromFloat(math.Max(math.Min(open, price)-span/2, 0.01)).Round(2),
			Close:  decimal.NewFromFloat(price).Round(2),
			Volume: decimal.NewFromInt(int64(volume)),
		})
	}

	if len(candles) > bars {
		candles = candles[len(candles)-bars:]
	}

	return candles, nil
}

func tickerSeed(ticker string) int64 {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	return int64(h.Sum64() & math.MaxInt64)
}

func basePrice(ticker string, seed int64) float64 {
	if ticker != "" && ticker[0] == '^' {
		return vixBase
	}
	return 20 + float64(seed%480)
}
