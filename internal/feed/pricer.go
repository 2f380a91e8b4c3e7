package feed

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Pricer adapts a Source to the broker's fill-price lookup. Orders fill
// at the last close the source knows for the ticker.
type Pricer struct {
	src Source
}

func NewPricer(src Source) *Pricer {
	return &Pricer{src: src}
}

func (p *Pricer) LastPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	candles, err := p.src.History(ctx, ticker, 1)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "last price for %s", ticker)
	}
	if len(candles) == 0 {
		return decimal.Decimal{}, errors.Errorf("no candles for %s", ticker)
	}
	return candles[len(candles)-1].Close, nil
}
