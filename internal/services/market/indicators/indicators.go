// Package indicators provides the technical indicators behind instrument
// snapshots. It uses the cinar/indicator library to calculate SMA, Bollinger
// Bands and RSI from daily candle data.
package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/shopspring/decimal"
)

// bollingerPeriod is the lookback for the Bollinger Bands (2-sigma width).
const bollingerPeriod = 20

// Bands holds one Bollinger Bands reading.
type Bands struct {
	Upper decimal.Decimal
	Lower decimal.Decimal
}

// SMA calculates the Simple Moving Average for the given period.
func SMA(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(values) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(values))
	}

	sma := trend.NewSmaWithPeriod[float64](period)

	inputChan := helper.SliceToChan(decimalsToFloat64(values))
	outputChan := sma.Compute(inputChan)

	return float64ToDecimals(helper.ChanToSlice(outputChan)), nil
}

// RSI calculates the Relative Strength Index for the given period.
func RSI(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(closes) < period+1 {
		return nil, fmt.Errorf("not enough data points for RSI: need %d, got %d", period+1, len(closes))
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)

	inputChan := helper.SliceToChan(decimalsToFloat64(closes))
	outputChan := rsi.Compute(inputChan)

	return float64ToDecimals(helper.ChanToSlice(outputChan)), nil
}

// BollingerBands calculates 20-period Bollinger Bands with a 2-sigma width.
func BollingerBands(closes []decimal.Decimal) ([]Bands, error) {
	if len(closes) < bollingerPeriod {
		return nil, fmt.Errorf("not enough data points for Bollinger Bands: need %d, got %d",
			bollingerPeriod, len(closes))
	}

	bb := volatility.NewBollingerBandsWithPeriod[float64](bollingerPeriod)

	inputChan := helper.SliceToChan(decimalsToFloat64(closes))
	upperChan, middleChan, lowerChan := bb.Compute(inputChan)

	// The middle band is unused; drain it so the pipeline does not block.
	go func() {
		for range middleChan {
		}
	}()

	upper := helper.ChanToSlice(upperChan)
	lower := helper.ChanToSlice(lowerChan)

	n := len(upper)
	if len(lower) < n {
		n = len(lower)
	}

	bands := make([]Bands, n)
	for i := 0; i < n; i++ {
		bands[i] = Bands{
			Upper: decimal.NewFromFloat(upper[i]),
			Lower: decimal.NewFromFloat(lower[i]),
		}
	}

	return bands, nil
}

// Last returns the most recent value of a series.
func Last(values []decimal.Decimal) (decimal.Decimal, error) {
	if len(values) == 0 {
		return decimal.Decimal{}, fmt.Errorf("empty series")
	}
	return values[len(values)-1], nil
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
