package feed

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/folio/internal/domain"
)

const csvDateLayout = "2006-01-02"

// CSVSource reads candles from <dir>/<TICKER>.csv. Expected columns:
// date,open,high,low,close,volume with a header row. Row order in the file
// does not matter; candles come back sorted by date.
type CSVSource struct {
	dir string
}

func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

func (s *CSVSource) History(ctx context.Context, ticker string, bars int) ([]domain.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(s.dir, ticker+".csv")
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open candle file for %s", ticker)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "read candle file for %s", ticker)
	}
	if len(records) <= 1 {
		return nil, errors.Errorf("candle file for %s has no data rows", ticker)
	}

	candles := make([]domain.Candle, 0, len(records)-1)
	for i, record := range records[1:] {
		candle, err := parseRow(record)
		if err != nil {
			return nil, errors.Wrapf(err, "%s row %d", ticker, i+2)
		}
		candles = append(candles, candle)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})

	if len(candles) > bars {
		candles = candles[len(candles)-bars:]
	}

	return candles, nil
}

func parseRow(record []string) (domain.Candle, error) {
	if len(record) < 6 {
		return domain.Candle{}, errors.Errorf("expected 6 columns, got %d", len(record))
	}

	day, err := time.Parse(csvDateLayout, record[0])
	if err != nil {
		return domain.Candle{}, errors.Wrap(err, "parse date")
	}

	names := [...]string{"open", "high", "low", "close", "volume"}
	vals := make([]decimal.Decimal, len(names))
	for i, name := range names {
		v, err := decimal.NewFromString(record[i+1])
		if err != nil {
			return domain.Candle{}, errors.Wrapf(err, "parse %s", name)
		}
		vals[i] = v
	}

	return domain.Candle{
		Time:   day,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
