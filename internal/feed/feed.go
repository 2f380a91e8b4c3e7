// Package feed supplies daily candles to the engine. Sources are
// interchangeable: CSV files for recorded data, a deterministic synthetic
// walk for dry runs.
package feed

import (
	"context"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/domain"
)

// Source yields up to bars daily candles for one ticker, oldest first.
type Source interface {
	History(ctx context.Context, ticker string, bars int) ([]domain.Candle, error)
}

// New builds the source selected by the config.
func New(cfg config.Feed) (Source, error) {
	switch cfg.Mode {
	case "csv":
		return NewCSVSource(cfg.CSVDir), nil
	case "synthetic":
		return NewSyntheticSource(), nil
	default:
		return nil, errors.Errorf("unknown feed mode %q", cfg.Mode)
	}
}
