// Package fundamentals serves per-ticker fundamental assessments to the
// gatekeeper. A YAML reference file backs real runs; synthetic mode derives
// deterministic assessments so dry runs still exercise the full pipeline.
package fundamentals

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/domain"
)

// Provider returns the fundamental assessment for one ticker, or nil when
// the ticker is unknown. The gatekeeper fails closed on nil.
type Provider interface {
	Assessment(ticker string) (*domain.FundamentalAssessment, error)
}

// New builds the provider matching the feed mode.
func New(l *zap.Logger, cfg config.Feed) (Provider, error) {
	switch cfg.Mode {
	case "csv":
		return NewFileProvider(l, cfg.FundamentalsFile), nil
	case "synthetic":
		return NewSyntheticProvider(), nil
	default:
		return nil, errors.Errorf("unknown feed mode %q", cfg.Mode)
	}
}
