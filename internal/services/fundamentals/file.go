package fundamentals

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/folio/internal/domain"
)

// FileProvider reads assessments from a YAML file keyed by ticker. The file
// is re-read when its modification time changes, so refreshing fundamentals
// does not need an engine restart.
type FileProvider struct {
	l    *zap.Logger
	path string

	mu    sync.Mutex
	mtime time.Time
	cache map[string]*domain.FundamentalAssessment
}

// assessmentTmp mirrors the YAML schema with decimals as strings.
type assessmentTmp struct {
	FScore            *int   `yaml:"f_score"`
	QualityScore      string `yaml:"quality_score"`
	EPS               string `yaml:"eps"`
	PERatio           string `yaml:"pe_ratio"`
	AnalystConsensus  string `yaml:"analyst_consensus"`
	InsiderMomentum   string `yaml:"insider_momentum"`
	CurrentRatio      string `yaml:"current_ratio"`
	DebtToEquity      string `yaml:"debt_to_equity"`
	LatestQuarterLoss bool   `yaml:"latest_quarter_loss"`
	DaysToEarnings    *int   `yaml:"days_to_earnings"`
	Sector            string `yaml:"sector"`
}

func NewFileProvider(l *zap.Logger, path string) *FileProvider {
	return &FileProvider{l: l, path: path}
}

// Assessment returns the cached assessment for the ticker, reloading the
// file first if it changed on disk. Unknown tickers return nil.
func (p *FileProvider) Assessment(ticker string) (*domain.FundamentalAssessment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.reload(); err != nil {
		return nil, err
	}

	return p.cache[ticker], nil
}

func (p *FileProvider) reload() error {
	info, err := os.Stat(p.path)
	if err != nil {
		return errors.Wrapf(err, "stat fundamentals file %s", p.path)
	}
	if p.cache != nil && info.ModTime().Equal(p.mtime) {
		return nil
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return errors.Wrap(err, "read fundamentals file")
	}

	var raw map[string]assessmentTmp
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "parse fundamentals file")
	}

	cache := make(map[string]*domain.FundamentalAssessment, len(raw))
	for ticker, tmp := range raw {
		assessment, err := tmp.toDomain(ticker)
		if err != nil {
			return errors.Wrapf(err, "fundamentals for %s", ticker)
		}
		cache[ticker] = assessment
	}

	p.cache = cache
	p.mtime = info.ModTime()
	p.l.Info("fundamentals loaded",
		zap.String("path", p.path),
		zap.Int("tickers", len(cache)))

	return nil
}

func (t assessmentTmp) toDomain(ticker string) (*domain.FundamentalAssessment, error) {
	a := &domain.FundamentalAssessment{
		Ticker:            ticker,
		FScore:            t.FScore,
		AnalystConsensus:  t.AnalystConsensus,
		LatestQuarterLoss: t.LatestQuarterLoss,
		DaysToEarnings:    t.DaysToEarnings,
		Sector:            t.Sector,
	}

	fields := []struct {
		dst  *decimal.Decimal
		raw  string
		name string
	}{
		{&a.QualityScore, t.QualityScore, "quality_score"},
		{&a.EPS, t.EPS, "eps"},
		{&a.PERatio, t.PERatio, "pe_ratio"},
		{&a.InsiderMomentum, t.InsiderMomentum, "insider_momentum"},
		{&a.CurrentRatio, t.CurrentRatio, "current_ratio"},
		{&a.DebtToEquity, t.DebtToEquity, "debt_to_equity"},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, errors.Wrapf(err, "incorrect '%s' value", f.name)
		}
		*f.dst = v
	}

	return a, nil
}
