package config

import (
	"flag"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrNoConfig is returned when no config path was given and none of the
// default config files exist. The caller is expected to run the setup wizard.
var ErrNoConfig = errors.New("no config file found")

var defaultConfigFiles = []string{"config.yaml", "config.gen.yaml"}

// Config is the full engine configuration. Every threshold used by the
// decision rules lives here; rule code never hard-codes a numeric limit.
type Config struct {
	DataDir     string
	Watchlist   []string
	HedgeTicker string
	Once        bool

	Schedule  Schedule
	Feed      Feed
	Oracle    Oracle
	Evaluator Evaluator
	Sizing    Sizing
	Hedge     Hedge
	Swap      Swap
	Broker    Broker
}

// Schedule controls when cycles run and how long they may take.
type Schedule struct {
	Cron          string
	CycleDeadline time.Duration
	TickerTimeout time.Duration
	SettleDelay   time.Duration
}

// Feed selects the market data source. The fundamentals file backs the
// gatekeeper in csv mode; synthetic mode generates assessments instead.
type Feed struct {
	Mode             string // "csv" or "synthetic"
	CSVDir           string
	HistoryBars      int
	FundamentalsFile string
}

// Oracle configures the sentiment oracle HTTP client.
type Oracle struct {
	BaseURL    string
	Model      string
	APIKeyEnv  string
	Timeout    time.Duration
	MaxRetries int
}

// Evaluator holds the per-ticker signal thresholds.
type Evaluator struct {
	ProfitTargetPct    decimal.Decimal
	ScaleOutPortion    decimal.Decimal
	SoftStopPct        decimal.Decimal
	SoftStopPortion    decimal.Decimal
	SoftStopSentiment  decimal.Decimal
	TrailingActivation decimal.Decimal
	TrailingBasePct    decimal.Decimal
	TrailingMinPct     decimal.Decimal
	TrailingMaxPct     decimal.Decimal
	HardStopBasePct    decimal.Decimal
	HardStopMinPct     decimal.Decimal
	HardStopMaxPct     decimal.Decimal
	ReferenceBandWidth decimal.Decimal
	SentimentCrash     decimal.Decimal
	RSIOverbought      decimal.Decimal
	RSIOversold        decimal.Decimal

	VolGatePct          decimal.Decimal
	VolGateRelaxedPct   decimal.Decimal
	VolatileBandWidth   decimal.Decimal
	MomentumVolumeRatio decimal.Decimal

	BuyGateSentiment            decimal.Decimal
	BuyGateSentimentLowExposure decimal.Decimal
	LowExposurePct              decimal.Decimal
	ProactiveSentiment          decimal.Decimal
	ProactiveConfidence         int

	BypassConfidence     int
	NullFScoreConfidence int
	NullFScoreSentiment  decimal.Decimal
	TurnaroundConfidence int
	TurnaroundSentiment  decimal.Decimal
	MinFScore            int
	MinFScoreLowExposure int

	StarConfidence int
	StarFScore     int

	EarningsBlackoutDays int
	SectorLimit          int // 0 disables the sector gate

	ConvictionBase      int
	ConvictionSpan      int
	ConvictionOversold  int
	ConvictionProactive int
	FScoreBonus         int
}

// Sizing holds the risk-parity position sizing parameters.
type Sizing struct {
	MinRiskPct         decimal.Decimal
	MaxRiskPct         decimal.Decimal
	VIXDamperThreshold decimal.Decimal
	VIXDamperFactor    decimal.Decimal
	BandDamperWidth    decimal.Decimal
	BandDamperFactor   decimal.Decimal
	CapPct             decimal.Decimal
	StarFloorPct       decimal.Decimal
	CashReserve        decimal.Decimal
}

// Hedge holds the macro hedge ladder thresholds.
type Hedge struct {
	PanicVIX      decimal.Decimal
	FearVIX       decimal.Decimal
	CautionVIX    decimal.Decimal
	PanicPct      decimal.Decimal
	FearPct       decimal.Decimal
	CautionPct    decimal.Decimal
	VetoSentiment decimal.Decimal
}

// Swap holds the conviction swap thresholds.
type Swap struct {
	WeakConviction       int
	SentimentFloor       decimal.Decimal
	StarConviction       int
	EntrySentimentFloor  decimal.Decimal
	Margin               int
	MinFScore            int
}

// Broker configures the paper broker.
type Broker struct {
	StartingCash       decimal.Decimal
	CommissionMin      decimal.Decimal
	CommissionPerShare decimal.Decimal
}

// Tmp is the raw yaml shape of the config file. Numeric thresholds are
// decoded as strings so decimal values survive exactly; the setup wizard
// fills the same struct when generating config.gen.yaml.
type Tmp struct {
	DataDir     string   `yaml:"data_dir,omitempty"`
	Watchlist   []string `yaml:"watchlist,omitempty"`
	HedgeTicker string   `yaml:"hedge_ticker,omitempty"`

	Schedule struct {
		Cron          string `yaml:"cron,omitempty"`
		CycleDeadline string `yaml:"cycle_deadline,omitempty"`
		TickerTimeout string `yaml:"ticker_timeout,omitempty"`
		SettleDelay   string `yaml:"settle_delay,omitempty"`
	} `yaml:"schedule,omitempty"`

	Feed struct {
		Mode             string `yaml:"mode,omitempty"`
		CSVDir           string `yaml:"csv_dir,omitempty"`
		HistoryBars      *int   `yaml:"history_bars,omitempty"`
		FundamentalsFile string `yaml:"fundamentals_file,omitempty"`
	} `yaml:"feed,omitempty"`

	Oracle struct {
		BaseURL    string `yaml:"base_url,omitempty"`
		Model      string `yaml:"model,omitempty"`
		APIKeyEnv  string `yaml:"api_key_env,omitempty"`
		Timeout    string `yaml:"timeout,omitempty"`
		MaxRetries *int   `yaml:"max_retries,omitempty"`
	} `yaml:"oracle,omitempty"`

	Evaluator struct {
		ProfitTargetPct    string `yaml:"profit_target_pct,omitempty"`
		ScaleOutPortion    string `yaml:"scale_out_portion,omitempty"`
		SoftStopPct        string `yaml:"soft_stop_pct,omitempty"`
		SoftStopPortion    string `yaml:"soft_stop_portion,omitempty"`
		SoftStopSentiment  string `yaml:"soft_stop_sentiment,omitempty"`
		TrailingActivation string `yaml:"trailing_activation_pct,omitempty"`
		TrailingBasePct    string `yaml:"trailing_base_pct,omitempty"`
		TrailingMinPct     string `yaml:"trailing_min_pct,omitempty"`
		TrailingMaxPct     string `yaml:"trailing_max_pct,omitempty"`
		HardStopBasePct    string `yaml:"hard_stop_base_pct,omitempty"`
		HardStopMinPct     string `yaml:"hard_stop_min_pct,omitempty"`
		HardStopMaxPct     string `yaml:"hard_stop_max_pct,omitempty"`
		ReferenceBandWidth string `yaml:"reference_band_width,omitempty"`
		SentimentCrash     string `yaml:"sentiment_crash,omitempty"`
		RSIOverbought      string `yaml:"rsi_overbought,omitempty"`
		RSIOversold        string `yaml:"rsi_oversold,omitempty"`

		VolGatePct          string `yaml:"vol_gate_pct,omitempty"`
		VolGateRelaxedPct   string `yaml:"vol_gate_relaxed_pct,omitempty"`
		VolatileBandWidth   string `yaml:"volatile_band_width,omitempty"`
		MomentumVolumeRatio string `yaml:"momentum_volume_ratio,omitempty"`

		BuyGateSentiment            string `yaml:"buy_gate_sentiment,omitempty"`
		BuyGateSentimentLowExposure string `yaml:"buy_gate_sentiment_low_exposure,omitempty"`
		LowExposurePct              string `yaml:"low_exposure_pct,omitempty"`
		ProactiveSentiment          string `yaml:"proactive_sentiment,omitempty"`
		ProactiveConfidence         *int   `yaml:"proactive_confidence,omitempty"`

		BypassConfidence     *int   `yaml:"bypass_confidence,omitempty"`
		NullFScoreConfidence *int   `yaml:"null_fscore_confidence,omitempty"`
		NullFScoreSentiment  string `yaml:"null_fscore_sentiment,omitempty"`
		TurnaroundConfidence *int   `yaml:"turnaround_confidence,omitempty"`
		TurnaroundSentiment  string `yaml:"turnaround_sentiment,omitempty"`
		MinFScore            *int   `yaml:"min_fscore,omitempty"`
		MinFScoreLowExposure *int   `yaml:"min_fscore_low_exposure,omitempty"`

		StarConfidence *int `yaml:"star_confidence,omitempty"`
		StarFScore     *int `yaml:"star_fscore,omitempty"`

		EarningsBlackoutDays *int `yaml:"earnings_blackout_days,omitempty"`
		SectorLimit          *int `yaml:"sector_limit,omitempty"`

		ConvictionBase      *int `yaml:"conviction_base,omitempty"`
		ConvictionSpan      *int `yaml:"conviction_span,omitempty"`
		ConvictionOversold  *int `yaml:"conviction_oversold,omitempty"`
		ConvictionProactive *int `yaml:"conviction_proactive,omitempty"`
		FScoreBonus         *int `yaml:"fscore_bonus,omitempty"`
	} `yaml:"evaluator,omitempty"`

	Sizing struct {
		MinRiskPct         string `yaml:"min_risk_pct,omitempty"`
		MaxRiskPct         string `yaml:"max_risk_pct,omitempty"`
		VIXDamperThreshold string `yaml:"vix_damper_threshold,omitempty"`
		VIXDamperFactor    string `yaml:"vix_damper_factor,omitempty"`
		BandDamperWidth    string `yaml:"band_damper_width,omitempty"`
		BandDamperFactor   string `yaml:"band_damper_factor,omitempty"`
		CapPct             string `yaml:"cap_pct,omitempty"`
		StarFloorPct       string `yaml:"star_floor_pct,omitempty"`
		CashReserve        string `yaml:"cash_reserve,omitempty"`
	} `yaml:"sizing,omitempty"`

	Hedge struct {
		PanicVIX      string `yaml:"panic_vix,omitempty"`
		FearVIX       string `yaml:"fear_vix,omitempty"`
		CautionVIX    string `yaml:"caution_vix,omitempty"`
		PanicPct      string `yaml:"panic_pct,omitempty"`
		FearPct       string `yaml:"fear_pct,omitempty"`
		CautionPct    string `yaml:"caution_pct,omitempty"`
		VetoSentiment string `yaml:"veto_sentiment,omitempty"`
	} `yaml:"hedge,omitempty"`

	Swap struct {
		WeakConviction      *int   `yaml:"weak_conviction,omitempty"`
		SentimentFloor      string `yaml:"sentiment_floor,omitempty"`
		StarConviction      *int   `yaml:"star_conviction,omitempty"`
		EntrySentimentFloor string `yaml:"entry_sentiment_floor,omitempty"`
		Margin              *int   `yaml:"margin,omitempty"`
		MinFScore           *int   `yaml:"min_fscore,omitempty"`
	} `yaml:"swap,omitempty"`

	Broker struct {
		StartingCash       string `yaml:"starting_cash,omitempty"`
		CommissionMin      string `yaml:"commission_min,omitempty"`
		CommissionPerShare string `yaml:"commission_per_share,omitempty"`
	} `yaml:"broker,omitempty"`
}

var (
	flagPath = flag.String("config", "", "path to yaml config")
	flagOnce = flag.Bool("once", false, "run a single cycle and exit")
)

// Get parses flags and loads the config file. With no --config flag it
// falls back to config.yaml, then config.gen.yaml, then ErrNoConfig.
// Safe to call again after the wizard has written config.gen.yaml.
func Get() (Config, error) {
	if !flag.Parsed() {
		flag.Parse()
	}

	p := *flagPath
	if p == "" {
		for _, candidate := range defaultConfigFiles {
			if _, err := os.Stat(candidate); err == nil {
				p = candidate
				break
			}
		}
	}
	if p == "" {
		return Config{}, ErrNoConfig
	}

	cfg, err := Load(p)
	if err != nil {
		return Config{}, err
	}
	cfg.Once = *flagOnce

	return cfg, nil
}

// Load reads and validates a yaml config file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}

	var tmp Tmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}

	cfg, err := fromTmp(tmp)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func fromTmp(tmp Tmp) (Config, error) {
	var cfg Config
	var err error

	cfg.DataDir = strOr(tmp.DataDir, "data")
	cfg.Watchlist = tmp.Watchlist
	cfg.HedgeTicker = strOr(tmp.HedgeTicker, "PSQ")

	cfg.Schedule.Cron = strOr(tmp.Schedule.Cron, "*/15 9-16 * * 1-5")
	if cfg.Schedule.CycleDeadline, err = durOr(tmp.Schedule.CycleDeadline, "schedule.cycle_deadline", 4*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.Schedule.TickerTimeout, err = durOr(tmp.Schedule.TickerTimeout, "schedule.ticker_timeout", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Schedule.SettleDelay, err = durOr(tmp.Schedule.SettleDelay, "schedule.settle_delay", 5*time.Second); err != nil {
		return Config{}, err
	}

	cfg.Feed.Mode = strOr(tmp.Feed.Mode, "synthetic")
	cfg.Feed.CSVDir = strOr(tmp.Feed.CSVDir, "data/klines")
	cfg.Feed.HistoryBars = intOr(tmp.Feed.HistoryBars, 60)
	cfg.Feed.FundamentalsFile = strOr(tmp.Feed.FundamentalsFile, "data/fundamentals.yaml")

	cfg.Oracle.BaseURL = strOr(tmp.Oracle.BaseURL, "https://api.openai.com/v1")
	cfg.Oracle.Model = strOr(tmp.Oracle.Model, "gpt-4o-mini")
	cfg.Oracle.APIKeyEnv = strOr(tmp.Oracle.APIKeyEnv, "FOLIO_ORACLE_KEY")
	if cfg.Oracle.Timeout, err = durOr(tmp.Oracle.Timeout, "oracle.timeout", 30*time.Second); err != nil {
		return Config{}, err
	}
	cfg.Oracle.MaxRetries = intOr(tmp.Oracle.MaxRetries, 3)

	if err = fillEvaluator(&cfg.Evaluator, tmp); err != nil {
		return Config{}, err
	}
	if err = fillSizing(&cfg.Sizing, tmp); err != nil {
		return Config{}, err
	}
	if err = fillHedge(&cfg.Hedge, tmp); err != nil {
		return Config{}, err
	}
	if err = fillSwap(&cfg.Swap, tmp); err != nil {
		return Config{}, err
	}
	if err = fillBroker(&cfg.Broker, tmp); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func fillEvaluator(ev *Evaluator, tmp Tmp) error {
	t := tmp.Evaluator
	fields := []struct {
		dst  *decimal.Decimal
		raw  string
		name string
		def  string
	}{
		{&ev.ProfitTargetPct, t.ProfitTargetPct, "evaluator.profit_target_pct", "0.05"},
		{&ev.ScaleOutPortion, t.ScaleOutPortion, "evaluator.scale_out_portion", "0.5"},
		{&ev.SoftStopPct, t.SoftStopPct, "evaluator.soft_stop_pct", "0.03"},
		{&ev.SoftStopPortion, t.SoftStopPortion, "evaluator.soft_stop_portion", "0.25"},
		{&ev.SoftStopSentiment, t.SoftStopSentiment, "evaluator.soft_stop_sentiment", "-0.1"},
		{&ev.TrailingActivation, t.TrailingActivation, "evaluator.trailing_activation_pct", "0.04"},
		{&ev.TrailingBasePct, t.TrailingBasePct, "evaluator.trailing_base_pct", "0.04"},
		{&ev.TrailingMinPct, t.TrailingMinPct, "evaluator.trailing_min_pct", "0.02"},
		{&ev.TrailingMaxPct, t.TrailingMaxPct, "evaluator.trailing_max_pct", "0.08"},
		{&ev.HardStopBasePct, t.HardStopBasePct, "evaluator.hard_stop_base_pct", "0.05"},
		{&ev.HardStopMinPct, t.HardStopMinPct, "evaluator.hard_stop_min_pct", "0.025"},
		{&ev.HardStopMaxPct, t.HardStopMaxPct, "evaluator.hard_stop_max_pct", "0.12"},
		{&ev.ReferenceBandWidth, t.ReferenceBandWidth, "evaluator.reference_band_width", "0.04"},
		{&ev.SentimentCrash, t.SentimentCrash, "evaluator.sentiment_crash", "-0.4"},
		{&ev.RSIOverbought, t.RSIOverbought, "evaluator.rsi_overbought", "80"},
		{&ev.RSIOversold, t.RSIOversold, "evaluator.rsi_oversold", "30"},
		{&ev.VolGatePct, t.VolGatePct, "evaluator.vol_gate_pct", "0.25"},
		{&ev.VolGateRelaxedPct, t.VolGateRelaxedPct, "evaluator.vol_gate_relaxed_pct", "0.525"},
		{&ev.VolatileBandWidth, t.VolatileBandWidth, "evaluator.volatile_band_width", "0.40"},
		{&ev.MomentumVolumeRatio, t.MomentumVolumeRatio, "evaluator.momentum_volume_ratio", "1.5"},
		{&ev.BuyGateSentiment, t.BuyGateSentiment, "evaluator.buy_gate_sentiment", "0.4"},
		{&ev.BuyGateSentimentLowExposure, t.BuyGateSentimentLowExposure, "evaluator.buy_gate_sentiment_low_exposure", "0.2"},
		{&ev.LowExposurePct, t.LowExposurePct, "evaluator.low_exposure_pct", "0.65"},
		{&ev.ProactiveSentiment, t.ProactiveSentiment, "evaluator.proactive_sentiment", "0.2"},
		{&ev.NullFScoreSentiment, t.NullFScoreSentiment, "evaluator.null_fscore_sentiment", "0.2"},
		{&ev.TurnaroundSentiment, t.TurnaroundSentiment, "evaluator.turnaround_sentiment", "0.4"},
	}
	for _, f := range fields {
		d, err := dec(f.raw, f.name, f.def)
		if err != nil {
			return err
		}
		*f.dst = d
	}

	ev.ProactiveConfidence = intOr(t.ProactiveConfidence, 70)
	ev.BypassConfidence = intOr(t.BypassConfidence, 80)
	ev.NullFScoreConfidence = intOr(t.NullFScoreConfidence, 70)
	ev.TurnaroundConfidence = intOr(t.TurnaroundConfidence, 70)
	ev.MinFScore = intOr(t.MinFScore, 5)
	ev.MinFScoreLowExposure = intOr(t.MinFScoreLowExposure, 2)
	ev.StarConfidence = intOr(t.StarConfidence, 85)
	ev.StarFScore = intOr(t.StarFScore, 7)
	ev.EarningsBlackoutDays = intOr(t.EarningsBlackoutDays, 3)
	ev.SectorLimit = intOr(t.SectorLimit, 0)
	ev.ConvictionBase = intOr(t.ConvictionBase, 60)
	ev.ConvictionSpan = intOr(t.ConvictionSpan, 40)
	ev.ConvictionOversold = intOr(t.ConvictionOversold, 75)
	ev.ConvictionProactive = intOr(t.ConvictionProactive, 70)
	ev.FScoreBonus = intOr(t.FScoreBonus, 10)

	return nil
}

func fillSizing(s *Sizing, tmp Tmp) error {
	t := tmp.Sizing
	fields := []struct {
		dst  *decimal.Decimal
		raw  string
		name string
		def  string
	}{
		{&s.MinRiskPct, t.MinRiskPct, "sizing.min_risk_pct", "0.004"},
		{&s.MaxRiskPct, t.MaxRiskPct, "sizing.max_risk_pct", "0.010"},
		{&s.VIXDamperThreshold, t.VIXDamperThreshold, "sizing.vix_damper_threshold", "20"},
		{&s.VIXDamperFactor, t.VIXDamperFactor, "sizing.vix_damper_factor", "0.5"},
		{&s.BandDamperWidth, t.BandDamperWidth, "sizing.band_damper_width", "0.05"},
		{&s.BandDamperFactor, t.BandDamperFactor, "sizing.band_damper_factor", "0.7"},
		{&s.CapPct, t.CapPct, "sizing.cap_pct", "0.28"},
		{&s.StarFloorPct, t.StarFloorPct, "sizing.star_floor_pct", "0.10"},
		{&s.CashReserve, t.CashReserve, "sizing.cash_reserve", "1000"},
	}
	for _, f := range fields {
		d, err := dec(f.raw, f.name, f.def)
		if err != nil {
			return err
		}
		*f.dst = d
	}
	return nil
}

func fillHedge(h *Hedge, tmp Tmp) error {
	t := tmp.Hedge
	fields := []struct {
		dst  *decimal.Decimal
		raw  string
		name string
		def  string
	}{
		{&h.PanicVIX, t.PanicVIX, "hedge.panic_vix", "45"},
		{&h.FearVIX, t.FearVIX, "hedge.fear_vix", "35"},
		{&h.CautionVIX, t.CautionVIX, "hedge.caution_vix", "30"},
		{&h.PanicPct, t.PanicPct, "hedge.panic_pct", "0.10"},
		{&h.FearPct, t.FearPct, "hedge.fear_pct", "0.05"},
		{&h.CautionPct, t.CautionPct, "hedge.caution_pct", "0.02"},
		{&h.VetoSentiment, t.VetoSentiment, "hedge.veto_sentiment", "-0.2"},
	}
	for _, f := range fields {
		d, err := dec(f.raw, f.name, f.def)
		if err != nil {
			return err
		}
		*f.dst = d
	}
	return nil
}

func fillSwap(s *Swap, tmp Tmp) error {
	t := tmp.Swap
	s.WeakConviction = intOr(t.WeakConviction, 50)
	s.StarConviction = intOr(t.StarConviction, 75)
	s.Margin = intOr(t.Margin, 15)
	s.MinFScore = intOr(t.MinFScore, 5)

	var err error
	if s.SentimentFloor, err = dec(t.SentimentFloor, "swap.sentiment_floor", "-0.2"); err != nil {
		return err
	}
	if s.EntrySentimentFloor, err = dec(t.EntrySentimentFloor, "swap.entry_sentiment_floor", "0.2"); err != nil {
		return err
	}
	return nil
}

func fillBroker(b *Broker, tmp Tmp) error {
	t := tmp.Broker
	var err error
	if b.StartingCash, err = dec(t.StartingCash, "broker.starting_cash", "100000"); err != nil {
		return err
	}
	if b.CommissionMin, err = dec(t.CommissionMin, "broker.commission_min", "1.00"); err != nil {
		return err
	}
	if b.CommissionPerShare, err = dec(t.CommissionPerShare, "broker.commission_per_share", "0.005"); err != nil {
		return err
	}
	return nil
}

func (c Config) validate() error {
	if len(c.Watchlist) == 0 {
		return errors.New("config: watchlist must not be empty")
	}
	if c.Feed.Mode != "csv" && c.Feed.Mode != "synthetic" {
		return errors.Errorf("config: unknown feed mode %q", c.Feed.Mode)
	}
	if c.Evaluator.MinFScore < c.Evaluator.MinFScoreLowExposure {
		return errors.New("config: evaluator.min_fscore must be >= evaluator.min_fscore_low_exposure")
	}
	if c.Sizing.MinRiskPct.GreaterThan(c.Sizing.MaxRiskPct) {
		return errors.New("config: sizing.min_risk_pct must be <= sizing.max_risk_pct")
	}
	if c.Sizing.StarFloorPct.GreaterThan(c.Sizing.CapPct) {
		return errors.New("config: sizing.star_floor_pct must be <= sizing.cap_pct")
	}
	if c.Sizing.CashReserve.IsNegative() {
		return errors.New("config: sizing.cash_reserve must not be negative")
	}
	if c.Evaluator.HardStopMinPct.GreaterThan(c.Evaluator.HardStopMaxPct) {
		return errors.New("config: evaluator.hard_stop_min_pct must be <= evaluator.hard_stop_max_pct")
	}
	if c.Evaluator.TrailingMinPct.GreaterThan(c.Evaluator.TrailingMaxPct) {
		return errors.New("config: evaluator.trailing_min_pct must be <= evaluator.trailing_max_pct")
	}
	if c.Evaluator.ReferenceBandWidth.IsZero() || c.Evaluator.ReferenceBandWidth.IsNegative() {
		return errors.New("config: evaluator.reference_band_width must be positive")
	}
	if c.Swap.Margin < 0 {
		return errors.New("config: swap.margin must not be negative")
	}
	for _, ticker := range c.Watchlist {
		if ticker == c.HedgeTicker {
			return errors.Errorf("config: hedge ticker %s must not appear in the watchlist", ticker)
		}
	}
	return nil
}

func dec(raw, name, def string) (decimal.Decimal, error) {
	if raw == "" {
		raw = def
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "incorrect '%s' param in yaml config", name)
	}
	return d, nil
}

func durOr(raw, name string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "incorrect '%s' param in yaml config", name)
	}
	return d, nil
}

func strOr(raw, def string) string {
	if raw == "" {
		return def
	}
	return raw
}

func intOr(raw *int, def int) int {
	if raw == nil {
		return def
	}
	return *raw
}
