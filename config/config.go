package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/internal/domain"
	"github.com/vadiminshakov/updown/internal/logger"
	"github.com/vadiminshakov/updown/internal/services/feed"
	"github.com/vadiminshakov/updown/internal/services/learner"
	"github.com/vadiminshakov/updown/internal/services/risk"
	"github.com/vadiminshakov/updown/internal/services/scanner"
	"github.com/vadiminshakov/updown/internal/services/signal"
	"gopkg.in/yaml.v3"
)

const (
	envPaper   = "UPDOWN_PAPER"
	envWebAddr = "UPDOWN_WEB_ADDR"
)

var hundred = decimal.NewFromInt(100)

// Config runtime settings of the bot.
type Config struct {
	Markets        []domain.MarketKey
	CandleProvider string

	Paper        bool
	PaperBalance decimal.Decimal
	WebAddr      string
	DataDir      string
	Log          logger.Config

	// TLSDomains enables HTTPS with ACME certificates for the web UI.
	TLSDomains   []string
	CertCacheDir string

	PollInterval     time.Duration
	ScanInterval     time.Duration
	RiskInterval     time.Duration
	DisplayInterval  time.Duration
	RegistryInterval time.Duration
	QuoteMaxAge      time.Duration

	GammaURL       string
	ClobURL        string
	WSURL          string
	BinanceURL     string
	BybitURL       string
	HyperliquidURL string

	BinanceAPIKey         string
	BinanceAPISecret      string
	BybitAPIKey           string
	BybitAPISecret        string
	HyperliquidPrivateKey string

	MinPositionSizeUSD  decimal.Decimal
	BasePositionSizeUSD decimal.Decimal
	MaxPositionSizeUSD  decimal.Decimal
	MaxPositions        int

	StopLossPct         decimal.Decimal
	TakeProfitPct       decimal.Decimal
	RSITakeProfitPct    decimal.Decimal
	TrailingStopPct     decimal.Decimal
	RSITrailingStopPct  decimal.Decimal
	PartialProfitPct    decimal.Decimal
	RSIPartialProfitPct decimal.Decimal
	MaxProfitTargetPct  decimal.Decimal
	PartialExitFraction decimal.Decimal
	DailyLossLimitPct   decimal.Decimal
	MaxPositionAge      time.Duration
	ExitBeforeExpiry    time.Duration
	Cooldown            time.Duration
	MinTimeToExpiry     map[domain.Timeframe]time.Duration

	ConfidenceThreshold int
	MinScore            int
	LearnerMinSamples   int
	AvoidWinRate        float64
}

// ConfigTmp yaml representation of Config. Empty values take defaults.
type ConfigTmp struct {
	Assets         []string `yaml:"assets,omitempty"`
	Timeframes     []string `yaml:"timeframes,omitempty"`
	CandleProvider string   `yaml:"candle_provider,omitempty"`

	Paper        *bool  `yaml:"paper,omitempty"`
	PaperBalance string `yaml:"paper_balance,omitempty"`
	WebAddr      string `yaml:"web_addr,omitempty"`
	DataDir      string `yaml:"data_dir,omitempty"`

	TLSDomains   []string `yaml:"tls_domains,omitempty"`
	CertCacheDir string   `yaml:"cert_cache_dir,omitempty"`

	LogLevel      string `yaml:"log_level,omitempty"`
	LogFile       string `yaml:"log_file,omitempty"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb,omitempty"`
	LogMaxBackups int    `yaml:"log_max_backups,omitempty"`
	LogMaxAgeDays int    `yaml:"log_max_age_days,omitempty"`
	LogCompress   bool   `yaml:"log_compress,omitempty"`

	PollInterval     time.Duration `yaml:"poll_interval,omitempty"`
	ScanInterval     time.Duration `yaml:"scan_interval,omitempty"`
	RiskInterval     time.Duration `yaml:"risk_interval,omitempty"`
	DisplayInterval  time.Duration `yaml:"display_interval,omitempty"`
	RegistryInterval time.Duration `yaml:"registry_interval,omitempty"`
	QuoteMaxAge      time.Duration `yaml:"quote_max_age,omitempty"`

	GammaURL       string `yaml:"gamma_url,omitempty"`
	ClobURL        string `yaml:"clob_url,omitempty"`
	WSURL          string `yaml:"ws_url,omitempty"`
	BinanceURL     string `yaml:"binance_url,omitempty"`
	BybitURL       string `yaml:"bybit_url,omitempty"`
	HyperliquidURL string `yaml:"hyperliquid_url,omitempty"`

	MinPositionSize     string `yaml:"min_position_size,omitempty"`
	BasePositionSize    string `yaml:"base_position_size,omitempty"`
	MaxPositionSize     string `yaml:"max_position_size,omitempty"`
	MaxPositionsStr     string `yaml:"max_positions,omitempty"`
	StopLossPct         string `yaml:"stop_loss_pct,omitempty"`
	TakeProfitPct       string `yaml:"take_profit_pct,omitempty"`
	RSITakeProfitPct    string `yaml:"rsi_take_profit_pct,omitempty"`
	TrailingStopPct     string `yaml:"trailing_stop_pct,omitempty"`
	RSITrailingStopPct  string `yaml:"rsi_trailing_stop_pct,omitempty"`
	PartialProfitPct    string `yaml:"partial_profit_pct,omitempty"`
	RSIPartialProfitPct string `yaml:"rsi_partial_profit_pct,omitempty"`
	MaxProfitTargetPct  string `yaml:"max_profit_target_pct,omitempty"`
	PartialExitFraction string `yaml:"partial_exit_fraction,omitempty"`
	DailyLossLimitPct   string `yaml:"daily_loss_limit_pct,omitempty"`

	MaxPositionAge   time.Duration `yaml:"max_position_age,omitempty"`
	ExitBeforeExpiry time.Duration `yaml:"exit_before_expiry,omitempty"`
	Cooldown         time.Duration `yaml:"cooldown,omitempty"`
	MinExpiry15m     time.Duration `yaml:"min_expiry_15m,omitempty"`
	MinExpiry1h      time.Duration `yaml:"min_expiry_1h,omitempty"`

	ConfidenceThresholdStr string `yaml:"confidence_threshold,omitempty"`
	MinScoreStr            string `yaml:"min_score,omitempty"`
	LearnerMinSamplesStr   string `yaml:"learner_min_samples,omitempty"`
	AvoidWinRateStr        string `yaml:"avoid_win_rate,omitempty"`
}

// Default returns the production settings.
func Default() Config {
	r := risk.DefaultConfig()
	l := learner.DefaultConfig()

	return Config{
		Markets: domain.Universe(
			[]domain.Asset{domain.AssetBTC, domain.AssetETH, domain.AssetSOL, domain.AssetXRP},
			[]domain.Timeframe{domain.Timeframe15m, domain.Timeframe1h},
		),
		CandleProvider: "binance",

		Paper:        true,
		PaperBalance: decimal.NewFromInt(100),
		WebAddr:      ":8080",
		DataDir:      "./data",
		CertCacheDir: "cert-cache",
		Log: logger.Config{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},

		PollInterval:     2 * time.Second,
		ScanInterval:     10 * time.Second,
		RiskInterval:     time.Second,
		DisplayInterval:  5 * time.Second,
		RegistryInterval: 30 * time.Second,
		QuoteMaxAge:      30 * time.Second,

		GammaURL: feed.DefaultGammaURL,
		ClobURL:  feed.DefaultClobURL,
		WSURL:    feed.DefaultWSURL,

		MinPositionSizeUSD:  r.MinPositionSizeUSD,
		BasePositionSizeUSD: r.BasePositionSizeUSD,
		MaxPositionSizeUSD:  r.MaxPositionSizeUSD,
		MaxPositions:        r.MaxPositions,
		StopLossPct:         r.StopLossPct,
		TakeProfitPct:       r.TakeProfitPct,
		RSITakeProfitPct:    r.RSITakeProfitPct,
		TrailingStopPct:     r.TrailingStopPct,
		RSITrailingStopPct:  r.RSITrailingStopPct,
		PartialProfitPct:    r.PartialProfitPct,
		RSIPartialProfitPct: r.RSIPartialProfitPct,
		MaxProfitTargetPct:  r.MaxProfitTargetPct,
		PartialExitFraction: r.PartialExitFraction,
		DailyLossLimitPct:   r.DailyLossLimitPct,
		MaxPositionAge:      r.MaxPositionAge,
		ExitBeforeExpiry:    r.ExitBeforeExpiry,
		Cooldown:            r.Cooldown,
		MinTimeToExpiry:     r.MinTimeToExpiry,

		ConfidenceThreshold: signal.DefaultParams().ConfidenceThreshold,
		MinScore:            scanner.DefaultParams().MinScore,
		LearnerMinSamples:   l.MinSamples,
		AvoidWinRate:        l.AvoidWinRate,
	}
}

// Load builds the configuration from defaults, the yaml file at path (if
// any) and the environment, then validates it. A .env file in the working
// directory is loaded first when present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, errors.Wrap(err, "load .env")
	}

	var tmp ConfigTmp
	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(f, &tmp); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	cfg, err := tmp.Parse()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	return cfg, errors.Wrap(cfg.Validate(), "invalid config")
}

// Parse converts the yaml representation into a Config over the defaults.
func (c ConfigTmp) Parse() (Config, error) {
	cfg := Default()

	if len(c.Assets) > 0 || len(c.Timeframes) > 0 {
		assets := []domain.Asset{domain.AssetBTC, domain.AssetETH, domain.AssetSOL, domain.AssetXRP}
		if len(c.Assets) > 0 {
			assets = assets[:0:0]
			for _, s := range c.Assets {
				a, err := domain.ParseAsset(s)
				if err != nil {
					return Config{}, fmt.Errorf("incorrect 'assets' param in yaml config: %w", err)
				}
				assets = append(assets, a)
			}
		}
		timeframes := []domain.Timeframe{domain.Timeframe15m, domain.Timeframe1h}
		if len(c.Timeframes) > 0 {
			timeframes = timeframes[:0:0]
			for _, s := range c.Timeframes {
				tf, err := domain.ParseTimeframe(s)
				if err != nil {
					return Config{}, fmt.Errorf("incorrect 'timeframes' param in yaml config: %w", err)
				}
				timeframes = append(timeframes, tf)
			}
		}
		cfg.Markets = domain.Universe(assets, timeframes)
	}

	setString(&cfg.CandleProvider, c.CandleProvider)
	if c.Paper != nil {
		cfg.Paper = *c.Paper
	}
	setString(&cfg.WebAddr, c.WebAddr)
	setString(&cfg.DataDir, c.DataDir)
	if len(c.TLSDomains) > 0 {
		cfg.TLSDomains = c.TLSDomains
	}
	setString(&cfg.CertCacheDir, c.CertCacheDir)

	setString(&cfg.Log.Level, c.LogLevel)
	setString(&cfg.Log.File, c.LogFile)
	setInt(&cfg.Log.MaxSizeMB, c.LogMaxSizeMB)
	setInt(&cfg.Log.MaxBackups, c.LogMaxBackups)
	setInt(&cfg.Log.MaxAgeDays, c.LogMaxAgeDays)
	cfg.Log.Compress = c.LogCompress

	setDuration(&cfg.PollInterval, c.PollInterval)
	setDuration(&cfg.ScanInterval, c.ScanInterval)
	setDuration(&cfg.RiskInterval, c.RiskInterval)
	setDuration(&cfg.DisplayInterval, c.DisplayInterval)
	setDuration(&cfg.RegistryInterval, c.RegistryInterval)
	setDuration(&cfg.QuoteMaxAge, c.QuoteMaxAge)

	setString(&cfg.GammaURL, c.GammaURL)
	setString(&cfg.ClobURL, c.ClobURL)
	setString(&cfg.WSURL, c.WSURL)
	setString(&cfg.BinanceURL, c.BinanceURL)
	setString(&cfg.BybitURL, c.BybitURL)
	setString(&cfg.HyperliquidURL, c.HyperliquidURL)

	decimals := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"paper_balance", c.PaperBalance, &cfg.PaperBalance},
		{"min_position_size", c.MinPositionSize, &cfg.MinPositionSizeUSD},
		{"base_position_size", c.BasePositionSize, &cfg.BasePositionSizeUSD},
		{"max_position_size", c.MaxPositionSize, &cfg.MaxPositionSizeUSD},
		{"stop_loss_pct", c.StopLossPct, &cfg.StopLossPct},
		{"take_profit_pct", c.TakeProfitPct, &cfg.TakeProfitPct},
		{"rsi_take_profit_pct", c.RSITakeProfitPct, &cfg.RSITakeProfitPct},
		{"trailing_stop_pct", c.TrailingStopPct, &cfg.TrailingStopPct},
		{"rsi_trailing_stop_pct", c.RSITrailingStopPct, &cfg.RSITrailingStopPct},
		{"partial_profit_pct", c.PartialProfitPct, &cfg.PartialProfitPct},
		{"rsi_partial_profit_pct", c.RSIPartialProfitPct, &cfg.RSIPartialProfitPct},
		{"max_profit_target_pct", c.MaxProfitTargetPct, &cfg.MaxProfitTargetPct},
		{"partial_exit_fraction", c.PartialExitFraction, &cfg.PartialExitFraction},
		{"daily_loss_limit_pct", c.DailyLossLimitPct, &cfg.DailyLossLimitPct},
	}
	for _, d := range decimals {
		if d.value == "" {
			continue
		}
		v, err := decimal.NewFromString(d.value)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a decimal), error: %w", d.name, err)
		}
		*d.dst = v
	}

	ints := []struct {
		name  string
		value string
		dst   *int
	}{
		{"max_positions", c.MaxPositionsStr, &cfg.MaxPositions},
		{"confidence_threshold", c.ConfidenceThresholdStr, &cfg.ConfidenceThreshold},
		{"min_score", c.MinScoreStr, &cfg.MinScore},
		{"learner_min_samples", c.LearnerMinSamplesStr, &cfg.LearnerMinSamples},
	}
	for _, i := range ints {
		if i.value == "" {
			continue
		}
		v, err := strconv.Atoi(i.value)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect '%s' param in yaml config (must be an integer), error: %w", i.name, err)
		}
		*i.dst = v
	}

	if c.AvoidWinRateStr != "" {
		v, err := strconv.ParseFloat(c.AvoidWinRateStr, 64)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'avoid_win_rate' param in yaml config (must be a number), error: %w", err)
		}
		cfg.AvoidWinRate = v
	}

	setDuration(&cfg.MaxPositionAge, c.MaxPositionAge)
	setDuration(&cfg.ExitBeforeExpiry, c.ExitBeforeExpiry)
	setDuration(&cfg.Cooldown, c.Cooldown)
	if c.MinExpiry15m > 0 || c.MinExpiry1h > 0 {
		minExpiry := make(map[domain.Timeframe]time.Duration, len(cfg.MinTimeToExpiry))
		for tf, d := range cfg.MinTimeToExpiry {
			minExpiry[tf] = d
		}
		if c.MinExpiry15m > 0 {
			minExpiry[domain.Timeframe15m] = c.MinExpiry15m
		}
		if c.MinExpiry1h > 0 {
			minExpiry[domain.Timeframe1h] = c.MinExpiry1h
		}
		cfg.MinTimeToExpiry = minExpiry
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(envPaper); v != "" {
		paper, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "parse %s", envPaper)
		}
		c.Paper = paper
	}
	if v := os.Getenv(envWebAddr); v != "" {
		c.WebAddr = v
	}

	c.BinanceAPIKey = os.Getenv("BINANCE_API_KEY")
	c.BinanceAPISecret = os.Getenv("BINANCE_API_SECRET")
	c.BybitAPIKey = os.Getenv("BYBIT_API_KEY")
	c.BybitAPISecret = os.Getenv("BYBIT_API_SECRET")
	c.HyperliquidPrivateKey = os.Getenv("HYPERLIQUID_PRIVATE_KEY")
	return nil
}

// Validate checks sizes, caps and thresholds.
func (c Config) Validate() error {
	if len(c.Markets) == 0 {
		return errors.New("at least one market is required")
	}
	switch c.CandleProvider {
	case "binance", "bybit", "hyperliquid":
	default:
		return errors.Errorf("unsupported candle provider %q", c.CandleProvider)
	}

	if !c.MinPositionSizeUSD.IsPositive() {
		return errors.New("min_position_size must be positive")
	}
	if c.BasePositionSizeUSD.LessThan(c.MinPositionSizeUSD) || c.BasePositionSizeUSD.GreaterThan(c.MaxPositionSizeUSD) {
		return errors.Errorf("position sizes must satisfy min <= base <= max, got %s/%s/%s",
			c.MinPositionSizeUSD, c.BasePositionSizeUSD, c.MaxPositionSizeUSD)
	}
	if c.MaxPositions <= 0 {
		return errors.New("max_positions must be positive")
	}

	pcts := []struct {
		name  string
		value decimal.Decimal
	}{
		{"stop_loss_pct", c.StopLossPct},
		{"take_profit_pct", c.TakeProfitPct},
		{"rsi_take_profit_pct", c.RSITakeProfitPct},
		{"trailing_stop_pct", c.TrailingStopPct},
		{"rsi_trailing_stop_pct", c.RSITrailingStopPct},
		{"partial_profit_pct", c.PartialProfitPct},
		{"rsi_partial_profit_pct", c.RSIPartialProfitPct},
		{"max_profit_target_pct", c.MaxProfitTargetPct},
		{"daily_loss_limit_pct", c.DailyLossLimitPct},
	}
	for _, p := range pcts {
		if !p.value.IsPositive() || p.value.GreaterThan(hundred) {
			return errors.Errorf("%s must be within (0, 100], got %s", p.name, p.value)
		}
	}

	variants := []struct {
		name     string
		rsi, std decimal.Decimal
	}{
		{"take profit", c.RSITakeProfitPct, c.TakeProfitPct},
		{"trailing stop", c.RSITrailingStopPct, c.TrailingStopPct},
		{"partial profit", c.RSIPartialProfitPct, c.PartialProfitPct},
	}
	for _, v := range variants {
		if v.rsi.GreaterThan(v.std) {
			return errors.Errorf("rsi %s (%s) must not exceed the standard one (%s)", v.name, v.rsi, v.std)
		}
	}

	if !c.PartialExitFraction.IsPositive() || c.PartialExitFraction.GreaterThan(decimal.NewFromInt(1)) {
		return errors.Errorf("partial_exit_fraction must be within (0, 1], got %s", c.PartialExitFraction)
	}
	if c.ConfidenceThreshold < 1 || c.ConfidenceThreshold > 10 {
		return errors.Errorf("confidence_threshold must be within [1, 10], got %d", c.ConfidenceThreshold)
	}
	if c.LearnerMinSamples <= 0 {
		return errors.New("learner_min_samples must be positive")
	}
	if c.AvoidWinRate < 0 || c.AvoidWinRate > 1 {
		return errors.Errorf("avoid_win_rate must be within [0, 1], got %v", c.AvoidWinRate)
	}
	if c.Paper && !c.PaperBalance.IsPositive() {
		return errors.New("paper_balance must be positive")
	}

	intervals := []struct {
		name  string
		value time.Duration
	}{
		{"poll_interval", c.PollInterval},
		{"scan_interval", c.ScanInterval},
		{"risk_interval", c.RiskInterval},
		{"display_interval", c.DisplayInterval},
		{"registry_interval", c.RegistryInterval},
		{"quote_max_age", c.QuoteMaxAge},
	}
	for _, i := range intervals {
		if i.value <= 0 {
			return errors.Errorf("%s must be positive", i.name)
		}
	}

	return nil
}

// Risk projects the risk manager settings.
func (c Config) Risk() risk.Config {
	return risk.Config{
		MinPositionSizeUSD:  c.MinPositionSizeUSD,
		BasePositionSizeUSD: c.BasePositionSizeUSD,
		MaxPositionSizeUSD:  c.MaxPositionSizeUSD,
		MaxPositions:        c.MaxPositions,
		StopLossPct:         c.StopLossPct,
		TakeProfitPct:       c.TakeProfitPct,
		RSITakeProfitPct:    c.RSITakeProfitPct,
		TrailingStopPct:     c.TrailingStopPct,
		RSITrailingStopPct:  c.RSITrailingStopPct,
		PartialProfitPct:    c.PartialProfitPct,
		RSIPartialProfitPct: c.RSIPartialProfitPct,
		MaxProfitTargetPct:  c.MaxProfitTargetPct,
		PartialExitFraction: c.PartialExitFraction,
		MaxPositionAge:      c.MaxPositionAge,
		ExitBeforeExpiry:    c.ExitBeforeExpiry,
		Cooldown:            c.Cooldown,
		DailyLossLimitPct:   c.DailyLossLimitPct,
		MinTimeToExpiry:     c.MinTimeToExpiry,
	}
}

// Signal projects the aggregator voting settings.
func (c Config) Signal() signal.Params {
	p := signal.DefaultParams()
	p.ConfidenceThreshold = c.ConfidenceThreshold
	return p
}

// Scanner projects the scanner scoring settings.
func (c Config) Scanner() scanner.Params {
	p := scanner.DefaultParams()
	p.MinScore = c.MinScore
	p.MinExpiry = c.MinTimeToExpiry
	return p
}

// Learner projects the learner settings.
func (c Config) Learner() learner.Config {
	l := learner.DefaultConfig()
	l.MinSamples = c.LearnerMinSamples
	l.AvoidWinRate = c.AvoidWinRate
	l.MinPositionSizeUSD = c.MinPositionSizeUSD
	l.MaxPositionSizeUSD = c.MaxPositionSizeUSD
	l.MaxProfitTargetPct = c.MaxProfitTargetPct
	return l
}

// Path joins name onto the data directory.
func (c Config) Path(name string) string {
	return filepath.Join(c.DataDir, name)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
