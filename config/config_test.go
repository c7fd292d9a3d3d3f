package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/updown/internal/domain"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Markets, 8)
	assert.True(t, cfg.Paper)
	assert.Equal(t, 4, cfg.Signal().ConfidenceThreshold)
	assert.Equal(t, 420*time.Second, cfg.Risk().MinTimeToExpiry[domain.Timeframe15m])
	assert.Equal(t, time.Minute, cfg.Risk().ExitBeforeExpiry)
}

func TestLoad_Yaml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
assets: [BTC, ETH]
timeframes: [15m]
candle_provider: bybit
paper: false
scan_interval: 15s
max_position_size: "8"
max_positions: "3"
stop_loss_pct: "10"
confidence_threshold: "6"
learner_min_samples: "7"
min_expiry_15m: 5m
exit_before_expiry: 90s
`), 0o644))

	t.Setenv(envWebAddr, ":9999")
	t.Setenv("BINANCE_API_KEY", "key")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []domain.MarketKey{
		{Asset: domain.AssetBTC, Timeframe: domain.Timeframe15m},
		{Asset: domain.AssetETH, Timeframe: domain.Timeframe15m},
	}, cfg.Markets)
	assert.Equal(t, "bybit", cfg.CandleProvider)
	assert.False(t, cfg.Paper)
	assert.Equal(t, 15*time.Second, cfg.ScanInterval)
	assert.Equal(t, 2*time.Second, cfg.PollInterval, "default kept")
	assert.Equal(t, ":9999", cfg.WebAddr)
	assert.Equal(t, "key", cfg.BinanceAPIKey)

	r := cfg.Risk()
	assert.True(t, decimal.NewFromInt(8).Equal(r.MaxPositionSizeUSD))
	assert.Equal(t, 3, r.MaxPositions)
	assert.True(t, decimal.NewFromInt(10).Equal(r.StopLossPct))
	assert.Equal(t, 5*time.Minute, r.MinTimeToExpiry[domain.Timeframe15m])
	assert.Equal(t, 600*time.Second, r.MinTimeToExpiry[domain.Timeframe1h])
	assert.Equal(t, 90*time.Second, r.ExitBeforeExpiry)

	assert.Equal(t, 6, cfg.Signal().ConfidenceThreshold)
	assert.Equal(t, 7, cfg.Learner().MinSamples)
	assert.True(t, decimal.NewFromInt(8).Equal(cfg.Learner().MaxPositionSizeUSD))
	assert.Equal(t, 5*time.Minute, cfg.Scanner().MinExpiry[domain.Timeframe15m])
}

func TestLoad_EnvPaper(t *testing.T) {
	t.Setenv(envPaper, "false")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Paper)

	t.Setenv(envPaper, "maybe")
	_, err = Load("")
	assert.Error(t, err)
}

func TestConfigTmp_ParseErrors(t *testing.T) {
	tests := []struct {
		name string
		tmp  ConfigTmp
	}{
		{name: "asset", tmp: ConfigTmp{Assets: []string{"DOGE"}}},
		{name: "timeframe", tmp: ConfigTmp{Timeframes: []string{"2h"}}},
		{name: "decimal", tmp: ConfigTmp{StopLossPct: "ten"}},
		{name: "int", tmp: ConfigTmp{MaxPositionsStr: "two"}},
		{name: "win rate", tmp: ConfigTmp{AvoidWinRateStr: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.tmp.Parse()
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "no markets", mutate: func(c *Config) { c.Markets = nil }},
		{name: "provider", mutate: func(c *Config) { c.CandleProvider = "kraken" }},
		{name: "base above max", mutate: func(c *Config) { c.BasePositionSizeUSD = decimal.NewFromInt(6) }},
		{name: "base below min", mutate: func(c *Config) { c.MinPositionSizeUSD = decimal.NewFromInt(4) }},
		{name: "positions", mutate: func(c *Config) { c.MaxPositions = 0 }},
		{name: "stop loss zero", mutate: func(c *Config) { c.StopLossPct = decimal.Zero }},
		{name: "pct above 100", mutate: func(c *Config) { c.DailyLossLimitPct = decimal.NewFromInt(101) }},
		{name: "rsi variant above standard", mutate: func(c *Config) { c.RSITakeProfitPct = decimal.NewFromInt(60) }},
		{name: "fraction", mutate: func(c *Config) { c.PartialExitFraction = decimal.NewFromInt(2) }},
		{name: "confidence", mutate: func(c *Config) { c.ConfidenceThreshold = 11 }},
		{name: "samples", mutate: func(c *Config) { c.LearnerMinSamples = 0 }},
		{name: "paper balance", mutate: func(c *Config) { c.PaperBalance = decimal.Zero }},
		{name: "interval", mutate: func(c *Config) { c.RiskInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags([]string{"--config", "c.yaml", "--paper=false", "--web", ":7000"})
	require.NoError(t, err)
	assert.Equal(t, "c.yaml", f.ConfigPath)
	require.NotNil(t, f.Paper)

	cfg := Default()
	f.Apply(&cfg)
	assert.False(t, cfg.Paper)
	assert.Equal(t, ":7000", cfg.WebAddr)

	f, err = ParseFlags(nil)
	require.NoError(t, err)
	assert.Nil(t, f.Paper)
	cfg = Default()
	f.Apply(&cfg)
	assert.True(t, cfg.Paper)
	assert.Equal(t, ":8080", cfg.WebAddr)

	f, err = ParseFlags([]string{"--paper"})
	require.NoError(t, err)
	require.NotNil(t, f.Paper)
	assert.True(t, *f.Paper)

	_, err = ParseFlags([]string{"--paper=maybe"})
	assert.Error(t, err)
}
