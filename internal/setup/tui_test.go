package setup

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/updown/config"
	"github.com/vadiminshakov/updown/internal/domain"
)

func TestAnswers_Save(t *testing.T) {
	t.Setenv("UPDOWN_PAPER", "")
	t.Setenv("UPDOWN_WEB_ADDR", "")

	a := DefaultAnswers()
	a.Assets = []string{"BTC"}
	a.Timeframes = []string{"1h"}
	a.CandleProvider = "bybit"
	a.MaxSize = "4"
	a.MaxPositions = "3"

	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, a.Save(path))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []domain.MarketKey{{Asset: domain.AssetBTC, Timeframe: domain.Timeframe1h}}, cfg.Markets)
	assert.Equal(t, "bybit", cfg.CandleProvider)
	assert.True(t, cfg.Paper)
	assert.True(t, decimal.NewFromInt(4).Equal(cfg.MaxPositionSizeUSD))
	assert.Equal(t, 3, cfg.MaxPositions)
}

func TestAnswers_ConfigTmp(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(a *Answers)
		wantErr bool
	}{
		{name: "defaults", modify: func(*Answers) {}},
		{name: "monitor only drops balance", modify: func(a *Answers) { a.Paper = false; a.PaperBalance = "" }},
		{name: "min above max", modify: func(a *Answers) { a.MinSize = "10" }, wantErr: true},
		{name: "bad asset", modify: func(a *Answers) { a.Assets = []string{"DOGE"} }, wantErr: true},
		{name: "bad number", modify: func(a *Answers) { a.MaxPositions = "many" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := DefaultAnswers()
			tt.modify(&a)
			tmp, err := a.ConfigTmp()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, tmp.Paper)
			assert.Equal(t, a.Paper, *tmp.Paper)
		})
	}
}

func TestValidators(t *testing.T) {
	assert.NoError(t, positiveDecimal("2.5"))
	assert.Error(t, positiveDecimal("0"))
	assert.Error(t, positiveDecimal("abc"))

	between := intBetween(1, 10)
	assert.NoError(t, between("10"))
	assert.Error(t, between("11"))
	assert.Error(t, between("x"))

	assert.Error(t, nonEmpty("empty")(nil))
	assert.NoError(t, nonEmpty("empty")([]string{"BTC"}))
}
