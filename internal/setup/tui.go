package setup

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/config"
	"github.com/vadiminshakov/updown/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultPath file written by the wizard.
const DefaultPath = "config.gen.yaml"

const title = "UPDOWN CONFIG WIZARD"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers everything the wizard asks.
type Answers struct {
	Assets         []string
	Timeframes     []string
	CandleProvider string
	Paper          bool
	PaperBalance   string
	MinSize        string
	BaseSize       string
	MaxSize        string
	MaxPositions   string
	StopLossPct    string
	Confidence     string
	MinScore       string
}

// DefaultAnswers pre-filled wizard values.
func DefaultAnswers() Answers {
	def := config.Default()
	return Answers{
		Assets:         []string{string(domain.AssetBTC), string(domain.AssetETH), string(domain.AssetSOL)},
		Timeframes:     []string{string(domain.Timeframe15m), string(domain.Timeframe1h)},
		CandleProvider: def.CandleProvider,
		Paper:          true,
		PaperBalance:   def.PaperBalance.String(),
		MinSize:        def.MinPositionSizeUSD.String(),
		BaseSize:       def.BasePositionSizeUSD.String(),
		MaxSize:        def.MaxPositionSizeUSD.String(),
		MaxPositions:   strconv.Itoa(def.MaxPositions),
		StopLossPct:    def.StopLossPct.String(),
		Confidence:     strconv.Itoa(def.ConfidenceThreshold),
		MinScore:       strconv.Itoa(def.MinScore),
	}
}

// ConfigTmp converts the answers into the yaml config and checks that it
// parses into a valid configuration.
func (a Answers) ConfigTmp() (config.ConfigTmp, error) {
	paper := a.Paper
	tmp := config.ConfigTmp{
		Assets:                 a.Assets,
		Timeframes:             a.Timeframes,
		CandleProvider:         a.CandleProvider,
		Paper:                  &paper,
		MinPositionSize:        a.MinSize,
		BasePositionSize:       a.BaseSize,
		MaxPositionSize:        a.MaxSize,
		MaxPositionsStr:        a.MaxPositions,
		StopLossPct:            a.StopLossPct,
		ConfidenceThresholdStr: a.Confidence,
		MinScoreStr:            a.MinScore,
	}
	if a.Paper {
		tmp.PaperBalance = a.PaperBalance
	}

	cfg, err := tmp.Parse()
	if err != nil {
		return config.ConfigTmp{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.ConfigTmp{}, err
	}
	return tmp, nil
}

// Save writes the answers as yaml to path.
func (a Answers) Save(path string) error {
	tmp, err := a.ConfigTmp()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(tmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func step(name string) {
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render(title))
	fmt.Println(stepStyle.Render(name))
}

// RunTUI launches the terminal configuration wizard and returns the path of
// the written config file.
func RunTUI() (string, error) {
	a := DefaultAnswers()
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render(title))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Pick your markets and limits.\n"))

	fmt.Println(stepStyle.Render("STEP 1: MARKETS"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Assets").
				Options(
					huh.NewOption("Bitcoin", string(domain.AssetBTC)),
					huh.NewOption("Ethereum", string(domain.AssetETH)),
					huh.NewOption("Solana", string(domain.AssetSOL)),
					huh.NewOption("XRP", string(domain.AssetXRP)),
				).
				Value(&a.Assets).
				Validate(nonEmpty("select at least one asset")),
			huh.NewMultiSelect[string]().
				Title("Timeframes").
				Options(
					huh.NewOption("15 minutes", string(domain.Timeframe15m)),
					huh.NewOption("1 hour", string(domain.Timeframe1h)),
					huh.NewOption("4 hours", string(domain.Timeframe4h)),
					huh.NewOption("Daily", string(domain.TimeframeDaily)),
				).
				Value(&a.Timeframes).
				Validate(nonEmpty("select at least one timeframe")),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("STEP 2: CANDLES")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Candle data provider").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
					huh.NewOption("Hyperliquid", "hyperliquid"),
				).
				Value(&a.CandleProvider),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("STEP 3: MODE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Paper trading?").
				Description("Without paper trading the bot only reports entry signals").
				Affirmative("Paper").
				Negative("Monitor only").
				Value(&a.Paper),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if a.Paper {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Paper balance, USD").
					Value(&a.PaperBalance).
					Validate(positiveDecimal),
			),
		).Run()
		if err != nil {
			return "", err
		}
	}

	step("STEP 4: RISK")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Min position size, USD").
				Value(&a.MinSize).
				Validate(positiveDecimal),
			huh.NewInput().
				Title("Base position size, USD").
				Value(&a.BaseSize).
				Validate(positiveDecimal),
			huh.NewInput().
				Title("Max position size, USD").
				Value(&a.MaxSize).
				Validate(positiveDecimal),
			huh.NewInput().
				Title("Max open positions").
				Value(&a.MaxPositions).
				Validate(intBetween(1, 20)),
			huh.NewInput().
				Title("Stop loss %").
				Description("Loss from entry that closes the position (e.g. 12)").
				Value(&a.StopLossPct).
				Validate(positiveDecimal),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("STEP 5: SIGNALS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Confidence threshold").
				Description("Signal confidence needed to act (1-10)").
				Value(&a.Confidence).
				Validate(intBetween(1, 10)),
			huh.NewInput().
				Title("Minimum scanner score").
				Description("Opportunity score needed to enter (0-10)").
				Value(&a.MinScore).
				Validate(intBetween(0, 10)),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Assets: %v\nTimeframes: %v\nCandles: %s\nPaper: %t\nSize: $%s-$%s\nMax positions: %s\nStop loss: %s%%\n",
		a.Assets, a.Timeframes, a.CandleProvider, a.Paper, a.MinSize, a.MaxSize, a.MaxPositions, a.StopLossPct,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if !confirm {
		return "", fmt.Errorf("setup cancelled by user")
	}

	if err := a.Save(DefaultPath); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting bot...", DefaultPath)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return DefaultPath, nil
}

func nonEmpty(msg string) func([]string) error {
	return func(v []string) error {
		if len(v) == 0 {
			return fmt.Errorf("%s", msg)
		}
		return nil
	}
}

func positiveDecimal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func intBetween(lo, hi int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("must be a whole number")
		}
		if n < lo || n > hi {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}
