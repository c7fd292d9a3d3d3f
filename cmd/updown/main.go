// Command updown trades Polymarket up/down crypto markets. It fuses Binance
// order flow and candle indicators into directional signals, scans every
// configured (asset, timeframe) market and manages positions with fixed
// exit rules. Without paper trading it only reports entry signals.
//
// Usage:
//
//	updown --config config.yaml
//	updown --setup            (configuration wizard, then start)
//	updown --paper=false      (monitor only)
//	updown --web :8080        (status page and metrics)
//
// Optional environment variables:
//
//	BINANCE_API_KEY, BINANCE_API_SECRET, BYBIT_API_KEY, BYBIT_API_SECRET,
//	HYPERLIQUID_PRIVATE_KEY, UPDOWN_PAPER, UPDOWN_WEB_ADDR
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/adshao/go-binance/v2"
	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/updown/config"
	"github.com/vadiminshakov/updown/internal/clients"
	"github.com/vadiminshakov/updown/internal/engine"
	"github.com/vadiminshakov/updown/internal/events"
	"github.com/vadiminshakov/updown/internal/logger"
	"github.com/vadiminshakov/updown/internal/metrics"
	"github.com/vadiminshakov/updown/internal/services/feed"
	"github.com/vadiminshakov/updown/internal/services/learner"
	"github.com/vadiminshakov/updown/internal/services/market/indicators"
	"github.com/vadiminshakov/updown/internal/services/risk"
	"github.com/vadiminshakov/updown/internal/services/scanner"
	sig "github.com/vadiminshakov/updown/internal/services/signal"
	"github.com/vadiminshakov/updown/internal/services/trader"
	"github.com/vadiminshakov/updown/internal/setup"
	"github.com/vadiminshakov/updown/internal/storage/ledger"
	"github.com/vadiminshakov/updown/internal/storage/patterns"
	"github.com/vadiminshakov/updown/internal/storage/positions"
	"github.com/vadiminshakov/updown/internal/storage/simstate"
	"github.com/vadiminshakov/updown/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	if flags.Setup {
		path, err := setup.RunTUI()
		if err != nil {
			log.Fatalf("setup failed: %v", err)
		}
		flags.ConfigPath = path
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		log.Fatal(err)
	}
	flags.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	l, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil && !errors.Is(err, context.Canceled) {
		l.Fatal("bot stopped", zap.Error(err))
	}
	l.Info("bot stopped")
}

func run(ctx context.Context, cfg config.Config, l *zap.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return errors.Wrap(err, "create data dir")
	}

	bn := clients.NewBinanceClient(cfg.BinanceAPIKey, cfg.BinanceAPISecret, cfg.BinanceURL)
	candles, err := candleSource(cfg, bn)
	if err != nil {
		return err
	}

	// polymarket side: market windows, token prices over websocket with a
	// CLOB midpoint fallback
	poly := feed.NewPolymarketClient(cfg.GammaURL, cfg.ClobURL)
	registry := feed.NewRegistry(poly, nil, l.Named("registry"))
	book := feed.NewTokenPrices()
	stream := feed.NewPolymarketStream(cfg.WSURL, book, l.Named("stream"))
	quotes := feed.NewQuotes(book, poly, nil, cfg.QuoteMaxAge)

	snapshots := events.NewSnapshotCache(cfg.QuoteMaxAge, nil)
	binanceFeed := feed.NewBinanceFeed(bn, snapshots, l.Named("feed"),
		feed.WithCandleSource(candles),
		feed.WithWindows(registry),
		feed.WithStream(stream),
	)

	aggregator := sig.NewAggregator(indicators.New(indicators.DefaultParams()), cfg.Signal())
	scan := scanner.New(cfg.Markets, snapshots, aggregator, cfg.Scanner())
	riskManager := risk.NewManager(cfg.Risk())
	learn := learner.New(cfg.Learner())

	positionStore, err := positions.NewWALStore(cfg.Path("positions"))
	if err != nil {
		return errors.Wrap(err, "open position store")
	}
	defer positionStore.Close()

	patternStore, err := patterns.NewWALStore(cfg.Path("patterns"))
	if err != nil {
		return errors.Wrap(err, "open pattern store")
	}
	defer patternStore.Close()

	tradeLedger, err := ledger.Open(ctx, cfg.Path("updown.db"))
	if err != nil {
		return errors.Wrap(err, "open trade ledger")
	}
	defer tradeLedger.Close()

	m := metrics.New()
	results := events.NewBroadcaster[scanner.Result](8)
	deps := engine.Deps{
		Risk:      riskManager,
		Learner:   learn,
		Scanner:   scan,
		Prices:    quotes,
		Positions: positionStore,
		Patterns:  patternStore,
		Ledger:    tradeLedger,
		Metrics:   m,
		Results:   results,
	}

	if cfg.Paper {
		wallet, err := simstate.NewStore(cfg.Path("paper"), "polymarket")
		if err != nil {
			return errors.Wrap(err, "open paper wallet")
		}
		paper, err := trader.NewPaperTrader(cfg.PaperBalance, quotes, wallet, l.Named("paper"))
		if err != nil {
			return errors.Wrap(err, "create paper trader")
		}
		deps.Executor = paper
		deps.Wallet = paper
	}

	e, err := engine.New(deps, engine.Params{
		RiskInterval:    cfg.RiskInterval,
		ScanInterval:    cfg.ScanInterval,
		DisplayInterval: cfg.DisplayInterval,
		MinScore:        cfg.MinScore,
	}, l.Named("engine"), engine.WithDisplay(os.Stdout))
	if err != nil {
		return err
	}
	if err := e.Restore(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return registry.Run(ctx, cfg.Markets, cfg.RegistryInterval)
	})
	g.Go(func() error {
		return stream.Run(ctx, registry.Tokens)
	})
	g.Go(func() error {
		return binanceFeed.Run(ctx, cfg.Markets, cfg.PollInterval)
	})
	g.Go(func() error {
		return e.Run(ctx)
	})

	if cfg.WebAddr != "" {
		srv := web.NewServer(cfg.WebAddr, e, results, m.Handler(), l.Named("web"))
		g.Go(func() error {
			if len(cfg.TLSDomains) > 0 {
				return srv.StartWithAutoTLS(ctx, cfg.TLSDomains, cfg.CertCacheDir)
			}
			return srv.Start(ctx)
		})
	}

	l.Info("bot started",
		zap.Int("markets", len(cfg.Markets)),
		zap.Bool("paper", cfg.Paper),
		zap.String("candles", cfg.CandleProvider),
		zap.String("web", cfg.WebAddr))
	return g.Wait()
}

func candleSource(cfg config.Config, bn *binance.Client) (feed.CandleSource, error) {
	var (
		bb *bybit.Client
		hl *hyperliquid.Info
	)
	switch cfg.CandleProvider {
	case "bybit":
		bb = clients.NewBybitClient(cfg.BybitAPIKey, cfg.BybitAPISecret, cfg.BybitURL)
	case "hyperliquid":
		client, err := clients.NewHyperliquidClient(cfg.HyperliquidPrivateKey, cfg.HyperliquidURL)
		if err != nil {
			return nil, errors.Wrap(err, "create hyperliquid client")
		}
		hl = client.Info()
	}
	return feed.NewCandleSource(cfg.CandleProvider, bn, bb, hl)
}
