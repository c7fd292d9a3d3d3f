package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/internal/dashboard"
	"github.com/vadiminshakov/updown/internal/domain"
	"github.com/vadiminshakov/updown/internal/services/risk"
	"go.uber.org/zap"
)

// RiskCycle rolls the trading day, checks every open position against the
// exit rules and executes the resulting exits.
func (e *Engine) RiskCycle(ctx context.Context) {
	e.rollDay()
	defer e.syncGauges()

	open := e.Risk.Positions()
	if len(open) == 0 {
		return
	}
	tokens := make([]string, 0, len(open))
	for _, p := range open {
		tokens = append(tokens, p.MarketToken)
	}

	prices := e.Prices.Prices(ctx, tokens)
	res := e.Risk.CheckPositions(prices, e.momentumFunc())

	for _, p := range res.Updated {
		if err := e.Positions.SaveUpdate(p); err != nil {
			e.failure("positions", "failed to persist position update", err, zap.String("token", p.MarketToken))
		}
	}
	for _, action := range res.Exits {
		if ctx.Err() != nil {
			return
		}
		e.exit(ctx, action)
	}
}

func (e *Engine) exit(ctx context.Context, action domain.ExitAction) {
	p := action.Position
	fields := []zap.Field{
		zap.Stringer("market", p.Market),
		zap.String("side", string(p.Side)),
		zap.String("reason", string(action.Reason)),
		zap.String("shares", action.Shares.String()),
	}

	if action.Unpriced {
		fields = append(fields, zap.Bool("unpriced", true))
	}

	// without an executor restored positions are closed at the observed price
	fill := domain.ExitFill{FilledPrice: action.Price}
	if e.Executor != nil {
		f, err := e.Executor.SubmitExit(ctx, p.MarketToken, action.Shares)
		switch {
		case err == nil:
			fill = f
		case action.Unpriced:
			// nothing quotes the token any more, so the order cannot fill;
			// book the close at the last seen price to free the slot
			e.failure("executor", "exit order failed, closing at last seen price", err, fields...)
		default:
			e.failure("executor", "exit order failed", err, fields...)
			return
		}
	}

	res, err := e.Risk.ApplyExit(action, fill)
	if err != nil {
		e.logger.Error("exit not applied", append(fields, zap.Error(err))...)
		return
	}
	e.Metrics.Exit(action.Reason)
	e.logger.Info("position exit",
		append(fields,
			zap.String("price", fill.FilledPrice.StringFixed(3)),
			zap.String("pnl", res.Trade.PnL.StringFixed(2)),
			zap.String("pnl_pct", res.Trade.PnLPercent.StringFixed(1)),
			zap.Bool("closed", res.Closed))...)

	persistCtx := context.WithoutCancel(ctx)
	if res.Closed {
		if err := e.Positions.SaveClose(res.Position); err != nil {
			e.failure("positions", "failed to persist position close", err, fields...)
		}
	} else if err := e.Positions.SaveUpdate(res.Position); err != nil {
		e.failure("positions", "failed to persist partial exit", err, fields...)
	}
	if _, err := e.Ledger.LogExit(persistCtx, res.Trade); err != nil {
		e.failure("ledger", "failed to journal exit", err, fields...)
	}

	if !res.Closed {
		return
	}
	update := e.Learner.RecordTradeOutcome(res.Trade)
	if err := e.Patterns.SaveUpdate(update); err != nil {
		e.failure("patterns", "failed to persist pattern stats", err, fields...)
	}
	if update.Avoided {
		e.logger.Warn("pattern added to avoid list",
			zap.Stringer("pattern", update.Stats.Key),
			zap.Float64("win_rate", update.Stats.WinRate()))
	}
}

// ScanCycle scans the universe, publishes the result and tries to enter the
// best opportunity.
func (e *Engine) ScanCycle(ctx context.Context) {
	res, err := e.Scanner.ScanAll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Error("scan failed", zap.Error(err))
		}
		return
	}

	e.mu.Lock()
	for _, opp := range res.Scanned {
		e.signals[opp.Market] = opp.Signal
	}
	e.lastScan = res
	e.mu.Unlock()

	for _, opp := range res.Scanned {
		e.Metrics.Signal(opp.Signal.Direction)
	}
	if e.Results != nil {
		e.Results.Publish(res)
	}

	best, ok := res.Best()
	if !ok {
		e.logger.Debug("no tradeable markets", zap.Int("scanned", len(res.Scanned)))
		return
	}
	if !best.Tradeable(e.p.MinScore) {
		e.logger.Debug("no strong opportunities", zap.Stringer("market", best.Market), zap.Int("score", best.Score))
		return
	}
	e.enter(ctx, best)
}

func (e *Engine) enter(ctx context.Context, opp domain.MarketOpportunity) {
	side, ok := domain.SideFor(opp.Signal.Direction)
	if !ok {
		return
	}
	fields := []zap.Field{
		zap.Stringer("market", opp.Market),
		zap.String("side", string(side)),
		zap.Int("score", opp.Score),
	}

	token := opp.Tokens.TokenFor(side)
	if token == "" {
		e.refuse("tokens_unknown", "market tokens not resolved yet", fields...)
		return
	}

	rsi, ok := opp.Signal.RSI()
	if !ok {
		rsi = rsiFallback
	}
	key := domain.NewPatternKey(opp.Market, opp.Signal.Direction, rsi)

	res, refusal := e.Risk.ReserveEntry(opp.Market)
	if !refusal.Allowed() {
		e.refuse(string(refusal.Reason), refusal.Message, fields...)
		return
	}
	committed := false
	defer func() {
		if !committed {
			e.Risk.Release(res)
		}
	}()

	if allowed, reason := e.Learner.ShouldTradePattern(key); !allowed {
		e.refuse("learner_veto", reason, append(fields, zap.Stringer("pattern", key))...)
		return
	}
	if e.Risk.ShouldSkipMarket(opp.Market.Timeframe, opp.ToExpiry) {
		e.refuse("near_expiry", fmt.Sprintf("only %dm left", int(opp.ToExpiry.Minutes())), fields...)
		return
	}

	effective := opp.Score + e.Learner.ConfidenceBoost(key)
	size := e.Learner.AdjustedPositionSize(e.Risk.PositionSize(effective))
	size = decimal.Min(size, e.Risk.Config().MaxPositionSizeUSD).Round(2)
	fields = append(fields, zap.Int("effective_score", effective), zap.String("usd", size.StringFixed(2)))

	if e.Executor == nil {
		e.logger.Info("entry signal (monitor only)", append(fields, zap.String("reason", opp.Reason))...)
		return
	}

	fill, err := e.Executor.SubmitEntry(ctx, token, side, size)
	if err != nil {
		e.failure("executor", "entry order failed", err, fields...)
		return
	}

	p, err := domain.NewPosition(token, opp.Market, side, fill, e.now(), opp.Signal.RSITriggered)
	if err != nil {
		e.logger.Error("entry fill rejected", append(fields, zap.Error(err))...)
		return
	}
	p.EntryRSI = rsi
	p.Confidence = effective
	if opp.HasExpiry {
		p.Expiry = e.now().Add(opp.ToExpiry)
	}

	if err := e.Risk.Commit(res, p); err != nil {
		e.logger.Error("entry not committed", append(fields, zap.Error(err))...)
		return
	}
	committed = true

	e.Metrics.Entry(opp.Market, side)
	e.logger.Info("position opened",
		append(fields,
			zap.String("price", p.EntryPrice.StringFixed(3)),
			zap.String("shares", p.Shares.StringFixed(2)),
			zap.Bool("rsi_triggered", p.RSITriggered),
			zap.String("reason", opp.Reason))...)

	if err := e.Positions.SaveOpen(p); err != nil {
		e.failure("positions", "failed to persist opened position", err, fields...)
	}
	if _, err := e.Ledger.LogEntry(context.WithoutCancel(ctx), p); err != nil {
		e.failure("ledger", "failed to journal entry", err, fields...)
	}
	e.syncGauges()
}

func (e *Engine) refuse(reason, msg string, fields ...zap.Field) {
	e.Metrics.Refusal(reason)
	fields = append(fields, zap.String("refusal", reason), zap.String("detail", msg))
	switch risk.RefusalReason(reason) {
	case risk.RefusalMaxPositions, risk.RefusalCooldown, risk.RefusalMarketBusy:
		// repeats on every scan while the slot is held
		e.logger.Debug("entry skipped", fields...)
	default:
		e.logger.Info("entry skipped", fields...)
	}
}

// DisplayCycle prints the dashboard.
func (e *Engine) DisplayCycle(ctx context.Context) {
	if e.display == nil {
		return
	}
	fmt.Fprintln(e.display, dashboard.Render(e.Status(ctx)))
}
