package engine

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/internal/services/scanner"
	"github.com/vadiminshakov/updown/internal/status"
	"go.uber.org/zap"
)

// Status collects the current view of the bot. Prices are taken from the
// price source; today's stats from the ledger.
func (e *Engine) Status(ctx context.Context) status.Status {
	now := e.now()

	e.mu.RLock()
	scan := e.lastScan
	e.mu.RUnlock()

	st := status.Status{
		At:            now,
		Mode:          status.ModePaper,
		Risk:          e.Risk.State(),
		Opportunities: scan.Opportunities,
		Scanned:       len(scan.Scanned),
		LastScan:      scan.At,
		Learner:       e.Learner.Overall(),
		Best:          e.Learner.BestOpportunities(),
		Summary:       e.Learner.Summary(),
	}
	if e.Monitoring() {
		st.Mode = status.ModeMonitor
	}
	if e.Wallet != nil {
		st.Cash = e.Wallet.Cash()
		st.HasCash = true
	}

	open := e.Risk.Positions()
	tokens := make([]string, 0, len(open))
	for _, p := range open {
		tokens = append(tokens, p.MarketToken)
	}
	var prices map[string]decimal.Decimal
	if len(tokens) > 0 {
		prices = e.Prices.Prices(ctx, tokens)
	}
	for _, p := range open {
		view := status.Position{Position: p}
		if price, ok := prices[p.MarketToken]; ok {
			view.Price = price
			view.HasPrice = true
			view.PnLPercent = p.PnLPercent(price)
		}
		st.Positions = append(st.Positions, view)
	}

	today, err := e.Ledger.DailyStats(ctx, now)
	if err != nil {
		e.logger.Warn("daily stats unavailable", zap.Error(err))
	}
	st.Today = today
	return st
}

// LastScan returns the most recent scan result.
func (e *Engine) LastScan() scanner.Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastScan
}
