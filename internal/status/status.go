// Package status holds the read-only view of the bot shown by the terminal
// dashboard and the web UI.
package status

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/internal/domain"
	"github.com/vadiminshakov/updown/internal/services/learner"
	"github.com/vadiminshakov/updown/internal/services/risk"
	"github.com/vadiminshakov/updown/internal/storage/ledger"
)

const (
	ModePaper   = "paper"
	ModeMonitor = "monitor"
)

// Position open position with its latest known price.
type Position struct {
	domain.Position
	Price      decimal.Decimal `json:"price"`
	HasPrice   bool            `json:"has_price"`
	PnLPercent decimal.Decimal `json:"pnl_pct"`
}

// Status point-in-time view of the bot.
type Status struct {
	At   time.Time `json:"at"`
	Mode string    `json:"mode"`

	Risk      risk.State `json:"risk"`
	Positions []Position `json:"positions"`

	Opportunities []domain.MarketOpportunity `json:"opportunities"`
	Scanned       int                        `json:"scanned"`
	LastScan      time.Time                  `json:"last_scan"`

	Today   ledger.Stats         `json:"today"`
	Learner learner.Overall      `json:"learner"`
	Best    []learner.MarketRate `json:"best_markets"`
	Summary string               `json:"summary"`

	Cash    decimal.Decimal `json:"cash"`
	HasCash bool            `json:"has_cash"`
}
