// Package dashboard renders the terminal status panel.
package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/vadiminshakov/updown/internal/domain"
	"github.com/vadiminshakov/updown/internal/services/scanner"
	"github.com/vadiminshakov/updown/internal/status"
)

const maxOpportunities = 5

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	danger    = lipgloss.AdaptiveColor{Light: "#E0245E", Dark: "#FF5F87"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(0, 2).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtle).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(subtle)
	gainStyle  = lipgloss.NewStyle().Foreground(special)
	lossStyle  = lipgloss.NewStyle().Foreground(danger)
)

// Render formats the status as a terminal panel.
func Render(st status.Status) string {
	var b strings.Builder

	mode := "PAPER"
	if st.Mode == status.ModeMonitor {
		mode = "MONITOR"
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("UPDOWN %s  %s", mode, st.At.Format("15:04:05"))))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("OPPORTUNITIES"))
	b.WriteString("\n")
	b.WriteString(opportunities(st))

	b.WriteString(sectionStyle.Render(fmt.Sprintf("POSITIONS %d/%d", st.Risk.OpenPositions, st.Risk.MaxPositions)))
	b.WriteString("\n")
	b.WriteString(positions(st.Positions))

	b.WriteString(sectionStyle.Render("TODAY"))
	b.WriteString("\n")
	b.WriteString(today(st))

	b.WriteString(sectionStyle.Render("LEARNER"))
	b.WriteString("\n")
	b.WriteString(st.Summary)

	return panelStyle.Render(b.String())
}

func opportunities(st status.Status) string {
	if len(st.Opportunities) == 0 {
		return mutedStyle.Render(fmt.Sprintf("none of %d scanned markets", st.Scanned)) + "\n"
	}

	var b strings.Builder
	for i, opp := range st.Opportunities {
		if i == maxOpportunities {
			break
		}
		fmt.Fprintf(&b, "%-10s %s %2d  %-6s %s\n",
			opp.Market, arrow(opp.Signal.Direction), opp.Score, expiry(opp), opp.Reason)
	}
	b.WriteString(mutedStyle.Render(scanner.FormatResults(st.Opportunities)))
	b.WriteString("\n")
	return b.String()
}

func positions(open []status.Position) string {
	if len(open) == 0 {
		return mutedStyle.Render("no open positions") + "\n"
	}

	var b strings.Builder
	for _, p := range open {
		line := fmt.Sprintf("%-10s %-4s %s sh @ %s", p.Market, p.Side, p.Shares.StringFixed(2), p.EntryPrice.StringFixed(3))
		if p.HasPrice {
			pnl := p.PnLPercent.StringFixed(1) + "%"
			if p.PnLPercent.IsNegative() {
				pnl = lossStyle.Render(pnl)
			} else {
				pnl = gainStyle.Render("+" + pnl)
			}
			line += fmt.Sprintf(" now %s %s", p.Price.StringFixed(3), pnl)
		}
		if p.PartiallyExited {
			line += " [partial]"
		}
		if p.RSITriggered {
			line += " [RSI]"
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func today(st status.Status) string {
	t := st.Today
	pnl := "$" + st.Risk.DailyPnL.StringFixed(2)
	if st.Risk.DailyPnL.IsNegative() {
		pnl = lossStyle.Render(pnl)
	} else {
		pnl = gainStyle.Render(pnl)
	}

	line := fmt.Sprintf("P&L %s | trades %d | W/L %d/%d (%.0f%%)", pnl, t.Trades, t.Wins, t.Losses, t.WinRate()*100)
	if st.HasCash {
		line += " | cash $" + st.Cash.StringFixed(2)
	}
	if !st.Risk.TradingEnabled {
		line += " | " + lossStyle.Render("TRADING HALTED")
	}
	return line + "\n"
}

func arrow(d domain.Direction) string {
	switch d {
	case domain.DirectionBullish:
		return gainStyle.Render("↑")
	case domain.DirectionBearish:
		return lossStyle.Render("↓")
	}
	return "·"
}

func expiry(opp domain.MarketOpportunity) string {
	if !opp.HasExpiry {
		return "?"
	}
	return fmt.Sprintf("%dm", int(opp.ToExpiry.Minutes()))
}
