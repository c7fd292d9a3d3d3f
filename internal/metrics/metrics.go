// Package metrics exposes prometheus counters and gauges of the bot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vadiminshakov/updown/internal/domain"
)

const namespace = "updown"

// Metrics bot metrics on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	signals   *prometheus.CounterVec
	entries   *prometheus.CounterVec
	exits     *prometheus.CounterVec
	refusals  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	positions prometheus.Gauge
	dailyPnL  prometheus.Gauge
	enabled   prometheus.Gauge
}

// New creates and registers all metrics.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Signals evaluated by direction.",
		}, []string{"direction"}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Positions opened by market and side.",
		}, []string{"market", "side"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exits_total",
			Help:      "Exits by reason (partial profit included).",
		}, []string{"reason"}),
		refusals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refusals_total",
			Help:      "Entry refusals by reason.",
		}, []string{"reason"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_failures_total",
			Help:      "Failed calls to execution and storage collaborators.",
		}, []string{"collaborator"}),
		positions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Currently open positions.",
		}),
		dailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daily_pnl_usd",
			Help:      "Realised P&L of the current UTC day.",
		}),
		enabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trading_enabled",
			Help:      "1 while new entries are allowed.",
		}),
	}

	m.reg.MustRegister(
		m.signals, m.entries, m.exits, m.refusals, m.failures,
		m.positions, m.dailyPnL, m.enabled,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Signal(d domain.Direction) {
	m.signals.WithLabelValues(string(d)).Inc()
}

func (m *Metrics) Entry(market domain.MarketKey, side domain.Side) {
	m.entries.WithLabelValues(market.String(), string(side)).Inc()
}

func (m *Metrics) Exit(reason domain.ExitReason) {
	m.exits.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) Refusal(reason string) {
	m.refusals.WithLabelValues(reason).Inc()
}

func (m *Metrics) CollaboratorFailure(name string) {
	m.failures.WithLabelValues(name).Inc()
}

func (m *Metrics) SetOpenPositions(n int) {
	m.positions.Set(float64(n))
}

func (m *Metrics) SetDailyPnL(v float64) {
	m.dailyPnL.Set(v)
}

func (m *Metrics) SetTradingEnabled(enabled bool) {
	if enabled {
		m.enabled.Set(1)
		return
	}
	m.enabled.Set(0)
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
