// Package metrics holds the Prometheus instrumentation for the paper
// trading loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set is one registry's worth of collectors. Each paper run owns its own
// Set so parallel runs never share counters.
type Set struct {
	registry *prometheus.Registry

	BarsProcessed   prometheus.Counter
	OrdersSubmitted prometheus.Counter
	OrdersRejected  prometheus.Counter
	FillsTotal      prometheus.Counter
	TradesClosed    prometheus.Counter

	Equity   prometheus.Gauge
	Drawdown prometheus.Gauge
	Posture  prometheus.Gauge
}

func New() *Set {
	s := &Set{
		registry: prometheus.NewRegistry(),
		BarsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "macrotrader", Name: "bars_processed_total",
			Help: "Bars consumed by the engine.",
		}),
		OrdersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "macrotrader", Name: "orders_submitted_total",
			Help: "Orders sent to the execution adapter.",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "macrotrader", Name: "orders_rejected_total",
			Help: "Orders declined by the execution adapter.",
		}),
		FillsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "macrotrader", Name: "fills_total",
			Help: "Confirmed executions.",
		}),
		TradesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "macrotrader", Name: "trades_closed_total",
			Help: "Round trips written to the trade log.",
		}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "macrotrader", Name: "account_equity",
			Help: "Marked account equity.",
		}),
		Drawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "macrotrader", Name: "account_drawdown",
			Help: "Current drawdown fraction from peak equity.",
		}),
		Posture: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "macrotrader", Name: "risk_posture",
			Help: "Risk posture: 0 normal, 1 reduced, 2 halted.",
		}),
	}

	s.registry.MustRegister(
		s.BarsProcessed, s.OrdersSubmitted, s.OrdersRejected,
		s.FillsTotal, s.TradesClosed, s.Equity, s.Drawdown, s.Posture,
	)
	return s
}

// Handler serves the set's registry for an HTTP /metrics endpoint.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
