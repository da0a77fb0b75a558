// Package metrics exposes Prometheus instruments for the trading loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Skip reasons reported on products_skipped_total.
const (
	ReasonUnconfigured = "unconfigured"
	ReasonCrossedBook  = "crossed_book"
	ReasonNoFairValue  = "no_fair_value"
	ReasonInventory    = "inventory_out_of_range"
)

// Metrics holds the trader's instruments on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cycles          prometheus.Counter
	stateDecodeErrs prometheus.Counter
	ordersEmitted   *prometheus.CounterVec
	productsSkipped *prometheus.CounterVec
	fairValue       *prometheus.GaugeVec
	position        *prometheus.GaugeVec
	settledPnL      *prometheus.GaugeVec
}

// New registers every instrument under namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of trading cycles run",
		}),
		stateDecodeErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_decode_errors_total",
			Help:      "Cycles that started from an empty state because trader data was unreadable",
		}),
		ordersEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_emitted_total",
			Help:      "Orders emitted by product and kind (take or make)",
		}, []string{"symbol", "kind"}),
		productsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_skipped_total",
			Help:      "Products skipped for a cycle by reason",
		}, []string{"symbol", "reason"}),
		fairValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fair_value",
			Help:      "Latest fair value estimate",
		}, []string{"symbol"}),
		position: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "position",
			Help:      "Inventory reported by the harness",
		}, []string{"symbol"}),
		settledPnL: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "settled_pnl",
			Help:      "Own-trade cash plus inventory marked at the opposite touch",
		}, []string{"symbol"}),
	}
	registry.MustRegister(
		m.cycles,
		m.stateDecodeErrs,
		m.ordersEmitted,
		m.productsSkipped,
		m.fairValue,
		m.position,
		m.settledPnL,
	)
	return m
}

func (m *Metrics) CycleRun()         { m.cycles.Inc() }
func (m *Metrics) StateDecodeError() { m.stateDecodeErrs.Inc() }

func (m *Metrics) OrdersEmitted(symbol string, taking, making int) {
	m.ordersEmitted.WithLabelValues(symbol, "take").Add(float64(taking))
	m.ordersEmitted.WithLabelValues(symbol, "make").Add(float64(making))
}

func (m *Metrics) ProductSkipped(symbol, reason string) {
	m.productsSkipped.WithLabelValues(symbol, reason).Inc()
}

func (m *Metrics) SetFairValue(symbol string, v float64) { m.fairValue.WithLabelValues(symbol).Set(v) }
func (m *Metrics) SetPosition(symbol string, v int64)    { m.position.WithLabelValues(symbol).Set(float64(v)) }
func (m *Metrics) SetSettledPnL(symbol string, v int64)  { m.settledPnL.WithLabelValues(symbol).Set(float64(v)) }

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
