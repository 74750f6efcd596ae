// Package observability exposes Prometheus metrics for the engine.  The
// Metrics type doubles as an event notifier so every engine operation is
// counted without any instrumentation inside the engine itself.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sideforge/binarymarket/internal/domain"
)

// Metrics holds the engine counters and gauges.
type Metrics struct {
	events      *prometheus.CounterVec
	volumeMicro *prometheus.CounterVec
	feesMicro   prometheus.Counter
	payoutMicro *prometheus.CounterVec
	yesPrice    *prometheus.GaugeVec
	vaultMicro  *prometheus.GaugeVec
}

// NewMetrics registers the engine metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "binarymarket",
			Name:      "engine_events_total",
			Help:      "Engine operations by event type.",
		}, []string{"type"}),
		volumeMicro: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "binarymarket",
			Name:      "buy_volume_micro_total",
			Help:      "Gross collateral spent on buys, in micro-units, by side.",
		}, []string{"side"}),
		feesMicro: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "binarymarket",
			Name:      "fees_accrued_micro_total",
			Help:      "Fees accrued across all markets, in micro-units.",
		}),
		payoutMicro: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "binarymarket",
			Name:      "payout_micro_total",
			Help:      "Collateral paid out, in micro-units, by event type.",
		}, []string{"type"}),
		yesPrice: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "binarymarket",
			Name:      "yes_price",
			Help:      "Implied YES probability per market after the last event.",
		}, []string{"market"}),
		vaultMicro: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "binarymarket",
			Name:      "vault_micro",
			Help:      "Vault balance per market, in micro-units.",
		}, []string{"market"}),
	}
}

// Notify implements the engine's Notifier interface.
func (m *Metrics) Notify(ev domain.Event) {
	m.events.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case domain.EventBuy:
		m.volumeMicro.WithLabelValues(string(ev.Side)).Add(ev.AmountIn.InexactFloat64())
		m.feesMicro.Add(ev.Fee.InexactFloat64())
	case domain.EventPairBurn, domain.EventRedeemed, domain.EventFeesWithdrawn:
		m.payoutMicro.WithLabelValues(string(ev.Type)).Add(ev.Payout.InexactFloat64())
	}

	market := ev.MarketID.String()
	total := ev.ReserveYes.Add(ev.ReserveNo)
	if total.IsPositive() {
		m.yesPrice.WithLabelValues(market).Set(ev.ReserveNo.Div(total).InexactFloat64())
	}
	m.vaultMicro.WithLabelValues(market).Set(ev.Vault.InexactFloat64())
}
