package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "soda_machine"

// Metrics holds the machine service counters. A nil *Metrics records nothing.
type Metrics struct {
	sales          prometheus.Counter
	rejected       *prometheus.CounterVec
	changeShortage prometheus.Counter
	coinsDispensed *prometheus.CounterVec
	deposits       prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sales: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sales_total", Help: "Sodas dispensed.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rejected_requests_total", Help: "Soda requests refused, by reason.",
		}, []string{"reason"}),
		changeShortage: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "change_shortfalls_total", Help: "Sales where full change could not be returned.",
		}),
		coinsDispensed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "coins_dispensed_total", Help: "Coins returned as change, by denomination.",
		}, []string{"coin"}),
		deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "deposits_total", Help: "Accepted deposits.",
		}),
	}
	reg.MustRegister(m.sales, m.rejected, m.changeShortage, m.coinsDispensed, m.deposits)
	return m
}

func (m *Metrics) Sale() {
	if m == nil {
		return
	}
	m.sales.Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ChangeShortfall() {
	if m == nil {
		return
	}
	m.changeShortage.Inc()
}

func (m *Metrics) CoinsDispensed(coin string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.coinsDispensed.WithLabelValues(coin).Add(float64(n))
}

func (m *Metrics) Deposit() {
	if m == nil {
		return
	}
	m.deposits.Inc()
}
