package dao

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "dao"

type Metrics struct {
	ProposalsCreated prometheus.Counter
	VotesCast        *prometheus.CounterVec
	Payments         prometheus.Counter
	AmountPaid       prometheus.Counter
	Rejections       *prometheus.CounterVec
}

// NewMetrics builds the engine metrics and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProposalsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "proposals_created_total",
			Help:      "Number of proposals created.",
		}),
		VotesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "votes_cast_total",
			Help:      "Number of votes cast, by direction.",
		}, []string{"support"}),
		Payments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "payments_total",
			Help:      "Number of proposals paid out.",
		}),
		AmountPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "paid_amount_total",
			Help:      "Sum of the amounts paid out of the treasury.",
		}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rejections_total",
			Help:      "Number of rejected operations, by operation and error kind.",
		}, []string{"op", "kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.ProposalsCreated, m.VotesCast, m.Payments, m.AmountPaid, m.Rejections)
	}
	return m
}

func (m *Metrics) reject(op string, err error) {
	if m == nil {
		return
	}
	kind := "other"
	if k := Kind(err); k != nil {
		kind = k.Error()
	}
	m.Rejections.WithLabelValues(op, kind).Inc()
}
