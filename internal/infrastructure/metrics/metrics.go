package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transaction metrics
	TransactionsCompleted prometheus.Counter
	TransactionsFailed    *prometheus.CounterVec
	TransactionAmount     prometheus.Histogram

	// Account metrics
	AccountsCreated prometheus.Counter
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		TransactionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_transactions_completed_total",
			Help: "Total number of completed transactions",
		}),
		TransactionsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_transactions_failed_total",
				Help: "Total number of failed transactions by reason",
			},
			[]string{"reason"},
		),
		TransactionAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bankledger_transaction_amount",
			Help:    "Completed transaction amounts",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),
		AccountsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_accounts_created_total",
			Help: "Total number of accounts created",
		}),
	}
}
