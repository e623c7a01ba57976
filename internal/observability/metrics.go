package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hailing", Name: "orders_created_total", Help: "Total orders created"})
	DebitShortfalls    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hailing", Name: "debit_shortfalls_total", Help: "Debits rejected for insufficient balance"})
	AcceptConflicts    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hailing", Name: "accept_conflicts_total", Help: "Accept attempts lost to another driver"})
	OutboxRetries      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hailing", Name: "outbox_retries_total", Help: "Outbox publish attempts that failed and will be retried"})

	FactsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_hailing", Name: "facts_published_total", Help: "Facts published to the bus"},
		[]string{"topic"},
	)
	FactsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_hailing", Name: "facts_consumed_total", Help: "Facts applied by consumers"},
		[]string{"topic"},
	)
)
