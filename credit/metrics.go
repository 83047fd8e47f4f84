package credit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ledger metrics, registered on the default registry and exposed by the
// server's /metrics endpoint.
var (
	transfersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skillswap_credit_transfers_total",
		Help: "Successful credit transfers.",
	})

	transferFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_credit_transfer_failures_total",
		Help: "Failed credit transfers by reason.",
	}, []string{"reason"})

	grantsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skillswap_credit_grants_total",
		Help: "Credit grants applied.",
	})

	reconciliationFaultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skillswap_credit_reconciliation_faults_total",
		Help: "Double faults leaving an unreconciled balance. Any increase requires manual intervention.",
	})
)

const (
	failureInsufficientFunds = "insufficient_funds"
	failureValidation        = "validation"
	failureStore             = "store"
)
