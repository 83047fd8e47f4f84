/*
errors.go - Centralized error types for the credit ledger

ERROR CATEGORIES:
  1. Business-rule failures - InsufficientFunds, self-transfer, bad amount.
     Recoverable, user-facing, no mutation performed.
  2. Store faults - Persistence failures during a transfer. These trigger
     the compensation path in ledger.go.
  3. Reconciliation faults - Compensation itself failed. The balances are
     in an unreconciled state and require manual intervention.

USAGE:
  Callers classify with errors.Is:

    if errors.Is(err, credit.ErrInsufficientFunds) {
        // surface to the user, nothing was charged
    }

SEE ALSO:
  - ledger.go: Produces these errors
*/
package credit

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientFunds is returned when the payer's balance cannot
	// cover a transfer. No mutation occurs on this path.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSameAccount is returned when payer and payee are the same identity.
	ErrSameAccount = errors.New("payer and payee must differ")

	// ErrNonPositiveAmount is returned for zero or negative transfer amounts.
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrAccountNotFound is returned by stores when a balance write targets
	// an account that does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrReconciliationRequired marks a double fault: a transfer step failed
	// and the compensating balance restore failed too. The discrepancy must
	// be repaired manually.
	ErrReconciliationRequired = errors.New("balance reconciliation required")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError reports how short the payer's balance is.
type InsufficientFundsError struct {
	AccountID string
	Available Amount
	Requested Amount
	Shortfall Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: account %s has %s, requested %s (short %s)",
		e.AccountID, e.Available, e.Requested, e.Shortfall)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// ReconciliationError reports an unreconciled balance: the account should
// hold Expected but the restore write failed. Cause is the fault that
// triggered compensation; CompensateErr is the fault of the restore itself.
type ReconciliationError struct {
	AccountID     string
	Expected      Amount
	Cause         error
	CompensateErr error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation required: account %s should hold %s (transfer fault: %v; restore fault: %v)",
		e.AccountID, e.Expected, e.Cause, e.CompensateErr)
}

func (e *ReconciliationError) Unwrap() error { return ErrReconciliationRequired }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is a recoverable, user-facing
// business failure rather than a system fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrSameAccount) ||
		errors.Is(err, ErrNonPositiveAmount)
}
