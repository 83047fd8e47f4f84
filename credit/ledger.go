/*
ledger.go - Credit transfers between accounts

PURPOSE:
  The Ledger is the only component allowed to mutate balances. Transfer
  moves credits from payer to payee and records an auditable spend/earn
  transaction pair; Grant introduces credits into the system.

CONCURRENCY:
  Balances are the only mutable shared state. Transfer serializes the whole
  read-check-write sequence behind a pair of per-account mutexes, always
  acquired in lexicographic order so two concurrent transfers touching the
  same accounts in opposite directions cannot deadlock. Without this, two
  concurrent acceptances against the same learner could both pass the
  sufficiency check against a stale balance.

COMPENSATION:
  The store primitive is a single-account balance write, not a multi-account
  transaction. A fault after the payer's debit has committed is unwound by
  restoring the pre-transfer balances (saga-style compensating action).
  The restore itself can fail; that double fault is surfaced as a
  ReconciliationError and logged as a fatal reconciliation alert, never
  swallowed.

SIDE EFFECTS:
  Success: exactly two transactions appended, one event published.
  Failure: zero transactions, balances as before the call (or a
  ReconciliationError naming what manual repair is needed).

SEE ALSO:
  - types.go: Store interfaces
  - errors.go: Error taxonomy
*/
package credit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/credit-engine/events"
)

// TransferContext links a transfer's transaction records back to the
// connection that caused it.
type TransferContext struct {
	ConnectionID string
	SkillID      string
	PayerName    string
	PayeeName    string
	Reason       string
}

// TransferResult reports the committed state after a successful transfer.
type TransferResult struct {
	PayerBalance Amount
	PayeeBalance Amount
	Spend        Transaction
	Earn         Transaction
}

// GrantResult reports the committed state after a successful grant.
type GrantResult struct {
	Balance Amount
	Record  Transaction
}

// Ledger performs all balance mutations.
type Ledger struct {
	accounts  AccountStore
	txlog     TransactionStore
	publisher events.Publisher
	logger    *slog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewLedger creates a ledger over the given stores. A nil publisher disables
// event delivery; a nil logger falls back to slog.Default.
func NewLedger(accounts AccountStore, txlog TransactionStore, publisher events.Publisher, logger *slog.Logger) *Ledger {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		accounts:  accounts,
		txlog:     txlog,
		publisher: publisher,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// accountLock returns the mutex for one account, creating it on first use.
func (l *Ledger) accountLock(accountID string) *sync.Mutex {
	l.locksMu.Lock()
	defer l.locksMu.Unlock()

	mu, ok := l.locks[accountID]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[accountID] = mu
	}
	return mu
}

// lockPair acquires both account locks in lexicographic order and returns
// the corresponding unlock.
func (l *Ledger) lockPair(a, b string) func() {
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	muA, muB := l.accountLock(first), l.accountLock(second)
	muA.Lock()
	muB.Lock()
	return func() {
		muB.Unlock()
		muA.Unlock()
	}
}

// Transfer moves amount from payer to payee and records the spend/earn pair.
//
// Fails with ErrSameAccount or ErrNonPositiveAmount before touching any
// state, and with an InsufficientFundsError if the payer cannot cover the
// amount. Returns the new balances of both accounts on success.
func (l *Ledger) Transfer(ctx context.Context, payer, payee string, amount Amount, tc TransferContext) (*TransferResult, error) {
	if payer == payee {
		transferFailuresTotal.WithLabelValues(failureValidation).Inc()
		return nil, ErrSameAccount
	}
	if !amount.IsPositive() {
		transferFailuresTotal.WithLabelValues(failureValidation).Inc()
		return nil, ErrNonPositiveAmount
	}

	unlock := l.lockPair(payer, payee)
	defer unlock()

	payerAcct, err := l.accounts.GetOrCreateAccount(ctx, payer)
	if err != nil {
		transferFailuresTotal.WithLabelValues(failureStore).Inc()
		return nil, fmt.Errorf("load payer account: %w", err)
	}
	payeeAcct, err := l.accounts.GetOrCreateAccount(ctx, payee)
	if err != nil {
		transferFailuresTotal.WithLabelValues(failureStore).Inc()
		return nil, fmt.Errorf("load payee account: %w", err)
	}

	payerBefore, payeeBefore := payerAcct.Balance, payeeAcct.Balance

	if payerBefore.LessThan(amount) {
		transferFailuresTotal.WithLabelValues(failureInsufficientFunds).Inc()
		return nil, &InsufficientFundsError{
			AccountID: payer,
			Available: payerBefore,
			Requested: amount,
			Shortfall: amount.Sub(payerBefore),
		}
	}

	now := time.Now().UTC()
	payerAfter := payerBefore.Sub(amount)
	payeeAfter := payeeBefore.Add(amount)

	// 1. Debit the payer. Nothing has committed yet if this fails.
	if err := l.accounts.SetBalance(ctx, payer, payerAfter, now); err != nil {
		transferFailuresTotal.WithLabelValues(failureStore).Inc()
		return nil, fmt.Errorf("debit payer: %w", err)
	}

	// 2. Credit the payee. The payer's debit is already committed, so a
	// fault here must be compensated.
	if err := l.accounts.SetBalance(ctx, payee, payeeAfter, now); err != nil {
		return nil, l.compensate(ctx, fmt.Errorf("credit payee: %w", err), restore{payer, payerBefore})
	}

	// 3. Append the spend/earn pair atomically. Both balance writes are
	// committed, so a fault here unwinds both.
	spend := Transaction{
		ID:        TransactionID(uuid.NewString()),
		AccountID: payer,
		Kind:      KindSpend,
		Amount:    amount,
		Metadata:  tc.metadata(payee, tc.PayeeName),
		CreatedAt: now,
	}
	earn := Transaction{
		ID:        TransactionID(uuid.NewString()),
		AccountID: payee,
		Kind:      KindEarn,
		Amount:    amount,
		Metadata:  tc.metadata(payer, tc.PayerName),
		CreatedAt: now,
	}
	if err := l.txlog.AppendTransactions(ctx, []Transaction{spend, earn}); err != nil {
		return nil, l.compensate(ctx, fmt.Errorf("append transaction pair: %w", err),
			restore{payer, payerBefore}, restore{payee, payeeBefore})
	}

	transfersTotal.Inc()
	l.logger.Info("credit transfer completed",
		"payer", payer, "payee", payee, "amount", amount.String(),
		"connection_id", tc.ConnectionID)

	event := events.TransferCompleted{
		SpendTransactionID: string(spend.ID),
		EarnTransactionID:  string(earn.ID),
		PayerID:            payer,
		PayeeID:            payee,
		Amount:             amount.Value,
		ConnectionID:       tc.ConnectionID,
		SkillID:            tc.SkillID,
		OccurredAt:         now,
	}
	if err := l.publisher.Publish(events.TopicTransferCompleted, event); err != nil {
		// The transfer is committed; event delivery is best-effort.
		l.logger.Warn("transfer event publish failed", "error", err)
	}

	return &TransferResult{
		PayerBalance: payerAfter,
		PayeeBalance: payeeAfter,
		Spend:        spend,
		Earn:         earn,
	}, nil
}

type restore struct {
	accountID string
	balance   Amount
}

// compensate restores pre-transfer balances after a mid-flight fault and
// returns the error the caller should surface. If a restore itself fails,
// the balances are unreconciled: this logs a fatal reconciliation alert and
// returns a ReconciliationError instead of the original cause.
func (l *Ledger) compensate(ctx context.Context, cause error, restores ...restore) error {
	transferFailuresTotal.WithLabelValues(failureStore).Inc()

	now := time.Now().UTC()
	for _, r := range restores {
		if err := l.accounts.SetBalance(ctx, r.accountID, r.balance, now); err != nil {
			reconciliationFaultsTotal.Inc()
			l.logger.Error("balance reconciliation required",
				"reconciliation_required", true,
				"account", r.accountID,
				"expected_balance", r.balance.String(),
				"transfer_fault", cause,
				"restore_fault", err)
			return &ReconciliationError{
				AccountID:     r.accountID,
				Expected:      r.balance,
				Cause:         cause,
				CompensateErr: err,
			}
		}
	}

	l.logger.Warn("transfer aborted, balances restored", "error", cause)
	return fmt.Errorf("transfer aborted: %w", cause)
}

// Grant introduces amount credits into account and records a purchase
// transaction. This is how credits enter the system.
func (l *Ledger) Grant(ctx context.Context, accountID string, amount Amount, reason string) (*GrantResult, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	mu := l.accountLock(accountID)
	mu.Lock()
	defer mu.Unlock()

	acct, err := l.accounts.GetOrCreateAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	now := time.Now().UTC()
	before := acct.Balance
	after := before.Add(amount)

	if err := l.accounts.SetBalance(ctx, accountID, after, now); err != nil {
		return nil, fmt.Errorf("credit account: %w", err)
	}

	record := Transaction{
		ID:        TransactionID(uuid.NewString()),
		AccountID: accountID,
		Kind:      KindPurchase,
		Amount:    amount,
		Metadata:  map[string]string{MetaReason: reason},
		CreatedAt: now,
	}
	if err := l.txlog.AppendTransactions(ctx, []Transaction{record}); err != nil {
		return nil, l.compensate(ctx, fmt.Errorf("append grant transaction: %w", err), restore{accountID, before})
	}

	grantsTotal.Inc()
	l.logger.Info("credits granted", "account", accountID, "amount", amount.String(), "reason", reason)

	return &GrantResult{Balance: after, Record: record}, nil
}

// Balance returns the account's current balance, creating the account with
// a zero balance on first query.
func (l *Ledger) Balance(ctx context.Context, accountID string) (Amount, error) {
	acct, err := l.accounts.GetOrCreateAccount(ctx, accountID)
	if err != nil {
		return Amount{}, err
	}
	return acct.Balance, nil
}

// Transactions returns the account's audit trail, most recent first.
func (l *Ledger) Transactions(ctx context.Context, accountID string, limit int) ([]Transaction, error) {
	return l.txlog.TransactionsByAccount(ctx, accountID, limit)
}

// metadata builds the audit context for one side of a transfer.
func (tc TransferContext) metadata(counterpartyID, counterpartyName string) map[string]string {
	m := map[string]string{
		MetaCounterpartyID: counterpartyID,
		MetaReason:         tc.Reason,
	}
	if tc.ConnectionID != "" {
		m[MetaConnectionID] = tc.ConnectionID
	}
	if tc.SkillID != "" {
		m[MetaSkillID] = tc.SkillID
	}
	if counterpartyName != "" {
		m[MetaCounterpartyName] = counterpartyName
	}
	return m
}
