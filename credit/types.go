/*
Package credit provides the credit ledger: accounts, transactions, and the
Transfer operation that moves credits between two accounts.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A credit quantity with fixed 2-digit scale
  - Account: Identity plus current balance
  - Transaction: An immutable audit record of one credit movement

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified or deleted
  2. Precision: Uses decimal.Decimal to avoid floating-point drift
  3. Auditability: Every movement carries metadata linking it to its cause

SEE ALSO:
  - ledger.go: The Transfer and Grant operations
  - errors.go: Sentinel and structured errors
*/
package credit

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Credit quantity, fixed 2-digit scale
// =============================================================================

// Scale is the number of fractional digits carried by every Amount.
const Scale = 2

// Amount is a quantity of credits. All constructors round to Scale so that
// arithmetic over many operations cannot accumulate drift.
type Amount struct {
	Value decimal.Decimal
}

func NewAmount(value float64) Amount {
	return Amount{Value: decimal.NewFromFloat(value).Round(Scale)}
}

func NewAmountFromInt(value int) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value))}
}

// NewAmountFromString parses a decimal string such as "30.00".
func NewAmountFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: d.Round(Scale)}, nil
}

func Zero() Amount { return Amount{Value: decimal.Zero} }

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) Neg() Amount               { return Amount{Value: a.Value.Neg()} }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }

// String renders with the fixed scale, e.g. "30.00".
func (a Amount) String() string { return a.Value.StringFixed(Scale) }

// Float64 is for presentation only; internal arithmetic stays decimal.
func (a Amount) Float64() float64 {
	f, _ := a.Value.Float64()
	return f
}

// =============================================================================
// ACCOUNT - Identity to balance mapping
// =============================================================================

// Account maps a user identity to its credit balance.
// Accounts are created implicitly on first balance query or grant.
// Balance is mutated only by the Ledger and never goes negative.
type Account struct {
	ID        string
	Balance   Amount
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// TRANSACTION - Immutable record of one credit movement
// =============================================================================

type TransactionID string

type TransactionKind string

const (
	KindPurchase TransactionKind = "purchase" // credits entering the system (grant, top-up)
	KindSpend    TransactionKind = "spend"    // payer side of a transfer
	KindEarn     TransactionKind = "earn"     // payee side of a transfer
	KindRefund   TransactionKind = "refund"   // manual compensating grant
)

// Transaction records one credit movement for one account. Append-only:
// corrections are made with refund transactions, never edits.
type Transaction struct {
	ID        TransactionID
	AccountID string
	Kind      TransactionKind
	Amount    Amount // always positive; Kind carries the direction
	Metadata  map[string]string
	CreatedAt time.Time
}

// Metadata keys written by the Ledger.
const (
	MetaConnectionID     = "connection_id"
	MetaSkillID          = "skill_id"
	MetaCounterpartyID   = "counterparty_id"
	MetaCounterpartyName = "counterparty_name"
	MetaReason           = "reason"
)

// =============================================================================
// STORE INTERFACES - Implemented by store/sqlite and store/memory
// =============================================================================

// AccountStore is the persistence contract for balances.
// GetOrCreateAccount makes implicit account creation an explicit part of the
// contract rather than a side effect buried in a query path.
type AccountStore interface {
	GetOrCreateAccount(ctx context.Context, id string) (*Account, error)
	SetBalance(ctx context.Context, id string, balance Amount, updatedAt time.Time) error
}

// TransactionStore is the append-only persistence contract for the audit log.
type TransactionStore interface {
	// AppendTransactions writes all records atomically: a transfer's
	// spend/earn pair is either fully recorded or not at all.
	AppendTransactions(ctx context.Context, txs []Transaction) error

	// TransactionsByAccount returns records for one account, most recent
	// first, truncated to limit.
	TransactionsByAccount(ctx context.Context, accountID string, limit int) ([]Transaction, error)
}
