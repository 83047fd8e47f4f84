// Package events defines the outbound event contract for the credit engine.
// Infrastructure (Kafka) implements Publisher; the ledger depends only on
// the interface so event delivery can be swapped or disabled.
package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Publisher delivers an event to a topic. Delivery is best-effort from the
// ledger's point of view: a publish failure never unwinds a committed
// transfer.
type Publisher interface {
	Publish(topic string, event any) error
}

// TopicTransferCompleted carries TransferCompleted events.
const TopicTransferCompleted = "transfer_completed"

// TransferCompleted is emitted after a transfer's balances and transaction
// pair have been committed.
type TransferCompleted struct {
	SpendTransactionID string          `json:"spend_transaction_id"`
	EarnTransactionID  string          `json:"earn_transaction_id"`
	PayerID            string          `json:"payer_id"`
	PayeeID            string          `json:"payee_id"`
	Amount             decimal.Decimal `json:"amount"`
	ConnectionID       string          `json:"connection_id,omitempty"`
	SkillID            string          `json:"skill_id,omitempty"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

// Noop discards all events. Used when no broker is configured and in tests.
type Noop struct{}

func (Noop) Publish(string, any) error { return nil }
