/*
service.go - Connection lifecycle operations

REQUEST FLOW:
  Learner submits    Validate skill,      Teacher accepts:
  request       ──▶  snapshot teacher ──▶ charge via Ledger, then
                     and price            persist the new status

  The Ledger is invoked exactly once, on the pending→accepted edge.
  Re-accepting an accepted connection is a no-op, not a double charge.
  If the transfer fails the status update is aborted and the connection
  stays pending.
*/
package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/credit-engine/credit"
	"github.com/skillswap/credit-engine/skill"
)

// CreditLedger is the slice of the credit ledger the service needs.
type CreditLedger interface {
	Transfer(ctx context.Context, payer, payee string, amount credit.Amount, tc credit.TransferContext) (*credit.TransferResult, error)
}

// Service orchestrates the connection lifecycle.
type Service struct {
	Connections Store
	Skills      skill.Store
	Ledger      CreditLedger
}

func NewService(connections Store, skills skill.Store, ledger CreditLedger) *Service {
	return &Service{Connections: connections, Skills: skills, Ledger: ledger}
}

// Create submits a learning request for a skill. The teacher identity and
// price are snapshotted from the skill so later listing edits cannot change
// what the learner owes.
func (s *Service) Create(ctx context.Context, learnerID, skillID, message string) (*Connection, error) {
	sk, err := s.Skills.GetSkill(ctx, skillID)
	if err != nil {
		return nil, fmt.Errorf("load skill: %w", err)
	}
	if sk == nil {
		return nil, skill.ErrNotFound
	}
	if sk.OwnerID == learnerID {
		return nil, ErrSelfConnection
	}

	now := time.Now().UTC()
	c := &Connection{
		ID:        uuid.NewString(),
		SkillID:   sk.ID,
		LearnerID: learnerID,
		TeacherID: sk.OwnerID,
		Price:     sk.Price,
		Status:    StatusPending,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Connections.CreateConnection(ctx, c); err != nil {
		return nil, fmt.Errorf("save connection: %w", err)
	}
	return c, nil
}

// UpdateStatus transitions a connection. Only the connection's teacher may
// accept, reject or complete it. Accepting charges the learner the
// connection's snapshotted price; if the transfer fails the connection
// remains pending. The transfer result is non-nil only when a charge was
// performed by this call.
func (s *Service) UpdateStatus(ctx context.Context, actorID, connectionID string, target Status) (*Connection, *credit.TransferResult, error) {
	if !target.ValidTarget() {
		return nil, nil, ErrInvalidStatus
	}

	c, err := s.Connections.GetConnection(ctx, connectionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load connection: %w", err)
	}
	if c == nil {
		return nil, nil, ErrNotFound
	}
	if c.TeacherID != actorID {
		return nil, nil, ErrForbidden
	}

	// Idempotency guard: repeating a transition is a safe no-op. For
	// accepted this is the primary defense against double charging.
	if c.Status == target {
		return c, nil, nil
	}
	if c.Status != StatusPending {
		return nil, nil, &TransitionError{From: c.Status, To: target}
	}

	var result *credit.TransferResult
	if target == StatusAccepted {
		result, err = s.Ledger.Transfer(ctx, c.LearnerID, c.TeacherID, c.Price, s.transferContext(ctx, c))
		if err != nil {
			// Nothing was charged (or the charge was compensated);
			// the connection stays pending.
			return nil, nil, err
		}
	}

	now := time.Now().UTC()
	if err := s.Connections.UpdateConnectionStatus(ctx, c.ID, target, now); err != nil {
		return nil, nil, fmt.Errorf("persist status: %w", err)
	}
	c.Status = target
	c.UpdatedAt = now
	return c, result, nil
}

// Cancel removes a pending connection. Only the learner may cancel, and
// only while the request is still pending.
func (s *Service) Cancel(ctx context.Context, actorID, connectionID string) error {
	c, err := s.Connections.GetConnection(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("load connection: %w", err)
	}
	if c == nil {
		return ErrNotFound
	}
	if c.LearnerID != actorID {
		return ErrForbidden
	}
	if c.Status != StatusPending {
		return &TransitionError{From: c.Status, To: StatusPending}
	}
	return s.Connections.DeleteConnection(ctx, c.ID)
}

// Get returns a connection visible to the actor (either participant).
func (s *Service) Get(ctx context.Context, actorID, connectionID string) (*Connection, error) {
	c, err := s.Connections.GetConnection(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("load connection: %w", err)
	}
	if c == nil {
		return nil, ErrNotFound
	}
	if c.LearnerID != actorID && c.TeacherID != actorID {
		return nil, ErrForbidden
	}
	return c, nil
}

// List returns the actor's connections on the given side, newest first.
func (s *Service) List(ctx context.Context, actorID string, role Role) ([]Connection, error) {
	return s.Connections.ConnectionsForUser(ctx, actorID, role)
}

// transferContext builds the audit context for the acceptance charge. The
// skill is looked up for a readable reason; if it has been removed since
// the snapshot, a generic reason is used.
func (s *Service) transferContext(ctx context.Context, c *Connection) credit.TransferContext {
	reason := "connection accepted"
	if sk, err := s.Skills.GetSkill(ctx, c.SkillID); err == nil && sk != nil {
		reason = "connection accepted for " + sk.Title
	}
	return credit.TransferContext{
		ConnectionID: c.ID,
		SkillID:      c.SkillID,
		Reason:       reason,
	}
}
