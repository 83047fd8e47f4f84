/*
Package connection manages the learning-request lifecycle.

LIFECYCLE:
  pending ──▶ accepted   (teacher; charges the learner via the Ledger)
  pending ──▶ rejected   (teacher)
  pending ──▶ completed  (teacher)
  pending ──▶ (deleted)  (learner cancel)

  accepted, rejected and completed are terminal: the only permitted
  "transition" out of them is the idempotent no-op to the same status.

SNAPSHOTS:
  Teacher identity and price are copied from the skill when the connection
  is created. Later edits to the listing cannot change what the learner
  owes; the Ledger transfer amount is always the connection's price.

SEE ALSO:
  - service.go: Lifecycle operations
*/
package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skillswap/credit-engine/credit"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// ValidTarget reports whether s is a status a caller may transition to.
// pending is the initial state only; cancellation is modeled as deletion.
func (s Status) ValidTarget() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// =============================================================================
// CONNECTION
// =============================================================================

// Connection is a request-to-learn linking a learner, a teacher, and a
// skill. TeacherID and Price are snapshots taken at creation time.
type Connection struct {
	ID        string
	SkillID   string
	LearnerID string
	TeacherID string
	Price     credit.Amount
	Status    Status
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role filters connection listings by the caller's side.
type Role string

const (
	RoleAny     Role = ""
	RoleLearner Role = "learner"
	RoleTeacher Role = "teacher"
)

// Store is the persistence contract for connections.
type Store interface {
	CreateConnection(ctx context.Context, c *Connection) error

	// GetConnection returns nil with no error when the connection is absent.
	GetConnection(ctx context.Context, id string) (*Connection, error)

	UpdateConnectionStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error

	DeleteConnection(ctx context.Context, id string) error

	// ConnectionsForUser returns the user's connections on the given side
	// (or both for RoleAny), newest first.
	ConnectionsForUser(ctx context.Context, userID string, role Role) ([]Connection, error)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when the connection does not exist.
	ErrNotFound = errors.New("connection not found")

	// ErrSelfConnection is returned when a learner requests their own skill.
	ErrSelfConnection = errors.New("cannot request a connection to your own skill")

	// ErrForbidden is returned when the actor may not perform the operation.
	ErrForbidden = errors.New("actor is not permitted to perform this operation")

	// ErrInvalidStatus is returned for a status value outside the lifecycle.
	ErrInvalidStatus = errors.New("invalid connection status")

	// ErrInvalidTransition is returned when the requested transition is not
	// legal from the connection's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransitionError reports an attempted illegal transition.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition connection from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
