// Package skill defines the skill listing entity and its persistence
// contract. Listing CRUD itself is a thin collaborator surface; the credit
// and matchmaking cores depend on it for point lookups and bounded scans.
package skill

import (
	"context"
	"errors"
	"time"

	"github.com/skillswap/credit-engine/credit"
)

// ErrNotFound is returned when a referenced skill does not exist.
var ErrNotFound = errors.New("skill not found")

// Skill is a listing offered by its owner at a price in credits.
// Tags are matched case-insensitively by the matchmaking scorer.
type Skill struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Price       credit.Amount // >= 0
	Tags        []string
	CreatedAt   time.Time
}

// Store is the persistence contract for skills. Deleting a skill cascades
// to its dependent connections.
type Store interface {
	SaveSkill(ctx context.Context, s *Skill) error

	// GetSkill returns nil with no error when the skill is absent.
	GetSkill(ctx context.Context, id string) (*Skill, error)

	ListSkills(ctx context.Context, limit int) ([]Skill, error)

	DeleteSkill(ctx context.Context, id string) error

	// SkillsExcludingOwner returns up to limit skills not owned by ownerID,
	// newest first. Bounds the matchmaking candidate pool.
	SkillsExcludingOwner(ctx context.Context, ownerID string, limit int) ([]Skill, error)

	// SearchSkillsByTitle returns up to limit skills whose title contains
	// query case-insensitively.
	SearchSkillsByTitle(ctx context.Context, query string, limit int) ([]Skill, error)
}
