// Package memory provides an in-memory implementation of the storage
// interfaces for tests and development. The Fail* hooks inject store
// faults so the ledger's compensation paths can be exercised.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/skillswap/credit-engine/connection"
	"github.com/skillswap/credit-engine/credit"
	"github.com/skillswap/credit-engine/skill"
)

type Store struct {
	mu           sync.RWMutex
	accounts     map[string]credit.Account
	transactions []credit.Transaction
	skills       map[string]skill.Skill
	connections  map[string]connection.Connection

	// Fault injection. When set, the matching operation consults the hook
	// before mutating; a non-nil return aborts the operation with that error.
	FailSetBalance func(accountID string) error
	FailAppend     func() error
}

func New() *Store {
	return &Store{
		accounts:    make(map[string]credit.Account),
		skills:      make(map[string]skill.Skill),
		connections: make(map[string]connection.Connection),
	}
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (m *Store) GetOrCreateAccount(_ context.Context, id string) (*credit.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if acct, ok := m.accounts[id]; ok {
		return &acct, nil
	}
	now := time.Now().UTC()
	acct := credit.Account{ID: id, Balance: credit.Zero(), CreatedAt: now, UpdatedAt: now}
	m.accounts[id] = acct
	return &acct, nil
}

func (m *Store) SetBalance(_ context.Context, id string, balance credit.Amount, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSetBalance != nil {
		if err := m.FailSetBalance(id); err != nil {
			return err
		}
	}

	acct, ok := m.accounts[id]
	if !ok {
		return credit.ErrAccountNotFound
	}
	acct.Balance = balance
	acct.UpdatedAt = updatedAt
	m.accounts[id] = acct
	return nil
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

func (m *Store) AppendTransactions(_ context.Context, txs []credit.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAppend != nil {
		if err := m.FailAppend(); err != nil {
			return err
		}
	}

	m.transactions = append(m.transactions, txs...)
	return nil
}

func (m *Store) TransactionsByAccount(_ context.Context, accountID string, limit int) ([]credit.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Walk newest-first so equal timestamps keep reverse insertion order.
	var result []credit.Transaction
	for i := len(m.transactions) - 1; i >= 0; i-- {
		if m.transactions[i].AccountID == accountID {
			result = append(result, m.transactions[i])
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// AllTransactions returns every record, in insertion order. Test helper.
func (m *Store) AllTransactions() []credit.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]credit.Transaction, len(m.transactions))
	copy(result, m.transactions)
	return result
}

// =============================================================================
// SKILL STORE
// =============================================================================

func (m *Store) SaveSkill(_ context.Context, sk *skill.Skill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skills[sk.ID] = *sk
	return nil
}

func (m *Store) GetSkill(_ context.Context, id string) (*skill.Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if sk, ok := m.skills[id]; ok {
		return &sk, nil
	}
	return nil, nil
}

func (m *Store) ListSkills(_ context.Context, limit int) ([]skill.Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collectSkills(limit, func(skill.Skill) bool { return true }), nil
}

func (m *Store) DeleteSkill(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.skills[id]; !ok {
		return skill.ErrNotFound
	}
	delete(m.skills, id)
	// Cascade, matching the SQLite foreign key.
	for cid, c := range m.connections {
		if c.SkillID == id {
			delete(m.connections, cid)
		}
	}
	return nil
}

func (m *Store) SkillsExcludingOwner(_ context.Context, ownerID string, limit int) ([]skill.Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collectSkills(limit, func(sk skill.Skill) bool { return sk.OwnerID != ownerID }), nil
}

func (m *Store) SearchSkillsByTitle(_ context.Context, query string, limit int) ([]skill.Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lowered := strings.ToLower(query)
	return m.collectSkills(limit, func(sk skill.Skill) bool {
		return strings.Contains(strings.ToLower(sk.Title), lowered)
	}), nil
}

func (m *Store) collectSkills(limit int, keep func(skill.Skill) bool) []skill.Skill {
	var result []skill.Skill
	for _, sk := range m.skills {
		if keep(sk) {
			result = append(result, sk)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// =============================================================================
// CONNECTION STORE
// =============================================================================

func (m *Store) CreateConnection(_ context.Context, c *connection.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.ID] = *c
	return nil
}

func (m *Store) GetConnection(_ context.Context, id string) (*connection.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if c, ok := m.connections[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *Store) UpdateConnectionStatus(_ context.Context, id string, status connection.Status, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.connections[id]
	if !ok {
		return connection.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = updatedAt
	m.connections[id] = c
	return nil
}

func (m *Store) DeleteConnection(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.connections[id]; !ok {
		return connection.ErrNotFound
	}
	delete(m.connections, id)
	return nil
}

func (m *Store) ConnectionsForUser(_ context.Context, userID string, role connection.Role) ([]connection.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []connection.Connection
	for _, c := range m.connections {
		switch role {
		case connection.RoleLearner:
			if c.LearnerID != userID {
				continue
			}
		case connection.RoleTeacher:
			if c.TeacherID != userID {
				continue
			}
		default:
			if c.LearnerID != userID && c.TeacherID != userID {
				continue
			}
		}
		result = append(result, c)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
