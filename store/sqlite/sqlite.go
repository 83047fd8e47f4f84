/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

INTERFACES IMPLEMENTED:
  credit.AccountStore:     Balance persistence (get-or-create, point update)
  credit.TransactionStore: Append-only audit log
  connection.Store:        Connection lifecycle persistence
  skill.Store:             Skill lookups and bounded scans

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements ever touch the transactions table.

KEY TABLES:
  accounts:     identity → balance (created implicitly on first access)
  transactions: immutable ledger of all credit movements
  skills:       listings with owner, price, and tags
  connections:  learning requests; skill deletion cascades here

WAL MODE:
  The database is opened with WAL and foreign keys on: readers don't block,
  a single writer at a time, and the connections→skills cascade is enforced
  by the engine.

USAGE:
  store, err := sqlite.New("./data/skillswap.db")
  ledger := credit.NewLedger(store, store, nil, nil)

SEE ALSO:
  - credit/types.go, connection/connection.go, skill/skill.go: Interfaces
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/skillswap/credit-engine/connection"
	"github.com/skillswap/credit-engine/credit"
	"github.com/skillswap/credit-engine/skill"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Accounts (identity → balance)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		balance TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Transactions (append-only audit log)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		metadata_json TEXT,
		created_at TEXT NOT NULL
	);

	-- Hot path: per-account history, most recent first
	CREATE INDEX IF NOT EXISTS idx_transactions_account_created
		ON transactions(account_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_kind
		ON transactions(kind);

	-- Skills
	CREATE TABLE IF NOT EXISTS skills (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		price TEXT NOT NULL,
		tags_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_skills_owner
		ON skills(owner_id);

	-- Connections (skill deletion cascades here)
	CREATE TABLE IF NOT EXISTS connections (
		id TEXT PRIMARY KEY,
		skill_id TEXT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
		learner_id TEXT NOT NULL,
		teacher_id TEXT NOT NULL,
		price TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_connections_learner
		ON connections(learner_id);
	CREATE INDEX IF NOT EXISTS idx_connections_teacher
		ON connections(teacher_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

// GetOrCreateAccount returns the account, creating it with a zero balance
// on first access.
func (s *Store) GetOrCreateAccount(ctx context.Context, id string) (*credit.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.getAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct != nil {
		return acct, nil
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, balance, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, credit.Zero().String(), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return &credit.Account{ID: id, Balance: credit.Zero(), CreatedAt: now, UpdatedAt: now}, nil
}

func (s *Store) getAccount(ctx context.Context, id string) (*credit.Account, error) {
	var (
		balance              string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT balance, created_at, updated_at FROM accounts WHERE id = ?`, id).
		Scan(&balance, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	amount, err := credit.NewAmountFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance for %s: %w", id, err)
	}
	return &credit.Account{
		ID:        id,
		Balance:   amount,
		CreatedAt: parseTime(createdAt),
		UpdatedAt: parseTime(updatedAt),
	}, nil
}

// SetBalance writes a new balance for an existing account.
func (s *Store) SetBalance(ctx context.Context, id string, balance credit.Amount, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance.String(), updatedAt.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return credit.ErrAccountNotFound
	}
	return nil
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

// AppendTransactions writes all records in a single database transaction.
func (s *Store) AppendTransactions(ctx context.Context, txs []credit.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer dbTx.Rollback()

	for _, tx := range txs {
		metadata, err := json.Marshal(tx.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		_, err = dbTx.ExecContext(ctx,
			`INSERT INTO transactions (id, account_id, kind, amount, metadata_json, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			string(tx.ID), tx.AccountID, string(tx.Kind), tx.Amount.String(),
			string(metadata), tx.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("append transaction %s: %w", tx.ID, err)
		}
	}
	return dbTx.Commit()
}

// TransactionsByAccount returns the account's records, most recent first.
func (s *Store) TransactionsByAccount(ctx context.Context, accountID string, limit int) ([]credit.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, kind, amount, metadata_json, created_at
		 FROM transactions WHERE account_id = ?
		 ORDER BY created_at DESC, id LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []credit.Transaction
	for rows.Next() {
		var (
			id, account, kind, amount string
			metadata                  sql.NullString
			createdAt                 string
		)
		if err := rows.Scan(&id, &account, &kind, &amount, &metadata, &createdAt); err != nil {
			return nil, err
		}

		parsed, err := credit.NewAmountFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount for tx %s: %w", id, err)
		}
		tx := credit.Transaction{
			ID:        credit.TransactionID(id),
			AccountID: account,
			Kind:      credit.TransactionKind(kind),
			Amount:    parsed,
			CreatedAt: parseTime(createdAt),
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &tx.Metadata); err != nil {
				return nil, fmt.Errorf("parse metadata for tx %s: %w", id, err)
			}
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// SKILL STORE
// =============================================================================

func (s *Store) SaveSkill(ctx context.Context, sk *skill.Skill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags, err := json.Marshal(sk.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO skills (id, owner_id, title, description, price, tags_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sk.ID, sk.OwnerID, sk.Title, sk.Description, sk.Price.String(),
		string(tags), sk.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save skill: %w", err)
	}
	return nil
}

func (s *Store) GetSkill(ctx context.Context, id string) (*skill.Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, description, price, tags_json, created_at
		 FROM skills WHERE id = ?`, id)
	sk, err := scanSkill(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sk, err
}

func (s *Store) ListSkills(ctx context.Context, limit int) ([]skill.Skill, error) {
	return s.querySkills(ctx,
		`SELECT id, owner_id, title, description, price, tags_json, created_at
		 FROM skills ORDER BY created_at DESC, id LIMIT ?`, limit)
}

func (s *Store) DeleteSkill(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM skills WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete skill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return skill.ErrNotFound
	}
	return nil
}

func (s *Store) SkillsExcludingOwner(ctx context.Context, ownerID string, limit int) ([]skill.Skill, error) {
	return s.querySkills(ctx,
		`SELECT id, owner_id, title, description, price, tags_json, created_at
		 FROM skills WHERE owner_id != ? ORDER BY created_at DESC, id LIMIT ?`, ownerID, limit)
}

func (s *Store) SearchSkillsByTitle(ctx context.Context, query string, limit int) ([]skill.Skill, error) {
	// lower() keeps the match case-insensitive beyond SQLite's ASCII-only
	// LIKE folding for the stored side.
	return s.querySkills(ctx,
		`SELECT id, owner_id, title, description, price, tags_json, created_at
		 FROM skills WHERE instr(lower(title), lower(?)) > 0
		 ORDER BY created_at DESC, id LIMIT ?`, query, limit)
}

func (s *Store) querySkills(ctx context.Context, q string, args ...any) ([]skill.Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query skills: %w", err)
	}
	defer rows.Close()

	var skills []skill.Skill
	for rows.Next() {
		sk, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		skills = append(skills, *sk)
	}
	return skills, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSkill(row rowScanner) (*skill.Skill, error) {
	var (
		id, owner, title string
		description      sql.NullString
		price            string
		tags             sql.NullString
		createdAt        string
	)
	if err := row.Scan(&id, &owner, &title, &description, &price, &tags, &createdAt); err != nil {
		return nil, err
	}

	amount, err := credit.NewAmountFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price for skill %s: %w", id, err)
	}
	sk := &skill.Skill{
		ID:          id,
		OwnerID:     owner,
		Title:       title,
		Description: description.String,
		Price:       amount,
		CreatedAt:   parseTime(createdAt),
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &sk.Tags); err != nil {
			return nil, fmt.Errorf("parse tags for skill %s: %w", id, err)
		}
	}
	return sk, nil
}

// =============================================================================
// CONNECTION STORE
// =============================================================================

func (s *Store) CreateConnection(ctx context.Context, c *connection.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connections (id, skill_id, learner_id, teacher_id, price, status, message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SkillID, c.LearnerID, c.TeacherID, c.Price.String(), string(c.Status),
		c.Message, c.CreatedAt.UTC().Format(time.RFC3339Nano), c.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create connection: %w", err)
	}
	return nil
}

func (s *Store) GetConnection(ctx context.Context, id string) (*connection.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, skill_id, learner_id, teacher_id, price, status, message, created_at, updated_at
		 FROM connections WHERE id = ?`, id)
	c, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (s *Store) UpdateConnectionStatus(ctx context.Context, id string, status connection.Status, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE connections SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), updatedAt.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("update connection status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return connection.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteConnection(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return connection.ErrNotFound
	}
	return nil
}

func (s *Store) ConnectionsForUser(ctx context.Context, userID string, role connection.Role) ([]connection.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		q    string
		args []any
	)
	switch role {
	case connection.RoleLearner:
		q = `SELECT id, skill_id, learner_id, teacher_id, price, status, message, created_at, updated_at
		     FROM connections WHERE learner_id = ? ORDER BY created_at DESC, id`
		args = []any{userID}
	case connection.RoleTeacher:
		q = `SELECT id, skill_id, learner_id, teacher_id, price, status, message, created_at, updated_at
		     FROM connections WHERE teacher_id = ? ORDER BY created_at DESC, id`
		args = []any{userID}
	default:
		q = `SELECT id, skill_id, learner_id, teacher_id, price, status, message, created_at, updated_at
		     FROM connections WHERE learner_id = ? OR teacher_id = ? ORDER BY created_at DESC, id`
		args = []any{userID, userID}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []connection.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, *c)
	}
	return conns, rows.Err()
}

func scanConnection(row rowScanner) (*connection.Connection, error) {
	var (
		id, skillID, learner, teacher, price, status string
		message                                      sql.NullString
		createdAt, updatedAt                         string
	)
	if err := row.Scan(&id, &skillID, &learner, &teacher, &price, &status, &message, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	amount, err := credit.NewAmountFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price for connection %s: %w", id, err)
	}
	return &connection.Connection{
		ID:        id,
		SkillID:   skillID,
		LearnerID: learner,
		TeacherID: teacher,
		Price:     amount,
		Status:    connection.Status(status),
		Message:   message.String,
		CreatedAt: parseTime(createdAt),
		UpdatedAt: parseTime(updatedAt),
	}, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
