package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/credit-engine/connection"
	"github.com/skillswap/credit-engine/credit"
	"github.com/skillswap/credit-engine/skill"
	"github.com/skillswap/credit-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testSkill(id, owner string, createdAt time.Time, tags ...string) *skill.Skill {
	return &skill.Skill{
		ID:        id,
		OwnerID:   owner,
		Title:     "Skill " + id,
		Price:     credit.NewAmount(25),
		Tags:      tags,
		CreatedAt: createdAt,
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestAccounts_GetOrCreateStartsAtZero(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	acct, err := store.GetOrCreateAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, acct.Balance.IsZero())

	// Second call returns the same account, not a fresh one.
	require.NoError(t, store.SetBalance(ctx, "user-1", credit.NewAmount(12.34), time.Now().UTC()))
	again, err := store.GetOrCreateAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, again.Balance.Equal(credit.NewAmount(12.34)))
}

func TestAccounts_SetBalanceUnknownAccount(t *testing.T) {
	store := newTestStore(t)
	err := store.SetBalance(context.Background(), "ghost", credit.NewAmount(5), time.Now().UTC())
	assert.ErrorIs(t, err, credit.ErrAccountNotFound)
}

func TestAccounts_BalancePrecisionSurvivesRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetOrCreateAccount(ctx, "user-1")
	require.NoError(t, err)

	// 0.1 + 0.2 style values must come back exact, not drifted.
	want := credit.NewAmount(0.1).Add(credit.NewAmount(0.2))
	require.NoError(t, store.SetBalance(ctx, "user-1", want, time.Now().UTC()))

	acct, err := store.GetOrCreateAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "0.30", acct.Balance.String())
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestTransactions_AppendAndListMostRecentFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	txs := []credit.Transaction{
		{ID: "tx-1", AccountID: "user-1", Kind: credit.KindPurchase, Amount: credit.NewAmount(50), CreatedAt: base},
		{ID: "tx-2", AccountID: "user-1", Kind: credit.KindSpend, Amount: credit.NewAmount(30),
			Metadata:  map[string]string{credit.MetaConnectionID: "conn-1", credit.MetaCounterpartyID: "user-2"},
			CreatedAt: base.Add(time.Minute)},
		{ID: "tx-3", AccountID: "user-2", Kind: credit.KindEarn, Amount: credit.NewAmount(30), CreatedAt: base.Add(time.Minute)},
	}
	require.NoError(t, store.AppendTransactions(ctx, txs))

	got, err := store.TransactionsByAccount(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, credit.TransactionID("tx-2"), got[0].ID, "most recent first")
	assert.Equal(t, "conn-1", got[0].Metadata[credit.MetaConnectionID])
	assert.True(t, got[0].Amount.Equal(credit.NewAmount(30)))

	limited, err := store.TransactionsByAccount(ctx, "user-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestTransactions_AppendIsAtomic(t *testing.T) {
	// A batch with a duplicate primary key must leave nothing behind.
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.AppendTransactions(ctx, []credit.Transaction{
		{ID: "tx-1", AccountID: "user-1", Kind: credit.KindPurchase, Amount: credit.NewAmount(10), CreatedAt: now},
	}))

	err := store.AppendTransactions(ctx, []credit.Transaction{
		{ID: "tx-2", AccountID: "user-1", Kind: credit.KindSpend, Amount: credit.NewAmount(5), CreatedAt: now},
		{ID: "tx-1", AccountID: "user-1", Kind: credit.KindEarn, Amount: credit.NewAmount(5), CreatedAt: now},
	})
	require.Error(t, err)

	got, err := store.TransactionsByAccount(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1, "failed batch must not leave a partial pair")
}

// =============================================================================
// SKILLS
// =============================================================================

func TestSkills_SaveGetDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sk := testSkill("skill-1", "alice", time.Now().UTC(), "cooking", "baking")
	sk.Description = "hands-on baking classes"
	require.NoError(t, store.SaveSkill(ctx, sk))

	got, err := store.GetSkill(ctx, "skill-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.OwnerID)
	assert.Equal(t, []string{"cooking", "baking"}, got.Tags)
	assert.True(t, got.Price.Equal(credit.NewAmount(25)))

	require.NoError(t, store.DeleteSkill(ctx, "skill-1"))
	gone, err := store.GetSkill(ctx, "skill-1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	assert.ErrorIs(t, store.DeleteSkill(ctx, "skill-1"), skill.ErrNotFound)
}

func TestSkills_ExcludingOwnerBoundedScan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, store.SaveSkill(ctx, testSkill("mine", "alice", base)))
	require.NoError(t, store.SaveSkill(ctx, testSkill("other-1", "bob", base.Add(time.Second))))
	require.NoError(t, store.SaveSkill(ctx, testSkill("other-2", "carol", base.Add(2*time.Second))))

	got, err := store.SkillsExcludingOwner(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, sk := range got {
		assert.NotEqual(t, "alice", sk.OwnerID)
	}

	limited, err := store.SkillsExcludingOwner(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSkills_SearchByTitleCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	baking := testSkill("s1", "alice", now)
	baking.Title = "Sourdough BAKING"
	welding := testSkill("s2", "bob", now)
	welding.Title = "Welding"
	require.NoError(t, store.SaveSkill(ctx, baking))
	require.NoError(t, store.SaveSkill(ctx, welding))

	got, err := store.SearchSkillsByTitle(ctx, "baking", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)
}

// =============================================================================
// CONNECTIONS
// =============================================================================

func seedConnection(t *testing.T, store *sqlite.Store, id, skillID, learner, teacher string) *connection.Connection {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	c := &connection.Connection{
		ID:        id,
		SkillID:   skillID,
		LearnerID: learner,
		TeacherID: teacher,
		Price:     credit.NewAmount(30),
		Status:    connection.StatusPending,
		Message:   "hello",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.CreateConnection(ctx, c))
	return c
}

func TestConnections_RoundTripAndStatusUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSkill(ctx, testSkill("skill-1", "teacher", time.Now().UTC())))
	seedConnection(t, store, "conn-1", "skill-1", "learner", "teacher")

	got, err := store.GetConnection(ctx, "conn-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, connection.StatusPending, got.Status)
	assert.True(t, got.Price.Equal(credit.NewAmount(30)))

	require.NoError(t, store.UpdateConnectionStatus(ctx, "conn-1", connection.StatusAccepted, time.Now().UTC()))
	got, err = store.GetConnection(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, connection.StatusAccepted, got.Status)

	assert.ErrorIs(t, store.UpdateConnectionStatus(ctx, "ghost", connection.StatusAccepted, time.Now().UTC()), connection.ErrNotFound)
}

func TestConnections_DeleteAndNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSkill(ctx, testSkill("skill-1", "teacher", time.Now().UTC())))
	seedConnection(t, store, "conn-1", "skill-1", "learner", "teacher")

	require.NoError(t, store.DeleteConnection(ctx, "conn-1"))
	got, err := store.GetConnection(ctx, "conn-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, store.DeleteConnection(ctx, "conn-1"), connection.ErrNotFound)
}

func TestConnections_SkillDeletionCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSkill(ctx, testSkill("skill-1", "teacher", time.Now().UTC())))
	seedConnection(t, store, "conn-1", "skill-1", "learner", "teacher")

	require.NoError(t, store.DeleteSkill(ctx, "skill-1"))

	got, err := store.GetConnection(ctx, "conn-1")
	require.NoError(t, err)
	assert.Nil(t, got, "connections must follow their skill")
}

func TestConnections_ListByRole(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.SaveSkill(ctx, testSkill("skill-1", "bob", now)))
	require.NoError(t, store.SaveSkill(ctx, testSkill("skill-2", "carol", now)))
	seedConnection(t, store, "conn-1", "skill-1", "alice", "bob")
	seedConnection(t, store, "conn-2", "skill-2", "bob", "carol")

	asLearner, err := store.ConnectionsForUser(ctx, "bob", connection.RoleLearner)
	require.NoError(t, err)
	require.Len(t, asLearner, 1)
	assert.Equal(t, "conn-2", asLearner[0].ID)

	asTeacher, err := store.ConnectionsForUser(ctx, "bob", connection.RoleTeacher)
	require.NoError(t, err)
	require.Len(t, asTeacher, 1)
	assert.Equal(t, "conn-1", asTeacher[0].ID)

	both, err := store.ConnectionsForUser(ctx, "bob", connection.RoleAny)
	require.NoError(t, err)
	assert.Len(t, both, 2)
}
