/*
handlers_test.go - HTTP tests through the full router

Drives the API the way a frontend would: grant credits, publish a skill,
request a connection, accept it, and watch the balances move.
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/credit-engine/api"
	"github.com/skillswap/credit-engine/connection"
	"github.com/skillswap/credit-engine/credit"
	"github.com/skillswap/credit-engine/matchmaking"
	"github.com/skillswap/credit-engine/store/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := credit.NewLedger(store, store, nil, logger)
	connections := connection.NewService(store, store, ledger)
	matchmaker := matchmaking.NewService(store)

	handler := api.NewHandler(store, connections, ledger, matchmaker)
	srv := httptest.NewServer(api.NewRouter(handler, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

// do issues a request as the given user and decodes the JSON reply into out
// (pass nil to skip decoding).
func do(t *testing.T, srv *httptest.Server, userID, method, path string, body any, out any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(api.IdentityHeader, userID)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func grantCredits(t *testing.T, srv *httptest.Server, userID string, amount float64) {
	t.Helper()
	resp := do(t, srv, userID, http.MethodPost, "/api/credits/grant",
		api.GrantRequest{Amount: amount, Reason: "test grant"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func createSkill(t *testing.T, srv *httptest.Server, ownerID string, req api.CreateSkillRequest) api.SkillDTO {
	t.Helper()
	var sk api.SkillDTO
	resp := do(t, srv, ownerID, http.MethodPost, "/api/skills", req, &sk)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return sk
}

func requestConnection(t *testing.T, srv *httptest.Server, learnerID, skillID string) api.ConnectionDTO {
	t.Helper()
	var c api.ConnectionDTO
	resp := do(t, srv, learnerID, http.MethodPost, "/api/connections",
		api.CreateConnectionRequest{SkillID: skillID, Message: "keen to learn"}, &c)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return c
}

// =============================================================================
// IDENTITY BOUNDARY
// =============================================================================

func TestAPI_AuthenticatedRoutesRejectAnonymousCallers(t *testing.T) {
	srv := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/skills"},
		{http.MethodPost, "/api/connections"},
		{http.MethodGet, "/api/credits/balance"},
		{http.MethodPost, "/api/credits/grant"},
	} {
		resp := do(t, srv, "", tc.method, tc.path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", tc.method, tc.path)
	}
}

func TestAPI_PublicRoutesAllowAnonymousCallers(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "", http.MethodGet, "/api/skills", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, "", http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// CONNECTION LIFECYCLE OVER HTTP
// =============================================================================

func TestAPI_AcceptedConnectionMovesCredits(t *testing.T) {
	// GIVEN: A teacher with a priced skill and a funded learner
	srv := newTestServer(t)
	grantCredits(t, srv, "learner", 50)
	sk := createSkill(t, srv, "teacher", api.CreateSkillRequest{
		Title: "Sourdough Baking", Price: 30, Tags: []string{"baking", "cooking"},
	})
	conn := requestConnection(t, srv, "learner", sk.ID)
	assert.Equal(t, "pending", conn.Status)
	assert.Equal(t, 30.0, conn.Price)
	assert.Equal(t, "teacher", conn.TeacherID)

	// WHEN: The teacher accepts
	var updated api.UpdateConnectionResponse
	resp := do(t, srv, "teacher", http.MethodPut, "/api/connections/"+conn.ID,
		api.UpdateConnectionRequest{Status: "accepted"}, &updated)

	// THEN: The connection is accepted and the charge is reported
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "accepted", updated.Connection.Status)
	require.NotNil(t, updated.Transfer)
	assert.Equal(t, 30.0, updated.Transfer.Amount)
	assert.Equal(t, 20.0, updated.Transfer.PayerBalance)
	assert.Equal(t, 30.0, updated.Transfer.PayeeBalance)

	// AND: Both sides see the movement in balance and audit trail
	var balance api.BalanceDTO
	do(t, srv, "learner", http.MethodGet, "/api/credits/balance", nil, &balance)
	assert.Equal(t, 20.0, balance.Balance)

	var txs []api.TransactionDTO
	do(t, srv, "teacher", http.MethodGet, "/api/credits/transactions", nil, &txs)
	require.Len(t, txs, 1)
	assert.Equal(t, "earn", txs[0].Kind)
	assert.Equal(t, conn.ID, txs[0].Metadata["connection_id"])
}

func TestAPI_AcceptWithoutFundsReturns400AndLeavesPending(t *testing.T) {
	// GIVEN: A learner who cannot afford the skill
	srv := newTestServer(t)
	grantCredits(t, srv, "learner", 10)
	sk := createSkill(t, srv, "teacher", api.CreateSkillRequest{Title: "Welding", Price: 30})
	conn := requestConnection(t, srv, "learner", sk.ID)

	// WHEN: The teacher tries to accept
	var errResp api.ErrorResponse
	resp := do(t, srv, "teacher", http.MethodPut, "/api/connections/"+conn.ID,
		api.UpdateConnectionRequest{Status: "accepted"}, &errResp)

	// THEN: The caller gets a 400 and the connection stays pending
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, errResp.Details, "insufficient")

	var conns []api.ConnectionDTO
	do(t, srv, "learner", http.MethodGet, "/api/connections", nil, &conns)
	require.Len(t, conns, 1)
	assert.Equal(t, "pending", conns[0].Status)
}

func TestAPI_OnlyTeacherMayAccept(t *testing.T) {
	srv := newTestServer(t)
	grantCredits(t, srv, "learner", 50)
	sk := createSkill(t, srv, "teacher", api.CreateSkillRequest{Title: "Welding", Price: 30})
	conn := requestConnection(t, srv, "learner", sk.ID)

	resp := do(t, srv, "learner", http.MethodPut, "/api/connections/"+conn.ID,
		api.UpdateConnectionRequest{Status: "accepted"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_TerminalTransitionReturns409(t *testing.T) {
	srv := newTestServer(t)
	grantCredits(t, srv, "learner", 50)
	sk := createSkill(t, srv, "teacher", api.CreateSkillRequest{Title: "Welding", Price: 30})
	conn := requestConnection(t, srv, "learner", sk.ID)

	resp := do(t, srv, "teacher", http.MethodPut, "/api/connections/"+conn.ID,
		api.UpdateConnectionRequest{Status: "rejected"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, "teacher", http.MethodPut, "/api/connections/"+conn.ID,
		api.UpdateConnectionRequest{Status: "accepted"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_GetConnectionVisibleToParticipantsOnly(t *testing.T) {
	srv := newTestServer(t)
	sk := createSkill(t, srv, "teacher", api.CreateSkillRequest{Title: "Welding", Price: 30})
	conn := requestConnection(t, srv, "learner", sk.ID)

	var got api.ConnectionDTO
	resp := do(t, srv, "learner", http.MethodGet, "/api/connections/"+conn.ID, nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, conn.ID, got.ID)

	resp = do(t, srv, "stranger", http.MethodGet, "/api/connections/"+conn.ID, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_CancelRemovesConnection(t *testing.T) {
	srv := newTestServer(t)
	sk := createSkill(t, srv, "teacher", api.CreateSkillRequest{Title: "Welding", Price: 30})
	conn := requestConnection(t, srv, "learner", sk.ID)

	resp := do(t, srv, "learner", http.MethodDelete, "/api/connections/"+conn.ID, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// A second cancel finds nothing.
	resp = do(t, srv, "learner", http.MethodDelete, "/api/connections/"+conn.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ConnectionToOwnSkillRejected(t *testing.T) {
	srv := newTestServer(t)
	sk := createSkill(t, srv, "teacher", api.CreateSkillRequest{Title: "Welding", Price: 30})

	resp := do(t, srv, "teacher", http.MethodPost, "/api/connections",
		api.CreateConnectionRequest{SkillID: sk.ID}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// SKILLS
// =============================================================================

func TestAPI_SkillLifecycle(t *testing.T) {
	srv := newTestServer(t)
	sk := createSkill(t, srv, "alice", api.CreateSkillRequest{
		Title: "Pottery", Description: "wheel throwing basics", Price: 15, Tags: []string{"ceramics"},
	})

	var got api.SkillDTO
	resp := do(t, srv, "", http.MethodGet, "/api/skills/"+sk.ID, nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Pottery", got.Title)
	assert.Equal(t, 15.0, got.Price)
	assert.Equal(t, []string{"ceramics"}, got.Tags)

	// Only the owner may delete.
	resp = do(t, srv, "bob", http.MethodDelete, "/api/skills/"+sk.ID, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, srv, "alice", http.MethodDelete, "/api/skills/"+sk.ID, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, "", http.MethodGet, "/api/skills/"+sk.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CreateSkillValidation(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "alice", http.MethodPost, "/api/skills",
		api.CreateSkillRequest{Title: "", Price: 10}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, "alice", http.MethodPost, "/api/skills",
		api.CreateSkillRequest{Title: "Pottery", Price: -5}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// MATCHMAKING
// =============================================================================

func TestAPI_MatchmakingEndpoints(t *testing.T) {
	srv := newTestServer(t)
	ref := createSkill(t, srv, "alice", api.CreateSkillRequest{
		Title: "Italian Cooking", Price: 20, Tags: []string{"cooking", "baking"},
	})
	createSkill(t, srv, "bob", api.CreateSkillRequest{
		Title: "Bread Baking", Price: 25, Tags: []string{"baking", "cooking"},
	})
	createSkill(t, srv, "carol", api.CreateSkillRequest{
		Title: "Welding", Price: 30, Tags: []string{"metalwork"},
	})

	var matchReply struct {
		Matches []api.MatchDTO `json:"matches"`
	}
	resp := do(t, srv, "", http.MethodGet, "/api/matchmaking/for-skill/"+ref.ID+"?min_score=0.5", nil, &matchReply)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, matchReply.Matches, 1)
	assert.Equal(t, "Bread Baking", matchReply.Matches[0].Skill.Title)
	assert.InDelta(t, 1.0, matchReply.Matches[0].Score, 1e-9)

	var searchReply struct {
		Results []api.MatchDTO `json:"results"`
	}
	resp = do(t, srv, "", http.MethodPost, "/api/matchmaking/search",
		api.SearchRequest{Query: "baking"}, &searchReply)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, searchReply.Results, 1)
	assert.Equal(t, "Bread Baking", searchReply.Results[0].Skill.Title)

	resp = do(t, srv, "", http.MethodGet, "/api/matchmaking/for-skill/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
