/*
handlers.go - HTTP API handlers

PURPOSE:
  Exposes the credit engine via REST. Handles HTTP request/response and
  JSON serialization, and delegates to the domain services.

ENDPOINTS:
  Skills:
    POST   /api/skills                    Create skill
    GET    /api/skills                    List skills
    GET    /api/skills/{id}               Get skill
    DELETE /api/skills/{id}               Delete own skill

  Connections:
    POST   /api/connections               Request a connection
    GET    /api/connections               List caller's connections
    GET    /api/connections/{id}          Get one connection (participants)
    PUT    /api/connections/{id}          Accept/reject/complete
    DELETE /api/connections/{id}          Cancel (learner, pending only)

  Credits:
    GET    /api/credits/balance           Caller's balance
    GET    /api/credits/transactions      Caller's audit trail
    POST   /api/credits/grant             Grant credits

  Matchmaking:
    GET    /api/matchmaking/for-skill/{skillId}  Related skills
    POST   /api/matchmaking/search               Title search

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, business-rule failures (incl. insufficient funds)
  - 401: Missing caller identity
  - 403: Wrong actor for the operation
  - 404: Resource not found
  - 409: Illegal status transition
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/skillswap/credit-engine/connection"
	"github.com/skillswap/credit-engine/credit"
	"github.com/skillswap/credit-engine/matchmaking"
	"github.com/skillswap/credit-engine/skill"
)

const (
	defaultTransactionLimit = 20
	maxTransactionLimit     = 100
	defaultMatchLimit       = 10
	maxMatchLimit           = 50
	defaultSkillListLimit   = 100
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Skills      skill.Store
	Connections *connection.Service
	Ledger      *credit.Ledger
	Matchmaker  *matchmaking.Service
}

func NewHandler(skills skill.Store, connections *connection.Service, ledger *credit.Ledger, matchmaker *matchmaking.Service) *Handler {
	return &Handler{
		Skills:      skills,
		Connections: connections,
		Ledger:      ledger,
		Matchmaker:  matchmaker,
	}
}

// =============================================================================
// SKILL HANDLERS
// =============================================================================

func (h *Handler) CreateSkill(w http.ResponseWriter, r *http.Request) {
	var req CreateSkillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "Title is required", nil)
		return
	}
	if req.Price < 0 {
		writeError(w, http.StatusBadRequest, "Price must not be negative", nil)
		return
	}

	sk := &skill.Skill{
		ID:          uuid.NewString(),
		OwnerID:     CallerID(r.Context()),
		Title:       req.Title,
		Description: req.Description,
		Price:       credit.NewAmount(req.Price),
		Tags:        req.Tags,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.Skills.SaveSkill(r.Context(), sk); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create skill", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSkillDTO(*sk))
}

func (h *Handler) ListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := h.Skills.ListSkills(r.Context(), defaultSkillListLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list skills", err)
		return
	}

	dtos := make([]SkillDTO, len(skills))
	for i, sk := range skills {
		dtos[i] = toSkillDTO(sk)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetSkill(w http.ResponseWriter, r *http.Request) {
	sk, err := h.Skills.GetSkill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get skill", err)
		return
	}
	if sk == nil {
		writeError(w, http.StatusNotFound, "Skill not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSkillDTO(*sk))
}

func (h *Handler) DeleteSkill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sk, err := h.Skills.GetSkill(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get skill", err)
		return
	}
	if sk == nil {
		writeError(w, http.StatusNotFound, "Skill not found", nil)
		return
	}
	if sk.OwnerID != CallerID(r.Context()) {
		writeError(w, http.StatusForbidden, "Only the owner may delete a skill", nil)
		return
	}

	if err := h.Skills.DeleteSkill(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete skill", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// =============================================================================
// CONNECTION HANDLERS
// =============================================================================

func (h *Handler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var req CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.SkillID == "" {
		writeError(w, http.StatusBadRequest, "skill_id is required", nil)
		return
	}

	c, err := h.Connections.Create(r.Context(), CallerID(r.Context()), req.SkillID, req.Message)
	if err != nil {
		writeDomainError(w, "Failed to create connection", err)
		return
	}
	writeJSON(w, http.StatusCreated, toConnectionDTO(*c))
}

func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	role := connection.Role(r.URL.Query().Get("role"))
	if role != connection.RoleAny && role != connection.RoleLearner && role != connection.RoleTeacher {
		writeError(w, http.StatusBadRequest, "role must be learner or teacher", nil)
		return
	}

	conns, err := h.Connections.List(r.Context(), CallerID(r.Context()), role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list connections", err)
		return
	}

	dtos := make([]ConnectionDTO, len(conns))
	for i, c := range conns {
		dtos[i] = toConnectionDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetConnection(w http.ResponseWriter, r *http.Request) {
	c, err := h.Connections.Get(r.Context(), CallerID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get connection", err)
		return
	}
	writeJSON(w, http.StatusOK, toConnectionDTO(*c))
}

func (h *Handler) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	var req UpdateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, result, err := h.Connections.UpdateStatus(r.Context(),
		CallerID(r.Context()), chi.URLParam(r, "id"), connection.Status(req.Status))
	if err != nil {
		writeDomainError(w, "Failed to update connection", err)
		return
	}

	resp := UpdateConnectionResponse{Connection: toConnectionDTO(*c)}
	if result != nil {
		resp.Transfer = &TransferDTO{
			PayerBalance: result.PayerBalance.Float64(),
			PayeeBalance: result.PayeeBalance.Float64(),
			Amount:       result.Spend.Amount.Float64(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CancelConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Connections.Cancel(r.Context(), CallerID(r.Context()), id); err != nil {
		writeDomainError(w, "Failed to cancel connection", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": id})
}

// =============================================================================
// CREDIT HANDLERS
// =============================================================================

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	caller := CallerID(r.Context())
	balance, err := h.Ledger.Balance(r.Context(), caller)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{AccountID: caller, Balance: balance.Float64()})
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultTransactionLimit, maxTransactionLimit)

	txs, err := h.Ledger.Transactions(r.Context(), CallerID(r.Context()), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GrantCredits(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Reason == "" {
		req.Reason = "credit purchase"
	}

	result, err := h.Ledger.Grant(r.Context(), CallerID(r.Context()), credit.NewAmount(req.Amount), req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to grant credits", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance":     result.Balance.Float64(),
		"transaction": toTransactionDTO(result.Record),
	})
}

// =============================================================================
// MATCHMAKING HANDLERS
// =============================================================================

func (h *Handler) FindMatches(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultMatchLimit, maxMatchLimit)
	minScore := 0.0
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid min_score", err)
			return
		}
		minScore = parsed
	}

	matches, err := h.Matchmaker.FindComplementarySkills(r.Context(), chi.URLParam(r, "skillId"), limit, minScore)
	if err != nil {
		writeDomainError(w, "Failed to find matches", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": toMatchDTOs(matches)})
}

func (h *Handler) SearchSkills(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required", nil)
		return
	}
	limit := req.Limit
	if limit <= 0 || limit > maxMatchLimit {
		limit = defaultMatchLimit
	}

	matches, err := h.Matchmaker.SearchSkillsByQuery(r.Context(), req.Query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to search skills", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": toMatchDTOs(matches)})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain failures to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusForError(err), message, err)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, skill.ErrNotFound),
		errors.Is(err, connection.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, connection.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, connection.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, connection.ErrSelfConnection),
		errors.Is(err, connection.ErrInvalidStatus),
		credit.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, name string, fallback, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}
