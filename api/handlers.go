/*
handlers.go - HTTP API handlers for the activity and reward engine

PURPOSE:
  Exposes the monthly activity engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Reads:
    GET    /api/clubs                         List clubs
    GET    /api/clubs/{id}/activity           Club monthly row
    GET    /api/clubs/{id}/members            Member rows for the period
    GET    /api/clubs/{id}/history            One club, one year
    GET    /api/clubs/{id}/events             Event contribution weights
    GET    /api/memberships/{id}/activity     Member monthly row
    GET    /api/ranking                       Clubs by final score
    GET    /api/trending                      Month-over-month movement
    GET    /api/compare                       Two clubs side by side
    GET    /api/policies                      Multiplier tiers
    GET    /api/wallets/{kind}/{id}           Balance
    GET    /api/wallets/{kind}/{id}/transactions

  Writes:
    POST   /api/memberships/{id}/recalc       Recompute one member
    POST   /api/clubs/{id}/recalc             Recompute one club
    POST   /api/clubs/{id}/lock               Lock without funding
    POST   /api/clubs/{id}/approve            Credit pool + lock
    POST   /api/clubs/{id}/distribute         Pay out the pool
    POST   /api/clubs/{id}/reset              Delete an unlocked month
    POST   /api/admin/recalc                  Recompute every club

ERROR HANDLING:
  Domain errors are mapped onto HTTP status codes in one place
  (writeDomainError):
  - 400: invalid period, malformed input
  - 404: unknown club/membership/record
  - 409: locked-month conflicts, double lock, double distribution
  - 422: distribution preconditions (empty pool, no rows, funds)
  - 500: everything else

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/clubhub/activity-engine/activity"
	"github.com/clubhub/activity-engine/engine"
	"github.com/clubhub/activity-engine/policy"
	"github.com/clubhub/activity-engine/wallet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *engine.Engine
	Policies func(ctx context.Context) ([]policy.MultiplierPolicy, error)
	Log      *logrus.Logger
}

// NewHandler creates a handler around the engine. listPolicies may be
// nil when no policy store is wired (the endpoint then returns 404).
func NewHandler(e *engine.Engine, listPolicies func(ctx context.Context) ([]policy.MultiplierPolicy, error)) *Handler {
	log := e.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{Engine: e, Policies: listPolicies, Log: log}
}

// =============================================================================
// READ HANDLERS
// =============================================================================

// ListClubs returns all clubs.
func (h *Handler) ListClubs(w http.ResponseWriter, r *http.Request) {
	clubs, err := h.Engine.Store.Clubs(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ClubDTO, len(clubs))
	for i, c := range clubs {
		dtos[i] = ClubDTO{ID: string(c.ID), Name: c.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetClubActivity returns one club's monthly row.
func (h *Handler) GetClubActivity(w http.ResponseWriter, r *http.Request) {
	year, month, ok := queryPeriod(w, r)
	if !ok {
		return
	}
	clubID := activity.ClubID(chi.URLParam(r, "id"))

	rec, err := h.Engine.Store.ClubRecord(r.Context(), clubID, year, time.Month(month))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClubActivityDTO(*rec))
}

// GetClubMembers returns every member row for the club and period.
func (h *Handler) GetClubMembers(w http.ResponseWriter, r *http.Request) {
	year, month, ok := queryPeriod(w, r)
	if !ok {
		return
	}
	clubID := activity.ClubID(chi.URLParam(r, "id"))

	rows, err := h.Engine.Store.MemberRecordsByClub(r.Context(), clubID, year, time.Month(month))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberActivityDTOs(rows))
}

// GetMemberActivity returns one member's monthly row.
func (h *Handler) GetMemberActivity(w http.ResponseWriter, r *http.Request) {
	year, month, ok := queryPeriod(w, r)
	if !ok {
		return
	}
	id := activity.MembershipID(chi.URLParam(r, "id"))

	rec, err := h.Engine.Store.MemberRecord(r.Context(), id, year, time.Month(month))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberActivityDTO(*rec))
}

// GetRanking returns the period's clubs ordered by final score.
func (h *Handler) GetRanking(w http.ResponseWriter, r *http.Request) {
	year, month, ok := queryPeriod(w, r)
	if !ok {
		return
	}
	rows, err := h.Engine.Ranking(r.Context(), year, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClubActivityDTOs(rows))
}

// GetTrending returns month-over-month movement per club.
func (h *Handler) GetTrending(w http.ResponseWriter, r *http.Request) {
	year, month, ok := queryPeriod(w, r)
	if !ok {
		return
	}
	entries, err := h.Engine.Trending(r.Context(), year, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]TrendDTO, len(entries))
	for i, e := range entries {
		dtos[i] = TrendDTO{
			ClubID:        string(e.ClubID),
			Current:       e.Current,
			Previous:      e.Previous,
			Diff:          e.Diff,
			PercentGrowth: e.PercentGrowth,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetHistory returns one club's rows for a year.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	year, ok := queryInt(w, r, "year")
	if !ok {
		return
	}
	clubID := activity.ClubID(chi.URLParam(r, "id"))

	rows, err := h.Engine.History(r.Context(), clubID, year)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClubActivityDTOs(rows))
}

// GetComparison returns two clubs' rows side by side.
func (h *Handler) GetComparison(w http.ResponseWriter, r *http.Request) {
	year, month, ok := queryPeriod(w, r)
	if !ok {
		return
	}
	a := activity.ClubID(r.URL.Query().Get("a"))
	b := activity.ClubID(r.URL.Query().Get("b"))
	if a == "" || b == "" {
		writeError(w, http.StatusBadRequest, "query parameters a and b are required", nil)
		return
	}

	cmp, err := h.Engine.Compare(r.Context(), a, b, year, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dto := ComparisonDTO{}
	if cmp.A != nil {
		d := toClubActivityDTO(*cmp.A)
		dto.A = &d
	}
	if cmp.B != nil {
		d := toClubActivityDTO(*cmp.B)
		dto.B = &d
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetEventContributions returns the club's event weights for the period.
func (h *Handler) GetEventContributions(w http.ResponseWriter, r *http.Request) {
	year, month, ok := queryPeriod(w, r)
	if !ok {
		return
	}
	clubID := activity.ClubID(chi.URLParam(r, "id"))

	contributions, err := h.Engine.EventContributions(r.Context(), clubID, year, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]EventContributionDTO, len(contributions))
	for i, c := range contributions {
		dtos[i] = EventContributionDTO{
			EventID:     c.Event.EventID,
			Name:        c.Event.Name,
			Date:        c.Event.Date.Format(time.RFC3339),
			Feedback:    c.Event.Feedback,
			CheckinRate: c.Event.CheckinRate,
			Weight:      c.Weight,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListPolicies returns all stored multiplier tiers.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	if h.Policies == nil {
		writeError(w, http.StatusNotFound, "policy store not configured", nil)
		return
	}
	policies, err := h.Policies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list policies", err)
		return
	}
	dtos := make([]PolicyDTO, len(policies))
	for i, p := range policies {
		dtos[i] = PolicyDTO{
			ID:         p.ID,
			Target:     string(p.Target),
			Dimension:  p.Dimension,
			Min:        p.Min,
			Max:        p.Max,
			Multiplier: p.Multiplier,
			RuleName:   p.RuleName,
			Active:     p.Active,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetWallet returns a wallet balance.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	owner, ok := walletOwner(w, r)
	if !ok {
		return
	}
	balance, err := h.Engine.Store.Balance(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WalletDTO{Owner: owner.String(), Balance: balance})
}

// GetWalletTransactions returns a wallet's ledger.
func (h *Handler) GetWalletTransactions(w http.ResponseWriter, r *http.Request) {
	owner, ok := walletOwner(w, r)
	if !ok {
		return
	}
	txs, err := h.Engine.Store.Transactions(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// WRITE HANDLERS
// =============================================================================

// RecalcMember recomputes one member's monthly row.
func (h *Handler) RecalcMember(w http.ResponseWriter, r *http.Request) {
	var req PeriodRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := activity.MembershipID(chi.URLParam(r, "id"))

	rec, err := h.Engine.RecalcMember(r.Context(), id, req.Year, req.Month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberActivityDTO(*rec))
}

// RecalcClub recomputes one club and all of its active members.
func (h *Handler) RecalcClub(w http.ResponseWriter, r *http.Request) {
	var req PeriodRequest
	if !decodeBody(w, r, &req) {
		return
	}
	clubID := activity.ClubID(chi.URLParam(r, "id"))

	rec, err := h.Engine.RecalcClub(r.Context(), clubID, req.Year, req.Month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClubActivityDTO(*rec))
}

// RecalcAll recomputes every club for the period.
func (h *Handler) RecalcAll(w http.ResponseWriter, r *http.Request) {
	var req PeriodRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.Engine.RecalcAll(r.Context(), req.Year, req.Month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dto := RecalcAllResultDTO{Year: res.Year, Month: int(res.Month)}
	for _, id := range res.Succeeded {
		dto.Succeeded = append(dto.Succeeded, string(id))
	}
	for _, f := range res.Failed {
		dto.Failed = append(dto.Failed, ClubFailureDTO{ClubID: string(f.ClubID), Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, dto)
}

// LockMonth locks the club's monthly record without moving funds.
func (h *Handler) LockMonth(w http.ResponseWriter, r *http.Request) {
	h.workflow(w, r, h.Engine.Lock)
}

// ApproveMonth credits the reward pool and locks, atomically.
func (h *Handler) ApproveMonth(w http.ResponseWriter, r *http.Request) {
	h.workflow(w, r, h.Engine.Approve)
}

func (h *Handler) workflow(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, clubID activity.ClubID, year, month int, actor string) error) {

	var req WorkflowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	clubID := activity.ClubID(chi.URLParam(r, "id"))

	if err := op(r.Context(), clubID, req.Year, req.Month, req.Actor); err != nil {
		writeDomainError(w, err)
		return
	}

	rec, err := h.Engine.Store.ClubRecord(r.Context(), clubID, req.Year, time.Month(req.Month))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClubActivityDTO(*rec))
}

// Distribute pays out a locked month's reward pool.
func (h *Handler) Distribute(w http.ResponseWriter, r *http.Request) {
	var req WorkflowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	clubID := activity.ClubID(chi.URLParam(r, "id"))

	res, err := h.Engine.Distribute(r.Context(), clubID, req.Year, req.Month, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionResultDTO(res))
}

// ResetMonth deletes an unlocked month's rows for a club.
func (h *Handler) ResetMonth(w http.ResponseWriter, r *http.Request) {
	var req PeriodRequest
	if !decodeBody(w, r, &req) {
		return
	}
	clubID := activity.ClubID(chi.URLParam(r, "id"))

	if err := h.Engine.ResetMonth(r.Context(), clubID, req.Year, req.Month); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("query parameter %s must be an integer", name), err)
		return 0, false
	}
	return v, true
}

func queryPeriod(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	year, ok := queryInt(w, r, "year")
	if !ok {
		return 0, 0, false
	}
	month, ok := queryInt(w, r, "month")
	if !ok {
		return 0, 0, false
	}
	return year, month, true
}

func walletOwner(w http.ResponseWriter, r *http.Request) (wallet.Owner, bool) {
	kind := chi.URLParam(r, "kind")
	id := chi.URLParam(r, "id")
	switch wallet.OwnerKind(kind) {
	case wallet.OwnerUser:
		return wallet.UserOwner(id), true
	case wallet.OwnerClub:
		return wallet.ClubOwner(id), true
	default:
		writeError(w, http.StatusBadRequest, "wallet kind must be user or club", nil)
		return wallet.Owner{}, false
	}
}

// writeDomainError maps domain failures onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var insufficientErr *wallet.InsufficientFundsError

	switch {
	case activity.IsNotFound(err):
		writeErrorCode(w, http.StatusNotFound, "not_found", err)
	case activity.IsConflict(err):
		writeErrorCode(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, activity.ErrInvalidPeriod):
		writeErrorCode(w, http.StatusBadRequest, "invalid_period", err)
	case errors.As(err, &insufficientErr):
		writeErrorCode(w, http.StatusUnprocessableEntity, "insufficient_funds", err)
	case errors.Is(err, activity.ErrNoRewardPoints), errors.Is(err, activity.ErrNoMemberActivity):
		writeErrorCode(w, http.StatusUnprocessableEntity, "nothing_to_distribute", err)
	case errors.Is(err, wallet.ErrInvalidAmount):
		writeErrorCode(w, http.StatusBadRequest, "invalid_amount", err)
	default:
		writeErrorCode(w, http.StatusInternalServerError, "internal", err)
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
