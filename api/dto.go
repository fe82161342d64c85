/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SCORES ON THE WIRE:
  Computed scores are serialized as strings (decimal.Decimal's JSON
  form) so clients never see float drift; integer fields (reward
  points, balances) stay numbers.

SEE ALSO:
  - handlers.go: Uses these types
  - policy/factory.go: PolicyJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/clubhub/activity-engine/activity"
	"github.com/clubhub/activity-engine/engine"
	"github.com/clubhub/activity-engine/wallet"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ClubDTO represents a club in API responses.
type ClubDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MemberActivityDTO is one member's monthly activity row.
type MemberActivityDTO struct {
	MembershipID     string          `json:"membership_id"`
	ClubID           string          `json:"club_id"`
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	EventsRegistered int64           `json:"events_registered"`
	EventsAttended   decimal.Decimal `json:"events_attended"`
	SessionsTotal    int64           `json:"sessions_total"`
	SessionsPresent  int64           `json:"sessions_present"`
	StaffAverage     decimal.Decimal `json:"staff_average"`
	PenaltyPoints    int64           `json:"penalty_points"`
	BaseScore        decimal.Decimal `json:"base_score"`
	ActivityLevel    string          `json:"activity_level"`
	Multiplier       decimal.Decimal `json:"multiplier"`
	FinalScore       decimal.Decimal `json:"final_score"`
	ComputedAt       string          `json:"computed_at"`
}

// ClubActivityDTO is one club's monthly activity row plus its workflow
// descriptor.
type ClubActivityDTO struct {
	ClubID         string          `json:"club_id"`
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	TotalEvents    int64           `json:"total_events"`
	AvgFeedback    decimal.Decimal `json:"avg_feedback"`
	AvgCheckinRate decimal.Decimal `json:"avg_checkin_rate"`
	AvgMemberScore decimal.Decimal `json:"avg_member_score"`
	StaffScore     decimal.Decimal `json:"staff_score"`
	ActiveMembers  int64           `json:"active_members"`
	FinalScore     decimal.Decimal `json:"final_score"`
	AwardScore     decimal.Decimal `json:"award_score"`
	AwardLevel     string          `json:"award_level"`
	RewardPoints   int64           `json:"reward_points"`
	Locked         bool            `json:"locked"`
	LockedAt       *string         `json:"locked_at,omitempty"`
	LockedBy       string          `json:"locked_by,omitempty"`
	Approved       bool            `json:"approved"`
	DistributedAt  *string         `json:"distributed_at,omitempty"`
	DistributedBy  string          `json:"distributed_by,omitempty"`
	ComputedAt     string          `json:"computed_at"`
}

// TrendDTO is one club's month-over-month movement.
type TrendDTO struct {
	ClubID        string          `json:"club_id"`
	Current       decimal.Decimal `json:"current"`
	Previous      decimal.Decimal `json:"previous"`
	Diff          decimal.Decimal `json:"diff"`
	PercentGrowth decimal.Decimal `json:"percent_growth"`
}

// ComparisonDTO pairs two clubs' rows for the same period.
type ComparisonDTO struct {
	A *ClubActivityDTO `json:"a"`
	B *ClubActivityDTO `json:"b"`
}

// EventContributionDTO is one event's heuristic weight.
type EventContributionDTO struct {
	EventID     string          `json:"event_id"`
	Name        string          `json:"name"`
	Date        string          `json:"date"`
	Feedback    decimal.Decimal `json:"feedback"`
	CheckinRate decimal.Decimal `json:"checkin_rate"`
	Weight      decimal.Decimal `json:"weight"`
}

// TransferDTO is one member payout within a distribution.
type TransferDTO struct {
	MembershipID string `json:"membership_id"`
	UserID       string `json:"user_id"`
	Share        int64  `json:"share"`
	Before       int64  `json:"before"`
	After        int64  `json:"after"`
}

// DistributionResultDTO summarizes a committed distribution.
type DistributionResultDTO struct {
	ClubID      string        `json:"club_id"`
	Year        int           `json:"year"`
	Month       int           `json:"month"`
	RewardPool  int64         `json:"reward_pool"`
	Distributed int64         `json:"distributed"`
	Remainder   int64         `json:"remainder"`
	Transfers   []TransferDTO `json:"transfers"`
}

// RecalcAllResultDTO reports a bulk recomputation outcome.
type RecalcAllResultDTO struct {
	Year      int               `json:"year"`
	Month     int               `json:"month"`
	Succeeded []string          `json:"succeeded"`
	Failed    []ClubFailureDTO  `json:"failed"`
}

// ClubFailureDTO is one club's error within a bulk recomputation.
type ClubFailureDTO struct {
	ClubID string `json:"club_id"`
	Error  string `json:"error"`
}

// WalletDTO is a wallet balance.
type WalletDTO struct {
	Owner   string `json:"owner"`
	Balance int64  `json:"balance"`
}

// TransactionDTO is one wallet ledger entry.
type TransactionDTO struct {
	ID          string `json:"id"`
	Owner       string `json:"owner"`
	Amount      int64  `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Reference   string `json:"reference,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// PolicyDTO is one multiplier tier in API responses.
type PolicyDTO struct {
	ID         string          `json:"id"`
	Target     string          `json:"target"`
	Dimension  string          `json:"dimension"`
	Min        int64           `json:"min"`
	Max        *int64          `json:"max,omitempty"`
	Multiplier decimal.Decimal `json:"multiplier"`
	RuleName   string          `json:"rule_name"`
	Active     bool            `json:"active"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// PeriodRequest names one calendar month in a request body.
type PeriodRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// WorkflowRequest drives lock/approve/distribute transitions.
type WorkflowRequest struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Actor string `json:"actor"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toMemberActivityDTO(rec activity.MemberMonthlyActivity) MemberActivityDTO {
	return MemberActivityDTO{
		MembershipID:     string(rec.MembershipID),
		ClubID:           string(rec.ClubID),
		Year:             rec.Year,
		Month:            int(rec.Month),
		EventsRegistered: rec.EventsRegistered,
		EventsAttended:   rec.EventsAttended,
		SessionsTotal:    rec.SessionsTotal,
		SessionsPresent:  rec.SessionsPresent,
		StaffAverage:     rec.StaffAverage,
		PenaltyPoints:    rec.PenaltyPoints,
		BaseScore:        rec.BaseScore,
		ActivityLevel:    rec.ActivityLevel,
		Multiplier:       rec.Multiplier,
		FinalScore:       rec.FinalScore,
		ComputedAt:       rec.ComputedAt.Format(time.RFC3339),
	}
}

func toClubActivityDTO(rec activity.ClubMonthlyActivity) ClubActivityDTO {
	dto := ClubActivityDTO{
		ClubID:         string(rec.ClubID),
		Year:           rec.Year,
		Month:          int(rec.Month),
		TotalEvents:    rec.TotalEvents,
		AvgFeedback:    rec.AvgFeedback,
		AvgCheckinRate: rec.AvgCheckinRate,
		AvgMemberScore: rec.AvgMemberScore,
		StaffScore:     rec.StaffScore,
		ActiveMembers:  rec.ActiveMembers,
		FinalScore:     rec.FinalScore,
		AwardScore:     rec.AwardScore,
		AwardLevel:     rec.AwardLevel,
		RewardPoints:   rec.RewardPoints,
		Locked:         rec.Locked,
		LockedBy:       rec.LockedBy,
		Approved:       rec.Approved,
		DistributedBy:  rec.DistributedBy,
		ComputedAt:     rec.ComputedAt.Format(time.RFC3339),
	}
	if rec.LockedAt != nil {
		s := rec.LockedAt.Format(time.RFC3339)
		dto.LockedAt = &s
	}
	if rec.DistributedAt != nil {
		s := rec.DistributedAt.Format(time.RFC3339)
		dto.DistributedAt = &s
	}
	return dto
}

func toClubActivityDTOs(recs []activity.ClubMonthlyActivity) []ClubActivityDTO {
	dtos := make([]ClubActivityDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toClubActivityDTO(rec)
	}
	return dtos
}

func toMemberActivityDTOs(recs []activity.MemberMonthlyActivity) []MemberActivityDTO {
	dtos := make([]MemberActivityDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toMemberActivityDTO(rec)
	}
	return dtos
}

func toDistributionResultDTO(res *engine.DistributionResult) DistributionResultDTO {
	dto := DistributionResultDTO{
		ClubID:      string(res.ClubID),
		Year:        res.Year,
		Month:       int(res.Month),
		RewardPool:  res.RewardPool,
		Distributed: res.Distributed,
		Remainder:   res.Remainder,
		Transfers:   make([]TransferDTO, len(res.Transfers)),
	}
	for i, t := range res.Transfers {
		dto.Transfers[i] = TransferDTO{
			MembershipID: string(t.MembershipID),
			UserID:       string(t.UserID),
			Share:        t.Share,
			Before:       t.Before,
			After:        t.After,
		}
	}
	return dto
}

func toTransactionDTO(tx wallet.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          tx.ID,
		Owner:       tx.Owner.String(),
		Amount:      tx.Amount,
		Type:        string(tx.Type),
		Description: tx.Description,
		Reference:   tx.Reference,
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
	}
}
