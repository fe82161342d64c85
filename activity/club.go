/*
club.go - Club score calculation

PURPOSE:
  Composes per-club event/feedback/checkin metrics with the average of the
  club's already-computed member final scores and its staff performance,
  then applies the two-stage policy lookup (capacity tier x quality tier)
  to produce the award score, award level, and reward-point quota.

SCORE FORMULA:
  finalScore = 0.30*normalize(totalEvents, 10)
             + 0.25*(avgFeedback*20)
             + 0.15*(avgCheckinRate*100)
             + 0.20*avgMemberScore
             + 0.10*staffScore
  where normalize(v, max) = min(v/max, 1)*100.

AWARD:
  capacity = resolve(CLUB, "club-member-size", activeMemberCount)
  quality  = resolve(CLUB, "club-activity-quality", round(finalScore))
  awardScore  = finalScore * capacity * quality
  awardLevel  = resolve(CLUB, "club-award-level", round(awardScore)).name
  rewardPoints = round(awardScore * 50)

The 50-point base conversion rate is a design constant of the platform,
deliberately not policy-driven.
*/
package activity

import (
	"github.com/shopspring/decimal"

	"github.com/clubhub/activity-engine/policy"
)

var (
	weightClubEvents   = decimal.RequireFromString("0.30")
	weightClubFeedback = decimal.RequireFromString("0.25")
	weightClubCheckin  = decimal.RequireFromString("0.15")
	weightClubMembers  = decimal.RequireFromString("0.20")
	weightClubStaff    = decimal.RequireFromString("0.10")
	feedbackScale      = decimal.NewFromInt(20) // 1-5 rating onto 0-100
	eventTarget        = decimal.NewFromInt(10) // events/month for a full event score
)

// RewardPointRate converts an award score into the monthly reward pool.
const RewardPointRate = 50

// ClubInputs bundles the month's aggregated metrics for one club.
type ClubInputs struct {
	TotalEvents    int64
	AvgFeedback    decimal.Decimal // 1-5 scale, 0 when no feedback
	AvgCheckinRate decimal.Decimal // 0-1, 0 when no events
	AvgMemberScore decimal.Decimal // mean of member final scores, 0-100
	StaffScore     decimal.Decimal // 0-100
	ActiveMembers  int64
}

// ClubResult is the computed portion of a ClubMonthlyActivity row.
type ClubResult struct {
	FinalScore   decimal.Decimal // 2 places
	AwardScore   decimal.Decimal // 2 places
	AwardLevel   string
	RewardPoints int64
}

// normalizeCount maps a count onto 0-100 against a target maximum.
func normalizeCount(v int64, max decimal.Decimal) decimal.Decimal {
	ratio := decimal.NewFromInt(v).Div(max)
	if ratio.GreaterThan(weightFull) {
		ratio = weightFull
	}
	return ratio.Mul(hundred)
}

// ComputeClubScore blends the club metrics and applies the two-stage
// policy refinement. Pure and deterministic, like the member calculator.
func ComputeClubScore(in ClubInputs, r *policy.Resolver) ClubResult {
	final := weightClubEvents.Mul(normalizeCount(in.TotalEvents, eventTarget)).
		Add(weightClubFeedback.Mul(in.AvgFeedback.Mul(feedbackScale))).
		Add(weightClubCheckin.Mul(in.AvgCheckinRate.Mul(hundred))).
		Add(weightClubMembers.Mul(in.AvgMemberScore)).
		Add(weightClubStaff.Mul(in.StaffScore))
	final = final.Round(2)

	capacity := r.Resolve(policy.TargetClub, policy.DimClubMemberSize, in.ActiveMembers)
	quality := r.Resolve(policy.TargetClub, policy.DimClubActivityQuality, final.Round(0).IntPart())

	award := final.Mul(capacity.Multiplier).Mul(quality.Multiplier).Round(2)
	level := r.Resolve(policy.TargetClub, policy.DimClubAwardLevel, award.Round(0).IntPart())

	return ClubResult{
		FinalScore:   final,
		AwardScore:   award,
		AwardLevel:   level.Name,
		RewardPoints: award.Mul(decimal.NewFromInt(RewardPointRate)).Round(0).IntPart(),
	}
}

// EventContributionWeight is the heuristic attribution used by the
// per-event contribution read path:
// (feedback*20)*0.6 + (checkinRate*100)*0.4.
func EventContributionWeight(e EventMetrics) decimal.Decimal {
	return e.Feedback.Mul(feedbackScale).Mul(decimal.RequireFromString("0.6")).
		Add(e.CheckinRate.Mul(hundred).Mul(decimal.RequireFromString("0.4"))).
		Round(2)
}
