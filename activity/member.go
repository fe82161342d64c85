/*
member.go - Member score calculation

PURPOSE:
  Composes the four aggregator outputs into a bounded base score, resolves
  the member tier via the policy resolver, and produces the final score
  plus the matched activity level. Pure: the caller persists the result.

SCORE FORMULA:
  baseScore = 0.5*eventRatio + 0.2*sessionRatio + 0.2*staffAvg
            + 0.1*penaltyFactor, clamped to [0,1]
  basePercent = round(baseScore * 100)
  tier = resolve(MEMBER, "member-activity-score", basePercent)
  finalScore = baseScore * tier.multiplier * 100     (0-100 scale)

PENALTY FACTOR:
  A fixed internal step function, not policy-driven:
    total >= 0   -> 1.0
    total <= -50 -> 0.0
    total <= -30 -> 0.25
    total <= -15 -> 0.5
    otherwise    -> 0.75

SEE ALSO:
  - aggregate.go: Produces the inputs
  - club.go: Uses the average of stored member final scores
*/
package activity

import (
	"github.com/shopspring/decimal"

	"github.com/clubhub/activity-engine/policy"
)

var (
	weightEvents       = decimal.RequireFromString("0.5")
	weightSessions     = decimal.RequireFromString("0.2")
	weightStaff        = decimal.RequireFromString("0.2")
	weightPenalty      = decimal.RequireFromString("0.1")
	hundred            = decimal.NewFromInt(100)
	penaltyFactorFull  = decimal.NewFromInt(1)
	penaltyFactorThree = decimal.RequireFromString("0.75")
	penaltyFactorHalf  = decimal.RequireFromString("0.5")
	penaltyFactorQtr   = decimal.RequireFromString("0.25")
)

// MemberOfMonthRule is the named tier consulted for the per-club monthly
// designation. If the policy table carries no tier under this name, the
// designation leaves the regular result unchanged.
const MemberOfMonthRule = "MEMBER_OF_MONTH"

// MemberOfMonthThreshold is the minimum base score a candidate needs.
var MemberOfMonthThreshold = decimal.RequireFromString("0.8")

// PenaltyFactor maps accumulated penalty points (<= 0) onto the fixed
// internal dampening factor.
func PenaltyFactor(totalPenaltyPoints int64) decimal.Decimal {
	switch {
	case totalPenaltyPoints >= 0:
		return penaltyFactorFull
	case totalPenaltyPoints <= -50:
		return decimal.Zero
	case totalPenaltyPoints <= -30:
		return penaltyFactorQtr
	case totalPenaltyPoints <= -15:
		return penaltyFactorHalf
	default:
		return penaltyFactorThree
	}
}

// MemberInputs bundles the aggregated statistics for one membership+month.
type MemberInputs struct {
	Events   EventStats
	Sessions SessionStats
	StaffAvg decimal.Decimal // 0-1
	Penalty  int64           // <= 0
}

// MemberResult is the computed portion of a MemberMonthlyActivity row.
type MemberResult struct {
	BaseScore     decimal.Decimal // 0-1, 4 places
	BasePercent   int64
	ActivityLevel string
	Multiplier    decimal.Decimal
	FinalScore    decimal.Decimal // 0-100 scale, 2 places
}

// ComputeMemberScore blends the aggregated ratios into the base score and
// resolves the member tier. Deterministic: identical inputs yield
// byte-identical results, which is what makes recomputation idempotent.
func ComputeMemberScore(in MemberInputs, r *policy.Resolver) MemberResult {
	base := weightEvents.Mul(in.Events.Ratio).
		Add(weightSessions.Mul(in.Sessions.Ratio)).
		Add(weightStaff.Mul(in.StaffAvg)).
		Add(weightPenalty.Mul(PenaltyFactor(in.Penalty)))
	base = clamp01(base).Round(4)

	percent := base.Mul(hundred).Round(0).IntPart()
	tier := r.Resolve(policy.TargetMember, policy.DimMemberActivityScore, percent)

	return MemberResult{
		BaseScore:     base,
		BasePercent:   percent,
		ActivityLevel: tier.Name,
		Multiplier:    tier.Multiplier,
		FinalScore:    base.Mul(tier.Multiplier).Mul(hundred).Round(2),
	}
}

// ApplyMemberOfMonth re-resolves a winning record against the named
// designation tier. Returns the overridden result and true when the tier
// is configured; otherwise the input is returned unchanged.
func ApplyMemberOfMonth(rec MemberMonthlyActivity, r *policy.Resolver) (MemberMonthlyActivity, bool) {
	tier, ok := r.Named(policy.TargetMember, MemberOfMonthRule)
	if !ok {
		return rec, false
	}
	rec.ActivityLevel = tier.Name
	rec.Multiplier = tier.Multiplier
	rec.FinalScore = rec.BaseScore.Mul(tier.Multiplier).Mul(hundred).Round(2)
	return rec, true
}

// SelectMemberOfMonth picks the designation candidate among a club's rows
// for one month: the strictly highest final score with base >= 0.8. Ties
// on final score break to the lowest membership id so the outcome never
// depends on storage iteration order. Returns nil when no row qualifies.
func SelectMemberOfMonth(rows []MemberMonthlyActivity) *MemberMonthlyActivity {
	var best *MemberMonthlyActivity
	for i := range rows {
		row := &rows[i]
		if row.BaseScore.LessThan(MemberOfMonthThreshold) {
			continue
		}
		if best == nil {
			best = row
			continue
		}
		switch row.FinalScore.Cmp(best.FinalScore) {
		case 1:
			best = row
		case 0:
			if row.MembershipID < best.MembershipID {
				best = row
			}
		}
	}
	return best
}
