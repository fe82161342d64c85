/*
factory.go - JSON policy form and default tier presets

PURPOSE:
  The multiplier policy table is managed outside this engine (admin UI,
  migrations). This file defines its JSON interchange form, so seed data
  and admin tooling stay configuration rather than code, plus a default
  preset used to seed development databases.

JSON SCHEMA:
  [
    {
      "id": "member-active",
      "target": "MEMBER",
      "dimension": "member-activity-score",
      "min": 70,
      "max": 89,
      "multiplier": "1.1",
      "rule_name": "ACTIVE",
      "active": true
    }
  ]

  "max" omitted or null means unbounded above. "multiplier" is a decimal
  string to avoid float drift in config files.
*/
package policy

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// JSON FORM
// =============================================================================

// PolicyJSON is the JSON representation of one tier row.
type PolicyJSON struct {
	ID         string `json:"id"`
	Target     string `json:"target"`
	Dimension  string `json:"dimension"`
	Min        int64  `json:"min"`
	Max        *int64 `json:"max,omitempty"`
	Multiplier string `json:"multiplier"`
	RuleName   string `json:"rule_name"`
	Active     bool   `json:"active"`
}

// ParsePolicies converts the JSON tier list into MultiplierPolicy rows.
func ParsePolicies(data []byte) ([]MultiplierPolicy, error) {
	var raw []PolicyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse policy JSON: %w", err)
	}

	rows := make([]MultiplierPolicy, 0, len(raw))
	for i, pj := range raw {
		row, err := fromJSON(pj)
		if err != nil {
			return nil, fmt.Errorf("policy %d (%s): %w", i, pj.ID, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func fromJSON(pj PolicyJSON) (MultiplierPolicy, error) {
	switch TargetKind(pj.Target) {
	case TargetMember, TargetClub:
	default:
		return MultiplierPolicy{}, fmt.Errorf("unknown target %q", pj.Target)
	}
	if pj.Dimension == "" {
		return MultiplierPolicy{}, fmt.Errorf("dimension is required")
	}
	if pj.Max != nil && *pj.Max < pj.Min {
		return MultiplierPolicy{}, fmt.Errorf("max %d below min %d", *pj.Max, pj.Min)
	}
	mult, err := decimal.NewFromString(pj.Multiplier)
	if err != nil {
		return MultiplierPolicy{}, fmt.Errorf("bad multiplier %q: %w", pj.Multiplier, err)
	}
	return MultiplierPolicy{
		ID:         pj.ID,
		Target:     TargetKind(pj.Target),
		Dimension:  pj.Dimension,
		Min:        pj.Min,
		Max:        pj.Max,
		Multiplier: mult,
		RuleName:   pj.RuleName,
		Active:     pj.Active,
	}, nil
}

// =============================================================================
// DEFAULT PRESET - Seed data for development databases
// =============================================================================

// DefaultPolicies returns the standard tier set. Production systems load
// tiers from the policy table instead; this preset keeps dev and test
// environments behaving like a configured deployment.
func DefaultPolicies() []MultiplierPolicy {
	d := decimal.RequireFromString
	max := func(v int64) *int64 { return &v }

	return []MultiplierPolicy{
		// Member activity score (input: basePercent 0-100)
		{ID: "member-low", Target: TargetMember, Dimension: DimMemberActivityScore,
			Min: 0, Max: max(39), Multiplier: d("0.8"), RuleName: "LOW", Active: true},
		{ID: "member-normal", Target: TargetMember, Dimension: DimMemberActivityScore,
			Min: 40, Max: max(69), Multiplier: d("1.0"), RuleName: "NORMAL", Active: true},
		{ID: "member-active", Target: TargetMember, Dimension: DimMemberActivityScore,
			Min: 70, Max: max(89), Multiplier: d("1.1"), RuleName: "ACTIVE", Active: true},
		{ID: "member-full", Target: TargetMember, Dimension: DimMemberActivityScore,
			Min: 90, Max: nil, Multiplier: d("1.2"), RuleName: "FULL", Active: true},

		// Member-of-month designation, looked up by name
		{ID: "member-of-month", Target: TargetMember, Dimension: DimMemberActivityScore,
			Min: 101, Max: nil, Multiplier: d("1.5"), RuleName: "MEMBER_OF_MONTH", Active: true},

		// Club capacity (input: active member count)
		{ID: "club-size-small", Target: TargetClub, Dimension: DimClubMemberSize,
			Min: 0, Max: max(14), Multiplier: d("0.9"), RuleName: "SMALL", Active: true},
		{ID: "club-size-medium", Target: TargetClub, Dimension: DimClubMemberSize,
			Min: 15, Max: max(49), Multiplier: d("1.0"), RuleName: "MEDIUM", Active: true},
		{ID: "club-size-large", Target: TargetClub, Dimension: DimClubMemberSize,
			Min: 50, Max: nil, Multiplier: d("1.1"), RuleName: "LARGE", Active: true},

		// Club activity quality (input: round(finalScore))
		{ID: "club-quality-base", Target: TargetClub, Dimension: DimClubActivityQuality,
			Min: 0, Max: max(49), Multiplier: d("0.9"), RuleName: "BASE", Active: true},
		{ID: "club-quality-solid", Target: TargetClub, Dimension: DimClubActivityQuality,
			Min: 50, Max: max(79), Multiplier: d("1.0"), RuleName: "SOLID", Active: true},
		{ID: "club-quality-high", Target: TargetClub, Dimension: DimClubActivityQuality,
			Min: 80, Max: nil, Multiplier: d("1.15"), RuleName: "HIGH", Active: true},

		// Club award level (input: round(awardScore)); multiplier unused here,
		// only the rule name feeds the stored award level tag
		{ID: "club-award-bronze", Target: TargetClub, Dimension: DimClubAwardLevel,
			Min: 0, Max: max(49), Multiplier: d("1.0"), RuleName: "BRONZE", Active: true},
		{ID: "club-award-silver", Target: TargetClub, Dimension: DimClubAwardLevel,
			Min: 50, Max: max(79), Multiplier: d("1.0"), RuleName: "SILVER", Active: true},
		{ID: "club-award-gold", Target: TargetClub, Dimension: DimClubAwardLevel,
			Min: 80, Max: nil, Multiplier: d("1.0"), RuleName: "GOLD", Active: true},
	}
}
