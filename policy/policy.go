/*
Package policy provides tiered multiplier policy resolution.

PURPOSE:
  Converts a raw numeric input (an activity percentage, a member count, an
  award score) into a multiplier and a named level, using configured tiers
  instead of hard-coded thresholds. The policy table is externally managed;
  this package only defines its read contract.

RESOLUTION CONTRACT:
  For a given (target kind, dimension), active tiers are consulted in
  ascending Min order and the FIRST tier whose inclusive range contains
  the input wins. Max is nullable: nil means unbounded above. If no tier
  matches, the system default applies: multiplier 1.0, level "NORMAL".

EXAMPLE:
  tiers := []policy.MultiplierPolicy{
      {Target: policy.TargetMember, Dimension: policy.DimMemberActivityScore,
       Min: 70, Max: ptr(int64(89)), Multiplier: d("1.1"), RuleName: "ACTIVE"},
  }
  r := policy.NewResolver(tiers)
  tier := r.Resolve(policy.TargetMember, policy.DimMemberActivityScore, 83)
  // tier.Name == "ACTIVE", tier.Multiplier == 1.1

SEE ALSO:
  - factory.go: JSON form and default tier presets
*/
package policy

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POLICY ROW - One configured tier
// =============================================================================

// TargetKind selects which side of the platform a tier applies to.
type TargetKind string

const (
	TargetMember TargetKind = "MEMBER"
	TargetClub   TargetKind = "CLUB"
)

// Dimensions consulted by the engine. The table may carry others; unknown
// dimensions simply never match a lookup.
const (
	DimMemberActivityScore = "member-activity-score"
	DimClubMemberSize      = "club-member-size"
	DimClubActivityQuality = "club-activity-quality"
	DimClubAwardLevel      = "club-award-level"
)

// MultiplierPolicy is one configuration row of the policy table.
// The range [Min, Max] is inclusive; Max == nil means unbounded.
type MultiplierPolicy struct {
	ID         string
	Target     TargetKind
	Dimension  string
	Min        int64
	Max        *int64
	Multiplier decimal.Decimal
	RuleName   string
	Active     bool
}

// Contains reports whether v falls inside the tier's inclusive range.
func (p MultiplierPolicy) Contains(v int64) bool {
	if v < p.Min {
		return false
	}
	return p.Max == nil || v <= *p.Max
}

// =============================================================================
// RESOLVED TIER
// =============================================================================

// Tier is the outcome of a resolution: the level tag and its multiplier.
type Tier struct {
	Name       string
	Multiplier decimal.Decimal
}

// DefaultTier is the system fallback when no configured tier matches.
func DefaultTier() Tier {
	return Tier{Name: "NORMAL", Multiplier: decimal.NewFromInt(1)}
}

// =============================================================================
// RESOLVER - Pure, stateless lookup over an ordered tier list
// =============================================================================

// Resolver answers tier lookups over a read-only, pre-sorted policy list.
// Construct once from the externally-managed table; resolution itself
// never touches storage.
type Resolver struct {
	byDimension map[dimensionKey][]MultiplierPolicy
	byName      map[nameKey]MultiplierPolicy
}

type dimensionKey struct {
	Target    TargetKind
	Dimension string
}

type nameKey struct {
	Target TargetKind
	Name   string
}

// NewResolver indexes the given rows. Inactive rows are dropped; within a
// (target, dimension) group rows are sorted ascending by Min so the first
// containing range wins deterministically.
func NewResolver(rows []MultiplierPolicy) *Resolver {
	r := &Resolver{
		byDimension: make(map[dimensionKey][]MultiplierPolicy),
		byName:      make(map[nameKey]MultiplierPolicy),
	}
	for _, row := range rows {
		if !row.Active {
			continue
		}
		dk := dimensionKey{Target: row.Target, Dimension: row.Dimension}
		r.byDimension[dk] = append(r.byDimension[dk], row)

		nk := nameKey{Target: row.Target, Name: row.RuleName}
		if _, exists := r.byName[nk]; !exists {
			r.byName[nk] = row
		}
	}
	for dk := range r.byDimension {
		rows := r.byDimension[dk]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Min < rows[j].Min })
		r.byDimension[dk] = rows
	}
	return r
}

// Resolve returns the first matching tier for the input, or the system
// default when nothing matches.
func (r *Resolver) Resolve(target TargetKind, dimension string, value int64) Tier {
	for _, row := range r.byDimension[dimensionKey{Target: target, Dimension: dimension}] {
		if row.Contains(value) {
			return Tier{Name: row.RuleName, Multiplier: row.Multiplier}
		}
	}
	return DefaultTier()
}

// Named returns the tier configured under the given rule name for the
// target kind, if any. Used for designations like MEMBER_OF_MONTH that
// are looked up by name rather than by range.
func (r *Resolver) Named(target TargetKind, name string) (Tier, bool) {
	row, ok := r.byName[nameKey{Target: target, Name: name}]
	if !ok {
		return Tier{}, false
	}
	return Tier{Name: row.RuleName, Multiplier: row.Multiplier}, true
}
