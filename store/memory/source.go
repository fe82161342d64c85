/*
source.go - In-memory behavioral Source

PURPOSE:
  Seedable raw-record fixtures implementing engine.Source. Records are
  filtered by the requested month window on read, mirroring how the SQL
  source scopes its queries by date range.
*/
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/clubhub/activity-engine/activity"
	"github.com/clubhub/activity-engine/engine"
)

// Source holds raw behavioral records keyed by membership (and club for
// events). Zero value is not usable; call NewSource.
type Source struct {
	mu sync.RWMutex

	registrations map[activity.MembershipID][]activity.EventRegistration
	sessions      map[activity.MembershipID][]activity.SessionRecord
	evaluations   map[activity.MembershipID][]activity.StaffEvaluation
	penalties     map[activity.MembershipID][]activity.Penalty
	clubEvents    map[activity.ClubID][]activity.EventMetrics
}

var _ engine.Source = (*Source)(nil)

func NewSource() *Source {
	return &Source{
		registrations: make(map[activity.MembershipID][]activity.EventRegistration),
		sessions:      make(map[activity.MembershipID][]activity.SessionRecord),
		evaluations:   make(map[activity.MembershipID][]activity.StaffEvaluation),
		penalties:     make(map[activity.MembershipID][]activity.Penalty),
		clubEvents:    make(map[activity.ClubID][]activity.EventMetrics),
	}
}

// --- seeding ---

func (s *Source) AddRegistration(id activity.MembershipID, r activity.EventRegistration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registrations[id] = append(s.registrations[id], r)
}

func (s *Source) AddSession(id activity.MembershipID, r activity.SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = append(s.sessions[id], r)
}

func (s *Source) AddEvaluation(id activity.MembershipID, ev activity.StaffEvaluation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluations[id] = append(s.evaluations[id], ev)
}

func (s *Source) AddPenalty(id activity.MembershipID, p activity.Penalty) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.penalties[id] = append(s.penalties[id], p)
}

func (s *Source) AddClubEvent(clubID activity.ClubID, ev activity.EventMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clubEvents[clubID] = append(s.clubEvents[clubID], ev)
}

// --- engine.Source ---

func (s *Source) EventRegistrations(_ context.Context, id activity.MembershipID, w activity.MonthWindow) ([]activity.EventRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []activity.EventRegistration
	for _, r := range s.registrations[id] {
		if w.Contains(r.EventDate) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Source) SessionRecords(_ context.Context, id activity.MembershipID, w activity.MonthWindow) ([]activity.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []activity.SessionRecord
	for _, r := range s.sessions[id] {
		if w.Contains(r.At) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Source) StaffEvaluations(_ context.Context, id activity.MembershipID, w activity.MonthWindow) ([]activity.StaffEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []activity.StaffEvaluation
	for _, ev := range s.evaluations[id] {
		if w.Contains(ev.EventDate) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Source) Penalties(_ context.Context, id activity.MembershipID, w activity.MonthWindow) ([]activity.Penalty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []activity.Penalty
	for _, p := range s.penalties[id] {
		if w.Contains(p.At) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Source) ClubEvents(_ context.Context, clubID activity.ClubID, w activity.MonthWindow) ([]activity.EventMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []activity.EventMetrics
	for _, ev := range s.clubEvents[clubID] {
		if w.Contains(ev.Date) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// --- stable orderings for map-backed reads ---

func sortMemberships(ms []activity.Membership) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })
}

func sortMemberRecords(rows []activity.MemberMonthlyActivity) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].MembershipID < rows[j].MembershipID })
}

func sortClubRecords(rows []activity.ClubMonthlyActivity) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ClubID != rows[j].ClubID {
			return rows[i].ClubID < rows[j].ClubID
		}
		if rows[i].Year != rows[j].Year {
			return rows[i].Year < rows[j].Year
		}
		return rows[i].Month < rows[j].Month
	})
}
