// Package queue assigns leads to priority tiers and builds the sorted call
// queue. All functions are pure.
package queue

import (
	"sort"
	"time"

	"cadence_backend/internal/cadence/domain"
	"cadence_backend/internal/cadence/scoring"
)

// Assignment places a lead in one of nine ranked tiers plus a UI-facing
// bucket derived from the tier.
type Assignment struct {
	Tier   int    `json:"tier"`
	Bucket string `json:"bucket"`
	Reason string `json:"reason"`
}

// tierBuckets maps each tier to its UI grouping.
var tierBuckets = map[int]string{
	1: "callbacks",
	2: "fresh",
	3: "blitz",
	4: "tasks",
	5: "cadence",
	6: "active",
	7: "verify",
	8: "get_numbers",
	9: "nurture",
}

// AssignTier evaluates the tier precedence top-down, first match wins.
// Returns false when the lead's state makes it invisible to queue
// consumers, independent of its score.
func AssignTier(lead domain.Lead, now time.Time) (Assignment, bool) {
	if !domain.QueueVisibleStates[lead.State.Kind] {
		return Assignment{}, false
	}

	tier, reason := classify(lead, now)
	return Assignment{Tier: tier, Bucket: tierBuckets[tier], Reason: reason}, true
}

// classify is the core business rule: the ordering of these checks is
// exact and deliberate.
func classify(lead domain.Lead, now time.Time) (int, string) {
	if domain.DueNow(lead.CallbackScheduledFor, now) {
		return 1, "callback due"
	}

	if lead.CallAttempts == 0 && lead.Phase == domain.PhaseNew {
		return 2, "never attempted"
	}

	if (lead.Phase == domain.PhaseBlitz1 || lead.Phase == domain.PhaseBlitz2) &&
		domain.DueNow(lead.NextActionDue, now) {
		return 3, "blitz follow-up due"
	}

	if lead.HasOpenTaskDue(now) {
		return 4, "task due"
	}

	if lead.Phase == domain.PhaseTemperature && domain.DueNow(lead.NextActionDue, now) {
		return 5, "cadence step due"
	}

	// Parked states sit out the dial tiers: they stay visible for
	// long-cycle follow-up, not for validation or number hunting.
	switch lead.State.Kind {
	case domain.StateCompletedNoContact, domain.StateStaleEngaged, domain.StateLongTermNurture:
		return 9, "parked for long-cycle follow-up"
	}

	if lead.State.Kind == domain.StateActive && lead.HasValidPhone() {
		return 6, "active call queue"
	}

	if lead.HasCallablePhone() && !lead.HasValidPhone() {
		// Callable but nothing verified: validate before burning dials.
		return 7, "needs validation"
	}

	if lead.PhoneExhaustedAt == nil {
		return 8, "no callable phone"
	}

	return 9, "long-cycle nurture"
}

// Entry is one queue row: the lead, its placement, and its freshly
// recomputed score.
type Entry struct {
	Lead       domain.Lead
	Assignment Assignment
	Score      scoring.Result
}

// BuildQueue scores and tiers every visible lead and returns the sorted
// queue: tier ascending, then score descending, tie-broken by soonest
// next-action due, then earliest creation.
func BuildQueue(leads []domain.Lead, now time.Time) []Entry {
	entries := make([]Entry, 0, len(leads))
	for _, lead := range leads {
		assignment, visible := AssignTier(lead, now)
		if !visible {
			continue
		}
		entries = append(entries, Entry{
			Lead:       lead,
			Assignment: assignment,
			Score:      scoring.ComputePriority(lead, now),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Assignment.Tier != b.Assignment.Tier {
			return a.Assignment.Tier < b.Assignment.Tier
		}
		if a.Score.Score != b.Score.Score {
			return a.Score.Score > b.Score.Score
		}
		if c := compareDue(a.Lead.NextActionDue, b.Lead.NextActionDue); c != 0 {
			return c < 0
		}
		return a.Lead.CreatedAt.Before(b.Lead.CreatedAt)
	})

	return entries
}

// compareDue orders next-action timestamps soonest first, nil last.
func compareDue(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.Before(*b):
		return -1
	case b.Before(*a):
		return 1
	default:
		return 0
	}
}
