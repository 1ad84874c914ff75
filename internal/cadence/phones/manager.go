// Package phones decides which number to dial next and how call outcomes
// change a phone's standing. All functions are pure.
package phones

import (
	"sort"
	"time"

	"cadence_backend/internal/cadence/domain"

	"github.com/google/uuid"
)

// rotationThreshold is how many consecutive no-answers on a phone push the
// rotation to the next-ranked number.
const rotationThreshold = 2

// typePriority ranks channels; lower is better. Mobile lines answer most.
var typePriority = map[domain.PhoneType]int{
	domain.PhoneMobile:   0,
	domain.PhoneVOIP:     1,
	domain.PhoneLandline: 2,
	domain.PhoneUnknown:  3,
}

// statusPriority ranks callable statuses; lower is better.
var statusPriority = map[domain.PhoneStatus]int{
	domain.PhoneValid:      0,
	domain.PhoneUnverified: 1,
}

// NextPhoneToCall picks the best phone to dial, or nil when none is
// callable. Ranking: rotation bucket (each full run of consecutive
// no-answers pushes a phone one bucket down), then type, then status, then
// fewest consecutive no-answers, so the least-fatigued best channel always
// comes first.
func NextPhoneToCall(phones []domain.Phone) *domain.Phone {
	callable := make([]domain.Phone, 0, len(phones))
	for _, p := range phones {
		if p.Callable() {
			callable = append(callable, p)
		}
	}
	if len(callable) == 0 {
		return nil
	}

	sort.SliceStable(callable, func(i, j int) bool {
		a, b := callable[i], callable[j]
		if ab, bb := a.ConsecutiveNoAnswer/rotationThreshold, b.ConsecutiveNoAnswer/rotationThreshold; ab != bb {
			return ab < bb
		}
		if at, bt := typePriority[a.Type], typePriority[b.Type]; at != bt {
			return at < bt
		}
		if as, bs := statusPriority[a.Status], statusPriority[b.Status]; as != bs {
			return as < bs
		}
		return a.ConsecutiveNoAnswer < b.ConsecutiveNoAnswer
	})

	best := callable[0]
	return &best
}

// StatusUpdate is the full post-call field set for one phone.
type StatusUpdate struct {
	PhoneID             uuid.UUID
	Status              domain.PhoneStatus
	AttemptCount        int
	ConsecutiveNoAnswer int
	LastAttemptAt       time.Time
	LastOutcome         domain.Outcome
}

// UpdateAfterCall computes the phone's new standing after one outcome.
// A contact-made outcome clears the fatigue counter; rotation away from a
// fatigued phone retains its counter so it stays deprioritized.
func UpdateAfterCall(p domain.Phone, outcome domain.Outcome, now time.Time) StatusUpdate {
	update := StatusUpdate{
		PhoneID:             p.ID,
		Status:              p.Status,
		AttemptCount:        p.AttemptCount + 1,
		ConsecutiveNoAnswer: p.ConsecutiveNoAnswer,
		LastAttemptAt:       now,
		LastOutcome:         outcome,
	}

	switch outcome {
	case domain.OutcomeWrongNumber:
		update.Status = domain.PhoneWrong
	case domain.OutcomeDisconnected:
		update.Status = domain.PhoneDisconnected
	case domain.OutcomeAnsweredDNC:
		// Only this number is burned; whether the whole lead exits is the
		// phase manager's call.
		update.Status = domain.PhoneDNC
	}

	if outcome.IsContact() {
		update.ConsecutiveNoAnswer = 0
	} else if outcome == domain.OutcomeNoAnswer || outcome == domain.OutcomeLeftVoicemail {
		update.ConsecutiveNoAnswer = p.ConsecutiveNoAnswer + 1
	}

	return update
}

// ShouldMarkExhausted reports whether every known phone is non-callable.
// This is the trigger for moving a lead into DEEP_PROSPECT.
func ShouldMarkExhausted(phones []domain.Phone) bool {
	if len(phones) == 0 {
		return true
	}
	for _, p := range phones {
		if p.Callable() {
			return false
		}
	}
	return true
}

// Apply merges a StatusUpdate back onto a phone value.
func Apply(p domain.Phone, update StatusUpdate) domain.Phone {
	p.Status = update.Status
	p.AttemptCount = update.AttemptCount
	p.ConsecutiveNoAnswer = update.ConsecutiveNoAnswer
	at := update.LastAttemptAt
	p.LastAttemptAt = &at
	p.LastOutcome = update.LastOutcome
	return p
}
