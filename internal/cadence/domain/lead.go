// Package domain provides core types and business rules for the lead
// cadence bounded context.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TemperatureBand classifies how hot a prospect is.
type TemperatureBand string

const (
	BandHot  TemperatureBand = "HOT"
	BandWarm TemperatureBand = "WARM"
	BandCold TemperatureBand = "COLD"
	BandIce  TemperatureBand = "ICE"
)

// CadencePhase is the macro stage of first-contact effort.
type CadencePhase string

const (
	PhaseNew          CadencePhase = "NEW"
	PhaseBlitz1       CadencePhase = "BLITZ_1"
	PhaseDeepProspect CadencePhase = "DEEP_PROSPECT"
	PhaseBlitz2       CadencePhase = "BLITZ_2"
	PhaseTemperature  CadencePhase = "TEMPERATURE"
	PhaseCompleted    CadencePhase = "COMPLETED"
	PhaseEngaged      CadencePhase = "ENGAGED"
	PhaseNurture      CadencePhase = "NURTURE"
)

// CadenceType names the template governing the TEMPERATURE phase.
type CadenceType string

const (
	CadenceHot    CadenceType = "HOT"
	CadenceWarm   CadenceType = "WARM"
	CadenceCold   CadenceType = "COLD"
	CadenceIce    CadenceType = "ICE"
	CadenceGentle CadenceType = "GENTLE"
	CadenceAnnual CadenceType = "ANNUAL"
)

// ActionType is the contact channel a cadence step uses.
type ActionType string

const (
	ActionCall ActionType = "CALL"
	ActionSMS  ActionType = "SMS"
	ActionRVM  ActionType = "RVM"
)

// MotivationUrgency tiers a seller motivation signal.
type MotivationUrgency string

const (
	UrgencyHigh   MotivationUrgency = "HIGH"
	UrgencyMedium MotivationUrgency = "MEDIUM"
	UrgencyLow    MotivationUrgency = "LOW"
)

// Motivation is one seller motivation signal attached to a lead.
type Motivation struct {
	Kind    string
	Urgency MotivationUrgency
}

// PhoneType ranks contact channels; mobile outranks everything else.
type PhoneType string

const (
	PhoneMobile   PhoneType = "mobile"
	PhoneVOIP     PhoneType = "voip"
	PhoneLandline PhoneType = "landline"
	PhoneUnknown  PhoneType = "unknown"
)

// PhoneStatus tracks whether a number is still worth dialing.
type PhoneStatus string

const (
	PhoneValid        PhoneStatus = "VALID"
	PhoneUnverified   PhoneStatus = "UNVERIFIED"
	PhoneWrong        PhoneStatus = "WRONG"
	PhoneDisconnected PhoneStatus = "DISCONNECTED"
	PhoneDNC          PhoneStatus = "DNC"
)

// Phone is one phone number belonging to a lead.
type Phone struct {
	ID                  uuid.UUID
	LeadID              uuid.UUID
	Number              string
	Type                PhoneType
	Status              PhoneStatus
	AttemptCount        int
	ConsecutiveNoAnswer int
	LastAttemptAt       *time.Time
	LastOutcome         Outcome
	CreatedAt           time.Time
}

// Callable reports whether the number is still worth dialing.
func (p Phone) Callable() bool {
	return p.Status == PhoneValid || p.Status == PhoneUnverified
}

// Task is a follow-up item an agent attached to a lead.
type Task struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	Title       string
	DueAt       *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// Overdue reports whether the task is open and past due.
func (t Task) Overdue(now time.Time) bool {
	return t.CompletedAt == nil && t.DueAt != nil && t.DueAt.Before(startOfDay(now))
}

// DueToday reports whether the task is open and due today.
func (t Task) DueToday(now time.Time) bool {
	if t.CompletedAt != nil || t.DueAt == nil {
		return false
	}
	day := startOfDay(now)
	return !t.DueAt.Before(day) && t.DueAt.Before(day.Add(24*time.Hour))
}

// Lead is the unit of work for the cadence engine. All cadence-relevant
// fields are present and defaulted so the engine never needs defensive
// casts; schema evolution is additive fields with explicit defaults.
type Lead struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Temperature    TemperatureBand
	StatusCategory string
	Motivations    []Motivation
	Tags           []string

	Phase           CadencePhase
	State           CadenceState
	CadenceType     CadenceType
	CadenceStep     int
	CadenceProgress int
	EnrolledAt      *time.Time

	BlitzAttempts    int
	NoResponseStreak int
	EnrollmentCount  int
	HasEngaged       bool
	CallAttempts     int

	LastContactedAt   *time.Time
	LastContactType   string
	LastContactResult Outcome

	NextActionDue  *time.Time
	NextActionType ActionType

	CallbackScheduledFor *time.Time
	CallbackRequestedAt  *time.Time

	PhoneExhaustedAt      *time.Time
	DeepProspectEnteredAt *time.Time
	ReEnrollmentDate      *time.Time

	// PriorityScore is derived, never authoritative; it is recomputed on read.
	PriorityScore int

	Phones []Phone
	Tasks  []Task
}

// HasCallablePhone reports whether any phone is still worth dialing.
func (l Lead) HasCallablePhone() bool {
	for _, p := range l.Phones {
		if p.Callable() {
			return true
		}
	}
	return false
}

// HasValidPhone reports whether any phone has been verified good.
func (l Lead) HasValidPhone() bool {
	for _, p := range l.Phones {
		if p.Status == PhoneValid {
			return true
		}
	}
	return false
}

// HasMobilePhone reports whether any callable phone is a mobile line.
func (l Lead) HasMobilePhone() bool {
	for _, p := range l.Phones {
		if p.Callable() && p.Type == PhoneMobile {
			return true
		}
	}
	return false
}

// HasOpenTaskDue reports whether any task is overdue or due today.
func (l Lead) HasOpenTaskDue(now time.Time) bool {
	for _, t := range l.Tasks {
		if t.Overdue(now) || t.DueToday(now) {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// StartOfDay exposes day truncation for due-date comparisons.
func StartOfDay(t time.Time) time.Time { return startOfDay(t) }

// DueNow reports whether a scheduled time counts as due relative to now,
// treating anything scheduled for today or earlier as due.
func DueNow(scheduled *time.Time, now time.Time) bool {
	if scheduled == nil {
		return false
	}
	return scheduled.Before(startOfDay(now).Add(24 * time.Hour))
}
