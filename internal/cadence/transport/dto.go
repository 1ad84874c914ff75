// Package transport defines the request and response shapes for the cadence
// HTTP API.
package transport

import (
	"time"

	"cadence_backend/internal/cadence/domain"
	"cadence_backend/internal/cadence/engine"
	"cadence_backend/internal/cadence/queue"
	"cadence_backend/internal/cadence/scoring"

	"github.com/google/uuid"
)

// ActionRequest is the body of POST /leads/:id/actions. Type selects which
// payload fields are read.
type ActionRequest struct {
	Type   string `json:"type" validate:"required,oneof=call phone_added snooze pause resume temperature_change re_enroll"`
	Source string `json:"source" validate:"omitempty,max=32"`

	PhoneID      *uuid.UUID `json:"phoneId" validate:"omitempty"`
	ResultLabel  string     `json:"resultLabel" validate:"omitempty,max=128"`
	WasAnswered  bool       `json:"wasAnswered"`
	CallbackDate *time.Time `json:"callbackDate"`

	PhoneNumber string `json:"phoneNumber" validate:"omitempty,max=32"`

	SnoozeUntil *time.Time `json:"snoozeUntil"`

	PauseReason string `json:"pauseReason" validate:"omitempty,max=256"`

	Temperature string `json:"temperature" validate:"omitempty,oneof=HOT WARM COLD ICE"`
}

// ToEngine converts the wire request into the engine's action request.
func (r ActionRequest) ToEngine() engine.ActionRequest {
	return engine.ActionRequest{
		Type:         engine.Action(r.Type),
		Source:       r.Source,
		PhoneID:      r.PhoneID,
		ResultLabel:  r.ResultLabel,
		WasAnswered:  r.WasAnswered,
		CallbackDate: r.CallbackDate,
		PhoneNumber:  r.PhoneNumber,
		SnoozeUntil:  r.SnoozeUntil,
		PauseReason:  r.PauseReason,
		Temperature:  domain.TemperatureBand(r.Temperature),
	}
}

// PhoneResponse is one phone on a lead.
type PhoneResponse struct {
	ID                  uuid.UUID  `json:"id"`
	Number              string     `json:"number"`
	Type                string     `json:"type"`
	Status              string     `json:"status"`
	AttemptCount        int        `json:"attemptCount"`
	ConsecutiveNoAnswer int        `json:"consecutiveNoAnswer"`
	LastAttemptAt       *time.Time `json:"lastAttemptAt,omitempty"`
	LastOutcome         string     `json:"lastOutcome,omitempty"`
}

// LeadResponse is the cadence view of a lead.
type LeadResponse struct {
	ID                   uuid.UUID       `json:"id"`
	Temperature          string          `json:"temperature"`
	Phase                string          `json:"phase"`
	State                string          `json:"state"`
	SnoozedUntil         *time.Time      `json:"snoozedUntil,omitempty"`
	PausedReason         string          `json:"pausedReason,omitempty"`
	ExitedAt             *time.Time      `json:"exitedAt,omitempty"`
	ExitReason           string          `json:"exitReason,omitempty"`
	CadenceType          string          `json:"cadenceType,omitempty"`
	CadenceStep          int             `json:"cadenceStep"`
	EnrolledAt           *time.Time      `json:"enrolledAt,omitempty"`
	BlitzAttempts        int             `json:"blitzAttempts"`
	EnrollmentCount      int             `json:"enrollmentCount"`
	HasEngaged           bool            `json:"hasEngaged"`
	CallAttempts         int             `json:"callAttempts"`
	LastContactedAt      *time.Time      `json:"lastContactedAt,omitempty"`
	LastContactResult    string          `json:"lastContactResult,omitempty"`
	NextActionDue        *time.Time      `json:"nextActionDue,omitempty"`
	NextActionType       string          `json:"nextActionType,omitempty"`
	CallbackScheduledFor *time.Time      `json:"callbackScheduledFor,omitempty"`
	PhoneExhaustedAt     *time.Time      `json:"phoneExhaustedAt,omitempty"`
	ReEnrollmentDate     *time.Time      `json:"reEnrollmentDate,omitempty"`
	PriorityScore        int             `json:"priorityScore"`
	Phones               []PhoneResponse `json:"phones"`
}

// ActionResponse is the result of applying one action.
type ActionResponse struct {
	Lead       LeadResponse   `json:"lead"`
	Outcome    string         `json:"outcome,omitempty"`
	ResultType string         `json:"resultType,omitempty"`
	QueueTier  int            `json:"queueTier,omitempty"`
	Score      scoring.Result `json:"score"`
}

// QueueEntryResponse is one prioritized slot in the call queue.
type QueueEntryResponse struct {
	LeadID        uuid.UUID  `json:"leadId"`
	Tier          int        `json:"tier"`
	Bucket        string     `json:"bucket"`
	Reason        string     `json:"reason"`
	Score         int        `json:"score"`
	Phase         string     `json:"phase"`
	State         string     `json:"state"`
	NextActionDue *time.Time `json:"nextActionDue,omitempty"`
	NextAction    string     `json:"nextAction,omitempty"`
}

func NewLeadResponse(lead domain.Lead) LeadResponse {
	phones := make([]PhoneResponse, 0, len(lead.Phones))
	for _, p := range lead.Phones {
		phones = append(phones, PhoneResponse{
			ID:                  p.ID,
			Number:              p.Number,
			Type:                string(p.Type),
			Status:              string(p.Status),
			AttemptCount:        p.AttemptCount,
			ConsecutiveNoAnswer: p.ConsecutiveNoAnswer,
			LastAttemptAt:       p.LastAttemptAt,
			LastOutcome:         string(p.LastOutcome),
		})
	}

	return LeadResponse{
		ID:                   lead.ID,
		Temperature:          string(lead.Temperature),
		Phase:                string(lead.Phase),
		State:                string(lead.State.Kind),
		SnoozedUntil:         lead.State.SnoozedUntil,
		PausedReason:         lead.State.PausedReason,
		ExitedAt:             lead.State.ExitedAt,
		ExitReason:           lead.State.ExitReason,
		CadenceType:          string(lead.CadenceType),
		CadenceStep:          lead.CadenceStep,
		EnrolledAt:           lead.EnrolledAt,
		BlitzAttempts:        lead.BlitzAttempts,
		EnrollmentCount:      lead.EnrollmentCount,
		HasEngaged:           lead.HasEngaged,
		CallAttempts:         lead.CallAttempts,
		LastContactedAt:      lead.LastContactedAt,
		LastContactResult:    string(lead.LastContactResult),
		NextActionDue:        lead.NextActionDue,
		NextActionType:       string(lead.NextActionType),
		CallbackScheduledFor: lead.CallbackScheduledFor,
		PhoneExhaustedAt:     lead.PhoneExhaustedAt,
		ReEnrollmentDate:     lead.ReEnrollmentDate,
		PriorityScore:        lead.PriorityScore,
		Phones:               phones,
	}
}

func NewActionResponse(result engine.ActionResult) ActionResponse {
	return ActionResponse{
		Lead:       NewLeadResponse(result.Lead),
		Outcome:    string(result.Outcome),
		ResultType: string(result.ResultType),
		QueueTier:  result.QueueTier,
		Score:      result.Score,
	}
}

func NewQueueResponse(entries []queue.Entry) []QueueEntryResponse {
	out := make([]QueueEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, QueueEntryResponse{
			LeadID:        entry.Lead.ID,
			Tier:          entry.Assignment.Tier,
			Bucket:        entry.Assignment.Bucket,
			Reason:        entry.Assignment.Reason,
			Score:         entry.Score.Score,
			Phase:         string(entry.Lead.Phase),
			State:         string(entry.Lead.State.Kind),
			NextActionDue: entry.Lead.NextActionDue,
			NextAction:    string(entry.Lead.NextActionType),
		})
	}
	return out
}
