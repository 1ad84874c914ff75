// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"cadence_backend/platform/events"
	"cadence_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Cadence Domain Events
// =============================================================================

// CadenceActionProcessed is published after every successfully applied
// action against a lead.
type CadenceActionProcessed struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Action         string    `json:"action"`
	Outcome        string    `json:"outcome,omitempty"`
	OldPhase       string    `json:"oldPhase"`
	NewPhase       string    `json:"newPhase"`
	OldState       string    `json:"oldState"`
	NewState       string    `json:"newState"`
	QueueTier      int       `json:"queueTier"`
	Source         string    `json:"source"`
}

func (e CadenceActionProcessed) EventName() string { return "cadence.action.processed" }

// LeadExitedCadence is published when a lead reaches a terminal or nurture
// exit state.
type LeadExitedCadence struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	ExitState      string    `json:"exitState"`
	ExitReason     string    `json:"exitReason"`
	ExitedAt       time.Time `json:"exitedAt"`
}

func (e LeadExitedCadence) EventName() string { return "cadence.lead.exited" }

// LeadReEnrolled is published when a lead starts a new enrollment cycle.
type LeadReEnrolled struct {
	BaseEvent
	LeadID          uuid.UUID `json:"leadId"`
	OrganizationID  uuid.UUID `json:"organizationId"`
	CadenceType     string    `json:"cadenceType"`
	EnrollmentCount int       `json:"enrollmentCount"`
}

func (e LeadReEnrolled) EventName() string { return "cadence.lead.reenrolled" }

// SweepCompleted is published after a maintenance sweep run.
type SweepCompleted struct {
	BaseEvent
	Status                  string `json:"status"`
	Unsnoozed               int    `json:"unsnoozed"`
	ReEnrolled              int    `json:"reEnrolled"`
	StaleEngagedMarked      int    `json:"staleEngagedMarked"`
	PhoneExhaustedMarked    int    `json:"phoneExhaustedMarked"`
	DeepProspectReactivated int    `json:"deepProspectReactivated"`
	QueueTiersRefreshed     int    `json:"queueTiersRefreshed"`
	ErrorCount              int    `json:"errorCount"`
}

func (e SweepCompleted) EventName() string { return "cadence.sweep.completed" }

// CallbackDue fires when a promised callback window opens and the callback
// is still on the books.
type CallbackDue struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	ScheduledFor   time.Time `json:"scheduledFor"`
}

func (e CallbackDue) EventName() string { return "cadence.callback.due" }
