package cadence

import (
	"context"
	"sync"
	"testing"
	"time"

	"cadence_backend/internal/cadence/repository"
	"cadence_backend/internal/events"
	"cadence_backend/platform/logger"

	"github.com/google/uuid"
)

type auditRecorder struct {
	mu      sync.Mutex
	entries []repository.AuditEntry
}

func (r *auditRecorder) AppendAudit(ctx context.Context, entry repository.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func TestCallbackDueEventsLandInAuditTrail(t *testing.T) {
	log := logger.New("test")
	bus := events.NewInMemoryBus(log)
	rec := &auditRecorder{}
	registerSubscribers(bus, rec, log)

	leadID := uuid.New()
	scheduled := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	err := bus.PublishSync(context.Background(), events.CallbackDue{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         leadID,
		OrganizationID: uuid.New(),
		ScheduledFor:   scheduled,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(rec.entries))
	}
	entry := rec.entries[0]
	if entry.LeadID != leadID || entry.Action != "callback_due" || entry.Source != "scheduler" {
		t.Fatalf("unexpected audit entry %+v", entry)
	}
	if entry.NewValue != "scheduled_for="+scheduled.Format(time.RFC3339) {
		t.Fatalf("unexpected audit value %q", entry.NewValue)
	}
}

// exitImpostor carries the exit event's name without its payload shape.
type exitImpostor struct{ events.BaseEvent }

func (exitImpostor) EventName() string { return events.LeadExitedCadence{}.EventName() }

func TestExitSubscriberIsRegisteredAndTyped(t *testing.T) {
	log := logger.New("test")
	bus := events.NewInMemoryBus(log)
	registerSubscribers(bus, &auditRecorder{}, log)

	err := bus.PublishSync(context.Background(), events.LeadExitedCadence{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         uuid.New(),
		OrganizationID: uuid.New(),
		ExitState:      "EXITED_DNC",
		ExitReason:     "ANSWERED_DNC",
		ExitedAt:       time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error for a well-formed exit event: %v", err)
	}

	// A mismatched payload under the same name must surface as a handler
	// error, proving the subscription exists and checks its type.
	if err := bus.PublishSync(context.Background(), exitImpostor{BaseEvent: events.NewBaseEvent()}); err == nil {
		t.Fatal("expected an error for a mismatched event payload")
	}
}
