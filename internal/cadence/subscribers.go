package cadence

import (
	"context"
	"fmt"
	"time"

	"cadence_backend/internal/cadence/repository"
	"cadence_backend/internal/events"
	"cadence_backend/platform/logger"
)

// auditWriter is the slice of the store the event subscribers need.
type auditWriter interface {
	AppendAudit(ctx context.Context, entry repository.AuditEntry) error
}

// registerSubscribers wires the module's event consumers: callback reminders
// fired by the scheduler land in the audit trail, and cadence exits feed the
// operational log.
func registerSubscribers(bus events.Bus, store auditWriter, log *logger.Logger) {
	bus.Subscribe(events.CallbackDue{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		due, ok := event.(events.CallbackDue)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event, events.CallbackDue{}.EventName())
		}
		return store.AppendAudit(ctx, repository.AuditEntry{
			LeadID:    due.LeadID,
			Action:    "callback_due",
			NewValue:  "scheduled_for=" + due.ScheduledFor.Format(time.RFC3339),
			Source:    "scheduler",
			CreatedAt: due.OccurredAt(),
		})
	}))

	bus.Subscribe(events.LeadExitedCadence{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		exited, ok := event.(events.LeadExitedCadence)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event, events.LeadExitedCadence{}.EventName())
		}
		log.Info("lead exited cadence",
			"lead_id", exited.LeadID,
			"exit_state", exited.ExitState,
			"exit_reason", exited.ExitReason,
		)
		return nil
	}))
}
