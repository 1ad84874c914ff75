package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cadence_backend/internal/cadence/domain"
	"cadence_backend/internal/cadence/phase"
	"cadence_backend/internal/cadence/phones"
	"cadence_backend/internal/cadence/repository"
	"cadence_backend/internal/cadence/scoring"
	"cadence_backend/internal/events"

	"golang.org/x/sync/errgroup"

	"github.com/google/uuid"
)

const (
	SweepStatusCompleted = "COMPLETED"
	SweepStatusPartial   = "PARTIAL"
)

// SweepSummary reports what one maintenance run changed.
type SweepSummary struct {
	Status                  string    `json:"status"`
	StartedAt               time.Time `json:"startedAt"`
	FinishedAt              time.Time `json:"finishedAt"`
	Unsnoozed               int       `json:"unsnoozed"`
	ReEnrolled              int       `json:"reEnrolled"`
	StaleEngagedMarked      int       `json:"staleEngagedMarked"`
	PhoneExhaustedMarked    int       `json:"phoneExhaustedMarked"`
	DeepProspectReactivated int       `json:"deepProspectReactivated"`
	QueueTiersRefreshed     int       `json:"queueTiersRefreshed"`
	Errors                  []string  `json:"errors,omitempty"`
}

// sweepRun accumulates counters across concurrent lead workers.
type sweepRun struct {
	mu      sync.Mutex
	summary SweepSummary
}

func (s *sweepRun) add(field *int, n int) {
	s.mu.Lock()
	*field += n
	s.mu.Unlock()
}

func (s *sweepRun) fail(leadID uuid.UUID, pass string, err error) {
	s.mu.Lock()
	s.summary.Errors = append(s.summary.Errors, fmt.Sprintf("%s: lead %s: %v", pass, leadID, err))
	s.mu.Unlock()
}

// RunSweep executes the daily maintenance passes. Every mutation is
// conditional on the lead's current state, so re-running a sweep after a
// crash repeats no work. A failing lead is recorded and skipped; the sweep
// itself only aborts when the context is cancelled.
func (e *Engine) RunSweep(ctx context.Context) (SweepSummary, error) {
	run := &sweepRun{}
	run.summary.StartedAt = e.now()

	passes := []struct {
		name  string
		kinds []domain.StateKind
		fn    func(context.Context, *sweepRun, domain.Lead) error
	}{
		{"unsnooze", []domain.StateKind{domain.StateSnoozed}, e.sweepUnsnooze},
		{"stale_engaged", []domain.StateKind{domain.StateExitedEngaged}, e.sweepStaleEngaged},
		{"re_enroll", []domain.StateKind{domain.StateCompletedNoContact, domain.StateExitedEngaged, domain.StateStaleEngaged, domain.StateLongTermNurture}, e.sweepReEnroll},
		{"phone_health", []domain.StateKind{domain.StateActive}, e.sweepPhoneHealth},
		{"queue_refresh", []domain.StateKind{domain.StateActive, domain.StateStaleEngaged, domain.StateCompletedNoContact, domain.StateLongTermNurture}, e.sweepQueueRefresh},
	}

	for _, pass := range passes {
		if err := e.forEachLead(ctx, pass.name, pass.kinds, run, pass.fn); err != nil {
			run.summary.Status = SweepStatusPartial
			run.summary.FinishedAt = e.now()
			return run.summary, err
		}
	}

	run.summary.FinishedAt = e.now()
	if len(run.summary.Errors) > 0 {
		run.summary.Status = SweepStatusPartial
	} else {
		run.summary.Status = SweepStatusCompleted
	}

	if e.bus != nil {
		e.bus.Publish(ctx, events.SweepCompleted{
			BaseEvent:               events.NewBaseEvent(),
			Status:                  run.summary.Status,
			Unsnoozed:               run.summary.Unsnoozed,
			ReEnrolled:              run.summary.ReEnrolled,
			StaleEngagedMarked:      run.summary.StaleEngagedMarked,
			PhoneExhaustedMarked:    run.summary.PhoneExhaustedMarked,
			DeepProspectReactivated: run.summary.DeepProspectReactivated,
			QueueTiersRefreshed:     run.summary.QueueTiersRefreshed,
			ErrorCount:              len(run.summary.Errors),
		})
	}

	return run.summary, nil
}

// forEachLead pages through the given state populations and applies fn to
// each lead, sweepConcurrency workers per page. Worker errors are recorded
// on the run, never returned: one bad lead must not starve the rest.
func (e *Engine) forEachLead(ctx context.Context, pass string, kinds []domain.StateKind, run *sweepRun, fn func(context.Context, *sweepRun, domain.Lead) error) error {
	afterID := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := e.store.ListLeadsByStates(ctx, kinds, afterID, e.sweepPageSize)
		if err != nil {
			return fmt.Errorf("%s: list leads: %w", pass, err)
		}
		if len(page) == 0 {
			return nil
		}
		afterID = page[len(page)-1].ID

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(e.sweepConcurrency)
		for _, lead := range page {
			lead := lead
			group.Go(func() error {
				if err := fn(groupCtx, run, lead); err != nil {
					run.fail(lead.ID, pass, err)
					e.log.SweepLeadError(lead.ID, pass, err)
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}

		if len(page) < e.sweepPageSize {
			return nil
		}
	}
}

// withLead re-reads the lead under its lock and persists it when mutate
// reports a change. The listed snapshot is only a candidate; the locked
// re-read is authoritative.
func (e *Engine) withLead(ctx context.Context, id uuid.UUID, mutate func(*domain.Lead, time.Time) bool) (bool, error) {
	unlock := e.lockLead(id)
	defer unlock()

	lead, err := e.store.GetLead(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	now := e.now()
	if !mutate(&lead, now) {
		return false, nil
	}

	lead.PriorityScore = scoring.ComputePriority(lead, now).Score
	if err := e.store.UpdateLeadCadence(ctx, lead); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) sweepUnsnooze(ctx context.Context, run *sweepRun, candidate domain.Lead) error {
	changed, err := e.withLead(ctx, candidate.ID, func(lead *domain.Lead, now time.Time) bool {
		if lead.State.Kind != domain.StateSnoozed {
			return false
		}
		if lead.State.SnoozedUntil != nil && lead.State.SnoozedUntil.After(now) {
			return false
		}
		lead.State = domain.Active()
		if lead.NextActionDue == nil || lead.NextActionDue.Before(now) {
			lead.NextActionDue = &now
		}
		return true
	})
	if err != nil {
		return err
	}
	if changed {
		run.add(&run.summary.Unsnoozed, 1)
	}
	return nil
}

func (e *Engine) sweepStaleEngaged(ctx context.Context, run *sweepRun, candidate domain.Lead) error {
	changed, err := e.withLead(ctx, candidate.ID, func(lead *domain.Lead, now time.Time) bool {
		if lead.State.Kind != domain.StateExitedEngaged {
			return false
		}
		if !phase.IsStaleEngaged(*lead, e.rules, now) {
			return false
		}
		lead.State = domain.StaleEngaged()
		return true
	})
	if err != nil {
		return err
	}
	if changed {
		run.add(&run.summary.StaleEngagedMarked, 1)
	}
	return nil
}

func (e *Engine) sweepReEnroll(ctx context.Context, run *sweepRun, candidate domain.Lead) error {
	var reEnrolled domain.Lead
	changed, err := e.withLead(ctx, candidate.ID, func(lead *domain.Lead, now time.Time) bool {
		if !phase.CanReEnroll(*lead, e.rules, now) {
			return false
		}

		target := phase.ReEnrollTarget(*lead)
		tpl, ok := e.templates.ForType(target)
		if !ok {
			tpl = e.templates.ForBand(lead.Temperature)
		}

		lead.State = domain.Active()
		lead.Phase = domain.PhaseTemperature
		lead.BlitzAttempts = 0
		lead.NoResponseStreak = 0
		lead.CallbackScheduledFor = nil
		lead.ReEnrollmentDate = nil
		e.enroll(lead, tpl.Type, 1, now)
		if len(tpl.Steps) > 0 {
			first := tpl.Steps[0]
			due := now.Add(time.Duration(first.DayOffset) * 24 * time.Hour)
			lead.NextActionDue = &due
			lead.NextActionType = first.Action
		}
		reEnrolled = *lead
		return true
	})
	if err != nil {
		return err
	}
	if changed {
		run.add(&run.summary.ReEnrolled, 1)
		if e.bus != nil {
			e.bus.Publish(ctx, events.LeadReEnrolled{
				BaseEvent:       events.NewBaseEvent(),
				LeadID:          reEnrolled.ID,
				OrganizationID:  reEnrolled.OrganizationID,
				CadenceType:     string(reEnrolled.CadenceType),
				EnrollmentCount: reEnrolled.EnrollmentCount,
			})
		}
	}
	return nil
}

// sweepPhoneHealth marks active leads whose phones are spent and revives
// deep-prospect leads that gained a callable number outside the action API.
func (e *Engine) sweepPhoneHealth(ctx context.Context, run *sweepRun, candidate domain.Lead) error {
	var exhausted, reactivated bool
	changed, err := e.withLead(ctx, candidate.ID, func(lead *domain.Lead, now time.Time) bool {
		if lead.State.Kind != domain.StateActive {
			return false
		}

		if lead.Phase == domain.PhaseDeepProspect && lead.HasCallablePhone() {
			lead.Phase = domain.PhaseBlitz2
			lead.BlitzAttempts = 0
			lead.PhoneExhaustedAt = nil
			lead.NextActionDue = &now
			lead.NextActionType = domain.ActionCall
			reactivated = true
			return true
		}

		if lead.PhoneExhaustedAt == nil && phones.ShouldMarkExhausted(lead.Phones) {
			lead.PhoneExhaustedAt = &now
			exhausted = true
			return true
		}

		return false
	})
	if err != nil {
		return err
	}
	if changed && exhausted {
		run.add(&run.summary.PhoneExhaustedMarked, 1)
	}
	if changed && reactivated {
		run.add(&run.summary.DeepProspectReactivated, 1)
	}
	return nil
}

// sweepQueueRefresh recomputes the stored priority score for every
// queue-visible lead so overnight staleness growth surfaces without waiting
// for an action.
func (e *Engine) sweepQueueRefresh(ctx context.Context, run *sweepRun, candidate domain.Lead) error {
	changed, err := e.withLead(ctx, candidate.ID, func(lead *domain.Lead, now time.Time) bool {
		if !domain.QueueVisibleStates[lead.State.Kind] {
			return false
		}
		// withLead recomputes the score on persist; report a change only
		// when the stored score is actually stale.
		return scoring.ComputePriority(*lead, now).Score != lead.PriorityScore
	})
	if err != nil {
		return err
	}
	if changed {
		run.add(&run.summary.QueueTiersRefreshed, 1)
	}
	return nil
}
