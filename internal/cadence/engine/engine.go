// Package engine is the single entry point for every state-changing cadence
// operation. It loads the lead, computes the transition, persists it, writes
// the audit trail and publishes domain events.
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
	"cadence_backend/internal/cadence/queue"
	"cadence_backend/internal/cadence/repository"
	"cadence_backend/internal/cadence/result"
	"cadence_backend/internal/cadence/scoring"
	"cadence_backend/internal/events"
	"cadence_backend/platform/apperr"
	"cadence_backend/platform/logger"
	phoneutil "cadence_backend/platform/phone"

	"github.com/google/uuid"
)

// Action names one cadence operation a caller can apply to a lead.
type Action string

const (
	ActionCall              Action = "call"
	ActionPhoneAdded        Action = "phone_added"
	ActionSnooze            Action = "snooze"
	ActionPause             Action = "pause"
	ActionResume            Action = "resume"
	ActionTemperatureChange Action = "temperature_change"
	ActionReEnroll          Action = "re_enroll"
)

// ActionRequest carries one action and its payload. Only the fields for the
// requested action type are read.
type ActionRequest struct {
	Type   Action
	Source string

	// call
	PhoneID      *uuid.UUID
	ResultLabel  string
	WasAnswered  bool
	CallbackDate *time.Time

	// phone_added
	PhoneNumber string

	// snooze
	SnoozeUntil *time.Time

	// pause
	PauseReason string

	// temperature_change
	Temperature domain.TemperatureBand
}

// ActionResult is the post-action view of the lead.
type ActionResult struct {
	Lead       domain.Lead
	Outcome    domain.Outcome
	ResultType domain.ResultType
	Score      scoring.Result
	QueueTier  int
}

// CallbackScheduler enqueues a reminder for a promised callback. Wired in
// deployments that run the task queue; nil otherwise.
type CallbackScheduler interface {
	ScheduleCallbackReminder(ctx context.Context, leadID, organizationID uuid.UUID, runAt time.Time) error
}

type Engine struct {
	store     repository.Store
	templates *domain.Library
	rules     domain.Rules
	handler   *result.Handler
	bus       events.Bus
	log       *logger.Logger
	callbacks CallbackScheduler

	sweepPageSize    int
	sweepConcurrency int

	// locks serializes writes per lead so two concurrent actions against
	// the same lead cannot interleave their read-modify-write cycles.
	locks sync.Map

	now func() time.Time
}

// Option customizes engine construction.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSweepSettings overrides page size and concurrency for maintenance sweeps.
func WithSweepSettings(pageSize, concurrency int) Option {
	return func(e *Engine) {
		if pageSize > 0 {
			e.sweepPageSize = pageSize
		}
		if concurrency > 0 {
			e.sweepConcurrency = concurrency
		}
	}
}

func New(store repository.Store, templates *domain.Library, rules domain.Rules, bus events.Bus, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:            store,
		templates:        templates,
		rules:            rules.Normalize(),
		handler:          result.NewHandler(templates, rules),
		bus:              bus,
		log:              log,
		sweepPageSize:    200,
		sweepConcurrency: 8,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetCallbackScheduler injects the reminder queue client.
func (e *Engine) SetCallbackScheduler(cs CallbackScheduler) {
	e.callbacks = cs
}

func (e *Engine) lockLead(id uuid.UUID) func() {
	value, _ := e.locks.LoadOrStore(id, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ProcessAction applies one action to one lead. The lead is loaded, the
// transition computed, the score refreshed and everything persisted under a
// per-lead lock.
func (e *Engine) ProcessAction(ctx context.Context, leadID uuid.UUID, req ActionRequest) (ActionResult, error) {
	unlock := e.lockLead(leadID)
	defer unlock()

	lead, err := e.store.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ActionResult{}, apperr.NotFound("lead not found").WithOp("engine.ProcessAction")
		}
		return ActionResult{}, apperr.Wrap(apperr.KindInternal, "load lead", err).WithOp("engine.ProcessAction")
	}

	now := e.now()
	before := snapshot(lead)

	var out ActionResult
	switch req.Type {
	case ActionCall:
		out, err = e.applyCall(ctx, lead, req, now)
	case ActionPhoneAdded:
		out, err = e.applyPhoneAdded(ctx, lead, req, now)
	case ActionSnooze:
		out, err = e.applySnooze(lead, req, now)
	case ActionPause:
		out, err = e.applyPause(lead, req, now)
	case ActionResume:
		out, err = e.applyResume(lead, now)
	case ActionTemperatureChange:
		out, err = e.applyTemperatureChange(lead, req, now)
	case ActionReEnroll:
		out, err = e.applyReEnroll(lead, now)
	default:
		return ActionResult{}, apperr.BadRequest(fmt.Sprintf("unknown action type %q", req.Type))
	}
	if err != nil {
		return ActionResult{}, err
	}

	out = e.finalize(out, now)

	if err := e.store.UpdateLeadCadence(ctx, out.Lead); err != nil {
		return ActionResult{}, apperr.Wrap(apperr.KindInternal, "persist lead", err).WithOp("engine.ProcessAction")
	}

	e.audit(ctx, out.Lead, string(req.Type), before, req.Source, now)
	e.publish(ctx, out, string(req.Type), string(out.Outcome), before, req.Source)
	e.scheduleCallback(ctx, out.Lead, before)
	e.log.CadenceAction(leadID, string(req.Type), string(out.Outcome), out.QueueTier)

	return out, nil
}

// scheduleCallback enqueues a reminder when this action put a new callback
// on the books.
func (e *Engine) scheduleCallback(ctx context.Context, lead domain.Lead, before leadSnapshot) {
	if e.callbacks == nil || lead.CallbackScheduledFor == nil {
		return
	}
	if before.Callback != nil && before.Callback.Equal(*lead.CallbackScheduledFor) {
		return
	}
	if err := e.callbacks.ScheduleCallbackReminder(ctx, lead.ID, lead.OrganizationID, *lead.CallbackScheduledFor); err != nil {
		e.log.Error("schedule callback reminder", "lead_id", lead.ID, "error", err)
	}
}

// finalize recomputes the derived fields every action can change: priority
// score and queue tier.
func (e *Engine) finalize(out ActionResult, now time.Time) ActionResult {
	out.Score = scoring.ComputePriority(out.Lead, now)
	out.Lead.PriorityScore = out.Score.Score
	if assignment, visible := queue.AssignTier(out.Lead, now); visible {
		out.QueueTier = assignment.Tier
	}
	return out
}

func (e *Engine) applyCall(ctx context.Context, lead domain.Lead, req ActionRequest, now time.Time) (ActionResult, error) {
	if lead.State.IsTerminal() {
		return ActionResult{}, apperr.Conflict(fmt.Sprintf("lead is %s and no longer accepts call results", lead.State.Kind))
	}
	if req.ResultLabel == "" {
		return ActionResult{}, apperr.Validation("call action requires a result label")
	}

	processed := e.handler.ProcessCallResult(result.CallInput{
		Lead:         lead,
		PhoneID:      req.PhoneID,
		ResultLabel:  req.ResultLabel,
		WasAnswered:  req.WasAnswered,
		CallbackDate: req.CallbackDate,
		Now:          now,
	})

	if processed.PhoneUpdate != nil {
		if err := e.store.UpdatePhone(ctx, *processed.PhoneUpdate); err != nil {
			return ActionResult{}, apperr.Wrap(apperr.KindInternal, "persist phone update", err).WithOp("engine.applyCall")
		}
		for i, p := range lead.Phones {
			if p.ID == processed.PhoneUpdate.PhoneID {
				lead.Phones[i] = phones.Apply(p, *processed.PhoneUpdate)
			}
		}
	}

	lead = e.applyTransition(lead, processed, now)

	return ActionResult{Lead: lead, Outcome: processed.Outcome, ResultType: processed.ResultType}, nil
}

// applyTransition folds a computed phase transition into the lead.
func (e *Engine) applyTransition(lead domain.Lead, processed result.Processed, now time.Time) domain.Lead {
	tr := processed.Transition

	lead.CallAttempts++
	lead.LastContactedAt = &now
	lead.LastContactType = "CALL"
	lead.LastContactResult = processed.Outcome

	if processed.Outcome.IsContact() {
		lead.HasEngaged = true
		lead.NoResponseStreak = 0
	} else {
		lead.NoResponseStreak++
	}

	lead.Phase = tr.Phase
	lead.BlitzAttempts = tr.BlitzAttempts
	lead.CadenceStep = tr.CadenceStep
	lead.NextActionDue = tr.NextActionDue
	if tr.NextActionType != "" {
		lead.NextActionType = tr.NextActionType
	}

	if tr.CallbackScheduledFor != nil {
		lead.CallbackScheduledFor = tr.CallbackScheduledFor
		lead.CallbackRequestedAt = &now
	} else if processed.Outcome.IsContact() {
		// A real conversation supersedes any previously requested callback.
		lead.CallbackScheduledFor = nil
	}

	if tr.MoveToDeepProspect {
		lead.DeepProspectEnteredAt = &now
		if lead.PhoneExhaustedAt == nil {
			lead.PhoneExhaustedAt = &now
		}
	}

	if tr.EnrollInType != "" {
		e.enroll(&lead, tr.EnrollInType, tr.CadenceStep, now)
		if tr.NextActionDue != nil {
			lead.NextActionDue = tr.NextActionDue
			lead.NextActionType = tr.NextActionType
		}
	}

	if tr.ExitState != "" {
		e.exit(&lead, tr.ExitState, string(processed.Outcome), now)
	}

	if tr.CompletedNoContact {
		lead.CadenceProgress = 100
	} else if lead.Phase == domain.PhaseTemperature {
		if tpl, ok := e.templates.ForType(lead.CadenceType); ok {
			lead.CadenceProgress = tpl.Progress(lead.CadenceStep)
		}
	}

	if lead.PhoneExhaustedAt == nil && phones.ShouldMarkExhausted(lead.Phones) {
		lead.PhoneExhaustedAt = &now
	}

	return lead
}

// enroll moves a lead onto a cadence template, counting the cycle.
func (e *Engine) enroll(lead *domain.Lead, cadenceType domain.CadenceType, step int, now time.Time) {
	lead.CadenceType = cadenceType
	lead.EnrolledAt = &now
	lead.EnrollmentCount++
	if step > 0 {
		lead.CadenceStep = step
	} else {
		lead.CadenceStep = 1
	}
	lead.CadenceProgress = 0
}

// exit routes a lead into a non-active state and stamps the re-enrollment
// window for states that allow a later cycle.
func (e *Engine) exit(lead *domain.Lead, kind domain.StateKind, reason string, now time.Time) {
	switch kind {
	case domain.StateCompletedNoContact:
		lead.State = domain.CompletedNoContact()
	case domain.StateLongTermNurture:
		lead.State = domain.LongTermNurture()
	default:
		lead.State = domain.Exited(kind, now, reason)
	}

	if domain.IsReEnrollable(kind) {
		date := phase.ReEnrollmentDate(lead.Temperature, lead.PriorityScore, now)
		lead.ReEnrollmentDate = &date
	} else {
		lead.ReEnrollmentDate = nil
	}

	if lead.State.IsTerminal() || kind == domain.StateCompletedNoContact || kind == domain.StateExitedEngaged {
		// Automated dialing stops on exit; LONG_TERM_NURTURE keeps its
		// annual-track schedule.
		if kind != domain.StateLongTermNurture {
			lead.NextActionDue = nil
		}
	}
	if lead.State.IsTerminal() {
		lead.CallbackScheduledFor = nil
	}
}

func (e *Engine) applyPhoneAdded(ctx context.Context, lead domain.Lead, req ActionRequest, now time.Time) (ActionResult, error) {
	if lead.State.IsTerminal() {
		return ActionResult{}, apperr.Conflict(fmt.Sprintf("lead is %s and no longer accepts phones", lead.State.Kind))
	}

	normalized := phoneutil.NormalizeE164(req.PhoneNumber)
	if normalized == "" {
		return ActionResult{}, apperr.Validation("phone number is not a valid number")
	}
	for _, p := range lead.Phones {
		if p.Number == normalized {
			return ActionResult{}, apperr.Conflict("phone number already on lead")
		}
	}

	phone := domain.Phone{
		ID:     uuid.New(),
		LeadID: lead.ID,
		Number: normalized,
		Type:   domain.PhoneType(phoneutil.LineType(normalized)),
		Status: domain.PhoneUnverified,
	}
	stored, err := e.store.InsertPhone(ctx, phone)
	if err != nil {
		return ActionResult{}, apperr.Wrap(apperr.KindInternal, "insert phone", err).WithOp("engine.applyPhoneAdded")
	}
	lead.Phones = append(lead.Phones, stored)
	lead.PhoneExhaustedAt = nil

	// A fresh number revives a lead parked for lack of callable phones.
	if lead.Phase == domain.PhaseDeepProspect {
		lead.Phase = domain.PhaseBlitz2
		lead.BlitzAttempts = 0
		lead.NextActionDue = &now
		lead.NextActionType = domain.ActionCall
		if !lead.State.IsWorkable() && !lead.State.IsTerminal() {
			lead.State = domain.Active()
		}
	}

	return ActionResult{Lead: lead}, nil
}

func (e *Engine) applySnooze(lead domain.Lead, req ActionRequest, now time.Time) (ActionResult, error) {
	if req.SnoozeUntil == nil || !req.SnoozeUntil.After(now) {
		return ActionResult{}, apperr.Validation("snooze requires a future until date")
	}
	if lead.State.Kind != domain.StateActive && lead.State.Kind != domain.StateSnoozed {
		return ActionResult{}, apperr.Conflict(fmt.Sprintf("cannot snooze a lead in state %s", lead.State.Kind))
	}
	lead.State = domain.Snoozed(*req.SnoozeUntil)
	return ActionResult{Lead: lead}, nil
}

func (e *Engine) applyPause(lead domain.Lead, req ActionRequest, now time.Time) (ActionResult, error) {
	if lead.State.IsTerminal() {
		return ActionResult{}, apperr.Conflict(fmt.Sprintf("cannot pause a lead in state %s", lead.State.Kind))
	}
	reason := req.PauseReason
	if reason == "" {
		reason = "paused by agent"
	}
	lead.State = domain.Paused(reason)
	return ActionResult{Lead: lead}, nil
}

func (e *Engine) applyResume(lead domain.Lead, now time.Time) (ActionResult, error) {
	if lead.State.Kind != domain.StateSnoozed && lead.State.Kind != domain.StatePaused {
		return ActionResult{}, apperr.Conflict(fmt.Sprintf("cannot resume a lead in state %s", lead.State.Kind))
	}
	lead.State = domain.Active()
	if lead.NextActionDue == nil || lead.NextActionDue.Before(now) {
		// Surface the lead immediately instead of leaving a stale slot.
		lead.NextActionDue = &now
		if lead.NextActionType == "" {
			lead.NextActionType = domain.ActionCall
		}
	}
	return ActionResult{Lead: lead}, nil
}

func (e *Engine) applyTemperatureChange(lead domain.Lead, req ActionRequest, now time.Time) (ActionResult, error) {
	switch req.Temperature {
	case domain.BandHot, domain.BandWarm, domain.BandCold, domain.BandIce:
	default:
		return ActionResult{}, apperr.Validation(fmt.Sprintf("unknown temperature %q", req.Temperature))
	}
	if lead.Temperature == req.Temperature {
		return ActionResult{Lead: lead}, nil
	}

	lead.Temperature = req.Temperature

	// Inside the temperature cadence the template follows the band; the
	// current progress carries over so the lead is not restarted from step 1.
	if lead.Phase == domain.PhaseTemperature {
		tpl := e.templates.ForBand(req.Temperature)
		lead.CadenceType = tpl.Type
		if lead.CadenceStep > tpl.TotalSteps {
			lead.CadenceStep = tpl.TotalSteps
		}
		lead.CadenceProgress = tpl.Progress(lead.CadenceStep)
		if lead.CadenceStep >= 1 && lead.CadenceStep <= len(tpl.Steps) {
			step := tpl.Steps[lead.CadenceStep-1]
			enrolledAt := now
			if lead.EnrolledAt != nil {
				enrolledAt = *lead.EnrolledAt
			}
			due := enrolledAt.Add(time.Duration(step.DayOffset) * 24 * time.Hour)
			if due.Before(now) {
				due = now.Add(24 * time.Hour)
			}
			lead.NextActionDue = &due
			lead.NextActionType = step.Action
		}
	}

	return ActionResult{Lead: lead}, nil
}

func (e *Engine) applyReEnroll(lead domain.Lead, now time.Time) (ActionResult, error) {
	if !phase.CanReEnroll(lead, e.rules, now) {
		return ActionResult{}, apperr.Conflict(fmt.Sprintf("lead in state %s is not eligible for re-enrollment", lead.State.Kind))
	}

	target := phase.ReEnrollTarget(lead)
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
	e.enroll(&lead, tpl.Type, 1, now)
	if len(tpl.Steps) > 0 {
		first := tpl.Steps[0]
		due := now.Add(time.Duration(first.DayOffset) * 24 * time.Hour)
		lead.NextActionDue = &due
		lead.NextActionType = first.Action
	}

	return ActionResult{Lead: lead}, nil
}

// leadSnapshot captures the before-image fields the audit log and events need.
type leadSnapshot struct {
	Phase    domain.CadencePhase
	State    domain.StateKind
	Callback *time.Time
}

func snapshot(lead domain.Lead) leadSnapshot {
	return leadSnapshot{Phase: lead.Phase, State: lead.State.Kind, Callback: lead.CallbackScheduledFor}
}

func (e *Engine) audit(ctx context.Context, lead domain.Lead, action string, before leadSnapshot, source string, now time.Time) {
	if source == "" {
		source = "api"
	}
	entry := repository.AuditEntry{
		LeadID:    lead.ID,
		Action:    action,
		OldValue:  fmt.Sprintf("phase=%s state=%s", before.Phase, before.State),
		NewValue:  fmt.Sprintf("phase=%s state=%s", lead.Phase, lead.State.Kind),
		Source:    source,
		CreatedAt: now,
	}
	// Audit failures are logged, never surfaced: the state change already
	// committed.
	if err := e.store.AppendAudit(ctx, entry); err != nil {
		e.log.DatabaseError("append audit", err)
	}
}

func (e *Engine) publish(ctx context.Context, out ActionResult, action, outcome string, before leadSnapshot, source string) {
	if e.bus == nil {
		return
	}
	lead := out.Lead
	e.bus.Publish(ctx, events.CadenceActionProcessed{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		Action:         action,
		Outcome:        outcome,
		OldPhase:       string(before.Phase),
		NewPhase:       string(lead.Phase),
		OldState:       string(before.State),
		NewState:       string(lead.State.Kind),
		QueueTier:      out.QueueTier,
		Source:         source,
	})

	if lead.State.Kind != before.State {
		switch lead.State.Kind {
		case domain.StateExitedDNC, domain.StateExitedDead, domain.StateExitedClosed,
			domain.StateExitedEngaged, domain.StateCompletedNoContact, domain.StateLongTermNurture:
			exitedAt := e.now()
			if lead.State.ExitedAt != nil {
				exitedAt = *lead.State.ExitedAt
			}
			e.bus.Publish(ctx, events.LeadExitedCadence{
				BaseEvent:      events.NewBaseEvent(),
				LeadID:         lead.ID,
				OrganizationID: lead.OrganizationID,
				ExitState:      string(lead.State.Kind),
				ExitReason:     lead.State.ExitReason,
				ExitedAt:       exitedAt,
			})
		case domain.StateActive:
			if action == string(ActionReEnroll) {
				e.bus.Publish(ctx, events.LeadReEnrolled{
					BaseEvent:       events.NewBaseEvent(),
					LeadID:          lead.ID,
					OrganizationID:  lead.OrganizationID,
					CadenceType:     string(lead.CadenceType),
					EnrollmentCount: lead.EnrollmentCount,
				})
			}
		}
	}
}
