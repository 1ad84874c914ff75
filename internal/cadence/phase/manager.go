// Package phase implements the cadence state machine: phase transitions,
// re-enrollment eligibility and enrollment windows. Every function is
// deterministic given its inputs; the current time is always passed in.
package phase

import (
	"time"

	"cadence_backend/internal/cadence/domain"
)

// Input carries everything a transition depends on.
type Input struct {
	Phase         domain.CadencePhase
	BlitzAttempts int
	CadenceStep   int
	EnrolledAt    *time.Time
	Outcome       domain.Outcome
	CallbackDate  *time.Time
	Temperature   domain.TemperatureBand
	Template      *domain.CadenceTemplate
	Rules         domain.Rules
	Now           time.Time
}

// Result is the computed transition. Zero values mean "no change" for the
// optional fields; the engine applies the result to the lead.
type Result struct {
	Phase          domain.CadencePhase
	BlitzAttempts  int
	CadenceStep    int
	NextActionDue  *time.Time
	NextActionType domain.ActionType

	MoveToDeepProspect bool
	MoveToNotWorkable  bool
	CompletedNoContact bool
	ContactMade        bool

	// ExitState is non-empty when the outcome terminates or re-routes the
	// lead's workability state.
	ExitState domain.StateKind

	// EnrollInType is non-empty when the transition enrolls the lead into a
	// cadence template.
	EnrollInType domain.CadenceType

	// CallbackScheduledFor is set when the outcome requested a callback
	// instead of advancing the phase.
	CallbackScheduledFor *time.Time
}

// CalculateTransition computes the next phase for one logged outcome.
func CalculateTransition(in Input) Result {
	rules := in.Rules.Normalize()
	cfg := domain.ConfigFor(in.Outcome)

	// Terminal outcomes exit immediately from any phase and halt all
	// scheduling.
	if cfg.Terminal {
		return Result{
			Phase:             in.Phase,
			BlitzAttempts:     in.BlitzAttempts,
			CadenceStep:       in.CadenceStep,
			MoveToNotWorkable: true,
			ContactMade:       cfg.IsContact,
			ExitState:         cfg.ExitState,
		}
	}

	if cfg.IsContact {
		return contactTransition(in, cfg)
	}

	return noContactTransition(in, cfg, rules)
}

// contactTransition handles contact-made outcomes, which never advance the
// step sequence.
func contactTransition(in Input, cfg domain.OutcomeConfig) Result {
	out := Result{
		Phase:         in.Phase,
		BlitzAttempts: in.BlitzAttempts,
		CadenceStep:   in.CadenceStep,
		ContactMade:   true,
	}

	switch in.Outcome {
	case domain.OutcomeAnsweredCallback:
		callback := in.CallbackDate
		if callback == nil {
			next := in.Now.Add(24 * time.Hour)
			callback = &next
		}
		out.CallbackScheduledFor = callback
		out.NextActionDue = callback
		out.NextActionType = domain.ActionCall

	case domain.OutcomeAnsweredInterested:
		// The lead is engaged; cadence dialing stops and an agent works it
		// by hand.
		out.Phase = domain.PhaseEngaged
		out.ExitState = domain.StateExitedEngaged

	case domain.OutcomeAnsweredNotInterested:
		// Park on the long-cycle annual track rather than discarding.
		out.Phase = domain.PhaseNurture
		out.ExitState = domain.StateLongTermNurture
		out.EnrollInType = domain.CadenceAnnual
		next := in.Now.Add(cfg.FollowUpDelay)
		out.NextActionDue = &next
		out.NextActionType = domain.ActionCall

	default:
		next := in.Now.Add(followUpOrDefault(cfg, 24*time.Hour))
		out.NextActionDue = &next
		out.NextActionType = domain.ActionCall
	}

	return out
}

func noContactTransition(in Input, cfg domain.OutcomeConfig, rules domain.Rules) Result {
	out := Result{
		Phase:         in.Phase,
		BlitzAttempts: in.BlitzAttempts,
		CadenceStep:   in.CadenceStep,
	}

	switch in.Phase {
	case domain.PhaseNew:
		// The first logged outcome always starts the blitz, whatever it was.
		out.Phase = domain.PhaseBlitz1
		out.BlitzAttempts = 1
		scheduleFollowUp(&out, in.Now, cfg)

	case domain.PhaseBlitz1:
		out.BlitzAttempts = in.BlitzAttempts + 1
		if out.BlitzAttempts >= rules.Blitz1MaxAttempts {
			// Phones are spent; skip-trace is manual, so nothing is
			// scheduled here.
			out.Phase = domain.PhaseDeepProspect
			out.MoveToDeepProspect = true
			out.NextActionDue = nil
			break
		}
		scheduleFollowUp(&out, in.Now, cfg)

	case domain.PhaseDeepProspect:
		// Holding phase: nothing changes until a new callable number
		// arrives from outside.

	case domain.PhaseBlitz2:
		out.BlitzAttempts = in.BlitzAttempts + 1
		if out.BlitzAttempts >= rules.Blitz2MaxAttempts {
			enrollInTemperature(&out, in)
			break
		}
		scheduleFollowUp(&out, in.Now, cfg)

	case domain.PhaseTemperature:
		advanceTemperatureStep(&out, in)

	default:
		// COMPLETED / ENGAGED / NURTURE leads receive no automatic
		// scheduling from a no-contact outcome.
	}

	return out
}

func enrollInTemperature(out *Result, in Input) {
	out.Phase = domain.PhaseTemperature
	out.EnrollInType = domain.CadenceTypeForBand(in.Temperature)
	out.CadenceStep = 1
	if in.Template != nil && len(in.Template.Steps) > 0 {
		first := in.Template.Steps[0]
		due := in.Now.Add(time.Duration(first.DayOffset) * 24 * time.Hour)
		out.NextActionDue = &due
		out.NextActionType = first.Action
	}
}

// advanceTemperatureStep moves to the next template step, or completes the
// cadence when the last step produced no contact.
func advanceTemperatureStep(out *Result, in Input) {
	if in.Template == nil || in.CadenceStep >= in.Template.TotalSteps {
		out.Phase = domain.PhaseCompleted
		out.CompletedNoContact = true
		out.ExitState = domain.StateCompletedNoContact
		out.NextActionDue = nil
		return
	}

	next := in.Template.Steps[in.CadenceStep] // steps are zero-indexed; CadenceStep is one-based
	out.CadenceStep = in.CadenceStep + 1

	enrolledAt := in.Now
	if in.EnrolledAt != nil {
		enrolledAt = *in.EnrolledAt
	}
	due := enrolledAt.Add(time.Duration(next.DayOffset) * 24 * time.Hour)
	if due.Before(in.Now) {
		// Catch-up after an interrupted cadence: never schedule into the past.
		due = in.Now.Add(24 * time.Hour)
	}
	out.NextActionDue = &due
	out.NextActionType = next.Action
}

func scheduleFollowUp(out *Result, now time.Time, cfg domain.OutcomeConfig) {
	due := now.Add(followUpOrDefault(cfg, 24*time.Hour))
	out.NextActionDue = &due
	out.NextActionType = domain.ActionCall
}

func followUpOrDefault(cfg domain.OutcomeConfig, fallback time.Duration) time.Duration {
	if cfg.FollowUpDelay > 0 {
		return cfg.FollowUpDelay
	}
	return fallback
}
