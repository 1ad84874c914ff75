package domain

import (
	"fmt"
	"time"
)

// StateKind enumerates the workability states a lead can be in, orthogonal
// to its phase.
type StateKind string

const (
	StateNotEnrolled        StateKind = "NOT_ENROLLED"
	StateActive             StateKind = "ACTIVE"
	StateSnoozed            StateKind = "SNOOZED"
	StatePaused             StateKind = "PAUSED"
	StateCompletedNoContact StateKind = "COMPLETED_NO_CONTACT"
	StateExitedEngaged      StateKind = "EXITED_ENGAGED"
	StateExitedDNC          StateKind = "EXITED_DNC"
	StateExitedDead         StateKind = "EXITED_DEAD"
	StateExitedClosed       StateKind = "EXITED_CLOSED"
	StateStaleEngaged       StateKind = "STALE_ENGAGED"
	StateLongTermNurture    StateKind = "LONG_TERM_NURTURE"
)

// CadenceState is the single authoritative workability state of a lead,
// carrying only the fields relevant to its kind. Exactly one kind holds at
// a time; contradictory flag combinations (snoozed-until set while active,
// pause reason on an exited lead) cannot be represented.
type CadenceState struct {
	Kind StateKind

	// SnoozedUntil is set only when Kind is StateSnoozed.
	SnoozedUntil *time.Time

	// PausedReason is set only when Kind is StatePaused.
	PausedReason string

	// ExitedAt and ExitReason are set only for exited kinds.
	ExitedAt   *time.Time
	ExitReason string
}

// NotEnrolled returns the initial state of an unqualified lead.
func NotEnrolled() CadenceState {
	return CadenceState{Kind: StateNotEnrolled}
}

// Active returns the workable state.
func Active() CadenceState {
	return CadenceState{Kind: StateActive}
}

// Snoozed returns a snoozed state ending at the given time.
func Snoozed(until time.Time) CadenceState {
	return CadenceState{Kind: StateSnoozed, SnoozedUntil: &until}
}

// Paused returns a paused state with the operator-supplied reason.
func Paused(reason string) CadenceState {
	return CadenceState{Kind: StatePaused, PausedReason: reason}
}

// CompletedNoContact marks a lead that finished its cadence without contact.
func CompletedNoContact() CadenceState {
	return CadenceState{Kind: StateCompletedNoContact}
}

// Exited returns an exit state with its timestamp and reason.
func Exited(kind StateKind, at time.Time, reason string) CadenceState {
	return CadenceState{Kind: kind, ExitedAt: &at, ExitReason: reason}
}

// StaleEngaged marks a previously engaged lead that went quiet.
func StaleEngaged() CadenceState {
	return CadenceState{Kind: StateStaleEngaged}
}

// LongTermNurture parks a lead on the long-cycle follow-up track.
func LongTermNurture() CadenceState {
	return CadenceState{Kind: StateLongTermNurture}
}

// terminalStates are states from which a lead never re-enters any active
// phase, scheduled or manual.
var terminalStates = map[StateKind]bool{
	StateExitedDNC:    true,
	StateExitedDead:   true,
	StateExitedClosed: true,
}

// NeverReEnrollStates are excluded from re-enrollment unconditionally.
var NeverReEnrollStates = terminalStates

// QueueVisibleStates are the states queue consumers may see. Everything
// else is invisible to the call queue regardless of score.
var QueueVisibleStates = map[StateKind]bool{
	StateActive:             true,
	StateStaleEngaged:       true,
	StateCompletedNoContact: true,
	StateLongTermNurture:    true,
}

// reEnrollableStates may be re-enrolled once their wait elapses.
var reEnrollableStates = map[StateKind]bool{
	StateCompletedNoContact: true,
	StateExitedEngaged:      true,
	StateStaleEngaged:       true,
	StateLongTermNurture:    true,
}

// IsTerminal reports whether the state kind permanently ends cadence work.
func IsTerminal(kind StateKind) bool {
	return terminalStates[kind]
}

// IsTerminal reports whether the lead's state permanently ends cadence work.
func (s CadenceState) IsTerminal() bool {
	return terminalStates[s.Kind]
}

// IsWorkable reports whether call actions may be logged against the lead.
func (s CadenceState) IsWorkable() bool {
	return s.Kind == StateActive || s.Kind == StateStaleEngaged ||
		s.Kind == StateLongTermNurture || s.Kind == StateNotEnrolled
}

// IsReEnrollable reports whether the state kind is eligible for a new
// enrollment cycle, before the date and cycle-cap gates are applied.
func IsReEnrollable(kind StateKind) bool {
	return reEnrollableStates[kind]
}

// Validate checks the state's field/kind combination for contradictions.
func (s CadenceState) Validate() error {
	switch s.Kind {
	case StateSnoozed:
		if s.SnoozedUntil == nil {
			return fmt.Errorf("snoozed state requires snoozed_until")
		}
	case StatePaused:
		if s.PausedReason == "" {
			return fmt.Errorf("paused state requires a reason")
		}
	case StateExitedDNC, StateExitedDead, StateExitedClosed, StateExitedEngaged:
		if s.ExitedAt == nil {
			return fmt.Errorf("exit state %s requires exited_at", s.Kind)
		}
	}

	if s.Kind != StateSnoozed && s.SnoozedUntil != nil {
		return fmt.Errorf("snoozed_until set on %s state", s.Kind)
	}
	if s.Kind != StatePaused && s.PausedReason != "" {
		return fmt.Errorf("paused_reason set on %s state", s.Kind)
	}
	return nil
}
