package domain

import "time"

// Outcome is the normalized result of a single contact attempt. It is the
// fine-grained classification that drives phase transitions.
type Outcome string

const (
	OutcomeNoAnswer              Outcome = "NO_ANSWER"
	OutcomeLeftVoicemail         Outcome = "LEFT_VOICEMAIL"
	OutcomeBusy                  Outcome = "BUSY"
	OutcomeSMSSent               Outcome = "SMS_SENT"
	OutcomeRVMSent               Outcome = "RVM_SENT"
	OutcomeAnsweredInterested    Outcome = "ANSWERED_INTERESTED"
	OutcomeAnsweredCallback      Outcome = "ANSWERED_CALLBACK"
	OutcomeAnsweredNotInterested Outcome = "ANSWERED_NOT_INTERESTED"
	OutcomeAnsweredDNC           Outcome = "ANSWERED_DNC"
	OutcomeAnsweredDead          Outcome = "ANSWERED_DEAD"
	OutcomeAnsweredClosed        Outcome = "ANSWERED_CLOSED"
	OutcomeWrongNumber           Outcome = "WRONG_NUMBER"
	OutcomeDisconnected          Outcome = "DISCONNECTED"
)

// ResultType is the coarse classification kept for legacy/simple flows.
// It is derived from the outcome table, never classified independently, so
// the two layers can never disagree about whether contact was made.
type ResultType string

const (
	ResultNoContact   ResultType = "NO_CONTACT"
	ResultRetry       ResultType = "RETRY"
	ResultContactMade ResultType = "CONTACT_MADE"
	ResultBadData     ResultType = "BAD_DATA"
	ResultTerminal    ResultType = "TERMINAL"
)

// OutcomeConfig records, per outcome, whether it counts as contact, whether
// it terminates the cadence, its coarse result type, the follow-up delay it
// implies (zero means phase default), and the exit state terminal outcomes
// map to.
type OutcomeConfig struct {
	IsContact     bool
	Terminal      bool
	ResultType    ResultType
	FollowUpDelay time.Duration
	ExitState     StateKind
}

const day = 24 * time.Hour

// outcomeConfigs is the single source of truth for outcome semantics.
// Loaded-once immutable reference data; callers go through ConfigFor.
var outcomeConfigs = map[Outcome]OutcomeConfig{
	OutcomeNoAnswer:      {ResultType: ResultNoContact, FollowUpDelay: day},
	OutcomeLeftVoicemail: {ResultType: ResultNoContact, FollowUpDelay: day},
	OutcomeSMSSent:       {ResultType: ResultNoContact, FollowUpDelay: day},
	OutcomeRVMSent:       {ResultType: ResultNoContact, FollowUpDelay: day},
	OutcomeBusy:          {ResultType: ResultRetry, FollowUpDelay: 4 * time.Hour},

	OutcomeAnsweredInterested: {IsContact: true, ResultType: ResultContactMade, FollowUpDelay: 2 * day},
	OutcomeAnsweredCallback:   {IsContact: true, ResultType: ResultContactMade},
	OutcomeAnsweredNotInterested: {
		IsContact:     true,
		ResultType:    ResultContactMade,
		FollowUpDelay: 30 * day,
	},

	OutcomeWrongNumber:  {ResultType: ResultBadData},
	OutcomeDisconnected: {ResultType: ResultBadData},

	OutcomeAnsweredDNC:    {IsContact: true, Terminal: true, ResultType: ResultTerminal, ExitState: StateExitedDNC},
	OutcomeAnsweredDead:   {IsContact: true, Terminal: true, ResultType: ResultTerminal, ExitState: StateExitedDead},
	OutcomeAnsweredClosed: {IsContact: true, Terminal: true, ResultType: ResultTerminal, ExitState: StateExitedClosed},
}

// ConfigFor returns the semantics for an outcome. Unknown outcomes fall
// back to the NO_ANSWER entry; lead-management data has frequent free-text
// variance and an unrecognized label must not fail the whole action.
func ConfigFor(o Outcome) OutcomeConfig {
	if cfg, ok := outcomeConfigs[o]; ok {
		return cfg
	}
	return outcomeConfigs[OutcomeNoAnswer]
}

// IsContact reports whether the outcome counts as genuine contact.
func (o Outcome) IsContact() bool { return ConfigFor(o).IsContact }

// IsTerminal reports whether the outcome permanently ends the cadence.
func (o Outcome) IsTerminal() bool { return ConfigFor(o).Terminal }

// ResultTypeOf derives the coarse result type from the outcome table.
func ResultTypeOf(o Outcome) ResultType { return ConfigFor(o).ResultType }
