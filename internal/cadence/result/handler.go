// Package result normalizes raw call-result labels into outcomes and feeds
// them through the phase and phone managers.
package result

import (
	"strings"
	"time"

	"cadence_backend/internal/cadence/domain"
	"cadence_backend/internal/cadence/phase"
	"cadence_backend/internal/cadence/phones"

	"github.com/google/uuid"
)

// labelSynonyms maps call-result vocabulary to outcomes. Matching is
// case-insensitive, exact first, then substring in table order. This is the
// only label table; the coarse result type is derived from the outcome
// config so the two classification layers can never disagree about whether
// contact was made.
var labelSynonyms = []struct {
	keyword string
	outcome domain.Outcome
}{
	{"dnc", domain.OutcomeAnsweredDNC},
	{"do not call", domain.OutcomeAnsweredDNC},
	{"remove me", domain.OutcomeAnsweredDNC},
	{"deceased", domain.OutcomeAnsweredDead},
	{"dead lead", domain.OutcomeAnsweredDead},
	{"already sold", domain.OutcomeAnsweredClosed},
	{"closed", domain.OutcomeAnsweredClosed},
	{"wrong number", domain.OutcomeWrongNumber},
	{"wrong person", domain.OutcomeWrongNumber},
	{"disconnected", domain.OutcomeDisconnected},
	{"not in service", domain.OutcomeDisconnected},
	{"callback", domain.OutcomeAnsweredCallback},
	{"call back", domain.OutcomeAnsweredCallback},
	{"call me later", domain.OutcomeAnsweredCallback},
	{"not interested", domain.OutcomeAnsweredNotInterested},
	{"no thanks", domain.OutcomeAnsweredNotInterested},
	{"interested", domain.OutcomeAnsweredInterested},
	{"motivated", domain.OutcomeAnsweredInterested},
	{"appointment", domain.OutcomeAnsweredInterested},
	{"voicemail", domain.OutcomeLeftVoicemail},
	{"left message", domain.OutcomeLeftVoicemail},
	{"busy", domain.OutcomeBusy},
	{"sms", domain.OutcomeSMSSent},
	{"text sent", domain.OutcomeSMSSent},
	{"rvm", domain.OutcomeRVMSent},
	{"ringless", domain.OutcomeRVMSent},
	{"no answer", domain.OutcomeNoAnswer},
	{"no contact", domain.OutcomeNoAnswer},
}

// MapResultLabel buckets a free-text or enum result name into an outcome.
// Unmatched labels default to NO_ANSWER, or to ANSWERED_CALLBACK when the
// dialer reported the call as answered: the conversation was real but its
// content is unknown, so it books a follow-up rather than exiting the
// cadence on a guess.
func MapResultLabel(label string, wasAnswered bool) domain.Outcome {
	normalized := strings.ToLower(strings.TrimSpace(label))

	if outcome, ok := exactOutcome(normalized); ok {
		return outcome
	}

	for _, entry := range labelSynonyms {
		if strings.Contains(normalized, entry.keyword) {
			return entry.outcome
		}
	}

	if wasAnswered {
		return domain.OutcomeAnsweredCallback
	}
	return domain.OutcomeNoAnswer
}

// exactOutcome accepts canonical outcome names verbatim, in either case.
func exactOutcome(normalized string) (domain.Outcome, bool) {
	candidate := domain.Outcome(strings.ToUpper(normalized))
	switch candidate {
	case domain.OutcomeNoAnswer, domain.OutcomeLeftVoicemail, domain.OutcomeBusy,
		domain.OutcomeSMSSent, domain.OutcomeRVMSent,
		domain.OutcomeAnsweredInterested, domain.OutcomeAnsweredCallback,
		domain.OutcomeAnsweredNotInterested, domain.OutcomeAnsweredDNC,
		domain.OutcomeAnsweredDead, domain.OutcomeAnsweredClosed,
		domain.OutcomeWrongNumber, domain.OutcomeDisconnected:
		return candidate, true
	}
	return "", false
}

// ResultTypeFor derives the coarse result type for a label, via the same
// outcome table the fine-grained classification uses.
func ResultTypeFor(label string, wasAnswered bool) domain.ResultType {
	return domain.ResultTypeOf(MapResultLabel(label, wasAnswered))
}

// CallInput is one raw dialer result against a lead.
type CallInput struct {
	Lead         domain.Lead
	PhoneID      *uuid.UUID
	ResultLabel  string
	WasAnswered  bool
	CallbackDate *time.Time
	Now          time.Time
}

// Processed bundles everything one call result implies.
type Processed struct {
	Outcome     domain.Outcome
	ResultType  domain.ResultType
	Transition  phase.Result
	PhoneUpdate *phones.StatusUpdate
}

// Handler turns raw call results into transitions using the injected
// template library and rules.
type Handler struct {
	templates *domain.Library
	rules     domain.Rules
}

// NewHandler creates a result handler.
func NewHandler(templates *domain.Library, rules domain.Rules) *Handler {
	return &Handler{templates: templates, rules: rules.Normalize()}
}

// ProcessCallResult classifies the label, computes the phase transition and
// the phone update for the dialed number.
func (h *Handler) ProcessCallResult(in CallInput) Processed {
	outcome := MapResultLabel(in.ResultLabel, in.WasAnswered)

	var template *domain.CadenceTemplate
	if tpl, ok := h.templates.ForType(in.Lead.CadenceType); ok {
		template = &tpl
	} else {
		tpl := h.templates.ForBand(in.Lead.Temperature)
		template = &tpl
	}

	transition := phase.CalculateTransition(phase.Input{
		Phase:         in.Lead.Phase,
		BlitzAttempts: in.Lead.BlitzAttempts,
		CadenceStep:   in.Lead.CadenceStep,
		EnrolledAt:    in.Lead.EnrolledAt,
		Outcome:       outcome,
		CallbackDate:  in.CallbackDate,
		Temperature:   in.Lead.Temperature,
		Template:      template,
		Rules:         h.rules,
		Now:           in.Now,
	})

	processed := Processed{
		Outcome:    outcome,
		ResultType: domain.ResultTypeOf(outcome),
		Transition: transition,
	}

	if in.PhoneID != nil {
		for _, p := range in.Lead.Phones {
			if p.ID == *in.PhoneID {
				update := phones.UpdateAfterCall(p, outcome, in.Now)
				processed.PhoneUpdate = &update
				break
			}
		}
	}

	return processed
}
