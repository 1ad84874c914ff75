package phase

import (
	"time"

	"cadence_backend/internal/cadence/domain"
)

// reEnrollBaseWait is the per-band cooldown before a completed lead may be
// re-enrolled. Hotter bands come back sooner.
var reEnrollBaseWait = map[domain.TemperatureBand]time.Duration{
	domain.BandHot:  30 * 24 * time.Hour,
	domain.BandWarm: 60 * 24 * time.Hour,
	domain.BandCold: 90 * 24 * time.Hour,
	domain.BandIce:  120 * 24 * time.Hour,
}

// reEnrollScoreMultiplier stretches the wait for weak leads: lower current
// score means a longer cooldown.
func reEnrollScoreMultiplier(score int) float64 {
	switch {
	case score >= 80:
		return 0.75
	case score >= 50:
		return 1.0
	case score >= 25:
		return 1.5
	default:
		return 2.0
	}
}

// ReEnrollmentDate computes when a lead finishing its cadence may come back:
// now + baseWait(band) × scoreMultiplier(score). The result is always in
// the future.
func ReEnrollmentDate(band domain.TemperatureBand, score int, now time.Time) time.Time {
	base, ok := reEnrollBaseWait[band]
	if !ok {
		base = reEnrollBaseWait[domain.BandWarm]
	}
	wait := time.Duration(float64(base) * reEnrollScoreMultiplier(score))
	return now.Add(wait)
}

// CanReEnroll gates re-enrollment, scheduled or manual. Terminal exits are
// excluded unconditionally; the enrollment-cycle cap and the computed
// re-enrollment date both apply.
func CanReEnroll(lead domain.Lead, rules domain.Rules, now time.Time) bool {
	rules = rules.Normalize()

	if domain.NeverReEnrollStates[lead.State.Kind] {
		return false
	}
	if !domain.IsReEnrollable(lead.State.Kind) {
		return false
	}
	if lead.EnrollmentCount >= rules.MaxEnrollmentCycles {
		return false
	}
	if lead.ReEnrollmentDate != nil && lead.ReEnrollmentDate.After(now) {
		return false
	}
	return true
}

// ReEnrollTarget picks the cadence a returning lead restarts under.
// Stale-engaged leads get the gentle track; everyone else re-runs their
// temperature cadence.
func ReEnrollTarget(lead domain.Lead) domain.CadenceType {
	if lead.State.Kind == domain.StateExitedEngaged || lead.State.Kind == domain.StateStaleEngaged {
		return domain.CadenceGentle
	}
	return domain.CadenceTypeForBand(lead.Temperature)
}

// IsStaleEngaged reports whether an exited-engaged lead has gone quiet for
// long enough to be re-approached under the gentle cadence.
func IsStaleEngaged(lead domain.Lead, rules domain.Rules, now time.Time) bool {
	rules = rules.Normalize()

	if lead.State.Kind != domain.StateExitedEngaged {
		return false
	}

	lastActivity := lead.UpdatedAt
	if lead.LastContactedAt != nil && lead.LastContactedAt.After(lastActivity) {
		lastActivity = *lead.LastContactedAt
	}
	return now.Sub(lastActivity) >= rules.StaleEngagedAfter
}
