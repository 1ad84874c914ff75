package domain

import "time"

// Rules holds the operational tunables of the cadence engine. Built once at
// startup from config and injected, keeping the pure packages free of
// environment reads.
type Rules struct {
	Blitz1MaxAttempts   int
	Blitz2MaxAttempts   int
	MaxEnrollmentCycles int
	StaleEngagedAfter   time.Duration
}

// DefaultRules returns the production defaults.
func DefaultRules() Rules {
	return Rules{
		Blitz1MaxAttempts:   3,
		Blitz2MaxAttempts:   4,
		MaxEnrollmentCycles: 3,
		StaleEngagedAfter:   21 * 24 * time.Hour,
	}
}

// Normalize replaces non-positive fields with defaults so a partially
// populated config cannot disable a cap.
func (r Rules) Normalize() Rules {
	def := DefaultRules()
	if r.Blitz1MaxAttempts < 1 {
		r.Blitz1MaxAttempts = def.Blitz1MaxAttempts
	}
	if r.Blitz2MaxAttempts < 1 {
		r.Blitz2MaxAttempts = def.Blitz2MaxAttempts
	}
	if r.MaxEnrollmentCycles < 1 {
		r.MaxEnrollmentCycles = def.MaxEnrollmentCycles
	}
	if r.StaleEngagedAfter <= 0 {
		r.StaleEngagedAfter = def.StaleEngagedAfter
	}
	return r
}
