// Package scoring computes deterministic priority scores for leads.
// All functions are pure: same inputs always yield identical outputs, with
// the current time passed in explicitly.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"cadence_backend/internal/cadence/domain"
)

const (
	// scoreVersion tracks the scoring model for debugging and analysis.
	// Bump this when changing scoring logic significantly.
	ScoreVersion = "2026-v1"

	// lowUrgencyCap bounds the total contribution of low-urgency
	// motivations so they can never out-rank a single high-urgency signal.
	lowUrgencyCap = 12.0

	// synergyBonus is added when two or more distress signals stack.
	synergyBonus = 10.0

	// rescueMaxBoost caps the smart-rescue staleness boost.
	rescueMaxBoost = 25.0

	// rescueIdleThresholdDays is how long a never-contacted lead must sit
	// untouched before the rescue boost starts accruing.
	rescueIdleThresholdDays = 14.0
)

// Confidence tiers how much signal the score is based on.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// Reason is one labeled contribution to the score, in application order.
type Reason struct {
	Label string `json:"label"`
	Delta int    `json:"delta"`
}

// Result holds the scoring output.
type Result struct {
	Score        int        `json:"score"`
	Confidence   Confidence `json:"confidence"`
	NextAction   string     `json:"nextAction"`
	TopReason    string     `json:"topReason"`
	Reasons      []Reason   `json:"reasons"`
	ReasonString string     `json:"reasonString"`
	Version      string     `json:"version"`
}

// motivationDecay is the decay schedule for stacked motivations: the Nth
// motivation contributes this fraction of its base weight. Past the schedule
// the factor halves per extra motivation, so every additional motivation
// contributes strictly less than the one before it.
var motivationDecay = []float64{1.0, 0.6, 0.35, 0.2, 0.1}

// motivationBaseWeights by urgency tier.
var motivationBaseWeights = map[domain.MotivationUrgency]float64{
	domain.UrgencyHigh:   20,
	domain.UrgencyMedium: 12,
	domain.UrgencyLow:    5,
}

// distressSignals are motivation kinds whose combination indicates a seller
// under compounding pressure; two or more earn the synergy bonus.
var distressSignals = map[string]bool{
	"preforeclosure": true,
	"tax_lien":       true,
	"probate":        true,
	"divorce":        true,
	"bankruptcy":     true,
	"eviction":       true,
}

// temperatureBase by band.
var temperatureBase = map[domain.TemperatureBand]float64{
	domain.BandHot:  40,
	domain.BandWarm: 25,
	domain.BandCold: 12,
	domain.BandIce:  5,
}

// statusModifiers adjust the score by status category. Matching is
// case-insensitive on a normalized key.
var statusModifiers = map[string]float64{
	"new":            8,
	"qualified":      15,
	"contacted":      5,
	"nurture":        0,
	"unqualified":    -10,
	"not_interested": -20,
}

// tagScoreTable maps tag keywords to score deltas, highest value first.
var tagScoreTable = []struct {
	keyword string
	delta   float64
}{
	{"high_equity", 10},
	{"vacant", 8},
	{"absentee", 6},
	{"inherited", 6},
	{"code_violation", 5},
	{"tired_landlord", 5},
	{"expired_listing", 4},
}

// maxTagContribution bounds the tag factor so tag spam cannot dominate.
const maxTagContribution = 20.0

// ComputePriority scores a lead. The score is an unbounded non-negative
// integer; workability is reported through NextAction, never by zeroing
// the score.
func ComputePriority(lead domain.Lead, now time.Time) Result {
	score := 0.0
	reasons := make([]Reason, 0, 8)

	addFactor := func(label string, delta float64) {
		if math.Abs(delta) < 0.5 {
			return
		}
		score += delta
		reasons = append(reasons, Reason{Label: label, Delta: int(math.Round(delta))})
	}

	addFactor(string(lead.Temperature)+" temperature", temperatureBase[lead.Temperature])

	motivationScore, motivationCount := scoreMotivations(lead.Motivations)
	addFactor(fmt.Sprintf("%d motivation(s)", motivationCount), motivationScore)

	if countDistress(lead.Motivations) >= 2 {
		addFactor("distress signal stack", synergyBonus)
	}

	addFactor("status "+normalizeStatus(lead.StatusCategory), scoreStatus(lead.StatusCategory))
	addFactor("tags", scoreTags(lead.Tags))
	addFactor("channel readiness", scoreChannel(lead))
	addFactor("task due", scoreTasks(lead, now))
	addFactor("untouched rescue", scoreStaleness(lead, now))
	addFactor("recent engagement", scoreEngagementRecency(lead, now))

	if score < 0 {
		score = 0
	}

	result := Result{
		Score:      int(math.Round(score)),
		Confidence: confidenceFor(lead),
		NextAction: nextActionFor(lead, now),
		Reasons:    reasons,
		Version:    ScoreVersion,
	}
	result.TopReason, result.ReasonString = summarizeReasons(reasons)
	return result
}

// scoreMotivations applies diminishing returns to stacked motivations:
// motivations are ordered strongest-first and each successive one
// contributes a smaller fraction of its base weight. Low-urgency
// contributions are capped in total regardless of count.
func scoreMotivations(motivations []domain.Motivation) (float64, int) {
	if len(motivations) == 0 {
		return 0, 0
	}

	ordered := make([]domain.Motivation, len(motivations))
	copy(ordered, motivations)
	sort.SliceStable(ordered, func(i, j int) bool {
		return motivationBaseWeights[ordered[i].Urgency] > motivationBaseWeights[ordered[j].Urgency]
	})

	total := 0.0
	lowTotal := 0.0
	for i, m := range ordered {
		factor := motivationDecay[len(motivationDecay)-1]
		if i < len(motivationDecay) {
			factor = motivationDecay[i]
		} else {
			for j := len(motivationDecay); j <= i; j++ {
				factor /= 2
			}
		}
		contribution := motivationBaseWeights[m.Urgency] * factor
		if m.Urgency == domain.UrgencyLow {
			remaining := lowUrgencyCap - lowTotal
			if contribution > remaining {
				contribution = remaining
			}
			if contribution < 0 {
				contribution = 0
			}
			lowTotal += contribution
		}
		total += contribution
	}

	return total, len(ordered)
}

func countDistress(motivations []domain.Motivation) int {
	count := 0
	for _, m := range motivations {
		if distressSignals[strings.ToLower(m.Kind)] {
			count++
		}
	}
	return count
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(status), " ", "_"))
}

func scoreStatus(status string) float64 {
	return statusModifiers[normalizeStatus(status)]
}

func scoreTags(tags []string) float64 {
	total := 0.0
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		for _, entry := range tagScoreTable {
			if strings.Contains(lower, entry.keyword) {
				total += entry.delta
				break
			}
		}
	}
	return clampFloat(total, 0, maxTagContribution)
}

// scoreChannel rewards reachability independently of content score, so an
// unreachable lead still surfaces near the top of "needs new phone" queues
// instead of vanishing.
func scoreChannel(lead domain.Lead) float64 {
	score := 0.0
	if lead.HasValidPhone() {
		score += 8
	} else if lead.HasCallablePhone() {
		score += 4
	}
	if lead.HasMobilePhone() {
		score += 4
	}
	return score
}

func scoreTasks(lead domain.Lead, now time.Time) float64 {
	overdue := false
	dueToday := false
	for _, t := range lead.Tasks {
		if t.Overdue(now) {
			overdue = true
			break
		}
		if t.DueToday(now) {
			dueToday = true
		}
	}
	switch {
	case overdue:
		return 10
	case dueToday:
		return 6
	default:
		return 0
	}
}

// scoreStaleness is the smart-rescue boost: leads untouched for a long
// time but never actually contacted resurface instead of being buried by
// recency-sorted noise. Any record of genuine engagement resets the boost
// to zero, so a newly engaged lead is scored on fresh signals only.
func scoreStaleness(lead domain.Lead, now time.Time) float64 {
	if lead.HasEngaged || lead.LastContactResult.IsContact() {
		return 0
	}

	// Absent timestamps mean "never touched", maximizing idle time from
	// creation.
	idleFrom := lead.CreatedAt
	if lead.LastContactedAt != nil && lead.LastContactedAt.After(idleFrom) {
		idleFrom = *lead.LastContactedAt
	}

	idleDays := now.Sub(idleFrom).Hours() / 24
	if idleDays <= rescueIdleThresholdDays {
		return 0
	}

	// Square-root growth: the boost keeps accruing with idle time but with
	// diminishing increments, saturating at rescueMaxBoost.
	boost := 3 * math.Sqrt(idleDays-rescueIdleThresholdDays)
	return clampFloat(boost, 0, rescueMaxBoost)
}

func scoreEngagementRecency(lead domain.Lead, now time.Time) float64 {
	if lead.LastContactedAt == nil || !lead.LastContactResult.IsContact() {
		return 0
	}
	if now.Sub(*lead.LastContactedAt) <= 7*24*time.Hour {
		return 6
	}
	return 0
}

func confidenceFor(lead domain.Lead) Confidence {
	signals := 0
	if len(lead.Motivations) > 0 {
		signals++
	}
	if len(lead.Phones) > 0 {
		signals++
	}
	if normalizeStatus(lead.StatusCategory) != "" {
		signals++
	}
	if lead.LastContactedAt != nil {
		signals++
	}

	switch {
	case signals >= 3 && lead.HasValidPhone():
		return ConfidenceHigh
	case signals >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// nextActionFor classifies workability. Score and workability are
// orthogonal: a DNC'd lead keeps its score but is flagged not workable.
func nextActionFor(lead domain.Lead, now time.Time) string {
	switch lead.State.Kind {
	case domain.StateExitedDNC, domain.StateExitedDead, domain.StateExitedClosed,
		domain.StateSnoozed, domain.StatePaused:
		return "Not Workable"
	}

	switch {
	case !lead.HasCallablePhone():
		return "Get Numbers"
	case !lead.HasValidPhone():
		return "Verify & Call"
	case domain.DueNow(lead.CallbackScheduledFor, now):
		return "Call Back"
	default:
		return "Call Now"
	}
}

func summarizeReasons(reasons []Reason) (string, string) {
	if len(reasons) == 0 {
		return "no scoring signals", "no scoring signals"
	}

	ordered := make([]Reason, len(reasons))
	copy(ordered, reasons)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Delta > ordered[j].Delta
	})

	top := ordered[0].Label
	n := len(ordered)
	if n > 3 {
		n = 3
	}
	parts := make([]string, 0, n)
	for _, r := range ordered[:n] {
		parts = append(parts, fmt.Sprintf("%s (%+d)", r.Label, r.Delta))
	}
	return top, strings.Join(parts, ", ")
}

func clampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
