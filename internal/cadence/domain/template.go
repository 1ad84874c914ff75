package domain

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// CadenceStep is one scheduled touch inside a template, expressed as a day
// offset from enrollment.
type CadenceStep struct {
	StepNumber  int        `yaml:"step"`
	DayOffset   int        `yaml:"day"`
	Action      ActionType `yaml:"action"`
	Description string     `yaml:"description"`
}

// CadenceTemplate is an immutable follow-up schedule seeded once at process
// start. A lead's CadenceStep/CadenceProgress index into the template bound
// to its CadenceType.
type CadenceTemplate struct {
	Name       string        `yaml:"name"`
	Type       CadenceType   `yaml:"type"`
	TotalSteps int           `yaml:"-"`
	TotalDays  int           `yaml:"-"`
	Steps      []CadenceStep `yaml:"steps"`
}

// Library holds the process-wide template set. It is built once and
// injected into the engine rather than referenced as a module-level global.
type Library struct {
	templates map[CadenceType]CadenceTemplate
}

// BuiltinLibrary returns the seeded template set.
func BuiltinLibrary() *Library {
	lib := &Library{templates: make(map[CadenceType]CadenceTemplate)}
	for _, tpl := range builtinTemplates() {
		lib.put(tpl)
	}
	return lib
}

// LoadLibrary builds the seeded set and, when path is non-empty, overlays
// templates from a YAML file. File templates replace builtins of the same
// type wholesale.
func LoadLibrary(path string) (*Library, error) {
	lib := BuiltinLibrary()
	if path == "" {
		return lib, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cadence template file: %w", err)
	}

	var doc struct {
		Templates []CadenceTemplate `yaml:"templates"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse cadence template file: %w", err)
	}

	for _, tpl := range doc.Templates {
		if err := validateTemplate(tpl); err != nil {
			return nil, err
		}
		lib.put(tpl)
	}
	return lib, nil
}

func (l *Library) put(tpl CadenceTemplate) {
	sort.Slice(tpl.Steps, func(i, j int) bool {
		return tpl.Steps[i].StepNumber < tpl.Steps[j].StepNumber
	})
	tpl.TotalSteps = len(tpl.Steps)
	if n := len(tpl.Steps); n > 0 {
		tpl.TotalDays = tpl.Steps[n-1].DayOffset
	}
	l.templates[tpl.Type] = tpl
}

// Progress reports the completed share of the template as a 0-100 percent,
// given the one-based current step. The current step counts as pending.
func (t CadenceTemplate) Progress(step int) int {
	if t.TotalSteps == 0 {
		return 0
	}
	done := step - 1
	if done < 0 {
		done = 0
	}
	if done > t.TotalSteps {
		done = t.TotalSteps
	}
	return done * 100 / t.TotalSteps
}

// ForType returns the template bound to a cadence type.
func (l *Library) ForType(t CadenceType) (CadenceTemplate, bool) {
	tpl, ok := l.templates[t]
	return tpl, ok
}

// ForBand returns the template matching a temperature band, falling back to
// the WARM template when the band has no template of its own. Missing
// reference data downgrades to a safe default rather than failing the
// action.
func (l *Library) ForBand(band TemperatureBand) CadenceTemplate {
	if tpl, ok := l.templates[CadenceTypeForBand(band)]; ok {
		return tpl
	}
	return l.templates[CadenceWarm]
}

// CadenceTypeForBand maps a temperature band to its cadence type.
func CadenceTypeForBand(band TemperatureBand) CadenceType {
	switch band {
	case BandHot:
		return CadenceHot
	case BandWarm:
		return CadenceWarm
	case BandCold:
		return CadenceCold
	case BandIce:
		return CadenceIce
	default:
		return CadenceWarm
	}
}

func validateTemplate(tpl CadenceTemplate) error {
	if tpl.Type == "" {
		return fmt.Errorf("cadence template %q has no type", tpl.Name)
	}
	if len(tpl.Steps) == 0 {
		return fmt.Errorf("cadence template %q has no steps", tpl.Name)
	}
	prev := -1
	for _, step := range tpl.Steps {
		if step.DayOffset < 0 {
			return fmt.Errorf("cadence template %q step %d has negative day offset", tpl.Name, step.StepNumber)
		}
		if step.DayOffset < prev {
			return fmt.Errorf("cadence template %q steps are not in day order", tpl.Name)
		}
		prev = step.DayOffset
	}
	return nil
}

func builtinTemplates() []CadenceTemplate {
	return []CadenceTemplate{
		{
			Name: "Hot pursuit",
			Type: CadenceHot,
			Steps: []CadenceStep{
				{StepNumber: 1, DayOffset: 0, Action: ActionCall, Description: "Same-day call"},
				{StepNumber: 2, DayOffset: 1, Action: ActionSMS, Description: "Intro text"},
				{StepNumber: 3, DayOffset: 3, Action: ActionCall, Description: "Second call"},
				{StepNumber: 4, DayOffset: 5, Action: ActionRVM, Description: "Voicemail drop"},
				{StepNumber: 5, DayOffset: 8, Action: ActionCall, Description: "Third call"},
				{StepNumber: 6, DayOffset: 11, Action: ActionSMS, Description: "Check-in text"},
				{StepNumber: 7, DayOffset: 14, Action: ActionCall, Description: "Final push call"},
			},
		},
		{
			Name: "Warm follow-up",
			Type: CadenceWarm,
			Steps: []CadenceStep{
				{StepNumber: 1, DayOffset: 0, Action: ActionCall, Description: "Opening call"},
				{StepNumber: 2, DayOffset: 2, Action: ActionSMS, Description: "Intro text"},
				{StepNumber: 3, DayOffset: 5, Action: ActionCall, Description: "Second call"},
				{StepNumber: 4, DayOffset: 9, Action: ActionRVM, Description: "Voicemail drop"},
				{StepNumber: 5, DayOffset: 14, Action: ActionCall, Description: "Third call"},
				{StepNumber: 6, DayOffset: 21, Action: ActionSMS, Description: "Check-in text"},
				{StepNumber: 7, DayOffset: 28, Action: ActionCall, Description: "Closing call"},
			},
		},
		{
			Name: "Cold drip",
			Type: CadenceCold,
			Steps: []CadenceStep{
				{StepNumber: 1, DayOffset: 0, Action: ActionCall, Description: "Opening call"},
				{StepNumber: 2, DayOffset: 7, Action: ActionSMS, Description: "Intro text"},
				{StepNumber: 3, DayOffset: 16, Action: ActionRVM, Description: "Voicemail drop"},
				{StepNumber: 4, DayOffset: 27, Action: ActionCall, Description: "Second call"},
				{StepNumber: 5, DayOffset: 38, Action: ActionSMS, Description: "Check-in text"},
				{StepNumber: 6, DayOffset: 45, Action: ActionCall, Description: "Closing call"},
			},
		},
		{
			Name: "Ice long-cycle",
			Type: CadenceIce,
			Steps: []CadenceStep{
				{StepNumber: 1, DayOffset: 0, Action: ActionCall, Description: "Opening call"},
				{StepNumber: 2, DayOffset: 30, Action: ActionSMS, Description: "Check-in text"},
				{StepNumber: 3, DayOffset: 60, Action: ActionRVM, Description: "Voicemail drop"},
				{StepNumber: 4, DayOffset: 90, Action: ActionCall, Description: "Closing call"},
			},
		},
		{
			Name: "Gentle re-engage",
			Type: CadenceGentle,
			Steps: []CadenceStep{
				{StepNumber: 1, DayOffset: 0, Action: ActionSMS, Description: "Soft check-in text"},
				{StepNumber: 2, DayOffset: 7, Action: ActionCall, Description: "Re-engagement call"},
				{StepNumber: 3, DayOffset: 21, Action: ActionSMS, Description: "Final nudge"},
			},
		},
		{
			Name: "Annual touch",
			Type: CadenceAnnual,
			Steps: []CadenceStep{
				{StepNumber: 1, DayOffset: 0, Action: ActionCall, Description: "Annual check-in call"},
				{StepNumber: 2, DayOffset: 90, Action: ActionSMS, Description: "Quarterly text"},
				{StepNumber: 3, DayOffset: 180, Action: ActionRVM, Description: "Mid-year voicemail"},
				{StepNumber: 4, DayOffset: 270, Action: ActionSMS, Description: "Quarterly text"},
			},
		},
	}
}
