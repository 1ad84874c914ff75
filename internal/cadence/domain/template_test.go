package domain

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltinLibraryCoversEveryCadenceType(t *testing.T) {
	lib := BuiltinLibrary()
	for _, typ := range []CadenceType{
		CadenceHot, CadenceWarm, CadenceCold, CadenceIce, CadenceGentle, CadenceAnnual,
	} {
		tpl, ok := lib.ForType(typ)
		if !ok {
			t.Fatalf("no builtin template for %s", typ)
		}
		if tpl.TotalSteps != len(tpl.Steps) || tpl.TotalSteps == 0 {
			t.Fatalf("%s: bad step bookkeeping: %d/%d", typ, tpl.TotalSteps, len(tpl.Steps))
		}
		if tpl.TotalDays != tpl.Steps[len(tpl.Steps)-1].DayOffset {
			t.Fatalf("%s: total days %d does not match last step", typ, tpl.TotalDays)
		}
	}
}

func TestForBandFallsBackToWarm(t *testing.T) {
	lib := BuiltinLibrary()
	if got := lib.ForBand("TEPID").Type; got != CadenceWarm {
		t.Fatalf("unknown band must fall back to WARM, got %s", got)
	}
	if got := lib.ForBand(BandIce).Type; got != CadenceIce {
		t.Fatalf("expected ICE template, got %s", got)
	}
}

func TestLoadLibraryOverlaysFileTemplates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cadences.yaml")
	doc := `templates:
  - name: Aggressive hot
    type: HOT
    steps:
      - step: 1
        day: 0
        action: CALL
        description: Same-day call
      - step: 2
        day: 1
        action: CALL
        description: Next-day call
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	lib, err := LoadLibrary(path)
	if err != nil {
		t.Fatalf("load library: %v", err)
	}

	hot, ok := lib.ForType(CadenceHot)
	if !ok {
		t.Fatal("HOT template missing after overlay")
	}
	if hot.Name != "Aggressive hot" || hot.TotalSteps != 2 || hot.TotalDays != 1 {
		t.Fatalf("overlay did not replace the builtin: %+v", hot)
	}

	// Types the file does not mention keep their builtins.
	if _, ok := lib.ForType(CadenceGentle); !ok {
		t.Fatal("GENTLE builtin lost during overlay")
	}
}

func TestLoadLibraryRejectsBrokenTemplates(t *testing.T) {
	cases := map[string]string{
		"no type": `templates:
  - name: Nameless
    steps:
      - step: 1
        day: 0
        action: CALL
`,
		"no steps": `templates:
  - name: Empty
    type: HOT
    steps: []
`,
		"day order": `templates:
  - name: Backwards
    type: HOT
    steps:
      - step: 1
        day: 5
        action: CALL
      - step: 2
        day: 2
        action: CALL
`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cadences.yaml")
			if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadLibrary(path); err == nil {
				t.Fatal("expected a load error")
			}
		})
	}
}

func TestLoadLibraryMissingFile(t *testing.T) {
	if _, err := LoadLibrary("/nonexistent/cadences.yaml"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if _, err := LoadLibrary(""); err != nil {
		t.Fatalf("empty path means builtins only, got %v", err)
	}
}
