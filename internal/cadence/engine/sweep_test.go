package engine

import (
	"context"
	"testing"
	"time"

	"cadence_backend/internal/cadence/domain"
)

func TestSweepUnsnoozesPastDueLeads(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)

	expired := freshLead()
	expired.State = domain.Snoozed(testNow.Add(-time.Hour))
	store.put(expired)

	stillSnoozed := freshLead()
	stillSnoozed.State = domain.Snoozed(testNow.Add(48 * time.Hour))
	store.put(stillSnoozed)

	summary, err := eng.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Status != SweepStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (%v)", summary.Status, summary.Errors)
	}
	if summary.Unsnoozed != 1 {
		t.Fatalf("expected 1 unsnoozed, got %d", summary.Unsnoozed)
	}

	woken := store.get(t, expired.ID)
	if woken.State.Kind != domain.StateActive {
		t.Fatalf("expected active, got %s", woken.State.Kind)
	}
	if woken.NextActionDue == nil || !woken.NextActionDue.Equal(testNow) {
		t.Fatal("woken lead must be due immediately")
	}

	asleep := store.get(t, stillSnoozed.ID)
	if asleep.State.Kind != domain.StateSnoozed {
		t.Fatalf("future snooze must hold, got %s", asleep.State.Kind)
	}
}

func TestSweepMarksStaleEngaged(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)

	quiet := freshLead()
	exitedAt := testNow.Add(-30 * 24 * time.Hour)
	quiet.State = domain.Exited(domain.StateExitedEngaged, exitedAt, "ANSWERED_INTERESTED")
	quiet.UpdatedAt = exitedAt
	quiet.HasEngaged = true
	// Keep the re-enrollment window closed so only the marking pass fires.
	notYet := testNow.Add(10 * 24 * time.Hour)
	quiet.ReEnrollmentDate = &notYet
	store.put(quiet)

	recent := freshLead()
	recentExit := testNow.Add(-5 * 24 * time.Hour)
	recent.State = domain.Exited(domain.StateExitedEngaged, recentExit, "ANSWERED_INTERESTED")
	recent.UpdatedAt = recentExit
	recent.ReEnrollmentDate = &notYet
	store.put(recent)

	summary, err := eng.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.StaleEngagedMarked != 1 {
		t.Fatalf("expected 1 stale-engaged marked, got %d", summary.StaleEngagedMarked)
	}
	if got := store.get(t, quiet.ID).State.Kind; got != domain.StateStaleEngaged {
		t.Fatalf("expected STALE_ENGAGED, got %s", got)
	}
	if got := store.get(t, recent.ID).State.Kind; got != domain.StateExitedEngaged {
		t.Fatalf("recent exit must hold, got %s", got)
	}
}

func TestSweepReEnrollsDueLeads(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)

	due := freshLead()
	due.Temperature = domain.BandCold
	due.State = domain.CompletedNoContact()
	due.Phase = domain.PhaseCompleted
	due.EnrollmentCount = 1
	past := testNow.Add(-24 * time.Hour)
	due.ReEnrollmentDate = &past
	store.put(due)

	capped := freshLead()
	capped.State = domain.CompletedNoContact()
	capped.Phase = domain.PhaseCompleted
	capped.EnrollmentCount = 3
	capped.ReEnrollmentDate = &past
	store.put(capped)

	summary, err := eng.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.ReEnrolled != 1 {
		t.Fatalf("expected 1 re-enrolled, got %d", summary.ReEnrolled)
	}

	cycled := store.get(t, due.ID)
	if cycled.State.Kind != domain.StateActive || cycled.Phase != domain.PhaseTemperature {
		t.Fatalf("expected a fresh temperature cycle, got %s/%s", cycled.State.Kind, cycled.Phase)
	}
	if cycled.CadenceType != domain.CadenceCold || cycled.EnrollmentCount != 2 {
		t.Fatalf("expected cold cadence cycle 2, got %s cycle %d", cycled.CadenceType, cycled.EnrollmentCount)
	}

	if got := store.get(t, capped.ID).State.Kind; got != domain.StateCompletedNoContact {
		t.Fatalf("cycle-capped lead must hold, got %s", got)
	}
}

func TestSweepPhoneHealthPasses(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)

	spent := freshLead()
	spent.Phase = domain.PhaseTemperature
	spent.Phones[0].Status = domain.PhoneWrong
	store.put(spent)

	parked := freshLead()
	parked.Phase = domain.PhaseDeepProspect
	parked.Phones[0].Status = domain.PhoneUnverified
	exhausted := testNow.Add(-10 * 24 * time.Hour)
	parked.PhoneExhaustedAt = &exhausted
	store.put(parked)

	summary, err := eng.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.PhoneExhaustedMarked != 1 {
		t.Fatalf("expected 1 exhaustion marked, got %d", summary.PhoneExhaustedMarked)
	}
	if summary.DeepProspectReactivated != 1 {
		t.Fatalf("expected 1 reactivation, got %d", summary.DeepProspectReactivated)
	}

	marked := store.get(t, spent.ID)
	if marked.PhoneExhaustedAt == nil {
		t.Fatal("expected exhaustion stamp on the spent lead")
	}

	revived := store.get(t, parked.ID)
	if revived.Phase != domain.PhaseBlitz2 {
		t.Fatalf("expected BLITZ_2, got %s", revived.Phase)
	}
	if revived.PhoneExhaustedAt != nil {
		t.Fatal("expected exhaustion stamp cleared on reactivation")
	}
}

func TestSweepRefreshesStaleScores(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)

	stale := freshLead()
	stale.PriorityScore = 0 // a warm lead with a valid phone scores well above zero
	store.put(stale)

	summary, err := eng.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.QueueTiersRefreshed != 1 {
		t.Fatalf("expected 1 refresh, got %d", summary.QueueTiersRefreshed)
	}
	if got := store.get(t, stale.ID).PriorityScore; got <= 0 {
		t.Fatalf("expected a positive stored score, got %d", got)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)

	expired := freshLead()
	expired.State = domain.Snoozed(testNow.Add(-time.Hour))
	store.put(expired)

	dueBack := freshLead()
	dueBack.State = domain.CompletedNoContact()
	dueBack.Phase = domain.PhaseCompleted
	dueBack.EnrollmentCount = 1
	past := testNow.Add(-24 * time.Hour)
	dueBack.ReEnrollmentDate = &past
	store.put(dueBack)

	spent := freshLead()
	spent.Phase = domain.PhaseTemperature
	spent.Phones[0].Status = domain.PhoneDisconnected
	store.put(spent)

	first, err := eng.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Unsnoozed != 1 || first.ReEnrolled != 1 || first.PhoneExhaustedMarked != 1 {
		t.Fatalf("first run expected 1/1/1, got %d/%d/%d", first.Unsnoozed, first.ReEnrolled, first.PhoneExhaustedMarked)
	}

	second, err := eng.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Status != SweepStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (%v)", second.Status, second.Errors)
	}
	if second.Unsnoozed != 0 || second.ReEnrolled != 0 || second.PhoneExhaustedMarked != 0 ||
		second.DeepProspectReactivated != 0 || second.StaleEngagedMarked != 0 || second.QueueTiersRefreshed != 0 {
		t.Fatalf("second run must change nothing, got %+v", second)
	}
}
