package engine

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"cadence_backend/internal/cadence/domain"
	"cadence_backend/internal/cadence/phones"
	"cadence_backend/internal/cadence/repository"
	"cadence_backend/platform/apperr"
	"cadence_backend/platform/logger"

	"github.com/google/uuid"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

// fakeStore is an in-memory Store. UpdateLeadCadence mirrors the repository
// semantics: cadence fields are overwritten, children and identity columns
// are left alone.
type fakeStore struct {
	mu     sync.Mutex
	leads  map[uuid.UUID]domain.Lead
	audits []repository.AuditEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{leads: make(map[uuid.UUID]domain.Lead)}
}

func (f *fakeStore) put(lead domain.Lead) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads[lead.ID] = lead
}

func (f *fakeStore) get(t *testing.T, id uuid.UUID) domain.Lead {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		t.Fatalf("lead %s not in store", id)
	}
	return lead
}

func (f *fakeStore) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	lead.Phones = append([]domain.Phone(nil), lead.Phones...)
	lead.Tasks = append([]domain.Task(nil), lead.Tasks...)
	return lead, nil
}

func (f *fakeStore) ListLeadsByStates(ctx context.Context, kinds []domain.StateKind, afterID uuid.UUID, limit int) ([]domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	wanted := make(map[domain.StateKind]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}

	var page []domain.Lead
	for _, lead := range f.leads {
		if wanted[lead.State.Kind] && bytes.Compare(lead.ID[:], afterID[:]) > 0 {
			page = append(page, lead)
		}
	}
	sort.Slice(page, func(i, j int) bool {
		return bytes.Compare(page[i].ID[:], page[j].ID[:]) < 0
	})
	if len(page) > limit {
		page = page[:limit]
	}
	return page, nil
}

func (f *fakeStore) UpdateLeadCadence(ctx context.Context, lead domain.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.leads[lead.ID]
	if !ok {
		return repository.ErrNotFound
	}
	lead.Phones = existing.Phones
	lead.Tasks = existing.Tasks
	lead.CreatedAt = existing.CreatedAt
	lead.OrganizationID = existing.OrganizationID
	f.leads[lead.ID] = lead
	return nil
}

func (f *fakeStore) InsertPhone(ctx context.Context, phone domain.Phone) (domain.Phone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[phone.LeadID]
	if !ok {
		return domain.Phone{}, repository.ErrNotFound
	}
	phone.CreatedAt = testNow
	lead.Phones = append(lead.Phones, phone)
	f.leads[phone.LeadID] = lead
	return phone, nil
}

func (f *fakeStore) UpdatePhone(ctx context.Context, update phones.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, lead := range f.leads {
		for i, p := range lead.Phones {
			if p.ID == update.PhoneID {
				lead.Phones[i] = phones.Apply(p, update)
				f.leads[id] = lead
				return nil
			}
		}
	}
	return repository.ErrNotFound
}

func (f *fakeStore) AppendAudit(ctx context.Context, entry repository.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, entry)
	return nil
}

func newTestEngine(store *fakeStore) *Engine {
	return New(
		store,
		domain.BuiltinLibrary(),
		domain.DefaultRules(),
		nil,
		logger.New("test"),
		WithClock(func() time.Time { return testNow }),
		WithSweepSettings(2, 2),
	)
}

func freshLead() domain.Lead {
	created := testNow.Add(-7 * 24 * time.Hour)
	phoneID := uuid.New()
	id := uuid.New()
	return domain.Lead{
		ID:             id,
		OrganizationID: uuid.New(),
		CreatedAt:      created,
		UpdatedAt:      created,
		Temperature:    domain.BandWarm,
		Phase:          domain.PhaseNew,
		State:          domain.Active(),
		CadenceType:    domain.CadenceWarm,
		Motivations:    []domain.Motivation{},
		Tags:           []string{},
		Phones: []domain.Phone{{
			ID:     phoneID,
			LeadID: id,
			Number: "+14155552671",
			Type:   domain.PhoneMobile,
			Status: domain.PhoneValid,
		}},
	}
}

func TestProcessActionCallPersistsTransition(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)
	lead := freshLead()
	store.put(lead)
	phoneID := lead.Phones[0].ID

	out, err := eng.ProcessAction(context.Background(), lead.ID, ActionRequest{
		Type:        ActionCall,
		PhoneID:     &phoneID,
		ResultLabel: "no answer",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.Outcome != domain.OutcomeNoAnswer {
		t.Fatalf("expected NO_ANSWER, got %s", out.Outcome)
	}
	if out.Lead.Phase != domain.PhaseBlitz1 {
		t.Fatalf("expected BLITZ_1, got %s", out.Lead.Phase)
	}
	if out.Score.Score <= 0 {
		t.Fatal("expected a recomputed priority score")
	}

	stored := store.get(t, lead.ID)
	if stored.Phase != domain.PhaseBlitz1 || stored.CallAttempts != 1 {
		t.Fatalf("transition not persisted: phase=%s attempts=%d", stored.Phase, stored.CallAttempts)
	}
	if stored.NoResponseStreak != 1 {
		t.Fatalf("expected no-response streak 1, got %d", stored.NoResponseStreak)
	}
	if stored.LastContactResult != domain.OutcomeNoAnswer {
		t.Fatalf("expected last result NO_ANSWER, got %s", stored.LastContactResult)
	}
	if stored.Phones[0].ConsecutiveNoAnswer != 1 {
		t.Fatalf("expected phone fatigue 1, got %d", stored.Phones[0].ConsecutiveNoAnswer)
	}
	if len(store.audits) != 1 || store.audits[0].Action != "call" {
		t.Fatalf("expected one call audit entry, got %+v", store.audits)
	}
}

func TestProcessActionContactSupersedesCallback(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)
	lead := freshLead()
	callback := testNow.Add(48 * time.Hour)
	lead.CallbackScheduledFor = &callback
	store.put(lead)

	out, err := eng.ProcessAction(context.Background(), lead.ID, ActionRequest{
		Type:        ActionCall,
		ResultLabel: "interested",
		WasAnswered: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.Lead.State.Kind != domain.StateExitedEngaged {
		t.Fatalf("expected EXITED_ENGAGED, got %s", out.Lead.State.Kind)
	}
	if !out.Lead.HasEngaged {
		t.Fatal("expected engagement flag set")
	}
	if out.Lead.CallbackScheduledFor != nil {
		t.Fatal("a real conversation must clear the pending callback")
	}
	if out.Lead.ReEnrollmentDate == nil {
		t.Fatal("engaged exits must carry a re-enrollment date")
	}
	if out.Lead.NextActionDue != nil {
		t.Fatal("automated dialing must stop on an engaged exit")
	}
}

func TestProcessActionTerminalLeadRejectsCalls(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)
	lead := freshLead()
	lead.State = domain.Exited(domain.StateExitedDNC, testNow.Add(-48*time.Hour), "ANSWERED_DNC")
	store.put(lead)

	_, err := eng.ProcessAction(context.Background(), lead.ID, ActionRequest{
		Type:        ActionCall,
		ResultLabel: "no answer",
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestProcessActionValidation(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)
	lead := freshLead()
	store.put(lead)

	if _, err := eng.ProcessAction(context.Background(), lead.ID, ActionRequest{Type: ActionCall}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("call without label: expected validation error, got %v", err)
	}
	if _, err := eng.ProcessAction(context.Background(), lead.ID, ActionRequest{Type: "promote"}); !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("unknown action: expected bad request, got %v", err)
	}
	if _, err := eng.ProcessAction(context.Background(), uuid.New(), ActionRequest{Type: ActionCall, ResultLabel: "no answer"}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("missing lead: expected not found, got %v", err)
	}
}

func TestSnoozeResumeRoundTrip(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)
	lead := freshLead()
	store.put(lead)

	until := testNow.Add(72 * time.Hour)
	out, err := eng.ProcessAction(context.Background(), lead.ID, ActionRequest{
		Type:        ActionSnooze,
		SnoozeUntil: &until,
	})
	if err != nil {
		t.Fatalf("snooze: %v", err)
	}
	if out.Lead.State.Kind != domain.StateSnoozed || out.Lead.State.SnoozedUntil == nil {
		t.Fatalf("expected snoozed state, got %+v", out.Lead.State)
	}

	out, err = eng.ProcessAction(context.Background(), lead.ID, ActionRequest{Type: ActionResume})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if out.Lead.State.Kind != domain.StateActive {
		t.Fatalf("expected active after resume, got %s", out.Lead.State.Kind)
	}
	if out.Lead.NextActionDue == nil || !out.Lead.NextActionDue.Equal(testNow) {
		t.Fatal("resume must surface the lead immediately")
	}
}

func TestSnoozeRejectsPastAndWrongState(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)
	lead := freshLead()
	store.put(lead)

	past := testNow.Add(-time.Hour)
	if _, err := eng.ProcessAction(context.Background(), lead.ID, ActionRequest{
		Type:        ActionSnooze,
		SnoozeUntil: &past,
	}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("past snooze: expected validation error, got %v", err)
	}

	paused := freshLead()
	paused.State = domain.Paused("vacation hold")
	store.put(paused)
	future := testNow.Add(time.Hour)
	if _, err := eng.ProcessAction(context.Background(), paused.ID, ActionRequest{
		Type:        ActionSnooze,
		SnoozeUntil: &future,
	}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("snooze from paused: expected conflict, got %v", err)
	}
}

func TestPhoneAddedRevivesDeepProspect(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)
	lead := freshLead()
	lead.Phase = domain.PhaseDeepProspect
	lead.Phones = nil
	exhausted := testNow.Add(-10 * 24 * time.Hour)
	lead.PhoneExhaustedAt = &exhausted
	lead.DeepProspectEnteredAt = &exhausted
	store.put(lead)

	out, err := eng.ProcessAction(context.Background(), lead.ID, ActionRequest{
		Type:        ActionPhoneAdded,
		PhoneNumber: "+14155552671",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.Lead.Phase != domain.PhaseBlitz2 {
		t.Fatalf("expected BLITZ_2 after a fresh number, got %s", out.Lead.Phase)
	}
	if out.Lead.BlitzAttempts != 0 {
		t.Fatalf("expected blitz attempts reset, got %d", out.Lead.BlitzAttempts)
	}
	if out.Lead.PhoneExhaustedAt != nil {
		t.Fatal("expected exhaustion marker cleared")
	}
	if out.Lead.NextActionDue == nil || !out.Lead.NextActionDue.Equal(testNow) {
		t.Fatal("revived lead must be due immediately")
	}

	stored := store.get(t, lead.ID)
	if len(stored.Phones) != 1 || stored.Phones[0].Status != domain.PhoneUnverified {
		t.Fatalf("expected one unverified phone stored, got %+v", stored.Phones)
	}

	if _, err := eng.ProcessAction(context.Background(), lead.ID, ActionRequest{
		Type:        ActionPhoneAdded,
		PhoneNumber: "+14155552671",
	}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("duplicate number: expected conflict, got %v", err)
	}
}

func TestReEnrollGateAndEnrollment(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)

	active := freshLead()
	store.put(active)
	if _, err := eng.ProcessAction(context.Background(), active.ID, ActionRequest{Type: ActionReEnroll}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("active lead: expected conflict, got %v", err)
	}

	eligible := freshLead()
	eligible.Temperature = domain.BandCold
	eligible.State = domain.CompletedNoContact()
	eligible.Phase = domain.PhaseCompleted
	eligible.EnrollmentCount = 1
	due := testNow.Add(-24 * time.Hour)
	eligible.ReEnrollmentDate = &due
	store.put(eligible)

	out, err := eng.ProcessAction(context.Background(), eligible.ID, ActionRequest{Type: ActionReEnroll})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Lead.State.Kind != domain.StateActive || out.Lead.Phase != domain.PhaseTemperature {
		t.Fatalf("expected active temperature cadence, got %s/%s", out.Lead.State.Kind, out.Lead.Phase)
	}
	if out.Lead.CadenceType != domain.CadenceCold {
		t.Fatalf("completed-no-contact lead re-runs its band cadence, got %s", out.Lead.CadenceType)
	}
	if out.Lead.CadenceStep != 1 || out.Lead.EnrollmentCount != 2 {
		t.Fatalf("expected step 1 of cycle 2, got step %d cycle %d", out.Lead.CadenceStep, out.Lead.EnrollmentCount)
	}
	if out.Lead.ReEnrollmentDate != nil {
		t.Fatal("expected re-enrollment date cleared on enrollment")
	}
}

func TestTemperatureChangeRebindsTemplate(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)
	lead := freshLead()
	lead.Phase = domain.PhaseTemperature
	lead.CadenceStep = 3
	enrolled := testNow.Add(-1 * 24 * time.Hour)
	lead.EnrolledAt = &enrolled
	store.put(lead)

	out, err := eng.ProcessAction(context.Background(), lead.ID, ActionRequest{
		Type:        ActionTemperatureChange,
		Temperature: domain.BandHot,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.Lead.Temperature != domain.BandHot || out.Lead.CadenceType != domain.CadenceHot {
		t.Fatalf("expected hot cadence, got %s/%s", out.Lead.Temperature, out.Lead.CadenceType)
	}
	if out.Lead.CadenceStep != 3 {
		t.Fatalf("progress must carry over, got step %d", out.Lead.CadenceStep)
	}
	// Two of the hot template's seven steps are behind the lead.
	if out.Lead.CadenceProgress != 2*100/7 {
		t.Fatalf("expected progress %d, got %d", 2*100/7, out.Lead.CadenceProgress)
	}
	// Hot step 3 is day 3 from enrollment; enrolled yesterday puts it two
	// days out.
	want := enrolled.Add(3 * 24 * time.Hour)
	if out.Lead.NextActionDue == nil || !out.Lead.NextActionDue.Equal(want) {
		t.Fatalf("expected due %s, got %v", want, out.Lead.NextActionDue)
	}

	if _, err := eng.ProcessAction(context.Background(), lead.ID, ActionRequest{
		Type:        ActionTemperatureChange,
		Temperature: "LUKEWARM",
	}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("unknown band: expected validation error, got %v", err)
	}
}

func TestTemperatureStepAdvanceTracksProgress(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)

	lead := freshLead()
	lead.Phase = domain.PhaseTemperature
	lead.CadenceStep = 1
	enrolled := testNow.Add(-2 * 24 * time.Hour)
	lead.EnrolledAt = &enrolled
	store.put(lead)

	out, err := eng.ProcessAction(context.Background(), lead.ID, ActionRequest{
		Type:        ActionCall,
		ResultLabel: "no answer",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Lead.CadenceStep != 2 {
		t.Fatalf("expected step 2, got %d", out.Lead.CadenceStep)
	}
	// One of the warm template's seven steps is done.
	if out.Lead.CadenceProgress != 100/7 {
		t.Fatalf("expected progress %d, got %d", 100/7, out.Lead.CadenceProgress)
	}

	final := freshLead()
	final.Phase = domain.PhaseTemperature
	final.CadenceStep = 7
	final.EnrolledAt = &enrolled
	store.put(final)

	out, err = eng.ProcessAction(context.Background(), final.ID, ActionRequest{
		Type:        ActionCall,
		ResultLabel: "no answer",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Lead.Phase != domain.PhaseCompleted || out.Lead.State.Kind != domain.StateCompletedNoContact {
		t.Fatalf("expected completed-no-contact, got %s/%s", out.Lead.Phase, out.Lead.State.Kind)
	}
	if out.Lead.CadenceProgress != 100 {
		t.Fatalf("expected progress 100 on completion, got %d", out.Lead.CadenceProgress)
	}
}

// stubScheduler records callback reminders the engine asks for.
type stubScheduler struct {
	mu    sync.Mutex
	runAt []time.Time
}

func (s *stubScheduler) ScheduleCallbackReminder(ctx context.Context, leadID, organizationID uuid.UUID, runAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runAt = append(s.runAt, runAt)
	return nil
}

func TestCallbackOutcomeSchedulesReminder(t *testing.T) {
	store := newFakeStore()
	eng := newTestEngine(store)
	sched := &stubScheduler{}
	eng.SetCallbackScheduler(sched)

	lead := freshLead()
	store.put(lead)

	callbackAt := testNow.Add(3 * 24 * time.Hour)
	out, err := eng.ProcessAction(context.Background(), lead.ID, ActionRequest{
		Type:         ActionCall,
		ResultLabel:  "callback",
		WasAnswered:  true,
		CallbackDate: &callbackAt,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.Lead.CallbackScheduledFor == nil || !out.Lead.CallbackScheduledFor.Equal(callbackAt) {
		t.Fatalf("expected callback on the books, got %v", out.Lead.CallbackScheduledFor)
	}
	if out.Lead.CallbackRequestedAt == nil {
		t.Fatal("expected callback request stamped")
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()
	if len(sched.runAt) != 1 || !sched.runAt[0].Equal(callbackAt) {
		t.Fatalf("expected one reminder at %s, got %v", callbackAt, sched.runAt)
	}
}
