package queue

import (
	"testing"
	"time"

	"cadence_backend/internal/cadence/domain"

	"github.com/google/uuid"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func activeLead() domain.Lead {
	created := testNow.Add(-30 * 24 * time.Hour)
	return domain.Lead{
		ID:           uuid.New(),
		Temperature:  domain.BandWarm,
		Phase:        domain.PhaseTemperature,
		State:        domain.Active(),
		CadenceType:  domain.CadenceWarm,
		Motivations:  []domain.Motivation{},
		Tags:         []string{},
		CallAttempts: 3,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func withValidMobile(lead domain.Lead) domain.Lead {
	lead.Phones = append(lead.Phones, domain.Phone{
		ID:     uuid.New(),
		LeadID: lead.ID,
		Number: "+15550000001",
		Type:   domain.PhoneMobile,
		Status: domain.PhoneValid,
	})
	return lead
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestInvisibleStatesNeverQueue(t *testing.T) {
	for _, kind := range []domain.StateKind{
		domain.StateSnoozed,
		domain.StatePaused,
		domain.StateExitedDNC,
		domain.StateExitedDead,
		domain.StateExitedClosed,
		domain.StateExitedEngaged,
	} {
		lead := withValidMobile(activeLead())
		lead.State = domain.CadenceState{Kind: kind}
		// Even a due callback must not surface an invisible lead.
		lead.CallbackScheduledFor = ptrTime(testNow.Add(-time.Hour))

		if _, visible := AssignTier(lead, testNow); visible {
			t.Errorf("state %s should be invisible to the queue", kind)
		}
	}
}

func TestClassifyPrecedence(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*domain.Lead)
		wantTier   int
		wantBucket string
	}{
		{
			name: "due callback beats everything",
			mutate: func(l *domain.Lead) {
				l.CallbackScheduledFor = ptrTime(testNow.Add(-2 * time.Hour))
				l.CallAttempts = 0
				l.Phase = domain.PhaseNew
			},
			wantTier:   1,
			wantBucket: "callbacks",
		},
		{
			name: "never attempted",
			mutate: func(l *domain.Lead) {
				l.CallAttempts = 0
				l.Phase = domain.PhaseNew
			},
			wantTier:   2,
			wantBucket: "fresh",
		},
		{
			name: "blitz follow-up due",
			mutate: func(l *domain.Lead) {
				l.Phase = domain.PhaseBlitz1
				l.NextActionDue = ptrTime(testNow.Add(-time.Hour))
			},
			wantTier:   3,
			wantBucket: "blitz",
		},
		{
			name: "open task due today",
			mutate: func(l *domain.Lead) {
				l.Phase = domain.PhaseDeepProspect
				l.Tasks = []domain.Task{{
					ID:     uuid.New(),
					LeadID: l.ID,
					Title:  "pull skip trace",
					DueAt:  ptrTime(testNow),
				}}
			},
			wantTier:   4,
			wantBucket: "tasks",
		},
		{
			name: "cadence step due",
			mutate: func(l *domain.Lead) {
				l.NextActionDue = ptrTime(testNow.Add(-time.Hour))
			},
			wantTier:   5,
			wantBucket: "cadence",
		},
		{
			name:       "active with verified phone",
			mutate:     func(l *domain.Lead) {},
			wantTier:   6,
			wantBucket: "active",
		},
		{
			name: "unverified phone needs validation",
			mutate: func(l *domain.Lead) {
				l.Phones[0].Status = domain.PhoneUnverified
			},
			wantTier:   7,
			wantBucket: "verify",
		},
		{
			name: "no callable phone and not exhausted",
			mutate: func(l *domain.Lead) {
				l.Phones[0].Status = domain.PhoneWrong
			},
			wantTier:   8,
			wantBucket: "get_numbers",
		},
		{
			name: "exhausted falls to nurture",
			mutate: func(l *domain.Lead) {
				l.Phones[0].Status = domain.PhoneWrong
				l.PhoneExhaustedAt = ptrTime(testNow.Add(-24 * time.Hour))
			},
			wantTier:   9,
			wantBucket: "nurture",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lead := withValidMobile(activeLead())
			tc.mutate(&lead)

			assignment, visible := AssignTier(lead, testNow)
			if !visible {
				t.Fatal("expected a visible lead")
			}
			if assignment.Tier != tc.wantTier {
				t.Fatalf("expected tier %d, got %d (%s)", tc.wantTier, assignment.Tier, assignment.Reason)
			}
			if assignment.Bucket != tc.wantBucket {
				t.Fatalf("expected bucket %s, got %s", tc.wantBucket, assignment.Bucket)
			}
		})
	}
}

func TestParkedStatesTierAsNurture(t *testing.T) {
	// A parked lead keeps its verified phone, but it is waiting on
	// re-enrollment, not on validation or dialing.
	for _, kind := range []domain.StateKind{
		domain.StateCompletedNoContact,
		domain.StateStaleEngaged,
		domain.StateLongTermNurture,
	} {
		lead := withValidMobile(activeLead())
		lead.Phase = domain.PhaseNurture
		lead.State = domain.CadenceState{Kind: kind}

		assignment, visible := AssignTier(lead, testNow)
		if !visible {
			t.Fatalf("state %s should be queue-visible", kind)
		}
		if assignment.Tier != 9 || assignment.Bucket != "nurture" {
			t.Errorf("state %s got tier %d (%s, %q), want 9 nurture", kind, assignment.Tier, assignment.Bucket, assignment.Reason)
		}
	}

	// A due callback still outranks the parked routing.
	parked := withValidMobile(activeLead())
	parked.State = domain.LongTermNurture()
	parked.CallbackScheduledFor = ptrTime(testNow.Add(-time.Hour))
	if assignment, _ := AssignTier(parked, testNow); assignment.Tier != 1 {
		t.Fatalf("due callback on a parked lead got tier %d, want 1", assignment.Tier)
	}
}

func TestCallbackTierIgnoresScore(t *testing.T) {
	// A cold, unpromising lead with a due callback still outranks a hot
	// lead sitting in the active tier.
	cold := activeLead()
	cold.Temperature = domain.BandIce
	cold.CallbackScheduledFor = ptrTime(testNow.Add(-time.Hour))

	hot := withValidMobile(activeLead())
	hot.Temperature = domain.BandHot

	entries := BuildQueue([]domain.Lead{hot, cold}, testNow)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Lead.ID != cold.ID {
		t.Fatal("expected the due callback first regardless of score")
	}
	if entries[0].Assignment.Tier != 1 || entries[1].Assignment.Tier < 2 {
		t.Fatalf("unexpected tiers %d, %d", entries[0].Assignment.Tier, entries[1].Assignment.Tier)
	}
}

func TestBuildQueueOrdering(t *testing.T) {
	hot := withValidMobile(activeLead())
	hot.Temperature = domain.BandHot

	warm := withValidMobile(activeLead())
	warm.Temperature = domain.BandWarm

	ice := withValidMobile(activeLead())
	ice.Temperature = domain.BandIce

	invisible := withValidMobile(activeLead())
	invisible.State = domain.CadenceState{Kind: domain.StateExitedDNC}

	entries := BuildQueue([]domain.Lead{ice, invisible, warm, hot}, testNow)

	if len(entries) != 3 {
		t.Fatalf("expected invisible lead dropped, got %d entries", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if prev.Assignment.Tier > cur.Assignment.Tier {
			t.Fatalf("tiers out of order at %d", i)
		}
		if prev.Assignment.Tier == cur.Assignment.Tier && prev.Score.Score < cur.Score.Score {
			t.Fatalf("scores out of order within tier at %d", i)
		}
	}
	if entries[0].Lead.ID != hot.ID {
		t.Fatal("expected the hot lead first within the shared tier")
	}
}

func TestDueTiebreakSoonestFirstNilLast(t *testing.T) {
	// Same tier, same score: due timestamps break the tie, nil due sorts
	// last, then creation time.
	base := withValidMobile(activeLead())

	soon := base
	soon.ID = uuid.New()
	soon.NextActionDue = ptrTime(testNow.Add(48 * time.Hour))

	later := base
	later.ID = uuid.New()
	later.NextActionDue = ptrTime(testNow.Add(96 * time.Hour))

	never := base
	never.ID = uuid.New()
	never.NextActionDue = nil

	entries := BuildQueue([]domain.Lead{never, later, soon}, testNow)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Lead.ID != soon.ID {
		t.Fatal("expected the soonest due first")
	}
	if entries[2].Lead.ID != never.ID {
		t.Fatal("expected nil due last")
	}
}
