// Package repository persists leads, phones, tasks and the cadence audit
// log in Postgres.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cadence_backend/internal/cadence/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `
	id, organization_id, created_at, updated_at,
	temperature, status_category, motivations, tags,
	phase, state, snoozed_until, paused_reason, exited_at, exit_reason,
	cadence_type, cadence_step, cadence_progress, enrolled_at,
	blitz_attempts, no_response_streak, enrollment_count, has_engaged, call_attempts,
	last_contacted_at, last_contact_type, last_contact_result,
	next_action_due, next_action_type,
	callback_scheduled_for, callback_requested_at,
	phone_exhausted_at, deep_prospect_entered_at, re_enrollment_date,
	priority_score`

// GetLead loads one lead with phones and tasks attached.
func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1
	`, id)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, ErrNotFound
		}
		return domain.Lead{}, err
	}

	leads := []domain.Lead{lead}
	if err := r.attachChildren(ctx, leads); err != nil {
		return domain.Lead{}, err
	}
	return leads[0], nil
}

// ListLeadsByStates returns one page of leads whose state kind is in kinds,
// keyset-paginated by id. Pass uuid.Nil to start from the beginning.
func (r *Repository) ListLeadsByStates(ctx context.Context, kinds []domain.StateKind, afterID uuid.UUID, limit int) ([]domain.Lead, error) {
	if len(kinds) == 0 {
		return []domain.Lead{}, nil
	}

	states := make([]string, 0, len(kinds))
	for _, k := range kinds {
		states = append(states, string(k))
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE state = ANY($1) AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`, states, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0, limit)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	if err := r.attachChildren(ctx, leads); err != nil {
		return nil, err
	}
	return leads, nil
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		lead           domain.Lead
		motivationsRaw []byte
		state          string
		pausedReason   *string
		exitReason     *string
		lastResult     *string
		nextActionType *string
		contactType    *string
	)

	err := row.Scan(
		&lead.ID, &lead.OrganizationID, &lead.CreatedAt, &lead.UpdatedAt,
		&lead.Temperature, &lead.StatusCategory, &motivationsRaw, &lead.Tags,
		&lead.Phase, &state, &lead.State.SnoozedUntil, &pausedReason, &lead.State.ExitedAt, &exitReason,
		&lead.CadenceType, &lead.CadenceStep, &lead.CadenceProgress, &lead.EnrolledAt,
		&lead.BlitzAttempts, &lead.NoResponseStreak, &lead.EnrollmentCount, &lead.HasEngaged, &lead.CallAttempts,
		&lead.LastContactedAt, &contactType, &lastResult,
		&lead.NextActionDue, &nextActionType,
		&lead.CallbackScheduledFor, &lead.CallbackRequestedAt,
		&lead.PhoneExhaustedAt, &lead.DeepProspectEnteredAt, &lead.ReEnrollmentDate,
		&lead.PriorityScore,
	)
	if err != nil {
		return domain.Lead{}, err
	}

	lead.State.Kind = domain.StateKind(state)
	if pausedReason != nil {
		lead.State.PausedReason = *pausedReason
	}
	if exitReason != nil {
		lead.State.ExitReason = *exitReason
	}
	if contactType != nil {
		lead.LastContactType = *contactType
	}
	if lastResult != nil {
		lead.LastContactResult = domain.Outcome(*lastResult)
	}
	if nextActionType != nil {
		lead.NextActionType = domain.ActionType(*nextActionType)
	}
	if len(motivationsRaw) > 0 {
		if err := json.Unmarshal(motivationsRaw, &lead.Motivations); err != nil {
			return domain.Lead{}, fmt.Errorf("decode motivations for lead %s: %w", lead.ID, err)
		}
	}
	if lead.Tags == nil {
		lead.Tags = []string{}
	}
	return lead, nil
}

// attachChildren loads phones and tasks for the given leads in two queries.
func (r *Repository) attachChildren(ctx context.Context, leads []domain.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(leads))
	index := make(map[uuid.UUID]int, len(leads))
	for i := range leads {
		ids = append(ids, leads[i].ID)
		index[leads[i].ID] = i
		leads[i].Phones = []domain.Phone{}
		leads[i].Tasks = []domain.Task{}
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, number, type, status, attempt_count, consecutive_no_answer, last_attempt_at, last_outcome, created_at
		FROM lead_phones
		WHERE lead_id = ANY($1)
		ORDER BY created_at ASC
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			phone       domain.Phone
			lastOutcome *string
		)
		if err := rows.Scan(&phone.ID, &phone.LeadID, &phone.Number, &phone.Type, &phone.Status,
			&phone.AttemptCount, &phone.ConsecutiveNoAnswer, &phone.LastAttemptAt, &lastOutcome, &phone.CreatedAt); err != nil {
			return err
		}
		if lastOutcome != nil {
			phone.LastOutcome = domain.Outcome(*lastOutcome)
		}
		if i, ok := index[phone.LeadID]; ok {
			leads[i].Phones = append(leads[i].Phones, phone)
		}
	}
	if rows.Err() != nil {
		return rows.Err()
	}

	taskRows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, title, due_at, completed_at, created_at
		FROM lead_tasks
		WHERE lead_id = ANY($1)
		ORDER BY due_at ASC NULLS LAST
	`, ids)
	if err != nil {
		return err
	}
	defer taskRows.Close()

	for taskRows.Next() {
		var task domain.Task
		if err := taskRows.Scan(&task.ID, &task.LeadID, &task.Title, &task.DueAt, &task.CompletedAt, &task.CreatedAt); err != nil {
			return err
		}
		if i, ok := index[task.LeadID]; ok {
			leads[i].Tasks = append(leads[i].Tasks, task)
		}
	}
	return taskRows.Err()
}
