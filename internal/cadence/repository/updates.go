package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"cadence_backend/internal/cadence/domain"
	"cadence_backend/internal/cadence/phones"
)

// UpdateLeadCadence overwrites the lead's cadence field set. Identity and
// contact columns are never touched here. Writing the whole field set keeps
// the write path free of partial-update bookkeeping and makes reprocessing
// the same action idempotent at the row level.
func (r *Repository) UpdateLeadCadence(ctx context.Context, lead domain.Lead) error {
	motivations, err := json.Marshal(lead.Motivations)
	if err != nil {
		return fmt.Errorf("encode motivations for lead %s: %w", lead.ID, err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			temperature = $2,
			status_category = $3,
			motivations = $4,
			tags = $5,
			phase = $6,
			state = $7,
			snoozed_until = $8,
			paused_reason = $9,
			exited_at = $10,
			exit_reason = $11,
			cadence_type = $12,
			cadence_step = $13,
			cadence_progress = $14,
			enrolled_at = $15,
			blitz_attempts = $16,
			no_response_streak = $17,
			enrollment_count = $18,
			has_engaged = $19,
			call_attempts = $20,
			last_contacted_at = $21,
			last_contact_type = $22,
			last_contact_result = $23,
			next_action_due = $24,
			next_action_type = $25,
			callback_scheduled_for = $26,
			callback_requested_at = $27,
			phone_exhausted_at = $28,
			deep_prospect_entered_at = $29,
			re_enrollment_date = $30,
			priority_score = $31,
			updated_at = now()
		WHERE id = $1
	`,
		lead.ID,
		lead.Temperature,
		lead.StatusCategory,
		motivations,
		lead.Tags,
		lead.Phase,
		string(lead.State.Kind),
		lead.State.SnoozedUntil,
		lead.State.PausedReason,
		lead.State.ExitedAt,
		lead.State.ExitReason,
		lead.CadenceType,
		lead.CadenceStep,
		lead.CadenceProgress,
		lead.EnrolledAt,
		lead.BlitzAttempts,
		lead.NoResponseStreak,
		lead.EnrollmentCount,
		lead.HasEngaged,
		lead.CallAttempts,
		lead.LastContactedAt,
		nullIfEmpty(lead.LastContactType),
		nullIfEmpty(string(lead.LastContactResult)),
		lead.NextActionDue,
		nullIfEmpty(string(lead.NextActionType)),
		lead.CallbackScheduledFor,
		lead.CallbackRequestedAt,
		lead.PhoneExhaustedAt,
		lead.DeepProspectEnteredAt,
		lead.ReEnrollmentDate,
		lead.PriorityScore,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertPhone adds a phone to a lead and returns the stored row.
func (r *Repository) InsertPhone(ctx context.Context, phone domain.Phone) (domain.Phone, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO lead_phones (id, lead_id, number, type, status, attempt_count, consecutive_no_answer)
		VALUES ($1, $2, $3, $4, $5, 0, 0)
		RETURNING created_at
	`, phone.ID, phone.LeadID, phone.Number, phone.Type, phone.Status)

	if err := row.Scan(&phone.CreatedAt); err != nil {
		return domain.Phone{}, err
	}
	return phone, nil
}

// UpdatePhone applies a post-call status update to one phone.
func (r *Repository) UpdatePhone(ctx context.Context, update phones.StatusUpdate) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lead_phones SET
			status = $2,
			attempt_count = $3,
			consecutive_no_answer = $4,
			last_attempt_at = $5,
			last_outcome = $6
		WHERE id = $1
	`,
		update.PhoneID,
		update.Status,
		update.AttemptCount,
		update.ConsecutiveNoAnswer,
		update.LastAttemptAt,
		nullIfEmpty(string(update.LastOutcome)),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
