package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditEntry records one state-changing cadence action for a lead.
type AuditEntry struct {
	LeadID    uuid.UUID
	Action    string
	OldValue  string
	NewValue  string
	Source    string
	CreatedAt time.Time
}

// AppendAudit writes one audit row. The log is append-only.
func (r *Repository) AppendAudit(ctx context.Context, entry AuditEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO cadence_audit_log (lead_id, action, old_value, new_value, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.LeadID, entry.Action, entry.OldValue, entry.NewValue, entry.Source, entry.CreatedAt)
	return err
}
