package repository

import (
	"context"

	"cadence_backend/internal/cadence/domain"
	"cadence_backend/internal/cadence/phones"

	"github.com/google/uuid"
)

// Store is the persistence port the cadence engine depends on. The pgx
// Repository implements it; tests substitute a fake.
type Store interface {
	// GetLead loads a lead with its phones and tasks.
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)

	// ListLeadsByStates returns one population page of leads (children
	// included) whose state kind is in kinds, keyset-paginated by id.
	// Keyset pagination stays correct while the sweep moves rows out of
	// the filtered set mid-iteration.
	ListLeadsByStates(ctx context.Context, kinds []domain.StateKind, afterID uuid.UUID, limit int) ([]domain.Lead, error)

	// UpdateLeadCadence writes the lead's cadence field set. Identity and
	// contact columns are never touched; the write is a full overwrite of
	// the cadence fields, which keeps re-processing idempotent.
	UpdateLeadCadence(ctx context.Context, lead domain.Lead) error

	// InsertPhone adds a phone to a lead.
	InsertPhone(ctx context.Context, phone domain.Phone) (domain.Phone, error)

	// UpdatePhone applies a post-call status update to one phone.
	UpdatePhone(ctx context.Context, update phones.StatusUpdate) error

	// AppendAudit records one state-changing action.
	AppendAudit(ctx context.Context, entry AuditEntry) error
}
