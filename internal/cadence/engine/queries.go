package engine

import (
	"context"
	"errors"

	"cadence_backend/internal/cadence/domain"
	"cadence_backend/internal/cadence/queue"
	"cadence_backend/internal/cadence/repository"
	"cadence_backend/internal/cadence/scoring"
	"cadence_backend/platform/apperr"

	"github.com/google/uuid"
)

// Queue builds the prioritized call queue across all queue-visible leads.
// Scores are computed fresh at read time; the stored score is only a cache
// for consumers that cannot call in.
func (e *Engine) Queue(ctx context.Context, limit int) ([]queue.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	kinds := make([]domain.StateKind, 0, len(domain.QueueVisibleStates))
	for kind := range domain.QueueVisibleStates {
		kinds = append(kinds, kind)
	}

	leads := make([]domain.Lead, 0, e.sweepPageSize)
	afterID := uuid.Nil
	for {
		page, err := e.store.ListLeadsByStates(ctx, kinds, afterID, e.sweepPageSize)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "list queue leads", err).WithOp("engine.Queue")
		}
		if len(page) == 0 {
			break
		}
		afterID = page[len(page)-1].ID
		leads = append(leads, page...)
		if len(page) < e.sweepPageSize {
			break
		}
	}

	entries := queue.BuildQueue(leads, e.now())
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Score returns the full scoring breakdown for one lead.
func (e *Engine) Score(ctx context.Context, leadID uuid.UUID) (scoring.Result, error) {
	lead, err := e.store.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return scoring.Result{}, apperr.NotFound("lead not found").WithOp("engine.Score")
		}
		return scoring.Result{}, apperr.Wrap(apperr.KindInternal, "load lead", err).WithOp("engine.Score")
	}
	return scoring.ComputePriority(lead, e.now()), nil
}

// Lead returns one lead with phones and tasks.
func (e *Engine) Lead(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	lead, err := e.store.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Lead{}, apperr.NotFound("lead not found").WithOp("engine.Lead")
		}
		return domain.Lead{}, apperr.Wrap(apperr.KindInternal, "load lead", err).WithOp("engine.Lead")
	}
	return lead, nil
}
