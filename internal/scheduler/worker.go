package scheduler

import (
	"context"
	"fmt"

	"cadence_backend/internal/cadence/engine"
	"cadence_backend/internal/events"
	"cadence_backend/platform/config"
	"cadence_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	eng    *engine.Engine
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, eng *engine.Engine, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		eng:    eng,
		bus:    bus,
		log:    log,
	}

	mux.HandleFunc(TaskCadenceSweep, w.handleCadenceSweep)
	mux.HandleFunc(TaskCallbackDue, w.handleCallbackDue)

	return w, nil
}

func (w *Worker) handleCadenceSweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCadenceSweepPayload(task)
	if err != nil {
		return err
	}

	w.log.Info("cadence sweep starting", "trigger", payload.Trigger)

	summary, err := w.eng.RunSweep(ctx)
	if err != nil {
		return err
	}

	w.log.Info("cadence sweep finished",
		"status", summary.Status,
		"unsnoozed", summary.Unsnoozed,
		"re_enrolled", summary.ReEnrolled,
		"stale_engaged", summary.StaleEngagedMarked,
		"phone_exhausted", summary.PhoneExhaustedMarked,
		"deep_prospect_reactivated", summary.DeepProspectReactivated,
		"queue_refreshed", summary.QueueTiersRefreshed,
		"errors", len(summary.Errors),
	)
	return nil
}

func (w *Worker) handleCallbackDue(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	payload, err := ParseCallbackDuePayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	orgID, err := uuid.Parse(payload.OrganizationID)
	if err != nil {
		return err
	}

	// The callback may have been superseded by a later conversation; only
	// remind when it is still on the books.
	lead, err := w.eng.Lead(ctx, leadID)
	if err != nil {
		return err
	}
	if lead.CallbackScheduledFor == nil {
		return nil
	}

	return w.bus.PublishSync(ctx, events.CallbackDue{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         leadID,
		OrganizationID: orgID,
		ScheduledFor:   *lead.CallbackScheduledFor,
	})
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
