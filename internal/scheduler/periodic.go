package scheduler

import (
	"context"
	"fmt"
	"time"

	"cadence_backend/platform/config"
	"cadence_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic registers the recurring sweep with asynq's cron scheduler so the
// run is enqueued exactly once per cycle even with multiple worker replicas.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
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

	sched := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: time.UTC,
	})

	task, err := NewCadenceSweepTask(CadenceSweepPayload{Trigger: "cron"})
	if err != nil {
		return nil, err
	}

	cronSpec := cfg.GetSweepCronSpec()
	if cronSpec == "" {
		cronSpec = "0 6 * * *"
	}
	if _, err := sched.Register(cronSpec, task, asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register sweep schedule: %w", err)
	}

	return &Periodic{scheduler: sched, log: log}, nil
}

func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}
