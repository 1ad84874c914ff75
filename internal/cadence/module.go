// Package cadence provides the lead cadence domain module: scoring, phase
// management, phone rotation, queue tiering and the maintenance sweep.
package cadence

import (
	"cadence_backend/internal/cadence/domain"
	"cadence_backend/internal/cadence/engine"
	"cadence_backend/internal/cadence/handler"
	"cadence_backend/internal/cadence/repository"
	apphttp "cadence_backend/internal/http"
	"cadence_backend/platform/config"
	"cadence_backend/platform/events"
	"cadence_backend/platform/logger"
	"cadence_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the cadence domain module.
type Module struct {
	handler *handler.Handler
	engine  *engine.Engine
}

// NewModule wires the cadence module. The template library is loaded once at
// startup; a broken override file fails the boot rather than falling back
// silently.
func NewModule(pool *pgxpool.Pool, cfg config.CadenceConfig, eventBus *events.InMemoryBus, val *validator.Validator, log *logger.Logger) (*Module, error) {
	templates := domain.BuiltinLibrary()
	if path := cfg.GetCadenceTemplateFile(); path != "" {
		loaded, err := domain.LoadLibrary(path)
		if err != nil {
			return nil, err
		}
		templates = loaded
	}

	rules := domain.Rules{
		Blitz1MaxAttempts:   cfg.GetBlitz1MaxAttempts(),
		Blitz2MaxAttempts:   cfg.GetBlitz2MaxAttempts(),
		MaxEnrollmentCycles: cfg.GetMaxEnrollmentCycles(),
		StaleEngagedAfter:   cfg.GetStaleEngagedAfter(),
	}

	repo := repository.New(pool)
	registerSubscribers(eventBus, repo, log)
	eng := engine.New(repo, templates, rules, eventBus, log,
		engine.WithSweepSettings(cfg.GetSweepPageSize(), cfg.GetSweepConcurrency()))
	h := handler.New(eng, val)

	return &Module{handler: h, engine: eng}, nil
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "cadence"
}

// Engine returns the cadence engine for non-HTTP callers (scheduler worker).
func (m *Module) Engine() *engine.Engine {
	return m.engine
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
	m.handler.RegisterAdminRoutes(ctx.Admin)
}
