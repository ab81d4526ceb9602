// Package api exposes the HTTP surface: workflow CRUD, run launch and
// cancellation, the SSE event stream, verification resolution, and model
// capability lookup.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/soyeon/reflow/internal/capability"
	"github.com/soyeon/reflow/internal/engine"
	"github.com/soyeon/reflow/internal/repository"
	"github.com/soyeon/reflow/internal/services"
	"github.com/soyeon/reflow/internal/verification"
)

type Server struct {
	repo      repository.WorkflowRepository
	orch      *engine.Orchestrator
	runs      *services.RunManager
	limiter   *services.ConcurrencyLimiter
	verifier  *verification.Manager
	detector  *capability.Detector
	scheduler *services.Scheduler
}

func NewServer(
	repo repository.WorkflowRepository,
	orch *engine.Orchestrator,
	runs *services.RunManager,
	limiter *services.ConcurrencyLimiter,
	verifier *verification.Manager,
	detector *capability.Detector,
) *Server {
	return &Server{
		repo:     repo,
		orch:     orch,
		runs:     runs,
		limiter:  limiter,
		verifier: verifier,
		detector: detector,
	}
}

// SetScheduler wires the cron scheduler so workflow saves and deletes keep
// its entries in sync. Optional; nil disables scheduling.
func (s *Server) SetScheduler(sched *services.Scheduler) {
	s.scheduler = sched
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}))
	r.Route("/api", func(r chi.Router) {
		r.Route("/workflows", func(r chi.Router) {
			r.Post("/", s.createWorkflow)
			r.Get("/", s.listWorkflows)
			r.Get("/{id}", s.getWorkflow)
			r.Put("/{id}", s.updateWorkflow)
			r.Delete("/{id}", s.deleteWorkflow)
			r.Post("/{id}/run", s.runWorkflow)
		})
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.listRuns)
			r.Get("/{id}", s.getRun)
			r.Get("/{id}/events", s.streamRunEvents)
			r.Post("/{id}/cancel", s.cancelRun)
		})
		r.Route("/verifications", func(r chi.Router) {
			r.Get("/", s.listVerifications)
			r.Post("/{id}/resolve", s.resolveVerification)
		})
		r.Get("/models/{provider}/{model}/capabilities", s.getModelCapabilities)
		r.Get("/stats", s.getStats)
	})
	return r
}
