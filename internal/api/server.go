package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/runnable/controlplane/internal/api/handler"
	mw "github.com/runnable/controlplane/internal/api/middleware"
	"github.com/runnable/controlplane/internal/config"
	"github.com/runnable/controlplane/internal/core"
	"github.com/runnable/controlplane/internal/dispatch"
)

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	services       *core.Services
	dispatcher     *dispatch.Dispatcher
	corePool       *pgxpool.Pool
	temporalClient temporalclient.Client
	cfg            *config.Config
}

func NewServer(logger zerolog.Logger, coreDB *pgxpool.Pool, temporalClient temporalclient.Client, cfg *config.Config) *Server {
	dispatcher := dispatch.NewDispatcher(temporalClient, logger)
	services := core.NewServices(coreDB, dispatcher)

	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		services:       services,
		dispatcher:     dispatcher,
		corePool:       coreDB,
		temporalClient: temporalClient,
		cfg:            cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	// Event ingest: docks and hooks POST their events here.
	events := handler.NewEvents(s.dispatcher)
	s.router.Post("/events/docker", events.Ingest)

	s.router.Route("/api/v1", func(r chi.Router) {
		instance := handler.NewInstance(s.services.Instance)
		r.Get("/instances", instance.List)
		r.Post("/instances", instance.Create)
		r.Get("/instances/{id}", instance.Get)
		r.Get("/instances/by-hash/{shortHash}", instance.GetByShortHash)
		r.Post("/instances/{id}/start", instance.Start)
		r.Post("/instances/{id}/stop", instance.Stop)
		r.Delete("/instances/{id}", instance.Delete)

		isolation := handler.NewIsolation(s.services.Isolation, s.services.AutoIsolationConfig)
		r.Post("/isolations", isolation.Create)
		r.Get("/isolations/{id}", isolation.Get)
		r.Post("/isolations/{id}/kill", isolation.Kill)
		r.Post("/isolations/{id}/redeploy", isolation.Redeploy)

		r.Post("/auto-isolation-configs", isolation.CreateAutoConfig)
		r.Get("/instances/{instanceID}/auto-isolation-config", isolation.GetAutoConfig)
		r.Delete("/auto-isolation-configs/{id}", isolation.DeleteAutoConfig)

		contextVersion := handler.NewContextVersion(s.services.ContextVersion)
		r.Get("/context-versions/{id}", contextVersion.Get)
		r.Get("/builds/{buildID}/context-versions", contextVersion.ListByBuild)
		r.Delete("/context-versions/{id}", contextVersion.Delete)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.corePool.Ping(ctx); err != nil {
		checks["core_db"] = err.Error()
		healthy = false
	} else {
		checks["core_db"] = "ok"
	}

	if _, err := s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
		checks["temporal"] = err.Error()
		healthy = false
	} else {
		checks["temporal"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
