// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/nutriplan/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ProfileDependencies
	TargetsDependencies
	PlanDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	profileHandler *ProfileHandler
	targetsHandler *TargetsHandler
	plansHandler   *PlansHandler
	log            logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger handler panics are reported to.
func WithServerLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		profileHandler: NewProfileHandler(deps),
		targetsHandler: NewTargetsHandler(deps),
		plansHandler:   NewPlansHandler(deps),
		log:            logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", instrument(s.log, "healthz", s.healthHandler.HandleHealth))
	mux.HandleFunc("/stats", instrument(s.log, "stats", s.statsHandler.HandleStats))
	mux.HandleFunc("/profile", instrument(s.log, "profile", s.profileHandler.HandleProfile))
	mux.HandleFunc("/targets", instrument(s.log, "targets", s.targetsHandler.HandleTargets))
	mux.HandleFunc("/presets/", instrument(s.log, "presets", s.targetsHandler.HandlePreset))
	mux.HandleFunc("/plans/batch", instrument(s.log, "plans_batch", s.plansHandler.HandleBatch))
	mux.HandleFunc("/plans/top", instrument(s.log, "plans_top", s.plansHandler.HandleTop))
	mux.HandleFunc("/plans/", instrument(s.log, "plan", s.plansHandler.HandleGetPlan))
	mux.HandleFunc("/plans", instrument(s.log, "plans", s.plansHandler.HandlePlans))
}
