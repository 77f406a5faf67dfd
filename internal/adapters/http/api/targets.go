package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/nutriplan/internal/domain/model"
	"github.com/okian/nutriplan/internal/domain/nutrition"
)

// TargetsDependencies defines the interface for target derivation.
type TargetsDependencies interface {
	Targets(ctx context.Context, userID string, maxBudget float64) (model.NutritionTargets, error)
	DeriveTargets(p model.UserProfile, maxBudget float64) (nutrition.Breakdown, error)
	PresetTargets(goal model.Goal, maxBudget float64) model.NutritionTargets
}

// TargetsHandler handles target and preset requests.
type TargetsHandler struct {
	deps TargetsDependencies
}

// NewTargetsHandler creates a new targets handler.
func NewTargetsHandler(deps TargetsDependencies) *TargetsHandler {
	return &TargetsHandler{deps: deps}
}

// targetsRequest is a profile plus the budget to copy into the targets.
type targetsRequest struct {
	model.UserProfile
	MaxBudget float64 `json:"max_budget"`
}

// HandleTargets handles GET /targets?user_id=&max_budget= for the stored
// profile and POST /targets for a profile in the body.
func (h *TargetsHandler) HandleTargets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		const op = "api.get_targets"
		budget, err := queryFloat(r, "max_budget")
		if err != nil {
			fail(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		targets, err := h.deps.Targets(r.Context(), r.URL.Query().Get("user_id"), budget)
		if err != nil {
			fail(w, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, targets)
	case http.MethodPost:
		const op = "api.derive_targets"
		var req targetsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			fail(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		b, err := h.deps.DeriveTargets(req.UserProfile, req.MaxBudget)
		if err != nil {
			fail(w, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, b)
	default:
		http.NotFound(w, r)
	}
}

// HandlePreset handles GET /presets/{goal}?budget= requests.
func (h *TargetsHandler) HandlePreset(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_preset"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	goal := strings.TrimPrefix(r.URL.Path, "/presets/")
	if goal == "" || strings.Contains(goal, "/") {
		fail(w, WrapKind(op, ErrBadRequest, errors.New("missing goal")))
		return
	}
	budget, err := queryFloat(r, "budget")
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.PresetTargets(model.Goal(goal), budget))
}
