package api

import (
	"context"
	"net/http"

	"github.com/okian/nutriplan/internal/domain/model"
)

// ProfileDependencies defines the interface for profile operations.
type ProfileDependencies interface {
	Profile(ctx context.Context, userID string) (model.UserProfile, error)
	UpdateProfile(ctx context.Context, userID string, patch model.ProfilePatch) (model.UserProfile, model.NutritionTargets, error)
}

// ProfileHandler handles profile requests.
type ProfileHandler struct {
	deps ProfileDependencies
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(deps ProfileDependencies) *ProfileHandler {
	return &ProfileHandler{deps: deps}
}

type profileResponse struct {
	Profile model.UserProfile       `json:"profile"`
	Targets *model.NutritionTargets `json:"targets,omitempty"`
}

// HandleProfile handles GET and PUT /profile?user_id= requests.
func (h *ProfileHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut, http.MethodPatch:
		h.update(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	p, err := h.deps.Profile(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: p})
}

func (h *ProfileHandler) update(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_profile"
	var patch model.ProfilePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, targets, err := h.deps.UpdateProfile(r.Context(), r.URL.Query().Get("user_id"), patch)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: p, Targets: &targets})
}
