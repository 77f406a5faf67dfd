package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	service "github.com/okian/nutriplan/internal/app"
	"github.com/okian/nutriplan/internal/domain/model"
)

// PlanDependencies defines the interface for plan scoring and queries.
type PlanDependencies interface {
	ScorePlan(ctx context.Context, req service.ScoreRequest) (service.ScoreResult, error)
	SubmitPlans(ctx context.Context, reqs []service.ScoreRequest) ([]service.Submission, error)
	Plan(ctx context.Context, id string) (model.MealPlan, error)
	History(ctx context.Context, userID string, limit int) ([]model.MealPlan, error)
	TopPlans(ctx context.Context, userID string, n int) ([]model.MealPlan, error)
}

// PlansHandler handles plan requests.
type PlansHandler struct {
	deps PlanDependencies
}

// NewPlansHandler creates a new plans handler.
func NewPlansHandler(deps PlanDependencies) *PlansHandler {
	return &PlansHandler{deps: deps}
}

type batchRequest struct {
	Plans []service.ScoreRequest `json:"plans"`
}

type batchResponse struct {
	Accepted []service.Submission `json:"accepted"`
	Code     string               `json:"code,omitempty"`
	Message  string               `json:"message,omitempty"`
}

// HandlePlans handles POST /plans (score synchronously) and GET /plans (history).
func (h *PlansHandler) HandlePlans(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.score(w, r)
	case http.MethodGet:
		h.list(w, r, "api.get_history", h.deps.History)
	default:
		http.NotFound(w, r)
	}
}

// HandleTop handles GET /plans/top?limit= requests.
func (h *PlansHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	h.list(w, r, "api.get_top_plans", h.deps.TopPlans)
}

// HandleGetPlan handles GET /plans/{id} requests.
func (h *PlansHandler) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_plan"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/plans/")
	if id == "" || strings.Contains(id, "/") {
		fail(w, WrapKind(op, ErrBadRequest, errors.New("missing plan id")))
		return
	}
	plan, err := h.deps.Plan(r.Context(), id)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// HandleBatch handles POST /plans/batch requests.
func (h *PlansHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_plans"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Plans) == 0 {
		fail(w, WrapKind(op, ErrBadRequest, errors.New("plans must not be empty")))
		return
	}

	accepted, err := h.deps.SubmitPlans(r.Context(), req.Plans)
	if errors.Is(err, service.ErrBackpressure) {
		// Accepted plans are still scored; the client retries the rest.
		werr := NewKind(op, ErrBackpressure)
		writeJSON(w, http.StatusTooManyRequests, batchResponse{Accepted: accepted, Code: "backpressure", Message: werr.Error()})
		return
	}
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, batchResponse{Accepted: accepted})
}

func (h *PlansHandler) score(w http.ResponseWriter, r *http.Request) {
	const op = "api.score_plan"
	var req service.ScoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.ScorePlan(r.Context(), req)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (h *PlansHandler) list(w http.ResponseWriter, r *http.Request, op string,
	query func(ctx context.Context, userID string, n int) ([]model.MealPlan, error),
) {
	n, err := queryLimit(r)
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	plans, err := query(r.Context(), r.URL.Query().Get("user_id"), n)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	if plans == nil {
		plans = []model.MealPlan{}
	}
	writeJSON(w, http.StatusOK, plans)
}
