package planeval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/nutriplan/internal/domain/model"
)

// ErrServer is returned for non-success responses from the server.
var ErrServer = errors.New("server error")

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 4096

type targetsRequest struct {
	model.UserProfile
	MaxBudget float64 `json:"max_budget"`
}

type targetsResponse struct {
	Targets model.NutritionTargets `json:"targets"`
}

type planRequest struct {
	RequestID string                 `json:"request_id"`
	UserID    string                 `json:"user_id,omitempty"`
	Meals     []model.MealItem       `json:"meals"`
	Target    model.NutritionTargets `json:"target"`
}

type planResponse struct {
	Plan      model.MealPlan `json:"plan"`
	Duplicate bool           `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// remoteTargets asks the server to derive targets so its policy applies.
func (e *Evaluator) remoteTargets(ctx context.Context, p model.UserProfile, budget float64) (model.NutritionTargets, error) {
	var out targetsResponse
	if err := e.post(ctx, "/targets", targetsRequest{UserProfile: p, MaxBudget: budget}, &out); err != nil {
		return model.NutritionTargets{}, err
	}
	return out.Targets, nil
}

// submit posts one candidate. The candidate name doubles as request id,
// so re-running the same file reports duplicates instead of new plans.
func (e *Evaluator) submit(ctx context.Context, targets model.NutritionTargets, c Candidate) Result {
	req := planRequest{RequestID: c.Name, UserID: e.cfg.UserID, Meals: c.Meals, Target: targets}
	var out planResponse
	if err := e.post(ctx, "/plans", req, &out); err != nil {
		return Result{Name: c.Name, Err: err}
	}
	return Result{
		Name:      c.Name,
		PlanID:    out.Plan.ID,
		Summary:   out.Plan.Summary,
		Score:     out.Plan.Score,
		Duplicate: out.Duplicate,
	}
}

func (e *Evaluator) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var er errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if json.Unmarshal(raw, &er) == nil && er.Code != "" {
			return fmt.Errorf("%w: %s %d %s: %s", ErrServer, path, resp.StatusCode, er.Code, er.Message)
		}
		return fmt.Errorf("%w: %s %d", ErrServer, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
