package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/nutriplan/internal/adapters/http/api"
	service "github.com/okian/nutriplan/internal/app"
	"github.com/okian/nutriplan/internal/domain/model"
	"github.com/okian/nutriplan/internal/domain/nutrition"
	. "github.com/smartystreets/goconvey/convey"
)

const planBody = `{
  "request_id": "%s",
  "user_id": "alice",
  "meals": [
    {"meal_type": "breakfast", "recipe_id": 1, "calories": 600, "protein_g": 40, "carbs_g": 70, "fat_g": 20, "price": 10},
    {"meal_type": "lunch", "recipe_id": 2, "calories": 900, "protein_g": 60, "carbs_g": 90, "fat_g": 30, "price": 15},
    {"meal_type": "dinner", "recipe_id": 3, "calories": 1000, "protein_g": 80, "carbs_g": 85, "fat_g": 32, "price": 20},
    {"meal_type": "snack", "recipe_id": 4, "calories": 102, "protein_g": 15, "carbs_g": 15, "fat_g": 5, "price": 5}
  ],
  "target": {"target_calories": 2602, "target_protein_g": 195, "target_carbs_g": 260, "target_fat_g": 87, "max_budget": %v}
}`

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type testServer struct {
	mux *http.ServeMux
	svc *service.Service
}

func newTestServer(opts ...service.Option) *testServer {
	svc := service.New(append([]service.Option{service.WithWorkerCount(2), service.WithMaxLimit(20)}, opts...)...)
	mux := http.NewServeMux()
	api.NewServer(svc).Register(context.Background(), mux)
	return &testServer{mux: mux, svc: svc}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

func TestProfileEndpoints(t *testing.T) {
	Convey("Given an API server", t, func() {
		s := newTestServer()

		Convey("When reading a profile that was never stored", func() {
			w := s.do(http.MethodGet, "/profile?user_id=alice", "")

			Convey("Then the default profile should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode[struct {
					Profile model.UserProfile `json:"profile"`
				}](w)
				So(body.Profile.Age, ShouldEqual, 25)
				So(body.Profile.Gender, ShouldEqual, model.GenderMale)
			})
		})

		Convey("When updating part of a profile", func() {
			w := s.do(http.MethodPut, "/profile?user_id=alice", `{"goal": "lose_weight", "weight_kg": 80}`)

			Convey("Then the merged profile and new targets should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode[struct {
					Profile model.UserProfile      `json:"profile"`
					Targets model.NutritionTargets `json:"targets"`
				}](w)
				So(body.Profile.WeightKG, ShouldEqual, 80)
				So(body.Profile.Goal, ShouldEqual, model.GoalLoseWeight)
				So(body.Profile.HeightCM, ShouldEqual, 175)
				So(body.Targets.Calories, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the update is invalid", func() {
			w := s.do(http.MethodPut, "/profile?user_id=alice", `{"age": -4}`)

			Convey("Then 400 invalid_profile should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errorBody](w).Code, ShouldEqual, "invalid_profile")
			})
		})

		Convey("When the body is not JSON", func() {
			w := s.do(http.MethodPut, "/profile", `{"age":`)

			Convey("Then 400 bad_request should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errorBody](w).Code, ShouldEqual, "bad_request")
			})
		})

		Convey("When using an unsupported method", func() {
			w := s.do(http.MethodDelete, "/profile", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestTargetsEndpoints(t *testing.T) {
	Convey("Given an API server", t, func() {
		s := newTestServer(service.WithDefaultBudget(30))

		Convey("When deriving targets for the stored profile", func() {
			w := s.do(http.MethodGet, "/targets?max_budget=50", "")

			Convey("Then the reference targets should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[model.NutritionTargets](w), ShouldResemble,
					model.NutritionTargets{Calories: 2594, ProteinG: 195, CarbsG: 259, FatG: 86, MaxBudget: 50})
			})
		})

		Convey("When the budget is not a number", func() {
			w := s.do(http.MethodGet, "/targets?max_budget=lots", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When posting a profile", func() {
			w := s.do(http.MethodPost, "/targets", `{"age": 25, "gender": "female", "height_cm": 175, "weight_kg": 70, "activity_level": "moderate", "goal": "maintain", "max_budget": 20}`)

			Convey("Then the breakdown should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				b := decode[nutrition.Breakdown](w)
				So(b.BMR, ShouldAlmostEqual, 1507.75, 1e-9)
				So(b.ActivityMultiplier, ShouldEqual, 1.55)
				So(b.Targets.MaxBudget, ShouldEqual, 20)
			})
		})

		Convey("When posting a profile with an unknown gender", func() {
			w := s.do(http.MethodPost, "/targets", `{"age": 25, "gender": "x", "height_cm": 175, "weight_kg": 70}`)

			Convey("Then 400 invalid_profile should name the field", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decode[errorBody](w)
				So(body.Code, ShouldEqual, "invalid_profile")
				So(body.Message, ShouldContainSubstring, "gender")
			})
		})

		Convey("When asking for a preset", func() {
			w := s.do(http.MethodGet, "/presets/lose_weight", "")

			Convey("Then the preset with the default budget should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[model.NutritionTargets](w), ShouldResemble,
					model.NutritionTargets{Calories: 1500, ProteinG: 120, CarbsG: 150, FatG: 45, MaxBudget: 30})
			})
		})

		Convey("When the preset goal is missing", func() {
			w := s.do(http.MethodGet, "/presets/", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestPlanEndpoints(t *testing.T) {
	Convey("Given an API server", t, func() {
		s := newTestServer()

		Convey("When scoring a plan that matches its targets", func() {
			w := s.do(http.MethodPost, "/plans", fmt.Sprintf(planBody, "req-1", 50))

			Convey("Then 201 with a perfect score should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				res := decode[service.ScoreResult](w)
				So(res.Duplicate, ShouldBeFalse)
				So(res.Plan.Score, ShouldEqual, 100)
				So(res.Plan.ID, ShouldNotBeEmpty)
				So(res.Plan.Summary.TotalCalories, ShouldEqual, 2602)
			})

			Convey("And the plan should be readable by id", func() {
				id := decode[service.ScoreResult](w).Plan.ID
				got := s.do(http.MethodGet, "/plans/"+id, "")
				So(got.Code, ShouldEqual, http.StatusOK)
				So(decode[model.MealPlan](got).ID, ShouldEqual, id)
			})

			Convey("And repeating the request id should return the same plan with 200", func() {
				first := decode[service.ScoreResult](w)
				again := s.do(http.MethodPost, "/plans", fmt.Sprintf(planBody, "req-1", 50))
				So(again.Code, ShouldEqual, http.StatusOK)
				res := decode[service.ScoreResult](again)
				So(res.Duplicate, ShouldBeTrue)
				So(res.Plan.ID, ShouldEqual, first.Plan.ID)
			})
		})

		Convey("When the plan is over budget", func() {
			w := s.do(http.MethodPost, "/plans", fmt.Sprintf(planBody, "req-2", 25))

			Convey("Then the score should be lower and usage reported", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				res := decode[service.ScoreResult](w)
				So(res.Plan.Score, ShouldBeLessThan, 100)
				So(res.Plan.Summary.BudgetUsage, ShouldEqual, 2)
			})
		})

		Convey("When a meal type is unknown", func() {
			body := strings.Replace(fmt.Sprintf(planBody, "req-3", 50), `"snack"`, `"brunch"`, 1)
			w := s.do(http.MethodPost, "/plans", body)

			Convey("Then 400 invalid_plan should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errorBody](w).Code, ShouldEqual, "invalid_plan")
			})
		})

		Convey("When reading an unknown plan", func() {
			w := s.do(http.MethodGet, "/plans/does-not-exist", "")

			Convey("Then 404 should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decode[errorBody](w).Code, ShouldEqual, "not_found")
			})
		})

		Convey("When listing history and top plans", func() {
			for i, budget := range []int{50, 25, 40} {
				So(s.do(http.MethodPost, "/plans", fmt.Sprintf(planBody, fmt.Sprintf("h-%d", i), budget)).Code, ShouldEqual, http.StatusCreated)
			}

			history := s.do(http.MethodGet, "/plans?user_id=alice&limit=2", "")
			top := s.do(http.MethodGet, "/plans/top?limit=3", "")

			Convey("Then both should honor the limit and ordering", func() {
				So(history.Code, ShouldEqual, http.StatusOK)
				So(len(decode[[]model.MealPlan](history)), ShouldEqual, 2)

				So(top.Code, ShouldEqual, http.StatusOK)
				plans := decode[[]model.MealPlan](top)
				So(len(plans), ShouldEqual, 3)
				So(plans[0].Score, ShouldBeGreaterThanOrEqualTo, plans[1].Score)
				So(plans[1].Score, ShouldBeGreaterThanOrEqualTo, plans[2].Score)
			})
		})

		Convey("When the history is empty", func() {
			w := s.do(http.MethodGet, "/plans", "")

			Convey("Then an empty JSON array should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
			})
		})

		Convey("When the limit is above the maximum", func() {
			w := s.do(http.MethodGet, "/plans/top?limit=21", "")

			Convey("Then 400 limit_exceeded should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errorBody](w).Code, ShouldEqual, "limit_exceeded")
			})
		})

		Convey("When the limit is not a number", func() {
			w := s.do(http.MethodGet, "/plans?limit=ten", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestBatchEndpoint(t *testing.T) {
	Convey("Given a started API server", t, func() {
		ctx := context.Background()
		s := newTestServer()
		So(s.svc.Start(ctx), ShouldBeNil)
		defer func() { _ = s.svc.Stop(ctx) }()

		Convey("When submitting a batch", func() {
			body := fmt.Sprintf(`{"plans": [%s, %s]}`, fmt.Sprintf(planBody, "b-1", 50), fmt.Sprintf(planBody, "b-2", 25))
			w := s.do(http.MethodPost, "/plans/batch", body)

			Convey("Then 202 with plan ids should be returned and the plans scored", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				var res struct {
					Accepted []service.Submission `json:"accepted"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
				So(len(res.Accepted), ShouldEqual, 2)

				deadline := time.Now().Add(5 * time.Second)
				for time.Now().Before(deadline) && s.svc.GetStats(ctx).StoredPlans < 2 {
					time.Sleep(10 * time.Millisecond)
				}
				got := s.do(http.MethodGet, "/plans/"+res.Accepted[0].PlanID, "")
				So(got.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When the batch is empty", func() {
			w := s.do(http.MethodPost, "/plans/batch", `{"plans": []}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the service is stopped", func() {
			So(s.svc.Stop(ctx), ShouldBeNil)
			w := s.do(http.MethodPost, "/plans/batch", fmt.Sprintf(`{"plans": [%s]}`, fmt.Sprintf(planBody, "b-3", 50)))

			Convey("Then 503 should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	Convey("Given an API server", t, func() {
		s := newTestServer()

		Convey("When reading stats", func() {
			w := s.do(http.MethodGet, "/stats", "")

			Convey("Then service stats should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				stats := decode[service.Stats](w)
				So(stats.Started, ShouldBeFalse)
				So(stats.Workers, ShouldEqual, 2)
			})
		})

		Convey("When scraping health", func() {
			s.do(http.MethodGet, "/stats", "")
			w := s.do(http.MethodGet, "/healthz", "")

			Convey("Then Prometheus metrics should be served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "nutriplan_engine_http_requests_total")
			})
		})
	})
}

func TestErrorHelpers(t *testing.T) {
	Convey("Given API error helpers", t, func() {
		cause := errors.New("boom")

		Convey("Then WrapKind should match both kind and cause", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Then NewKind should carry only the kind", func() {
			err := api.NewKind("api.op", api.ErrBackpressure)
			So(errors.Is(err, api.ErrBackpressure), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: backpressure")
		})

		Convey("Then Wrap should keep nil as nil", func() {
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(errors.Is(api.Wrap("api.op", cause), cause), ShouldBeTrue)
		})
	})
}
