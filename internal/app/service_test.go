package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/okian/nutriplan/internal/app"
	"github.com/okian/nutriplan/internal/adapters/repository"
	"github.com/okian/nutriplan/internal/domain/model"
	"github.com/okian/nutriplan/internal/domain/nutrition"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("plan-%03d", n.Add(1)) }
}

func referenceTargets(budget float64) *model.NutritionTargets {
	return &model.NutritionTargets{Calories: 2602, ProteinG: 195, CarbsG: 260, FatG: 87, MaxBudget: budget}
}

func referenceItems() []model.MealItem {
	return []model.MealItem{
		{MealType: model.MealBreakfast, RecipeID: 1, Calories: 600, ProteinG: 40, CarbsG: 70, FatG: 20, Price: 10},
		{MealType: model.MealLunch, RecipeID: 2, Calories: 900, ProteinG: 60, CarbsG: 90, FatG: 30, Price: 15},
		{MealType: model.MealDinner, RecipeID: 3, Calories: 1000, ProteinG: 80, CarbsG: 85, FatG: 32, Price: 20},
		{MealType: model.MealSnack, RecipeID: 4, Calories: 102, ProteinG: 15, CarbsG: 15, FatG: 5, Price: 5},
	}
}

// flakyStore fails SavePlan while fail is set.
type flakyStore struct {
	repository.Store
	fail atomic.Bool
}

func (f *flakyStore) SavePlan(ctx context.Context, plan model.MealPlan) error {
	if f.fail.Load() {
		return errors.New("database unavailable")
	}
	return f.Store.SavePlan(ctx, plan)
}

func newService(opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithClock(func() time.Time { return fixedNow }),
		service.WithIDGenerator(sequentialIDs()),
		service.WithWorkerCount(2),
	}
	return service.New(append(base, opts...)...)
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats(context.Background())
			So(stats.Started, ShouldBeFalse)
			So(stats.StoredPlans, ShouldEqual, 0)
			So(stats.QueueCapacity, ShouldEqual, 10_000)
			So(svc.MaxLimit(), ShouldEqual, 100)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(500),
			service.WithDedupeSize(250),
			service.WithMaxLimit(20),
		)

		Convey("Then it should be created successfully", func() {
			stats := svc.GetStats(context.Background())
			So(stats.Workers, ShouldEqual, 8)
			So(stats.QueueCapacity, ShouldEqual, 500)
			So(svc.MaxLimit(), ShouldEqual, 20)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := newService()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When submitting before start", func() {
			_, err := svc.SubmitPlans(ctx, []service.ScoreRequest{{Items: referenceItems()}})

			Convey("Then it should report the service is not started", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it should be marked as started", func() {
				stats := svc.GetStats(ctx)
				So(stats.Started, ShouldBeTrue)
				So(stats.Workers, ShouldEqual, 2)
				So(svc.Stop(ctx), ShouldBeNil)
			})

			Convey("And when stopping the service", func() {
				So(svc.Stop(ctx), ShouldBeNil)

				Convey("Then it should be marked as stopped and stop should be repeatable", func() {
					So(svc.GetStats(ctx).Started, ShouldBeFalse)
					So(svc.Stop(ctx), ShouldBeNil)
				})

				Convey("And it should be restartable", func() {
					So(svc.Start(ctx), ShouldBeNil)
					So(svc.GetStats(ctx).Started, ShouldBeTrue)
					So(svc.Stop(ctx), ShouldBeNil)
				})
			})
		})
	})
}

func TestService_Profile(t *testing.T) {
	Convey("Given a service without stored profiles", t, func() {
		ctx := context.Background()
		svc := newService()

		Convey("When reading an unknown user's profile", func() {
			p, err := svc.Profile(ctx, "alice")

			Convey("Then the default profile should be returned", func() {
				So(err, ShouldBeNil)
				So(p, ShouldResemble, model.DefaultProfile())
			})

			Convey("And mutating it should not change the default", func() {
				p.DietaryRestrictions = append(p.DietaryRestrictions, "vegan")
				again, _ := svc.Profile(ctx, "alice")
				So(again.DietaryRestrictions, ShouldBeEmpty)
			})
		})

		Convey("When a custom default profile is configured", func() {
			def := model.DefaultProfile()
			def.Age = 50
			custom := newService(service.WithDefaultProfile(def))
			p, err := custom.Profile(ctx, "")

			Convey("Then it should be served", func() {
				So(err, ShouldBeNil)
				So(p.Age, ShouldEqual, 50)
			})
		})

		Convey("When applying a partial update", func() {
			weight := 80.0
			goal := model.GoalLoseWeight
			p, targets, err := svc.UpdateProfile(ctx, "alice", model.ProfilePatch{WeightKG: &weight, Goal: &goal})

			Convey("Then only the patched fields should change", func() {
				So(err, ShouldBeNil)
				So(p.WeightKG, ShouldEqual, 80)
				So(p.Goal, ShouldEqual, model.GoalLoseWeight)
				So(p.Age, ShouldEqual, 25)
			})

			Convey("And fresh targets should be derived from the merged profile", func() {
				want, _ := nutrition.NewDeriver().Derive(p, 50)
				So(targets, ShouldResemble, want)
			})

			Convey("And the profile should be stored for that user only", func() {
				stored, _ := svc.Profile(ctx, "alice")
				So(stored.WeightKG, ShouldEqual, 80)
				other, _ := svc.Profile(ctx, "bob")
				So(other.WeightKG, ShouldEqual, 70)
			})
		})

		Convey("When the update would make the profile invalid", func() {
			age := 0
			_, _, err := svc.UpdateProfile(ctx, "alice", model.ProfilePatch{Age: &age})

			Convey("Then it should be rejected and nothing stored", func() {
				So(errors.Is(err, nutrition.ErrValidation), ShouldBeTrue)
				p, _ := svc.Profile(ctx, "alice")
				So(p.Age, ShouldEqual, 25)
			})
		})
	})
}

func TestService_Targets(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc := newService(service.WithDefaultBudget(40))

		Convey("When deriving targets for the default profile without a budget", func() {
			targets, err := svc.Targets(ctx, "", 0)

			Convey("Then the reference targets and the default budget should be returned", func() {
				So(err, ShouldBeNil)
				So(targets, ShouldResemble, model.NutritionTargets{Calories: 2594, ProteinG: 195, CarbsG: 259, FatG: 86, MaxBudget: 40})
			})
		})

		Convey("When deriving targets for a profile in the request", func() {
			p := model.DefaultProfile()
			p.Gender = model.GenderFemale
			b, err := svc.DeriveTargets(p, 60)

			Convey("Then the breakdown should be returned without storing anything", func() {
				So(err, ShouldBeNil)
				So(b.BMR, ShouldAlmostEqual, 1507.75, 1e-9)
				So(b.Targets.MaxBudget, ShouldEqual, 60)
				stored, _ := svc.Profile(ctx, "")
				So(stored.Gender, ShouldEqual, model.GenderMale)
			})
		})

		Convey("When the profile in the request is invalid", func() {
			_, err := svc.DeriveTargets(model.UserProfile{}, 60)

			Convey("Then a validation error should be returned", func() {
				So(errors.Is(err, nutrition.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When asking for a preset", func() {
			targets := svc.PresetTargets(model.GoalGainMuscle, 0)

			Convey("Then the preset should carry the default budget", func() {
				So(targets.Calories, ShouldEqual, 2500)
				So(targets.MaxBudget, ShouldEqual, 40)
			})
		})
	})
}

func TestService_ScorePlan(t *testing.T) {
	Convey("Given a service with an in-memory store", t, func() {
		ctx := context.Background()
		store := &flakyStore{Store: repository.NewMemoryStore()}
		svc := newService(service.WithStore(store))

		Convey("When scoring a plan that matches its targets", func() {
			res, err := svc.ScorePlan(ctx, service.ScoreRequest{UserID: "alice", Items: referenceItems(), Targets: referenceTargets(50)})

			Convey("Then it should score 100 and be stored", func() {
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
				So(res.Plan.ID, ShouldEqual, "plan-001")
				So(res.Plan.Score, ShouldEqual, 100)
				So(res.Plan.CreatedAt, ShouldEqual, fixedNow)
				So(res.Plan.UserID, ShouldEqual, "alice")
				stored, err := svc.Plan(ctx, "plan-001")
				So(err, ShouldBeNil)
				So(stored.Score, ShouldEqual, 100)
			})
		})

		Convey("When the same plan is twice over budget", func() {
			within, _ := svc.ScorePlan(ctx, service.ScoreRequest{Items: referenceItems(), Targets: referenceTargets(50)})
			over, err := svc.ScorePlan(ctx, service.ScoreRequest{Items: referenceItems(), Targets: referenceTargets(25)})

			Convey("Then it should score strictly lower", func() {
				So(err, ShouldBeNil)
				So(over.Plan.Score, ShouldBeLessThan, within.Plan.Score)
				So(over.Plan.Summary.OverBudget(), ShouldBeTrue)
			})
		})

		Convey("When no targets are given", func() {
			res, err := svc.ScorePlan(ctx, service.ScoreRequest{Items: referenceItems(), MaxBudget: 45})

			Convey("Then the user's derived targets should be used", func() {
				So(err, ShouldBeNil)
				So(res.Plan.Targets.Calories, ShouldEqual, 2594)
				So(res.Plan.Targets.MaxBudget, ShouldEqual, 45)
			})
		})

		Convey("When explicit targets carry no budget but the request does", func() {
			within, _ := svc.ScorePlan(ctx, service.ScoreRequest{Items: referenceItems(), Targets: referenceTargets(0)})
			over, err := svc.ScorePlan(ctx, service.ScoreRequest{Items: referenceItems(), Targets: referenceTargets(0), MaxBudget: 25})

			Convey("Then the request budget should apply", func() {
				So(err, ShouldBeNil)
				So(over.Plan.Targets.MaxBudget, ShouldEqual, 25)
				So(over.Plan.Summary.OverBudget(), ShouldBeTrue)
				So(over.Plan.Score, ShouldBeLessThan, within.Plan.Score)
			})

			Convey("And a budget on the targets should take precedence", func() {
				res, err := svc.ScorePlan(ctx, service.ScoreRequest{Items: referenceItems(), Targets: referenceTargets(50), MaxBudget: 25})
				So(err, ShouldBeNil)
				So(res.Plan.Targets.MaxBudget, ShouldEqual, 50)
				So(res.Plan.Score, ShouldEqual, 100)
			})
		})

		Convey("When a request id is repeated", func() {
			req := service.ScoreRequest{RequestID: "r-1", UserID: "alice", Items: referenceItems(), Targets: referenceTargets(50)}
			first, err := svc.ScorePlan(ctx, req)
			So(err, ShouldBeNil)
			second, err := svc.ScorePlan(ctx, req)

			Convey("Then the first plan should be returned as a duplicate", func() {
				So(err, ShouldBeNil)
				So(second.Duplicate, ShouldBeTrue)
				So(second.Plan.ID, ShouldEqual, first.Plan.ID)
				n, _ := store.Count(ctx)
				So(n, ShouldEqual, 1)
			})

			Convey("And the same request id from another user should be scored", func() {
				req.UserID = "bob"
				other, err := svc.ScorePlan(ctx, req)
				So(err, ShouldBeNil)
				So(other.Duplicate, ShouldBeFalse)
				So(other.Plan.ID, ShouldNotEqual, first.Plan.ID)
			})
		})

		Convey("When saving fails", func() {
			req := service.ScoreRequest{RequestID: "r-2", Items: referenceItems(), Targets: referenceTargets(50)}
			store.fail.Store(true)
			_, err := svc.ScorePlan(ctx, req)
			store.fail.Store(false)

			Convey("Then the error should surface and the request id should be retryable", func() {
				So(err, ShouldNotBeNil)
				retry, err := svc.ScorePlan(ctx, req)
				So(err, ShouldBeNil)
				So(retry.Duplicate, ShouldBeFalse)
			})
		})

		Convey("When an item is malformed", func() {
			items := referenceItems()
			items[1].MealType = "brunch"
			_, err := svc.ScorePlan(ctx, service.ScoreRequest{Items: items, Targets: referenceTargets(50)})

			Convey("Then the plan should be rejected", func() {
				So(errors.Is(err, service.ErrInvalidPlan), ShouldBeTrue)
			})
		})

		Convey("When item totals overflow", func() {
			items := []model.MealItem{
				{MealType: model.MealLunch, Calories: 800, ProteinG: 50, Price: 1.7e308},
				{MealType: model.MealDinner, Calories: 900, ProteinG: 60, Price: 1.7e308},
			}
			_, err := svc.ScorePlan(ctx, service.ScoreRequest{Items: items, Targets: referenceTargets(50)})

			Convey("Then the plan should be rejected and not stored", func() {
				So(errors.Is(err, service.ErrInvalidPlan), ShouldBeTrue)
				n, _ := store.Count(ctx)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When the explicit targets are negative", func() {
			_, err := svc.ScorePlan(ctx, service.ScoreRequest{Items: referenceItems(), Targets: &model.NutritionTargets{Calories: -1}})

			Convey("Then the plan should be rejected", func() {
				So(errors.Is(err, service.ErrInvalidPlan), ShouldBeTrue)
			})
		})

		Convey("When the plan is empty", func() {
			res, err := svc.ScorePlan(ctx, service.ScoreRequest{Targets: referenceTargets(50)})

			Convey("Then it should be stored with a zero score", func() {
				So(err, ShouldBeNil)
				So(res.Plan.Score, ShouldEqual, 0)
			})
		})

		Convey("When many plans are scored concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, _ = svc.ScorePlan(ctx, service.ScoreRequest{RequestID: fmt.Sprintf("c-%d", i%10), Items: referenceItems(), Targets: referenceTargets(50)})
				}(i)
			}
			wg.Wait()

			Convey("Then each request id should be stored once", func() {
				n, _ := store.Count(ctx)
				So(n, ShouldEqual, 10)
			})
		})
	})
}

func TestService_Queries(t *testing.T) {
	Convey("Given a service with scored plans", t, func() {
		ctx := context.Background()
		clock := fixedNow
		var mu sync.Mutex
		svc := newService(service.WithMaxLimit(10), service.WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Minute)
			return clock
		}))

		for _, budget := range []float64{50, 25, 40} {
			_, err := svc.ScorePlan(ctx, service.ScoreRequest{UserID: "alice", Items: referenceItems(), Targets: referenceTargets(budget)})
			So(err, ShouldBeNil)
		}
		_, err := svc.ScorePlan(ctx, service.ScoreRequest{UserID: "bob", Items: referenceItems(), Targets: referenceTargets(50)})
		So(err, ShouldBeNil)

		Convey("When listing history", func() {
			plans, err := svc.History(ctx, "alice", 10)

			Convey("Then the user's plans should be newest first", func() {
				So(err, ShouldBeNil)
				So(len(plans), ShouldEqual, 3)
				So(plans[0].ID, ShouldEqual, "plan-003")
				So(plans[2].ID, ShouldEqual, "plan-001")
			})
		})

		Convey("When listing the best plans", func() {
			plans, err := svc.TopPlans(ctx, "", 2)

			Convey("Then they should be ordered by score, ties by id", func() {
				So(err, ShouldBeNil)
				So(len(plans), ShouldEqual, 2)
				So(plans[0].ID, ShouldEqual, "plan-001")
				So(plans[1].ID, ShouldEqual, "plan-004")
			})
		})

		Convey("When the limit is out of range", func() {
			_, errLow := svc.History(ctx, "", 0)
			_, errHigh := svc.TopPlans(ctx, "", 11)

			Convey("Then it should be rejected", func() {
				So(errors.Is(errLow, repository.ErrInvalidLimit), ShouldBeTrue)
				So(errors.Is(errHigh, repository.ErrInvalidLimit), ShouldBeTrue)
			})
		})

		Convey("When reading an unknown plan", func() {
			_, err := svc.Plan(ctx, "missing")

			Convey("Then not found should be returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When reading stats", func() {
			stats := svc.GetStats(ctx)

			Convey("Then stored plans should be counted", func() {
				So(stats.StoredPlans, ShouldEqual, 4)
			})
		})
	})
}
