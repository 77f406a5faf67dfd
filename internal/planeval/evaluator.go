package planeval

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/nutriplan/internal/domain/model"
	"github.com/okian/nutriplan/internal/domain/nutrition"
	"github.com/okian/nutriplan/internal/domain/scoring"
	"github.com/okian/nutriplan/pkg/logger"
)

// Default evaluation constants.
const (
	defaultTimeout          = 10 * time.Second
	defaultWorkers          = 4
	workerChannelMultiplier = 2
)

// Evaluator scores candidate plans locally or through a server.
type Evaluator struct {
	cfg     Config
	deriver *nutrition.Deriver
	scorer  *scoring.PlanScorer
	client  *http.Client
	log     logger.Logger
}

// NewEvaluator creates an evaluator for cfg.
func NewEvaluator(cfg Config, opts ...Option) *Evaluator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	e := &Evaluator{
		cfg:     cfg,
		deriver: nutrition.NewDeriver(),
		scorer:  scoring.NewPlanScorer(),
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Remote reports whether candidates are submitted to a server.
func (e *Evaluator) Remote() bool { return e.cfg.BaseURL != "" }

// Evaluate resolves targets for in, scores every candidate and returns
// the ranked report. Per-candidate failures are recorded in the result
// rather than aborting the run.
func (e *Evaluator) Evaluate(ctx context.Context, in *Input) (*Report, error) {
	start := time.Now()

	targets, err := e.resolveTargets(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("resolve targets: %w", err)
	}
	e.log.Info(ctx, "evaluating plans",
		logger.Int("plans", len(in.Plans)),
		logger.Bool("remote", e.Remote()),
		logger.Int("target_calories", targets.Calories),
		logger.Float64("max_budget", targets.MaxBudget))

	var results []Result
	if e.Remote() {
		results = e.submitAll(ctx, targets, in.Plans)
	} else {
		results = e.scoreAll(targets, in.Plans)
	}

	report := &Report{Targets: targets, Results: results, Remote: e.Remote()}
	for _, r := range results {
		if r.Err != nil {
			report.Failed++
		}
	}
	Rank(report.Results)
	report.Duration = time.Since(start)
	return report, nil
}

// resolveTargets prefers explicit targets, then derives from the profile.
func (e *Evaluator) resolveTargets(ctx context.Context, in *Input) (model.NutritionTargets, error) {
	if in.Targets != nil {
		t := *in.Targets
		if in.MaxBudget > 0 {
			t.MaxBudget = in.MaxBudget
		}
		return t, nil
	}
	if e.Remote() {
		return e.remoteTargets(ctx, *in.Profile, in.MaxBudget)
	}
	return e.deriver.Derive(*in.Profile, in.MaxBudget)
}

func (e *Evaluator) scoreAll(targets model.NutritionTargets, plans []Candidate) []Result {
	results := make([]Result, len(plans))
	for i, p := range plans {
		results[i] = Result{Name: p.Name}
		if err := scoring.ValidateItems(p.Meals); err != nil {
			results[i].Err = err
			continue
		}
		results[i].Summary, results[i].Score = e.scorer.Score(p.Meals, targets)
	}
	return results
}

// submitAll posts candidates concurrently with a bounded worker pool.
func (e *Evaluator) submitAll(ctx context.Context, targets model.NutritionTargets, plans []Candidate) []Result {
	results := make([]Result, len(plans))
	var failed int64

	indexes := make(chan int, e.cfg.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup
	for w := 0; w < e.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				r := e.submit(ctx, targets, plans[i])
				if r.Err != nil {
					atomic.AddInt64(&failed, 1)
					e.log.Warn(ctx, "plan submission failed", logger.String("plan", r.Name), logger.Error(r.Err))
				} else if e.cfg.Verbose {
					e.log.Info(ctx, "plan scored", logger.String("plan", r.Name), logger.Float64("score", r.Score))
				}
				results[i] = r
			}
		}()
	}

	go func() {
		defer close(indexes)
		for i := range plans {
			select {
			case <-ctx.Done():
				return
			case indexes <- i:
			}
		}
	}()
	wg.Wait()

	// Candidates never handed out because ctx ended.
	for i := range results {
		if results[i].Name == "" {
			results[i] = Result{Name: plans[i].Name, Err: ctx.Err()}
		}
	}
	if n := atomic.LoadInt64(&failed); n > 0 {
		e.log.Warn(ctx, "some plans failed", logger.Int("failed", int(n)))
	}
	return results
}
