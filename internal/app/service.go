// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	planqueue "github.com/okian/nutriplan/internal/adapters/mq/queue"
	workerpool "github.com/okian/nutriplan/internal/adapters/mq/worker"
	"github.com/okian/nutriplan/internal/adapters/repository"
	"github.com/okian/nutriplan/internal/domain/dedupe"
	"github.com/okian/nutriplan/internal/domain/model"
	"github.com/okian/nutriplan/internal/domain/nutrition"
	"github.com/okian/nutriplan/internal/domain/scoring"
	"github.com/okian/nutriplan/pkg/logger"
	"github.com/okian/nutriplan/pkg/metrics"
)

// DefaultUserID is used when a caller does not name a user.
const DefaultUserID = "default"

// ScoreRequest is a candidate plan submitted for scoring. When Targets is nil
// the user's derived targets are used, with MaxBudget as the budget. When
// Targets is set, its own max_budget wins and MaxBudget only fills it in
// when it is zero.
type ScoreRequest struct {
	RequestID string                  `json:"request_id,omitempty"`
	UserID    string                  `json:"user_id,omitempty"`
	Items     []model.MealItem        `json:"meals"`
	Targets   *model.NutritionTargets `json:"target,omitempty"`
	MaxBudget float64                 `json:"max_budget,omitempty"`
}

// ScoreResult is the outcome of a synchronous scoring call.
type ScoreResult struct {
	Plan      model.MealPlan `json:"plan"`
	Duplicate bool           `json:"duplicate"`
}

// Submission acknowledges one plan accepted for asynchronous scoring.
type Submission struct {
	PlanID    string `json:"plan_id"`
	RequestID string `json:"request_id,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

// Stats is a point-in-time view of the service for monitoring.
type Stats struct {
	Started       bool  `json:"started"`
	Workers       int   `json:"workers"`
	BusyWorkers   int   `json:"busy_workers"`
	QueueLength   int   `json:"queue_length"`
	QueueCapacity int   `json:"queue_capacity"`
	StoredPlans   int   `json:"stored_plans"`
	DedupeSize    int64 `json:"dedupe_size"`
	Processed     int64 `json:"processed"`
	Failed        int64 `json:"failed"`
}

// Service derives targets, scores plans and keeps their history.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	deduper dedupe.Deduper
	queue   planqueue.Queue
	pool    *workerpool.Pool
	deriver *nutrition.Deriver
	scorer  *scoring.PlanScorer

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	maxLimit       int
	defaultBudget  float64
	defaultProfile model.UserProfile
	now            func() time.Time
	newID          func() string

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service. Without WithStore and WithDeduper it keeps
// everything in memory.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      10_000,
		dedupeSize:     50_000,
		maxLimit:       100,
		defaultBudget:  50,
		defaultProfile: model.DefaultProfile(),
		now:            time.Now,
		newID:          uuid.NewString,
		logger:         logger.Discard(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	}
	if s.deriver == nil {
		s.deriver = nutrition.NewDeriver()
	}
	if s.scorer == nil {
		s.scorer = scoring.NewPlanScorer()
	}

	return s
}

// Start creates the scoring queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting nutriplan service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.queue = planqueue.NewInMemoryQueue(planqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.scorer, &planSink{store: s.store, deduper: s.deduper},
		workerpool.WithPoolLogger(s.logger.Named("pool")),
		workerpool.WithWorkerOptions(workerpool.WithClock(s.now)),
	)
	s.pool.Start(runCtx)

	s.cancel = cancel
	s.started = true
	s.logger.Info(ctx, "nutriplan service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)

	return nil
}

// Stop drains queued plans and stops the workers. The store and deduper are
// owned by the caller and stay open.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping nutriplan service...")

	err := s.pool.Shutdown(ctx)
	s.cancel()
	s.started = false

	if err != nil {
		s.logger.Error(ctx, "worker pool did not drain", logger.Error(err))
		return fmt.Errorf("stop: %w", err)
	}
	s.logger.Info(ctx, "nutriplan service stopped")
	return nil
}

// Profile returns the stored profile of userID, or a copy of the default profile.
func (s *Service) Profile(ctx context.Context, userID string) (model.UserProfile, error) {
	p, err := s.store.Profile(ctx, userOrDefault(userID))
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, repository.ErrNotFound):
		def := s.defaultProfile
		def.DietaryRestrictions = append([]string{}, def.DietaryRestrictions...)
		return def, nil
	default:
		return model.UserProfile{}, fmt.Errorf("load profile: %w", err)
	}
}

// UpdateProfile merges patch into the current profile, validates and stores
// it, and returns the profile with freshly derived targets.
func (s *Service) UpdateProfile(ctx context.Context, userID string, patch model.ProfilePatch) (model.UserProfile, model.NutritionTargets, error) {
	current, err := s.Profile(ctx, userID)
	if err != nil {
		return model.UserProfile{}, model.NutritionTargets{}, err
	}

	updated := patch.Apply(current)
	targets, err := s.derive(updated, s.defaultBudget)
	if err != nil {
		return model.UserProfile{}, model.NutritionTargets{}, err
	}

	if err := s.store.SaveProfile(ctx, userOrDefault(userID), updated); err != nil {
		return model.UserProfile{}, model.NutritionTargets{}, fmt.Errorf("save profile: %w", err)
	}

	s.logger.Debug(ctx, "profile updated",
		logger.String("user_id", userOrDefault(userID)),
		logger.Int("target_calories", targets.Calories),
	)
	return updated, targets, nil
}

// Targets derives targets from the current profile of userID. A budget that
// is not positive falls back to the default budget.
func (s *Service) Targets(ctx context.Context, userID string, maxBudget float64) (model.NutritionTargets, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return model.NutritionTargets{}, err
	}
	return s.derive(p, s.budget(maxBudget))
}

// DeriveTargets derives targets for a profile without touching stored state.
func (s *Service) DeriveTargets(p model.UserProfile, maxBudget float64) (nutrition.Breakdown, error) {
	b, err := s.deriver.Explain(p, s.budget(maxBudget))
	if err != nil {
		metrics.RecordValidationError("profile")
		return nutrition.Breakdown{}, err
	}
	metrics.RecordTargetsDerived()
	return b, nil
}

// PresetTargets returns the fixed quick-plan targets for goal.
func (s *Service) PresetTargets(goal model.Goal, maxBudget float64) model.NutritionTargets {
	return nutrition.Preset(goal, s.budget(maxBudget))
}

// ScorePlan scores and stores a plan synchronously. A repeated request id
// returns the plan stored for the first request with Duplicate set.
func (s *Service) ScorePlan(ctx context.Context, req ScoreRequest) (ScoreResult, error) {
	targets, err := s.resolve(ctx, req)
	if err != nil {
		return ScoreResult{}, err
	}

	id := s.newID()
	if req.RequestID != "" {
		existing, seen, err := s.deduper.Remember(ctx, dedupeKey(req.UserID, req.RequestID), id)
		if err != nil {
			return ScoreResult{}, fmt.Errorf("remember request: %w", err)
		}
		if seen {
			return s.duplicate(ctx, existing)
		}
	}

	start := time.Now()
	summary, score := s.scorer.Score(req.Items, targets)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)

	plan := model.MealPlan{
		ID:        id,
		RequestID: req.RequestID,
		UserID:    userOrDefault(req.UserID),
		CreatedAt: s.now().UTC(),
		Items:     append([]model.MealItem(nil), req.Items...),
		Summary:   summary,
		Targets:   targets,
		Score:     score,
	}

	if err := s.store.SavePlan(ctx, plan); err != nil {
		s.forget(ctx, req.UserID, req.RequestID)
		return ScoreResult{}, fmt.Errorf("save plan: %w", err)
	}

	metrics.RecordPlanScored(score, summary.OverBudget())
	metrics.UpdateDedupeSize(s.deduper.Size())
	s.logger.Debug(ctx, "plan scored",
		logger.String("plan_id", plan.ID),
		logger.Float64("score", score),
	)
	return ScoreResult{Plan: plan}, nil
}

// SubmitPlans validates every request, then queues them for asynchronous
// scoring. When the queue fills up the submissions accepted so far are
// returned with ErrBackpressure.
func (s *Service) SubmitPlans(ctx context.Context, reqs []ScoreRequest) ([]Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}

	targets := make([]model.NutritionTargets, len(reqs))
	for i := range reqs {
		t, err := s.resolve(ctx, reqs[i])
		if err != nil {
			return nil, fmt.Errorf("plan[%d]: %w", i, err)
		}
		targets[i] = t
	}

	accepted := make([]Submission, 0, len(reqs))
	for i, req := range reqs {
		id := s.newID()
		if req.RequestID != "" {
			existing, seen, err := s.deduper.Remember(ctx, dedupeKey(req.UserID, req.RequestID), id)
			if err != nil {
				return accepted, fmt.Errorf("remember request: %w", err)
			}
			if seen {
				metrics.RecordPlanDuplicate()
				accepted = append(accepted, Submission{PlanID: existing, RequestID: req.RequestID, Duplicate: true})
				continue
			}
		}

		job := planqueue.Job{
			PlanID:      id,
			RequestID:   req.RequestID,
			UserID:      userOrDefault(req.UserID),
			Items:       append([]model.MealItem(nil), req.Items...),
			Targets:     targets[i],
			SubmittedAt: time.Now(),
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			s.forget(ctx, req.UserID, req.RequestID)
			if errors.Is(err, planqueue.ErrFull) {
				s.logger.Warn(ctx, "scoring queue full", logger.Int("accepted", len(accepted)))
				return accepted, ErrBackpressure
			}
			return accepted, fmt.Errorf("enqueue: %w", err)
		}
		accepted = append(accepted, Submission{PlanID: id, RequestID: req.RequestID})
	}

	metrics.UpdateDedupeSize(s.deduper.Size())
	return accepted, nil
}

// Plan returns a stored plan by id.
func (s *Service) Plan(ctx context.Context, id string) (model.MealPlan, error) {
	return s.store.Plan(ctx, id)
}

// History returns up to limit plans of userID, newest first. An empty userID
// lists every user.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]model.MealPlan, error) {
	if err := s.checkLimit(limit); err != nil {
		return nil, err
	}
	return s.store.History(ctx, userID, limit)
}

// TopPlans returns up to n plans of userID, best score first.
func (s *Service) TopPlans(ctx context.Context, userID string, n int) ([]model.MealPlan, error) {
	if err := s.checkLimit(n); err != nil {
		return nil, err
	}
	return s.store.TopN(ctx, userID, n)
}

// MaxLimit returns the largest accepted History/TopPlans limit.
func (s *Service) MaxLimit() int { return s.maxLimit }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Started:       s.started,
		Workers:       s.workerCount,
		QueueCapacity: s.queueSize,
		DedupeSize:    s.deduper.Size(),
	}

	if n, err := s.store.Count(ctx); err == nil {
		stats.StoredPlans = n
		metrics.UpdateStoredPlans(n)
	} else {
		s.logger.Warn(ctx, "count plans failed", logger.Error(err))
	}

	if s.started {
		stats.Workers = s.pool.Size()
		stats.BusyWorkers = s.pool.Busy()
		stats.QueueLength = s.queue.Len()
		stats.Processed = s.pool.Processed()
		stats.Failed = s.pool.Failed()
		metrics.UpdateQueueSize(stats.QueueLength)
	}
	metrics.UpdateDedupeSize(stats.DedupeSize)

	return stats
}

// resolve validates the items of req and returns the targets to score against.
func (s *Service) resolve(ctx context.Context, req ScoreRequest) (model.NutritionTargets, error) {
	if err := scoring.ValidateItems(req.Items); err != nil {
		metrics.RecordValidationError("plan")
		return model.NutritionTargets{}, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	if req.Targets == nil {
		return s.Targets(ctx, req.UserID, req.MaxBudget)
	}
	t := *req.Targets
	if t.MaxBudget == 0 {
		t.MaxBudget = req.MaxBudget
	}
	if err := validateTargets(t); err != nil {
		metrics.RecordValidationError("plan")
		return model.NutritionTargets{}, err
	}
	return t, nil
}

func (s *Service) derive(p model.UserProfile, budget float64) (model.NutritionTargets, error) {
	b, err := s.DeriveTargets(p, budget)
	if err != nil {
		return model.NutritionTargets{}, err
	}
	return b.Targets, nil
}

func (s *Service) duplicate(ctx context.Context, planID string) (ScoreResult, error) {
	metrics.RecordPlanDuplicate()
	plan, err := s.store.Plan(ctx, planID)
	if errors.Is(err, repository.ErrNotFound) {
		return ScoreResult{}, ErrInProgress
	}
	if err != nil {
		return ScoreResult{}, fmt.Errorf("load duplicate: %w", err)
	}
	return ScoreResult{Plan: plan, Duplicate: true}, nil
}

func (s *Service) forget(ctx context.Context, userID, requestID string) {
	if requestID == "" {
		return
	}
	if err := s.deduper.Forget(ctx, dedupeKey(userID, requestID)); err != nil {
		s.logger.Warn(ctx, "forget request failed", logger.String("request_id", requestID), logger.Error(err))
	}
}

func (s *Service) budget(maxBudget float64) float64 {
	if maxBudget > 0 {
		return maxBudget
	}
	return s.defaultBudget
}

func (s *Service) checkLimit(n int) error {
	if n < 1 || n > s.maxLimit {
		return fmt.Errorf("%w: must be between 1 and %d", repository.ErrInvalidLimit, s.maxLimit)
	}
	return nil
}

func validateTargets(t model.NutritionTargets) error {
	if t.Calories < 0 || t.ProteinG < 0 || t.CarbsG < 0 || t.FatG < 0 {
		return fmt.Errorf("%w: targets must not be negative", ErrInvalidPlan)
	}
	if math.IsNaN(t.MaxBudget) || math.IsInf(t.MaxBudget, 0) || t.MaxBudget < 0 {
		return fmt.Errorf("%w: max_budget must be a non-negative number", ErrInvalidPlan)
	}
	return nil
}

func userOrDefault(userID string) string {
	if userID == "" {
		return DefaultUserID
	}
	return userID
}

func dedupeKey(userID, requestID string) string {
	return userOrDefault(userID) + "/" + requestID
}

// planSink saves plans scored by the worker pool and releases the request id
// of a plan that could not be saved so the client can retry.
type planSink struct {
	store   repository.Store
	deduper dedupe.Deduper
}

func (p *planSink) SavePlan(ctx context.Context, plan model.MealPlan) error {
	err := p.store.SavePlan(ctx, plan)
	if err != nil && plan.RequestID != "" {
		_ = p.deduper.Forget(ctx, dedupeKey(plan.UserID, plan.RequestID))
	}
	return err
}
