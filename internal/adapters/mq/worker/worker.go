package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/nutriplan/internal/adapters/mq/queue"
	"github.com/okian/nutriplan/internal/domain/model"
	"github.com/okian/nutriplan/pkg/logger"
	"github.com/okian/nutriplan/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// ErrStopped is returned by Shutdown when a worker had already been stopped.
var ErrStopped = errors.New("worker stopped")

// Updater persists scored plans.
type Updater interface {
	SavePlan(ctx context.Context, plan model.MealPlan) error
}

// Scorer summarizes and scores a candidate plan.
type Scorer interface {
	Score(items []model.MealItem, targets model.NutritionTargets) (model.NutritionSummary, float64)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs and writes scored plans using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is drained.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in progress.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	scorer  Scorer
	updater Updater
	name    string
	now     func() time.Time

	// set by the owning pool
	busy      *atomic.Int64
	processed *atomic.Int64
	failed    *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, scorer Scorer, updater Updater, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		scorer:    scorer,
		updater:   updater,
		name:      "worker",
		now:       time.Now,
		busy:      new(atomic.Int64),
		processed: new(atomic.Int64),
		failed:    new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Discard(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Name returns the worker name.
func (w *InMemoryWorker) Name() string { return w.name }

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "error processing job", logger.String("plan_id", j.PlanID), logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	stopped := true
	w.shutdownOnce.Do(func() {
		stopped = false
		close(w.shutdown)
	})
	if stopped {
		return ErrStopped
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process scores one job and saves the resulting plan.
func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.busy.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.busy.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	scoreStart := time.Now()
	summary, score := w.scorer.Score(j.Items, j.Targets)
	metrics.RecordScoringLatency(float64(time.Since(scoreStart).Microseconds()) / 1000)

	plan := model.MealPlan{
		ID:        j.PlanID,
		RequestID: j.RequestID,
		UserID:    j.UserID,
		CreatedAt: w.now().UTC(),
		Items:     j.Items,
		Summary:   summary,
		Targets:   j.Targets,
		Score:     score,
	}

	if err := w.updater.SavePlan(ctx, plan); err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("save plan %s: %w", j.PlanID, err)
	}

	w.processed.Add(1)
	metrics.RecordPlanScored(score, summary.OverBudget())
	w.logger.With(logger.String("plan_id", plan.ID), logger.String("user_id", plan.UserID)).Debug(ctx, "plan scored",
		logger.Float64("score", score),
		logger.Bool("over_budget", summary.OverBudget()),
	)
	return nil
}

// Pool manages multiple workers reading from one queue.
type Pool struct {
	workers         []*InMemoryWorker
	workerOpts      []Option
	queue           Queue
	shutdownTimeout time.Duration

	busy      atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive count defaults to 2*NumCPU.
func NewPool(workerCount int, q Queue, scorer Scorer, updater Updater, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:         make([]*InMemoryWorker, workerCount),
		queue:           q,
		shutdownTimeout: poolShutdownTimeout,
		logger:          logger.Discard(),
	}

	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < workerCount; i++ {
		name := "worker-" + strconv.Itoa(i)
		wopts := append([]Option{WithName(name), WithLogger(p.logger.Named(name))}, p.workerOpts...)
		w := NewInMemoryWorker(q, scorer, updater, wopts...)
		w.busy, w.processed, w.failed = &p.busy, &p.processed, &p.failed
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(workerCount)

	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Busy returns the number of workers currently processing a job.
func (p *Pool) Busy() int { return int(p.busy.Load()) }

// Processed returns the number of plans scored and saved.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Failed returns the number of jobs whose plan could not be saved.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// Shutdown closes the queue, lets workers drain it and waits up to the
// shutdown timeout. Workers still running after that are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, p.shutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
		}
		if timedOut {
			break
		}
	}

	for _, w := range p.workers {
		w.shutdownOnce.Do(func() { close(w.shutdown) })
	}
	metrics.UpdateWorkerIdleCount(0)

	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
