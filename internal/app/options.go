package service

import (
	"time"

	"github.com/okian/nutriplan/internal/adapters/repository"
	"github.com/okian/nutriplan/internal/domain/dedupe"
	"github.com/okian/nutriplan/internal/domain/model"
	"github.com/okian/nutriplan/internal/domain/nutrition"
	"github.com/okian/nutriplan/internal/domain/scoring"
	"github.com/okian/nutriplan/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of scoring workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the batch scoring queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the default in-memory request id cache.
// It has no effect when WithDeduper is used.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxLimit caps the limit accepted by History and TopPlans.
func WithMaxLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the plan and profile store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithDeduper sets the request id cache, e.g. a RedisDeduper shared by replicas.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithDeriver sets the target derivation policy.
func WithDeriver(d *nutrition.Deriver) Option {
	return func(s *Service) {
		if d != nil {
			s.deriver = d
		}
	}
}

// WithScorer sets the plan scoring policy.
func WithScorer(sc *scoring.PlanScorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithDefaultProfile sets the profile served to users without a stored one.
func WithDefaultProfile(p model.UserProfile) Option {
	return func(s *Service) {
		s.defaultProfile = p
	}
}

// WithDefaultBudget sets the budget used when a request has none.
func WithDefaultBudget(budget float64) Option {
	return func(s *Service) {
		if budget >= 0 {
			s.defaultBudget = budget
		}
	}
}

// WithClock overrides the time source for plan timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how plan ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}
