package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/nutriplan/internal/domain/model"
	"github.com/okian/nutriplan/pkg/metrics"
)

// MemoryStore is an in-process Store guarded by a RWMutex.
type MemoryStore struct {
	mu       sync.RWMutex
	plans    map[string]model.MealPlan
	order    []string // insertion order, oldest first
	profiles map[string]model.UserProfile
	maxPlans int
}

// NewMemoryStore constructs an empty store with configuration options.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		plans:    make(map[string]model.MealPlan),
		profiles: make(map[string]model.UserProfile),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// SavePlan stores a copy of plan, evicting the oldest plan when the store is full.
func (s *MemoryStore) SavePlan(_ context.Context, plan model.MealPlan) error {
	defer observe("save_plan", time.Now())

	s.mu.Lock()
	if _, ok := s.plans[plan.ID]; ok {
		s.mu.Unlock()
		metrics.RecordStoreError("save_plan")
		return ErrPlanExists
	}
	if s.maxPlans > 0 && len(s.plans) >= s.maxPlans {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.plans, oldest)
	}
	s.plans[plan.ID] = clonePlan(plan)
	s.order = append(s.order, plan.ID)
	n := len(s.plans)
	s.mu.Unlock()

	metrics.UpdateStoredPlans(n)
	return nil
}

// Plan returns the plan stored under id or ErrNotFound.
func (s *MemoryStore) Plan(_ context.Context, id string) (model.MealPlan, error) {
	defer observe("plan", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return model.MealPlan{}, ErrNotFound
	}
	return clonePlan(p), nil
}

// History returns up to limit plans for userID, newest first. An empty userID matches every user.
func (s *MemoryStore) History(_ context.Context, userID string, limit int) ([]model.MealPlan, error) {
	defer observe("history", time.Now())
	return s.sorted(userID, limit, newer)
}

// TopN returns up to n plans for userID, best score first.
func (s *MemoryStore) TopN(_ context.Context, userID string, n int) ([]model.MealPlan, error) {
	defer observe("top", time.Now())
	return s.sorted(userID, n, less)
}

func (s *MemoryStore) sorted(userID string, limit int, by func(a, b model.MealPlan) bool) ([]model.MealPlan, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	all := make([]model.MealPlan, 0, len(s.plans))
	for _, p := range s.plans {
		if userID == "" || p.UserID == userID {
			all = append(all, p)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return by(all[i], all[j]) })
	if len(all) > limit {
		all = all[:limit]
	}
	for i := range all {
		all[i] = clonePlan(all[i])
	}
	return all, nil
}

// Count returns the number of stored plans.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.plans), nil
}

// SaveProfile stores a copy of p for userID, replacing any earlier profile.
func (s *MemoryStore) SaveProfile(_ context.Context, userID string, p model.UserProfile) error {
	defer observe("save_profile", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = cloneProfile(p)
	return nil
}

// Profile returns the profile stored for userID or ErrNotFound.
func (s *MemoryStore) Profile(_ context.Context, userID string) (model.UserProfile, error) {
	defer observe("profile", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return model.UserProfile{}, ErrNotFound
	}
	return cloneProfile(p), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
