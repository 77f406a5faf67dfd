package repository

import "github.com/okian/nutriplan/pkg/logger"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMaxPlans bounds the number of plans kept in memory. When the limit is
// reached the oldest plan is dropped. Zero or negative means unbounded.
func WithMaxPlans(n int) Option {
	return func(s *MemoryStore) {
		s.maxPlans = n
	}
}

// GormOption applies a configuration option to the GormStore.
type GormOption func(*GormStore)

// WithGormLogger sets the logger used for store diagnostics.
func WithGormLogger(l logger.Logger) GormOption {
	return func(s *GormStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxOpenConns limits the pool size of the underlying database.
func WithMaxOpenConns(n int) GormOption {
	return func(s *GormStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}
