// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers an optional YAML file and NUTRIPLAN_ env vars on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"math"
	"runtime"

	"github.com/okian/nutriplan/internal/domain/model"
	"github.com/okian/nutriplan/internal/domain/nutrition"
)

// Supported store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory batch scoring queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of scoring workers. Zero picks a CPU based default.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the in-memory request id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxHistoryLimit caps GET /plans?limit and GET /plans/top?limit.
	MaxHistoryLimit int `koanf:"max_history_limit"`

	// DefaultBudget is used when a caller does not give a positive budget.
	DefaultBudget float64 `koanf:"default_budget"`

	Store   StoreConfig   `koanf:"store"`
	Redis   RedisConfig   `koanf:"redis"`
	Policy  PolicyConfig  `koanf:"policy"`
	Scoring ScoringConfig `koanf:"scoring"`

	// DefaultProfile is served for users that have not stored a profile.
	DefaultProfile model.UserProfile `koanf:"default_profile"`
}

// StoreConfig selects the plan and profile store.
type StoreConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// RedisConfig enables the shared request id cache when URL is set.
type RedisConfig struct {
	URL        string `koanf:"url"`
	TTLSeconds int    `koanf:"ttl_seconds"`
}

// PolicyConfig tunes target derivation.
type PolicyConfig struct {
	ProteinRatio   float64 `koanf:"protein_ratio"`
	FatRatio       float64 `koanf:"fat_ratio"`
	CarbsRatio     float64 `koanf:"carbs_ratio"`
	LoseWeightKcal int     `koanf:"lose_weight_kcal"`
	GainMuscleKcal int     `koanf:"gain_muscle_kcal"`
	CalorieFloor   int     `koanf:"calorie_floor"`
}

// ScoringConfig tunes plan scoring.
type ScoringConfig struct {
	CaloriesWeight float64 `koanf:"calories_weight"`
	ProteinWeight  float64 `koanf:"protein_weight"`
	BudgetWeight   float64 `koanf:"budget_weight"`
	ClampMax       float64 `koanf:"clamp_max"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		QueueSize:       10_000,
		WorkerCount:     runtime.NumCPU() * 2,
		DedupeSize:      50_000,
		MaxHistoryLimit: 100,
		DefaultBudget:   50,
		Store: StoreConfig{
			Driver: DriverMemory,
		},
		Redis: RedisConfig{
			TTLSeconds: 86_400,
		},
		Policy: PolicyConfig{
			ProteinRatio:   0.30,
			FatRatio:       0.30,
			CarbsRatio:     0.40,
			LoseWeightKcal: -500,
			GainMuscleKcal: 300,
		},
		Scoring: ScoringConfig{
			CaloriesWeight: 0.6,
			ProteinWeight:  0.4,
			BudgetWeight:   0.5,
			ClampMax:       2,
		},
		DefaultProfile: model.DefaultProfile(),
	}
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("log_format must be text or json")
	case c.QueueSize < 1:
		return invalid("queue_size must be positive")
	case c.WorkerCount < 0:
		return invalid("worker_count must not be negative")
	case c.DedupeSize < 1:
		return invalid("dedupe_size must be positive")
	case c.MaxHistoryLimit < 1:
		return invalid("max_history_limit must be positive")
	case c.DefaultBudget < 0:
		return invalid("default_budget must not be negative")
	case c.Redis.URL != "" && c.Redis.TTLSeconds < 1:
		return invalid("redis.ttl_seconds must be positive")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return invalid("store.dsn is required for driver " + c.Store.Driver)
		}
	default:
		return invalid(fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}

	p := c.Policy
	if p.ProteinRatio < 0 || p.FatRatio < 0 || p.CarbsRatio < 0 ||
		math.Abs(p.ProteinRatio+p.FatRatio+p.CarbsRatio-1) > 1e-6 {
		return invalid("policy ratios must be non-negative and sum to 1")
	}
	if p.CalorieFloor < 0 {
		return invalid("policy.calorie_floor must not be negative")
	}

	s := c.Scoring
	if s.CaloriesWeight < 0 || s.ProteinWeight < 0 || s.BudgetWeight < 0 {
		return invalid("scoring weights must not be negative")
	}
	if s.CaloriesWeight < s.ProteinWeight {
		return invalid("scoring.calories_weight must not be below scoring.protein_weight")
	}
	if math.Abs(s.CaloriesWeight+s.ProteinWeight-1) > 1e-6 {
		return invalid("scoring.calories_weight and scoring.protein_weight must sum to 1")
	}
	if s.ClampMax <= 1 {
		return invalid("scoring.clamp_max must be above 1")
	}

	if err := nutrition.Validate(c.DefaultProfile); err != nil {
		return fmt.Errorf("%w: default_profile: %w", ErrInvalidConfig, err)
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
