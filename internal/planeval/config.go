// Package planeval evaluates candidate meal plans from a YAML file, either
// in process or against a running nutriplan server, and ranks them.
package planeval

import (
	"time"

	"github.com/okian/nutriplan/internal/domain/model"
)

// Config holds configuration for an evaluation run.
type Config struct {
	BaseURL string        // server to submit to; empty scores locally
	Input   string        // path of the YAML candidates file
	UserID  string        // user the remote plans are stored under
	Top     int           // number of ranked rows to print, 0 for all
	Workers int           // concurrent submissions in remote mode
	Timeout time.Duration // HTTP request timeout
	Verbose bool          // log every candidate
}

// Input is the decoded candidates file.
type Input struct {
	Profile   *model.UserProfile      `yaml:"profile"`
	Targets   *model.NutritionTargets `yaml:"targets"`
	MaxBudget float64                 `yaml:"max_budget"`
	Plans     []Candidate             `yaml:"plans"`
}

// Candidate is one named plan to evaluate.
type Candidate struct {
	Name  string           `yaml:"name"`
	Meals []model.MealItem `yaml:"meals"`
}

// Result is the outcome for a single candidate.
type Result struct {
	Name      string
	PlanID    string
	Summary   model.NutritionSummary
	Score     float64
	Duplicate bool
	Err       error
}

// Report is a ranked evaluation.
type Report struct {
	Targets  model.NutritionTargets
	Results  []Result
	Failed   int
	Remote   bool
	Duration time.Duration
}
