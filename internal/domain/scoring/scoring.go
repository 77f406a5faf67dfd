// Package scoring aggregates candidate meal plans and scores them against
// nutrition targets.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/nutriplan/internal/domain/model"
)

// Default scoring policy constants.
const (
	defaultCaloriesWeight = 0.6
	defaultProteinWeight  = 0.4
	defaultBudgetWeight   = 0.5
	defaultClampMax       = 2.0
	maxScoreValue         = 100
)

// ErrInvalidItem marks a meal item that cannot be aggregated.
var ErrInvalidItem = errors.New("invalid meal item")

// Option applies a configuration option to the PlanScorer.
type Option func(*PlanScorer)

// WithWeights sets the penalty weights. Calorie matching is the primary
// objective, so weights with calories < protein or any negative value are ignored.
// The calorie and protein weights must sum to 1 so an empty plan scores 0.
func WithWeights(calories, protein, budget float64) Option {
	return func(s *PlanScorer) {
		if calories < 0 || protein < 0 || budget < 0 || calories < protein {
			return
		}
		if math.Abs(calories+protein-1) > 1e-6 {
			return
		}
		s.caloriesWeight = calories
		s.proteinWeight = protein
		s.budgetWeight = budget
	}
}

// WithClampMax sets the upper bound achievement ratios are clamped to before
// the closeness penalty is computed. Values not above 1 are ignored.
func WithClampMax(maxRatio float64) Option {
	return func(s *PlanScorer) {
		if maxRatio > 1 {
			s.clampMax = maxRatio
		}
	}
}

// Scorer summarizes and scores a candidate plan.
type Scorer interface {
	// Score returns the plan summary and a score in [0, 100].
	Score(items []model.MealItem, targets model.NutritionTargets) (model.NutritionSummary, float64)
}

// PlanScorer implements Scorer. It holds only immutable policy and is safe for
// concurrent use.
type PlanScorer struct {
	caloriesWeight float64
	proteinWeight  float64
	budgetWeight   float64
	clampMax       float64
}

// NewPlanScorer creates a scorer with configuration options.
func NewPlanScorer(opts ...Option) *PlanScorer {
	s := &PlanScorer{
		caloriesWeight: defaultCaloriesWeight,
		proteinWeight:  defaultProteinWeight,
		budgetWeight:   defaultBudgetWeight,
		clampMax:       defaultClampMax,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Summarize sums the items and computes achievement ratios against targets.
// A zero target yields a zero ratio.
func (s *PlanScorer) Summarize(items []model.MealItem, targets model.NutritionTargets) model.NutritionSummary {
	var sum model.NutritionSummary
	for _, it := range items {
		sum.TotalCalories += it.Calories
		sum.TotalProtein += it.ProteinG
		sum.TotalCarbs += it.CarbsG
		sum.TotalFat += it.FatG
		sum.TotalPrice += it.Price
	}

	sum.CaloriesAchievement = ratio(sum.TotalCalories, float64(targets.Calories))
	sum.ProteinAchievement = ratio(sum.TotalProtein, float64(targets.ProteinG))
	sum.CarbsAchievement = ratio(sum.TotalCarbs, float64(targets.CarbsG))
	sum.FatAchievement = ratio(sum.TotalFat, float64(targets.FatG))
	sum.BudgetUsage = ratio(sum.TotalPrice, targets.MaxBudget)
	return sum
}

// Score summarizes items and maps the weighted mismatch onto [0, 100].
// A perfect match within budget scores 100; an empty plan scores 0.
func (s *PlanScorer) Score(items []model.MealItem, targets model.NutritionTargets) (model.NutritionSummary, float64) {
	sum := s.Summarize(items, targets)
	return sum, s.ScoreSummary(sum)
}

// ScoreSummary scores an already computed summary.
func (s *PlanScorer) ScoreSummary(sum model.NutritionSummary) float64 {
	penalty := s.caloriesWeight*s.closeness(sum.CaloriesAchievement) +
		s.proteinWeight*s.closeness(sum.ProteinAchievement)
	if sum.BudgetUsage > 1 {
		penalty += s.budgetWeight * (sum.BudgetUsage - 1)
	}
	return math.Max(0, math.Min(maxScoreValue, maxScoreValue-maxScoreValue*penalty))
}

// closeness is |1 - r| with r clamped to [0, clampMax].
func (s *PlanScorer) closeness(r float64) float64 {
	return math.Abs(1 - math.Max(0, math.Min(s.clampMax, r)))
}

func ratio(total, target float64) float64 {
	if target <= 0 || math.IsNaN(target) {
		return 0
	}
	return total / target
}

// ValidateItems rejects unknown meal slots, negative or non-finite numbers,
// and plans whose totals overflow to infinity.
func ValidateItems(items []model.MealItem) error {
	var totals [5]float64
	for i, it := range items {
		if !it.MealType.Valid() {
			return fmt.Errorf("%w: item[%d]: unknown meal_type %q", ErrInvalidItem, i, it.MealType)
		}
		fields := [5]struct {
			name string
			v    float64
		}{
			{"calories", it.Calories},
			{"protein_g", it.ProteinG},
			{"carbs_g", it.CarbsG},
			{"fat_g", it.FatG},
			{"price", it.Price},
		}
		for k, f := range fields {
			if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
				return fmt.Errorf("%w: item[%d]: %s must be a non-negative number", ErrInvalidItem, i, f.name)
			}
			totals[k] += f.v
			if math.IsInf(totals[k], 0) {
				return fmt.Errorf("%w: item[%d]: total %s is too large", ErrInvalidItem, i, f.name)
			}
		}
	}
	return nil
}
