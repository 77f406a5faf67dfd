package model

import "time"

// MealType is the slot a recipe is placed into.
type MealType string

// Supported meal slots.
const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// Valid reports whether t is one of the known meal slots.
func (t MealType) Valid() bool {
	switch t {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// NutritionTargets are the daily goals a plan is scored against.
// MaxBudget is supplied by the caller and never derived.
type NutritionTargets struct {
	Calories  int     `json:"target_calories" yaml:"target_calories"`
	ProteinG  int     `json:"target_protein_g" yaml:"target_protein_g"`
	CarbsG    int     `json:"target_carbs_g" yaml:"target_carbs_g"`
	FatG      int     `json:"target_fat_g" yaml:"target_fat_g"`
	MaxBudget float64 `json:"max_budget" yaml:"max_budget"`
}

// MacroCalories reconstructs energy from the macro grams (4/4/9 kcal per gram).
func (t NutritionTargets) MacroCalories() int {
	return t.ProteinG*4 + t.CarbsG*4 + t.FatG*9
}

// MealItem is one recipe instance placed into a meal slot.
type MealItem struct {
	MealType   MealType `json:"meal_type" yaml:"meal_type"`
	RecipeID   int      `json:"recipe_id" yaml:"recipe_id"`
	RecipeName string   `json:"recipe_name,omitempty" yaml:"recipe_name"`
	Calories   float64  `json:"calories" yaml:"calories"`
	ProteinG   float64  `json:"protein_g" yaml:"protein_g"`
	CarbsG     float64  `json:"carbs_g" yaml:"carbs_g"`
	FatG       float64  `json:"fat_g" yaml:"fat_g"`
	Price      float64  `json:"price" yaml:"price"`
}

// NutritionSummary aggregates a sequence of meal items against targets.
// Achievement values are ratios (1.0 means exactly on target).
type NutritionSummary struct {
	TotalCalories       float64 `json:"total_calories"`
	TotalProtein        float64 `json:"total_protein"`
	TotalCarbs          float64 `json:"total_carbs"`
	TotalFat            float64 `json:"total_fat"`
	TotalPrice          float64 `json:"total_price"`
	CaloriesAchievement float64 `json:"calories_achievement"`
	ProteinAchievement  float64 `json:"protein_achievement"`
	CarbsAchievement    float64 `json:"carbs_achievement"`
	FatAchievement      float64 `json:"fat_achievement"`
	BudgetUsage         float64 `json:"budget_usage"`
}

// OverBudget reports whether the plan costs more than the budget allows.
func (s NutritionSummary) OverBudget() bool {
	return s.BudgetUsage > 1
}

// MealPlan is a scored plan. It is immutable once produced.
type MealPlan struct {
	ID        string           `json:"id"`
	RequestID string           `json:"request_id,omitempty"`
	UserID    string           `json:"user_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	Items     []MealItem       `json:"meals"`
	Summary   NutritionSummary `json:"nutrition"`
	Targets   NutritionTargets `json:"target"`
	Score     float64          `json:"score"`
}

// ScoreJob is a candidate plan waiting to be scored asynchronously.
type ScoreJob struct {
	PlanID      string
	RequestID   string
	UserID      string
	Items       []MealItem
	Targets     NutritionTargets
	SubmittedAt time.Time
}
