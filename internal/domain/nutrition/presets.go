package nutrition

import "github.com/okian/nutriplan/internal/domain/model"

// presets are fixed targets per goal for callers without a profile.
var presets = map[model.Goal]model.NutritionTargets{
	model.GoalLoseWeight: {Calories: 1500, ProteinG: 120, CarbsG: 150, FatG: 45},
	model.GoalGainMuscle: {Calories: 2500, ProteinG: 150, CarbsG: 300, FatG: 80},
	model.GoalMaintain:   {Calories: 2000, ProteinG: 100, CarbsG: 250, FatG: 65},
	model.GoalHealthy:    {Calories: 1800, ProteinG: 90, CarbsG: 220, FatG: 55},
}

// Preset returns the quick-plan targets for goal with the given budget.
// Unknown goals get the healthy preset.
func Preset(goal model.Goal, maxBudget float64) model.NutritionTargets {
	t, ok := presets[goal]
	if !ok {
		t = presets[model.GoalHealthy]
	}
	t.MaxBudget = maxBudget
	return t
}
