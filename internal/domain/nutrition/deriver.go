// Package nutrition derives daily energy and macronutrient targets from a
// user profile.
//
// The derivation is Mifflin-St Jeor BMR, scaled by an activity multiplier
// into TDEE, shifted by the goal, then split into macro grams. Everything
// here is pure and safe for concurrent use.
package nutrition

import (
	"math"

	"github.com/okian/nutriplan/internal/domain/model"
)

// Mifflin-St Jeor coefficients.
const (
	bmrWeightCoef = 10.0
	bmrHeightCoef = 6.25
	bmrAgeCoef    = 5.0
	maleOffset    = 5.0
	femaleOffset  = -161.0
)

// Energy density of macronutrients in kcal per gram.
const (
	KcalPerGramProtein = 4.0
	KcalPerGramCarbs   = 4.0
	KcalPerGramFat     = 9.0
)

// Default policy values.
const (
	defaultActivityMultiplier = 1.2
	defaultLoseWeightKcal     = -500
	defaultGainMuscleKcal     = 300
	defaultProteinRatio       = 0.30
	defaultFatRatio           = 0.30
	defaultCarbsRatio         = 0.40
	ratioSumTolerance         = 1e-6
)

var activityMultipliers = map[model.ActivityLevel]float64{
	model.ActivitySedentary:  1.2,
	model.ActivityLight:      1.375,
	model.ActivityModerate:   1.55,
	model.ActivityActive:     1.725,
	model.ActivityVeryActive: 1.9,
}

// Option applies a policy option to the Deriver.
type Option func(*Deriver)

// WithMacroSplit sets the share of calories going to protein, fat and carbs.
// Ratios must be non-negative and sum to 1; otherwise the option is ignored.
func WithMacroSplit(protein, fat, carbs float64) Option {
	return func(d *Deriver) {
		if protein < 0 || fat < 0 || carbs < 0 {
			return
		}
		if math.Abs(protein+fat+carbs-1) > ratioSumTolerance {
			return
		}
		d.proteinRatio, d.fatRatio, d.carbsRatio = protein, fat, carbs
	}
}

// WithGoalAdjustments sets the kcal offsets applied for lose_weight and gain_muscle.
func WithGoalAdjustments(loseWeightKcal, gainMuscleKcal int) Option {
	return func(d *Deriver) {
		d.loseWeightKcal = loseWeightKcal
		d.gainMuscleKcal = gainMuscleKcal
	}
}

// WithCalorieFloor raises target calories to at least kcal. Zero disables the floor,
// which is the default.
func WithCalorieFloor(kcal int) Option {
	return func(d *Deriver) {
		if kcal >= 0 {
			d.calorieFloor = kcal
		}
	}
}

// Deriver turns profiles into targets according to its policy.
type Deriver struct {
	proteinRatio   float64
	fatRatio       float64
	carbsRatio     float64
	loseWeightKcal int
	gainMuscleKcal int
	calorieFloor   int
}

// NewDeriver creates a Deriver with the default 30/30/40 split and no calorie floor.
func NewDeriver(opts ...Option) *Deriver {
	d := &Deriver{
		proteinRatio:   defaultProteinRatio,
		fatRatio:       defaultFatRatio,
		carbsRatio:     defaultCarbsRatio,
		loseWeightKcal: defaultLoseWeightKcal,
		gainMuscleKcal: defaultGainMuscleKcal,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Breakdown exposes the intermediate values of a derivation.
type Breakdown struct {
	BMR                float64                `json:"bmr"`
	ActivityMultiplier float64                `json:"activity_multiplier"`
	TDEE               int                    `json:"tdee"`
	GoalAdjustment     int                    `json:"goal_adjustment"`
	Targets            model.NutritionTargets `json:"targets"`
}

// Derive computes targets for p. maxBudget is copied into the result untouched.
func (d *Deriver) Derive(p model.UserProfile, maxBudget float64) (model.NutritionTargets, error) {
	b, err := d.Explain(p, maxBudget)
	if err != nil {
		return model.NutritionTargets{}, err
	}
	return b.Targets, nil
}

// Explain is Derive plus the intermediate values.
func (d *Deriver) Explain(p model.UserProfile, maxBudget float64) (Breakdown, error) {
	if err := Validate(p); err != nil {
		return Breakdown{}, err
	}
	if math.IsNaN(maxBudget) || math.IsInf(maxBudget, 0) || maxBudget < 0 {
		return Breakdown{}, invalid("max_budget", "must be a non-negative number")
	}

	bmr := BMR(p)
	mult := ActivityMultiplier(p.ActivityLevel)
	tdee := int(math.Round(bmr * mult))
	adj := d.GoalAdjustment(p.Goal)

	cals := tdee + adj
	if d.calorieFloor > 0 && cals < d.calorieFloor {
		cals = d.calorieFloor
	}
	if cals < 0 {
		return Breakdown{}, invalid("target_calories", "derived value is negative")
	}

	protein, carbs, fat := d.Macros(cals)
	return Breakdown{
		BMR:                bmr,
		ActivityMultiplier: mult,
		TDEE:               tdee,
		GoalAdjustment:     adj,
		Targets: model.NutritionTargets{
			Calories:  cals,
			ProteinG:  protein,
			CarbsG:    carbs,
			FatG:      fat,
			MaxBudget: maxBudget,
		},
	}, nil
}

// GoalAdjustment returns the kcal offset for goal. Unknown goals are treated as maintain.
func (d *Deriver) GoalAdjustment(goal model.Goal) int {
	switch goal {
	case model.GoalLoseWeight:
		return d.loseWeightKcal
	case model.GoalGainMuscle:
		return d.gainMuscleKcal
	default:
		return 0
	}
}

// Macros splits calories into rounded protein, carbs and fat grams.
func (d *Deriver) Macros(calories int) (protein, carbs, fat int) {
	c := float64(calories)
	protein = int(math.Round(c * d.proteinRatio / KcalPerGramProtein))
	carbs = int(math.Round(c * d.carbsRatio / KcalPerGramCarbs))
	fat = int(math.Round(c * d.fatRatio / KcalPerGramFat))
	return protein, carbs, fat
}

// BMR returns the Mifflin-St Jeor basal metabolic rate in kcal/day.
func BMR(p model.UserProfile) float64 {
	base := bmrWeightCoef*p.WeightKG + bmrHeightCoef*p.HeightCM - bmrAgeCoef*float64(p.Age)
	if p.Gender == model.GenderMale {
		return base + maleOffset
	}
	return base + femaleOffset
}

// ActivityMultiplier returns the TDEE multiplier for level, 1.2 when unknown.
func ActivityMultiplier(level model.ActivityLevel) float64 {
	if m, ok := activityMultipliers[level]; ok {
		return m
	}
	return defaultActivityMultiplier
}

// TDEE returns round(BMR * multiplier).
func TDEE(p model.UserProfile) int {
	return int(math.Round(BMR(p) * ActivityMultiplier(p.ActivityLevel)))
}

// Validate checks the numeric fields and the gender of p.
func Validate(p model.UserProfile) error {
	if p.Age <= 0 {
		return invalid("age", "must be positive")
	}
	if !positive(p.HeightCM) {
		return invalid("height_cm", "must be positive")
	}
	if !positive(p.WeightKG) {
		return invalid("weight_kg", "must be positive")
	}
	switch p.Gender {
	case model.GenderMale, model.GenderFemale:
	default:
		return invalid("gender", "must be male or female")
	}
	return nil
}

func positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
