// Package model contains domain models passed between layers.
package model

// Gender selects the sex-specific constant of the BMR equation.
type Gender string

// Supported genders.
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ActivityLevel selects the TDEE multiplier.
type ActivityLevel string

// Supported activity levels, ordered from least to most active.
const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

// ActivityLevels lists every known level in increasing order of activity.
var ActivityLevels = []ActivityLevel{
	ActivitySedentary,
	ActivityLight,
	ActivityModerate,
	ActivityActive,
	ActivityVeryActive,
}

// Goal is the user's health goal; it shifts target calories away from TDEE.
type Goal string

// Supported goals.
const (
	GoalLoseWeight Goal = "lose_weight"
	GoalGainMuscle Goal = "gain_muscle"
	GoalMaintain   Goal = "maintain"
	GoalHealthy    Goal = "healthy"
)

// UserProfile is the physiological snapshot targets are derived from.
type UserProfile struct {
	Age                 int           `json:"age" yaml:"age" koanf:"age"`
	Gender              Gender        `json:"gender" yaml:"gender" koanf:"gender"`
	HeightCM            float64       `json:"height_cm" yaml:"height_cm" koanf:"height_cm"`
	WeightKG            float64       `json:"weight_kg" yaml:"weight_kg" koanf:"weight_kg"`
	ActivityLevel       ActivityLevel `json:"activity_level" yaml:"activity_level" koanf:"activity_level"`
	Goal                Goal          `json:"goal" yaml:"goal" koanf:"goal"`
	DietaryRestrictions []string      `json:"dietary_restrictions" yaml:"dietary_restrictions" koanf:"dietary_restrictions"`
}

// DefaultProfile returns the profile used when a user has not stored one yet.
func DefaultProfile() UserProfile {
	return UserProfile{
		Age:                 25,
		Gender:              GenderMale,
		HeightCM:            175,
		WeightKG:            70,
		ActivityLevel:       ActivityModerate,
		Goal:                GoalMaintain,
		DietaryRestrictions: []string{},
	}
}

// ProfilePatch carries a partial profile update. Nil fields keep their value.
type ProfilePatch struct {
	Age                 *int           `json:"age,omitempty"`
	Gender              *Gender        `json:"gender,omitempty"`
	HeightCM            *float64       `json:"height_cm,omitempty"`
	WeightKG            *float64       `json:"weight_kg,omitempty"`
	ActivityLevel       *ActivityLevel `json:"activity_level,omitempty"`
	Goal                *Goal          `json:"goal,omitempty"`
	DietaryRestrictions []string       `json:"dietary_restrictions,omitempty"`
}

// Apply returns a copy of p with the non-nil fields of patch merged in.
func (patch ProfilePatch) Apply(p UserProfile) UserProfile {
	if patch.Age != nil {
		p.Age = *patch.Age
	}
	if patch.Gender != nil {
		p.Gender = *patch.Gender
	}
	if patch.HeightCM != nil {
		p.HeightCM = *patch.HeightCM
	}
	if patch.WeightKG != nil {
		p.WeightKG = *patch.WeightKG
	}
	if patch.ActivityLevel != nil {
		p.ActivityLevel = *patch.ActivityLevel
	}
	if patch.Goal != nil {
		p.Goal = *patch.Goal
	}
	if patch.DietaryRestrictions != nil {
		p.DietaryRestrictions = append([]string(nil), patch.DietaryRestrictions...)
	}
	return p
}
