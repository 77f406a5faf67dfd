// Package repository persists scored meal plans and user profiles.
package repository

import (
	"context"

	"github.com/okian/nutriplan/internal/domain/model"
)

// Store provides read/write access to plans and profiles.
type Store interface {
	// SavePlan stores a scored plan. Plans are immutable; saving an existing
	// ID returns ErrPlanExists.
	SavePlan(ctx context.Context, plan model.MealPlan) error

	// Plan returns the plan with id or ErrNotFound.
	Plan(ctx context.Context, id string) (model.MealPlan, error)

	// History returns up to limit plans, newest first. An empty userID
	// matches every user.
	History(ctx context.Context, userID string, limit int) ([]model.MealPlan, error)

	// TopN returns up to n plans ordered by score desc, then ID asc.
	TopN(ctx context.Context, userID string, n int) ([]model.MealPlan, error)

	// Count returns the number of stored plans.
	Count(ctx context.Context) (int, error)

	// SaveProfile replaces the profile stored for userID.
	SaveProfile(ctx context.Context, userID string, p model.UserProfile) error

	// Profile returns the stored profile or ErrNotFound.
	Profile(ctx context.Context, userID string) (model.UserProfile, error)

	Close() error
}

// less orders plans for TopN: higher score first, ties by ID asc.
func less(a, b model.MealPlan) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

// newer orders plans for History: newest first, ties by ID asc.
func newer(a, b model.MealPlan) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

func clonePlan(p model.MealPlan) model.MealPlan {
	p.Items = append([]model.MealItem(nil), p.Items...)
	return p
}

func cloneProfile(p model.UserProfile) model.UserProfile {
	p.DietaryRestrictions = append([]string(nil), p.DietaryRestrictions...)
	return p
}
