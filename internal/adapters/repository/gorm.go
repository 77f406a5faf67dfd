package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/nutriplan/internal/domain/model"
	"github.com/okian/nutriplan/pkg/logger"
	"github.com/okian/nutriplan/pkg/metrics"
)

// planRecord is the SQL row of a scored plan. Nested values are stored as JSON.
type planRecord struct {
	ID        string                 `gorm:"primaryKey;size:36"`
	RequestID string                 `gorm:"size:128;index"`
	UserID    string                 `gorm:"size:128;index"`
	CreatedAt time.Time              `gorm:"index"`
	Score     float64                `gorm:"index"`
	Items     []model.MealItem       `gorm:"serializer:json"`
	Summary   model.NutritionSummary `gorm:"serializer:json"`
	Targets   model.NutritionTargets `gorm:"serializer:json"`
}

func (planRecord) TableName() string { return "meal_plans" }

// profileRecord is the SQL row of a user profile.
type profileRecord struct {
	UserID              string `gorm:"primaryKey;size:128"`
	Age                 int
	Gender              string `gorm:"size:16"`
	HeightCM            float64
	WeightKG            float64
	ActivityLevel       string   `gorm:"size:32"`
	Goal                string   `gorm:"size:32"`
	DietaryRestrictions []string `gorm:"serializer:json"`
	UpdatedAt           time.Time
}

func (profileRecord) TableName() string { return "user_profiles" }

func toPlanRecord(p model.MealPlan) planRecord {
	return planRecord{
		ID:        p.ID,
		RequestID: p.RequestID,
		UserID:    p.UserID,
		CreatedAt: p.CreatedAt.UTC(),
		Score:     p.Score,
		Items:     p.Items,
		Summary:   p.Summary,
		Targets:   p.Targets,
	}
}

func (r planRecord) toModel() model.MealPlan {
	return model.MealPlan{
		ID:        r.ID,
		RequestID: r.RequestID,
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt.UTC(),
		Items:     r.Items,
		Summary:   r.Summary,
		Targets:   r.Targets,
		Score:     r.Score,
	}
}

func (r profileRecord) toModel() model.UserProfile {
	restrictions := r.DietaryRestrictions
	if restrictions == nil {
		restrictions = []string{}
	}
	return model.UserProfile{
		Age:                 r.Age,
		Gender:              model.Gender(r.Gender),
		HeightCM:            r.HeightCM,
		WeightKG:            r.WeightKG,
		ActivityLevel:       model.ActivityLevel(r.ActivityLevel),
		Goal:                model.Goal(r.Goal),
		DietaryRestrictions: restrictions,
	}
}

// GormStore persists plans and profiles in SQLite or PostgreSQL.
type GormStore struct {
	db           *gorm.DB
	log          logger.Logger
	maxOpenConns int
}

// Open connects to driver ("sqlite" or "postgres") at dsn and migrates the schema.
func Open(ctx context.Context, driver, dsn string, opts ...GormOption) (*GormStore, error) {
	s := &GormStore{log: logger.Discard(), maxOpenConns: 25}
	for _, opt := range opts {
		opt(s)
	}

	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
		// each connection to :memory: would otherwise see its own database
		s.maxOpenConns = 1
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("error getting database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(s.maxOpenConns)
	sqlDB.SetMaxIdleConns(s.maxOpenConns)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&planRecord{}, &profileRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("error migrating schema: %w", err)
	}

	s.db = db
	s.log.Info(ctx, "store opened", logger.String("driver", driver))
	return s, nil
}

func (s *GormStore) fail(ctx context.Context, op string, err error) error {
	metrics.RecordStoreError(op)
	s.log.Error(ctx, "store operation failed", logger.String("op", op), logger.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func (s *GormStore) SavePlan(ctx context.Context, plan model.MealPlan) error {
	defer observe("save_plan", time.Now())

	rec := toPlanRecord(plan)
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return s.fail(ctx, "save_plan", res.Error)
	}
	if res.RowsAffected == 0 {
		metrics.RecordStoreError("save_plan")
		return ErrPlanExists
	}

	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateStoredPlans(n)
	}
	return nil
}

func (s *GormStore) Plan(ctx context.Context, id string) (model.MealPlan, error) {
	defer observe("plan", time.Now())

	var rec planRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.MealPlan{}, ErrNotFound
	}
	if err != nil {
		return model.MealPlan{}, s.fail(ctx, "plan", err)
	}
	return rec.toModel(), nil
}

func (s *GormStore) History(ctx context.Context, userID string, limit int) ([]model.MealPlan, error) {
	defer observe("history", time.Now())
	return s.list(ctx, "history", userID, limit, "created_at DESC, id ASC")
}

func (s *GormStore) TopN(ctx context.Context, userID string, n int) ([]model.MealPlan, error) {
	defer observe("top", time.Now())
	return s.list(ctx, "top", userID, n, "score DESC, id ASC")
}

func (s *GormStore) list(ctx context.Context, op, userID string, limit int, order string) ([]model.MealPlan, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	q := s.db.WithContext(ctx).Model(&planRecord{}).Order(order).Limit(limit)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}

	var recs []planRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, s.fail(ctx, op, err)
	}

	out := make([]model.MealPlan, len(recs))
	for i, r := range recs {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *GormStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&planRecord{}).Count(&n).Error; err != nil {
		return 0, s.fail(ctx, "count", err)
	}
	return int(n), nil
}

func (s *GormStore) SaveProfile(ctx context.Context, userID string, p model.UserProfile) error {
	defer observe("save_profile", time.Now())

	rec := profileRecord{
		UserID:              userID,
		Age:                 p.Age,
		Gender:              string(p.Gender),
		HeightCM:            p.HeightCM,
		WeightKG:            p.WeightKG,
		ActivityLevel:       string(p.ActivityLevel),
		Goal:                string(p.Goal),
		DietaryRestrictions: p.DietaryRestrictions,
	}
	// Save upserts on the primary key.
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return s.fail(ctx, "save_profile", err)
	}
	return nil
}

func (s *GormStore) Profile(ctx context.Context, userID string) (model.UserProfile, error) {
	defer observe("profile", time.Now())

	var rec profileRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.UserProfile{}, ErrNotFound
	}
	if err != nil {
		return model.UserProfile{}, s.fail(ctx, "profile", err)
	}
	return rec.toModel(), nil
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
