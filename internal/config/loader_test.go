package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/okian/nutriplan/internal/config"
	"github.com/okian/nutriplan/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("NUTRIPLAN_ADDR", ":8080")
			_ = os.Setenv("NUTRIPLAN_QUEUE_SIZE", "500")
			_ = os.Setenv("NUTRIPLAN_WORKER_COUNT", "16")
			_ = os.Setenv("NUTRIPLAN_DEFAULT_BUDGET", "35.5")
			_ = os.Setenv("NUTRIPLAN_SCORING__BUDGET_WEIGHT", "1.5")
			_ = os.Setenv("NUTRIPLAN_POLICY__CALORIE_FLOOR", "1200")
			_ = os.Setenv("NUTRIPLAN_DEFAULT_PROFILE__AGE", "40")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override flat and nested defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.DefaultBudget, convey.ShouldEqual, 35.5)
				convey.So(cfg.Scoring.BudgetWeight, convey.ShouldEqual, 1.5)
				convey.So(cfg.Policy.CalorieFloor, convey.ShouldEqual, 1200)
				convey.So(cfg.DefaultProfile.Age, convey.ShouldEqual, 40)
			})

			convey.Convey("And untouched nested values should keep their defaults", func() {
				convey.So(cfg.Scoring.CaloriesWeight, convey.ShouldEqual, 0.6)
				convey.So(cfg.Policy.ProteinRatio, convey.ShouldEqual, 0.30)
				convey.So(cfg.DefaultProfile.Gender, convey.ShouldEqual, model.GenderMale)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
log_format: json
queue_size: 3000
store:
  driver: sqlite
  dsn: "file::memory:?cache=shared"
redis:
  url: "redis://localhost:6379/1"
  ttl_seconds: 60
default_profile:
  age: 31
  gender: female
  dietary_restrictions: [vegan]
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("NUTRIPLAN_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 3000)
				convey.So(cfg.Store.Driver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.Redis.TTLSeconds, convey.ShouldEqual, 60)
				convey.So(cfg.DefaultProfile.Age, convey.ShouldEqual, 31)
				convey.So(cfg.DefaultProfile.Gender, convey.ShouldEqual, model.GenderFemale)
				convey.So(cfg.DefaultProfile.DietaryRestrictions, convey.ShouldResemble, []string{"vegan"})
			})

			convey.Convey("And missing fields should keep their defaults", func() {
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
				convey.So(cfg.DefaultProfile.HeightCM, convey.ShouldEqual, 175)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
worker_count: 24
dedupe_size: 600
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("NUTRIPLAN_CONFIG", tmpFile)
			_ = os.Setenv("NUTRIPLAN_ADDR", ":8080")
			_ = os.Setenv("NUTRIPLAN_WORKER_COUNT", "32")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 600)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("NUTRIPLAN_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("NUTRIPLAN_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("NUTRIPLAN_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the loaded values fail validation", func() {
			_ = os.Setenv("NUTRIPLAN_POLICY__PROTEIN_RATIO", "0.5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an invalid config error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, config.EnvPrefix) {
			_ = os.Unsetenv(name)
		}
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "nutriplan-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
