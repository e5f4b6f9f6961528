package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/eduplanner/timetabling/pkg/model"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env string

	Log     LogConfig
	Solver  SolverConfig
	Metrics MetricsConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// SolverConfig tunes the scheduling engine.
type SolverConfig struct {
	Seed             int64
	Workers          int
	MaxNodes         int
	Timeout          time.Duration
	AnnealIterations int
	Patience         int
	TempHigh         float64
	TempLow          float64
	Weights          model.Weights
}

// MetricsConfig points at the Prometheus textfile written after a run; empty disables it.
type MetricsConfig struct {
	File string
}

// Load reads configuration from the environment and an optional .env file in the working directory.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile reads configuration from the environment and an optional env file at path.
func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load(path)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	defaults := model.DefaultOptions()
	cfg.Solver = SolverConfig{
		Seed:             v.GetInt64("SOLVER_SEED"),
		Workers:          v.GetInt("SOLVER_WORKERS"),
		MaxNodes:         v.GetInt("SOLVER_MAX_NODES"),
		Timeout:          parseDuration(v.GetString("SOLVER_TIMEOUT"), defaults.Timeout),
		AnnealIterations: v.GetInt("SOLVER_ANNEAL_ITERATIONS"),
		Patience:         v.GetInt("SOLVER_PATIENCE"),
		TempHigh:         v.GetFloat64("SOLVER_TEMP_HIGH"),
		TempLow:          v.GetFloat64("SOLVER_TEMP_LOW"),
		Weights: model.Weights{
			TeacherGap:      v.GetFloat64("WEIGHT_TEACHER_GAP"),
			Distribution:    v.GetFloat64("WEIGHT_DISTRIBUTION"),
			Consecutive:     v.GetFloat64("WEIGHT_CONSECUTIVE"),
			TheoryEarly:     v.GetFloat64("WEIGHT_THEORY_EARLY"),
			WorkloadBalance: v.GetFloat64("WEIGHT_WORKLOAD_BALANCE"),
			LabPlacement:    v.GetFloat64("WEIGHT_LAB_PLACEMENT"),
		},
	}

	cfg.Metrics = MetricsConfig{
		File: v.GetString("METRICS_FILE"),
	}

	return cfg, nil
}

// SolverOptions maps the solver section onto engine options.
func (cfg *Config) SolverOptions() model.Options {
	return model.Options{
		Seed:             cfg.Solver.Seed,
		Workers:          cfg.Solver.Workers,
		MaxNodes:         cfg.Solver.MaxNodes,
		Timeout:          cfg.Solver.Timeout,
		AnnealIterations: cfg.Solver.AnnealIterations,
		Patience:         cfg.Solver.Patience,
		TempHigh:         cfg.Solver.TempHigh,
		TempLow:          cfg.Solver.TempLow,
		Weights:          cfg.Solver.Weights,
	}
}

func setDefaults(v *viper.Viper) {
	defaults := model.DefaultOptions()

	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SOLVER_SEED", defaults.Seed)
	v.SetDefault("SOLVER_WORKERS", defaults.Workers)
	v.SetDefault("SOLVER_MAX_NODES", defaults.MaxNodes)
	v.SetDefault("SOLVER_TIMEOUT", defaults.Timeout.String())
	v.SetDefault("SOLVER_ANNEAL_ITERATIONS", defaults.AnnealIterations)
	v.SetDefault("SOLVER_PATIENCE", defaults.Patience)
	v.SetDefault("SOLVER_TEMP_HIGH", defaults.TempHigh)
	v.SetDefault("SOLVER_TEMP_LOW", defaults.TempLow)

	v.SetDefault("WEIGHT_TEACHER_GAP", defaults.Weights.TeacherGap)
	v.SetDefault("WEIGHT_DISTRIBUTION", defaults.Weights.Distribution)
	v.SetDefault("WEIGHT_CONSECUTIVE", defaults.Weights.Consecutive)
	v.SetDefault("WEIGHT_THEORY_EARLY", defaults.Weights.TheoryEarly)
	v.SetDefault("WEIGHT_WORKLOAD_BALANCE", defaults.Weights.WorkloadBalance)
	v.SetDefault("WEIGHT_LAB_PLACEMENT", defaults.Weights.LabPlacement)

	v.SetDefault("METRICS_FILE", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
