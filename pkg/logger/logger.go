package logger

import (
	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eduplanner/timetabling/pkg/config"
)

// New builds the process logger. Records always go to stderr; stdout carries generated documents
func New(cfg *config.Config) (*zap.Logger, error) {
	zapConfig := zap.NewDevelopmentConfig()
	if cfg.Env == config.EnvProduction {
		zapConfig = zap.NewProductionConfig()
	}

	zapConfig.Encoding = lo.Ternary(cfg.Log.Format == "console", "console", "json")
	zapConfig.Level = zap.NewAtomicLevelAt(Level(cfg.Log.Level, zapConfig.Level.Level()))
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapConfig.Build(zap.Fields(zap.String("env", cfg.Env)))
}

// Level parses a level name. An empty name keeps the fallback and an unknown one means info
func Level(name string, fallback zapcore.Level) zapcore.Level {
	if name == "" {
		return fallback
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}
