// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/seo-audit/internal/audit"
)

// New builds a zap.Logger configured for development or production.
// Production loggers emit JSON with ISO8601 timestamps.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger (development=%t): %w", development, err)
	}
	return logger.Named("seoaudit"), nil
}

// JobFields returns the structured fields identifying a job in log lines.
func JobFields(job audit.Job) []zap.Field {
	return []zap.Field{
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("url", job.Params.URL),
	}
}
