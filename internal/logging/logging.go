// Package logging структурированный логгер сервиса на zap
package logging

import (
	"context"
	"time"

	"go.uber.org/zap"

	"elimfilters/server/middleware"
)

// Config настройки логгера
type Config struct {
	Level       string            `json:"level"`
	Format      string            `json:"format"` // "json" или "console"
	OutputPath  string            `json:"output_path"`
	Development bool              `json:"development"`
	Fields      map[string]string `json:"fields"`
}

// New создает логгер по конфигурации
func New(config Config) (*zap.Logger, error) {
	var zapConfig zap.Config
	if config.Development {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(config.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level

	if config.Format == "console" {
		zapConfig.Encoding = "console"
	} else {
		zapConfig.Encoding = "json"
	}

	if config.OutputPath != "" {
		zapConfig.OutputPaths = []string{config.OutputPath}
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	fields := make([]zap.Field, 0, len(config.Fields))
	for k, v := range config.Fields {
		fields = append(fields, zap.String(k, v))
	}
	return logger.With(fields...), nil
}

// NewNop логгер, отбрасывающий все записи
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// FromContext добавляет к логгеру request_id из контекста запроса
func FromContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reqID := middleware.GetRequestID(ctx); reqID != "" {
		return logger.With(zap.String("request_id", reqID))
	}
	return logger
}

// LogInfo логирует информационное сообщение с request_id
func LogInfo(ctx context.Context, logger *zap.Logger, msg string, fields ...zap.Field) {
	FromContext(ctx, logger).Info(msg, fields...)
}

// LogWarn логирует предупреждение
func LogWarn(ctx context.Context, logger *zap.Logger, msg string, fields ...zap.Field) {
	FromContext(ctx, logger).Warn(msg, fields...)
}

// LogError логирует ошибку с контекстом из запроса
func LogError(ctx context.Context, logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	FromContext(ctx, logger).Error(msg, append(fields, zap.Error(err))...)
}

// LogDuration логирует продолжительность выполнения операции
func LogDuration(ctx context.Context, logger *zap.Logger, operation string, duration time.Duration, fields ...zap.Field) {
	fields = append(fields, zap.Int64("duration_ms", duration.Milliseconds()))
	FromContext(ctx, logger).Info(operation+" completed", fields...)
}
