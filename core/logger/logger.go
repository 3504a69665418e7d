// Package logger provides the application-wide structured logger. Components
// identify themselves through the context so every line carries the name of
// the component that emitted it.
package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the application-wide logger.
var Logger *zap.Logger

// componentNameKeyType is a context key type for storing the component name.
type componentNameKeyType string

const componentNameKey componentNameKeyType = "componentName"

func init() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	var err error
	Logger, err = config.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(Logger)
}

// WithComponent returns a new context with the component name set. Log lines
// emitted with that context carry a "component" field.
func WithComponent(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, componentNameKey, name)
}

func componentFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(componentNameKey).(string); ok {
		return name
	}
	return "unknown"
}

func withComponentField(ctx context.Context, fields []zap.Field) []zap.Field {
	return append(fields, zap.String("component", componentFromContext(ctx)))
}

// Debug logs at debug level with the component field from the context.
func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	Logger.Debug(msg, withComponentField(ctx, fields)...)
}

// Info logs at info level with the component field from the context.
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	Logger.Info(msg, withComponentField(ctx, fields)...)
}

// Warn logs at warn level with the component field from the context.
func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	Logger.Warn(msg, withComponentField(ctx, fields)...)
}

// Error logs at error level with the component field from the context.
func Error(ctx context.Context, msg string, fields ...zap.Field) {
	Logger.Error(msg, withComponentField(ctx, fields)...)
}

// Fatal logs at fatal level with the component field from the context.
func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	Logger.Fatal(msg, withComponentField(ctx, fields)...)
}

// SetLogger allows external packages to set the internal zap.Logger instance.
// This is primarily for testing purposes.
func SetLogger(l *zap.Logger) {
	Logger = l
}
