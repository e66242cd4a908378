package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type interactionKey struct{}

type Logger struct {
	*zap.Logger
}

// NewLogger builds the process logger. Development environments get the
// console encoder; everything else logs JSON.
func NewLogger(level, environment string) (*Logger, error) {
	config := zap.NewProductionConfig()
	if environment == "development" {
		config = zap.NewDevelopmentConfig()
	}

	// Parse log level
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{logger.Named("localhist")}, nil
}

// WithInteraction tags ctx with the id of a user interaction.
func WithInteraction(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, interactionKey{}, id)
}

// For returns l annotated with the interaction id carried by ctx, if any.
func For(ctx context.Context, l *zap.Logger) *zap.Logger {
	if id, ok := ctx.Value(interactionKey{}).(string); ok {
		return l.With(zap.String("interaction", id))
	}
	return l
}
