// Package logging builds the zap logger used across recjoin and carries it
// through a context.
package logging

import (
	"context"
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DebugEnv switches on development (debug level, console) logging.
const DebugEnv = "RECJOIN_DEBUG"

// NewLogger returns a logger configured from the environment.
func NewLogger() *zap.SugaredLogger {
	debug, _ := strconv.ParseBool(os.Getenv(DebugEnv))
	return New(debug)
}

// New returns a production JSON logger, or a development console logger
// when debug is set. Logs go to stderr so stdout stays free for reports.
func New(debug bool) *zap.SugaredLogger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger.Named("recjoin").Sugar()
}

type loggerKey struct{}

// WithLogger returns a copy of parent context in which the
// value associated with logger key is the supplied logger.
func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger in the context, or a new one built from the
// environment.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.SugaredLogger); ok {
		return logger
	}
	return NewLogger()
}
