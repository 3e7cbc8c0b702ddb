package observability

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const jobName = "involuntary-dissolution"

// NewLogger builds the JSON logger for one job process. Sampling is off:
// every row transition is an audit line and must not be dropped.
func NewLogger(level string) (*zap.Logger, error) {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		normalized = "info"
	}
	parsedLevel, err := zapcore.ParseLevel(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	cfg.InitialFields = processFields()

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

func processFields() map[string]any {
	fields := map[string]any{"job": jobName}
	if host, err := os.Hostname(); err == nil && host != "" {
		fields["host"] = host
	}
	return fields
}

type runKey struct{}

type run struct {
	id     string
	logger *zap.Logger
}

// StartRun binds a run id and a logger tagged with it to ctx. Everything
// called with the returned context logs under that run.
func StartRun(ctx context.Context, logger *zap.Logger, runID string) (context.Context, *zap.Logger) {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	runLogger := logger.With(zap.String("runId", runID))
	return context.WithValue(ctx, runKey{}, run{id: runID, logger: runLogger}), runLogger
}

func RunIDFromContext(ctx context.Context) (string, bool) {
	r, ok := runFromContext(ctx)
	if !ok || r.id == "" {
		return "", false
	}
	return r.id, true
}

// LoggerFromContext returns the run logger, or fallback outside a run.
func LoggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if r, ok := runFromContext(ctx); ok {
		return r.logger
	}
	return fallback
}

func runFromContext(ctx context.Context) (run, bool) {
	if ctx == nil {
		return run{}, false
	}
	r, ok := ctx.Value(runKey{}).(run)
	return r, ok
}
