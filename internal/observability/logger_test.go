package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_LevelMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		level        string
		debugEnabled bool
		wantErr      bool
	}{
		{name: "debug level", level: "debug", debugEnabled: true},
		{name: "info level", level: "info"},
		{name: "empty level defaults to info", level: ""},
		{name: "mixed case with spaces", level: " Debug ", debugEnabled: true},
		{name: "unknown level", level: "not-a-level", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tc.level)
			if tc.wantErr {
				if err == nil || logger != nil {
					t.Fatalf("NewLogger(%q) = %v, %v; want nil logger and error", tc.level, logger, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !logger.Core().Enabled(zapcore.InfoLevel) {
				t.Fatal("info should be enabled")
			}
			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tc.debugEnabled {
				t.Fatalf("debug enabled=%v, want=%v", got, tc.debugEnabled)
			}
		})
	}
}

func TestProcessFields(t *testing.T) {
	t.Parallel()

	fields := processFields()
	if fields["job"] != jobName {
		t.Fatalf("job=%v, want=%q", fields["job"], jobName)
	}
}

func TestStartRun_TagsEveryLine(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, runLogger := StartRun(context.Background(), zap.New(core), "run-789")
	runLogger.Info("run started")
	LoggerFromContext(ctx, zap.NewNop()).Info("stage finished")

	entries := recorded.All()
	if len(entries) != 2 {
		t.Fatalf("entries=%d, want=2", len(entries))
	}
	for _, entry := range entries {
		if got := entry.ContextMap()["runId"]; got != "run-789" {
			t.Fatalf("%q runId=%v, want=%q", entry.Message, got, "run-789")
		}
	}

	runID, ok := RunIDFromContext(ctx)
	if !ok || runID != "run-789" {
		t.Fatalf("run id=%q, %v; want run-789", runID, ok)
	}
}

func TestStartRun_NilLogger(t *testing.T) {
	t.Parallel()

	ctx, logger := StartRun(context.Background(), nil, "run-1")
	if logger == nil {
		t.Fatal("expected a no-op logger")
	}
	if runID, ok := RunIDFromContext(ctx); !ok || runID != "run-1" {
		t.Fatalf("run id=%q, %v; want run-1", runID, ok)
	}
}

func TestLoggerFromContext_OutsideRun(t *testing.T) {
	t.Parallel()

	fallback := zap.NewNop()
	if got := LoggerFromContext(context.Background(), fallback); got != fallback {
		t.Fatal("expected fallback logger outside a run")
	}
	if _, ok := RunIDFromContext(context.Background()); ok {
		t.Fatal("expected run id to be missing")
	}
}

func TestRunIDFromContext_EmptyID(t *testing.T) {
	t.Parallel()

	ctx, _ := StartRun(context.Background(), zap.NewNop(), "")
	if _, ok := RunIDFromContext(ctx); ok {
		t.Fatal("empty run id should be reported as missing")
	}
}
