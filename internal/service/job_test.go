package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/dissolution-engine/internal/domain"
	"github.com/kursadbilgin/dissolution-engine/internal/observability"
	"github.com/kursadbilgin/dissolution-engine/internal/schedule"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSettingsProvider struct {
	settingsFn func(ctx context.Context) (*Settings, error)
}

func (f *fakeSettingsProvider) Settings(ctx context.Context) (*Settings, error) {
	if f.settingsFn != nil {
		return f.settingsFn(ctx)
	}
	return nil, errors.New("settings not configured")
}

type fakeDissolver struct {
	initiateFn  func(ctx context.Context, settings *Settings) (*domain.Batch, error)
	advanceFn   func(ctx context.Context, stage domain.Stage, settings *Settings) (AdvanceResult, error)
	completeFn  func(ctx context.Context) (int, error)
	redeliverFn func(ctx context.Context) (int, error)
}

func (f *fakeDissolver) Initiate(ctx context.Context, settings *Settings) (*domain.Batch, error) {
	if f.initiateFn != nil {
		return f.initiateFn(ctx, settings)
	}
	return nil, nil
}

func (f *fakeDissolver) Advance(ctx context.Context, stage domain.Stage, settings *Settings) (AdvanceResult, error) {
	if f.advanceFn != nil {
		return f.advanceFn(ctx, stage, settings)
	}
	return AdvanceResult{Stage: stage}, nil
}

func (f *fakeDissolver) CompleteFinishedBatches(ctx context.Context) (int, error) {
	if f.completeFn != nil {
		return f.completeFn(ctx)
	}
	return 0, nil
}

func (f *fakeDissolver) RedeliverNotices(ctx context.Context) (int, error) {
	if f.redeliverFn != nil {
		return f.redeliverFn(ctx)
	}
	return 0, nil
}

func scheduledSettings(t *testing.T, stage1, stage2, stage3 string) *Settings {
	t.Helper()

	rules, err := schedule.ParseRules(stage1, stage2, stage3)
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	settings := testSettings(5)
	settings.Schedules = rules
	return settings
}

func newTestJob(t *testing.T, settings SettingsProvider, dissolver Dissolver, logger *zap.Logger) *Job {
	t.Helper()

	job, err := NewJob(settings, dissolver, observability.NewMetrics(), time.UTC, logger)
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}
	job.now = func() time.Time { return testNow }
	job.newRunID = func() string { return "run-1" }
	return job
}

func TestNewJobRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewJob(nil, &fakeDissolver{}, nil, nil, nil); err == nil {
		t.Fatal("NewJob() error = nil, want missing settings provider")
	}
	if _, err := NewJob(&fakeSettingsProvider{}, nil, nil, nil, nil); err == nil {
		t.Fatal("NewJob() error = nil, want missing dissolver")
	}
}

func TestJobRunExecutesDueStagesInOrder(t *testing.T) {
	t.Parallel()

	// testNow is a Tuesday: stages 1 and 2 are due, stage 3 is not.
	settings := scheduledSettings(t, "0 0 * * 1-2", "0 0 * * 2", "0 0 * * 3")
	calls := make([]string, 0, 3)
	dissolver := &fakeDissolver{
		initiateFn: func(ctx context.Context, got *Settings) (*domain.Batch, error) {
			if got != settings {
				t.Fatal("Initiate() received different settings")
			}
			if runID, ok := observability.RunIDFromContext(ctx); !ok || runID != "run-1" {
				t.Fatalf("run id = %q, want run-1", runID)
			}
			calls = append(calls, "initiate")
			return &domain.Batch{ID: "batch-1"}, nil
		},
		advanceFn: func(ctx context.Context, stage domain.Stage, got *Settings) (AdvanceResult, error) {
			calls = append(calls, stage.String())
			return AdvanceResult{Stage: stage, Matched: 3, Advanced: 2, Withdrawn: 1}, nil
		},
		completeFn: func(ctx context.Context) (int, error) {
			calls = append(calls, "complete")
			return 1, nil
		},
	}
	job := newTestJob(t, &fakeSettingsProvider{
		settingsFn: func(ctx context.Context) (*Settings, error) { return settings, nil },
	}, dissolver, nil)

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"initiate", "stage_2", "complete"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}

	if report.RunID != "run-1" || !report.Stage1Due || !report.Stage2Due || report.Stage3Due {
		t.Fatalf("report = %+v, want run-1 with stages 1 and 2 due", report)
	}
	if report.Batch == nil || report.Batch.ID != "batch-1" {
		t.Fatalf("report batch = %+v, want batch-1", report.Batch)
	}
	if report.Stage2 == nil || report.Stage2.Advanced != 2 || report.Stage3 != nil {
		t.Fatalf("report stages = %+v/%+v, want stage 2 only", report.Stage2, report.Stage3)
	}
	if report.BatchesFinished != 1 {
		t.Fatalf("batches finished = %d, want 1", report.BatchesFinished)
	}
}

func TestJobRunSkipsWhenNothingIsDue(t *testing.T) {
	t.Parallel()

	settings := scheduledSettings(t, "0 0 * * 6", "0 0 * * 6", "0 0 * * 0")
	dissolver := &fakeDissolver{
		initiateFn: func(ctx context.Context, settings *Settings) (*domain.Batch, error) {
			t.Fatal("Initiate() must not run")
			return nil, nil
		},
		advanceFn: func(ctx context.Context, stage domain.Stage, settings *Settings) (AdvanceResult, error) {
			t.Fatalf("Advance(%s) must not run", stage)
			return AdvanceResult{}, nil
		},
		completeFn: func(ctx context.Context) (int, error) {
			t.Fatal("CompleteFinishedBatches() must not run")
			return 0, nil
		},
	}
	job := newTestJob(t, &fakeSettingsProvider{
		settingsFn: func(ctx context.Context) (*Settings, error) { return settings, nil },
	}, dissolver, nil)

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Stage1Due || report.Stage2Due || report.Stage3Due {
		t.Fatalf("report = %+v, want no stage due", report)
	}
}

func TestJobRunOnHoldDoesNothing(t *testing.T) {
	t.Parallel()

	settings := scheduledSettings(t, "* * * * *", "* * * * *", "* * * * *")
	settings.OnHold = true
	dissolver := &fakeDissolver{
		initiateFn: func(ctx context.Context, settings *Settings) (*domain.Batch, error) {
			t.Fatal("Initiate() must not run while on hold")
			return nil, nil
		},
		redeliverFn: func(ctx context.Context) (int, error) {
			return 2, nil
		},
	}
	job := newTestJob(t, &fakeSettingsProvider{
		settingsFn: func(ctx context.Context) (*Settings, error) { return settings, nil },
	}, dissolver, nil)

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.OnHold {
		t.Fatal("report.OnHold = false, want true")
	}
	if report.NoticesRedelivered != 2 {
		t.Fatalf("notices redelivered = %d, want 2 even on hold", report.NoticesRedelivered)
	}
}

func TestJobRunContinuesWhenRedeliveryFails(t *testing.T) {
	t.Parallel()

	settings := scheduledSettings(t, "0 0 * * 2", "0 0 * * 6", "0 0 * * 6")
	initiated := false
	dissolver := &fakeDissolver{
		redeliverFn: func(ctx context.Context) (int, error) {
			if runID, ok := observability.RunIDFromContext(ctx); !ok || runID != "run-1" {
				t.Fatalf("run id = %q, want run-1", runID)
			}
			return 0, errors.New("redis unavailable")
		},
		initiateFn: func(ctx context.Context, settings *Settings) (*domain.Batch, error) {
			initiated = true
			return nil, nil
		},
	}

	core, logs := observer.New(zap.WarnLevel)
	job := newTestJob(t, &fakeSettingsProvider{
		settingsFn: func(ctx context.Context) (*Settings, error) { return settings, nil },
	}, dissolver, zap.New(core))

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want redelivery failure to be tolerated", err)
	}
	if !initiated {
		t.Fatal("Initiate() did not run after redelivery failure")
	}
	if report.NoticesRedelivered != 0 {
		t.Fatalf("notices redelivered = %d, want 0", report.NoticesRedelivered)
	}
	if logs.FilterMessage("notice redelivery skipped").Len() != 1 {
		t.Fatalf("expected one redelivery warning, got %v", logs.All())
	}
	if logs.FilterMessage("involuntary dissolution run failed").Len() != 0 {
		t.Fatal("run must not be reported as failed")
	}
}

func TestJobRunAbortsOnFailure(t *testing.T) {
	t.Parallel()

	settings := scheduledSettings(t, "* * * * *", "* * * * *", "* * * * *")
	stage3Ran := false
	dissolver := &fakeDissolver{
		advanceFn: func(ctx context.Context, stage domain.Stage, settings *Settings) (AdvanceResult, error) {
			if stage == domain.Stage3 {
				stage3Ran = true
			}
			return AdvanceResult{}, domain.ErrPersistence
		},
	}

	core, logs := observer.New(zap.ErrorLevel)
	job := newTestJob(t, &fakeSettingsProvider{
		settingsFn: func(ctx context.Context) (*Settings, error) { return settings, nil },
	}, dissolver, zap.New(core))

	_, err := job.Run(context.Background())
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("Run() error = %v, want ErrPersistence", err)
	}
	if stage3Ran {
		t.Fatal("stage 3 ran after stage 2 failed")
	}

	entries := logs.FilterMessage("involuntary dissolution run failed").All()
	if len(entries) != 1 {
		t.Fatalf("failure logs = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["runId"]; got != "run-1" {
		t.Fatalf("runId field = %v, want run-1", got)
	}
}

func TestJobRunSettingsFailure(t *testing.T) {
	t.Parallel()

	job := newTestJob(t, &fakeSettingsProvider{
		settingsFn: func(ctx context.Context) (*Settings, error) {
			return nil, domain.ErrConfiguration
		},
	}, &fakeDissolver{}, nil)

	if _, err := job.Run(context.Background()); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("Run() error = %v, want ErrConfiguration", err)
	}
}
