package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/dissolution-engine/internal/domain"
	"github.com/kursadbilgin/dissolution-engine/internal/observability"
	"go.uber.org/zap"
)

// Dissolver is the batch engine the job drives.
type Dissolver interface {
	Initiate(ctx context.Context, settings *Settings) (*domain.Batch, error)
	Advance(ctx context.Context, stage domain.Stage, settings *Settings) (AdvanceResult, error)
	CompleteFinishedBatches(ctx context.Context) (int, error)
	RedeliverNotices(ctx context.Context) (int, error)
}

var _ Dissolver = (*DissolutionService)(nil)

// RunReport describes what one job run did.
type RunReport struct {
	RunID              string
	StartedAt          time.Time
	OnHold             bool
	Stage1Due          bool
	Stage2Due          bool
	Stage3Due          bool
	Batch              *domain.Batch
	Stage2             *AdvanceResult
	Stage3             *AdvanceResult
	BatchesFinished    int
	NoticesRedelivered int
}

// Job is a single invocation of the involuntary dissolution process.
type Job struct {
	settings  SettingsProvider
	dissolver Dissolver
	metrics   *observability.Metrics
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
	newRunID  func() string
}

func NewJob(
	settings SettingsProvider,
	dissolver Dissolver,
	metrics *observability.Metrics,
	location *time.Location,
	logger *zap.Logger,
) (*Job, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings provider is required")
	}
	if dissolver == nil {
		return nil, fmt.Errorf("dissolver is required")
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		settings:  settings,
		dissolver: dissolver,
		metrics:   metrics,
		logger:    logger,
		location:  location,
		now:       time.Now,
		newRunID:  uuid.NewString,
	}, nil
}

// Run loads settings once, then executes each stage whose schedule matches
// today in order: batch creation, stage 2, stage 3.
func (j *Job) Run(ctx context.Context) (report *RunReport, err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	startedAt := j.now().In(j.location)
	report = &RunReport{RunID: j.newRunID(), StartedAt: startedAt}
	ctx, logger := observability.StartRun(ctx, j.logger, report.RunID)

	defer func() {
		finishedAt := j.now()
		j.metrics.ObserveRun(finishedAt.Sub(startedAt), finishedAt, err)
		if err != nil {
			logger.Error("involuntary dissolution run failed", zap.Error(err))
		}
	}()

	logger.Info("involuntary dissolution run started", zap.Time("asOf", startedAt))

	settings, err := j.settings.Settings(ctx)
	if err != nil {
		return report, err
	}

	// Parked notices describe transitions that already happened, so they go
	// out even while new work is on hold.
	redelivered, redeliverErr := j.dissolver.RedeliverNotices(ctx)
	if redeliverErr != nil {
		logger.Warn("notice redelivery skipped", zap.Error(redeliverErr))
	}
	report.NoticesRedelivered = redelivered

	if settings.OnHold {
		report.OnHold = true
		logger.Info("involuntary dissolution is on hold, nothing to do")
		return report, nil
	}

	report.Stage1Due, report.Stage2Due, report.Stage3Due = settings.Schedules.Due(startedAt)
	logger.Info("stage schedules evaluated",
		zap.Bool("stage1", report.Stage1Due),
		zap.Bool("stage2", report.Stage2Due),
		zap.Bool("stage3", report.Stage3Due),
	)

	if report.Stage1Due {
		j.metrics.IncStageRun(domain.Stage1.String())
		if report.Batch, err = j.dissolver.Initiate(ctx, settings); err != nil {
			return report, fmt.Errorf("%s: %w", domain.Stage1, err)
		}
	}

	for _, stage := range []domain.Stage{domain.Stage2, domain.Stage3} {
		if !settings.Schedules.IsDue(stage, startedAt) {
			continue
		}

		j.metrics.IncStageRun(stage.String())
		result, err := j.dissolver.Advance(ctx, stage, settings)
		if err != nil {
			return report, fmt.Errorf("%s: %w", stage, err)
		}
		if stage == domain.Stage2 {
			report.Stage2 = &result
		} else {
			report.Stage3 = &result
		}
	}

	if report.Stage2Due || report.Stage3Due {
		if report.BatchesFinished, err = j.dissolver.CompleteFinishedBatches(ctx); err != nil {
			return report, err
		}
	}

	logger.Info("involuntary dissolution run finished",
		zap.Bool("batchCreated", report.Batch != nil),
		zap.Int("batchesFinished", report.BatchesFinished),
		zap.Int("noticesRedelivered", report.NoticesRedelivered),
	)

	return report, nil
}
