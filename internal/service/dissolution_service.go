package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/dissolution-engine/internal/domain"
	"github.com/kursadbilgin/dissolution-engine/internal/observability"
	"github.com/kursadbilgin/dissolution-engine/internal/queue"
	"github.com/kursadbilgin/dissolution-engine/internal/repository"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Outcomes recorded for each row a transition stage looks at.
const (
	OutcomeAdvanced  = "advanced"
	OutcomeWithdrawn = "withdrawn"
	OutcomeSkipped   = "skipped"
)

// AdvanceResult summarizes one transition stage run.
type AdvanceResult struct {
	Stage     domain.Stage
	Matched   int
	Advanced  int
	Withdrawn int
	Skipped   int
}

// DissolutionService creates involuntary dissolution batches and moves their
// rows through the warning stages.
type DissolutionService struct {
	businesses  repository.BusinessRepository
	batches     repository.BatchRepository
	processings repository.BatchProcessingRepository
	publisher   queue.Publisher
	outbox      queue.Outbox
	metrics     *observability.Metrics
	logger      *zap.Logger
	location    *time.Location
	now         func() time.Time
	newID       func() string
}

func NewDissolutionService(
	businesses repository.BusinessRepository,
	batches repository.BatchRepository,
	processings repository.BatchProcessingRepository,
	publisher queue.Publisher,
	outbox queue.Outbox,
	metrics *observability.Metrics,
	location *time.Location,
	logger *zap.Logger,
) (*DissolutionService, error) {
	if businesses == nil {
		return nil, fmt.Errorf("business repository is required")
	}
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if processings == nil {
		return nil, fmt.Errorf("batch processing repository is required")
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DissolutionService{
		businesses:  businesses,
		batches:     batches,
		processings: processings,
		publisher:   publisher,
		outbox:      outbox,
		metrics:     metrics,
		logger:      logger,
		location:    location,
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

// Initiate creates today's batch. It returns a nil batch without error when
// the allowance is zero, a batch already started today, or nobody is eligible.
func (s *DissolutionService) Initiate(ctx context.Context, settings *Settings) (*domain.Batch, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: settings are required", domain.ErrConfiguration)
	}

	logger := observability.LoggerFromContext(ctx, s.logger)
	now := s.currentTime()

	if settings.DissolutionsAllowed == 0 {
		logger.Info("no dissolutions allowed, skipping batch creation")
		return nil, nil
	}

	dayStart := startOfDay(now)
	exists, err := s.batches.ExistsStartedBetween(ctx, domain.BatchTypeInvoluntaryDissolution, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to check today's batch: %v", domain.ErrPersistence, err)
	}
	if exists {
		logger.Info("involuntary dissolution batch already created today, skipping")
		return nil, nil
	}

	eligible, err := s.businesses.FindEligible(ctx, now, settings.DissolutionsAllowed)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find eligible businesses: %v", domain.ErrPersistence, err)
	}
	if len(eligible) == 0 {
		logger.Info("no businesses eligible for involuntary dissolution")
		return nil, nil
	}
	if len(eligible) > settings.DissolutionsAllowed {
		eligible = eligible[:settings.DissolutionsAllowed]
	}

	batch := &domain.Batch{
		ID:        s.newID(),
		BatchType: domain.BatchTypeInvoluntaryDissolution,
		Status:    domain.BatchStatusProcessing,
		Size:      len(eligible),
		MaxSize:   settings.DissolutionsAllowed,
		StartDate: now,
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	triggerDate := now.Add(settings.Stage1Delay)
	processings := lo.Map(eligible, func(b domain.Business, _ int) *domain.BatchProcessing {
		trigger := triggerDate
		return &domain.BatchProcessing{
			ID:                 s.newID(),
			BatchID:            batch.ID,
			BusinessID:         b.ID,
			BusinessIdentifier: b.Identifier,
			Step:               domain.StepWarningLevel1,
			Status:             domain.BatchProcessingStatusProcessing,
			CreatedDate:        now,
			TriggerDate:        &trigger,
			LastModified:       now,
			MetaData: map[string]any{
				"overdueARs":     true,
				"lastFilingDate": b.LastFilingDate().UTC().Format(time.DateOnly),
				"lastAction":     "initiated",
				"lastActionDate": now.UTC().Format(time.RFC3339),
			},
		}
	})

	if err := s.batches.CreateWithProcessings(ctx, batch, processings); err != nil {
		return nil, fmt.Errorf("%w: failed to create batch: %v", domain.ErrPersistence, err)
	}

	s.metrics.IncBatchCreated(batch.Size)
	logger.Info("involuntary dissolution batch created",
		zap.String("batchId", batch.ID),
		zap.Int("size", batch.Size),
		zap.Int("allowed", settings.DissolutionsAllowed),
	)

	for _, p := range processings {
		s.publishNotice(ctx, logger, *p, now)
	}

	return batch, nil
}

// Advance moves every row due for stage either one step forward or, when the
// business is back in good standing, out of the process.
func (s *DissolutionService) Advance(ctx context.Context, stage domain.Stage, settings *Settings) (AdvanceResult, error) {
	result := AdvanceResult{Stage: stage}
	if settings == nil {
		return result, fmt.Errorf("%w: settings are required", domain.ErrConfiguration)
	}

	rule, err := domain.RuleForStage(stage)
	if err != nil {
		return result, err
	}

	logger := observability.LoggerFromContext(ctx, s.logger).With(zap.String("stage", stage.String()))
	now := s.currentTime()

	rows, err := s.processings.FindMatching(ctx, rule.Criteria(now, settings.DwellFor(stage)))
	if err != nil {
		return result, fmt.Errorf("%w: failed to find rows for %s: %v", domain.ErrPersistence, stage, err)
	}
	result.Matched = len(rows)

	for i := range rows {
		row := rows[i]

		business, err := s.businesses.GetByIdentifier(ctx, row.BusinessIdentifier)
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("business not found, leaving batch processing untouched",
				zap.String("batchProcessingId", row.ID),
				zap.String("identifier", row.BusinessIdentifier),
			)
			result.Skipped++
			s.metrics.IncStageTransition(stage.String(), OutcomeSkipped)
			continue
		}
		if err != nil {
			return result, fmt.Errorf("%w: failed to load business %s: %v", domain.ErrPersistence, row.BusinessIdentifier, err)
		}

		outcome := OutcomeAdvanced
		if business.IsOverdue(now) {
			err = row.AdvanceTo(rule.To, rule.ToStatus, settings.nextTrigger(stage, now), now)
		} else {
			outcome = OutcomeWithdrawn
			err = row.Withdraw(now)
		}
		if err != nil {
			return result, err
		}

		if err := s.processings.Update(ctx, &row); err != nil {
			return result, fmt.Errorf("%w: failed to update batch processing %s: %v", domain.ErrPersistence, row.ID, err)
		}

		s.metrics.IncStageTransition(stage.String(), outcome)
		logger.Info("batch processing updated",
			zap.String("batchProcessingId", row.ID),
			zap.String("identifier", row.BusinessIdentifier),
			zap.String("outcome", outcome),
			zap.String("step", row.Step.String()),
			zap.String("status", row.Status.String()),
		)

		if outcome == OutcomeWithdrawn {
			result.Withdrawn++
			continue
		}
		result.Advanced++
		s.publishNotice(ctx, logger, row, now)
	}

	logger.Info("stage finished",
		zap.Int("matched", result.Matched),
		zap.Int("advanced", result.Advanced),
		zap.Int("withdrawn", result.Withdrawn),
		zap.Int("skipped", result.Skipped),
	)

	return result, nil
}

// CompleteFinishedBatches closes processing batches whose rows are all terminal.
func (s *DissolutionService) CompleteFinishedBatches(ctx context.Context) (int, error) {
	logger := observability.LoggerFromContext(ctx, s.logger)

	finished, err := s.batches.FindFinished(ctx, domain.BatchTypeInvoluntaryDissolution)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to find finished batches: %v", domain.ErrPersistence, err)
	}

	now := s.currentTime()
	completed := 0
	for _, batch := range finished {
		endDate := now
		if err := s.batches.UpdateStatus(ctx, batch.ID, domain.BatchStatusCompleted, &endDate); err != nil {
			return completed, fmt.Errorf("%w: failed to complete batch %s: %v", domain.ErrPersistence, batch.ID, err)
		}
		completed++
		s.metrics.IncBatchCompleted()
		logger.Info("batch completed", zap.String("batchId", batch.ID))
	}

	return completed, nil
}

// RedeliverNotices publishes notices parked by earlier runs. A notice leaves
// the outbox only once the broker confirms it.
func (s *DissolutionService) RedeliverNotices(ctx context.Context) (int, error) {
	if s.publisher == nil || s.outbox == nil {
		return 0, nil
	}

	logger := observability.LoggerFromContext(ctx, s.logger)

	pending, err := s.outbox.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read parked notices: %w", err)
	}

	delivered := 0
	for _, msg := range pending {
		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.metrics.IncNoticePublishFailed()
			logger.Warn("parked notice still undeliverable",
				zap.String("notice", msg.Key()),
				zap.Error(err),
			)
			continue
		}
		if err := s.outbox.Remove(ctx, msg); err != nil {
			logger.Warn("redelivered notice could not be removed from outbox",
				zap.String("notice", msg.Key()),
				zap.Error(err),
			)
		}
		delivered++
		s.metrics.IncNoticeRedelivered()
	}

	if len(pending) > 0 {
		logger.Info("parked notices redelivered",
			zap.Int("pending", len(pending)),
			zap.Int("delivered", delivered),
		)
	}

	return delivered, nil
}

// publishNotice never fails the caller: the row is already persisted, so an
// unpublished notice is parked for the next run.
func (s *DissolutionService) publishNotice(ctx context.Context, logger *zap.Logger, p domain.BatchProcessing, now time.Time) {
	if s.publisher == nil {
		return
	}

	runID, _ := observability.RunIDFromContext(ctx)
	msg := queue.NewNoticeMessage(p, runID, now)
	err := s.publisher.Publish(ctx, msg)
	if err == nil {
		return
	}

	s.metrics.IncNoticePublishFailed()
	fields := []zap.Field{
		zap.String("batchProcessingId", p.ID),
		zap.String("identifier", p.BusinessIdentifier),
		zap.String("step", p.Step.String()),
		zap.Error(err),
	}

	if s.outbox == nil {
		logger.Error("failed to publish dissolution notice", fields...)
		return
	}
	if parkErr := s.outbox.Park(ctx, msg); parkErr != nil {
		logger.Error("failed to publish dissolution notice", append(fields, zap.NamedError("parkError", parkErr))...)
		return
	}
	logger.Warn("dissolution notice parked for redelivery", fields...)
}

func (s *DissolutionService) currentTime() time.Time {
	return s.now().In(s.location)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
