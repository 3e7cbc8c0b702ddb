package repository

import (
	"context"
	"time"

	"github.com/kursadbilgin/dissolution-engine/internal/domain"
	"gorm.io/gorm"
)

type BatchRepository interface {
	CreateWithProcessings(ctx context.Context, b *domain.Batch, processings []*domain.BatchProcessing) error
	ExistsStartedBetween(ctx context.Context, batchType domain.BatchType, from, to time.Time) (bool, error)
	FindFinished(ctx context.Context, batchType domain.BatchType) ([]domain.Batch, error)
	UpdateStatus(ctx context.Context, id string, status domain.BatchStatus, endDate *time.Time) error
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

// CreateWithProcessings writes the batch and all of its rows in one transaction.
func (r *GormBatchRepo) CreateWithProcessings(ctx context.Context, b *domain.Batch, processings []*domain.BatchProcessing) error {
	model := batchModelFromDomain(b)
	if model == nil {
		return domain.ErrValidation
	}

	rows := make([]BatchProcessingModel, 0, len(processings))
	for _, p := range processings {
		row, err := batchProcessingModelFromDomain(p)
		if err != nil {
			return err
		}
		if row != nil {
			rows = append(rows, *row)
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(&rows, 100).Error
	})
}

func (r *GormBatchRepo) ExistsStartedBetween(ctx context.Context, batchType domain.BatchType, from, to time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("batch_type = ? AND start_date >= ? AND start_date < ?", batchType, from, to).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindFinished returns processing batches that have no row left to act on.
func (r *GormBatchRepo) FindFinished(ctx context.Context, batchType domain.BatchType) ([]domain.Batch, error) {
	pending := r.db.
		Model(&BatchProcessingModel{}).
		Select("1").
		Where("batch_processing.batch_id = batches.id").
		Where("batch_processing.status NOT IN ?", []domain.BatchProcessingStatus{
			domain.BatchProcessingStatusWithdrawn,
			domain.BatchProcessingStatusCompleted,
		})

	var models []BatchModel
	err := r.db.WithContext(ctx).
		Where("batch_type = ? AND status = ?", batchType, domain.BatchStatusProcessing).
		Where("NOT EXISTS (?)", pending).
		Order("start_date ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return batchModelsToDomain(models)
}

func (r *GormBatchRepo) UpdateStatus(ctx context.Context, id string, status domain.BatchStatus, endDate *time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":   status,
			"end_date": endDate,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func batchModelsToDomain(models []BatchModel) ([]domain.Batch, error) {
	batches := make([]domain.Batch, 0, len(models))
	for i := range models {
		b, err := batchModelToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, nil
}
