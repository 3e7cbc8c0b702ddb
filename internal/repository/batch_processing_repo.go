package repository

import (
	"context"

	"github.com/kursadbilgin/dissolution-engine/internal/domain"
	"gorm.io/gorm"
)

type BatchProcessingRepository interface {
	FindMatching(ctx context.Context, criteria domain.ProcessingCriteria) ([]domain.BatchProcessing, error)
	Update(ctx context.Context, p *domain.BatchProcessing) error
}

type GormBatchProcessingRepo struct {
	db *gorm.DB
}

func NewGormBatchProcessingRepo(db *gorm.DB) *GormBatchProcessingRepo {
	return &GormBatchProcessingRepo{db: db}
}

// FindMatching is the SQL rendition of domain.ProcessingCriteria.Matches.
func (r *GormBatchProcessingRepo) FindMatching(ctx context.Context, criteria domain.ProcessingCriteria) ([]domain.BatchProcessing, error) {
	query := r.db.WithContext(ctx).
		Model(&BatchProcessingModel{}).
		Select("batch_processing.*").
		Joins("JOIN batches ON batches.id = batch_processing.batch_id").
		Where("batches.batch_type = ? AND batches.status = ?", criteria.BatchType, criteria.BatchStatus).
		Where("batch_processing.status = ? AND batch_processing.step = ?", criteria.Status, criteria.Step)

	if criteria.CreatedBefore != nil {
		query = query.Where("batch_processing.created_date <= ?", *criteria.CreatedBefore)
	}
	if criteria.TriggeredBefore != nil {
		query = query.Where("batch_processing.trigger_date IS NOT NULL AND batch_processing.trigger_date <= ?", *criteria.TriggeredBefore)
	}

	var models []BatchProcessingModel
	if err := query.Order("batch_processing.business_identifier ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return batchProcessingModelsToDomain(models)
}

func (r *GormBatchProcessingRepo) Update(ctx context.Context, p *domain.BatchProcessing) error {
	model, err := batchProcessingModelFromDomain(p)
	if err != nil {
		return err
	}
	if model == nil {
		return domain.ErrValidation
	}

	result := r.db.WithContext(ctx).
		Model(&BatchProcessingModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"step":          model.Step,
			"status":        model.Status,
			"trigger_date":  model.TriggerDate,
			"last_modified": model.LastModified,
			"meta_data":     model.MetaData,
			"notes":         model.Notes,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func batchProcessingModelsToDomain(models []BatchProcessingModel) ([]domain.BatchProcessing, error) {
	processings := make([]domain.BatchProcessing, 0, len(models))
	for i := range models {
		p, err := batchProcessingModelToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		processings = append(processings, *p)
	}
	return processings, nil
}
