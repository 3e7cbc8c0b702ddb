package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/dissolution-engine/internal/domain"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type BusinessRepository interface {
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Business, error)
	FindEligible(ctx context.Context, asOf time.Time, limit int) ([]domain.Business, error)
}

type GormBusinessRepo struct {
	db *gorm.DB
}

func NewGormBusinessRepo(db *gorm.DB) *GormBusinessRepo {
	return &GormBusinessRepo{db: db}
}

func (r *GormBusinessRepo) GetByIdentifier(ctx context.Context, identifier string) (*domain.Business, error) {
	var model BusinessModel
	err := r.db.WithContext(ctx).First(&model, "identifier = ?", identifier).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return businessModelToDomain(&model), nil
}

// FindEligible returns overdue businesses that are not already part of an
// active involuntary dissolution batch, ordered by identifier.
func (r *GormBusinessRepo) FindEligible(ctx context.Context, asOf time.Time, limit int) ([]domain.Business, error) {
	if limit <= 0 {
		return nil, nil
	}

	inActiveBatch := r.db.
		Model(&BatchProcessingModel{}).
		Select("1").
		Joins("JOIN batches ON batches.id = batch_processing.batch_id").
		Where("batch_processing.business_id = businesses.id").
		Where("batches.batch_type = ?", domain.BatchTypeInvoluntaryDissolution).
		Where("batch_processing.status IN ?", domain.ActiveProcessingStatuses)

	var models []BusinessModel
	err := r.db.WithContext(ctx).
		Where("state = ? AND admin_freeze = ?", domain.BusinessStateActive, false).
		Where("COALESCE(last_ar_date, founding_date) < ?", domain.OverdueCutoff(asOf)).
		Where("NOT EXISTS (?)", inActiveBatch).
		Order("identifier ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	return lo.Map(models, func(m BusinessModel, _ int) domain.Business {
		return *businessModelToDomain(&m)
	}), nil
}
