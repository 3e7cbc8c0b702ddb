package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/dissolution-engine/internal/domain"
	"gorm.io/gorm"
)

type ConfigurationRepository interface {
	FindByName(ctx context.Context, name string) (*domain.Configuration, error)
}

type GormConfigurationRepo struct {
	db *gorm.DB
}

func NewGormConfigurationRepo(db *gorm.DB) *GormConfigurationRepo {
	return &GormConfigurationRepo{db: db}
}

func (r *GormConfigurationRepo) FindByName(ctx context.Context, name string) (*domain.Configuration, error) {
	var model ConfigurationModel
	err := r.db.WithContext(ctx).First(&model, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.Configuration{Name: model.Name, Val: model.Val}, nil
}
