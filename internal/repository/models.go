package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kursadbilgin/dissolution-engine/internal/domain"
)

// BusinessModel is the persistence model for the businesses table.
type BusinessModel struct {
	ID           string               `gorm:"type:uuid;primaryKey"`
	Identifier   string               `gorm:"type:varchar(10);not null;uniqueIndex"`
	LegalName    string               `gorm:"type:varchar(1000)"`
	LegalType    string               `gorm:"type:varchar(10)"`
	State        domain.BusinessState `gorm:"type:varchar(20);not null"`
	FoundingDate time.Time            `gorm:"type:timestamptz;not null"`
	LastARDate   *time.Time           `gorm:"column:last_ar_date;type:timestamptz"`
	AdminFreeze  bool                 `gorm:"not null;default:false"`
}

func (BusinessModel) TableName() string {
	return "businesses"
}

// ConfigurationModel is the persistence model for the configurations table.
type ConfigurationModel struct {
	Name string `gorm:"type:varchar(100);primaryKey"`
	Val  string `gorm:"type:text;not null"`
}

func (ConfigurationModel) TableName() string {
	return "configurations"
}

// BatchModel is the persistence model for batches.
type BatchModel struct {
	ID        string             `gorm:"type:uuid;primaryKey"`
	BatchType domain.BatchType   `gorm:"type:varchar(50);not null"`
	Status    domain.BatchStatus `gorm:"type:varchar(20);not null"`
	Size      int                `gorm:"not null"`
	MaxSize   int                `gorm:"not null;default:0"`
	StartDate time.Time          `gorm:"type:timestamptz;not null"`
	EndDate   *time.Time         `gorm:"type:timestamptz"`
	Notes     *string            `gorm:"type:text"`
}

func (BatchModel) TableName() string {
	return "batches"
}

// BatchProcessingModel is the persistence model for batch_processing.
type BatchProcessingModel struct {
	ID                 string                       `gorm:"type:uuid;primaryKey"`
	BatchID            string                       `gorm:"type:uuid;not null"`
	BusinessID         string                       `gorm:"type:uuid;not null"`
	BusinessIdentifier string                       `gorm:"type:varchar(10);not null"`
	Step               domain.Step                  `gorm:"type:varchar(30);not null"`
	Status             domain.BatchProcessingStatus `gorm:"type:varchar(20);not null"`
	CreatedDate        time.Time                    `gorm:"type:timestamptz;not null"`
	TriggerDate        *time.Time                   `gorm:"type:timestamptz"`
	LastModified       time.Time                    `gorm:"type:timestamptz;not null"`
	MetaData           []byte                       `gorm:"column:meta_data;type:jsonb"`
	Notes              *string                      `gorm:"type:text"`
}

func (BatchProcessingModel) TableName() string {
	return "batch_processing"
}

func businessModelToDomain(m *BusinessModel) *domain.Business {
	if m == nil {
		return nil
	}

	return &domain.Business{
		ID:           m.ID,
		Identifier:   m.Identifier,
		LegalName:    m.LegalName,
		LegalType:    m.LegalType,
		State:        m.State,
		FoundingDate: m.FoundingDate,
		LastARDate:   m.LastARDate,
		AdminFreeze:  m.AdminFreeze,
	}
}

func batchModelFromDomain(b *domain.Batch) *BatchModel {
	if b == nil {
		return nil
	}

	return &BatchModel{
		ID:        b.ID,
		BatchType: b.BatchType,
		Status:    b.Status,
		Size:      b.Size,
		MaxSize:   b.MaxSize,
		StartDate: b.StartDate,
		EndDate:   b.EndDate,
		Notes:     b.Notes,
	}
}

func batchModelToDomain(m *BatchModel) (*domain.Batch, error) {
	if m == nil {
		return nil, nil
	}

	status, err := domain.ParseBatchStatusFromString(string(m.Status))
	if err != nil {
		return nil, fmt.Errorf("batch %s: %w", m.ID, err)
	}

	return &domain.Batch{
		ID:        m.ID,
		BatchType: m.BatchType,
		Status:    status,
		Size:      m.Size,
		MaxSize:   m.MaxSize,
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
		Notes:     m.Notes,
	}, nil
}

func batchProcessingModelFromDomain(p *domain.BatchProcessing) (*BatchProcessingModel, error) {
	if p == nil {
		return nil, nil
	}

	metaData, err := encodeMetaData(p.MetaData)
	if err != nil {
		return nil, err
	}

	return &BatchProcessingModel{
		ID:                 p.ID,
		BatchID:            p.BatchID,
		BusinessID:         p.BusinessID,
		BusinessIdentifier: p.BusinessIdentifier,
		Step:               p.Step,
		Status:             p.Status,
		CreatedDate:        p.CreatedDate,
		TriggerDate:        p.TriggerDate,
		LastModified:       p.LastModified,
		MetaData:           metaData,
		Notes:              p.Notes,
	}, nil
}

func batchProcessingModelToDomain(m *BatchProcessingModel) (*domain.BatchProcessing, error) {
	if m == nil {
		return nil, nil
	}

	metaData, err := decodeMetaData(m.MetaData)
	if err != nil {
		return nil, fmt.Errorf("batch processing %s: %w", m.ID, err)
	}
	step, err := domain.ParseStepFromString(string(m.Step))
	if err != nil {
		return nil, fmt.Errorf("batch processing %s: %w", m.ID, err)
	}
	status, err := domain.ParseBatchProcessingStatusFromString(string(m.Status))
	if err != nil {
		return nil, fmt.Errorf("batch processing %s: %w", m.ID, err)
	}

	return &domain.BatchProcessing{
		ID:                 m.ID,
		BatchID:            m.BatchID,
		BusinessID:         m.BusinessID,
		BusinessIdentifier: m.BusinessIdentifier,
		Step:               step,
		Status:             status,
		CreatedDate:        m.CreatedDate,
		TriggerDate:        m.TriggerDate,
		LastModified:       m.LastModified,
		MetaData:           metaData,
		Notes:              m.Notes,
	}, nil
}

func encodeMetaData(metaData map[string]any) ([]byte, error) {
	if len(metaData) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(metaData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode meta data: %w", err)
	}
	return raw, nil
}

func decodeMetaData(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var metaData map[string]any
	if err := json.Unmarshal(raw, &metaData); err != nil {
		return nil, fmt.Errorf("failed to decode meta data: %w", err)
	}
	return metaData, nil
}
