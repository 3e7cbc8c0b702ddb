package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/dissolution-engine/internal/repository"
	"gorm.io/gorm"
)

func createBatchProcessingTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_batch_processing",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BatchProcessingModel{}); err != nil {
				return err
			}
			statements := []string{
				`CREATE INDEX IF NOT EXISTS idx_batch_processing_batch_id ON batch_processing (batch_id)`,
				`CREATE INDEX IF NOT EXISTS idx_batch_processing_business_id ON batch_processing (business_id)`,
				`CREATE INDEX IF NOT EXISTS idx_batch_processing_stage ON batch_processing (status, step, created_date)`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BatchProcessingModel{})
		},
	}
}
