package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/dissolution-engine/internal/repository"
	"gorm.io/gorm"
)

func createBusinessesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_businesses",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BusinessModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_businesses_state_last_ar ON businesses (state, last_ar_date)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BusinessModel{})
		},
	}
}
