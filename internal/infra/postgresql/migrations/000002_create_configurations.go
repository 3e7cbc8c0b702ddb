package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/dissolution-engine/internal/domain"
	"github.com/kursadbilgin/dissolution-engine/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// defaultConfigurations keeps the job inert until an operator raises the allowance.
var defaultConfigurations = []repository.ConfigurationModel{
	{Name: domain.ConfigNumDissolutionsAllowed, Val: "0"},
	{Name: domain.ConfigDissolutionsOnHold, Val: "False"},
	{Name: domain.ConfigStage1Schedule, Val: "0 0 * * 1-5"},
	{Name: domain.ConfigStage2Schedule, Val: "0 0 * * 1-5"},
	{Name: domain.ConfigStage3Schedule, Val: "0 0 * * 1-5"},
	{Name: domain.ConfigStage1Delay, Val: "42"},
	{Name: domain.ConfigStage2Delay, Val: "30"},
}

func createConfigurationsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_configurations",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ConfigurationModel{}); err != nil {
				return err
			}
			seed := make([]repository.ConfigurationModel, len(defaultConfigurations))
			copy(seed, defaultConfigurations)
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ConfigurationModel{})
		},
	}
}
