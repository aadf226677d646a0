package migrations

import (
	"fmt"

	"github.com/amirphl/ecoestudiante-calc/models"
	"gorm.io/gorm"
)

// AutoMigrate creates the schema from the gorm models. It is used for the
// embedded SQLite store, where the Postgres SQL files do not apply.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.FactorVersion{},
		&models.EmissionFactor{},
		&models.Calculation{},
		&models.CalculationAudit{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate schema: %w", err)
	}
	return nil
}
