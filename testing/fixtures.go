package testing

import (
	"fmt"
	"time"

	"github.com/amirphl/ecoestudiante-calc/models"
	"github.com/amirphl/ecoestudiante-calc/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Factor builds an emission factor row. Empty subcategory or country means NULL.
func Factor(category, subcategory, country string, value float64) models.EmissionFactor {
	ef := models.EmissionFactor{Category: category, Value: value}
	if subcategory != "" {
		ef.Subcategory = utils.ToPtr(subcategory)
	}
	if country != "" {
		ef.Country = utils.ToPtr(country)
	}
	return ef
}

// CreateFactorVersion inserts a version with its factors. validTo may be nil for open-ended windows.
func (tf *TestFixtures) CreateFactorVersion(sourceID string, validFrom time.Time, validTo *time.Time, factors ...models.EmissionFactor) (*models.FactorVersion, error) {
	version := &models.FactorVersion{
		SourceID:  sourceID,
		ValidFrom: validFrom.UTC(),
		ValidTo:   utils.TimeToUTCPtr(validTo),
		Hash:      fmt.Sprintf("%s-%s", sourceID, uuid.NewString()[:8]),
		CreatedAt: utils.UTCNow(),
		Factors:   factors,
	}
	if err := tf.DB.DB.Create(version).Error; err != nil {
		return nil, fmt.Errorf("failed to create factor version %s: %w", sourceID, err)
	}
	return version, nil
}

// CreateCalculation inserts a calculation row directly, bypassing the engine.
func (tf *TestFixtures) CreateCalculation(userID uuid.UUID, category, key string, result float64, createdAt time.Time) (*models.Calculation, error) {
	calc := &models.Calculation{
		ID:             uuid.New(),
		UserID:         userID,
		Category:       category,
		IdempotencyKey: key,
		InputJSON:      []byte(fmt.Sprintf(`{"idempotencyKey":%q}`, key)),
		ResultKgCO2e:   result,
		FactorHash:     "fixture-hash",
		CreatedAt:      createdAt.UTC(),
	}
	if err := tf.DB.DB.Create(calc).Error; err != nil {
		return nil, fmt.Errorf("failed to create calculation %s: %w", key, err)
	}
	return calc, nil
}
