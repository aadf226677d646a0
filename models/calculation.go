package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Calculation is the durable record of one computed result.
// (user_id, category, idempotency_key) is unique at the storage level; the key
// column mirrors the idempotencyKey field stored inside input_json.
// Table: calculation
type Calculation struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:ux_calculation_idempotency,priority:1;index:idx_calculation_user_created,priority:1" json:"user_id"`
	Category       string          `gorm:"size:64;not null;uniqueIndex:ux_calculation_idempotency,priority:2" json:"category"`
	IdempotencyKey string          `gorm:"size:255;not null;uniqueIndex:ux_calculation_idempotency,priority:3" json:"idempotency_key"`
	InputJSON      json.RawMessage `gorm:"column:input_json;type:jsonb;not null" json:"input_json"`
	ResultKgCO2e   float64         `gorm:"column:result_kg_co2e;type:numeric(18,6);not null" json:"result_kg_co2e"`
	FactorHash     string          `gorm:"size:128;not null" json:"factor_hash"`
	CreatedAt      time.Time       `gorm:"not null;index:idx_calculation_user_created,priority:2,sort:desc" json:"created_at"`
}

func (Calculation) TableName() string {
	return "calculation"
}

// IdempotencyScope identifies a logical compute request.
type IdempotencyScope struct {
	UserID         uuid.UUID
	Category       string
	IdempotencyKey string
}

// CalculationFilter represents filter criteria for calculation queries
type CalculationFilter struct {
	UserID        *uuid.UUID
	Category      *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
