package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CalculationAudit is an immutable snapshot of the factor applied to a calculation.
// The latest row by created_at is authoritative when several exist.
// Table: calculation_audit
type CalculationAudit struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CalculationID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_calculation_audit_calc,priority:1" json:"calculation_id"`
	FactorSnapshot json.RawMessage `gorm:"type:jsonb;not null" json:"factor_snapshot"`
	CreatedAt      time.Time       `gorm:"not null;index:idx_calculation_audit_calc,priority:2,sort:desc" json:"created_at"`
}

func (CalculationAudit) TableName() string {
	return "calculation_audit"
}

// FactorSnapshot is the JSON document stored in calculation_audit.factor_snapshot.
type FactorSnapshot struct {
	Category    string  `json:"category"`
	Subcategory *string `json:"subcategory,omitempty"`
	Country     *string `json:"country,omitempty"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	Hash        string  `json:"hash"`
}

// NewFactorSnapshot captures the resolved factor as it was at computation time.
func NewFactorSnapshot(f *ResolvedFactor) FactorSnapshot {
	return FactorSnapshot{
		Category:    f.Category,
		Subcategory: f.Subcategory,
		Country:     f.Country,
		Value:       f.Value,
		Unit:        f.Unit(),
		Hash:        f.Hash,
	}
}
