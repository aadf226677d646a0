// Package models contains domain entities for the emission calculation service
package models

import "time"

// Emission categories
const (
	CategoryElectricity = "electricity"
	CategoryTransport   = "transport"
)

// Factor units implied by category
const (
	UnitKgCO2ePerKWh = "kgCO2e/kWh"
	UnitKgCO2ePerKm  = "kgCO2e/km"
)

// UnitForCategory returns the unit a factor value is expressed in for the given category.
func UnitForCategory(category string) string {
	switch category {
	case CategoryElectricity:
		return UnitKgCO2ePerKWh
	case CategoryTransport:
		return UnitKgCO2ePerKm
	default:
		return ""
	}
}

// FactorVersion is a published set of factor values with a validity window.
// Rows are append-only: the hash is computed once at publication and never changes.
// Table: factor_version
type FactorVersion struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	SourceID  string     `gorm:"size:128;not null" json:"source_id"`
	ValidFrom time.Time  `gorm:"type:date;not null;index:idx_factor_version_valid_from" json:"valid_from"`
	ValidTo   *time.Time `gorm:"type:date" json:"valid_to,omitempty"`
	Hash      string     `gorm:"size:128;not null;uniqueIndex:ux_factor_version_hash" json:"hash"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`

	Factors []EmissionFactor `gorm:"foreignKey:VersionID;references:ID" json:"factors,omitempty"`
}

func (FactorVersion) TableName() string {
	return "factor_version"
}

// EmissionFactor is one coefficient for a (category, subcategory, country) tuple within a version.
// A nil Country is the fallback row for any country.
// Table: emission_factor
type EmissionFactor struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	VersionID   uint    `gorm:"not null;uniqueIndex:ux_emission_factor_scope,priority:1" json:"version_id"`
	Category    string  `gorm:"size:64;not null;uniqueIndex:ux_emission_factor_scope,priority:2;index:idx_emission_factor_lookup,priority:1" json:"category"`
	Subcategory *string `gorm:"size:128;uniqueIndex:ux_emission_factor_scope,priority:3;index:idx_emission_factor_lookup,priority:2" json:"subcategory,omitempty"`
	Country     *string `gorm:"size:8;uniqueIndex:ux_emission_factor_scope,priority:4" json:"country,omitempty"`
	Value       float64 `gorm:"type:numeric(14,6);not null" json:"value"`
}

func (EmissionFactor) TableName() string {
	return "emission_factor"
}

// FactorQuery is the resolution tuple handed to the factor catalog.
type FactorQuery struct {
	Category      string
	Subcategory   *string
	Country       string
	ReferenceDate time.Time
}

// ResolvedFactor is the single factor selected for a query together with its version data.
type ResolvedFactor struct {
	FactorID    uint       `json:"factor_id"`
	VersionID   uint       `json:"version_id"`
	Category    string     `json:"category"`
	Subcategory *string    `json:"subcategory,omitempty"`
	Country     *string    `json:"country,omitempty"`
	Value       float64    `json:"value"`
	Hash        string     `json:"hash"`
	SourceID    string     `json:"source_id"`
	ValidFrom   time.Time  `json:"valid_from"`
	ValidTo     *time.Time `json:"valid_to,omitempty"`
}

// Unit returns the unit of the resolved factor value.
func (f *ResolvedFactor) Unit() string {
	return UnitForCategory(f.Category)
}

type FactorVersionFilter struct {
	Hash     *string
	SourceID *string
}
