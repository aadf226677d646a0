package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/ecoestudiante-calc/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FactorCatalogRepositoryImpl implements FactorCatalogRepository
type FactorCatalogRepositoryImpl struct {
	*BaseRepository[models.FactorVersion, models.FactorVersionFilter]
}

// NewFactorCatalogRepository creates a new repository for factor versions and emission factors
func NewFactorCatalogRepository(db *gorm.DB) FactorCatalogRepository {
	return &FactorCatalogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.FactorVersion, models.FactorVersionFilter](db),
	}
}

type resolvedFactorRow struct {
	FactorID    uint
	VersionID   uint
	Category    string
	Subcategory *string
	Country     *string
	Value       float64
	Hash        string
	SourceID    string
	ValidFrom   time.Time
	ValidTo     *time.Time
}

// Resolve selects the single factor applicable to the query.
// Exact country rows win over country-less rows; among equals the latest valid_from wins.
func (r *FactorCatalogRepositoryImpl) Resolve(ctx context.Context, q models.FactorQuery) (*models.ResolvedFactor, error) {
	db := r.getDB(ctx)

	query := db.Table("emission_factor AS ef").
		Select(`ef.id AS factor_id, ef.version_id, ef.category, ef.subcategory, ef.country, ef.value,
			fv.hash, fv.source_id, fv.valid_from, fv.valid_to`).
		Joins("JOIN factor_version fv ON fv.id = ef.version_id").
		Where("ef.category = ?", q.Category).
		Where("fv.valid_from <= ?", q.ReferenceDate).
		Where("(fv.valid_to IS NULL OR fv.valid_to >= ?)", q.ReferenceDate).
		Where("(ef.country = ? OR ef.country IS NULL)", q.Country)

	if q.Subcategory != nil {
		query = query.Where("ef.subcategory = ?", *q.Subcategory)
	}

	query = query.Order(clause.OrderBy{Expression: clause.Expr{
		SQL:                "CASE WHEN ef.country = ? THEN 0 ELSE 1 END, fv.valid_from DESC, fv.id DESC",
		Vars:               []any{q.Country},
		WithoutParentheses: true,
	}}).Limit(1)

	var rows []resolvedFactorRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve emission factor: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	return &models.ResolvedFactor{
		FactorID:    row.FactorID,
		VersionID:   row.VersionID,
		Category:    row.Category,
		Subcategory: row.Subcategory,
		Country:     row.Country,
		Value:       row.Value,
		Hash:        row.Hash,
		SourceID:    row.SourceID,
		ValidFrom:   row.ValidFrom,
		ValidTo:     row.ValidTo,
	}, nil
}

// ByHash retrieves a factor version by its content hash.
func (r *FactorCatalogRepositoryImpl) ByHash(ctx context.Context, hash string) (*models.FactorVersion, error) {
	db := r.getDB(ctx)
	return r.first(db.Preload("Factors").Where("hash = ?", hash))
}

// SaveVersion inserts a version and its factors in one write.
func (r *FactorCatalogRepositoryImpl) SaveVersion(ctx context.Context, version *models.FactorVersion) error {
	return r.Save(ctx, version)
}

// applyFilter applies filter conditions to the GORM query
func (r *FactorCatalogRepositoryImpl) applyFilter(db *gorm.DB, filter models.FactorVersionFilter) *gorm.DB {
	if filter.Hash != nil {
		db = db.Where("hash = ?", *filter.Hash)
	}
	if filter.SourceID != nil {
		db = db.Where("source_id = ?", *filter.SourceID)
	}
	return db
}

// ByFilter retrieves factor versions based on filter criteria.
func (r *FactorCatalogRepositoryImpl) ByFilter(ctx context.Context, filter models.FactorVersionFilter, orderBy string, limit, offset int) ([]*models.FactorVersion, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.FactorVersion{}), filter)

	if orderBy == "" {
		orderBy = "valid_from DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.FactorVersion
	if err := query.Preload("Factors").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of factor versions matching the filter.
func (r *FactorCatalogRepositoryImpl) Count(ctx context.Context, filter models.FactorVersionFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.FactorVersion{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any factor version matching the filter exists.
func (r *FactorCatalogRepositoryImpl) Exists(ctx context.Context, filter models.FactorVersionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
