package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/ecoestudiante-calc/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CalculationRepositoryImpl implements CalculationRepository
type CalculationRepositoryImpl struct {
	*BaseRepository[models.Calculation, models.CalculationFilter]
}

// NewCalculationRepository creates a new calculation repository
func NewCalculationRepository(db *gorm.DB) CalculationRepository {
	return &CalculationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Calculation, models.CalculationFilter](db),
	}
}

// ByID retrieves a calculation by its id.
func (r *CalculationRepositoryImpl) ByID(ctx context.Context, id uuid.UUID) (*models.Calculation, error) {
	db := r.getDB(ctx)
	calc, err := r.first(db.Where("id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("failed to find calculation %s: %w", id, err)
	}
	return calc, nil
}

// ByIdempotencyKey retrieves the calculation recorded for a (user, category, key) scope.
func (r *CalculationRepositoryImpl) ByIdempotencyKey(ctx context.Context, scope models.IdempotencyScope) (*models.Calculation, error) {
	db := r.getDB(ctx)
	calc, err := r.first(db.
		Where("user_id = ?", scope.UserID).
		Where("category = ?", scope.Category).
		Where("idempotency_key = ?", scope.IdempotencyKey))
	if err != nil {
		return nil, fmt.Errorf("failed to find calculation by idempotency key: %w", err)
	}
	return calc, nil
}

// List returns calculations matching the clauses ordered by created_at DESC.
func (r *CalculationRepositoryImpl) List(ctx context.Context, filter QueryFilter, limit, offset int) ([]*models.Calculation, error) {
	db := r.getDB(ctx)
	query, err := applyClauses(db.Model(&models.Calculation{}), calculationColumns, filter)
	if err != nil {
		return nil, err
	}

	query = query.Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Calculation
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list calculations: %w", err)
	}
	return rows, nil
}

// CountMatching returns the number of calculations matching the clauses.
func (r *CalculationRepositoryImpl) CountMatching(ctx context.Context, filter QueryFilter) (int64, error) {
	db := r.getDB(ctx)
	query, err := applyClauses(db.Model(&models.Calculation{}), calculationColumns, filter)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count calculations: %w", err)
	}
	return count, nil
}

// filterClauses converts the struct filter into typed clauses.
func (r *CalculationRepositoryImpl) filterClauses(filter models.CalculationFilter) QueryFilter {
	var q QueryFilter
	if filter.UserID != nil {
		q = q.And(Eq(FieldUserID, *filter.UserID))
	}
	if filter.Category != nil {
		q = q.And(Eq(FieldCategory, *filter.Category))
	}
	if filter.CreatedAfter != nil {
		q = q.And(Gte(FieldCreatedAt, *filter.CreatedAfter))
	}
	if filter.CreatedBefore != nil {
		q = q.And(Lt(FieldCreatedAt, *filter.CreatedBefore))
	}
	return q
}

// ByFilter retrieves calculations based on filter criteria.
func (r *CalculationRepositoryImpl) ByFilter(ctx context.Context, filter models.CalculationFilter, orderBy string, limit, offset int) ([]*models.Calculation, error) {
	if orderBy == "" {
		return r.List(ctx, r.filterClauses(filter), limit, offset)
	}

	db := r.getDB(ctx)
	query, err := applyClauses(db.Model(&models.Calculation{}), calculationColumns, r.filterClauses(filter))
	if err != nil {
		return nil, err
	}
	query = query.Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Calculation
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of calculations matching the filter.
func (r *CalculationRepositoryImpl) Count(ctx context.Context, filter models.CalculationFilter) (int64, error) {
	return r.CountMatching(ctx, r.filterClauses(filter))
}

// Exists checks if any calculation matching the filter exists.
func (r *CalculationRepositoryImpl) Exists(ctx context.Context, filter models.CalculationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
