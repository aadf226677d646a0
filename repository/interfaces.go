// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/ecoestudiante-calc/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// FactorCatalog is the read contract the engine uses to select a factor.
// Resolve returns (nil, nil) when no factor applies.
type FactorCatalog interface {
	Resolve(ctx context.Context, q models.FactorQuery) (*models.ResolvedFactor, error)
}

// FactorCatalogRepository defines operations for factor versions and their factors
type FactorCatalogRepository interface {
	Repository[models.FactorVersion, models.FactorVersionFilter]
	FactorCatalog
	ByHash(ctx context.Context, hash string) (*models.FactorVersion, error)
	// SaveVersion inserts a version together with its factors.
	SaveVersion(ctx context.Context, version *models.FactorVersion) error
}

// CalculationRepository defines operations for calculations
type CalculationRepository interface {
	Repository[models.Calculation, models.CalculationFilter]
	ByID(ctx context.Context, id uuid.UUID) (*models.Calculation, error)
	ByIdempotencyKey(ctx context.Context, scope models.IdempotencyScope) (*models.Calculation, error)
	// List returns calculations matching the filter clauses, newest first.
	List(ctx context.Context, filter QueryFilter, limit, offset int) ([]*models.Calculation, error)
	CountMatching(ctx context.Context, filter QueryFilter) (int64, error)
}

// CalculationAuditRepository defines operations for calculation audit snapshots
type CalculationAuditRepository interface {
	Save(ctx context.Context, entity *models.CalculationAudit) error
	ListByCalculation(ctx context.Context, calculationID uuid.UUID) ([]*models.CalculationAudit, error)
	// LatestByCalculationIDs returns the newest audit row per calculation id.
	LatestByCalculationIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.CalculationAudit, error)
}
