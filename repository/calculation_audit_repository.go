package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/ecoestudiante-calc/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CalculationAuditRepositoryImpl implements CalculationAuditRepository.
// Audit rows are append-only, so there is no update path.
type CalculationAuditRepositoryImpl struct {
	*BaseRepository[models.CalculationAudit, struct{}]
}

// NewCalculationAuditRepository creates a new calculation audit repository
func NewCalculationAuditRepository(db *gorm.DB) CalculationAuditRepository {
	return &CalculationAuditRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CalculationAudit, struct{}](db),
	}
}

// ListByCalculation returns every snapshot of a calculation, newest first.
func (r *CalculationAuditRepositoryImpl) ListByCalculation(ctx context.Context, calculationID uuid.UUID) ([]*models.CalculationAudit, error) {
	db := r.getDB(ctx)

	var rows []*models.CalculationAudit
	err := db.Where("calculation_id = ?", calculationID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list calculation audits: %w", err)
	}
	return rows, nil
}

// LatestByCalculationIDs returns the newest audit per calculation id.
// Calculations without an audit are absent from the map.
func (r *CalculationAuditRepositoryImpl) LatestByCalculationIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.CalculationAudit, error) {
	out := make(map[uuid.UUID]*models.CalculationAudit, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	db := r.getDB(ctx)

	var rows []*models.CalculationAudit
	err := db.Where("calculation_id IN ?", ids).
		Order("calculation_id").
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load latest calculation audits: %w", err)
	}

	for _, row := range rows {
		if _, seen := out[row.CalculationID]; !seen {
			out[row.CalculationID] = row
		}
	}
	return out, nil
}
