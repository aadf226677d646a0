package businessflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/amirphl/ecoestudiante-calc/app/dto"
	"github.com/amirphl/ecoestudiante-calc/config"
	"github.com/amirphl/ecoestudiante-calc/models"
	"github.com/amirphl/ecoestudiante-calc/repository"
	"github.com/amirphl/ecoestudiante-calc/utils"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// CalculationFlow handles the emission calculation process
type CalculationFlow interface {
	ComputeElectricity(ctx context.Context, req *dto.ElectricityCalcRequest) (*dto.CalcResultResponse, error)
	ComputeTransport(ctx context.Context, req *dto.TransportCalcRequest) (*dto.CalcResultResponse, error)
	GetHistory(ctx context.Context, req *dto.CalcHistoryRequest) (*dto.CalcHistoryResponse, error)
	ExportHistory(ctx context.Context, req *dto.CalcHistoryRequest) (string, []byte, error)
}

// CalculationFlowImpl implements the calculation business logic
type CalculationFlowImpl struct {
	calcRepo  repository.CalculationRepository
	auditRepo repository.CalculationAuditRepository
	resolver  FactorResolver
	db        *gorm.DB
	calcCfg   config.CalcConfig
	logger    zerolog.Logger
}

// NewCalculationFlow creates a new calculation flow instance
func NewCalculationFlow(
	calcRepo repository.CalculationRepository,
	auditRepo repository.CalculationAuditRepository,
	resolver FactorResolver,
	db *gorm.DB,
	calcCfg config.CalcConfig,
	logger zerolog.Logger,
) CalculationFlow {
	return &CalculationFlowImpl{
		calcRepo:  calcRepo,
		auditRepo: auditRepo,
		resolver:  resolver,
		db:        db,
		calcCfg:   calcCfg,
		logger:    logger.With().Str("component", "calculation_flow").Logger(),
	}
}

// computation is a validated request ready for the probe-resolve-persist pipeline.
type computation struct {
	scope     models.IdempotencyScope
	query     models.FactorQuery
	quantity  float64
	occupancy int
	input     map[string]any
}

// ComputeElectricity computes kgCO2e for an electricity consumption record
func (f *CalculationFlowImpl) ComputeElectricity(ctx context.Context, req *dto.ElectricityCalcRequest) (*dto.CalcResultResponse, error) {
	if req == nil {
		return nil, f.invalid(models.CategoryElectricity, "INVALID_REQUEST", ErrRequestRequired)
	}

	scope, refDate, err := f.validateCommon(models.CategoryElectricity, req.UserID, req.IdempotencyKey, req.Period)
	if err != nil {
		return nil, err
	}
	if !isValidQuantity(req.Kwh) {
		return nil, f.invalid(models.CategoryElectricity, "INVALID_KWH", ErrInvalidKwh)
	}

	country := utils.NormalizeCountry(req.Country)
	appliances := req.SelectedAppliances
	if appliances == nil {
		appliances = []string{}
	}

	return f.compute(ctx, computation{
		scope: scope,
		query: models.FactorQuery{
			Category:      models.CategoryElectricity,
			Country:       country,
			ReferenceDate: refDate,
		},
		quantity: req.Kwh,
		input: map[string]any{
			"kwh":                req.Kwh,
			"country":            country,
			"period":             req.Period,
			"idempotencyKey":     scope.IdempotencyKey,
			"selectedAppliances": appliances,
			"career":             req.Career,
			"schedule":           req.Schedule,
		},
	})
}

// ComputeTransport computes kgCO2e for a trip
func (f *CalculationFlowImpl) ComputeTransport(ctx context.Context, req *dto.TransportCalcRequest) (*dto.CalcResultResponse, error) {
	if req == nil {
		return nil, f.invalid(models.CategoryTransport, "INVALID_REQUEST", ErrRequestRequired)
	}

	scope, refDate, err := f.validateCommon(models.CategoryTransport, req.UserID, req.IdempotencyKey, req.Period)
	if err != nil {
		return nil, err
	}
	if !isValidQuantity(req.Distance) {
		return nil, f.invalid(models.CategoryTransport, "INVALID_DISTANCE", ErrInvalidDistance)
	}
	occupancy := 0
	if req.Occupancy != nil {
		if *req.Occupancy <= 0 {
			return nil, f.invalid(models.CategoryTransport, "INVALID_OCCUPANCY", ErrInvalidOccupancy)
		}
		occupancy = *req.Occupancy
	}

	subcategory, err := TransportSubcategory(req.TransportMode, req.FuelType)
	if err != nil {
		code := "INVALID_TRANSPORT_MODE"
		if errors.Is(err, ErrFuelTypeRequired) {
			code = "FUEL_TYPE_REQUIRED"
		}
		return nil, f.invalid(models.CategoryTransport, code, err)
	}

	country := utils.NormalizeCountry(req.Country)
	input := map[string]any{
		"distance":       req.Distance,
		"transportMode":  req.TransportMode,
		"country":        country,
		"period":         req.Period,
		"idempotencyKey": scope.IdempotencyKey,
	}
	if req.FuelType != nil {
		input["fuelType"] = *req.FuelType
	}
	if req.Occupancy != nil {
		input["occupancy"] = *req.Occupancy
	}
	setIfPresent(input, "originLat", req.OriginLat)
	setIfPresent(input, "originLng", req.OriginLng)
	setIfPresent(input, "destinationLat", req.DestinationLat)
	setIfPresent(input, "destinationLng", req.DestinationLng)
	setIfPresent(input, "originAddress", req.OriginAddress)
	setIfPresent(input, "destinationAddress", req.DestinationAddress)

	return f.compute(ctx, computation{
		scope: scope,
		query: models.FactorQuery{
			Category:      models.CategoryTransport,
			Subcategory:   &subcategory,
			Country:       country,
			ReferenceDate: refDate,
		},
		quantity:  req.Distance,
		occupancy: occupancy,
		input:     input,
	})
}

func (f *CalculationFlowImpl) validateCommon(category, rawUserID, key, period string) (models.IdempotencyScope, time.Time, error) {
	userID, ok := utils.NormalizeUserID(rawUserID)
	if !ok {
		return models.IdempotencyScope{}, time.Time{}, f.invalid(category, "USER_ID_REQUIRED", ErrUserIDRequired)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return models.IdempotencyScope{}, time.Time{}, f.invalid(category, "IDEMPOTENCY_KEY_REQUIRED", ErrIdempotencyKeyRequired)
	}
	refDate, err := utils.ParsePeriod(strings.TrimSpace(period))
	if err != nil {
		return models.IdempotencyScope{}, time.Time{}, f.invalid(category, "INVALID_PERIOD", ErrInvalidPeriod)
	}

	return models.IdempotencyScope{
		UserID:         userID,
		Category:       category,
		IdempotencyKey: key,
	}, refDate, nil
}

func (f *CalculationFlowImpl) invalid(category, code string, err error) error {
	recordOutcome(category, outcomeInvalid)
	return NewBusinessError(code, err.Error(), err)
}

// compute runs probe, resolve, compute and persist for one validated request.
func (f *CalculationFlowImpl) compute(ctx context.Context, c computation) (*dto.CalcResultResponse, error) {
	start := time.Now()
	defer func() {
		calculationDuration.WithLabelValues(c.scope.Category).Observe(time.Since(start).Seconds())
	}()

	existing, err := f.calcRepo.ByIdempotencyKey(ctx, c.scope)
	if err != nil {
		return nil, f.persistenceFailure(ctx, c.scope, "idempotency probe failed", err)
	}
	if existing != nil {
		recordOutcome(c.scope.Category, outcomeReplayed)
		return toCalcResult(existing), nil
	}

	factor, err := f.resolver.Resolve(ctx, c.query)
	if err != nil {
		if IsNoApplicableFactor(err) {
			recordOutcome(c.scope.Category, outcomeNoFactor)
			return nil, err
		}
		return nil, f.persistenceFailure(ctx, c.scope, "factor lookup failed", err)
	}

	result, err := emissions(c.quantity, factor.Value, c.occupancy)
	if err != nil {
		return nil, NewBusinessError("CALCULATION_FAILED", "Failed to compute emissions", err)
	}

	inputJSON, err := json.Marshal(c.input)
	if err != nil {
		return nil, NewBusinessError("CALCULATION_FAILED", "Failed to encode calculation input", err)
	}
	snapshotJSON, err := json.Marshal(models.NewFactorSnapshot(factor))
	if err != nil {
		return nil, NewBusinessError("CALCULATION_FAILED", "Failed to encode factor snapshot", err)
	}

	now := utils.UTCNow()
	calc := &models.Calculation{
		ID:             uuid.New(),
		UserID:         c.scope.UserID,
		Category:       c.scope.Category,
		IdempotencyKey: c.scope.IdempotencyKey,
		InputJSON:      inputJSON,
		ResultKgCO2e:   result,
		FactorHash:     factor.Hash,
		CreatedAt:      now,
	}
	audit := &models.CalculationAudit{
		ID:             uuid.New(),
		CalculationID:  calc.ID,
		FactorSnapshot: snapshotJSON,
		CreatedAt:      now,
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.calcRepo.Save(txCtx, calc); err != nil {
			return err
		}
		return f.auditRepo.Save(txCtx, audit)
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return f.onConflict(ctx, c.scope, err)
		}
		return nil, f.persistenceFailure(ctx, c.scope, "failed to persist calculation", err)
	}

	recordOutcome(c.scope.Category, outcomeCreated)
	return toCalcResult(calc), nil
}

// onConflict resolves a uniqueness violation by returning the row the concurrent winner stored.
// It runs outside the failed transaction.
func (f *CalculationFlowImpl) onConflict(ctx context.Context, scope models.IdempotencyScope, cause error) (*dto.CalcResultResponse, error) {
	existing, err := f.calcRepo.ByIdempotencyKey(ctx, scope)
	if err != nil {
		return nil, f.persistenceFailure(ctx, scope, "re-read after idempotency conflict failed", err)
	}
	if existing == nil {
		recordOutcome(scope.Category, outcomeInconsistent)
		f.scopeLogger(ctx, scope).Error().
			Err(cause).
			Msg("idempotency conflict reported but no existing calculation found")
		return nil, NewBusinessError(
			"IDEMPOTENCY_RACE_INCONSISTENCY",
			"Idempotency conflict could not be resolved",
			fmt.Errorf("%w: %w", ErrIdempotencyRaceInconsistency, cause),
		)
	}

	recordOutcome(scope.Category, outcomeRecovered)
	f.scopeLogger(ctx, scope).Debug().
		Str("calculation_id", existing.ID.String()).
		Msg("recovered calculation after idempotency conflict")
	return toCalcResult(existing), nil
}

func (f *CalculationFlowImpl) persistenceFailure(ctx context.Context, scope models.IdempotencyScope, msg string, err error) error {
	recordOutcome(scope.Category, outcomePersistFailed)
	f.scopeLogger(ctx, scope).Error().Err(err).Msg(msg)
	return NewBusinessError("PERSISTENCE_FAILURE", msg, fmt.Errorf("%w: %w", ErrPersistenceFailure, err))
}

func (f *CalculationFlowImpl) scopeLogger(ctx context.Context, scope models.IdempotencyScope) *zerolog.Logger {
	l := f.logger.With().
		Str("user_id", scope.UserID.String()).
		Str("category", scope.Category).
		Str("idempotency_key", scope.IdempotencyKey).
		Logger()
	if rid, ok := ctx.Value(utils.RequestIDKey).(string); ok && rid != "" {
		l = l.With().Str("request_id", rid).Logger()
	}
	return &l
}

func toCalcResult(c *models.Calculation) *dto.CalcResultResponse {
	return &dto.CalcResultResponse{
		CalculationID: c.ID.String(),
		ResultKgCO2e:  c.ResultKgCO2e,
		FactorHash:    c.FactorHash,
	}
}

func isValidQuantity(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func setIfPresent[T any](m map[string]any, key string, v *T) {
	if v != nil {
		m[key] = *v
	}
}
