package businessflow

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirphl/ecoestudiante-calc/app/dto"
	"github.com/amirphl/ecoestudiante-calc/config"
	"github.com/amirphl/ecoestudiante-calc/models"
	"github.com/amirphl/ecoestudiante-calc/repository"
	testingutil "github.com/amirphl/ecoestudiante-calc/testing"
	"github.com/amirphl/ecoestudiante-calc/utils"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flowEnv is a calculation flow over a fresh database with a small factor catalog:
// a 2024 Chilean grid version and an open-ended defaults version.
type flowEnv struct {
	db        *testingutil.TestDB
	fixtures  *testingutil.TestFixtures
	calcRepo  repository.CalculationRepository
	auditRepo repository.CalculationAuditRepository
	flow      CalculationFlow
	grid      *models.FactorVersion
	defaults  *models.FactorVersion
}

func newFlowEnv(t *testing.T, testDB *testingutil.TestDB) *flowEnv {
	t.Helper()

	fixtures := testingutil.NewTestFixtures(testDB)
	validTo := testingutil.Date(2024, time.December, 31)
	grid, err := fixtures.CreateFactorVersion("cl-grid-2024", testingutil.Date(2024, time.January, 1), &validTo,
		testingutil.Factor(models.CategoryElectricity, "", "CL", 0.48),
	)
	require.NoError(t, err)
	defaults, err := fixtures.CreateFactorVersion("defaults", testingutil.Date(2020, time.January, 1), nil,
		testingutil.Factor(models.CategoryElectricity, "", "", 0.4),
		testingutil.Factor(models.CategoryTransport, "car_gasoline", "", 0.192),
		testingutil.Factor(models.CategoryTransport, "bus", "", 0.089),
		testingutil.Factor(models.CategoryTransport, "bicycle", "", 0),
	)
	require.NoError(t, err)

	env := &flowEnv{
		db:        testDB,
		fixtures:  fixtures,
		calcRepo:  repository.NewCalculationRepository(testDB.DB),
		auditRepo: repository.NewCalculationAuditRepository(testDB.DB),
		grid:      grid,
		defaults:  defaults,
	}
	env.flow = env.newFlow(env.calcRepo, env.auditRepo)
	return env
}

func (e *flowEnv) newFlow(calcRepo repository.CalculationRepository, auditRepo repository.CalculationAuditRepository) CalculationFlow {
	catalog := repository.NewFactorCatalogRepository(e.db.DB)
	return NewCalculationFlow(calcRepo, auditRepo, NewFactorResolver(catalog), e.db.DB, config.CalcConfig{}, zerolog.Nop())
}

func (e *flowEnv) calculationCount(t *testing.T, user uuid.UUID) int64 {
	t.Helper()
	count, err := e.calcRepo.Count(context.Background(), models.CalculationFilter{UserID: &user})
	require.NoError(t, err)
	return count
}

func electricityRequest(user uuid.UUID, key string, kwh float64) *dto.ElectricityCalcRequest {
	return &dto.ElectricityCalcRequest{
		UserID:         user.String(),
		Kwh:            kwh,
		Country:        "CL",
		Period:         "2024-06",
		IdempotencyKey: key,
	}
}

// probeMissRepo answers the first n idempotency probes with "not found".
type probeMissRepo struct {
	repository.CalculationRepository
	misses atomic.Int32
}

func (r *probeMissRepo) ByIdempotencyKey(ctx context.Context, scope models.IdempotencyScope) (*models.Calculation, error) {
	if r.misses.Add(-1) >= 0 {
		return nil, nil
	}
	return r.CalculationRepository.ByIdempotencyKey(ctx, scope)
}

type failingAuditRepo struct {
	repository.CalculationAuditRepository
}

func (failingAuditRepo) Save(context.Context, *models.CalculationAudit) error {
	return errors.New("disk full")
}

func TestComputeElectricity(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(t, testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("computes with the exact country factor", func(t *testing.T) {
			user := uuid.New()
			req := electricityRequest(user, "bill-2024-06", 26.2)
			req.SelectedAppliances = []string{"Refrigerador", "Laptop"}

			res, err := env.flow.ComputeElectricity(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, 12.576, res.ResultKgCO2e)
			assert.Equal(t, env.grid.Hash, res.FactorHash)

			id, err := uuid.Parse(res.CalculationID)
			require.NoError(t, err)

			stored, err := env.calcRepo.ByID(ctx, id)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, user, stored.UserID)
			assert.Equal(t, models.CategoryElectricity, stored.Category)
			assert.Equal(t, "bill-2024-06", stored.IdempotencyKey)
			assert.Equal(t, 12.576, stored.ResultKgCO2e)

			var input map[string]any
			require.NoError(t, json.Unmarshal(stored.InputJSON, &input))
			assert.Equal(t, 26.2, input["kwh"])
			assert.Equal(t, "CL", input["country"])
			assert.Equal(t, "2024-06", input["period"])
			assert.Equal(t, "bill-2024-06", input["idempotencyKey"])
			assert.Equal(t, []any{"Refrigerador", "Laptop"}, input["selectedAppliances"])

			audits, err := env.auditRepo.ListByCalculation(ctx, id)
			require.NoError(t, err)
			require.Len(t, audits, 1)

			var snapshot models.FactorSnapshot
			require.NoError(t, json.Unmarshal(audits[0].FactorSnapshot, &snapshot))
			assert.Equal(t, models.CategoryElectricity, snapshot.Category)
			assert.Equal(t, 0.48, snapshot.Value)
			assert.Equal(t, models.UnitKgCO2ePerKWh, snapshot.Unit)
			assert.Equal(t, env.grid.Hash, snapshot.Hash)
			require.NotNil(t, snapshot.Country)
			assert.Equal(t, "CL", *snapshot.Country)
		})

		t.Run("falls back to the country-less factor", func(t *testing.T) {
			req := electricityRequest(uuid.New(), "ar", 26.2)
			req.Country = " ar "

			res, err := env.flow.ComputeElectricity(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, 10.48, res.ResultKgCO2e)
			assert.Equal(t, env.defaults.Hash, res.FactorHash)
		})

		t.Run("period outside the country window uses the fallback", func(t *testing.T) {
			req := electricityRequest(uuid.New(), "cl-2025", 10)
			req.Period = "2025-01"

			res, err := env.flow.ComputeElectricity(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, 4.0, res.ResultKgCO2e)
			assert.Equal(t, env.defaults.Hash, res.FactorHash)
		})

		t.Run("zero consumption is a valid record", func(t *testing.T) {
			res, err := env.flow.ComputeElectricity(ctx, electricityRequest(uuid.New(), "zero", 0))
			require.NoError(t, err)
			assert.Equal(t, 0.0, res.ResultKgCO2e)
		})

		t.Run("non-uuid principal maps to a stable user id", func(t *testing.T) {
			req := electricityRequest(uuid.New(), "principal", 1)
			req.UserID = "student@example.edu"

			first, err := env.flow.ComputeElectricity(ctx, req)
			require.NoError(t, err)
			second, err := env.flow.ComputeElectricity(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, first.CalculationID, second.CalculationID)

			user, ok := utils.NormalizeUserID("student@example.edu")
			require.True(t, ok)
			assert.Equal(t, int64(1), env.calculationCount(t, user))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestComputeIsIdempotent(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(t, testDB)
		ctx := testingutil.CreateTestContext()
		user := uuid.New()

		first, err := env.flow.ComputeElectricity(ctx, electricityRequest(user, "k-1", 26.2))
		require.NoError(t, err)

		// the stored result wins even if the retried payload differs
		replay, err := env.flow.ComputeElectricity(ctx, electricityRequest(user, "k-1", 999))
		require.NoError(t, err)
		assert.Equal(t, first, replay)
		assert.Equal(t, int64(1), env.calculationCount(t, user))

		id, err := uuid.Parse(first.CalculationID)
		require.NoError(t, err)
		audits, err := env.auditRepo.ListByCalculation(ctx, id)
		require.NoError(t, err)
		assert.Len(t, audits, 1)

		// same key under a different category is a different request
		transport, err := env.flow.ComputeTransport(ctx, &dto.TransportCalcRequest{
			UserID:         user.String(),
			Distance:       10,
			TransportMode:  ModeBus,
			Period:         "2024-06",
			IdempotencyKey: "k-1",
		})
		require.NoError(t, err)
		assert.NotEqual(t, first.CalculationID, transport.CalculationID)

		// and so is the same key for another user
		other, err := env.flow.ComputeElectricity(ctx, electricityRequest(uuid.New(), "k-1", 26.2))
		require.NoError(t, err)
		assert.NotEqual(t, first.CalculationID, other.CalculationID)

		assert.Equal(t, int64(2), env.calculationCount(t, user))
		return nil
	})
	require.NoError(t, err)
}

func TestComputeReplayMatchesStoredResult(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(t, testDB)
		ctx := testingutil.CreateTestContext()
		user := uuid.New()

		req := &dto.TransportCalcRequest{
			UserID:         user.String(),
			Distance:       10,
			TransportMode:  ModeCar,
			FuelType:       utils.ToPtr("gasoline"),
			Occupancy:      utils.ToPtr(7),
			Period:         "2024-06",
			IdempotencyKey: "seven-seats",
		}

		first, err := env.flow.ComputeTransport(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 0.274286, first.ResultKgCO2e)

		replay, err := env.flow.ComputeTransport(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, first, replay)

		id, err := uuid.Parse(first.CalculationID)
		require.NoError(t, err)
		stored, err := env.calcRepo.ByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, first.ResultKgCO2e, stored.ResultKgCO2e)
		return nil
	})
	require.NoError(t, err)
}

func TestAuditSnapshotSurvivesCatalogUpdate(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(t, testDB)
		ctx := testingutil.CreateTestContext()
		user := uuid.New()

		first, err := env.flow.ComputeElectricity(ctx, electricityRequest(user, "before-update", 26.2))
		require.NoError(t, err)
		require.Equal(t, env.grid.Hash, first.FactorHash)

		// an overlapping version with a later valid_from now wins for 2024-06
		revised, err := env.fixtures.CreateFactorVersion("cl-grid-2024-rev", testingutil.Date(2024, time.March, 1), nil,
			testingutil.Factor(models.CategoryElectricity, "", "CL", 0.5),
		)
		require.NoError(t, err)
		require.NotEqual(t, env.grid.Hash, revised.Hash)

		fresh, err := env.flow.ComputeElectricity(ctx, electricityRequest(user, "after-update", 26.2))
		require.NoError(t, err)
		assert.Equal(t, 13.1, fresh.ResultKgCO2e)
		assert.Equal(t, revised.Hash, fresh.FactorHash)

		replay, err := env.flow.ComputeElectricity(ctx, electricityRequest(user, "before-update", 26.2))
		require.NoError(t, err)
		assert.Equal(t, first, replay)

		resp, err := env.flow.GetHistory(ctx, &dto.CalcHistoryRequest{UserID: user.String()})
		require.NoError(t, err)
		require.Len(t, resp.Items, 2)

		items := map[string]dto.CalcHistoryItem{}
		for _, item := range resp.Items {
			items[item.ID] = item
		}
		original, ok := items[first.CalculationID]
		require.True(t, ok)
		require.NotNil(t, original.FactorInfo)
		assert.Equal(t, 0.48, original.FactorInfo.Value)
		assert.Equal(t, models.UnitKgCO2ePerKWh, original.FactorInfo.Unit)
		assert.Equal(t, 12.576, original.ResultKgCO2e)

		id, err := uuid.Parse(first.CalculationID)
		require.NoError(t, err)
		audits, err := env.auditRepo.LatestByCalculationIDs(ctx, []uuid.UUID{id})
		require.NoError(t, err)
		require.Contains(t, audits, id)

		var snapshot models.FactorSnapshot
		require.NoError(t, json.Unmarshal(audits[id].FactorSnapshot, &snapshot))
		assert.Equal(t, env.grid.Hash, snapshot.Hash)
		assert.Equal(t, 0.48, snapshot.Value)
		return nil
	})
	require.NoError(t, err)
}

func TestComputeConcurrentDuplicates(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(t, testDB)
		user := uuid.New()

		const workers = 8
		var wg sync.WaitGroup
		results := make([]*dto.CalcResultResponse, workers)
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = env.flow.ComputeElectricity(context.Background(), electricityRequest(user, "same-key", 26.2))
			}(i)
		}
		wg.Wait()

		for i := 0; i < workers; i++ {
			require.NoError(t, errs[i])
			assert.Equal(t, results[0].CalculationID, results[i].CalculationID)
			assert.Equal(t, 12.576, results[i].ResultKgCO2e)
		}
		assert.Equal(t, int64(1), env.calculationCount(t, user))
		return nil
	})
	require.NoError(t, err)
}

func TestComputeRecoversFromUniqueViolation(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(t, testDB)
		ctx := testingutil.CreateTestContext()
		user := uuid.New()

		winner, err := env.fixtures.CreateCalculation(user, models.CategoryElectricity, "raced", 1.5, time.Now())
		require.NoError(t, err)

		repo := &probeMissRepo{CalculationRepository: env.calcRepo}
		repo.misses.Store(1)
		flow := env.newFlow(repo, env.auditRepo)

		res, err := flow.ComputeElectricity(ctx, electricityRequest(user, "raced", 26.2))
		require.NoError(t, err)
		assert.Equal(t, winner.ID.String(), res.CalculationID)
		assert.Equal(t, 1.5, res.ResultKgCO2e)
		assert.Equal(t, winner.FactorHash, res.FactorHash)

		// the losing insert left no audit behind
		audits, err := env.auditRepo.ListByCalculation(ctx, winner.ID)
		require.NoError(t, err)
		assert.Empty(t, audits)
		assert.Equal(t, int64(1), env.calculationCount(t, user))
		return nil
	})
	require.NoError(t, err)
}

func TestComputeRaceInconsistency(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(t, testDB)
		ctx := testingutil.CreateTestContext()
		user := uuid.New()

		_, err := env.fixtures.CreateCalculation(user, models.CategoryElectricity, "ghost", 1.5, time.Now())
		require.NoError(t, err)

		repo := &probeMissRepo{CalculationRepository: env.calcRepo}
		repo.misses.Store(math.MaxInt32)
		flow := env.newFlow(repo, env.auditRepo)

		res, err := flow.ComputeElectricity(ctx, electricityRequest(user, "ghost", 26.2))
		require.Error(t, err)
		assert.Nil(t, res)
		assert.True(t, IsIdempotencyRaceInconsistency(err))
		assert.False(t, IsPersistenceFailure(err))
		assert.Equal(t, "IDEMPOTENCY_RACE_INCONSISTENCY", ErrorCode(err))
		assert.Equal(t, int64(1), env.calculationCount(t, user))
		return nil
	})
	require.NoError(t, err)
}

func TestComputePersistenceFailureRollsBack(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(t, testDB)
		ctx := testingutil.CreateTestContext()
		user := uuid.New()

		flow := env.newFlow(env.calcRepo, failingAuditRepo{env.auditRepo})
		res, err := flow.ComputeElectricity(ctx, electricityRequest(user, "audit-fails", 26.2))
		require.Error(t, err)
		assert.Nil(t, res)
		assert.True(t, IsPersistenceFailure(err))
		assert.Equal(t, "PERSISTENCE_FAILURE", ErrorCode(err))

		stored, err := env.calcRepo.ByIdempotencyKey(ctx, models.IdempotencyScope{
			UserID:         user,
			Category:       models.CategoryElectricity,
			IdempotencyKey: "audit-fails",
		})
		require.NoError(t, err)
		assert.Nil(t, stored)

		// a later retry with a healthy store succeeds
		res, err = env.flow.ComputeElectricity(ctx, electricityRequest(user, "audit-fails", 26.2))
		require.NoError(t, err)
		assert.Equal(t, 12.576, res.ResultKgCO2e)
		return nil
	})
	require.NoError(t, err)
}

func TestComputeNoApplicableFactor(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(t, testDB)
		ctx := testingutil.CreateTestContext()
		user := uuid.New()

		req := electricityRequest(user, "too-early", 26.2)
		req.Period = "2019-05"
		res, err := env.flow.ComputeElectricity(ctx, req)
		require.Error(t, err)
		assert.Nil(t, res)
		assert.True(t, IsNoApplicableFactor(err))
		assert.Equal(t, "FACTOR_NOT_FOUND", ErrorCode(err))

		_, err = env.flow.ComputeTransport(ctx, &dto.TransportCalcRequest{
			UserID:         user.String(),
			Distance:       12,
			TransportMode:  ModePlane,
			Period:         "2024-06",
			IdempotencyKey: "no-plane",
		})
		require.Error(t, err)
		assert.True(t, IsNoApplicableFactor(err))

		assert.Equal(t, int64(0), env.calculationCount(t, user))

		// the failed lookup left the key free
		req.Period = "2024-06"
		res, err = env.flow.ComputeElectricity(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 12.576, res.ResultKgCO2e)
		return nil
	})
	require.NoError(t, err)
}

func TestComputeTransport(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(t, testDB)
		ctx := testingutil.CreateTestContext()
		user := uuid.New()

		t.Run("car divides by occupancy", func(t *testing.T) {
			res, err := env.flow.ComputeTransport(ctx, &dto.TransportCalcRequest{
				UserID:         user.String(),
				Distance:       100,
				TransportMode:  ModeCar,
				FuelType:       utils.ToPtr("Gasolina"),
				Occupancy:      utils.ToPtr(4),
				Country:        "CL",
				Period:         "2024-06",
				IdempotencyKey: "carpool",
				OriginAddress:  utils.ToPtr("Campus Norte"),
			})
			require.NoError(t, err)
			assert.Equal(t, 4.8, res.ResultKgCO2e)
			assert.Equal(t, env.defaults.Hash, res.FactorHash)

			stored, err := env.calcRepo.ByIdempotencyKey(ctx, models.IdempotencyScope{
				UserID:         user,
				Category:       models.CategoryTransport,
				IdempotencyKey: "carpool",
			})
			require.NoError(t, err)
			require.NotNil(t, stored)

			var input map[string]any
			require.NoError(t, json.Unmarshal(stored.InputJSON, &input))
			assert.Equal(t, "car", input["transportMode"])
			assert.Equal(t, "Gasolina", input["fuelType"])
			assert.Equal(t, 4.0, input["occupancy"])
			assert.Equal(t, "Campus Norte", input["originAddress"])
			assert.NotContains(t, input, "destinationAddress")
		})

		t.Run("without occupancy", func(t *testing.T) {
			res, err := env.flow.ComputeTransport(ctx, &dto.TransportCalcRequest{
				UserID:         user.String(),
				Distance:       100,
				TransportMode:  ModeCar,
				FuelType:       utils.ToPtr("gasoline"),
				Period:         "2024-06",
				IdempotencyKey: "solo",
			})
			require.NoError(t, err)
			assert.Equal(t, 19.2, res.ResultKgCO2e)
		})

		t.Run("zero factor mode", func(t *testing.T) {
			res, err := env.flow.ComputeTransport(ctx, &dto.TransportCalcRequest{
				UserID:         user.String(),
				Distance:       5,
				TransportMode:  ModeBicycle,
				Period:         "2024-06",
				IdempotencyKey: "bike",
			})
			require.NoError(t, err)
			assert.Equal(t, 0.0, res.ResultKgCO2e)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestComputeValidation(t *testing.T) {
	flow := &CalculationFlowImpl{logger: zerolog.Nop()}
	ctx := context.Background()
	user := uuid.New().String()

	electricity := []struct {
		name string
		req  *dto.ElectricityCalcRequest
		code string
	}{
		{"nil request", nil, "INVALID_REQUEST"},
		{"missing user", &dto.ElectricityCalcRequest{Kwh: 1, Period: "2024-06", IdempotencyKey: "k"}, "USER_ID_REQUIRED"},
		{"blank key", &dto.ElectricityCalcRequest{UserID: user, Kwh: 1, Period: "2024-06", IdempotencyKey: "  "}, "IDEMPOTENCY_KEY_REQUIRED"},
		{"bad period", &dto.ElectricityCalcRequest{UserID: user, Kwh: 1, Period: "2024-13", IdempotencyKey: "k"}, "INVALID_PERIOD"},
		{"full date period", &dto.ElectricityCalcRequest{UserID: user, Kwh: 1, Period: "2024-06-01", IdempotencyKey: "k"}, "INVALID_PERIOD"},
		{"negative kwh", &dto.ElectricityCalcRequest{UserID: user, Kwh: -1, Period: "2024-06", IdempotencyKey: "k"}, "INVALID_KWH"},
		{"NaN kwh", &dto.ElectricityCalcRequest{UserID: user, Kwh: math.NaN(), Period: "2024-06", IdempotencyKey: "k"}, "INVALID_KWH"},
		{"infinite kwh", &dto.ElectricityCalcRequest{UserID: user, Kwh: math.Inf(1), Period: "2024-06", IdempotencyKey: "k"}, "INVALID_KWH"},
	}
	for _, tc := range electricity {
		t.Run("electricity "+tc.name, func(t *testing.T) {
			res, err := flow.ComputeElectricity(ctx, tc.req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, IsInvalidInput(err))
			assert.Equal(t, tc.code, ErrorCode(err))
		})
	}

	transport := []struct {
		name string
		req  *dto.TransportCalcRequest
		code string
	}{
		{"nil request", nil, "INVALID_REQUEST"},
		{"negative distance", &dto.TransportCalcRequest{UserID: user, Distance: -3, TransportMode: ModeBus, Period: "2024-06", IdempotencyKey: "k"}, "INVALID_DISTANCE"},
		{"zero occupancy", &dto.TransportCalcRequest{UserID: user, Distance: 3, TransportMode: ModeBus, Occupancy: utils.ToPtr(0), Period: "2024-06", IdempotencyKey: "k"}, "INVALID_OCCUPANCY"},
		{"unknown mode", &dto.TransportCalcRequest{UserID: user, Distance: 3, TransportMode: "rocket", Period: "2024-06", IdempotencyKey: "k"}, "INVALID_TRANSPORT_MODE"},
		{"mode is case sensitive", &dto.TransportCalcRequest{UserID: user, Distance: 3, TransportMode: "Bus", Period: "2024-06", IdempotencyKey: "k"}, "INVALID_TRANSPORT_MODE"},
		{"car without fuel", &dto.TransportCalcRequest{UserID: user, Distance: 3, TransportMode: ModeCar, Period: "2024-06", IdempotencyKey: "k"}, "FUEL_TYPE_REQUIRED"},
		{"motorcycle with blank fuel", &dto.TransportCalcRequest{UserID: user, Distance: 3, TransportMode: ModeMotorcycle, FuelType: utils.ToPtr(" "), Period: "2024-06", IdempotencyKey: "k"}, "FUEL_TYPE_REQUIRED"},
	}
	for _, tc := range transport {
		t.Run("transport "+tc.name, func(t *testing.T) {
			res, err := flow.ComputeTransport(ctx, tc.req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, IsInvalidInput(err))
			assert.Equal(t, tc.code, ErrorCode(err))
		})
	}
}
