package businessflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
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
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
versions:
  - source_id: cl-sen-2024
    valid_from: "2024-01-01"
    valid_to: "2024-12-31"
    factors:
      - category: electricity
        country: cl
        value: 0.48
  - source_id: defaults
    valid_from: "2020-01-01"
    hash: defaults-v1
    factors:
      - category: electricity
        value: 0.4
      - category: transport
        subcategory: bus
        value: 0.089
`

func newFactorFlow(testDB *testingutil.TestDB) (FactorFlow, repository.FactorCatalogRepository) {
	catalog := repository.NewFactorCatalogRepository(testDB.DB)
	return NewFactorFlow(catalog, NewFactorResolver(catalog), zerolog.Nop()), catalog
}

func TestSeedCatalog(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow, catalog := newFactorFlow(testDB)
		ctx := testingutil.CreateTestContext()

		first, err := flow.SeedCatalog(ctx, strings.NewReader(seedYAML))
		require.NoError(t, err)
		require.Len(t, first.Inserted, 2)
		assert.Empty(t, first.Skipped)
		assert.Len(t, first.Inserted[0], 64)
		assert.Equal(t, "defaults-v1", first.Inserted[1])

		stored, err := catalog.ByHash(ctx, first.Inserted[0])
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "cl-sen-2024", stored.SourceID)
		require.Len(t, stored.Factors, 1)
		require.NotNil(t, stored.Factors[0].Country)
		assert.Equal(t, "CL", *stored.Factors[0].Country)

		// re-running the same file changes nothing
		second, err := flow.SeedCatalog(ctx, strings.NewReader(seedYAML))
		require.NoError(t, err)
		assert.Empty(t, second.Inserted)
		assert.Equal(t, first.Inserted, second.Skipped)

		count, err := catalog.Count(ctx, models.FactorVersionFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
		return nil
	})
	require.NoError(t, err)
}

func TestSeedCatalogBundledFile(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow, _ := newFactorFlow(testDB)
		ctx := testingutil.CreateTestContext()

		file, err := os.Open("../data/factors.yaml")
		require.NoError(t, err)
		defer file.Close()

		resp, err := flow.SeedCatalog(ctx, file)
		require.NoError(t, err)
		assert.Len(t, resp.Inserted, 4)

		tests := []struct {
			category    string
			subcategory string
			country     string
			period      string
			want        float64
		}{
			{models.CategoryElectricity, "", "CL", "2024-06", 0.48},
			{models.CategoryElectricity, "", "CL", "2025-03", 0.262},
			{models.CategoryElectricity, "", "AR", "2025-03", 0.475},
			{models.CategoryTransport, "bus", "CL", "2025-03", 0.089},
			{models.CategoryTransport, "walking", "", "2025-03", 0},
		}
		for _, tc := range tests {
			req := &dto.ResolveFactorRequest{Category: tc.category, Country: tc.country, Period: tc.period}
			if tc.subcategory != "" {
				req.Subcategory = utils.ToPtr(tc.subcategory)
			}
			factor, err := flow.ResolveFactor(ctx, req)
			require.NoError(t, err, "%s/%s/%s/%s", tc.category, tc.subcategory, tc.country, tc.period)
			assert.Equal(t, tc.want, factor.Value, "%s/%s/%s/%s", tc.category, tc.subcategory, tc.country, tc.period)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSeedCatalogRejectsInvalidFiles(t *testing.T) {
	flow := NewFactorFlow(nil, nil, zerolog.Nop())
	ctx := context.Background()

	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "versions: [unterminated"},
		{"missing source", "versions:\n  - valid_from: \"2024-01-01\"\n    factors:\n      - {category: electricity, value: 1}\n"},
		{"bad valid_from", "versions:\n  - source_id: s\n    valid_from: \"2024/01/01\"\n    factors:\n      - {category: electricity, value: 1}\n"},
		{"inverted window", "versions:\n  - source_id: s\n    valid_from: \"2024-06-01\"\n    valid_to: \"2024-01-01\"\n    factors:\n      - {category: electricity, value: 1}\n"},
		{"no factors", "versions:\n  - source_id: s\n    valid_from: \"2024-01-01\"\n"},
		{"unknown category", "versions:\n  - source_id: s\n    valid_from: \"2024-01-01\"\n    factors:\n      - {category: food, value: 1}\n"},
		{"negative value", "versions:\n  - source_id: s\n    valid_from: \"2024-01-01\"\n    factors:\n      - {category: electricity, value: -0.1}\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := flow.SeedCatalog(ctx, strings.NewReader(tc.yaml))
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, IsSeedFileInvalid(err))
			assert.Equal(t, "SEED_FILE_INVALID", ErrorCode(err))
		})
	}
}

func TestVersionHash(t *testing.T) {
	validTo := testingutil.Date(2024, time.December, 31)
	build := func(factors ...models.EmissionFactor) *models.FactorVersion {
		return &models.FactorVersion{
			SourceID:  "src",
			ValidFrom: testingutil.Date(2024, time.January, 1),
			ValidTo:   &validTo,
			Factors:   factors,
		}
	}

	a := VersionHash(build(
		testingutil.Factor(models.CategoryElectricity, "", "CL", 0.48),
		testingutil.Factor(models.CategoryTransport, "bus", "", 0.089),
	))
	b := VersionHash(build(
		testingutil.Factor(models.CategoryTransport, "bus", "", 0.089),
		testingutil.Factor(models.CategoryElectricity, "", "CL", 0.48),
	))
	c := VersionHash(build(
		testingutil.Factor(models.CategoryElectricity, "", "CL", 0.49),
		testingutil.Factor(models.CategoryTransport, "bus", "", 0.089),
	))

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	open := build(testingutil.Factor(models.CategoryElectricity, "", "CL", 0.48))
	open.ValidTo = nil
	assert.NotEqual(t, VersionHash(build(testingutil.Factor(models.CategoryElectricity, "", "CL", 0.48))), VersionHash(open))
}

func TestResolveFactor(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow, _ := newFactorFlow(testDB)
		ctx := testingutil.CreateTestContext()

		seeded, err := flow.SeedCatalog(ctx, strings.NewReader(seedYAML))
		require.NoError(t, err)

		t.Run("exact country", func(t *testing.T) {
			resp, err := flow.ResolveFactor(ctx, &dto.ResolveFactorRequest{
				Category: models.CategoryElectricity,
				Country:  "cl",
				Period:   "2024-06",
			})
			require.NoError(t, err)
			assert.Equal(t, 0.48, resp.Value)
			assert.Equal(t, models.UnitKgCO2ePerKWh, resp.Unit)
			assert.Equal(t, seeded.Inserted[0], resp.Hash)
			assert.Equal(t, "cl-sen-2024", resp.SourceID)
			assert.Equal(t, "2024-01-01", resp.ValidFrom)
			require.NotNil(t, resp.ValidTo)
			assert.Equal(t, "2024-12-31", *resp.ValidTo)
			require.NotNil(t, resp.Country)
			assert.Equal(t, "CL", *resp.Country)
		})

		t.Run("fallback row", func(t *testing.T) {
			resp, err := flow.ResolveFactor(ctx, &dto.ResolveFactorRequest{
				Category:    models.CategoryTransport,
				Subcategory: utils.ToPtr(" bus "),
				Country:     "PE",
				Period:      "2025-02",
			})
			require.NoError(t, err)
			assert.Equal(t, 0.089, resp.Value)
			assert.Equal(t, models.UnitKgCO2ePerKm, resp.Unit)
			assert.Equal(t, "defaults-v1", resp.Hash)
			assert.Nil(t, resp.Country)
			assert.Nil(t, resp.ValidTo)
		})

		t.Run("no factor", func(t *testing.T) {
			_, err := flow.ResolveFactor(ctx, &dto.ResolveFactorRequest{
				Category:    models.CategoryTransport,
				Subcategory: utils.ToPtr("plane"),
				Period:      "2025-02",
			})
			require.Error(t, err)
			assert.True(t, IsNoApplicableFactor(err))
			assert.Equal(t, "FACTOR_NOT_FOUND", ErrorCode(err))
		})

		t.Run("invalid input", func(t *testing.T) {
			_, err := flow.ResolveFactor(ctx, nil)
			assert.Equal(t, "INVALID_REQUEST", ErrorCode(err))

			_, err = flow.ResolveFactor(ctx, &dto.ResolveFactorRequest{Category: "food", Period: "2025-02"})
			assert.Equal(t, "INVALID_CATEGORY", ErrorCode(err))

			_, err = flow.ResolveFactor(ctx, &dto.ResolveFactorRequest{Category: models.CategoryElectricity, Period: "Feb 2025"})
			assert.Equal(t, "INVALID_PERIOD", ErrorCode(err))
			assert.True(t, IsInvalidInput(err))
		})

		return nil
	})
	require.NoError(t, err)
}

// stubCatalog is a FactorCatalog returning a fixed factor and counting lookups.
type stubCatalog struct {
	factor *models.ResolvedFactor
	err    error
	calls  atomic.Int32
	last   models.FactorQuery
}

func (s *stubCatalog) Resolve(_ context.Context, q models.FactorQuery) (*models.ResolvedFactor, error) {
	s.calls.Add(1)
	s.last = q
	return s.factor, s.err
}

// blockingCatalog holds every lookup until release is closed and records the lookup ctx error.
type blockingCatalog struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	ctxErr  atomic.Value
}

func (b *blockingCatalog) Resolve(ctx context.Context, _ models.FactorQuery) (*models.ResolvedFactor, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	b.ctxErr.Store(fmt.Sprint(ctx.Err()))
	return sampleFactor(), ctx.Err()
}

func sampleFactor() *models.ResolvedFactor {
	return &models.ResolvedFactor{
		FactorID:  7,
		VersionID: 3,
		Category:  models.CategoryElectricity,
		Country:   utils.ToPtr("CL"),
		Value:     0.48,
		Hash:      "abc",
		SourceID:  "cl-sen-2024",
		ValidFrom: testingutil.Date(2024, time.January, 1),
	}
}

func TestFactorResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes the query", func(t *testing.T) {
		stub := &stubCatalog{factor: sampleFactor()}
		resolver := NewFactorResolver(stub)

		ref := time.Date(2024, 6, 1, 0, 0, 0, 0, time.FixedZone("CLT", -4*3600))
		factor, err := resolver.Resolve(ctx, models.FactorQuery{Category: models.CategoryElectricity, Country: " cl ", ReferenceDate: ref})
		require.NoError(t, err)
		assert.Equal(t, 0.48, factor.Value)
		assert.Equal(t, "CL", stub.last.Country)
		assert.Equal(t, time.UTC, stub.last.ReferenceDate.Location())
		assert.True(t, ref.Equal(stub.last.ReferenceDate))
	})

	t.Run("missing factor", func(t *testing.T) {
		resolver := NewFactorResolver(&stubCatalog{})
		_, err := resolver.Resolve(ctx, models.FactorQuery{
			Category:      models.CategoryTransport,
			Subcategory:   utils.ToPtr("plane"),
			ReferenceDate: testingutil.Date(2024, time.June, 1),
		})
		require.Error(t, err)
		assert.True(t, IsNoApplicableFactor(err))
		assert.Contains(t, err.Error(), "subcategory=plane")
		assert.Contains(t, err.Error(), "date=2024-06-01")
	})

	t.Run("catalog failure is not a missing factor", func(t *testing.T) {
		boom := errors.New("connection reset")
		resolver := NewFactorResolver(&stubCatalog{err: boom})
		_, err := resolver.Resolve(ctx, models.FactorQuery{Category: models.CategoryElectricity})
		require.ErrorIs(t, err, boom)
		assert.False(t, IsNoApplicableFactor(err))
	})
}

func TestCachedFactorCatalog(t *testing.T) {
	ctx := context.Background()
	query := models.FactorQuery{Category: models.CategoryElectricity, Country: "CL", ReferenceDate: testingutil.Date(2024, time.June, 1)}

	t.Run("without redis", func(t *testing.T) {
		stub := &stubCatalog{factor: sampleFactor()}
		cached := NewCachedFactorCatalog(stub, nil, config.CacheConfig{}, zerolog.Nop())

		got, err := cached.Resolve(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, stub.factor, got)
		assert.NotSame(t, stub.factor, got)

		got.Value = 99
		assert.Equal(t, 0.48, stub.factor.Value)
	})

	t.Run("misses are not cached", func(t *testing.T) {
		stub := &stubCatalog{}
		cached := NewCachedFactorCatalog(stub, nil, config.CacheConfig{}, zerolog.Nop())

		got, err := cached.Resolve(ctx, query)
		require.NoError(t, err)
		assert.Nil(t, got)

		_, err = cached.Resolve(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, int32(2), stub.calls.Load())
	})

	t.Run("unreachable redis falls back to the catalog", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 100 * time.Millisecond,
			MaxRetries:  -1,
		})
		defer client.Close()

		stub := &stubCatalog{factor: sampleFactor()}
		cached := NewCachedFactorCatalog(stub, client, config.CacheConfig{RedisPrefix: "calc:"}, zerolog.Nop())

		got, err := cached.Resolve(ctx, query)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "abc", got.Hash)
		assert.Equal(t, int32(1), stub.calls.Load())
	})

	t.Run("cancelled caller does not fail the shared lookup", func(t *testing.T) {
		catalog := &blockingCatalog{started: make(chan struct{}), release: make(chan struct{})}
		cached := NewCachedFactorCatalog(catalog, nil, config.CacheConfig{}, zerolog.Nop())

		firstCtx, cancel := context.WithCancel(ctx)
		firstErr := make(chan error, 1)
		go func() {
			_, err := cached.Resolve(firstCtx, query)
			firstErr <- err
		}()

		<-catalog.started
		cancel()
		assert.ErrorIs(t, <-firstErr, context.Canceled)

		second := make(chan *models.ResolvedFactor, 1)
		secondErr := make(chan error, 1)
		go func() {
			got, err := cached.Resolve(ctx, query)
			second <- got
			secondErr <- err
		}()

		close(catalog.release)
		require.NoError(t, <-secondErr)
		got := <-second
		require.NotNil(t, got)
		assert.Equal(t, "abc", got.Hash)
		assert.Equal(t, "<nil>", catalog.ctxErr.Load())
	})

	t.Run("resolver over cache", func(t *testing.T) {
		resolver := NewFactorResolver(NewCachedFactorCatalog(&stubCatalog{}, nil, config.CacheConfig{}, zerolog.Nop()))
		_, err := resolver.Resolve(ctx, query)
		assert.True(t, IsNoApplicableFactor(err))
	})
}

func TestFactorCacheKey(t *testing.T) {
	cfg := config.CacheConfig{RedisPrefix: "calc:"}

	key := factorCacheKey(cfg, models.FactorQuery{
		Category:      models.CategoryTransport,
		Subcategory:   utils.ToPtr("bus"),
		Country:       " cl",
		ReferenceDate: testingutil.Date(2024, time.June, 1),
	})
	assert.Equal(t, "calc:factor:transport:bus:CL:2024-06-01", key)

	key = factorCacheKey(cfg, models.FactorQuery{
		Category:      models.CategoryElectricity,
		ReferenceDate: testingutil.Date(2024, time.June, 1),
	})
	assert.Equal(t, "calc:factor:electricity:*::2024-06-01", key)
}
