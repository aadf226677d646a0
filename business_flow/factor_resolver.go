package businessflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/amirphl/ecoestudiante-calc/config"
	"github.com/amirphl/ecoestudiante-calc/models"
	"github.com/amirphl/ecoestudiante-calc/repository"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// FactorResolver selects the single emission factor applicable to a calculation.
type FactorResolver interface {
	// Resolve returns ErrNoApplicableFactor when no row matches.
	Resolve(ctx context.Context, q models.FactorQuery) (*models.ResolvedFactor, error)
}

// FactorResolverImpl implements FactorResolver on top of a FactorCatalog.
type FactorResolverImpl struct {
	catalog repository.FactorCatalog
}

// NewFactorResolver creates a resolver reading from the given catalog.
func NewFactorResolver(catalog repository.FactorCatalog) FactorResolver {
	return &FactorResolverImpl{catalog: catalog}
}

func (r *FactorResolverImpl) Resolve(ctx context.Context, q models.FactorQuery) (*models.ResolvedFactor, error) {
	q.Country = strings.ToUpper(strings.TrimSpace(q.Country))
	q.ReferenceDate = q.ReferenceDate.UTC()

	factor, err := r.catalog.Resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	if factor == nil {
		return nil, NewBusinessErrorf(
			"FACTOR_NOT_FOUND",
			"no applicable factor for category=%s subcategory=%s country=%s date=%s",
			ErrNoApplicableFactor,
			q.Category, subcategoryString(q.Subcategory), q.Country, q.ReferenceDate.Format(time.DateOnly),
		)
	}
	return factor, nil
}

func subcategoryString(s *string) string {
	if s == nil {
		return "*"
	}
	return *s
}

// CachedFactorCatalog is a read-through FactorCatalog with a short TTL.
// Only hits are cached. Concurrent misses for the same tuple share one lookup,
// and cache failures fall back to the wrapped catalog.
type CachedFactorCatalog struct {
	next   repository.FactorCatalog
	rc     *redis.Client
	config config.CacheConfig
	group  singleflight.Group
	logger zerolog.Logger
}

// NewCachedFactorCatalog wraps next. A nil client keeps request coalescing without redis.
func NewCachedFactorCatalog(next repository.FactorCatalog, rc *redis.Client, cfg config.CacheConfig, logger zerolog.Logger) *CachedFactorCatalog {
	return &CachedFactorCatalog{
		next:   next,
		rc:     rc,
		config: cfg,
		logger: logger.With().Str("component", "factor_cache").Logger(),
	}
}

func (c *CachedFactorCatalog) Resolve(ctx context.Context, q models.FactorQuery) (*models.ResolvedFactor, error) {
	key := factorCacheKey(c.config, q)

	if c.rc != nil {
		bs, err := c.rc.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var cached models.ResolvedFactor
			if err := json.Unmarshal(bs, &cached); err == nil {
				return &cached, nil
			}
			c.logger.Warn().Str("key", key).Msg("discarding unreadable cached factor")
		case !errors.Is(err, redis.Nil):
			c.logger.Warn().Err(err).Str("key", key).Msg("factor cache read failed")
		}
	}

	// The shared lookup outlives any single caller; each caller still honors its own ctx.
	lookupCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.next.Resolve(lookupCtx, q)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	factor, _ := res.Val.(*models.ResolvedFactor)
	if factor == nil {
		return nil, nil
	}

	if c.rc != nil {
		if bs, err := json.Marshal(factor); err == nil {
			if err := c.rc.Set(ctx, key, bs, c.ttl()).Err(); err != nil {
				c.logger.Warn().Err(err).Str("key", key).Msg("factor cache write failed")
			}
		}
	}

	out := *factor
	return &out, nil
}

func (c *CachedFactorCatalog) ttl() time.Duration {
	if c.config.FactorTTL > 0 {
		return c.config.FactorTTL
	}
	return 5 * time.Minute
}

func redisKey(cfg config.CacheConfig, parts ...string) string {
	return cfg.RedisPrefix + strings.Join(parts, ":")
}

func factorCacheKey(cfg config.CacheConfig, q models.FactorQuery) string {
	return redisKey(cfg,
		"factor",
		q.Category,
		subcategoryString(q.Subcategory),
		strings.ToUpper(strings.TrimSpace(q.Country)),
		q.ReferenceDate.UTC().Format(time.DateOnly),
	)
}
