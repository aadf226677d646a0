// Package scheduler runs periodic background jobs owned by the server process
package scheduler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var factorCacheUp = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "factor_cache_up",
	Help: "1 when the factor cache answered the last health ping, 0 otherwise",
})

// CacheHealthMonitor periodically pings the factor cache. Resolution keeps
// working while the cache is down, so failures are only logged and exported.
type CacheHealthMonitor struct {
	client      *redis.Client
	interval    time.Duration
	pingTimeout time.Duration
	logger      zerolog.Logger
	healthy     bool
}

// NewCacheHealthMonitor creates a monitor. interval defaults to 30s.
func NewCacheHealthMonitor(client *redis.Client, interval time.Duration, logger zerolog.Logger) *CacheHealthMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &CacheHealthMonitor{
		client:      client,
		interval:    interval,
		pingTimeout: 3 * time.Second,
		logger:      logger.With().Str("component", "cache_health").Logger(),
		healthy:     true,
	}
}

// Start runs the monitor until the returned stop function is called or parent is done.
func (m *CacheHealthMonitor) Start(parent context.Context) func() {
	if m.client == nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.runOnce(ctx)
			}
		}
	}()

	return cancel
}

// runOnce pings the cache and logs state transitions only.
func (m *CacheHealthMonitor) runOnce(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, m.pingTimeout)
	defer cancel()

	err := m.client.Ping(pingCtx).Err()
	switch {
	case err != nil && m.healthy:
		m.logger.Warn().Err(err).Msg("factor cache unreachable, resolving from database")
	case err == nil && !m.healthy:
		m.logger.Info().Msg("factor cache reachable again")
	}

	m.healthy = err == nil
	if m.healthy {
		factorCacheUp.Set(1)
	} else {
		factorCacheUp.Set(0)
	}
	return m.healthy
}
