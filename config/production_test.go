package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("JWT_SECRET_KEY", "0123456789abcdef0123456789abcdef")
}

func TestLoadProductionConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		validEnv(t)

		cfg, err := LoadProductionConfig()
		require.NoError(t, err)

		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
		assert.Equal(t, 20, cfg.Calc.DefaultPageSize)
		assert.Equal(t, 100, cfg.Calc.MaxPageSize)
		assert.Equal(t, 30*time.Second, cfg.Calc.RequestTimeout)
		assert.Equal(t, 5*time.Minute, cfg.Cache.FactorTTL)
		assert.False(t, cfg.Cache.Enabled)
	})

	t.Run("overrides", func(t *testing.T) {
		validEnv(t)
		t.Setenv("DB_DRIVER", "sqlite")
		t.Setenv("DB_SQLITE_PATH", "/tmp/calc.db")
		t.Setenv("CACHE_FACTOR_TTL", "90s")
		t.Setenv("CALC_MAX_PAGE_SIZE", "50")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

		cfg, err := LoadProductionConfig()
		require.NoError(t, err)

		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
		assert.Equal(t, "/tmp/calc.db", cfg.Database.SQLitePath)
		assert.Equal(t, 90*time.Second, cfg.Cache.FactorTTL)
		assert.Equal(t, 50, cfg.Calc.MaxPageSize)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	})
}

func TestValidateProductionConfig(t *testing.T) {
	validEnv(t)
	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(c *ProductionConfig)
		wantMsg string
	}{
		{name: "unknown driver", mutate: func(c *ProductionConfig) { c.Database.Driver = "mysql" }, wantMsg: "DB_DRIVER must be one of"},
		{name: "short jwt secret", mutate: func(c *ProductionConfig) { c.JWT.SecretKey = "short" }, wantMsg: "JWT_SECRET_KEY must be at least 32"},
		{name: "bad log level", mutate: func(c *ProductionConfig) { c.Logging.Level = "trace" }, wantMsg: "LOG_LEVEL must be one of"},
		{name: "max page below default", mutate: func(c *ProductionConfig) { c.Calc.MaxPageSize = 5 }, wantMsg: "CALC_MAX_PAGE_SIZE"},
		{name: "cache without ttl", mutate: func(c *ProductionConfig) {
			c.Cache.Enabled = true
			c.Cache.FactorTTL = 0
		}, wantMsg: "CACHE_FACTOR_TTL must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *cfg
			tt.mutate(&c)
			err := ValidateProductionConfig(&c)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "configuration validation failed")
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestInitLogger(t *testing.T) {
	t.Run("stdout with parsed level", func(t *testing.T) {
		logger, closer, err := InitLogger(LoggingConfig{Level: "warn", Output: "stdout"})
		require.NoError(t, err)
		defer closer.Close()
		assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		logger, closer, err := InitLogger(LoggingConfig{Level: "loud", Output: "stdout"})
		require.NoError(t, err)
		defer closer.Close()
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})

	t.Run("file output rotates", func(t *testing.T) {
		dir := t.TempDir()
		logger, closer, err := InitLogger(LoggingConfig{
			Level:    "info",
			Output:   "file",
			FilePath: dir + "/logs/calc.log",
			MaxSize:  1,
		})
		require.NoError(t, err)
		logger.Info().Msg("hello")
		require.NoError(t, closer.Close())
		assert.FileExists(t, dir+"/logs/calc.log")
	})

	t.Run("file output requires path", func(t *testing.T) {
		_, _, err := InitLogger(LoggingConfig{Output: "file"})
		assert.Error(t, err)
	})
}
