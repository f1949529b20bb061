package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("SWEEP_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 6*time.Hour, cfg.Sweeper.Interval)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.False(t, cfg.Bot.Enabled())
}

func TestLoadPostgresRequiresUser(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DB_USER", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_USER is required")
}

func TestLoadRejectsMemoryStoreInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_DRIVER", "memory")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadBotNeedsAdmins(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("ADMIN_IDS", "42, 7 ,oops")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int64{42, 7}, cfg.Bot.AdminIDs)
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "90m")
	assert.Equal(t, 90*time.Minute, getEnvAsDuration("SWEEP_INTERVAL", time.Hour))

	t.Setenv("SWEEP_INTERVAL", "soon")
	assert.Equal(t, time.Hour, getEnvAsDuration("SWEEP_INTERVAL", time.Hour))
}
