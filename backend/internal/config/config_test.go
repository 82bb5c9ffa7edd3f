package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORAGE", "TOKEN_TTL", "QUOTE_TIMEOUT", "QUOTE_CACHE_TTL", "QUOTE_TICK_INTERVAL", "STARTING_CASH", "JWT_SECRET", "APP_ENV"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StoragePostgres, cfg.Database.Storage)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.Quote.Timeout)
	assert.Zero(t, cfg.Quote.CacheTTL)
	assert.Equal(t, 2*time.Second, cfg.Quote.TickInterval)
	assert.True(t, cfg.Ledger.StartingCash.Equal(decimal.NewFromInt(10000)))
	assert.NotEmpty(t, cfg.Auth.JWTSecret)
	assert.True(t, cfg.Development())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE", "Memory")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("STARTING_CASH", "2500.50")
	t.Setenv("QUOTE_BASE_URL", "http://quotes.local/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Database.Storage)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "2500.5", cfg.Ledger.StartingCash.String())
	assert.Equal(t, "http://quotes.local", cfg.Quote.BaseURL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"TOKEN_TTL":     "forever",
		"STARTING_CASH": "lots",
		"STORAGE":       "sqlite",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}
