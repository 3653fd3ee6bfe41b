package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", " 123:abc ")
	for _, k := range []string{"DATABASE_URL", "DELIVERY_FEE", "PORT"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "5", cfg.Delivery.Fee.String())
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.False(t, cfg.RemoteEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "tok")
	t.Setenv("ADMIN_ID", "42")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/pizzaria")
	t.Setenv("DELIVERY_FEE", "7.50")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Telegram.AdminID)
	assert.True(t, cfg.RemoteEnabled())
	assert.Equal(t, "7.5", cfg.Delivery.Fee.String())
	assert.Equal(t, "/tmp/x.db", cfg.DB.SQLitePath)
}

func TestValidate_MissingToken(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingToken)
}
