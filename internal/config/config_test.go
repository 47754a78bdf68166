package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REMOTE_DRIVER", "")
	t.Setenv("SHOP_TIMEZONE", "UTC")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, DriverNone, cfg.RemoteDriver)
	assert.Equal(t, 10*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, 2*time.Hour, cfg.EditWindow)
	assert.Equal(t, 30*time.Minute, cfg.DisplayEditWindow)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoad_DotEnvAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("REMOTE_DRIVER=memory\nDRAIN_INTERVAL=45\nEDIT_WINDOW=90m\n"), 0o600))
	t.Setenv("EDIT_WINDOW", "1h")
	t.Setenv("SHOP_TIMEZONE", "UTC")
	t.Cleanup(func() {
		_ = os.Unsetenv("REMOTE_DRIVER")
		_ = os.Unsetenv("DRAIN_INTERVAL")
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.RemoteDriver)
	assert.Equal(t, 45*time.Second, cfg.DrainInterval)
	assert.Equal(t, time.Hour, cfg.EditWindow, "environment wins over .env")
}

func TestLoad_RequiresDriverSettings(t *testing.T) {
	t.Setenv("REMOTE_DRIVER", DriverPostgres)
	t.Setenv("REMOTE_DATABASE_URL", "")
	t.Setenv("SHOP_TIMEZONE", "UTC")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "REMOTE_DATABASE_URL")

	t.Setenv("REMOTE_DRIVER", "ftp")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "unknown REMOTE_DRIVER")
}
