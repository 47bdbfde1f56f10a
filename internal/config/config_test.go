package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8787", c.Hub.Listen)
	assert.True(t, c.WebAccess.Enabled)
	assert.Equal(t, "0.0.0.0", c.WebAccess.Host)
	assert.Equal(t, 8800, c.WebAccess.PortStart)
	assert.Equal(t, 8899, c.WebAccess.PortEnd)
	assert.Equal(t, 5*time.Minute, c.WebAccess.TokenTTL)
	assert.Equal(t, 10*time.Second, c.WebAccess.AuthTimeout)
	assert.Equal(t, 1024, c.Events.Capacity)
	assert.Equal(t, "memory", c.Store.Backend)
	assert.Equal(t, "info", c.Log.Level)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chorus.yaml")
	yaml := `
hub:
  listen: 127.0.0.1:9000
web_access:
  port_start: 9100
  port_end: 9110
  auth_timeout: 3s
store:
  backend: redis
redis:
  url: redis://localhost:6379/0
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", c.Hub.Listen)
	assert.Equal(t, 9100, c.WebAccess.PortStart)
	assert.Equal(t, 9110, c.WebAccess.PortEnd)
	assert.Equal(t, 3*time.Second, c.WebAccess.AuthTimeout)
	assert.Equal(t, "redis", c.Store.Backend)
	assert.Equal(t, "json", c.Log.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHORUS_HUB_LISTEN", "127.0.0.1:7000")
	t.Setenv("CHORUS_LOG_LEVEL", "warn")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", c.Hub.Listen)
	assert.Equal(t, "warn", c.Log.Level)
}

func TestLoadNestedEnvOverrides(t *testing.T) {
	t.Setenv("CHORUS_WEB_ACCESS_PORT_START", "8900")
	t.Setenv("CHORUS_WEB_ACCESS_PORT_END", "8910")
	t.Setenv("CHORUS_WEB_ACCESS_TOKEN_TTL", "2m")
	t.Setenv("CHORUS_WEB_ACCESS_ENABLED", "false")
	t.Setenv("CHORUS_EVENTS_CAPACITY", "32")
	t.Setenv("CHORUS_LOG_FORMAT", "json")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8900, c.WebAccess.PortStart)
	assert.Equal(t, 8910, c.WebAccess.PortEnd)
	assert.Equal(t, 2*time.Minute, c.WebAccess.TokenTTL)
	assert.False(t, c.WebAccess.Enabled)
	assert.Equal(t, 32, c.Events.Capacity)
	assert.Equal(t, "json", c.Log.Format)
}

func TestLoadValidation(t *testing.T) {
	t.Run("postgres needs dsn", func(t *testing.T) {
		t.Setenv("CHORUS_STORE_BACKEND", "postgres")
		_, err := Load("")
		assert.ErrorContains(t, err, "db.dsn is required")
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("CHORUS_STORE_BACKEND", "etcd")
		_, err := Load("")
		assert.ErrorContains(t, err, "unknown store.backend")
	})

	t.Run("inverted port range", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "c.yaml")
		require.NoError(t, os.WriteFile(path, []byte("web_access:\n  port_start: 9000\n  port_end: 8000\n"), 0o644))
		_, err := Load(path)
		assert.ErrorContains(t, err, "port range")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "read config")
	})
}
