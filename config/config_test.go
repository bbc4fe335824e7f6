package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123"

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "6066", cfg.ServerPort)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 120, cfg.IngestRateLimit)
	assert.Equal(t, 300, cfg.RouteMaxPoints)
	assert.Equal(t, 5*time.Second, cfg.LivePushInterval)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestNewConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_port: "8080"
database_driver: memory
database_dsn: ""
jwt_secret: `+testSecret+`
timezone: America/Mazatlan
route_max_points: 500
live_push_interval: 10s
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("INGEST_RATE_LIMIT", "60")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "memory", cfg.DatabaseDriver)
	assert.Equal(t, 60, cfg.IngestRateLimit)
	assert.Equal(t, 500, cfg.RouteMaxPoints)
	assert.Equal(t, 10*time.Second, cfg.LivePushInterval)
	assert.Equal(t, "America/Mazatlan", cfg.Location.String())
}

func TestNewConfig_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret": {"JWT_SECRET": ""},
		"bad driver":     {"JWT_SECRET": testSecret, "DATABASE_DRIVER": "mysql"},
		"bad zone":       {"JWT_SECRET": testSecret, "TIMEZONE": "Mars/Olympus"},
		"bad int":        {"JWT_SECRET": testSecret, "ROUTE_MAX_POINTS": "many"},
		"bad interval":   {"JWT_SECRET": testSecret, "LIVE_PUSH_INTERVAL": "100ms"},
		"sqlite no dsn":  {"JWT_SECRET": testSecret, "DATABASE_DSN": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := NewConfig()
			assert.Error(t, err)
		})
	}
}

func TestNewRedisClient(t *testing.T) {
	client, err := NewRedisClient(&Config{})
	require.NoError(t, err)
	assert.Nil(t, client)

	mr := miniredis.RunT(t)
	client, err = NewRedisClient(&Config{RedisAddr: mr.Addr()})
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()
}
