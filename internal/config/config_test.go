package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/lumoria-live/internal/logging"
	"github.com/annel0/lumoria-live/internal/storage"
)

func TestDefaults(t *testing.T) {
	t.Setenv("LUMORIA_CONFIG", "")
	for _, env := range []string{"GAME_KCP_PORT", "GAME_REST_PORT", "WORLD_TICK_RATE", "MAX_CLIENTS_PER_ROOM",
		"LOOT_TABLES_FILE", "JWT_SECRET", "NATS_URL", "JOURNAL_BACKEND", "REDIS_URL", "OTEL_ENABLED"} {
		t.Setenv(env, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.GetKCPPort())
	assert.Equal(t, 8088, cfg.Server.GetRESTPort())
	assert.Equal(t, 20, cfg.Room.GetTickRate())
	assert.Equal(t, 50, cfg.Room.GetMaxClients())
	assert.Equal(t, 20, cfg.Room.GetMaxEnemies())
	assert.Equal(t, 30*time.Second, cfg.Room.GetSpawnInterval())
	assert.Equal(t, "game", cfg.Room.GetDefaultRoom())
	assert.Equal(t, 1024, cfg.Room.GetInboxSize())
	assert.Empty(t, cfg.Loot.GetTablesFile())
	assert.Empty(t, cfg.EventBus.GetURL())
	assert.Equal(t, 24*time.Hour, cfg.EventBus.GetRetention())
	assert.Equal(t, storage.BackendMemory, cfg.Journal.GetBackend())
	assert.Empty(t, cfg.Presence.GetRedisAddr())
	assert.False(t, cfg.Telemetry.IsEnabled())
	assert.Equal(t, "lumoria-live", cfg.Telemetry.GetServiceName())
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("WORLD_TICK_RATE", "30")
	t.Setenv("MAX_CLIENTS_PER_ROOM", "abc")
	t.Setenv("GAME_KCP_PORT", "9000")
	t.Setenv("JOURNAL_BACKEND", "Badger")
	t.Setenv("NATS_URL", "nats://nats:4222")
	t.Setenv("OTEL_ENABLED", "true")

	cfg := &Config{}
	assert.Equal(t, 30, cfg.Room.GetTickRate())
	assert.Equal(t, 50, cfg.Room.GetMaxClients(), "некорректное значение env игнорируется")
	assert.Equal(t, 9000, cfg.Server.GetKCPPort())
	assert.Equal(t, storage.BackendBadger, cfg.Journal.GetBackend())
	assert.Equal(t, "nats://nats:4222", cfg.EventBus.GetURL())
	assert.True(t, cfg.Telemetry.IsEnabled())

	cfg.Room.TickRate = 10
	assert.Equal(t, 10, cfg.Room.GetTickRate(), "значение из файла важнее env")
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  kcp_port: 7000
  allowed_origins: ["https://play.example"]
room:
  tick_rate: 25
  spawn_interval: 45s
journal:
  backend: badger
  badger_path: /tmp/j
telemetry:
  enabled: false
logging:
  console_level: debug
  file_enabled: true
  dir: /var/log/lumoria
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.GetKCPPort())
	assert.Equal(t, []string{"https://play.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 25, cfg.Room.GetTickRate())
	assert.Equal(t, 45*time.Second, cfg.Room.GetSpawnInterval())
	assert.False(t, cfg.Telemetry.IsEnabled(), "явное false в файле важнее env")

	sc := cfg.Journal.StorageConfig()
	assert.Equal(t, storage.BackendBadger, sc.Backend)
	assert.Equal(t, "/tmp/j", sc.BadgerPath)

	lc, err := cfg.Logging.LoggerConfig()
	require.NoError(t, err)
	assert.Equal(t, logging.DEBUG, lc.ConsoleLevel)
	assert.True(t, lc.FileEnabled)
	assert.Equal(t, "/var/log/lumoria", lc.Dir)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("room: [1, 2"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)

	bad := LoggingConfig{ConsoleLevel: "loud"}
	_, err = bad.LoggerConfig()
	assert.Error(t, err)
}
