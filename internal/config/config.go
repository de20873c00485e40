package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/annel0/lumoria-live/internal/logging"
	"github.com/annel0/lumoria-live/internal/storage"
)

// Config корневая структура конфигурации приложения.
// Пустые поля заполняются из переменных окружения или значений по умолчанию
// через Get-методы: config -> env -> default.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Room      RoomConfig      `yaml:"room"`
	Loot      LootConfig      `yaml:"loot"`
	Auth      AuthConfig      `yaml:"auth"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Journal   JournalConfig   `yaml:"journal"`
	Presence  PresenceConfig  `yaml:"presence"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	KCPPort        int      `yaml:"kcp_port"`
	RESTPort       int      `yaml:"rest_port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	NodeID         string   `yaml:"node_id"`
}

type RoomConfig struct {
	TickRate      int           `yaml:"tick_rate"`
	MaxClients    int           `yaml:"max_clients"`
	MaxEnemies    int           `yaml:"max_enemies"`
	SpawnInterval time.Duration `yaml:"spawn_interval"`
	DefaultRoom   string        `yaml:"default_room"`
	InboxSize     int           `yaml:"inbox_size"`
	Seed          int64         `yaml:"seed"`
}

type LootConfig struct {
	TablesFile string `yaml:"tables_file"`
}

type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	Issuer       string `yaml:"issuer"`
	RequireToken bool   `yaml:"require_token"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	QueueSize int    `yaml:"queue_size"`
}

type JournalConfig struct {
	Backend    string      `yaml:"backend"`
	BadgerPath string      `yaml:"badger_path"`
	Maria      MariaConfig `yaml:"maria"`
	Mongo      MongoConfig `yaml:"mongo"`
}

type MariaConfig struct {
	DSN string `yaml:"dsn"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type PresenceConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
	Interval      time.Duration `yaml:"interval"`
}

type TelemetryConfig struct {
	Enabled     *bool   `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type LoggingConfig struct {
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
	Dir          string `yaml:"dir"`
	FileEnabled  bool   `yaml:"file_enabled"`
}

// GetKCPPort возвращает KCP порт с поддержкой fallback значений
func (s *ServerConfig) GetKCPPort() int {
	return getIntWithEnvFallback(s.KCPPort, "GAME_KCP_PORT", 7777)
}

// GetRESTPort возвращает порт REST API, /ws и /metrics
func (s *ServerConfig) GetRESTPort() int {
	return getIntWithEnvFallback(s.RESTPort, "GAME_REST_PORT", 8088)
}

// GetNodeID - имя узла в реестре комнат
func (s *ServerConfig) GetNodeID() string {
	if s.NodeID != "" {
		return s.NodeID
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "lumoria-1"
}

func (r *RoomConfig) GetTickRate() int {
	return getIntWithEnvFallback(r.TickRate, "WORLD_TICK_RATE", 20)
}

func (r *RoomConfig) GetMaxClients() int {
	return getIntWithEnvFallback(r.MaxClients, "MAX_CLIENTS_PER_ROOM", 50)
}

func (r *RoomConfig) GetMaxEnemies() int {
	if r.MaxEnemies > 0 {
		return r.MaxEnemies
	}
	return 20
}

func (r *RoomConfig) GetSpawnInterval() time.Duration {
	if r.SpawnInterval > 0 {
		return r.SpawnInterval
	}
	return 30 * time.Second
}

func (r *RoomConfig) GetDefaultRoom() string {
	if r.DefaultRoom != "" {
		return r.DefaultRoom
	}
	return "game"
}

func (r *RoomConfig) GetInboxSize() int {
	if r.InboxSize > 0 {
		return r.InboxSize
	}
	return 1024
}

// GetTablesFile - файл таблиц лута; пусто - встроенные таблицы
func (l *LootConfig) GetTablesFile() string {
	return getStringWithEnvFallback(l.TablesFile, "LOOT_TABLES_FILE", "")
}

// GetJWTSecret - base64 секрет; пусто - случайный на процесс
func (a *AuthConfig) GetJWTSecret() string {
	return getStringWithEnvFallback(a.JWTSecret, "JWT_SECRET", "")
}

// GetURL - адрес NATS; пусто - шина в памяти процесса
func (e *EventBusConfig) GetURL() string {
	return getStringWithEnvFallback(e.URL, "NATS_URL", "")
}

func (e *EventBusConfig) GetRetention() time.Duration {
	if e.Retention > 0 {
		return time.Duration(e.Retention) * time.Hour
	}
	return 24 * time.Hour
}

// GetBackend возвращает бэкенд журнала; по умолчанию память
func (j *JournalConfig) GetBackend() storage.Backend {
	return storage.Backend(strings.ToLower(getStringWithEnvFallback(j.Backend, "JOURNAL_BACKEND", string(storage.BackendMemory))))
}

// StorageConfig переводит секцию в конфигурацию пакета storage
func (j *JournalConfig) StorageConfig() storage.Config {
	path := j.BadgerPath
	if path == "" {
		path = "data/journal"
	}
	return storage.Config{
		Backend:    j.GetBackend(),
		BadgerPath: path,
		MariaDSN:   j.Maria.DSN,
		Mongo: storage.MongoConfig{
			URI:        j.Mongo.URI,
			Database:   j.Mongo.Database,
			Collection: j.Mongo.Collection,
		},
	}
}

// GetRedisAddr - адрес Redis; пусто - реестр в памяти
func (p *PresenceConfig) GetRedisAddr() string {
	return getStringWithEnvFallback(p.RedisAddr, "REDIS_URL", "")
}

// IsEnabled читает telemetry.enabled, затем OTEL_ENABLED
func (t *TelemetryConfig) IsEnabled() bool {
	if t.Enabled != nil {
		return *t.Enabled
	}
	if v, err := strconv.ParseBool(os.Getenv("OTEL_ENABLED")); err == nil {
		return v
	}
	return false
}

func (t *TelemetryConfig) GetServiceName() string {
	if t.ServiceName != "" {
		return t.ServiceName
	}
	return "lumoria-live"
}

// LoggerConfig переводит секцию в конфигурацию логгеров
func (l *LoggingConfig) LoggerConfig() (logging.Config, error) {
	cfg := logging.DefaultConfig()
	var err error
	if cfg.ConsoleLevel, err = logging.ParseLevel(l.ConsoleLevel); err != nil {
		return cfg, err
	}
	if l.FileLevel != "" {
		if cfg.FileLevel, err = logging.ParseLevel(l.FileLevel); err != nil {
			return cfg, err
		}
	}
	if l.Dir != "" {
		cfg.Dir = l.Dir
	}
	cfg.FileEnabled = l.FileEnabled
	return cfg, nil
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	// Если значение задано в конфиге и больше 0, используем его
	if configValue > 0 {
		return configValue
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	return defaultValue
}

func getStringWithEnvFallback(configValue, envVar, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultValue
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV LUMORIA_CONFIG; без файла
// возвращает пустую конфигурацию (все значения по умолчанию).
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("LUMORIA_CONFIG")
		if path == "" {
			return &Config{}, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
