package cache

import (
	"context"
	"sort"
	"time"
)

// DefaultPresenceTTL - время жизни записи о комнате без обновлений
const DefaultPresenceTTL = 15 * time.Second

// RoomPresence - публичная информация о живой комнате для лобби и
// балансировщиков. Обновляется вне пути тика.
type RoomPresence struct {
	RoomID     string    `json:"roomId"`
	Node       string    `json:"node"`
	Players    int       `json:"players"`
	MaxClients int       `json:"maxClients"`
	Enemies    int       `json:"enemies"`
	Weather    string    `json:"weather"`
	IsDay      bool      `json:"isDay"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Presence - реестр комнат. Записи без обновлений исчезают по TTL.
//
// Использование:
//
//	p := NewMemoryPresence(0)
//	err := p.Publish(ctx, entries)
//	rooms, err := p.Rooms(ctx)
type Presence interface {
	// Publish обновляет записи и продлевает их TTL.
	Publish(ctx context.Context, entries []RoomPresence) error
	// Remove удаляет запись о комнате.
	Remove(ctx context.Context, roomID string) error
	// Rooms возвращает живые записи, отсортированные по RoomID.
	Rooms(ctx context.Context) ([]RoomPresence, error)
	Close() error
}

// Config содержит конфигурацию реестра.
type Config struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
	Node          string        `yaml:"node"`
}

// New выбирает реализацию: Redis при заданном адресе, иначе память процесса.
func New(ctx context.Context, cfg Config) (Presence, error) {
	if cfg.RedisAddr == "" {
		return NewMemoryPresence(cfg.TTL), nil
	}
	return NewRedisPresence(ctx, cfg)
}

func sortByRoom(entries []RoomPresence) {
	sort.Slice(entries, func(i, k int) bool { return entries[i].RoomID < entries[k].RoomID })
}
