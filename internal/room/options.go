package room

import (
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/annel0/lumoria-live/internal/ai"
	"github.com/annel0/lumoria-live/internal/loot"
	"github.com/annel0/lumoria-live/internal/metrics"
	"github.com/annel0/lumoria-live/internal/world"
)

const (
	DefaultTickRate      = world.DefaultTickRate
	DefaultMaxClients    = 50
	DefaultSpawnInterval = 30 * time.Second
	DefaultInboxSize     = 1024

	ServerVersion = "0.3.0"
)

// Rand - источник случайности комнаты. Не должен разделяться между
// комнатами: *rand.Rand не потокобезопасен.
type Rand = ai.Rand

// EventSink получает каждое событие журнала комнаты. Вызывается из
// горутины комнаты и не должен блокироваться.
type EventSink func(roomID string, ev world.GameEvent)

// Options настраивает комнату
type Options struct {
	TickRate      int
	MaxClients    int
	MaxEnemies    int
	SpawnInterval time.Duration
	InboxSize     int

	Loot      *loot.Engine
	EventSink EventSink
	Metrics   *metrics.RoomMetrics

	// Seed задаёт генератор случайных чисел; 0 - от текущего времени.
	// Каждая комната смешивает его со своим id.
	Seed int64
	// Rand и Clock подменяются в тестах
	Rand  Rand
	Clock func() time.Time
}

func (o Options) withDefaults(roomID string) Options {
	if o.TickRate <= 0 {
		o.TickRate = DefaultTickRate
	}
	if o.MaxClients <= 0 {
		o.MaxClients = DefaultMaxClients
	}
	if o.MaxEnemies <= 0 {
		o.MaxEnemies = ai.DefaultMaxEnemies
	}
	if o.SpawnInterval <= 0 {
		o.SpawnInterval = DefaultSpawnInterval
	}
	if o.InboxSize <= 0 {
		o.InboxSize = DefaultInboxSize
	}
	if o.Loot == nil {
		o.Loot = loot.NewEngine(nil)
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Rand == nil {
		seed := o.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		o.Rand = rand.New(rand.NewSource(roomSeed(roomID, seed)))
	}
	return o
}

// roomSeed разводит потоки случайных чисел комнат с общим Seed
func roomSeed(roomID string, seed int64) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(roomID))
	return seed ^ int64(h.Sum64())
}
