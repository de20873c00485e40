package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RoomMetrics - Prometheus-метрики симуляции комнат.
// Методы безопасны для nil-получателя: комната без метрик просто
// ничего не пишет.
type RoomMetrics struct {
	rooms        prometheus.Gauge
	players      *prometheus.GaugeVec
	enemies      *prometheus.GaugeVec
	tickDuration *prometheus.HistogramVec
	intents      *prometheus.CounterVec
	enemyKills   *prometheus.CounterVec
	enemySpawns  *prometheus.CounterVec
	lootItems    *prometheus.CounterVec
	lootGold     prometheus.Counter
	worldEvents  *prometheus.CounterVec
	droppedSends prometheus.Counter
	panics       *prometheus.CounterVec
	playerDeaths prometheus.Counter
}

// NewRoomMetrics создаёт и регистрирует метрики. reg == nil означает
// глобальный регистр.
func NewRoomMetrics(reg prometheus.Registerer) *RoomMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &RoomMetrics{
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lumoria",
			Name:      "rooms_active",
			Help:      "Количество работающих комнат.",
		}),
		players: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lumoria",
			Name:      "room_players",
			Help:      "Игроков в комнате.",
		}, []string{"room"}),
		enemies: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lumoria",
			Name:      "room_enemies",
			Help:      "Врагов в комнате.",
		}, []string{"room"}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lumoria",
			Name:      "room_tick_duration_seconds",
			Help:      "Длительность тика комнаты.",
			Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}, []string{"room"}),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumoria",
			Name:      "intents_total",
			Help:      "Входящие намерения клиентов по типу.",
		}, []string{"type"}),
		enemyKills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumoria",
			Name:      "enemy_kills_total",
			Help:      "Убитые враги по архетипу.",
		}, []string{"enemy_type"}),
		enemySpawns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumoria",
			Name:      "enemy_spawns_total",
			Help:      "Появившиеся враги по архетипу.",
		}, []string{"enemy_type", "boss"}),
		lootItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumoria",
			Name:      "loot_items_total",
			Help:      "Выпавшие предметы по редкости.",
		}, []string{"rarity"}),
		lootGold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lumoria",
			Name:      "loot_gold_total",
			Help:      "Выпавшее золото.",
		}),
		worldEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumoria",
			Name:      "world_events_total",
			Help:      "Выполненные мировые события по типу.",
		}, []string{"type"}),
		droppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lumoria",
			Name:      "client_messages_dropped_total",
			Help:      "Сообщения, отброшенные из-за переполненной очереди клиента.",
		}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumoria",
			Name:      "room_panics_total",
			Help:      "Перехваченные паники по стадии обработки.",
		}, []string{"stage"}),
		playerDeaths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lumoria",
			Name:      "player_deaths_total",
			Help:      "Погибшие игроки.",
		}),
	}

	reg.MustRegister(
		m.rooms, m.players, m.enemies, m.tickDuration, m.intents,
		m.enemyKills, m.enemySpawns, m.lootItems, m.lootGold,
		m.worldEvents, m.droppedSends, m.panics, m.playerDeaths,
	)
	return m
}

func (m *RoomMetrics) RoomOpened() {
	if m != nil {
		m.rooms.Inc()
	}
}

// RoomClosed уменьшает счётчик комнат и убирает серии комнаты
func (m *RoomMetrics) RoomClosed(room string) {
	if m == nil {
		return
	}
	m.rooms.Dec()
	m.players.DeleteLabelValues(room)
	m.enemies.DeleteLabelValues(room)
	m.tickDuration.DeleteLabelValues(room)
}

// ObserveTick фиксирует длительность тика и размер комнаты
func (m *RoomMetrics) ObserveTick(room string, elapsed time.Duration, players, enemies int) {
	if m == nil {
		return
	}
	m.tickDuration.WithLabelValues(room).Observe(elapsed.Seconds())
	m.players.WithLabelValues(room).Set(float64(players))
	m.enemies.WithLabelValues(room).Set(float64(enemies))
}

func (m *RoomMetrics) Intent(msgType string) {
	if m != nil {
		m.intents.WithLabelValues(msgType).Inc()
	}
}

func (m *RoomMetrics) EnemySpawned(enemyType string, boss bool) {
	if m == nil {
		return
	}
	label := "false"
	if boss {
		label = "true"
	}
	m.enemySpawns.WithLabelValues(enemyType, label).Inc()
}

// EnemyKilled учитывает убийство и выпавшую добычу
func (m *RoomMetrics) EnemyKilled(enemyType string, rarities []string, gold int64) {
	if m == nil {
		return
	}
	m.enemyKills.WithLabelValues(enemyType).Inc()
	for _, r := range rarities {
		m.lootItems.WithLabelValues(r).Inc()
	}
	if gold > 0 {
		m.lootGold.Add(float64(gold))
	}
}

func (m *RoomMetrics) PlayerDied() {
	if m != nil {
		m.playerDeaths.Inc()
	}
}

func (m *RoomMetrics) WorldEvent(eventType string) {
	if m != nil {
		m.worldEvents.WithLabelValues(eventType).Inc()
	}
}

func (m *RoomMetrics) SendDropped() {
	if m != nil {
		m.droppedSends.Inc()
	}
}

func (m *RoomMetrics) Panic(stage string) {
	if m != nil {
		m.panics.WithLabelValues(stage).Inc()
	}
}
