package room

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/lumoria-live/internal/vec"
	"github.com/annel0/lumoria-live/internal/world"
	"github.com/annel0/lumoria-live/internal/world/entity"
	"github.com/annel0/lumoria-live/internal/worldevent"
)

// Stats - снимок комнаты, публикуемый после каждого тика. Читается
// без обращения к горутине комнаты.
type Stats struct {
	ID                 string        `json:"id"`
	Players            int           `json:"players"`
	MaxClients         int           `json:"maxClients"`
	Enemies            int           `json:"enemies"`
	WorldTime          int64         `json:"worldTime"`
	DayNightCycle      float64       `json:"dayNightCycle"`
	IsDay              bool          `json:"isDay"`
	Weather            world.Weather `json:"weather"`
	TickRate           int           `json:"tickRate"`
	LastTick           time.Duration `json:"lastTickNs"`
	SpawnBoost         float64       `json:"spawnBoost"`
	PendingWorldEvents int           `json:"pendingWorldEvents"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

func (r *Room) publishStats(now time.Time) {
	boost := 1.0
	if now.Before(r.boostUntil) {
		boost = r.boostFactor
	}
	r.stats.Store(Stats{
		ID:                 r.id,
		Players:            r.state.PlayerCount(),
		MaxClients:         r.opts.MaxClients,
		Enemies:            r.state.EnemyCount(),
		WorldTime:          r.state.WorldTime,
		DayNightCycle:      r.state.DayNightCycle,
		IsDay:              r.state.IsDay(),
		Weather:            r.state.Weather,
		TickRate:           r.state.TickRate,
		LastTick:           r.lastTick,
		SpawnBoost:         boost,
		PendingWorldEvents: r.sched.Len(),
		UpdatedAt:          now,
	})
}

// Stats возвращает последний опубликованный снимок
func (r *Room) Stats() Stats {
	s, _ := r.stats.Load().(Stats)
	return s
}

// Snapshot - полная копия состояния комнаты для чтения вне тика
type Snapshot struct {
	Stats       Stats              `json:"stats"`
	Players     []entity.Player    `json:"players"`
	Enemies     []entity.Enemy     `json:"enemies"`
	WorldEvents []worldevent.Event `json:"worldEvents"`
}

// Snapshot копирует игроков, врагов и очередь мировых событий
func (r *Room) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := r.Do(ctx, func(r *Room) {
		snap.Stats = r.Stats()
		for _, p := range r.state.Players() {
			snap.Players = append(snap.Players, *p)
		}
		for _, e := range r.state.Enemies() {
			snap.Enemies = append(snap.Enemies, *e)
		}
		snap.WorldEvents = r.sched.Pending()
	})
	return snap, err
}

// Events возвращает копию кольца последних событий
func (r *Room) Events(ctx context.Context) ([]world.GameEvent, error) {
	var events []world.GameEvent
	err := r.Do(ctx, func(r *Room) {
		events = r.state.Events()
	})
	return events, err
}

// WorldEventRequest - ручной запуск мирового события
type WorldEventRequest struct {
	Type         worldevent.Type
	Weather      world.Weather
	BossType     *entity.EnemyType
	SpawnArea    string
	Position     *vec.Vec3
	TreasureType string
	Message      string
	Kind         string
}

// Validate проверяет параметры до постановки в очередь комнаты
func (req WorldEventRequest) Validate() error {
	switch req.Type {
	case worldevent.DayNightTransition, worldevent.BossSpawn:
	case worldevent.WeatherChange:
		if req.Weather != "" && !req.Weather.Valid() {
			return fmt.Errorf("unknown weather %q", req.Weather)
		}
	case worldevent.TreasureSpawn:
		if req.Position != nil && !req.Position.IsFinite() {
			return fmt.Errorf("treasure position is not finite")
		}
	case worldevent.WorldAnnouncement:
		if req.Message == "" {
			return fmt.Errorf("announcement message is empty")
		}
	default:
		return fmt.Errorf("unknown world event type %d", req.Type)
	}
	return nil
}

// TriggerWorldEvent ставит мировое событие с нулевой задержкой по часам комнаты
func (r *Room) TriggerWorldEvent(ctx context.Context, req WorldEventRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return r.Do(ctx, func(r *Room) {
		now := r.opts.Clock()
		switch req.Type {
		case worldevent.DayNightTransition:
			r.sched.TriggerDayNightTransition(now)
		case worldevent.WeatherChange:
			r.sched.TriggerWeatherChange(req.Weather, now)
		case worldevent.BossSpawn:
			r.sched.TriggerBossSpawn(req.BossType, req.SpawnArea, now)
		case worldevent.TreasureSpawn:
			r.sched.TriggerTreasureSpawn(req.Position, req.TreasureType, now)
		case worldevent.WorldAnnouncement:
			r.sched.AnnounceToWorld(req.Message, req.Kind, now)
		}
		r.logger.Info("🌍 Ручное мировое событие %s в комнате %s", req.Type, r.id)
	})
}
