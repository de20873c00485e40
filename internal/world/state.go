package world

import (
	"time"

	"github.com/google/uuid"

	"github.com/annel0/lumoria-live/internal/vec"
	"github.com/annel0/lumoria-live/internal/world/entity"
)

const (
	// CycleLength - длина суток мира
	CycleLength = 24 * time.Minute
	// DefaultTickRate - тиков в секунду по умолчанию
	DefaultTickRate = 20
)

// EventSink получает каждое событие, добавленное в журнал комнаты.
// Вызывается на пути тика и не должен блокироваться.
type EventSink func(GameEvent)

// State - контейнер состояния одной комнаты. Не потокобезопасен:
// единственный писатель - горутина комнаты.
type State struct {
	WorldTime     int64   // Unix ms мирового времени
	DayNightCycle float64 // [0,1)
	Weather       Weather
	TickRate      int

	players     map[string]*entity.Player
	playerOrder []string
	enemies     map[string]*entity.Enemy
	enemyOrder  []string
	events      eventRing
	sink        EventSink
}

// NewState создаёт пустое состояние; мировое время стартует с now
func NewState(now time.Time, tickRate int) *State {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	s := &State{
		WorldTime: now.UnixMilli(),
		Weather:   WeatherClear,
		TickRate:  tickRate,
		players:   make(map[string]*entity.Player),
		enemies:   make(map[string]*entity.Enemy),
	}
	s.recomputeCycle()
	return s
}

// SetEventSink подключает получателя событий журнала
func (s *State) SetEventSink(sink EventSink) {
	s.sink = sink
}

// Update продвигает мировое время и пересчитывает фазу суток
func (s *State) Update(dt time.Duration) {
	s.WorldTime += dt.Milliseconds()
	s.recomputeCycle()
}

func (s *State) recomputeCycle() {
	cycle := CycleLength.Milliseconds()
	phase := s.WorldTime % cycle
	if phase < 0 {
		phase += cycle
	}
	s.DayNightCycle = float64(phase) / float64(cycle)
}

// IsDay истинно в середине цикла: 0.25 < cycle < 0.75
func (s *State) IsDay() bool {
	return s.DayNightCycle > 0.25 && s.DayNightCycle < 0.75
}

// AddPlayer регистрирует игрока и пишет событие входа
func (s *State) AddPlayer(p *entity.Player) {
	if _, exists := s.players[p.ID]; !exists {
		s.playerOrder = append(s.playerOrder, p.ID)
	}
	s.players[p.ID] = p

	pos := p.Position
	s.AddEvent(GameEvent{
		Type:     EventPlayerJoined,
		PlayerID: p.ID,
		Data: map[string]interface{}{
			"username": p.Username,
			"level":    p.Level,
		},
		Position: &pos,
	})
}

// RemovePlayer удаляет игрока и пишет событие выхода
func (s *State) RemovePlayer(id string) (*entity.Player, bool) {
	p, ok := s.players[id]
	if !ok {
		return nil, false
	}
	delete(s.players, id)
	s.playerOrder = removeID(s.playerOrder, id)

	s.AddEvent(GameEvent{
		Type:     EventPlayerLeft,
		PlayerID: id,
		Data:     map[string]interface{}{"username": p.Username},
	})
	return p, true
}

// AddEnemy регистрирует врага и пишет событие появления
func (s *State) AddEnemy(e *entity.Enemy) {
	if _, exists := s.enemies[e.ID]; !exists {
		s.enemyOrder = append(s.enemyOrder, e.ID)
	}
	s.enemies[e.ID] = e

	pos := e.Position
	s.AddEvent(GameEvent{
		Type:     EventEnemySpawned,
		TargetID: e.ID,
		Data: map[string]interface{}{
			"enemyId":  e.ID,
			"type":     e.Type.String(),
			"position": e.Position,
		},
		Position: &pos,
	})
}

// RemoveEnemy удаляет врага и пишет событие гибели
func (s *State) RemoveEnemy(id string) (*entity.Enemy, bool) {
	e, ok := s.enemies[id]
	if !ok {
		return nil, false
	}
	delete(s.enemies, id)
	s.enemyOrder = removeID(s.enemyOrder, id)

	pos := e.Position
	s.AddEvent(GameEvent{
		Type:     EventEnemyDied,
		TargetID: id,
		Data: map[string]interface{}{
			"enemyId": id,
			"type":    e.Type.String(),
		},
		Position: &pos,
	})
	return e, true
}

// AddEvent добавляет событие в кольцевой буфер, заполняя id и время
func (s *State) AddEvent(ev GameEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = s.WorldTime
	}
	s.events.push(ev)
	if s.sink != nil {
		s.sink(ev)
	}
}

// Events возвращает копию журнала от старых к новым
func (s *State) Events() []GameEvent {
	return s.events.snapshot()
}

// EventCount - текущее число записей журнала (не больше EventRingSize)
func (s *State) EventCount() int {
	return s.events.len()
}

// Player ищет игрока по id
func (s *State) Player(id string) (*entity.Player, bool) {
	p, ok := s.players[id]
	return p, ok
}

// Enemy ищет врага по id
func (s *State) Enemy(id string) (*entity.Enemy, bool) {
	e, ok := s.enemies[id]
	return e, ok
}

// Players возвращает игроков в порядке входа
func (s *State) Players() []*entity.Player {
	out := make([]*entity.Player, 0, len(s.playerOrder))
	for _, id := range s.playerOrder {
		out = append(out, s.players[id])
	}
	return out
}

// Enemies возвращает врагов в порядке появления
func (s *State) Enemies() []*entity.Enemy {
	out := make([]*entity.Enemy, 0, len(s.enemyOrder))
	for _, id := range s.enemyOrder {
		out = append(out, s.enemies[id])
	}
	return out
}

func (s *State) PlayerCount() int { return len(s.players) }
func (s *State) EnemyCount() int  { return len(s.enemies) }

// PlayersNear - все игроки в радиусе (включительно), линейный проход
func (s *State) PlayersNear(pos vec.Vec3, radius float64) []*entity.Player {
	var out []*entity.Player
	for _, id := range s.playerOrder {
		p := s.players[id]
		if p.Position.DistanceTo(pos) <= radius {
			out = append(out, p)
		}
	}
	return out
}

// EnemiesNear - живые враги в радиусе (включительно)
func (s *State) EnemiesNear(pos vec.Vec3, radius float64) []*entity.Enemy {
	var out []*entity.Enemy
	for _, id := range s.enemyOrder {
		e := s.enemies[id]
		if e.IsAlive && e.Position.DistanceTo(pos) <= radius {
			out = append(out, e)
		}
	}
	return out
}

// LivingBoss ищет живого босса заданного типа
func (s *State) LivingBoss(t entity.EnemyType) (*entity.Enemy, bool) {
	for _, id := range s.enemyOrder {
		e := s.enemies[id]
		if e.IsBoss && e.IsAlive && e.Type == t {
			return e, true
		}
	}
	return nil, false
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
