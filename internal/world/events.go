package world

import (
	"fmt"

	"github.com/annel0/lumoria-live/internal/vec"
)

// EventType - тип записи журнала событий комнаты
type EventType uint8

const (
	EventPlayerJoined    EventType = iota // Игрок вошёл
	EventPlayerLeft                       // Игрок вышел
	EventPlayerDied                       // Игрок погиб
	EventPlayerRespawned                  // Игрок возродился
	EventEnemySpawned                     // Враг появился
	EventEnemyDied                        // Враг убит
	EventItemPickup                       // Подбор предмета
	EventSpellCast                        // Применение заклинания
	EventDamageDealt                      // Нанесён урон
	EventChat                             // Сообщение чата
)

var eventTypeNames = [...]string{
	EventPlayerJoined:    "player_joined",
	EventPlayerLeft:      "player_left",
	EventPlayerDied:      "player_died",
	EventPlayerRespawned: "player_respawned",
	EventEnemySpawned:    "enemy_spawned",
	EventEnemyDied:       "enemy_died",
	EventItemPickup:      "item_pickup",
	EventSpellCast:       "spell_cast",
	EventDamageDealt:     "damage_dealt",
	EventChat:            "chat",
}

func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return fmt.Sprintf("EventType(%d)", uint8(t))
}

func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *EventType) UnmarshalText(b []byte) error {
	for i, name := range eventTypeNames {
		if name == string(b) {
			*t = EventType(i)
			return nil
		}
	}
	return fmt.Errorf("неизвестный тип события %q", string(b))
}

// GameEvent - запись журнала событий комнаты
type GameEvent struct {
	ID        string                 `json:"id" bson:"_id"`
	Type      EventType              `json:"type" bson:"type"`
	PlayerID  string                 `json:"playerId,omitempty" bson:"player_id,omitempty"`
	TargetID  string                 `json:"targetId,omitempty" bson:"target_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty" bson:"data,omitempty"`
	Timestamp int64                  `json:"timestamp" bson:"timestamp"` // Unix ms мирового времени
	Position  *vec.Vec3              `json:"position,omitempty" bson:"position,omitempty"`
}

// EventRingSize - сколько последних событий хранит комната
const EventRingSize = 50

// eventRing - кольцевой буфер фиксированной ёмкости, старые записи вытесняются первыми
type eventRing struct {
	buf   [EventRingSize]GameEvent
	start int
	size  int
}

func (r *eventRing) push(ev GameEvent) {
	if r.size < EventRingSize {
		r.buf[(r.start+r.size)%EventRingSize] = ev
		r.size++
		return
	}
	r.buf[r.start] = ev
	r.start = (r.start + 1) % EventRingSize
}

// snapshot возвращает копию событий от старых к новым
func (r *eventRing) snapshot() []GameEvent {
	out := make([]GameEvent, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%EventRingSize]
	}
	return out
}

func (r *eventRing) len() int { return r.size }
