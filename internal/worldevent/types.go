package worldevent

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/annel0/lumoria-live/internal/vec"
	"github.com/annel0/lumoria-live/internal/world"
	"github.com/annel0/lumoria-live/internal/world/entity"
)

// Type - тип мирового события
type Type uint8

const (
	DayNightTransition Type = iota
	WeatherChange
	BossSpawn
	TreasureSpawn
	WorldAnnouncement
)

var typeNames = [...]string{
	DayNightTransition: "day_night_transition",
	WeatherChange:      "weather_change",
	BossSpawn:          "boss_spawn",
	TreasureSpawn:      "treasure_spawn",
	WorldAnnouncement:  "world_announcement",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// ParseType разбирает имя типа события
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("неизвестный тип мирового события %q", s)
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Data - параметры события; пустые поля означают значения по умолчанию
type Data struct {
	Weather      world.Weather     `json:"weather,omitempty"`
	Duration     time.Duration     `json:"duration,omitempty"`
	BossType     *entity.EnemyType `json:"bossType,omitempty"`
	SpawnArea    string            `json:"spawnArea,omitempty"`
	Position     *vec.Vec3         `json:"position,omitempty"`
	TreasureType string            `json:"treasureType,omitempty"`
	Message      string            `json:"message,omitempty"`
	Kind         string            `json:"kind,omitempty"` // тип объявления
}

// Event - запись очереди планировщика
type Event struct {
	Type   Type      `json:"type"`
	Data   Data      `json:"data"`
	FireAt time.Time `json:"fireAt"`

	seq uint64
}

// eventQueue - мин-куча по времени срабатывания; при равенстве
// раньше выполняется добавленное раньше
type eventQueue []*Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].FireAt.Equal(q[j].FireAt) {
		return q[i].seq < q[j].seq
	}
	return q[i].FireAt.Before(q[j].FireAt)
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x interface{}) { *q = append(*q, x.(*Event)) }

func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}

var _ heap.Interface = (*eventQueue)(nil)
