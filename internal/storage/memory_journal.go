package storage

import (
	"context"
	"sync"

	"github.com/annel0/lumoria-live/internal/world"
)

// DefaultMemoryCapacity - сколько событий на комнату хранит MemoryJournal
const DefaultMemoryCapacity = 1000

// MemoryJournal хранит журнал в памяти процесса.
// Используется по умолчанию и в тестах.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryJournal struct {
	mu       sync.RWMutex
	capacity int
	rooms    map[string][]world.GameEvent
	seen     map[string]struct{}
	closed   bool
}

// NewMemoryJournal создаёт журнал, хранящий не более capacity событий на комнату.
func NewMemoryJournal(capacity int) *MemoryJournal {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryJournal{
		capacity: capacity,
		rooms:    make(map[string][]world.GameEvent),
		seen:     make(map[string]struct{}),
	}
}

func (j *MemoryJournal) Append(ctx context.Context, roomID string, ev world.GameEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrJournalClosed
	}

	key := roomID + "/" + ev.ID
	if ev.ID != "" {
		if _, dup := j.seen[key]; dup {
			return nil
		}
		j.seen[key] = struct{}{}
	}

	events := append(j.rooms[roomID], ev)
	if over := len(events) - j.capacity; over > 0 {
		for _, old := range events[:over] {
			delete(j.seen, roomID+"/"+old.ID)
		}
		events = append([]world.GameEvent(nil), events[over:]...)
	}
	j.rooms[roomID] = events
	return nil
}

func (j *MemoryJournal) Recent(ctx context.Context, roomID string, limit int) ([]world.GameEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrJournalClosed
	}

	events := j.rooms[roomID]
	limit = clampLimit(limit)
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	return append([]world.GameEvent(nil), events...), nil
}

func (j *MemoryJournal) Close() error {
	j.mu.Lock()
	j.closed = true
	j.rooms = nil
	j.seen = nil
	j.mu.Unlock()
	return nil
}
