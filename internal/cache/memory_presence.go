package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryPresence - реестр в памяти процесса для одиночного узла и тестов.
type MemoryPresence struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]RoomPresence
	now     func() time.Time
}

func NewMemoryPresence(ttl time.Duration) *MemoryPresence {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &MemoryPresence{
		ttl:     ttl,
		entries: make(map[string]RoomPresence),
		now:     time.Now,
	}
}

func (m *MemoryPresence) Publish(ctx context.Context, entries []RoomPresence) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := m.now()
	m.mu.Lock()
	for _, e := range entries {
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
		m.entries[e.RoomID] = e
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryPresence) Remove(_ context.Context, roomID string) error {
	m.mu.Lock()
	delete(m.entries, roomID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryPresence) Rooms(ctx context.Context) ([]RoomPresence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline := m.now().Add(-m.ttl)

	m.mu.Lock()
	out := make([]RoomPresence, 0, len(m.entries))
	for id, e := range m.entries {
		if e.UpdatedAt.Before(deadline) {
			delete(m.entries, id)
			continue
		}
		out = append(out, e)
	}
	m.mu.Unlock()

	sortByRoom(out)
	return out, nil
}

func (m *MemoryPresence) Close() error { return nil }
