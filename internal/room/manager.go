package room

import (
	"context"
	"sort"
	"sync"

	"github.com/annel0/lumoria-live/internal/logging"
)

// Manager - реестр комнат. Комнаты создаются по имени при первом
// входе и удаляются после остановки.
type Manager struct {
	ctx    context.Context
	opts   Options
	logger *logging.Logger

	mu     sync.RWMutex
	rooms  map[string]*Room
	closed bool
	wg     sync.WaitGroup
}

// NewManager создаёт реестр. Комнаты живут до отмены ctx или Shutdown.
func NewManager(ctx context.Context, opts Options) *Manager {
	return &Manager{
		ctx:    ctx,
		opts:   opts,
		logger: logging.GetServerLogger(),
		rooms:  make(map[string]*Room),
	}
}

// GetOrCreate возвращает работающую комнату, создавая её при необходимости
func (m *Manager) GetOrCreate(id string) (*Room, error) {
	m.mu.RLock()
	r, ok := m.rooms[id]
	closed := m.closed
	m.mu.RUnlock()
	if ok && !r.isClosing() {
		return r, nil
	}
	if closed {
		return nil, ErrRoomClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrRoomClosed
	}
	if r, ok := m.rooms[id]; ok && !r.isClosing() {
		return r, nil
	}

	r = New(id, m.opts)
	m.rooms[id] = r
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := r.Run(m.ctx); err != nil {
			m.logger.Error("❌ Комната %s завершилась с ошибкой: %v", id, err)
		}
		m.mu.Lock()
		if m.rooms[id] == r {
			delete(m.rooms, id)
		}
		m.mu.Unlock()
	}()

	m.logger.Info("🏠 Создана комната %s", id)
	return r, nil
}

// Get возвращает комнату, если она существует
func (m *Manager) Get(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// Count - число работающих комнат
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// List возвращает снимки всех комнат, упорядоченные по id
func (m *Manager) List() []Stats {
	m.mu.RLock()
	out := make([]Stats, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r.Stats())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CloseRoom останавливает комнату; false, если её нет
func (m *Manager) CloseRoom(id string) bool {
	r, ok := m.Get(id)
	if !ok {
		return false
	}
	r.Close()
	return true
}

// Shutdown закрывает все комнаты и ждёт их остановки
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, r := range m.rooms {
		r.Close()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("✅ Все комнаты остановлены")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
