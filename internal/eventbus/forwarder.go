package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/lumoria-live/internal/logging"
	"github.com/annel0/lumoria-live/internal/world"
)

// RoomEventVersion - версия схемы полезной нагрузки GameEvent
const RoomEventVersion = 1

type forwardItem struct {
	roomID string
	ev     world.GameEvent
}

// Forwarder переносит события комнат в шину вне пути тика.
// Forward никогда не блокирует: при переполнении очереди событие
// отбрасывается.
type Forwarder struct {
	bus     EventBus
	queue   chan forwardItem
	dropped atomic.Uint64
	logger  *logging.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewForwarder создаёт переносчик с очередью заданного размера
func NewForwarder(bus EventBus, queueSize int) *Forwarder {
	if queueSize <= 0 {
		queueSize = 4096
	}
	return &Forwarder{
		bus:    bus,
		queue:  make(chan forwardItem, queueSize),
		logger: logging.GetComponentLogger("eventbus"),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Forward ставит событие в очередь; совместим с room.EventSink
func (f *Forwarder) Forward(roomID string, ev world.GameEvent) {
	select {
	case f.queue <- forwardItem{roomID: roomID, ev: ev}:
	default:
		if f.dropped.Add(1)%1000 == 1 {
			f.logger.Warn("⚠️ Очередь событий переполнена, отброшено всего: %d", f.dropped.Load())
		}
	}
}

// Dropped - число отброшенных событий
func (f *Forwarder) Dropped() uint64 { return f.dropped.Load() }

// Run публикует события до отмены ctx или Stop; остаток очереди
// дописывается перед выходом
func (f *Forwarder) Run(ctx context.Context) error {
	defer close(f.done)
	for {
		select {
		case item := <-f.queue:
			f.publish(ctx, item)
		case <-ctx.Done():
			f.drain()
			return nil
		case <-f.stop:
			f.drain()
			return nil
		}
	}
}

// Stop завершает Run и ждёт его выхода
func (f *Forwarder) Stop() {
	f.stopOnce.Do(func() { close(f.stop) })
	<-f.done
}

func (f *Forwarder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case item := <-f.queue:
			f.publish(ctx, item)
		default:
			return
		}
	}
}

func (f *Forwarder) publish(ctx context.Context, item forwardItem) {
	env, err := NewRoomEnvelope(item.roomID, item.ev)
	if err != nil {
		f.logger.Error("❌ Ошибка сериализации события %s: %v", item.ev.ID, err)
		return
	}
	if err := f.bus.Publish(ctx, env); err != nil {
		f.logger.Warn("⚠️ Не удалось опубликовать событие %s: %v", item.ev.Type, err)
	}
}

// NewRoomEnvelope упаковывает GameEvent комнаты в конверт шины
func NewRoomEnvelope(roomID string, ev world.GameEvent) (*Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	id := ev.ID
	if id == "" {
		id = uuid.NewString()
	}
	priority := 1
	if ev.Type == world.EventPlayerDied || ev.Type == world.EventEnemyDied {
		priority = HighPriority
	}
	return &Envelope{
		ID:        id,
		Timestamp: time.UnixMilli(ev.Timestamp).UTC(),
		Source:    roomID,
		EventType: ev.Type.String(),
		Version:   RoomEventVersion,
		Priority:  priority,
		Payload:   payload,
	}, nil
}

// DecodeGameEvent извлекает GameEvent из конверта
func DecodeGameEvent(env *Envelope) (world.GameEvent, error) {
	var ev world.GameEvent
	if env.Version != RoomEventVersion {
		return ev, fmt.Errorf("unsupported event version %d", env.Version)
	}
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return ev, fmt.Errorf("decode game event: %w", err)
	}
	return ev, nil
}
