package cache

import (
	"context"
	"time"

	"github.com/annel0/lumoria-live/internal/logging"
)

// DefaultRefreshInterval - период публикации реестра
const DefaultRefreshInterval = 5 * time.Second

// Source отдаёт текущее состояние комнат узла
type Source func() []RoomPresence

// Refresher периодически публикует комнаты узла в реестр и удаляет
// записи закрытых комнат.
type Refresher struct {
	presence Presence
	source   Source
	node     string
	interval time.Duration
	known    map[string]struct{}
	logger   *logging.Logger
}

func NewRefresher(p Presence, node string, src Source, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		presence: p,
		source:   src,
		node:     node,
		interval: interval,
		known:    make(map[string]struct{}),
		logger:   logging.GetComponentLogger("presence"),
	}
}

// Run публикует реестр до отмены ctx
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			r.clear()
			return nil
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	entries := r.source()
	current := make(map[string]struct{}, len(entries))
	for i := range entries {
		entries[i].Node = r.node
		current[entries[i].RoomID] = struct{}{}
	}

	if err := r.presence.Publish(ctx, entries); err != nil {
		r.logger.Warn("⚠️ Не удалось обновить реестр комнат: %v", err)
		return
	}
	for id := range r.known {
		if _, ok := current[id]; !ok {
			if err := r.presence.Remove(ctx, id); err != nil {
				r.logger.Warn("⚠️ Не удалось удалить комнату %s из реестра: %v", id, err)
			}
		}
	}
	r.known = current
}

// clear снимает записи узла при остановке
func (r *Refresher) clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for id := range r.known {
		_ = r.presence.Remove(ctx, id)
	}
	r.known = map[string]struct{}{}
}
