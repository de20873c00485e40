package storage

import (
	"context"
	"sync/atomic"

	"github.com/annel0/lumoria-live/internal/eventbus"
	"github.com/annel0/lumoria-live/internal/logging"
)

// Archiver переносит события комнат из шины в журнал.
type Archiver struct {
	journal Journal
	logger  *logging.Logger

	stored atomic.Uint64
	failed atomic.Uint64
}

// NewArchiver создаёт архиватор поверх журнала
func NewArchiver(j Journal) *Archiver {
	return &Archiver{journal: j, logger: logging.GetComponentLogger("journal")}
}

// Start подписывается на все события комнат. Подписка живёт до отмены ctx
// или вызова Unsubscribe.
func (a *Archiver) Start(ctx context.Context, bus eventbus.EventBus) (eventbus.Subscription, error) {
	return bus.Subscribe(ctx, eventbus.Filter{}, a.handle)
}

func (a *Archiver) handle(ctx context.Context, env *eventbus.Envelope) {
	ev, err := eventbus.DecodeGameEvent(env)
	if err != nil {
		a.failed.Add(1)
		a.logger.Warn("⚠️ Пропущен конверт %s из %s: %v", env.ID, env.Source, err)
		return
	}
	if err := a.journal.Append(ctx, env.Source, ev); err != nil {
		a.failed.Add(1)
		a.logger.Error("❌ Не удалось записать событие %s комнаты %s: %v", ev.ID, env.Source, err)
		return
	}
	a.stored.Add(1)
}

// Stored - число записанных событий
func (a *Archiver) Stored() uint64 { return a.stored.Load() }

// Failed - число событий, которые не удалось декодировать или записать
func (a *Archiver) Failed() uint64 { return a.failed.Load() }
