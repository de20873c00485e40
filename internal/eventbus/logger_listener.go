package eventbus

import (
	"context"

	"github.com/annel0/lumoria-live/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог
// компонента eventbus на уровне DEBUG. Функция неблокирующая.
func StartLoggingListener(ctx context.Context, bus EventBus) (Subscription, error) {
	logger := logging.GetComponentLogger("eventbus")
	sub, err := bus.Subscribe(ctx, Filter{}, func(ctx context.Context, ev *Envelope) {
		if !logger.Enabled(logging.DEBUG) {
			return
		}
		logger.Debug("[EventBus] %s %s room=%s prio=%d size=%dB", ev.ID, ev.EventType, ev.Source, ev.Priority, len(ev.Payload))
	})
	if err != nil {
		return nil, err
	}
	logger.Info("🪵 LoggingListener: подписка на все события активирована")
	return sub, nil
}
