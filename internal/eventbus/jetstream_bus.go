package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	nats "github.com/nats-io/nats.go"
)

const (
	DefaultStream  = "LUMORIA_EVENTS"
	subjectPrefix  = "lumoria.events"
	defaultAckWait = 30 * time.Second
)

// JetStreamBus реализует EventBus поверх NATS JetStream.
// Subject события: lumoria.events.<room>.<type>.
type JetStreamBus struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	stream    string
	replay    bool
	published uint64
	consumed  uint64
	dropped   uint64
}

// JetStreamOption настраивает шину
type JetStreamOption func(*JetStreamBus)

// WithReplay - подписки получают всю историю стрима, а не только новые события
func WithReplay() JetStreamOption {
	return func(jb *JetStreamBus) { jb.replay = true }
}

// NewJetStreamBus подключается к кластеру NATS и гарантирует наличие стрима.
// url: nats://127.0.0.1:4222.
func NewJetStreamBus(url, stream string, retention time.Duration, opts ...JetStreamOption) (*JetStreamBus, error) {
	if stream == "" {
		stream = DefaultStream
	}

	nc, err := nats.Connect(url, nats.Name("lumoria-live"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if _, err = js.StreamInfo(stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{subjectPrefix + ".>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    retention,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("add stream: %w", err)
		}
	}

	jb := &JetStreamBus{nc: nc, js: js, stream: stream}
	for _, opt := range opts {
		opt(jb)
	}
	return jb, nil
}

// subjectToken делает id комнаты или тип допустимым токеном subject
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n':
			return '_'
		}
		return r
	}, s)
}

// Subject возвращает subject для источника и типа
func Subject(source, eventType string) string {
	return subjectPrefix + "." + subjectToken(source) + "." + subjectToken(eventType)
}

// Publish сериализует Envelope в JSON и публикует с дедупликацией по ID.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return err
	}
	_, err = jb.js.Publish(Subject(ev.Source, ev.EventType), data, nats.Context(ctx), nats.MsgId(ev.ID))
	if err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return err
	}
	atomic.AddUint64(&jb.published, 1)
	return nil
}

func filterSubject(f Filter) string {
	source, eventType := "*", "*"
	if len(f.Sources) == 1 {
		source = subjectToken(f.Sources[0])
	}
	if len(f.Types) == 1 {
		eventType = subjectToken(f.Types[0])
	}
	return subjectPrefix + "." + source + "." + eventType
}

// Subscribe создаёт эфемерного потребителя и вызывает handler асинхронно.
// Фильтры из нескольких значений дополнительно проверяются на клиенте.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	deliver := nats.DeliverNew()
	if jb.replay {
		deliver = nats.DeliverAll()
	}

	natSub, err := jb.js.Subscribe(filterSubject(f), func(msg *nats.Msg) {
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err == nil && matchFilter(&ev, f) {
			h(ctx, &ev)
			atomic.AddUint64(&jb.consumed, 1)
		}
		_ = msg.Ack()
	}, nats.ManualAck(), deliver, nats.AckWait(defaultAckWait), nats.BindStream(jb.stream))
	if err != nil {
		return nil, fmt.Errorf("jetstream subscribe: %w", err)
	}

	sub := &jetSub{s: natSub}
	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()
	return sub, nil
}

// jetSub обёртка вокруг *nats.Subscription чтобы удовлетворить наш интерфейс.
type jetSub struct {
	s *nats.Subscription
}

func (j *jetSub) Unsubscribe() {
	_ = j.s.Unsubscribe()
}

// Metrics возвращает текущие метрики.
func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: atomic.LoadUint64(&jb.published),
		Consumed:  atomic.LoadUint64(&jb.consumed),
		Dropped:   atomic.LoadUint64(&jb.dropped),
		InFlight:  0, // jetstream keeps its own queue
	}
}

// Close дожидается отправки буферов и закрывает соединение
func (jb *JetStreamBus) Close() error {
	return jb.nc.Drain()
}
