package network

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/lumoria-live/internal/logging"
)

// DefaultOutboxSize - ёмкость очереди исходящих сообщений сессии
const DefaultOutboxSize = 256

const writeTimeout = 5 * time.Second

// Session - участник комнаты поверх Conn. Реализует room.Client:
// Send не блокирует горутину комнаты, при переполнении очереди
// сообщение отбрасывается.
type Session struct {
	id        string
	conn      Conn
	transport Transport
	outbox    chan []byte
	metrics   *Metrics
	logger    *logging.Logger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

func newSession(id string, conn Conn, transport Transport, outboxSize int, m *Metrics) *Session {
	if outboxSize <= 0 {
		outboxSize = DefaultOutboxSize
	}
	return &Session{
		id:        id,
		conn:      conn,
		transport: transport,
		outbox:    make(chan []byte, outboxSize),
		metrics:   m,
		logger:    logging.GetNetworkLogger(),
		done:      make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

// Send ставит сообщение в очередь отправки
func (s *Session) Send(msg []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.outbox <- msg:
		return true
	default:
		s.metrics.Dropped(s.transport)
		return false
	}
}

// Close закрывает очередь и соединение. Повторные вызовы безопасны.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.outbox)
		s.mu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// Done закрывается, когда writeLoop завершился
func (s *Session) Done() <-chan struct{} { return s.done }

// writeLoop отправляет очередь в соединение до закрытия сессии
func (s *Session) writeLoop(ctx context.Context) {
	defer close(s.done)
	for msg := range s.outbox {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := s.conn.WriteMessage(wctx, msg)
		cancel()
		if err != nil {
			s.logger.Debug("Ошибка записи в сессию %s: %v", s.id, err)
			_ = s.Close()
			// дочитываем очередь, чтобы не держать память
			for range s.outbox {
			}
			return
		}
		s.metrics.Sent(s.transport, len(msg))
	}
}
