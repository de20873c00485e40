package network

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/lumoria-live/internal/logging"
	"github.com/annel0/lumoria-live/internal/protocol"
)

// DefaultIdleTimeout - соединение без входящих сообщений закрывается
const DefaultIdleTimeout = 30 * time.Second

// KCPServer принимает KCP сессии и передаёт их в Gateway.
type KCPServer struct {
	addr        string
	gateway     *Gateway
	codec       *protocol.FrameCodec
	idleTimeout time.Duration

	mu       sync.Mutex
	listener *kcp.Listener
	ready    chan struct{}
	wg       sync.WaitGroup
	logger   *logging.Logger
}

// NewKCPServer создаёт сервер. codec общий для всех соединений.
func NewKCPServer(addr string, gw *Gateway, codec *protocol.FrameCodec) *KCPServer {
	return &KCPServer{
		addr:        addr,
		gateway:     gw,
		codec:       codec,
		idleTimeout: DefaultIdleTimeout,
		ready:       make(chan struct{}),
		logger:      logging.GetNetworkLogger(),
	}
}

// Ready закрывается после открытия слушателя
func (s *KCPServer) Ready() <-chan struct{} { return s.ready }

// Addr - фактический адрес слушателя (nil до Ready)
func (s *KCPServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve принимает соединения до отмены ctx и ждёт завершения всех сессий
func (s *KCPServer) Serve(ctx context.Context) error {
	listener, err := kcp.ListenWithOptions(s.addr, nil, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("🚀 KCP сервер запущен на %s", listener.Addr())

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	for {
		sess, err := listener.AcceptKCP()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("Failed to accept connection: %v", err)
			continue
		}

		tuneSession(sess)
		conn := newKCPConn(sess, s.codec, s.idleTimeout)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = s.gateway.Serve(ctx, conn, TransportKCP)
		}()
	}

	s.wg.Wait()
	s.logger.Info("🛑 KCP сервер остановлен")
	return nil
}

// tuneSession настраивает KCP параметры для игрового трафика
func tuneSession(sess *kcp.UDPSession) {
	sess.SetStreamMode(true)
	sess.SetWriteDelay(false)
	sess.SetNoDelay(1, 20, 2, 1) // Агрессивные настройки для игр
	sess.SetWindowSize(512, 512) // Увеличиваем окно для пропускной способности
	sess.SetMtu(1400)            // Стандартный MTU для интернета
}

// kcpConn - Conn поверх KCP потока с кадрами FrameCodec
type kcpConn struct {
	sess        *kcp.UDPSession
	reader      *bufio.Reader
	codec       *protocol.FrameCodec
	idleTimeout time.Duration
	writeMu     sync.Mutex
}

func newKCPConn(sess *kcp.UDPSession, codec *protocol.FrameCodec, idle time.Duration) *kcpConn {
	return &kcpConn{
		sess:        sess,
		reader:      bufio.NewReader(sess),
		codec:       codec,
		idleTimeout: idle,
	}
}

// DialKCP подключается к серверу; используется инструментами и тестами
func DialKCP(addr string, codec *protocol.FrameCodec) (Conn, error) {
	sess, err := kcp.DialWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	tuneSession(sess)
	return newKCPConn(sess, codec, 0), nil
}

func (c *kcpConn) ReadMessage(ctx context.Context) ([]byte, error) {
	deadline := time.Time{}
	if c.idleTimeout > 0 {
		deadline = time.Now().Add(c.idleTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = c.sess.SetReadDeadline(deadline)

	stop := context.AfterFunc(ctx, func() { _ = c.sess.SetReadDeadline(time.Now()) })
	defer stop()

	body, err := c.codec.ReadFrame(c.reader)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return body, err
}

func (c *kcpConn) WriteMessage(ctx context.Context, msg []byte) error {
	frame, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if d, ok := ctx.Deadline(); ok {
		_ = c.sess.SetWriteDeadline(d)
	}
	_, err = c.sess.Write(frame)
	return err
}

func (c *kcpConn) Close() error { return c.sess.Close() }

func (c *kcpConn) RemoteAddr() string { return c.sess.RemoteAddr().String() }
