package network

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/lumoria-live/internal/auth"
	"github.com/annel0/lumoria-live/internal/logging"
	"github.com/annel0/lumoria-live/internal/protocol"
	"github.com/annel0/lumoria-live/internal/room"
)

// DefaultHandshakeTimeout - сколько ждать первого сообщения join
const DefaultHandshakeTimeout = 10 * time.Second

// Rooms - доступ к комнатам по имени
type Rooms interface {
	GetOrCreate(id string) (*room.Room, error)
}

// GatewayConfig настраивает рукопожатие
type GatewayConfig struct {
	DefaultRoom      string
	RequireToken     bool
	HandshakeTimeout time.Duration
	OutboxSize       int
}

// Gateway обслуживает соединение целиком: join, пересылка намерений в
// комнату, выход при закрытии.
type Gateway struct {
	rooms     Rooms
	validator *auth.Validator
	cfg       GatewayConfig
	metrics   *Metrics
	logger    *logging.Logger
}

// NewGateway создаёт шлюз. validator может быть nil, тогда токены не проверяются.
func NewGateway(rooms Rooms, validator *auth.Validator, cfg GatewayConfig, m *Metrics) *Gateway {
	if cfg.DefaultRoom == "" {
		cfg.DefaultRoom = "game"
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return &Gateway{
		rooms:     rooms,
		validator: validator,
		cfg:       cfg,
		metrics:   m,
		logger:    logging.GetNetworkLogger(),
	}
}

// Serve читает join из первого сообщения и обслуживает соединение до
// закрытия. Соединение всегда закрывается при выходе.
func (g *Gateway) Serve(ctx context.Context, conn Conn, t Transport) error {
	return g.serve(ctx, conn, t, nil)
}

// ServeJoined обслуживает соединение, для которого join уже известен
// (например, из параметров запроса WebSocket).
func (g *Gateway) ServeJoined(ctx context.Context, conn Conn, t Transport, req protocol.JoinRequest) error {
	return g.serve(ctx, conn, t, &req)
}

func (g *Gateway) serve(ctx context.Context, conn Conn, t Transport, preset *protocol.JoinRequest) error {
	g.metrics.Opened(t)
	defer g.metrics.Closed(t)

	req, err := g.handshake(ctx, conn, preset)
	if err != nil {
		g.reject(ctx, conn, t, err)
		return err
	}

	identity, err := g.authenticate(req.Token)
	if err != nil {
		g.reject(ctx, conn, t, err)
		return err
	}
	if req.Username == "" {
		req.Username = identity.Username
	}
	if req.Room == "" {
		req.Room = g.cfg.DefaultRoom
	}

	r, err := g.rooms.GetOrCreate(req.Room)
	if err != nil {
		g.reject(ctx, conn, t, err)
		return err
	}

	// welcome ложится в очередь сессии до запуска writeLoop
	sess := newSession(uuid.NewString(), conn, t, g.cfg.OutboxSize, g.metrics)
	if _, err := r.Join(ctx, sess, req); err != nil {
		g.reject(ctx, conn, t, err)
		_ = sess.Close()
		return fmt.Errorf("join %s: %w", req.Room, err)
	}
	go sess.writeLoop(context.Background())
	g.metrics.Joined(t)
	g.logger.Info("🔗 Сессия %s (%s, %s) вошла в комнату %s", sess.ID(), t, conn.RemoteAddr(), req.Room)

	consented := g.readLoop(ctx, conn, sess, r, t)

	leaveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Leave(leaveCtx, sess.ID(), consented); err != nil &&
		!errors.Is(err, room.ErrUnknownPlayer) && !errors.Is(err, room.ErrRoomClosed) {
		g.logger.Warn("⚠️ Не удалось вывести %s из комнаты %s: %v", sess.ID(), req.Room, err)
	}
	_ = sess.Close()
	<-sess.Done()
	return nil
}

// handshake ждёт первое сообщение; им должен быть join
func (g *Gateway) handshake(ctx context.Context, conn Conn, preset *protocol.JoinRequest) (protocol.JoinRequest, error) {
	if preset != nil {
		return *preset, nil
	}

	hctx, cancel := context.WithTimeout(ctx, g.cfg.HandshakeTimeout)
	defer cancel()

	data, err := conn.ReadMessage(hctx)
	if err != nil {
		return protocol.JoinRequest{}, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	env, err := protocol.Decode(data)
	if err != nil {
		return protocol.JoinRequest{}, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	if env.Type != protocol.MsgJoin {
		return protocol.JoinRequest{}, fmt.Errorf("%w: первое сообщение %q", ErrHandshake, env.Type)
	}
	var req protocol.JoinRequest
	if err := env.DecodePayload(&req); err != nil {
		return protocol.JoinRequest{}, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	return req, nil
}

func (g *Gateway) authenticate(token string) (auth.Identity, error) {
	if token == "" {
		if g.cfg.RequireToken {
			return auth.Identity{}, room.ErrUnauthorized
		}
		return auth.Identity{}, nil
	}
	if g.validator == nil {
		return auth.Identity{}, nil
	}
	identity, err := g.validator.Validate(token)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%w: %v", room.ErrUnauthorized, err)
	}
	return identity, nil
}

// readLoop пересылает сообщения в очередь комнаты до закрытия
// соединения или сообщения leave. Возвращает флаг consented.
func (g *Gateway) readLoop(ctx context.Context, conn Conn, sess *Session, r *room.Room, t Transport) bool {
	for {
		data, err := conn.ReadMessage(ctx)
		if err != nil {
			return false
		}
		g.metrics.Received(t)

		env, err := protocol.Decode(data)
		if err != nil {
			g.logger.Debug("Некорректное сообщение от %s: %v", sess.ID(), err)
			continue
		}
		if env.Type == protocol.MsgJoin {
			continue
		}
		if env.Type == protocol.MsgLeave {
			leave := protocol.LeaveRequest{Consented: true}
			_ = env.DecodePayload(&leave)
			return leave.Consented
		}

		switch err := r.Submit(sess.ID(), env); {
		case err == nil:
		case errors.Is(err, room.ErrRoomClosed):
			return false
		default:
			g.logger.Warn("⚠️ Очередь комнаты %s переполнена, сообщение %s от %s отброшено", r.ID(), env.Type, sess.ID())
		}
	}
}

// reject сообщает клиенту причину отказа и закрывает соединение
func (g *Gateway) reject(ctx context.Context, conn Conn, t Transport, err error) {
	g.metrics.Rejected(t, reasonOf(err))
	g.logger.Warn("🚫 Соединение %s отклонено: %v", conn.RemoteAddr(), err)

	if msg, encErr := protocol.Encode(protocol.MsgError, errorPayload(err)); encErr == nil {
		wctx, cancel := context.WithTimeout(ctx, time.Second)
		_ = conn.WriteMessage(wctx, msg)
		cancel()
	}
	_ = conn.Close()
}

// ErrHandshake - первое сообщение не является корректным join
var ErrHandshake = errors.New("handshake failed")

func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrHandshake):
		return "handshake"
	case errors.Is(err, room.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, room.ErrRoomFull):
		return "room_full"
	case errors.Is(err, room.ErrRoomClosed):
		return "room_closed"
	default:
		return "other"
	}
}

func errorPayload(err error) protocol.ErrorMessage {
	return protocol.ErrorMessage{Code: reasonOf(err), Message: err.Error()}
}
