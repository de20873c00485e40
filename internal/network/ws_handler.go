package network

import (
	"context"
	"net/http"
	"strconv"

	"github.com/coder/websocket"

	"github.com/annel0/lumoria-live/internal/logging"
	"github.com/annel0/lumoria-live/internal/protocol"
)

// WSHandler принимает WebSocket соединения браузерных клиентов.
// Если в запросе есть параметры room/username/class/level/token, они
// заменяют первое сообщение join.
type WSHandler struct {
	gateway *Gateway
	opts    *websocket.AcceptOptions
	logger  *logging.Logger
}

// NewWSHandler создаёт обработчик. origins - разрешённые Origin;
// пустой список отключает проверку.
func NewWSHandler(gw *Gateway, origins []string) *WSHandler {
	opts := &websocket.AcceptOptions{OriginPatterns: origins}
	if len(origins) == 0 {
		opts.InsecureSkipVerify = true
	}
	return &WSHandler{gateway: gw, opts: opts, logger: logging.GetNetworkLogger()}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, h.opts)
	if err != nil {
		h.logger.Warn("failed to accept websocket: %v", err)
		return
	}
	c.SetReadLimit(protocol.MaxFrameSize)

	conn := &wsConn{conn: c, remote: r.RemoteAddr}
	ctx := r.Context()
	if req, ok := joinFromQuery(r); ok {
		_ = h.gateway.ServeJoined(ctx, conn, TransportWebSocket, req)
		return
	}
	_ = h.gateway.Serve(ctx, conn, TransportWebSocket)
}

func joinFromQuery(r *http.Request) (protocol.JoinRequest, bool) {
	q := r.URL.Query()
	req := protocol.JoinRequest{
		Room:           q.Get("room"),
		Username:       q.Get("username"),
		CharacterClass: q.Get("class"),
		Token:          q.Get("token"),
	}
	if lvl, err := strconv.ParseFloat(q.Get("level"), 64); err == nil {
		req.Level = lvl
	}
	ok := req.Room != "" || req.Username != "" || req.CharacterClass != "" || req.Token != "" || req.Level > 0
	return req, ok
}

type wsConn struct {
	conn   *websocket.Conn
	remote string
}

func (c *wsConn) ReadMessage(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *wsConn) WriteMessage(ctx context.Context, msg []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, msg)
}

// Close не ждёт ответного close-фрейма: вызывается и из горутины комнаты
func (c *wsConn) Close() error {
	return c.conn.CloseNow()
}

func (c *wsConn) RemoteAddr() string { return c.remote }
