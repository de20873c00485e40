package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/coder/websocket"

	"github.com/annel0/lumoria-live/internal/logging"
	"github.com/annel0/lumoria-live/internal/network"
	"github.com/annel0/lumoria-live/internal/protocol"
	"github.com/annel0/lumoria-live/internal/vec"
)

// Тестовый клиент: входит в комнату, шлёт несколько намерений и печатает
// всё, что присылает сервер.
func main() {
	var (
		transport = flag.String("transport", "kcp", "Transport: kcp or ws")
		kcpAddr   = flag.String("kcp", "localhost:7777", "KCP server address")
		wsURL     = flag.String("ws", "ws://localhost:8088/ws", "WebSocket endpoint")
		roomID    = flag.String("room", "game", "Room to join")
		username  = flag.String("username", "tester", "Player name")
		class     = flag.String("class", "mage", "Character class")
		token     = flag.String("token", "", "JWT token")
		listen    = flag.Duration("listen", 3*time.Second, "How long to print server messages")
		dump      = flag.Bool("dump", false, "Print hex dump of every frame")
	)
	flag.Parse()

	fmt.Println("=== ТЕСТОВЫЙ КЛИЕНТ LUMORIA ===")

	ctx, cancel := context.WithTimeout(context.Background(), *listen+10*time.Second)
	defer cancel()

	conn, err := dial(ctx, *transport, *kcpAddr, *wsURL)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения: %v", err)
	}
	defer conn.Close()
	fmt.Printf("✅ Подключен к серверу (%s, %s)\n", *transport, conn.RemoteAddr())

	c := &client{conn: conn, dump: *dump}

	fmt.Println("\n=== ТЕСТ 1: ВХОД В КОМНАТУ ===")
	if err := c.send(ctx, protocol.MsgJoin, protocol.JoinRequest{
		Room:           *roomID,
		Username:       *username,
		CharacterClass: *class,
		Token:          *token,
	}); err != nil {
		log.Fatalf("❌ Ошибка отправки join: %v", err)
	}
	env, err := c.receive(ctx)
	if err != nil {
		log.Fatalf("❌ Нет ответа на join: %v", err)
	}
	if env.Type != protocol.MsgWelcome {
		var e protocol.ErrorMessage
		_ = env.DecodePayload(&e)
		log.Fatalf("❌ Вход отклонён: %s %s", e.Code, e.Message)
	}
	var welcome protocol.Welcome
	if err := env.DecodePayload(&welcome); err != nil {
		log.Fatalf("❌ Ошибка разбора welcome: %v", err)
	}
	fmt.Printf("✅ Игрок %s, мировое время %d, версия сервера %s\n", welcome.PlayerID, welcome.WorldTime, welcome.ServerVersion)

	fmt.Println("\n=== ТЕСТ 2: НАМЕРЕНИЯ ===")
	now := float64(time.Now().UnixMilli())
	intents := []struct {
		msgType string
		payload interface{}
	}{
		{protocol.MsgMove, protocol.MoveIntent{Position: vec.Vec3{X: 3, Y: 0, Z: 4}, Timestamp: now}},
		{protocol.MsgChat, protocol.ChatIntent{Text: "Привет, Lumoria!", Timestamp: now}},
		{protocol.MsgSpell, protocol.SpellIntent{SpellName: "heal", Timestamp: now}},
	}
	for _, in := range intents {
		if err := c.send(ctx, in.msgType, in.payload); err != nil {
			log.Printf("❌ Ошибка отправки %s: %v", in.msgType, err)
		}
	}

	fmt.Printf("\n=== ТЕСТ 3: СООБЩЕНИЯ СЕРВЕРА (%s) ===\n", *listen)
	listenCtx, stop := context.WithTimeout(ctx, *listen)
	received := 0
	for {
		env, err := c.receive(listenCtx)
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) && listenCtx.Err() == nil {
				log.Printf("❌ Ошибка чтения: %v", err)
			}
			break
		}
		received++
		fmt.Printf("📥 %-24s %s\n", env.Type, string(env.Payload))
	}
	stop()
	fmt.Printf("📊 Получено сообщений: %d\n", received)

	_ = c.send(ctx, protocol.MsgLeave, protocol.LeaveRequest{Consented: true})
	fmt.Println("\n=== ТЕСТИРОВАНИЕ ЗАВЕРШЕНО ===")
}

type client struct {
	conn network.Conn
	dump bool
}

func (c *client) send(ctx context.Context, msgType string, payload interface{}) error {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		return err
	}
	fmt.Printf("📤 %s (%d байт)\n", msgType, len(data))
	if c.dump {
		fmt.Println(logging.HexDump(data))
	}
	return c.conn.WriteMessage(ctx, data)
}

func (c *client) receive(ctx context.Context) (protocol.Envelope, error) {
	data, err := c.conn.ReadMessage(ctx)
	if err != nil {
		return protocol.Envelope{}, err
	}
	if c.dump {
		fmt.Println(logging.HexDump(data))
	}
	return protocol.Decode(data)
}

func dial(ctx context.Context, transport, kcpAddr, wsURL string) (network.Conn, error) {
	switch network.Transport(transport) {
	case network.TransportKCP:
		codec, err := protocol.NewFrameCodec(protocol.DefaultCompressThreshold)
		if err != nil {
			return nil, err
		}
		return network.DialKCP(kcpAddr, codec)
	case network.TransportWebSocket:
		u, err := url.Parse(wsURL)
		if err != nil {
			return nil, err
		}
		ws, _, err := websocket.Dial(ctx, u.String(), nil)
		if err != nil {
			return nil, err
		}
		ws.SetReadLimit(protocol.MaxFrameSize)
		return &wsClientConn{ws: ws, addr: u.Host}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
}

type wsClientConn struct {
	ws   *websocket.Conn
	addr string
}

func (c *wsClientConn) ReadMessage(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.Read(ctx)
	return data, err
}

func (c *wsClientConn) WriteMessage(ctx context.Context, msg []byte) error {
	return c.ws.Write(ctx, websocket.MessageText, msg)
}

func (c *wsClientConn) Close() error { return c.ws.Close(websocket.StatusNormalClosure, "bye") }

func (c *wsClientConn) RemoteAddr() string { return c.addr }
