// Package network содержит транспорты игрового сервера: KCP (надёжный
// упорядоченный UDP) и WebSocket. Оба сводятся к Conn и обслуживаются Gateway.
package network

import (
	"context"
	"errors"
)

// ErrSessionClosed - отправка в закрытую сессию
var ErrSessionClosed = errors.New("session closed")

// Conn - соединение, передающее целые сообщения (JSON конверты).
type Conn interface {
	ReadMessage(ctx context.Context) ([]byte, error)
	WriteMessage(ctx context.Context, msg []byte) error
	Close() error
	RemoteAddr() string
}

// Transport - имя транспорта для логов и метрик
type Transport string

const (
	TransportKCP       Transport = "kcp"
	TransportWebSocket Transport = "ws"
)
