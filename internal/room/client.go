package room

// Client - соединение участника комнаты. Send не блокируется и
// возвращает false, если сообщение отброшено.
type Client interface {
	ID() string
	Send(msg []byte) bool
	Close() error
}
