package room

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/annel0/lumoria-live/internal/protocol"
	"github.com/annel0/lumoria-live/internal/vec"
	"github.com/annel0/lumoria-live/internal/world"
	"github.com/annel0/lumoria-live/internal/world/entity"
)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

type testClient struct {
	id string

	mu     sync.Mutex
	msgs   []protocol.Envelope
	closed bool
	full   bool
}

func newTestClient(id string) *testClient { return &testClient{id: id} }

func (c *testClient) ID() string { return c.id }

func (c *testClient) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return false
	}
	env, err := protocol.Decode(msg)
	if err != nil {
		panic(err)
	}
	c.msgs = append(c.msgs, env)
	return true
}

func (c *testClient) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *testClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *testClient) ofType(msgType string) []protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.Envelope
	for _, m := range c.msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (c *testClient) reset() {
	c.mu.Lock()
	c.msgs = nil
	c.mu.Unlock()
}

// начало суточного цикла: ночь
var t0 = time.UnixMilli(world.CycleLength.Milliseconds() * 1000)

func newTestRoom(t *testing.T, roll float64, mutate ...func(*Options)) *Room {
	t.Helper()
	opts := Options{
		Rand:  fixedRand(roll),
		Clock: func() time.Time { return t0 },
	}
	for _, m := range mutate {
		m(&opts)
	}
	return New("test", opts)
}

// joinDirect добавляет игрока без горутины комнаты
func joinDirect(t *testing.T, r *Room, id string) (*testClient, *entity.Player) {
	t.Helper()
	c := newTestClient(id)
	_, err := r.join(c, protocol.JoinRequest{Username: id}, t0)
	require.NoError(t, err)
	p, ok := r.state.Player(id)
	require.True(t, ok)
	return c, p
}

func addEnemy(r *Room, id string, typ entity.EnemyType, pos vec.Vec3) *entity.Enemy {
	e := entity.NewEnemy(id, typ, pos)
	r.state.AddEnemy(e)
	return e
}

func decode[T any](t *testing.T, env protocol.Envelope) T {
	t.Helper()
	var out T
	require.NoError(t, env.DecodePayload(&out))
	return out
}

func mustEnvelope(t *testing.T, msgType string, payload interface{}) protocol.Envelope {
	t.Helper()
	data, err := protocol.Encode(msgType, payload)
	require.NoError(t, err)
	env, err := protocol.Decode(data)
	require.NoError(t, err)
	return env
}
