package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerCreatesRoomOnce(t *testing.T) {
	m := NewManager(context.Background(), Options{Seed: 3})
	defer func() { require.NoError(t, m.Shutdown(context.Background())) }()

	a, err := m.GetOrCreate("game")
	require.NoError(t, err)
	b, err := m.GetOrCreate("game")
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = m.GetOrCreate("arena")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Count())

	stats := m.List()
	require.Len(t, stats, 2)
	assert.Equal(t, "arena", stats[0].ID)
	assert.Equal(t, "game", stats[1].ID)
	assert.Equal(t, DefaultMaxClients, stats[1].MaxClients)
}

func TestManagerForgetsClosedRoom(t *testing.T) {
	m := NewManager(context.Background(), Options{Seed: 3})
	defer func() { _ = m.Shutdown(context.Background()) }()

	r, err := m.GetOrCreate("temp")
	require.NoError(t, err)
	assert.True(t, m.CloseRoom("temp"))
	assert.False(t, m.CloseRoom("missing"))

	<-r.Done()
	require.Eventually(t, func() bool {
		_, ok := m.Get("temp")
		return !ok
	}, time.Second, 5*time.Millisecond)

	again, err := m.GetOrCreate("temp")
	require.NoError(t, err)
	assert.NotSame(t, r, again, "после закрытия создаётся новая комната")
}

func TestManagerShutdown(t *testing.T) {
	m := NewManager(context.Background(), Options{Seed: 3})
	r, err := m.GetOrCreate("game")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	select {
	case <-r.Done():
	default:
		t.Fatal("комната должна быть остановлена")
	}
	_, err = m.GetOrCreate("game")
	assert.ErrorIs(t, err, ErrRoomClosed)
}

func TestManagerStopsRoomsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(ctx, Options{Seed: 3})
	r, err := m.GetOrCreate("game")
	require.NoError(t, err)

	cancel()
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("комната не остановилась по контексту")
	}
}

func TestSharedSeedGivesRoomsDistinctStreams(t *testing.T) {
	opts := Options{Seed: 42}
	draw := func(r *Room) []float64 {
		out := make([]float64, 8)
		for i := range out {
			out[i] = r.rng.Float64()
		}
		return out
	}

	game := draw(New("game", opts))
	arena := draw(New("arena", opts))
	assert.NotEqual(t, game, arena, "комнаты с общим Seed не повторяют друг друга")
	assert.Equal(t, game, draw(New("game", opts)), "тот же id и Seed воспроизводят поток")

	assert.NotEqual(t, roomSeed("game", 42), roomSeed("arena", 42))
	assert.Equal(t, roomSeed("game", 42), roomSeed("game", 42))
}
