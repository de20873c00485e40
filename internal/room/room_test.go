package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/lumoria-live/internal/protocol"
	"github.com/annel0/lumoria-live/internal/vec"
	"github.com/annel0/lumoria-live/internal/world"
	"github.com/annel0/lumoria-live/internal/world/entity"
	"github.com/annel0/lumoria-live/internal/worldevent"
)

func TestJoinSendsWelcome(t *testing.T) {
	r := newTestRoom(t, 0.5)
	c := newTestClient("abcdef123456")

	w, err := r.join(c, protocol.JoinRequest{CharacterClass: "mage", Level: 250}, t0)
	require.NoError(t, err)

	assert.Equal(t, "abcdef123456", w.PlayerID)
	assert.Equal(t, r.state.WorldTime, w.WorldTime)
	assert.Equal(t, ServerVersion, w.ServerVersion)

	welcome := c.ofType(protocol.MsgWelcome)
	require.Len(t, welcome, 1)
	assert.Equal(t, w, decode[protocol.Welcome](t, welcome[0]))

	p, ok := r.state.Player("abcdef123456")
	require.True(t, ok)
	assert.Equal(t, "Player_abcdef", p.Username, "имя по умолчанию из первых 6 символов")
	assert.Equal(t, "mage", p.CharacterClass)
	assert.Equal(t, float64(entity.MaxLevel), p.Level, "уровень ограничен")
	assert.Equal(t, vec.Vec3{}, p.Position)

	events := r.state.Events()
	require.Len(t, events, 1)
	assert.Equal(t, world.EventPlayerJoined, events[0].Type)
	assert.Equal(t, 1, r.Stats().Players)
}

func TestDefaultUsernameShortID(t *testing.T) {
	assert.Equal(t, "Player_abc", DefaultUsername("abc"))
	assert.Equal(t, "Player_123456", DefaultUsername("1234567890"))
}

func TestJoinRejections(t *testing.T) {
	r := newTestRoom(t, 0.5, func(o *Options) { o.MaxClients = 1 })
	joinDirect(t, r, "p1")

	_, err := r.join(newTestClient("p1"), protocol.JoinRequest{}, t0)
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	_, err = r.join(newTestClient("p2"), protocol.JoinRequest{}, t0)
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, 1, r.state.PlayerCount())
}

func TestLeave(t *testing.T) {
	r := newTestRoom(t, 0.5)
	joinDirect(t, r, "p1")
	c2, _ := joinDirect(t, r, "p2")

	require.NoError(t, r.leave("p1", true, t0))
	assert.ErrorIs(t, r.leave("p1", true, t0), ErrUnknownPlayer)

	_, ok := r.state.Player("p1")
	assert.False(t, ok)
	assert.Equal(t, []string{"p2"}, r.clientOrder)

	r.Broadcast(protocol.MsgWorldAnnouncement, protocol.WorldAnnouncement{Message: "x"})
	assert.Len(t, c2.ofType(protocol.MsgWorldAnnouncement), 1)
}

func TestStepAdvancesClockAndRegeneratesMana(t *testing.T) {
	r := newTestRoom(t, 0.5)
	_, p := joinDirect(t, r, "p1")
	p.Mana = 10
	start := r.state.WorldTime

	r.Step(t0)
	r.Step(t0.Add(50 * time.Millisecond))

	assert.Equal(t, start+100, r.state.WorldTime, "два тика по 50 мс")
	assert.Equal(t, 12, p.Mana)

	p.Mana = p.MaxMana
	r.Step(t0.Add(100 * time.Millisecond))
	assert.Equal(t, p.MaxMana, p.Mana, "мана не превышает максимум")
}

func regularEnemies(r *Room) int {
	n := 0
	for _, e := range r.state.Enemies() {
		if !e.IsBoss {
			n++
		}
	}
	return n
}

func TestSpawnTimerByDay(t *testing.T) {
	day := t0.Add(world.CycleLength / 2)
	r := newTestRoom(t, 0.5, func(o *Options) { o.Clock = func() time.Time { return day } })
	require.True(t, r.state.IsDay())

	r.Step(day)
	r.Step(day.Add(10 * time.Second))
	assert.Equal(t, 1.0, r.Stats().SpawnBoost, "днём ускорения нет")

	r.Step(day.Add(29 * time.Second))
	assert.Zero(t, regularEnemies(r))
	r.Step(day.Add(30 * time.Second))
	assert.Equal(t, 1, regularEnemies(r))
	r.Step(day.Add(59 * time.Second))
	assert.Equal(t, 1, regularEnemies(r))
	r.Step(day.Add(60 * time.Second))
	assert.Equal(t, 2, regularEnemies(r))
}

func TestSpawnTimerNightBoost(t *testing.T) {
	r := newTestRoom(t, 0.5)

	r.Step(t0) // периодические триггеры встают в очередь
	assert.Zero(t, r.state.EnemyCount())

	// выполняются ночь, погода и босс
	r.Step(t0.Add(10 * time.Second))
	assert.Zero(t, regularEnemies(r))
	assert.Equal(t, 2.0, r.Stats().SpawnBoost, "ночью появление врагов ускорено")
	assert.Equal(t, world.WeatherStorm, r.state.Weather)

	r.Step(t0.Add(14 * time.Second))
	assert.Zero(t, regularEnemies(r))
	r.Step(t0.Add(15 * time.Second))
	assert.Equal(t, 1, regularEnemies(r), "интервал сокращён вдвое")
	r.Step(t0.Add(30 * time.Second))
	assert.Equal(t, 2, regularEnemies(r))
}

func TestSpawnRespectsEnemyCap(t *testing.T) {
	r := newTestRoom(t, 0.5, func(o *Options) {
		o.MaxEnemies = 1
		o.SpawnInterval = time.Second
	})
	addEnemy(r, "e1", entity.EnemyGoblin, vec.Vec3{X: 100})

	r.maybeSpawn(t0.Add(time.Second))
	assert.Equal(t, 1, r.state.EnemyCount())
}

func TestBroadcastCountsDroppedSends(t *testing.T) {
	r := newTestRoom(t, 0.5)
	c1, _ := joinDirect(t, r, "p1")
	c2, _ := joinDirect(t, r, "p2")
	c1.full = true

	r.Broadcast(protocol.MsgWorldAnnouncement, protocol.WorldAnnouncement{Message: "hi"})
	assert.Empty(t, c1.ofType(protocol.MsgWorldAnnouncement))
	assert.Len(t, c2.ofType(protocol.MsgWorldAnnouncement), 1)
}

func TestEventSinkReceivesRoomID(t *testing.T) {
	var got []string
	r := newTestRoom(t, 0.5, func(o *Options) {
		o.EventSink = func(roomID string, ev world.GameEvent) {
			got = append(got, roomID+":"+ev.Type.String())
		}
	})
	joinDirect(t, r, "p1")
	assert.Equal(t, []string{"test:player_joined"}, got)
}

func runRoom(t *testing.T, r *Room) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-r.Done()
	})
	return cancel
}

func TestRunProcessesCommands(t *testing.T) {
	r := New("live", Options{Seed: 7})
	runRoom(t, r)
	ctx := context.Background()

	c := newTestClient("p1")
	w, err := r.Join(ctx, c, protocol.JoinRequest{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "p1", w.PlayerID)

	require.NoError(t, r.Submit("p1", mustEnvelope(t, protocol.MsgChat, protocol.ChatIntent{Text: "привет"})))
	require.Eventually(t, func() bool {
		return len(c.ofType(protocol.MsgChat)) == 1
	}, time.Second, 5*time.Millisecond)

	events, err := r.Events(ctx)
	require.NoError(t, err)
	var joined bool
	for _, ev := range events {
		joined = joined || ev.Type == world.EventPlayerJoined
	}
	assert.True(t, joined)

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "alice", snap.Players[0].Username)
	assert.NotEmpty(t, snap.WorldEvents)

	require.NoError(t, r.Leave(ctx, "p1", true))
	assert.ErrorIs(t, r.Leave(ctx, "p1", true), ErrUnknownPlayer)
}

func TestCommandPanicDoesNotStopRoom(t *testing.T) {
	r := New("panic", Options{Seed: 1})
	runRoom(t, r)
	ctx := context.Background()

	require.NoError(t, r.Do(ctx, func(*Room) { panic("сбой команды") }))

	var players int
	require.NoError(t, r.Do(ctx, func(r *Room) { players = r.state.PlayerCount() }))
	assert.Zero(t, players)
}

func TestCloseDisposesRoom(t *testing.T) {
	r := New("closing", Options{Seed: 1})
	go func() { _ = r.Run(context.Background()) }()

	c := newTestClient("p1")
	_, err := r.Join(context.Background(), c, protocol.JoinRequest{})
	require.NoError(t, err)

	r.Close()
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("комната не остановилась")
	}
	assert.True(t, c.isClosed(), "клиенты закрываются при остановке")

	_, err = r.Join(context.Background(), newTestClient("p2"), protocol.JoinRequest{})
	assert.ErrorIs(t, err, ErrRoomClosed)
	assert.ErrorIs(t, r.Submit("p1", protocol.Envelope{Type: protocol.MsgChat}), ErrRoomClosed)
}

func TestTriggerWorldEvent(t *testing.T) {
	r := New("events", Options{Seed: 1})
	runRoom(t, r)
	ctx := context.Background()

	err := r.TriggerWorldEvent(ctx, WorldEventRequest{Type: worldevent.WeatherChange, Weather: "hail"})
	assert.Error(t, err)
	err = r.TriggerWorldEvent(ctx, WorldEventRequest{Type: worldevent.WorldAnnouncement})
	assert.Error(t, err, "пустое объявление отклоняется")

	c := newTestClient("p1")
	_, err = r.Join(ctx, c, protocol.JoinRequest{})
	require.NoError(t, err)

	require.NoError(t, r.TriggerWorldEvent(ctx, WorldEventRequest{
		Type:    worldevent.WorldAnnouncement,
		Message: "Сервер перезапустится через 5 минут",
		Kind:    worldevent.KindWarning,
	}))
	require.Eventually(t, func() bool {
		for _, env := range c.ofType(protocol.MsgWorldAnnouncement) {
			var ann protocol.WorldAnnouncement
			if env.DecodePayload(&ann) == nil && ann.Message == "Сервер перезапустится через 5 минут" {
				return ann.Type == worldevent.KindWarning
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}
