package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRoomMetrics(reg)

	m.RoomOpened()
	m.ObserveTick("game", 2*time.Millisecond, 3, 7)
	m.Intent("move")
	m.Intent("move")
	m.EnemyKilled("goblin", []string{"common", "rare"}, 120)
	m.EnemySpawned("dragon", true)
	m.WorldEvent("weather_change")
	m.SendDropped()
	m.Panic("ai")
	m.PlayerDied()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.rooms))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.players.WithLabelValues("game")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.enemies.WithLabelValues("game")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.intents.WithLabelValues("move")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.enemyKills.WithLabelValues("goblin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lootItems.WithLabelValues("rare")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.lootGold))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.enemySpawns.WithLabelValues("dragon", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.panics.WithLabelValues("ai")))

	m.RoomClosed("game")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.rooms))

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "lumoria_room_players" {
			assert.Empty(t, f.GetMetric(), "серии закрытой комнаты удалены")
		}
	}
}

func TestNilRoomMetricsIsNoop(t *testing.T) {
	var m *RoomMetrics
	assert.NotPanics(t, func() {
		m.RoomOpened()
		m.ObserveTick("x", time.Millisecond, 1, 1)
		m.Intent("chat")
		m.EnemyKilled("orc", nil, 0)
		m.RoomClosed("x")
	})
}
