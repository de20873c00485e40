package ai

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/lumoria-live/internal/loot"
	"github.com/annel0/lumoria-live/internal/protocol"
	"github.com/annel0/lumoria-live/internal/vec"
	"github.com/annel0/lumoria-live/internal/world"
	"github.com/annel0/lumoria-live/internal/world/entity"
)

type sent struct {
	msgType string
	payload interface{}
}

type recorder struct {
	messages []sent
}

func (r *recorder) Broadcast(msgType string, payload interface{}) {
	r.messages = append(r.messages, sent{msgType, payload})
}

func (r *recorder) ofType(msgType string) []interface{} {
	var out []interface{}
	for _, m := range r.messages {
		if m.msgType == msgType {
			out = append(out, m.payload)
		}
	}
	return out
}

// fixedRand всегда возвращает одно значение
type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

type fixture struct {
	state *world.State
	out   *recorder
	ctrl  *Controller
	now   time.Time
}

func newFixture(t *testing.T, roll float64) *fixture {
	t.Helper()
	now := time.UnixMilli(1_000_000)
	state := world.NewState(now, 20)
	out := &recorder{}
	ctrl := NewController(state, loot.NewEngine(nil), out, fixedRand(roll), Options{})
	return &fixture{state: state, out: out, ctrl: ctrl, now: now}
}

func (f *fixture) player(id string, pos vec.Vec3) *entity.Player {
	p := entity.NewPlayer(id, id, f.now)
	p.Position = pos
	f.state.AddPlayer(p)
	return p
}

func (f *fixture) enemy(id string, t entity.EnemyType, pos vec.Vec3) *entity.Enemy {
	e := entity.NewEnemy(id, t, pos)
	f.state.AddEnemy(e)
	return e
}

func TestDecideIdle(t *testing.T) {
	e := entity.NewEnemy("g", entity.EnemyGoblin, vec.Vec3{})

	d := Decide(e, Perception{Detected: "p1"}, 0.5)
	assert.Equal(t, entity.StateChasing, d.Next)
	assert.True(t, d.SetTarget)
	assert.Equal(t, "p1", d.Target)

	assert.Equal(t, entity.StatePatrolling, Decide(e, Perception{}, 0.009).Next)
	assert.Equal(t, entity.StateIdle, Decide(e, Perception{}, 0.01).Next, "1% строго меньше")
}

func TestDecidePatrolling(t *testing.T) {
	e := entity.NewEnemy("g", entity.EnemyGoblin, vec.Vec3{})
	e.State = entity.StatePatrolling

	d := Decide(e, Perception{SpawnDistance: 3}, 0.5)
	assert.Equal(t, ActionWander, d.Action)
	assert.Equal(t, entity.StatePatrolling, d.Next)

	d = Decide(e, Perception{SpawnDistance: 9}, 0.5)
	assert.Equal(t, ActionReturnToSpawn, d.Action, "дальше detectionRange от точки появления")

	d = Decide(e, Perception{SpawnDistance: 3}, 0.004)
	assert.Equal(t, entity.StateIdle, d.Next)
	assert.Equal(t, ActionWander, d.Action, "в тике перехода враг ещё двигается")
}

func TestDecideChasing(t *testing.T) {
	cases := []struct {
		name   string
		typ    entity.EnemyType
		p      Perception
		roll   float64
		next   entity.EnemyState
		action Action
		clear  bool
	}{
		{"цель пропала", entity.EnemyGoblin, Perception{}, 0.1, entity.StateIdle, ActionNone, true},
		{"в радиусе атаки", entity.EnemyGoblin, Perception{TargetAlive: true, TargetDistance: 2}, 0.1, entity.StateAttacking, ActionNone, false},
		{"преследование", entity.EnemyGoblin, Perception{TargetAlive: true, TargetDistance: 11}, 0.1, entity.StateChasing, ActionMoveToTarget, false},
		{"гоблин возвращается в патруль", entity.EnemyGoblin, Perception{TargetAlive: true, TargetDistance: 12.5}, 0.69, entity.StatePatrolling, ActionNone, true},
		{"гоблин уходит в покой", entity.EnemyGoblin, Perception{TargetAlive: true, TargetDistance: 12.5}, 0.7, entity.StateIdle, ActionNone, true},
		{"орк агрессивнее", entity.EnemyOrc, Perception{TargetAlive: true, TargetDistance: 19}, 0.35, entity.StateIdle, ActionNone, true},
		{"дракон не патрулирует", entity.EnemyDragon, Perception{TargetAlive: true, TargetDistance: 31}, 0, entity.StateIdle, ActionNone, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e := entity.NewEnemy("e", c.typ, vec.Vec3{})
			e.State = entity.StateChasing
			d := Decide(e, c.p, c.roll)
			assert.Equal(t, c.next, d.Next)
			assert.Equal(t, c.action, d.Action)
			assert.Equal(t, c.clear, d.ClearTarget)
		})
	}
}

func TestDecideAttacking(t *testing.T) {
	e := entity.NewEnemy("e", entity.EnemySkeleton, vec.Vec3{})
	e.State = entity.StateAttacking

	assert.Equal(t, entity.StateChasing, Decide(e, Perception{TargetAlive: true, TargetDistance: 2.1}, 0).Next)
	assert.Equal(t, ActionAttack, Decide(e, Perception{TargetAlive: true, TargetDistance: 2, CanAttack: true}, 0).Action)
	assert.Equal(t, ActionNone, Decide(e, Perception{TargetAlive: true, TargetDistance: 1}, 0).Action, "перезарядка")

	d := Decide(e, Perception{TargetAlive: false}, 0)
	assert.Equal(t, entity.StateIdle, d.Next)
	assert.True(t, d.ClearTarget)
}

func TestDecideDeadIsTerminal(t *testing.T) {
	e := entity.NewEnemy("e", entity.EnemyGoblin, vec.Vec3{})
	e.TakeDamage(1000)
	for _, roll := range []float64{0, 0.001, 0.5, 0.99} {
		d := Decide(e, Perception{Detected: "p", TargetAlive: true, CanAttack: true}, roll)
		assert.Equal(t, entity.StateDead, d.Next)
		assert.Equal(t, ActionNone, d.Action)
	}
}

func TestPatrollingEnemyAcquiresPlayer(t *testing.T) {
	f := newFixture(t, 0.5)
	e := f.enemy("g", entity.EnemyGoblin, vec.Vec3{})
	e.State = entity.StatePatrolling
	f.player("p1", vec.Vec3{X: 6})

	f.ctrl.UpdateEnemy(e, f.now, 50*time.Millisecond)

	assert.Equal(t, entity.StateChasing, e.State)
	assert.Equal(t, "p1", e.TargetPlayerID)
}

func TestClosestPlayerTieFirstFound(t *testing.T) {
	f := newFixture(t, 0.5)
	e := f.enemy("g", entity.EnemyGoblin, vec.Vec3{})
	f.player("far", vec.Vec3{X: 7})
	f.player("a", vec.Vec3{X: 3})
	f.player("b", vec.Vec3{X: -3})
	dead := f.player("dead", vec.Vec3{X: 1})
	dead.TakeDamage(1000)

	assert.Equal(t, "a", f.ctrl.closestPlayer(e))
}

func TestMoveToward(t *testing.T) {
	e := entity.NewEnemy("g", entity.EnemyGoblin, vec.Vec3{})
	e.Rotation = vec.Quat{X: 0.1, Z: 0.2, W: 1}

	moveToward(e, vec.Vec3{X: 10}, 500*time.Millisecond)
	assert.InDelta(t, 2.0, e.Position.X, 1e-9, "скорость 4 * 0.5с")
	assert.InDelta(t, math.Sin(math.Pi/4), e.Rotation.Y, 1e-9)
	assert.InDelta(t, math.Cos(math.Pi/4), e.Rotation.W, 1e-9)
	assert.Equal(t, 0.1, e.Rotation.X, "X кватерниона не меняется")
	assert.Equal(t, 0.2, e.Rotation.Z, "Z кватерниона не меняется")

	before := *e
	moveToward(e, e.Position, time.Second)
	assert.Equal(t, before.Position, e.Position, "совпадающие точки не двигаются")
	assert.Equal(t, before.Rotation, e.Rotation)
}

func TestWanderStaysSlow(t *testing.T) {
	f := newFixture(t, 0.25) // угол pi/2
	e := entity.NewEnemy("g", entity.EnemyGoblin, vec.Vec3{})
	f.ctrl.wander(e, time.Second)
	assert.InDelta(t, 0.0, e.Position.X, 1e-9)
	assert.InDelta(t, 1.2, e.Position.Z, 1e-9, "4 * 0.3 * 1с")
}

func TestChasingMovesTowardTarget(t *testing.T) {
	f := newFixture(t, 0.5)
	e := f.enemy("o", entity.EnemyOrc, vec.Vec3{})
	e.State = entity.StateChasing
	e.TargetPlayerID = "p1"
	f.player("p1", vec.Vec3{Z: 10})

	f.ctrl.UpdateEnemy(e, f.now, time.Second)
	assert.InDelta(t, 2.5, e.Position.Z, 1e-9)
	assert.Equal(t, entity.StateChasing, e.State)
}

func TestAttackAppliesDamageAndCooldown(t *testing.T) {
	f := newFixture(t, 0.5) // разброс 0.8 + 0.2 = 1.0
	e := f.enemy("o", entity.EnemyOrc, vec.Vec3{})
	e.State = entity.StateAttacking
	e.TargetPlayerID = "p1"
	p := f.player("p1", vec.Vec3{X: 1})

	f.ctrl.UpdateEnemy(e, f.now, 50*time.Millisecond)
	assert.Equal(t, 85, p.Health, "урон орка 15")
	assert.Equal(t, f.now, e.LastAttackTime)

	attacks := f.out.ofType(protocol.MsgEnemyAttack)
	require.Len(t, attacks, 1)
	assert.Equal(t, protocol.EnemyAttack{EnemyID: "o", TargetID: "p1", Damage: 15, Timestamp: f.now.UnixMilli()}, attacks[0])

	f.ctrl.UpdateEnemy(e, f.now.Add(time.Second), 50*time.Millisecond)
	assert.Equal(t, 85, p.Health, "перезарядка 2с")

	f.ctrl.UpdateEnemy(e, f.now.Add(2*time.Second), 50*time.Millisecond)
	assert.Equal(t, 70, p.Health)
}

func TestDamageVarianceBounds(t *testing.T) {
	low := newFixture(t, 0).ctrl.rollDamage(50)
	high := newFixture(t, 0.999999).ctrl.rollDamage(50)
	assert.Equal(t, 40, low)
	assert.Equal(t, 59, high)
}

func TestEnemyKillsPlayer(t *testing.T) {
	f := newFixture(t, 0.5)
	e := f.enemy("d", entity.EnemyDragon, vec.Vec3{})
	e.State = entity.StateAttacking
	e.TargetPlayerID = "p1"
	p := f.player("p1", vec.Vec3{X: 1})
	p.Health = 30

	f.ctrl.UpdateEnemy(e, f.now, 50*time.Millisecond)

	assert.False(t, p.IsAlive)
	assert.Equal(t, entity.StateIdle, e.State)
	assert.Empty(t, e.TargetPlayerID)

	deaths := f.out.ofType(protocol.MsgPlayerDeath)
	require.Len(t, deaths, 1)
	assert.Equal(t, "d", deaths[0].(protocol.PlayerDeath).KillerID)

	events := f.state.Events()
	assert.Equal(t, world.EventPlayerDied, events[len(events)-1].Type)
}

func TestHandleEnemyDeathOnce(t *testing.T) {
	f := newFixture(t, 0.999) // все вероятностные броски мимо
	e := f.enemy("g", entity.EnemyGoblin, vec.Vec3{X: 2})
	killer := f.player("p1", vec.Vec3{})

	var observed int
	f.ctrl.opts.OnDeath = func(*entity.Enemy, *entity.Player, loot.Result) { observed++ }

	e.Health = 10
	e.TakeDamage(15)
	require.Equal(t, entity.StateDead, e.State)

	assert.True(t, f.ctrl.HandleEnemyDeath(e, killer, f.now))
	assert.False(t, f.ctrl.HandleEnemyDeath(e, killer, f.now), "повторная обработка игнорируется")

	assert.Len(t, f.out.ofType(protocol.MsgEnemyLootDrop), 1)
	assert.Equal(t, 1, observed)
	_, exists := f.state.Enemy("g")
	assert.False(t, exists, "враг удалён")

	assert.InDelta(t, 1.25, killer.Level, 1e-9, "гоблин 25 * 1 * 0.01")
	levelUps := f.out.ofType(protocol.MsgPlayerLevelUp)
	require.Len(t, levelUps, 1)
	assert.InDelta(t, 1.25, levelUps[0].(protocol.PlayerLevelUp).NewLevel, 1e-9)
}

func TestHandleEnemyDeathAwardsGold(t *testing.T) {
	f := newFixture(t, 0.5)
	boss := entity.NewEnemy("d", entity.EnemyDragon, vec.Vec3{})
	boss.Level = 20
	f.state.AddEnemy(boss)
	killer := f.player("p1", vec.Vec3{})
	killer.Level = 99.5
	boss.TakeDamage(10_000)

	f.ctrl.HandleEnemyDeath(boss, killer, f.now)

	assert.Equal(t, float64(entity.MaxLevel), killer.Level, "уровень ограничен")
	assert.Equal(t, int64(600), killer.Gold, "floor(0.5*801+200)")
	drop := f.out.ofType(protocol.MsgEnemyLootDrop)[0].(protocol.EnemyLootDrop)
	assert.Equal(t, "p1", drop.KillerName)
	assert.Len(t, drop.Items, 2, "гарантированные предметы дракона")
}

func TestHandleEnemyDeathUnknownTable(t *testing.T) {
	f := newFixture(t, 0.1)
	e := f.enemy("s", entity.EnemySkeleton, vec.Vec3{})
	killer := f.player("p1", vec.Vec3{})
	e.TakeDamage(1000)

	require.True(t, f.ctrl.HandleEnemyDeath(e, killer, f.now))
	drop := f.out.ofType(protocol.MsgEnemyLootDrop)[0].(protocol.EnemyLootDrop)
	assert.NotNil(t, drop.Items, "пустой список, а не null")
	assert.Empty(t, drop.Items)
	assert.Zero(t, drop.Gold)
}

func TestSpawnRandomEnemy(t *testing.T) {
	f := newFixture(t, 0.5)
	e, err := f.ctrl.SpawnRandomEnemy(f.now)
	require.NoError(t, err)

	assert.Equal(t, entity.EnemyOrc, e.Type, "0.5 * 3 -> индекс 1")
	dist := e.Position.Length()
	assert.InDelta(t, 20.0, dist, 1e-9, "10 + 0.5*20")
	assert.Equal(t, 0.0, e.Position.Y)
	assert.Contains(t, e.ID, "enemy_")

	for i := 1; i < DefaultMaxEnemies; i++ {
		_, err := f.ctrl.SpawnRandomEnemy(f.now)
		require.NoError(t, err)
	}
	_, err = f.ctrl.SpawnRandomEnemy(f.now)
	assert.ErrorIs(t, err, ErrEnemyCap)
	assert.Equal(t, DefaultMaxEnemies, f.state.EnemyCount())
}

func TestSpawnBossIgnoresCap(t *testing.T) {
	f := newFixture(t, 0.5)
	for i := 0; i < DefaultMaxEnemies; i++ {
		_, err := f.ctrl.SpawnRandomEnemy(f.now)
		require.NoError(t, err)
	}

	boss := f.ctrl.SpawnBoss(entity.EnemyDragon, vec.Vec3{Z: 30}, f.now)
	assert.True(t, boss.IsBoss)
	assert.Equal(t, 1500, boss.MaxHealth)
	assert.Equal(t, 100, boss.Damage)
	assert.Equal(t, 30.0, boss.DetectionRange)
	assert.Equal(t, 5, boss.Level)
	assert.Contains(t, boss.ID, "boss_dragon_")

	spawned := f.out.ofType(protocol.MsgBossSpawned)
	require.Len(t, spawned, 1)
	assert.Equal(t, "dragon", spawned[0].(protocol.BossSpawned).Type)
}

type panicky struct{ recorder }

func (p *panicky) Broadcast(string, interface{}) { panic("сломанный канал") }

func TestUpdateIsolatesPanics(t *testing.T) {
	now := time.UnixMilli(0)
	state := world.NewState(now, 20)
	ctrl := NewController(state, loot.NewEngine(nil), &panicky{}, fixedRand(0.5), Options{})

	first := entity.NewEnemy("a", entity.EnemyOrc, vec.Vec3{})
	first.State = entity.StateAttacking
	first.TargetPlayerID = "p1"
	state.AddEnemy(first)
	second := entity.NewEnemy("b", entity.EnemyGoblin, vec.Vec3{X: 50})
	second.State = entity.StatePatrolling
	second.SpawnPosition = vec.Vec3{}
	state.AddEnemy(second)
	p := entity.NewPlayer("p1", "p1", now)
	p.Position = vec.Vec3{X: 1}
	state.AddPlayer(p)

	require.NotPanics(t, func() { ctrl.Update(now, time.Second) })
	assert.Less(t, second.Position.X, 50.0, "второй враг обработан после сбоя первого")
}

func TestExperience(t *testing.T) {
	e := entity.NewEnemy("d", entity.EnemyDragon, vec.Vec3{})
	e.MakeBoss()
	assert.InDelta(t, 25.0, Experience(e), 1e-9, "500 * 5 * 0.01")
}
