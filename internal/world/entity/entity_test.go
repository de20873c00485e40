package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/annel0/lumoria-live/internal/vec"
)

func TestNewPlayerDefaults(t *testing.T) {
	now := time.UnixMilli(1_000)
	p := NewPlayer("s1", "Alice", now)

	assert.Equal(t, "warrior", p.CharacterClass)
	assert.Equal(t, 1.0, p.Level)
	assert.Equal(t, 100, p.Health)
	assert.Equal(t, 50, p.Mana)
	assert.Equal(t, 5.0, p.MovementSpeed)
	assert.True(t, p.IsAlive)
	assert.Equal(t, vec.Vec3{}, p.Position, "игрок появляется в начале координат")
}

func TestPlayerResources(t *testing.T) {
	p := NewPlayer("s1", "Alice", time.Now())

	t.Run("мана не уходит в минус", func(t *testing.T) {
		p.Mana = 5
		assert.False(t, p.ConsumeMana(10))
		assert.Equal(t, 5, p.Mana)
		assert.True(t, p.ConsumeMana(5))
		assert.Equal(t, 0, p.Mana)
	})

	t.Run("восстановление маны ограничено", func(t *testing.T) {
		p.RestoreMana(1000)
		assert.Equal(t, p.MaxMana, p.Mana)
	})

	t.Run("смерть и лечение", func(t *testing.T) {
		p.TakeDamage(150)
		assert.Equal(t, 0, p.Health)
		assert.False(t, p.IsAlive)
		p.Heal(500)
		assert.Equal(t, p.MaxHealth, p.Health)
	})

	t.Run("флаг движения", func(t *testing.T) {
		p.UpdateVelocity(vec.Vec3{X: 1})
		assert.True(t, p.IsMoving)
		p.UpdateVelocity(vec.Vec3{})
		assert.False(t, p.IsMoving)
	})

	t.Run("уровень ограничен сотней", func(t *testing.T) {
		p.Level = 99.9
		p.GainLevel(5)
		assert.Equal(t, float64(MaxLevel), p.Level)
	})
}

func TestPlayerHealthClampedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := NewPlayer("p", "p", time.Now())
		ops := rapid.SliceOf(rapid.IntRange(-200, 200)).Draw(t, "ops")
		for _, op := range ops {
			if op >= 0 {
				p.TakeDamage(op)
			} else {
				p.Heal(-op)
			}
			if p.Health < 0 || p.Health > p.MaxHealth {
				t.Fatalf("здоровье вне диапазона: %d", p.Health)
			}
			if p.IsAlive != (p.Health > 0) {
				t.Fatalf("isAlive=%v при health=%d", p.IsAlive, p.Health)
			}
		}
	})
}

func TestArchetypes(t *testing.T) {
	cases := []struct {
		t      EnemyType
		hp     int
		dmg    int
		speed  float64
		detect float64
	}{
		{EnemyGoblin, 30, 8, 4.0, 8},
		{EnemyOrc, 80, 15, 2.5, 12},
		{EnemySkeleton, 50, 12, 3.5, 10},
		{EnemyDragon, 500, 50, 6.0, 20},
	}
	for _, c := range cases {
		t.Run(c.t.String(), func(t *testing.T) {
			e := NewEnemy("e", c.t, vec.Vec3{})
			assert.Equal(t, c.hp, e.MaxHealth)
			assert.Equal(t, c.dmg, e.Damage)
			assert.Equal(t, c.speed, e.MovementSpeed)
			assert.Equal(t, c.detect, e.DetectionRange)
			assert.Equal(t, 1, e.Level)
		})
	}

	dragon := ArchetypeOf(EnemyDragon)
	assert.Equal(t, 5.0, dragon.AttackRange)
	assert.Equal(t, 3*time.Second, dragon.AttackCooldown)
	assert.Equal(t, 2.0, ArchetypeOf(EnemyGoblin).AttackRange)
}

func TestEnemyTypeText(t *testing.T) {
	data, err := json.Marshal(map[string]EnemyType{"type": EnemySkeleton})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"skeleton"}`, string(data))

	var parsed struct{ Type EnemyType }
	require.NoError(t, json.Unmarshal([]byte(`{"Type":"orc"}`), &parsed))
	assert.Equal(t, EnemyOrc, parsed.Type)

	_, err = ParseEnemyType("slime")
	assert.Error(t, err)
}

func TestMakeBoss(t *testing.T) {
	e := NewEnemy("b", EnemyOrc, vec.Vec3{})
	e.MakeBoss()
	assert.Equal(t, 240, e.MaxHealth)
	assert.Equal(t, 240, e.Health)
	assert.Equal(t, 30, e.Damage)
	assert.Equal(t, 18.0, e.DetectionRange)
	assert.Equal(t, BossLevel, e.Level)
	assert.True(t, e.IsBoss)
}

func TestEnemyDeathIsTerminal(t *testing.T) {
	e := NewEnemy("g", EnemyGoblin, vec.Vec3{})
	e.Health = 10
	e.TakeDamage(15)

	assert.Equal(t, 0, e.Health)
	assert.False(t, e.IsAlive)
	assert.Equal(t, StateDead, e.State)

	assert.False(t, e.SetState(StateChasing), "из DEAD нет переходов")
	assert.Equal(t, StateDead, e.State)

	assert.True(t, e.MarkDeathHandled())
	assert.False(t, e.MarkDeathHandled(), "смерть обрабатывается ровно один раз")
}

func TestEnemyCanAttack(t *testing.T) {
	e := NewEnemy("g", EnemyGoblin, vec.Vec3{})
	now := time.UnixMilli(10_000)
	assert.True(t, e.CanAttack(now), "первая атака без ожидания")

	e.LastAttackTime = now
	assert.False(t, e.CanAttack(now.Add(1999*time.Millisecond)))
	assert.True(t, e.CanAttack(now.Add(2000*time.Millisecond)))
}

func TestEnemyHealthProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		typ := EnemyType(rapid.IntRange(0, 3).Draw(t, "type"))
		e := NewEnemy("e", typ, vec.Vec3{})
		hits := rapid.SliceOf(rapid.IntRange(0, 600)).Draw(t, "hits")
		deadSeen := false
		for _, h := range hits {
			e.TakeDamage(h)
			e.SetState(StateChasing)
			if e.IsAlive != (e.Health > 0) {
				t.Fatalf("isAlive=%v health=%d", e.IsAlive, e.Health)
			}
			if deadSeen && e.State != StateDead {
				t.Fatalf("мёртвый враг сменил состояние на %s", e.State)
			}
			deadSeen = e.State == StateDead
		}
	})
}
