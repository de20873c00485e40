package room

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/annel0/lumoria-live/internal/protocol"
	"github.com/annel0/lumoria-live/internal/vec"
	"github.com/annel0/lumoria-live/internal/world"
	"github.com/annel0/lumoria-live/internal/world/entity"
)

func TestMoveValidation(t *testing.T) {
	r := newTestRoom(t, 0.5)
	_, p := joinDirect(t, r, "p1")

	rot := vec.Identity().WithYaw(math.Pi / 2)
	vel := vec.Vec3{X: 1}
	r.router.HandleMove("p1", protocol.MoveIntent{Position: vec.Vec3{X: 10, Y: 2, Z: -5}, Rotation: &rot, Velocity: &vel}, t0)
	assert.Equal(t, vec.Vec3{X: 10, Y: 2, Z: -5}, p.Position)
	assert.Equal(t, rot, p.Rotation)
	assert.True(t, p.IsMoving)

	for name, pos := range map[string]vec.Vec3{
		"NaN":       {X: math.NaN()},
		"Inf по Y":  {Y: math.Inf(1)},
		"граница X": {X: 1000},
		"граница Z": {Z: -1000},
	} {
		r.router.HandleMove("p1", protocol.MoveIntent{Position: pos}, t0)
		assert.Equal(t, vec.Vec3{X: 10, Y: 2, Z: -5}, p.Position, name)
	}

	// высота не ограничена
	r.router.HandleMove("p1", protocol.MoveIntent{Position: vec.Vec3{Y: 5000}}, t0)
	assert.Equal(t, 5000.0, p.Position.Y)

	assert.NotPanics(t, func() {
		r.router.HandleMove("ghost", protocol.MoveIntent{Position: vec.Vec3{}}, t0)
	})
}

func TestValidPositionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pos := vec.Vec3{
			X: rapid.Float64Range(-999.99, 999.99).Draw(t, "x"),
			Y: rapid.Float64Range(-1e6, 1e6).Draw(t, "y"),
			Z: rapid.Float64Range(-999.99, 999.99).Draw(t, "z"),
		}
		if !ValidPosition(pos) {
			t.Fatalf("позиция %+v должна быть допустимой", pos)
		}
		pos.X = rapid.Float64Min(1000).Draw(t, "bad")
		if ValidPosition(pos) {
			t.Fatalf("позиция %+v за границей мира", pos)
		}
	})
}

func TestAttackDamagesEnemyInRange(t *testing.T) {
	r := newTestRoom(t, 0.5)
	attacker, _ := joinDirect(t, r, "p1")
	watcher, _ := joinDirect(t, r, "p2")
	g := addEnemy(r, "g1", entity.EnemyGoblin, vec.Vec3{X: 4})

	r.router.HandleAttack("p1", protocol.AttackIntent{TargetType: "enemy", TargetID: "g1"}, t0)

	// (20 + 1*2) * 1.0
	assert.Equal(t, 8, g.Health)
	assert.Empty(t, attacker.ofType(protocol.MsgPlayerAttack), "атакующий не получает своё сообщение")
	attacks := watcher.ofType(protocol.MsgPlayerAttack)
	require.Len(t, attacks, 1)
	pa := decode[protocol.PlayerAttack](t, attacks[0])
	assert.Equal(t, 22, pa.Damage)
	assert.Equal(t, "p1", pa.AttackerID)

	events := r.state.Events()
	assert.Equal(t, world.EventDamageDealt, events[len(events)-1].Type)
}

func TestAttackRejections(t *testing.T) {
	r := newTestRoom(t, 0.5)
	_, p := joinDirect(t, r, "p1")
	far := addEnemy(r, "far", entity.EnemyGoblin, vec.Vec3{X: 5.01})
	near := addEnemy(r, "near", entity.EnemyGoblin, vec.Vec3{X: 1})

	r.router.HandleAttack("p1", protocol.AttackIntent{TargetType: "enemy", TargetID: "far"}, t0)
	assert.Equal(t, far.MaxHealth, far.Health, "вне радиуса")

	r.router.HandleAttack("p1", protocol.AttackIntent{TargetType: "player", TargetID: "near"}, t0)
	assert.Equal(t, near.MaxHealth, near.Health, "цель не враг")

	r.router.HandleAttack("p1", protocol.AttackIntent{TargetType: "enemy", TargetID: "missing"}, t0)

	p.IsAlive = false
	r.router.HandleAttack("p1", protocol.AttackIntent{TargetType: "enemy", TargetID: "near"}, t0)
	assert.Equal(t, near.MaxHealth, near.Health, "мёртвый игрок не атакует")
}

func TestAttackKillRunsDeathHandling(t *testing.T) {
	r := newTestRoom(t, 0.5)
	c, p := joinDirect(t, r, "p1")
	addEnemy(r, "g1", entity.EnemyGoblin, vec.Vec3{X: 1})

	r.router.HandleAttack("p1", protocol.AttackIntent{TargetType: "enemy", TargetID: "g1", Damage: 100}, t0)

	_, exists := r.state.Enemy("g1")
	assert.False(t, exists, "убитый враг удалён")
	drops := c.ofType(protocol.MsgEnemyLootDrop)
	require.Len(t, drops, 1)
	assert.Equal(t, "g1", decode[protocol.EnemyLootDrop](t, drops[0]).EnemyID)
	assert.InDelta(t, 1.25, p.Level, 1e-9)
	assert.Len(t, c.ofType(protocol.MsgPlayerLevelUp), 1)
}

func TestSpellInsufficientMana(t *testing.T) {
	r := newTestRoom(t, 0.5)
	c, p := joinDirect(t, r, "p1")
	other, _ := joinDirect(t, r, "p2")
	p.Mana = 5

	r.router.HandleSpell("p1", protocol.SpellIntent{SpellName: "heal"}, t0)

	failed := c.ofType(protocol.MsgSpellFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, protocol.SpellFailed{Reason: "insufficient_mana", Required: 10, Current: 5}, decode[protocol.SpellFailed](t, failed[0]))
	assert.Empty(t, other.ofType(protocol.MsgSpellFailed), "отказ только заклинателю")
	assert.Empty(t, c.ofType(protocol.MsgSpellCast))
	assert.Equal(t, 5, p.Mana)
}

func TestHealSpell(t *testing.T) {
	r := newTestRoom(t, 0.5)
	c, p := joinDirect(t, r, "p1")
	p.Health = 20

	r.router.HandleSpell("p1", protocol.SpellIntent{SpellName: "Heal", ManaCost: 15}, t0)

	assert.Equal(t, 70, p.Health)
	assert.Equal(t, 35, p.Mana)
	assert.Len(t, c.ofType(protocol.MsgSpellCast), 1)
	healed := c.ofType(protocol.MsgHealingReceived)
	require.Len(t, healed, 1)
	assert.Equal(t, protocol.HealingReceived{Amount: 50, NewHealth: 70}, decode[protocol.HealingReceived](t, healed[0]))
}

func TestFireball(t *testing.T) {
	r := newTestRoom(t, 0.5)
	c, p := joinDirect(t, r, "p1")
	addEnemy(r, "g1", entity.EnemyGoblin, vec.Vec3{X: 1})
	orc := addEnemy(r, "o1", entity.EnemyOrc, vec.Vec3{Z: 1})
	addEnemy(r, "g2", entity.EnemyGoblin, vec.Vec3{Z: 3})
	outside := addEnemy(r, "g3", entity.EnemyGoblin, vec.Vec3{X: 4})

	target := vec.Vec3{}
	r.router.HandleSpell("p1", protocol.SpellIntent{SpellName: "fireball", TargetPosition: &target}, t0)

	_, g1 := r.state.Enemy("g1")
	_, g2 := r.state.Enemy("g2")
	assert.False(t, g1)
	assert.False(t, g2, "радиус включительный")
	assert.Equal(t, 50, orc.Health)
	assert.Equal(t, outside.MaxHealth, outside.Health)
	assert.Len(t, c.ofType(protocol.MsgEnemyLootDrop), 2, "убийства заклинанием дают добычу")
	assert.InDelta(t, 1.5, p.Level, 1e-9)
}

func TestFireballWithoutTarget(t *testing.T) {
	r := newTestRoom(t, 0.5)
	_, p := joinDirect(t, r, "p1")
	g := addEnemy(r, "g1", entity.EnemyGoblin, vec.Vec3{})

	r.router.HandleSpell("p1", protocol.SpellIntent{SpellName: "fireball"}, t0)
	assert.Equal(t, g.MaxHealth, g.Health)
	assert.Equal(t, 40, p.Mana, "мана списана")
}

func TestLightningChains(t *testing.T) {
	r := newTestRoom(t, 0.5)
	joinDirect(t, r, "p1")
	e1 := addEnemy(r, "o1", entity.EnemyOrc, vec.Vec3{X: 1})
	e2 := addEnemy(r, "o2", entity.EnemyOrc, vec.Vec3{X: 4})
	decoy := addEnemy(r, "o5", entity.EnemyOrc, vec.Vec3{X: 6, Z: 4.9})
	e3 := addEnemy(r, "o3", entity.EnemyOrc, vec.Vec3{X: 7})
	e4 := addEnemy(r, "o4", entity.EnemyOrc, vec.Vec3{X: 10})

	target := vec.Vec3{}
	r.router.HandleSpell("p1", protocol.SpellIntent{SpellName: "lightning", TargetPosition: &target}, t0)

	assert.Equal(t, 40, e1.Health)
	assert.Equal(t, 40, e2.Health)
	assert.Equal(t, 40, e3.Health, "третий прыжок на ближайшего")
	assert.Equal(t, 80, decoy.Health, "дальний кандидат пропущен")
	assert.Equal(t, 80, e4.Health, "не больше трёх целей")
}

func TestLightningNeedsTargetNearPoint(t *testing.T) {
	r := newTestRoom(t, 0.5)
	joinDirect(t, r, "p1")
	e := addEnemy(r, "o1", entity.EnemyOrc, vec.Vec3{X: 2.5})

	target := vec.Vec3{}
	r.router.HandleSpell("p1", protocol.SpellIntent{SpellName: "lightning", TargetPosition: &target}, t0)
	assert.Equal(t, e.MaxHealth, e.Health)
}

func TestLightningChainRangeIsStrict(t *testing.T) {
	r := newTestRoom(t, 0.5)
	joinDirect(t, r, "p1")
	e1 := addEnemy(r, "o1", entity.EnemyOrc, vec.Vec3{})
	e2 := addEnemy(r, "o2", entity.EnemyOrc, vec.Vec3{X: 5})

	target := vec.Vec3{}
	r.router.HandleSpell("p1", protocol.SpellIntent{SpellName: "lightning", TargetPosition: &target}, t0)
	assert.Equal(t, 40, e1.Health)
	assert.Equal(t, 80, e2.Health, "ровно 5 - вне цепи")
}

func TestUnknownSpellStillCasts(t *testing.T) {
	r := newTestRoom(t, 0.5)
	c, p := joinDirect(t, r, "p1")

	r.router.HandleSpell("p1", protocol.SpellIntent{SpellName: "teleport"}, t0)
	assert.Equal(t, 40, p.Mana)
	assert.Len(t, c.ofType(protocol.MsgSpellCast), 1)
}

func TestModerateText(t *testing.T) {
	cases := map[string]string{
		"  hello  ":                 "hello",
		"<script>alert(1)</script>": "scriptalert(1)/script",
		"<>":                        "",
		"":                          "",
		"   ":                       "",
		strings.Repeat("я", 200):    strings.Repeat("я", 200),
		strings.Repeat("a", 201):    "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ModerateText(in), "вход %q", in)
	}
}

func TestChatBroadcast(t *testing.T) {
	r := newTestRoom(t, 0.5)
	c1, _ := joinDirect(t, r, "p1")
	c2, _ := joinDirect(t, r, "p2")

	r.router.HandleChat("p1", protocol.ChatIntent{Text: " <b>gg</b> "}, t0)
	r.router.HandleChat("p1", protocol.ChatIntent{Text: "<>"}, t0)

	for _, c := range []*testClient{c1, c2} {
		msgs := c.ofType(protocol.MsgChat)
		require.Len(t, msgs, 1)
		chat := decode[protocol.Chat](t, msgs[0])
		assert.Equal(t, "bgg/b", chat.Text)
		assert.Equal(t, "p1", chat.Username)
	}
}

func TestInteractResults(t *testing.T) {
	r := newTestRoom(t, 0.5)
	c, p := joinDirect(t, r, "p1")

	r.router.HandleInteract("p1", protocol.InteractIntent{InteractionType: "pickup", TargetID: "sword"})
	r.router.HandleInteract("p1", protocol.InteractIntent{InteractionType: "use", TargetID: "potion"})
	r.router.HandleInteract("p1", protocol.InteractIntent{InteractionType: "activate", TargetID: "lever"})
	r.router.HandleInteract("p1", protocol.InteractIntent{InteractionType: "dance"})

	pickup := c.ofType(protocol.MsgItemPickupResult)
	require.Len(t, pickup, 1)
	assert.Equal(t, protocol.InteractionResult{Success: true, ItemID: "sword"}, decode[protocol.InteractionResult](t, pickup[0]))
	use := c.ofType(protocol.MsgItemUseResult)
	require.Len(t, use, 1)
	assert.Equal(t, "potion", decode[protocol.InteractionResult](t, use[0]).ItemID)
	act := c.ofType(protocol.MsgObjectActivationResult)
	require.Len(t, act, 1)
	assert.Equal(t, "lever", decode[protocol.InteractionResult](t, act[0]).ObjectID)

	c.reset()
	p.IsAlive = false
	r.router.HandleInteract("p1", protocol.InteractIntent{InteractionType: "pickup", TargetID: "sword"})
	assert.Empty(t, c.ofType(protocol.MsgItemPickupResult))
}

func TestDispatchDropsMalformedPayload(t *testing.T) {
	r := newTestRoom(t, 0.5)
	_, p := joinDirect(t, r, "p1")

	env := protocol.Envelope{Type: protocol.MsgMove, Payload: []byte(`{"position": "nowhere"}`)}
	assert.NotPanics(t, func() { r.router.Dispatch("p1", env, t0) })
	assert.Equal(t, vec.Vec3{}, p.Position)

	r.router.Dispatch("p1", mustEnvelope(t, protocol.MsgMove, protocol.MoveIntent{Position: vec.Vec3{X: 3}}), t0)
	assert.Equal(t, 3.0, p.Position.X)

	r.router.Dispatch("p1", mustEnvelope(t, protocol.MsgLeave, protocol.LeaveRequest{Consented: true}), t0)
	_, ok := r.state.Player("p1")
	assert.False(t, ok)
}

func TestDispatchAcceptsFractionalNumbers(t *testing.T) {
	r := newTestRoom(t, 0.5)
	c, p := joinDirect(t, r, "p1")
	orc := addEnemy(r, "o1", entity.EnemyOrc, vec.Vec3{X: 1})

	raw := func(msgType, payload string) protocol.Envelope {
		return protocol.Envelope{Type: msgType, Payload: []byte(payload)}
	}

	r.router.Dispatch("p1", raw(protocol.MsgMove, `{"position":{"x":3,"y":0,"z":4},"timestamp":12.75}`), t0)
	assert.Equal(t, vec.Vec3{X: 3, Z: 4}, p.Position)

	// (25.5 + 1*2) * 1.0 = 27.5
	r.router.Dispatch("p1", raw(protocol.MsgAttack, `{"targetType":"enemy","targetId":"o1","damage":25.5,"position":{"x":3,"y":0,"z":4},"timestamp":12.75}`), t0)
	assert.Equal(t, orc.MaxHealth-27, orc.Health)

	r.router.Dispatch("p1", raw(protocol.MsgChat, `{"text":"gg","timestamp":1700000000000.5}`), t0)
	assert.Len(t, c.ofType(protocol.MsgChat), 1)

	r.router.Dispatch("p1", raw(protocol.MsgSpell, `{"spellName":"heal","manaCost":15.9,"timestamp":0.001}`), t0)
	assert.Equal(t, p.MaxMana-15, p.Mana, "дробная стоимость округляется вниз")
	assert.Len(t, c.ofType(protocol.MsgSpellCast), 1)

	r.router.Dispatch("p1", raw(protocol.MsgInteract, `{"interactionType":"use","targetId":"potion","timestamp":3.5}`), t0)
	assert.Len(t, c.ofType(protocol.MsgItemUseResult), 1)
}
