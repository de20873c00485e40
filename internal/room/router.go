package room

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/annel0/lumoria-live/internal/logging"
	"github.com/annel0/lumoria-live/internal/protocol"
	"github.com/annel0/lumoria-live/internal/vec"
	"github.com/annel0/lumoria-live/internal/world"
	"github.com/annel0/lumoria-live/internal/world/entity"
)

// Параметры боя и заклинаний
const (
	MaxAttackRange       = 5.0
	DefaultAttackDamage  = 20
	levelDamageBonus     = 2.0
	damageVarianceBase   = 0.8
	damageVarianceRange  = 0.4
	DefaultSpellManaCost = 10

	fireballRadius  = 3.0
	fireballDamage  = 30
	healAmount      = 50
	lightningDamage = 40
	lightningRadius = 2.0
	lightningChain  = 5.0
	lightningHops   = 3

	MaxChatLength = 200
	worldBound    = 1000.0
)

// Router проверяет и применяет намерения клиентов. Все отказы
// молчаливые, кроме нехватки маны.
type Router struct {
	room   *Room
	logger *logging.Logger
}

func newRouter(r *Room) *Router {
	return &Router{room: r, logger: logging.GetGameLogger()}
}

// Dispatch разбирает конверт и вызывает обработчик намерения
func (rt *Router) Dispatch(clientID string, env protocol.Envelope, now time.Time) {
	rt.room.opts.Metrics.Intent(env.Type)

	switch env.Type {
	case protocol.MsgMove:
		var msg protocol.MoveIntent
		if rt.decode(env, &msg) {
			rt.HandleMove(clientID, msg, now)
		}
	case protocol.MsgAttack:
		var msg protocol.AttackIntent
		if rt.decode(env, &msg) {
			rt.HandleAttack(clientID, msg, now)
		}
	case protocol.MsgSpell:
		var msg protocol.SpellIntent
		if rt.decode(env, &msg) {
			rt.HandleSpell(clientID, msg, now)
		}
	case protocol.MsgChat:
		var msg protocol.ChatIntent
		if rt.decode(env, &msg) {
			rt.HandleChat(clientID, msg, now)
		}
	case protocol.MsgInteract:
		var msg protocol.InteractIntent
		if rt.decode(env, &msg) {
			rt.HandleInteract(clientID, msg)
		}
	case protocol.MsgLeave:
		var msg protocol.LeaveRequest
		if rt.decode(env, &msg) {
			if err := rt.room.leave(clientID, msg.Consented, now); err != nil {
				rt.logger.Debug("leave от %s: %v", clientID, err)
			}
		}
	default:
		rt.logger.Debug("Неизвестный тип сообщения от %s: %s", clientID, env.Type)
	}
}

func (rt *Router) decode(env protocol.Envelope, out interface{}) bool {
	if err := env.DecodePayload(out); err != nil {
		rt.logger.Debug("Отброшено сообщение %s: %v", env.Type, err)
		return false
	}
	return true
}

// HandleMove применяет позицию, если она конечна и в пределах мира
func (rt *Router) HandleMove(clientID string, msg protocol.MoveIntent, now time.Time) {
	p, ok := rt.room.state.Player(clientID)
	if !ok || !ValidPosition(msg.Position) {
		return
	}

	p.UpdatePosition(msg.Position, now)
	if msg.Rotation != nil && msg.Rotation.IsFinite() {
		p.Rotation = *msg.Rotation
	}
	if msg.Velocity != nil && msg.Velocity.IsFinite() {
		p.UpdateVelocity(*msg.Velocity)
	}
}

// ValidPosition - все компоненты конечны, |x| и |z| меньше границы мира
func ValidPosition(pos vec.Vec3) bool {
	return pos.IsFinite() && math.Abs(pos.X) < worldBound && math.Abs(pos.Z) < worldBound
}

// HandleAttack наносит урон врагу в радиусе ближнего боя
func (rt *Router) HandleAttack(clientID string, msg protocol.AttackIntent, now time.Time) {
	p, ok := rt.room.state.Player(clientID)
	if !ok || !p.IsAlive {
		return
	}
	if msg.TargetType != "enemy" || msg.TargetID == "" {
		return
	}
	e, ok := rt.room.state.Enemy(msg.TargetID)
	if !ok || !e.IsAlive {
		return
	}
	if vec.Distance(p.Position, e.Position) > MaxAttackRange {
		return
	}

	damage := rt.playerDamage(p, msg.Damage)
	e.TakeDamage(damage)

	rt.room.broadcastExcept(clientID, protocol.MsgPlayerAttack, protocol.PlayerAttack{
		AttackerID: clientID,
		TargetID:   msg.TargetID,
		TargetType: "enemy",
		Damage:     damage,
		Position:   msg.Position,
		Timestamp:  now.UnixMilli(),
	})
	hitAt := e.Position
	rt.room.state.AddEvent(world.GameEvent{
		Type:     world.EventDamageDealt,
		PlayerID: clientID,
		TargetID: e.ID,
		Data:     map[string]interface{}{"damage": damage, "targetType": "enemy"},
		Position: &hitAt,
	})

	if !e.IsAlive {
		rt.room.ai.HandleEnemyDeath(e, p, now)
	}
}

// playerDamage: floor((requested|20 + level*2) * U[0.8, 1.2))
func (rt *Router) playerDamage(p *entity.Player, requested float64) int {
	base := requested
	if requested <= 0 {
		base = DefaultAttackDamage
	}
	base += p.Level * levelDamageBonus
	variance := damageVarianceBase + rt.room.rng.Float64()*damageVarianceRange
	return clampInt(math.Floor(base * variance))
}

// clampInt переводит неотрицательное число в int без переполнения
func clampInt(v float64) int {
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}

// HandleSpell списывает ману и применяет эффект; при нехватке маны
// клиент получает spell_failed
func (rt *Router) HandleSpell(clientID string, msg protocol.SpellIntent, now time.Time) {
	p, ok := rt.room.state.Player(clientID)
	if !ok || !p.IsAlive {
		return
	}

	cost := clampInt(math.Floor(msg.ManaCost))
	if cost <= 0 {
		cost = DefaultSpellManaCost
	}
	if !p.ConsumeMana(cost) {
		rt.room.sendToID(clientID, protocol.MsgSpellFailed, protocol.SpellFailed{
			Reason:   "insufficient_mana",
			Required: cost,
			Current:  p.Mana,
		})
		return
	}

	rt.room.Broadcast(protocol.MsgSpellCast, protocol.SpellCast{
		CasterID:       clientID,
		SpellName:      msg.SpellName,
		Position:       p.Position,
		TargetPosition: msg.TargetPosition,
		Timestamp:      now.UnixMilli(),
	})
	rt.room.state.AddEvent(world.GameEvent{
		Type:     world.EventSpellCast,
		PlayerID: clientID,
		Data:     map[string]interface{}{"spellName": msg.SpellName, "manaCost": cost},
		Position: msg.TargetPosition,
	})

	switch strings.ToLower(msg.SpellName) {
	case "fireball":
		rt.fireball(p, msg.TargetPosition, now)
	case "heal":
		p.Heal(healAmount)
		rt.room.sendToID(clientID, protocol.MsgHealingReceived, protocol.HealingReceived{
			Amount:    healAmount,
			NewHealth: p.Health,
		})
	case "lightning":
		rt.lightning(p, msg.TargetPosition, now)
	default:
		rt.logger.Info("✨ Неизвестное заклинание: %s", msg.SpellName)
	}
}

func (rt *Router) fireball(caster *entity.Player, target *vec.Vec3, now time.Time) {
	if target == nil {
		return
	}
	for _, e := range rt.room.state.EnemiesNear(*target, fireballRadius) {
		e.TakeDamage(fireballDamage)
		if !e.IsAlive {
			rt.room.ai.HandleEnemyDeath(e, caster, now)
		}
	}
}

// lightning бьёт первого живого врага рядом с точкой и перескакивает
// на ближайшего ещё не поражённого
func (rt *Router) lightning(caster *entity.Player, target *vec.Vec3, now time.Time) {
	if target == nil {
		return
	}
	near := rt.room.state.EnemiesNear(*target, lightningRadius)
	if len(near) == 0 {
		return
	}

	current := near[0]
	hit := make(map[string]bool, lightningHops)
	for hops := 0; current != nil && hops < lightningHops; hops++ {
		hit[current.ID] = true
		from := current.Position
		current.TakeDamage(lightningDamage)
		if !current.IsAlive {
			rt.room.ai.HandleEnemyDeath(current, caster, now)
		}

		var next *entity.Enemy
		closest := lightningChain
		for _, e := range rt.room.state.Enemies() {
			if !e.IsAlive || hit[e.ID] {
				continue
			}
			if d := vec.Distance(from, e.Position); d < closest {
				next = e
				closest = d
			}
		}
		current = next
	}
}

// HandleChat фильтрует текст и рассылает его комнате
func (rt *Router) HandleChat(clientID string, msg protocol.ChatIntent, now time.Time) {
	p, ok := rt.room.state.Player(clientID)
	if !ok {
		return
	}
	text := ModerateText(msg.Text)
	if text == "" {
		return
	}

	rt.room.Broadcast(protocol.MsgChat, protocol.Chat{
		PlayerID:  clientID,
		Username:  p.Username,
		Text:      text,
		Timestamp: now.UnixMilli(),
	})
	rt.room.state.AddEvent(world.GameEvent{
		Type:     world.EventChat,
		PlayerID: clientID,
		Data:     map[string]interface{}{"text": text},
	})
}

// ModerateText отбрасывает пустой или слишком длинный текст, убирает
// угловые скобки и пробелы по краям
func ModerateText(text string) string {
	if text == "" || utf8.RuneCountInString(text) > MaxChatLength {
		return ""
	}
	text = strings.NewReplacer("<", "", ">", "").Replace(text)
	return strings.TrimSpace(text)
}

// HandleInteract подтверждает взаимодействие; инвентарь вне комнаты
func (rt *Router) HandleInteract(clientID string, msg protocol.InteractIntent) {
	p, ok := rt.room.state.Player(clientID)
	if !ok || !p.IsAlive {
		return
	}

	switch msg.InteractionType {
	case "pickup":
		at := p.Position
		rt.room.sendToID(clientID, protocol.MsgItemPickupResult, protocol.InteractionResult{Success: true, ItemID: msg.TargetID})
		rt.room.state.AddEvent(world.GameEvent{
			Type:     world.EventItemPickup,
			PlayerID: clientID,
			TargetID: msg.TargetID,
			Position: &at,
		})
	case "use":
		rt.room.sendToID(clientID, protocol.MsgItemUseResult, protocol.InteractionResult{Success: true, ItemID: msg.TargetID})
	case "activate":
		rt.room.sendToID(clientID, protocol.MsgObjectActivationResult, protocol.InteractionResult{Success: true, ObjectID: msg.TargetID})
	}
}
