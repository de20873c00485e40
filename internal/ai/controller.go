package ai

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/lumoria-live/internal/logging"
	"github.com/annel0/lumoria-live/internal/loot"
	"github.com/annel0/lumoria-live/internal/protocol"
	"github.com/annel0/lumoria-live/internal/vec"
	"github.com/annel0/lumoria-live/internal/world"
	"github.com/annel0/lumoria-live/internal/world/entity"
)

const (
	DefaultMaxEnemies = 20

	wanderSpeedFactor   = 0.3
	xpConversion        = 0.01
	damageVarianceBase  = 0.8
	damageVarianceRange = 0.4
	spawnRingMin        = 10.0
	spawnRingWidth      = 20.0
)

// ErrEnemyCap - достигнут лимит одновременных врагов
var ErrEnemyCap = errors.New("enemy cap reached")

// Rand - источник случайности; *rand.Rand подходит
type Rand interface {
	Float64() float64
}

// Broadcaster рассылает уведомление всем клиентам комнаты
type Broadcaster interface {
	Broadcast(msgType string, payload interface{})
}

// Options настраивает контроллер
type Options struct {
	MaxEnemies int
	// OnDeath вызывается после обработки смерти врага
	OnDeath func(enemy *entity.Enemy, killer *entity.Player, drop loot.Result)
	// OnSpawn вызывается после появления врага
	OnSpawn func(enemy *entity.Enemy)
}

// Controller ведёт автоматы всех врагов комнаты. Работает только
// в горутине комнаты.
type Controller struct {
	state  *world.State
	loot   *loot.Engine
	out    Broadcaster
	rng    Rand
	opts   Options
	logger *logging.Logger
}

// NewController создаёт контроллер
func NewController(state *world.State, engine *loot.Engine, out Broadcaster, rng Rand, opts Options) *Controller {
	if opts.MaxEnemies <= 0 {
		opts.MaxEnemies = DefaultMaxEnemies
	}
	return &Controller{
		state:  state,
		loot:   engine,
		out:    out,
		rng:    rng,
		opts:   opts,
		logger: logging.GetGameLogger(),
	}
}

// Update обновляет всех живых врагов. Паника одного врага не
// прерывает обработку остальных.
func (c *Controller) Update(now time.Time, dt time.Duration) {
	for _, e := range c.state.Enemies() {
		if !e.IsAlive {
			continue
		}
		c.safeUpdate(e, now, dt)
	}
}

func (c *Controller) safeUpdate(e *entity.Enemy, now time.Time, dt time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("💥 Сбой AI врага %s (%s): %v", e.ID, e.Type, r)
		}
	}()
	c.UpdateEnemy(e, now, dt)
}

// UpdateEnemy выполняет один шаг автомата для врага
func (c *Controller) UpdateEnemy(e *entity.Enemy, now time.Time, dt time.Duration) {
	if !e.IsAlive {
		return
	}

	p, target := c.perceive(e, now)
	d := Decide(e, p, c.rng.Float64())

	if d.SetTarget {
		e.TargetPlayerID = d.Target
	}
	if d.ClearTarget {
		e.TargetPlayerID = ""
	}

	switch d.Action {
	case ActionMoveToTarget:
		if target != nil {
			moveToward(e, target.Position, dt)
		}
	case ActionReturnToSpawn:
		moveToward(e, e.SpawnPosition, dt)
	case ActionWander:
		c.wander(e, dt)
	case ActionAttack:
		if target != nil {
			c.attack(e, target, now)
			if !target.IsAlive {
				// атака уже перевела врага в покой
				return
			}
		}
	}

	e.SetState(d.Next)
}

func (c *Controller) perceive(e *entity.Enemy, now time.Time) (Perception, *entity.Player) {
	p := Perception{
		SpawnDistance: e.Position.DistanceTo(e.SpawnPosition),
		CanAttack:     e.CanAttack(now),
	}

	if e.State == entity.StateIdle || e.State == entity.StatePatrolling {
		p.Detected = c.closestPlayer(e)
	}

	var target *entity.Player
	if e.TargetPlayerID != "" {
		if pl, ok := c.state.Player(e.TargetPlayerID); ok && pl.IsAlive {
			target = pl
			p.TargetAlive = true
			p.TargetDistance = e.Position.DistanceTo(pl.Position)
		}
	}
	return p, target
}

// closestPlayer: ближайший живой игрок в радиусе; при равенстве
// побеждает найденный первым
func (c *Controller) closestPlayer(e *entity.Enemy) string {
	best := ""
	bestDist := math.Inf(1)
	for _, pl := range c.state.Players() {
		if !pl.IsAlive {
			continue
		}
		dist := e.Position.DistanceTo(pl.Position)
		if dist <= e.DetectionRange && dist < bestDist {
			best = pl.ID
			bestDist = dist
		}
	}
	return best
}

// moveToward смещает врага к точке со скоростью movementSpeed.
// Совпадающие позиции не двигаются.
func moveToward(e *entity.Enemy, target vec.Vec3, dt time.Duration) {
	dir := target.Sub(e.Position)
	if dir.Length() == 0 {
		return
	}
	dir = dir.Normalized()

	step := e.MovementSpeed * dt.Seconds()
	e.Position = e.Position.Add(dir.Mul(step))
	e.Rotation = e.Rotation.WithYaw(vec.Heading(dir))
}

func (c *Controller) wander(e *entity.Enemy, dt time.Duration) {
	angle := c.rng.Float64() * 2 * math.Pi
	step := e.MovementSpeed * wanderSpeedFactor * dt.Seconds()

	e.Position.X += math.Cos(angle) * step
	e.Position.Z += math.Sin(angle) * step
	e.Rotation = e.Rotation.WithYaw(angle)
}

func (c *Controller) attack(e *entity.Enemy, target *entity.Player, now time.Time) {
	damage := c.rollDamage(e.Damage)
	target.TakeDamage(damage)
	e.LastAttackTime = now

	c.out.Broadcast(protocol.MsgEnemyAttack, protocol.EnemyAttack{
		EnemyID:   e.ID,
		TargetID:  target.ID,
		Damage:    damage,
		Timestamp: now.UnixMilli(),
	})

	if target.IsAlive {
		return
	}

	c.out.Broadcast(protocol.MsgPlayerDeath, protocol.PlayerDeath{
		PlayerID:  target.ID,
		KillerID:  e.ID,
		Timestamp: now.UnixMilli(),
	})
	pos := target.Position
	c.state.AddEvent(world.GameEvent{
		Type:     world.EventPlayerDied,
		PlayerID: target.ID,
		TargetID: e.ID,
		Data:     map[string]interface{}{"killerId": e.ID, "damage": damage},
		Position: &pos,
	})
	c.logger.Info("☠️ Игрок %s убит врагом %s", target.Username, e.ID)

	e.TargetPlayerID = ""
	e.SetState(entity.StateIdle)
}

// rollDamage: floor(base * U[0.8, 1.2))
func (c *Controller) rollDamage(base int) int {
	variance := damageVarianceBase + c.rng.Float64()*damageVarianceRange
	return int(math.Floor(float64(base) * variance))
}

// Experience - опыт за убийство в единицах уровня
func Experience(e *entity.Enemy) float64 {
	return e.Archetype().XPBase * float64(e.Level) * xpConversion
}

// HandleEnemyDeath начисляет добычу и опыт убийце и удаляет врага.
// Повторный вызов для того же врага ничего не делает.
func (c *Controller) HandleEnemyDeath(e *entity.Enemy, killer *entity.Player, now time.Time) bool {
	if !e.MarkDeathHandled() {
		return false
	}

	var drop loot.Result
	if killer != nil {
		drop = c.loot.Roll(c.rng, e.Type, e.Level, loot.Bonuses(killer.Stats))

		items := drop.Items
		if items == nil {
			items = []loot.Item{}
		}
		c.out.Broadcast(protocol.MsgEnemyLootDrop, protocol.EnemyLootDrop{
			EnemyID:    e.ID,
			KillerID:   killer.ID,
			KillerName: killer.Username,
			Items:      items,
			Gold:       drop.Gold,
			Position:   e.Position,
			Timestamp:  now.UnixMilli(),
		})

		if drop.Gold > 0 {
			killer.Gold += drop.Gold
			c.logger.Info("💰 %s получил %d золота", killer.Username, drop.Gold)
		}

		oldLevel := killer.Level
		killer.GainLevel(Experience(e))
		if killer.Level > oldLevel {
			c.out.Broadcast(protocol.MsgPlayerLevelUp, protocol.PlayerLevelUp{
				PlayerID:   killer.ID,
				PlayerName: killer.Username,
				NewLevel:   killer.Level,
				Timestamp:  now.UnixMilli(),
			})
		}
	}

	c.state.RemoveEnemy(e.ID)
	if c.opts.OnDeath != nil {
		c.opts.OnDeath(e, killer, drop)
	}
	return true
}

var spawnableTypes = []entity.EnemyType{entity.EnemyGoblin, entity.EnemyOrc, entity.EnemySkeleton}

// SpawnRandomEnemy создаёт обычного врага на кольце вокруг начала координат
func (c *Controller) SpawnRandomEnemy(now time.Time) (*entity.Enemy, error) {
	if c.state.EnemyCount() >= c.opts.MaxEnemies {
		return nil, ErrEnemyCap
	}

	t := spawnableTypes[int(c.rng.Float64()*float64(len(spawnableTypes)))]
	angle := c.rng.Float64() * 2 * math.Pi
	dist := spawnRingMin + c.rng.Float64()*spawnRingWidth
	pos := vec.Vec3{X: math.Cos(angle) * dist, Z: math.Sin(angle) * dist}

	e := entity.NewEnemy("enemy_"+uuid.NewString(), t, pos)
	c.state.AddEnemy(e)
	c.logger.Debug("🐺 Появился %s в (%.1f, 0, %.1f)", t, pos.X, pos.Z)

	if c.opts.OnSpawn != nil {
		c.opts.OnSpawn(e)
	}
	return e, nil
}

// SpawnBoss создаёт босса без учёта лимита врагов и оповещает комнату
func (c *Controller) SpawnBoss(t entity.EnemyType, pos vec.Vec3, now time.Time) *entity.Enemy {
	e := entity.NewEnemy("boss_"+t.String()+"_"+uuid.NewString(), t, pos)
	e.MakeBoss()
	c.state.AddEnemy(e)

	c.out.Broadcast(protocol.MsgBossSpawned, protocol.BossSpawned{
		EnemyID:   e.ID,
		Type:      t.String(),
		Position:  pos,
		Timestamp: now.UnixMilli(),
	})
	c.logger.Info("🐲 Босс %s появился в (%.0f, %.0f, %.0f)", t, pos.X, pos.Y, pos.Z)

	if c.opts.OnSpawn != nil {
		c.opts.OnSpawn(e)
	}
	return e
}
