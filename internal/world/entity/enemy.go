package entity

import (
	"time"

	"github.com/annel0/lumoria-live/internal/vec"
)

// Множители босса относительно базового архетипа
const (
	BossHealthMultiplier    = 3
	BossDamageMultiplier    = 2
	BossDetectionMultiplier = 1.5
	BossLevel               = 5
)

// Enemy - авторитетная запись врага в комнате
type Enemy struct {
	ID             string        `json:"id"`
	Type           EnemyType     `json:"type"`
	State          EnemyState    `json:"state"`
	Level          int           `json:"level"`
	Health         int           `json:"health"`
	MaxHealth      int           `json:"maxHealth"`
	Damage         int           `json:"damage"`
	MovementSpeed  float64       `json:"movementSpeed"`
	DetectionRange float64       `json:"detectionRange"`
	AttackRange    float64       `json:"attackRange"`
	AttackCooldown time.Duration `json:"attackCooldown"`
	IsAlive        bool          `json:"isAlive"`
	IsBoss         bool          `json:"isBoss"`
	Position       vec.Vec3      `json:"position"`
	Rotation       vec.Quat      `json:"rotation"`
	SpawnPosition  vec.Vec3      `json:"spawnPosition"`
	// TargetPlayerID - слабая ссылка на игрока, только id
	TargetPlayerID string    `json:"targetPlayerId,omitempty"`
	LastAttackTime time.Time `json:"lastAttackTime"`

	deathHandled bool
}

// NewEnemy создаёт врага первого уровня со статами архетипа
func NewEnemy(id string, t EnemyType, pos vec.Vec3) *Enemy {
	a := ArchetypeOf(t)
	return &Enemy{
		ID:             id,
		Type:           t,
		State:          StateIdle,
		Level:          1,
		Health:         a.Health,
		MaxHealth:      a.Health,
		Damage:         a.Damage,
		MovementSpeed:  a.MovementSpeed,
		DetectionRange: a.DetectionRange,
		AttackRange:    a.AttackRange,
		AttackCooldown: a.AttackCooldown,
		IsAlive:        true,
		Position:       pos,
		Rotation:       vec.Identity(),
		SpawnPosition:  pos,
	}
}

// MakeBoss превращает врага в босса: здоровье ×3, урон ×2, обнаружение ×1.5
func (e *Enemy) MakeBoss() {
	e.MaxHealth *= BossHealthMultiplier
	e.Health = e.MaxHealth
	e.Damage *= BossDamageMultiplier
	e.DetectionRange *= BossDetectionMultiplier
	e.Level = BossLevel
	e.IsBoss = true
}

// TakeDamage наносит урон. Смерть переводит врага в StateDead навсегда.
func (e *Enemy) TakeDamage(damage int) {
	if !e.IsAlive {
		return
	}
	e.Health -= damage
	if e.Health < 0 {
		e.Health = 0
	}
	if e.Health > e.MaxHealth {
		e.Health = e.MaxHealth
	}
	e.IsAlive = e.Health > 0
	if !e.IsAlive {
		e.State = StateDead
	}
}

// SetState меняет состояние; из StateDead выхода нет
func (e *Enemy) SetState(s EnemyState) bool {
	if e.State == StateDead || e.State == s {
		return false
	}
	e.State = s
	return true
}

// CanAttack проверяет, прошла ли перезарядка атаки
func (e *Enemy) CanAttack(now time.Time) bool {
	return now.Sub(e.LastAttackTime) >= e.AttackCooldown
}

// MarkDeathHandled возвращает true только при первом вызове для мёртвого врага
func (e *Enemy) MarkDeathHandled() bool {
	if e.IsAlive || e.deathHandled {
		return false
	}
	e.deathHandled = true
	return true
}

// Archetype возвращает базовый архетип врага
func (e *Enemy) Archetype() Archetype {
	return ArchetypeOf(e.Type)
}
