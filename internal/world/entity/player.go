package entity

import (
	"time"

	"github.com/annel0/lumoria-live/internal/vec"
)

const (
	// MaxLevel - потолок уровня персонажа
	MaxLevel = 100

	DefaultClass         = "warrior"
	defaultPlayerHealth  = 100
	defaultPlayerMana    = 50
	defaultMovementSpeed = 5.0
)

// Player - авторитетная запись игрока в комнате
type Player struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	CharacterClass string    `json:"characterClass"`
	Level          float64   `json:"level"`
	Health         int       `json:"health"`
	MaxHealth      int       `json:"maxHealth"`
	Mana           int       `json:"mana"`
	MaxMana        int       `json:"maxMana"`
	IsAlive        bool      `json:"isAlive"`
	IsMoving       bool      `json:"isMoving"`
	MovementSpeed  float64   `json:"movementSpeed"`
	Position       vec.Vec3  `json:"position"`
	Rotation       vec.Quat  `json:"rotation"`
	Velocity       vec.Vec3  `json:"velocity"`
	LastUpdateTime time.Time `json:"lastUpdateTime"`
	Gold           int64     `json:"gold"`
	Stats          Stats     `json:"stats"`
}

// NewPlayer создаёт игрока с характеристиками по умолчанию в начале координат
func NewPlayer(id, username string, now time.Time) *Player {
	return &Player{
		ID:             id,
		Username:       username,
		CharacterClass: DefaultClass,
		Level:          1,
		Health:         defaultPlayerHealth,
		MaxHealth:      defaultPlayerHealth,
		Mana:           defaultPlayerMana,
		MaxMana:        defaultPlayerMana,
		IsAlive:        true,
		MovementSpeed:  defaultMovementSpeed,
		Rotation:       vec.Identity(),
		LastUpdateTime: now,
	}
}

// TakeDamage уменьшает здоровье, не опуская его ниже нуля
func (p *Player) TakeDamage(damage int) {
	p.Health -= damage
	if p.Health < 0 {
		p.Health = 0
	}
	if p.Health > p.MaxHealth {
		p.Health = p.MaxHealth
	}
	p.IsAlive = p.Health > 0
}

// Heal восстанавливает здоровье до максимума
func (p *Player) Heal(amount int) {
	if amount < 0 {
		return
	}
	p.Health += amount
	if p.Health > p.MaxHealth {
		p.Health = p.MaxHealth
	}
	p.IsAlive = p.Health > 0
}

// ConsumeMana списывает ману, если её хватает
func (p *Player) ConsumeMana(amount int) bool {
	if p.Mana < amount {
		return false
	}
	p.Mana -= amount
	return true
}

// RestoreMana восстанавливает ману до максимума
func (p *Player) RestoreMana(amount int) {
	p.Mana += amount
	if p.Mana > p.MaxMana {
		p.Mana = p.MaxMana
	}
}

// UpdatePosition перемещает игрока
func (p *Player) UpdatePosition(pos vec.Vec3, now time.Time) {
	p.Position = pos
	p.LastUpdateTime = now
}

// UpdateVelocity задаёт скорость и флаг движения
func (p *Player) UpdateVelocity(v vec.Vec3) {
	p.Velocity = v
	p.IsMoving = !v.IsZero()
}

// GainLevel добавляет дробный уровень с ограничением MaxLevel
func (p *Player) GainLevel(delta float64) {
	p.Level += delta
	if p.Level > MaxLevel {
		p.Level = MaxLevel
	}
}
