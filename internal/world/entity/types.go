package entity

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// EnemyType - архетип врага
type EnemyType uint8

const (
	EnemyGoblin EnemyType = iota
	EnemyOrc
	EnemySkeleton
	EnemyDragon
)

var enemyTypeNames = [...]string{
	EnemyGoblin:   "goblin",
	EnemyOrc:      "orc",
	EnemySkeleton: "skeleton",
	EnemyDragon:   "dragon",
}

// AllEnemyTypes перечисляет все архетипы в порядке объявления
func AllEnemyTypes() []EnemyType {
	return []EnemyType{EnemyGoblin, EnemyOrc, EnemySkeleton, EnemyDragon}
}

func (t EnemyType) String() string {
	if int(t) < len(enemyTypeNames) {
		return enemyTypeNames[t]
	}
	return fmt.Sprintf("EnemyType(%d)", uint8(t))
}

// ParseEnemyType разбирает имя архетипа
func ParseEnemyType(s string) (EnemyType, error) {
	for i, name := range enemyTypeNames {
		if name == s {
			return EnemyType(i), nil
		}
	}
	return 0, fmt.Errorf("неизвестный тип врага %q", s)
}

func (t EnemyType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *EnemyType) UnmarshalText(b []byte) error {
	parsed, err := ParseEnemyType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t *EnemyType) UnmarshalYAML(node *yaml.Node) error {
	return t.UnmarshalText([]byte(node.Value))
}

// EnemyState - состояние конечного автомата врага. StateDead терминально.
type EnemyState uint8

const (
	StateIdle EnemyState = iota
	StatePatrolling
	StateChasing
	StateAttacking
	StateDead
)

func (s EnemyState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePatrolling:
		return "patrolling"
	case StateChasing:
		return "chasing"
	case StateAttacking:
		return "attacking"
	case StateDead:
		return "dead"
	default:
		return fmt.Sprintf("EnemyState(%d)", uint8(s))
	}
}

func (s EnemyState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Archetype фиксирует базовые характеристики типа врага
type Archetype struct {
	Health         int
	Damage         int
	MovementSpeed  float64
	DetectionRange float64
	AttackRange    float64
	AttackCooldown time.Duration
	// XPBase - базовый опыт за убийство (умножается на уровень врага)
	XPBase float64
	// PatrolResume - вероятность вернуться в патруль после потери цели
	PatrolResume float64
}

const (
	defaultAttackRange    = 2.0
	defaultAttackCooldown = 2000 * time.Millisecond
)

// ArchetypeOf возвращает таблицу характеристик для типа
func ArchetypeOf(t EnemyType) Archetype {
	a := Archetype{
		AttackRange:    defaultAttackRange,
		AttackCooldown: defaultAttackCooldown,
		XPBase:         25,
		PatrolResume:   0.5,
	}

	switch t {
	case EnemyGoblin:
		a.Health = 30
		a.Damage = 8
		a.MovementSpeed = 4.0
		a.DetectionRange = 8
		a.PatrolResume = 0.7
	case EnemyOrc:
		a.Health = 80
		a.Damage = 15
		a.MovementSpeed = 2.5
		a.DetectionRange = 12
		a.XPBase = 50
		a.PatrolResume = 0.3
	case EnemySkeleton:
		a.Health = 50
		a.Damage = 12
		a.MovementSpeed = 3.5
		a.DetectionRange = 10
		a.XPBase = 40
		a.PatrolResume = 0.8
	case EnemyDragon:
		a.Health = 500
		a.Damage = 50
		a.MovementSpeed = 6.0
		a.DetectionRange = 20
		a.AttackRange = 5
		a.AttackCooldown = 3000 * time.Millisecond
		a.XPBase = 500
		a.PatrolResume = 0 // драконы не патрулируют
	}

	return a
}

// Stats - модификаторы добычи, которыми владеет игрок
type Stats struct {
	MagicFind     float64 `json:"magicFind" yaml:"magic_find"`
	RarityBonus   float64 `json:"rarityBonus" yaml:"rarity_bonus"`
	QuantityBonus int     `json:"quantityBonus" yaml:"quantity_bonus"`
	GoldFind      float64 `json:"goldFind" yaml:"gold_find"`
}
