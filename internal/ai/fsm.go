package ai

import "github.com/annel0/lumoria-live/internal/world/entity"

// Вероятности спонтанных переходов за один тик
const (
	IdleToPatrolChance = 0.01
	PatrolToIdleChance = 0.005
	// LoseTargetFactor - цель теряется дальше detectionRange * 1.5
	LoseTargetFactor = 1.5
)

// Action - побочный эффект решения, который выполняет контроллер
type Action uint8

const (
	ActionNone          Action = iota
	ActionMoveToTarget         // движение к цели
	ActionReturnToSpawn        // возврат к точке появления
	ActionWander               // случайное блуждание
	ActionAttack               // атака цели
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionMoveToTarget:
		return "move_to_target"
	case ActionReturnToSpawn:
		return "return_to_spawn"
	case ActionWander:
		return "wander"
	case ActionAttack:
		return "attack"
	}
	return "unknown"
}

// Perception - то, что враг видит в текущем тике
type Perception struct {
	// Detected - ближайший живой игрок в радиусе обнаружения, "" если нет
	Detected string
	// TargetAlive - текущая цель существует в комнате и жива
	TargetAlive    bool
	TargetDistance float64
	SpawnDistance  float64
	CanAttack      bool
}

// Decision - результат перехода автомата
type Decision struct {
	Next        entity.EnemyState
	Target      string // новая цель, если SetTarget
	SetTarget   bool
	ClearTarget bool
	Action      Action
}

// Decide - полная функция переходов автомата врага. Чистая: roll - значение
// из [0,1), которое используется не более одного раза.
func Decide(e *entity.Enemy, p Perception, roll float64) Decision {
	d := Decision{Next: e.State}

	switch e.State {
	case entity.StateIdle:
		if p.Detected != "" {
			return acquire(p.Detected)
		}
		if roll < IdleToPatrolChance {
			d.Next = entity.StatePatrolling
		}

	case entity.StatePatrolling:
		if p.Detected != "" {
			return acquire(p.Detected)
		}
		if p.SpawnDistance > e.DetectionRange {
			d.Action = ActionReturnToSpawn
		} else {
			d.Action = ActionWander
		}
		if roll < PatrolToIdleChance {
			d.Next = entity.StateIdle
		}

	case entity.StateChasing:
		switch {
		case !p.TargetAlive:
			d.ClearTarget = true
			d.Next = entity.StateIdle
		case p.TargetDistance <= e.AttackRange:
			d.Next = entity.StateAttacking
		case p.TargetDistance > e.DetectionRange*LoseTargetFactor:
			d.ClearTarget = true
			d.Next = entity.StateIdle
			if roll < e.Archetype().PatrolResume {
				d.Next = entity.StatePatrolling
			}
		default:
			d.Action = ActionMoveToTarget
		}

	case entity.StateAttacking:
		switch {
		case !p.TargetAlive:
			d.ClearTarget = true
			d.Next = entity.StateIdle
		case p.TargetDistance > e.AttackRange:
			d.Next = entity.StateChasing
		case p.CanAttack:
			d.Action = ActionAttack
		}

	case entity.StateDead:
		// терминальное состояние
	}

	return d
}

func acquire(playerID string) Decision {
	return Decision{
		Next:      entity.StateChasing,
		Target:    playerID,
		SetTarget: true,
	}
}
