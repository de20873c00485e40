package protocol

import (
	"github.com/annel0/lumoria-live/internal/loot"
	"github.com/annel0/lumoria-live/internal/vec"
)

// Входящие сообщения клиента
const (
	MsgJoin     = "join"
	MsgLeave    = "leave"
	MsgMove     = "move"
	MsgAttack   = "attack"
	MsgSpell    = "spell"
	MsgChat     = "chat"
	MsgInteract = "interact"
)

// Исходящие сообщения сервера
const (
	MsgWelcome                = "welcome"
	MsgError                  = "error"
	MsgEnemyAttack            = "enemy_attack"
	MsgPlayerDeath            = "player_death"
	MsgEnemyLootDrop          = "enemy_loot_drop"
	MsgPlayerLevelUp          = "player_level_up"
	MsgPlayerAttack           = "player_attack"
	MsgSpellCast              = "spell_cast"
	MsgSpellFailed            = "spell_failed"
	MsgHealingReceived        = "healing_received"
	MsgBossSpawned            = "boss_spawned"
	MsgDayNightTransition     = "day_night_transition"
	MsgWeatherChange          = "weather_change"
	MsgWorldAnnouncement      = "world_announcement"
	MsgTreasureSpawned        = "treasure_spawned"
	MsgItemPickupResult       = "item_pickup_result"
	MsgItemUseResult          = "item_use_result"
	MsgObjectActivationResult = "object_activation_result"
)

// JoinRequest - первое сообщение соединения
type JoinRequest struct {
	Room           string  `json:"room,omitempty"`
	Username       string  `json:"username,omitempty"`
	CharacterClass string  `json:"characterClass,omitempty"`
	Level          float64 `json:"level,omitempty"`
	Token          string  `json:"token,omitempty"`
}

type LeaveRequest struct {
	Consented bool `json:"consented"`
}

// Метки времени клиента приходят как JS number и сервером не используются
type MoveIntent struct {
	Position  vec.Vec3  `json:"position"`
	Rotation  *vec.Quat `json:"rotation,omitempty"`
	Velocity  *vec.Vec3 `json:"velocity,omitempty"`
	Timestamp float64   `json:"timestamp"`
}

type AttackIntent struct {
	TargetType string   `json:"targetType"`
	TargetID   string   `json:"targetId"`
	Damage     float64  `json:"damage"` // 0 - урон по умолчанию
	AttackType string   `json:"attackType"`
	Position   vec.Vec3 `json:"position"`
	Timestamp  float64  `json:"timestamp"`
}

type SpellIntent struct {
	SpellName      string    `json:"spellName"`
	ManaCost       float64   `json:"manaCost"` // 0 - стоимость по умолчанию, дробная часть отбрасывается
	TargetPosition *vec.Vec3 `json:"targetPosition,omitempty"`
	TargetID       string    `json:"targetId,omitempty"`
	Timestamp      float64   `json:"timestamp"`
}

type ChatIntent struct {
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
}

type InteractIntent struct {
	InteractionType string   `json:"interactionType"`
	TargetID        string   `json:"targetId"`
	Position        vec.Vec3 `json:"position"`
	Timestamp       float64  `json:"timestamp"`
}

type Welcome struct {
	PlayerID      string  `json:"playerId"`
	WorldTime     int64   `json:"worldTime"`
	DayNightCycle float64 `json:"dayNightCycle"`
	ServerVersion string  `json:"serverVersion"`
}

type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type EnemyAttack struct {
	EnemyID   string `json:"enemyId"`
	TargetID  string `json:"targetId"`
	Damage    int    `json:"damage"`
	Timestamp int64  `json:"timestamp"`
}

type PlayerDeath struct {
	PlayerID  string `json:"playerId"`
	KillerID  string `json:"killerId"`
	Timestamp int64  `json:"timestamp"`
}

type EnemyLootDrop struct {
	EnemyID    string      `json:"enemyId"`
	KillerID   string      `json:"killerId"`
	KillerName string      `json:"killerName"`
	Items      []loot.Item `json:"items"`
	Gold       int64       `json:"gold"`
	Position   vec.Vec3    `json:"position"`
	Timestamp  int64       `json:"timestamp"`
}

type PlayerLevelUp struct {
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	NewLevel   float64 `json:"newLevel"`
	Timestamp  int64   `json:"timestamp"`
}

type PlayerAttack struct {
	AttackerID string   `json:"attackerId"`
	TargetID   string   `json:"targetId"`
	TargetType string   `json:"targetType"`
	Damage     int      `json:"damage"`
	Position   vec.Vec3 `json:"position"`
	Timestamp  int64    `json:"timestamp"`
}

type SpellCast struct {
	CasterID       string    `json:"casterId"`
	SpellName      string    `json:"spellName"`
	Position       vec.Vec3  `json:"position"`
	TargetPosition *vec.Vec3 `json:"targetPosition,omitempty"`
	Timestamp      int64     `json:"timestamp"`
}

type SpellFailed struct {
	Reason   string `json:"reason"`
	Required int    `json:"required"`
	Current  int    `json:"current"`
}

type HealingReceived struct {
	Amount    int `json:"amount"`
	NewHealth int `json:"newHealth"`
}

type Chat struct {
	PlayerID  string `json:"playerId"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type BossSpawned struct {
	EnemyID   string   `json:"enemyId"`
	Type      string   `json:"type"`
	Position  vec.Vec3 `json:"position"`
	Timestamp int64    `json:"timestamp"`
}

type DayNightTransition struct {
	IsDay         bool    `json:"isDay"`
	DayNightCycle float64 `json:"dayNightCycle"`
	Timestamp     int64   `json:"timestamp"`
}

type WeatherChange struct {
	Weather   string `json:"weather"`
	Duration  int64  `json:"duration"` // мс
	Timestamp int64  `json:"timestamp"`
}

type WorldAnnouncement struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type TreasureSpawned struct {
	Position     vec.Vec3 `json:"position"`
	TreasureType string   `json:"treasureType"`
	Timestamp    int64    `json:"timestamp"`
}

// InteractionResult - ответ на pickup/use/activate
type InteractionResult struct {
	Success  bool   `json:"success"`
	ItemID   string `json:"itemId,omitempty"`
	ObjectID string `json:"objectId,omitempty"`
}
