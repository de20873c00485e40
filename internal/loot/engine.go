package loot

import (
	"math"

	"github.com/annel0/lumoria-live/internal/logging"
	"github.com/annel0/lumoria-live/internal/world/entity"
)

const (
	percentScale          = 100.0
	magicFindDropFactor   = 0.1  // п.п. шанса предмета за единицу magic find
	magicFindGoldFactor   = 0.05 // п.п. шанса золота за единицу magic find
	quantityBonusChance   = 0.1  // шанс +1 за каждую единицу quantity bonus
	upgradeBaseChance     = 5.0  // базовый шанс повышения редкости, %
	rarityBonusFactor     = 1.0  // п.п. за единицу rarity bonus
	upgradeValueFactor    = 2.5
	goldFindFactor        = 0.01
	upgradedSuffix        = " [UPGRADED]"
	notableGoldAmount     = 100
	guaranteedDropPercent = 100.0
)

// Rand - источник случайности движка. *rand.Rand подходит.
type Rand interface {
	Float64() float64
}

// Bonuses - модификаторы добычи убийцы
type Bonuses entity.Stats

// Item - выпавший предмет
type Item struct {
	ItemID    string `json:"id" bson:"id"`
	Name      string `json:"name" bson:"name"`
	Rarity    Rarity `json:"rarity" bson:"rarity"`
	Quantity  int    `json:"quantity" bson:"quantity"`
	GoldValue int    `json:"goldValue" bson:"gold_value"`
	Upgraded  bool   `json:"upgraded,omitempty" bson:"upgraded,omitempty"`
}

// Result - итог броска добычи
type Result struct {
	Items []Item `json:"items"`
	Gold  int64  `json:"gold"`
}

// Empty сообщает, что ничего не выпало
func (r Result) Empty() bool {
	return len(r.Items) == 0 && r.Gold == 0
}

// Engine вычисляет добычу по неизменяемому набору таблиц
type Engine struct {
	tables *Tables
	logger *logging.Logger
}

// NewEngine создаёт движок; nil означает встроенные таблицы
func NewEngine(tables *Tables) *Engine {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Engine{
		tables: tables,
		logger: logging.GetLootLogger(),
	}
}

// Tables возвращает набор таблиц движка
func (e *Engine) Tables() *Tables {
	return e.tables
}

// Table возвращает таблицу для типа и уровня
func (e *Engine) Table(enemyType entity.EnemyType, level int) (Table, error) {
	t, ok := e.tables.Lookup(enemyType, level)
	if !ok {
		return Table{}, ErrNoTable
	}
	return t, nil
}

// Roll вычисляет добычу. Для неизвестной пары (тип, уровень) возвращает
// пустой результат и пишет предупреждение.
func (e *Engine) Roll(rng Rand, enemyType entity.EnemyType, level int, b Bonuses) Result {
	table, ok := e.tables.Lookup(enemyType, level)
	if !ok {
		e.logger.Warn("⚠️ Нет таблицы добычи для %s уровня %d", enemyType, level)
		return Result{}
	}

	result := e.roll(rng, table, b)
	e.logNotable(enemyType, level, result)
	return result
}

func (e *Engine) roll(rng Rand, table Table, b Bonuses) Result {
	var result Result

	for _, spec := range table.Guaranteed {
		result.Items = append(result.Items, makeItem(rng, spec, b))
	}

	for _, spec := range table.Possible {
		if !rollChance(rng, spec.DropChance, b.MagicFind*magicFindDropFactor) {
			continue
		}
		result.Items = append(result.Items, makeItem(rng, spec, b))
	}

	if rollChance(rng, table.Gold.BaseChance, b.MagicFind*magicFindGoldFactor) {
		result.Gold = goldAmount(rng, table.Gold, b)
	}

	return result
}

// rollChance: шанс 100% и выше выпадает без броска
func rollChance(rng Rand, base, bonus float64) bool {
	if base >= guaranteedDropPercent {
		return true
	}
	return rng.Float64()*percentScale <= base+bonus
}

func makeItem(rng Rand, spec DropSpec, b Bonuses) Item {
	item := Item{
		ItemID:    spec.ItemID,
		Name:      spec.Name,
		Rarity:    spec.Rarity,
		Quantity:  quantity(rng, spec, b),
		GoldValue: spec.GoldValue,
	}
	return upgradeRarity(rng, item, b)
}

func quantity(rng Rand, spec DropSpec, b Bonuses) int {
	span := float64(spec.MaxQuantity - spec.MinQuantity + 1)
	q := int(math.Floor(rng.Float64()*span + float64(spec.MinQuantity)))

	for i := 0; i < b.QuantityBonus; i++ {
		if rng.Float64() < quantityBonusChance {
			q++
		}
	}

	if q < 1 {
		q = 1
	}
	return q
}

// upgradeRarity повышает редкость на одну ступень с шансом 5% + rarityBonus.
// Mythic не повышается и не тратит бросок.
func upgradeRarity(rng Rand, item Item, b Bonuses) Item {
	next, ok := item.Rarity.Next()
	if !ok {
		return item
	}

	chance := upgradeBaseChance + b.RarityBonus*rarityBonusFactor
	if rng.Float64()*percentScale > chance {
		return item
	}

	item.Rarity = next
	item.GoldValue = int(math.Floor(float64(item.GoldValue) * upgradeValueFactor))
	item.Name += upgradedSuffix
	item.Upgraded = true
	return item
}

func goldAmount(rng Rand, spec GoldSpec, b Bonuses) int64 {
	span := float64(spec.Max - spec.Min + 1)
	base := math.Floor(rng.Float64()*span + float64(spec.Min))
	return int64(math.Floor(base * (1 + b.GoldFind*goldFindFactor)))
}

func (e *Engine) logNotable(enemyType entity.EnemyType, level int, r Result) {
	for _, item := range r.Items {
		if item.Rarity >= Rare {
			e.logger.Info("💎 %s ур.%d: выпал %s (%s) x%d", enemyType, level, item.Name, item.Rarity, item.Quantity)
		}
	}
	if r.Gold > notableGoldAmount {
		e.logger.Info("💰 %s ур.%d: выпало %d золота", enemyType, level, r.Gold)
	}
}
