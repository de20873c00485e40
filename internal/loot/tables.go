package loot

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/annel0/lumoria-live/internal/world/entity"
)

// ErrNoTable - для пары (тип, уровень) нет таблицы добычи
var ErrNoTable = errors.New("loot table not found")

// DropSpec описывает один предмет таблицы
type DropSpec struct {
	ItemID      string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Rarity      Rarity  `json:"rarity" yaml:"rarity"`
	DropChance  float64 `json:"baseDropChance" yaml:"chance"` // проценты 0-100
	MinQuantity int     `json:"minQuantity" yaml:"min_quantity"`
	MaxQuantity int     `json:"maxQuantity" yaml:"max_quantity"`
	GoldValue   int     `json:"goldValue" yaml:"gold_value"`
}

// GoldSpec описывает выпадение золота
type GoldSpec struct {
	Min        int     `json:"min" yaml:"min"`
	Max        int     `json:"max" yaml:"max"`
	BaseChance float64 `json:"baseChance" yaml:"chance"` // проценты 0-100
}

// Table - таблица добычи для типа врага и уровня
type Table struct {
	EnemyType  entity.EnemyType `json:"enemyType" yaml:"enemy_type"`
	Level      int              `json:"level" yaml:"level"`
	Guaranteed []DropSpec       `json:"guaranteedDrops" yaml:"guaranteed"`
	Possible   []DropSpec       `json:"possibleDrops" yaml:"possible"`
	Gold       GoldSpec         `json:"goldDrop" yaml:"gold"`
}

// Key идентифицирует таблицу
type Key struct {
	EnemyType entity.EnemyType
	Level     int
}

func (k Key) String() string {
	return fmt.Sprintf("%s_%d", k.EnemyType, k.Level)
}

// Tables - неизменяемый набор таблиц. Создаётся один раз и
// передаётся движку явно, поэтому безопасен для параллельных комнат.
type Tables struct {
	byKey map[Key]Table
}

// NewTables проверяет и индексирует таблицы. Повтор ключа - ошибка.
func NewTables(tables ...Table) (*Tables, error) {
	t := &Tables{byKey: make(map[Key]Table, len(tables))}
	for _, table := range tables {
		if err := validateTable(table); err != nil {
			return nil, err
		}
		key := Key{EnemyType: table.EnemyType, Level: table.Level}
		if _, dup := t.byKey[key]; dup {
			return nil, fmt.Errorf("таблица %s задана дважды", key)
		}
		t.byKey[key] = cloneTable(table)
	}
	return t, nil
}

// Lookup возвращает копию таблицы
func (t *Tables) Lookup(enemyType entity.EnemyType, level int) (Table, bool) {
	table, ok := t.byKey[Key{EnemyType: enemyType, Level: level}]
	if !ok {
		return Table{}, false
	}
	return cloneTable(table), true
}

// Keys возвращает ключи в стабильном порядке
func (t *Tables) Keys() []Key {
	keys := make([]Key, 0, len(t.byKey))
	for k := range t.byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].EnemyType != keys[j].EnemyType {
			return keys[i].EnemyType < keys[j].EnemyType
		}
		return keys[i].Level < keys[j].Level
	})
	return keys
}

// Len - число таблиц
func (t *Tables) Len() int { return len(t.byKey) }

type tablesFile struct {
	Tables []Table `yaml:"tables"`
}

// LoadTables читает набор таблиц из YAML файла
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение таблиц добычи: %w", err)
	}
	return ParseTables(data)
}

// ParseTables разбирает YAML с корневым ключом tables
func ParseTables(data []byte) (*Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("разбор таблиц добычи: %w", err)
	}
	return NewTables(f.Tables...)
}

func validateTable(t Table) error {
	key := Key{EnemyType: t.EnemyType, Level: t.Level}
	specs := append(append([]DropSpec{}, t.Guaranteed...), t.Possible...)
	for _, s := range specs {
		if s.ItemID == "" {
			return fmt.Errorf("таблица %s: предмет без id", key)
		}
		if s.MinQuantity < 0 || s.MaxQuantity < s.MinQuantity {
			return fmt.Errorf("таблица %s: неверный диапазон количества у %s", key, s.ItemID)
		}
		if s.DropChance < 0 {
			return fmt.Errorf("таблица %s: отрицательный шанс у %s", key, s.ItemID)
		}
	}
	if t.Gold.Max < t.Gold.Min || t.Gold.Min < 0 {
		return fmt.Errorf("таблица %s: неверный диапазон золота", key)
	}
	return nil
}

func cloneTable(t Table) Table {
	t.Guaranteed = append([]DropSpec(nil), t.Guaranteed...)
	t.Possible = append([]DropSpec(nil), t.Possible...)
	return t
}
