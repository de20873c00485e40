package loot

import (
	"sort"

	"github.com/annel0/lumoria-live/internal/world/entity"
)

// ItemStats - агрегаты по одному предмету за серию бросков
type ItemStats struct {
	ItemID        string  `json:"id"`
	Drops         int     `json:"drops"`
	DropRate      float64 `json:"dropRate"` // доля бросков, %
	TotalQuantity int     `json:"totalQuantity"`
	Upgrades      int     `json:"upgrades"`
}

// Simulation - итог серии бросков для проверки паритета шансов
type Simulation struct {
	EnemyType   entity.EnemyType `json:"enemyType"`
	Level       int              `json:"level"`
	Rolls       int              `json:"rolls"`
	Items       []ItemStats      `json:"items"`
	GoldDrops   int              `json:"goldDrops"`
	GoldRate    float64          `json:"goldRate"`
	AverageGold float64          `json:"averageGold"`
}

// Simulate выполняет rolls бросков без журналирования отдельных выпадений
func (e *Engine) Simulate(rng Rand, enemyType entity.EnemyType, level, rolls int, b Bonuses) (Simulation, error) {
	table, ok := e.tables.Lookup(enemyType, level)
	if !ok {
		return Simulation{}, ErrNoTable
	}

	sim := Simulation{EnemyType: enemyType, Level: level, Rolls: rolls}
	byID := make(map[string]*ItemStats)
	var goldTotal int64

	for i := 0; i < rolls; i++ {
		r := e.roll(rng, table, b)
		for _, item := range r.Items {
			st, ok := byID[item.ItemID]
			if !ok {
				st = &ItemStats{ItemID: item.ItemID}
				byID[item.ItemID] = st
			}
			st.Drops++
			st.TotalQuantity += item.Quantity
			if item.Upgraded {
				st.Upgrades++
			}
		}
		if r.Gold > 0 {
			sim.GoldDrops++
			goldTotal += r.Gold
		}
	}

	for _, st := range byID {
		if rolls > 0 {
			st.DropRate = float64(st.Drops) * 100 / float64(rolls)
		}
		sim.Items = append(sim.Items, *st)
	}
	sort.Slice(sim.Items, func(i, j int) bool { return sim.Items[i].ItemID < sim.Items[j].ItemID })

	if rolls > 0 {
		sim.GoldRate = float64(sim.GoldDrops) * 100 / float64(rolls)
	}
	if sim.GoldDrops > 0 {
		sim.AverageGold = float64(goldTotal) / float64(sim.GoldDrops)
	}
	return sim, nil
}
