package loot

import "github.com/annel0/lumoria-live/internal/world/entity"

// DefaultTables возвращает встроенный набор таблиц
func DefaultTables() *Tables {
	t, err := NewTables(defaultTableList()...)
	if err != nil {
		panic(err)
	}
	return t
}

func defaultTableList() []Table {
	return []Table{
		{
			EnemyType: entity.EnemyGoblin,
			Level:     1,
			Possible: []DropSpec{
				{ItemID: "goblin_ear", Name: "Goblin Ear", Rarity: Common, DropChance: 30, MinQuantity: 1, MaxQuantity: 2, GoldValue: 5},
				{ItemID: "rusty_dagger", Name: "Rusty Dagger", Rarity: Common, DropChance: 15, MinQuantity: 1, MaxQuantity: 1, GoldValue: 25},
				{ItemID: "goblin_potion", Name: "Goblin Healing Potion", Rarity: Uncommon, DropChance: 5, MinQuantity: 1, MaxQuantity: 1, GoldValue: 50},
				{ItemID: "goblin_ring", Name: "Crude Goblin Ring", Rarity: Rare, DropChance: 1, MinQuantity: 1, MaxQuantity: 1, GoldValue: 200},
			},
			Gold: GoldSpec{Min: 1, Max: 10, BaseChance: 75},
		},
		{
			EnemyType: entity.EnemyOrc,
			Level:     5,
			Guaranteed: []DropSpec{
				{ItemID: "orc_hide", Name: "Orc Hide", Rarity: Common, DropChance: 100, MinQuantity: 1, MaxQuantity: 3, GoldValue: 15},
			},
			Possible: []DropSpec{
				{ItemID: "orc_axe", Name: "Orc Battle Axe", Rarity: Uncommon, DropChance: 25, MinQuantity: 1, MaxQuantity: 1, GoldValue: 100},
				{ItemID: "orc_armor", Name: "Orc Chain Mail", Rarity: Rare, DropChance: 8, MinQuantity: 1, MaxQuantity: 1, GoldValue: 350},
				{ItemID: "orc_medallion", Name: "Orc War Medallion", Rarity: Epic, DropChance: 2, MinQuantity: 1, MaxQuantity: 1, GoldValue: 750},
			},
			Gold: GoldSpec{Min: 10, Max: 50, BaseChance: 85},
		},
		{
			EnemyType: entity.EnemyDragon,
			Level:     20,
			Guaranteed: []DropSpec{
				{ItemID: "dragon_scale", Name: "Dragon Scale", Rarity: Rare, DropChance: 100, MinQuantity: 3, MaxQuantity: 8, GoldValue: 500},
				{ItemID: "dragon_bone", Name: "Dragon Bone", Rarity: Epic, DropChance: 100, MinQuantity: 1, MaxQuantity: 3, GoldValue: 1000},
			},
			Possible: []DropSpec{
				{ItemID: "dragon_heart", Name: "Dragon Heart", Rarity: Legendary, DropChance: 15, MinQuantity: 1, MaxQuantity: 1, GoldValue: 5000},
				{ItemID: "dragon_soul", Name: "Ancient Dragon Soul", Rarity: Mythic, DropChance: 3, MinQuantity: 1, MaxQuantity: 1, GoldValue: 15000},
			},
			Gold: GoldSpec{Min: 200, Max: 1000, BaseChance: 100},
		},
	}
}
