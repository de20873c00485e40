package api

import (
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/annel0/lumoria-live/internal/loot"
	"github.com/annel0/lumoria-live/internal/world/entity"
)

const (
	defaultSimulationRolls = 1000
	maxSimulationRolls     = 100000
)

// SimulateRequest - запрос серии бросков добычи
type SimulateRequest struct {
	EnemyType string       `json:"enemyType" binding:"required"`
	Level     int          `json:"level"`
	Bonuses   entity.Stats `json:"bonuses"`
	Rolls     int          `json:"rolls"`
	Seed      int64        `json:"seed,omitempty"`
}

// handleListLootTables перечисляет ключи загруженных таблиц
func (rs *RestServer) handleListLootTables(c *gin.Context) {
	keys := rs.loot.Tables().Keys()
	out := make([]gin.H, 0, len(keys))
	for _, k := range keys {
		out = append(out, gin.H{"enemyType": k.EnemyType, "level": k.Level})
	}
	respondOK(c, out)
}

func (rs *RestServer) handleGetLootTable(c *gin.Context) {
	enemyType, err := entity.ParseEnemyType(c.Param("type"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Неизвестный тип врага")
		return
	}
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Некорректный уровень")
		return
	}

	table, err := rs.loot.Table(enemyType, level)
	if errors.Is(err, loot.ErrNoTable) {
		respondError(c, http.StatusNotFound, "Таблица добычи не найдена")
		return
	}
	respondOK(c, table)
}

// handleSimulateLoot прогоняет движок добычи для проверки шансов
func (rs *RestServer) handleSimulateLoot(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	enemyType, err := entity.ParseEnemyType(req.EnemyType)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Неизвестный тип врага")
		return
	}
	if req.Level <= 0 {
		req.Level = 1
	}
	if req.Rolls <= 0 {
		req.Rolls = defaultSimulationRolls
	}
	if req.Rolls > maxSimulationRolls {
		req.Rolls = maxSimulationRolls
	}
	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	sim, err := rs.loot.Simulate(rand.New(rand.NewSource(seed)), enemyType, req.Level, req.Rolls, loot.Bonuses(req.Bonuses))
	if errors.Is(err, loot.ErrNoTable) {
		respondError(c, http.StatusNotFound, "Таблица добычи не найдена")
		return
	}
	respondOK(c, sim)
}
