package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/annel0/lumoria-live/internal/room"
	"github.com/annel0/lumoria-live/internal/vec"
	"github.com/annel0/lumoria-live/internal/world"
	"github.com/annel0/lumoria-live/internal/world/entity"
	"github.com/annel0/lumoria-live/internal/worldevent"
)

// WorldEventBody - тело запроса ручного мирового события
type WorldEventBody struct {
	Type         string    `json:"type" binding:"required"`
	Weather      string    `json:"weather,omitempty"`
	BossType     string    `json:"bossType,omitempty"`
	SpawnArea    string    `json:"spawnArea,omitempty"`
	Position     *vec.Vec3 `json:"position,omitempty"`
	TreasureType string    `json:"treasureType,omitempty"`
	Message      string    `json:"message,omitempty"`
	Kind         string    `json:"kind,omitempty"`
}

func (b WorldEventBody) request() (room.WorldEventRequest, error) {
	t, err := worldevent.ParseType(b.Type)
	if err != nil {
		return room.WorldEventRequest{}, err
	}
	req := room.WorldEventRequest{
		Type:         t,
		Weather:      world.Weather(b.Weather),
		SpawnArea:    b.SpawnArea,
		Position:     b.Position,
		TreasureType: b.TreasureType,
		Message:      b.Message,
		Kind:         b.Kind,
	}
	if b.BossType != "" {
		bt, err := entity.ParseEnemyType(b.BossType)
		if err != nil {
			return room.WorldEventRequest{}, err
		}
		req.BossType = &bt
	}
	return req, req.Validate()
}

// handleTriggerWorldEvent запускает мировое событие в существующей комнате
func (rs *RestServer) handleTriggerWorldEvent(c *gin.Context) {
	var body WorldEventBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	req, err := body.request()
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	r, ok := rs.room(c)
	if !ok {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := r.TriggerWorldEvent(ctx, req); err != nil {
		roomError(c, err)
		return
	}

	rs.logger.Info("🛠️ Админ %s запустил %s в комнате %s", c.GetString("actor_id"), body.Type, r.ID())
	c.JSON(http.StatusAccepted, GenericResponse{Success: true, Message: "Событие запланировано"})
}
