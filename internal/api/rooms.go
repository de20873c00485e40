package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/annel0/lumoria-live/internal/room"
	"github.com/annel0/lumoria-live/internal/storage"
)

const requestTimeout = 2 * time.Second

// requestCtx ограничивает обращение к горутине комнаты или хранилищу
func requestCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, rs.process.report(rs.rooms.Count()))
}

func (rs *RestServer) handleListRooms(c *gin.Context) {
	respondOK(c, rs.rooms.List())
}

func (rs *RestServer) room(c *gin.Context) (*room.Room, bool) {
	r, ok := rs.rooms.Get(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, "Комната не найдена")
		return nil, false
	}
	return r, true
}

// handleGetRoom возвращает снимок комнаты: игроки, враги, очередь мировых событий
func (rs *RestServer) handleGetRoom(c *gin.Context) {
	r, ok := rs.room(c)
	if !ok {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	snap, err := r.Snapshot(ctx)
	if err != nil {
		roomError(c, err)
		return
	}
	respondOK(c, snap)
}

// handleRoomEvents возвращает кольцевой журнал последних событий комнаты
func (rs *RestServer) handleRoomEvents(c *gin.Context) {
	r, ok := rs.room(c)
	if !ok {
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	events, err := r.Events(ctx)
	if err != nil {
		roomError(c, err)
		return
	}
	respondOK(c, events)
}

// handleRoomJournal читает архив событий; комната может быть уже закрыта
func (rs *RestServer) handleRoomJournal(c *gin.Context) {
	if rs.journal == nil {
		respondError(c, http.StatusNotImplemented, "Журнал событий отключён")
		return
	}
	limit := storage.DefaultRecentLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(c, http.StatusBadRequest, "Некорректный limit")
			return
		}
		limit = n
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	events, err := rs.journal.Recent(ctx, c.Param("id"), limit)
	if err != nil {
		rs.logger.Error("❌ Ошибка чтения журнала: %v", err)
		respondError(c, http.StatusInternalServerError, "Ошибка чтения журнала")
		return
	}
	respondOK(c, events)
}

// handlePresence - комнаты всех узлов из реестра
func (rs *RestServer) handlePresence(c *gin.Context) {
	if rs.presence == nil {
		respondError(c, http.StatusNotImplemented, "Реестр комнат отключён")
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	entries, err := rs.presence.Rooms(ctx)
	if err != nil {
		respondError(c, http.StatusBadGateway, "Реестр комнат недоступен")
		return
	}
	respondOK(c, entries)
}

func roomError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, room.ErrRoomClosed):
		respondError(c, http.StatusConflict, "Комната закрыта")
	case errors.Is(err, room.ErrInboxFull):
		respondError(c, http.StatusServiceUnavailable, "Комната перегружена")
	default:
		respondError(c, http.StatusGatewayTimeout, err.Error())
	}
}
