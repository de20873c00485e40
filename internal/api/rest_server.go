package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/lumoria-live/internal/auth"
	"github.com/annel0/lumoria-live/internal/cache"
	"github.com/annel0/lumoria-live/internal/logging"
	"github.com/annel0/lumoria-live/internal/loot"
	"github.com/annel0/lumoria-live/internal/middleware"
	"github.com/annel0/lumoria-live/internal/room"
	"github.com/annel0/lumoria-live/internal/storage"
)

// RoomDirectory - доступ к комнатам узла
type RoomDirectory interface {
	List() []room.Stats
	Get(id string) (*room.Room, bool)
	Count() int
}

// RestServer представляет REST API сервер
type RestServer struct {
	router    *gin.Engine
	rooms     RoomDirectory
	journal   storage.Journal
	presence  cache.Presence
	loot      *loot.Engine
	validator *auth.Validator
	port      int
	process   *processStats
	logger    *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port      int                 // порт для запуска сервера
	Rooms     RoomDirectory       // реестр комнат
	Journal   storage.Journal     // журнал событий, может быть nil
	Presence  cache.Presence      // реестр комнат кластера, может быть nil
	Loot      *loot.Engine        // движок добычи для инспекции и симуляции
	Validator *auth.Validator     // проверка админских токенов
	WebSocket http.Handler        // обработчик /ws, может быть nil
	Registry  prometheus.Registerer
	Gatherer  prometheus.Gatherer // источник /metrics; nil - дефолтный регистр
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == 0 {
		config.Port = 8088
	}

	// Устанавливаем режим релиза для gin
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("lumoria_api"))

	loggerMw := middleware.NewRequestLogger()
	router.Use(loggerMw.Handler())

	promMw := middleware.NewPrometheusMiddleware("lumoria_api", config.Registry)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	rs := &RestServer{
		router:    router,
		rooms:     config.Rooms,
		journal:   config.Journal,
		presence:  config.Presence,
		loot:      config.Loot,
		validator: config.Validator,
		port:      config.Port,
		process:   newProcessStats(),
		logger:    logging.GetServerLogger(),
	}

	if config.WebSocket != nil {
		router.GET("/ws", gin.WrapH(config.WebSocket))
	}
	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	rs.router.GET("/health", rs.handleHealth)

	// Группа API
	api := rs.router.Group("/api")
	{
		api.GET("/rooms", rs.handleListRooms)
		api.GET("/rooms/:id", rs.handleGetRoom)
		api.GET("/rooms/:id/events", rs.handleRoomEvents)
		api.GET("/rooms/:id/journal", rs.handleRoomJournal)
		api.GET("/presence", rs.handlePresence)

		api.GET("/loot/tables", rs.handleListLootTables)
		api.GET("/loot/tables/:type/:level", rs.handleGetLootTable)
		api.POST("/loot/simulate", rs.handleSimulateLoot)
	}

	// Административные эндпоинты (только для админов)
	admin := api.Group("/admin")
	admin.Use(rs.jwtMiddleware(), rs.adminMiddleware())
	{
		admin.POST("/rooms/:id/world-events", rs.handleTriggerWorldEvent)
	}
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, GenericResponse{Success: false, Message: message})
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: data})
}

// Handler возвращает http.Handler сервера (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler { return rs.router }

// Serve запускает HTTP сервер и останавливает его при отмене ctx
func (rs *RestServer) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", rs.port),
		Handler:           rs.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rs.logger.Info("🌐 REST API запущен на :%d", rs.port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("rest shutdown: %w", err)
	}
	rs.logger.Info("🛑 REST API остановлен")
	return nil
}
