package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/annel0/lumoria-live/internal/api"
	"github.com/annel0/lumoria-live/internal/auth"
	"github.com/annel0/lumoria-live/internal/cache"
	"github.com/annel0/lumoria-live/internal/config"
	"github.com/annel0/lumoria-live/internal/eventbus"
	"github.com/annel0/lumoria-live/internal/logging"
	"github.com/annel0/lumoria-live/internal/loot"
	"github.com/annel0/lumoria-live/internal/metrics"
	"github.com/annel0/lumoria-live/internal/network"
	"github.com/annel0/lumoria-live/internal/observability"
	"github.com/annel0/lumoria-live/internal/protocol"
	"github.com/annel0/lumoria-live/internal/room"
	"github.com/annel0/lumoria-live/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию LUMORIA_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	logCfg, err := cfg.Logging.LoggerConfig()
	if err != nil {
		log.Fatalf("❌ Некорректная секция logging: %v", err)
	}
	logging.GetLoggerManager().Configure(logCfg)
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	if err := run(cfg); err != nil {
		logging.Error("❌ Сервер завершился с ошибкой: %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nodeID := cfg.Server.GetNodeID()
	logging.Info("🎮 Запуск Lumoria Live (узел %s, версия %s)", nodeID, room.ServerVersion)

	// === ТЕЛЕМЕТРИЯ ===
	if cfg.Telemetry.IsEnabled() {
		shutdownTelemetry, err := observability.InitTelemetry(ctx, observability.Config{
			ServiceName: cfg.Telemetry.GetServiceName(),
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer shutdownAfter(shutdownTelemetry, "телеметрии")
		logging.Info("🔭 Трассировка OpenTelemetry включена")
	}

	// === ШИНА СОБЫТИЙ ===
	bus, err := openBus(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Warn("⚠️ Ошибка закрытия шины событий: %v", err)
		}
	}()

	exporter := eventbus.NewMetricsExporter(bus, nil)
	exporter.Start()
	defer exporter.Stop()

	busCtx, cancelBus := context.WithCancel(context.Background())
	defer cancelBus()

	logSub, err := eventbus.StartLoggingListener(busCtx, bus)
	if err != nil {
		return fmt.Errorf("logging listener: %w", err)
	}
	defer logSub.Unsubscribe()

	forwarder := eventbus.NewForwarder(bus, cfg.EventBus.QueueSize)
	go func() { _ = forwarder.Run(busCtx) }()

	// === ЖУРНАЛ ===
	journal, err := storage.Open(ctx, cfg.Journal.StorageConfig())
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	if journal != nil {
		defer func() {
			if err := journal.Close(); err != nil {
				logging.Warn("⚠️ Ошибка закрытия журнала: %v", err)
			}
		}()
		archSub, err := storage.NewArchiver(journal).Start(busCtx, bus)
		if err != nil {
			return fmt.Errorf("archiver: %w", err)
		}
		defer archSub.Unsubscribe()
		logging.Info("📚 Журнал событий: %s", cfg.Journal.GetBackend())
	} else {
		logging.Info("📚 Журнал событий отключён")
	}

	// === ДОБЫЧА ===
	tables := loot.DefaultTables()
	if path := cfg.Loot.GetTablesFile(); path != "" {
		if tables, err = loot.LoadTables(path); err != nil {
			return fmt.Errorf("loot tables: %w", err)
		}
		logging.Info("💰 Таблицы добычи загружены из %s", path)
	}
	lootEngine := loot.NewEngine(tables)

	// === КОМНАТЫ ===
	manager := room.NewManager(ctx, room.Options{
		TickRate:      cfg.Room.GetTickRate(),
		MaxClients:    cfg.Room.GetMaxClients(),
		MaxEnemies:    cfg.Room.GetMaxEnemies(),
		SpawnInterval: cfg.Room.GetSpawnInterval(),
		InboxSize:     cfg.Room.GetInboxSize(),
		Loot:          lootEngine,
		EventSink:     forwarder.Forward,
		Metrics:       metrics.NewRoomMetrics(nil),
		Seed:          cfg.Room.Seed,
	})
	defaultRoom := cfg.Room.GetDefaultRoom()
	if _, err := manager.GetOrCreate(defaultRoom); err != nil {
		return fmt.Errorf("default room: %w", err)
	}

	// === РЕЕСТР КОМНАТ КЛАСТЕРА ===
	presence, err := cache.New(ctx, cache.Config{
		RedisAddr:     cfg.Presence.GetRedisAddr(),
		RedisPassword: cfg.Presence.RedisPassword,
		RedisDB:       cfg.Presence.RedisDB,
		TTL:           cfg.Presence.TTL,
		Node:          nodeID,
	})
	if err != nil {
		return fmt.Errorf("presence: %w", err)
	}
	defer presence.Close()

	// === ТРАНСПОРТ ===
	validator, err := auth.NewValidator(cfg.Auth.GetJWTSecret(), cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if cfg.Auth.GetJWTSecret() == "" {
		logging.Warn("⚠️ JWT_SECRET не задан, используется случайный ключ")
	}

	codec, err := protocol.NewFrameCodec(protocol.DefaultCompressThreshold)
	if err != nil {
		return fmt.Errorf("codec: %w", err)
	}
	defer codec.Close()

	gateway := network.NewGateway(manager, validator, network.GatewayConfig{
		DefaultRoom:  defaultRoom,
		RequireToken: cfg.Auth.RequireToken,
	}, network.NewMetrics(nil))

	kcpServer := network.NewKCPServer(fmt.Sprintf(":%d", cfg.Server.GetKCPPort()), gateway, codec)
	restServer := api.NewRestServer(api.Config{
		Port:      cfg.Server.GetRESTPort(),
		Rooms:     manager,
		Journal:   journal,
		Presence:  presence,
		Loot:      lootEngine,
		Validator: validator,
		WebSocket: network.NewWSHandler(gateway, cfg.Server.AllowedOrigins),
	})

	// === ЗАПУСК ===
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return kcpServer.Serve(gctx) })
	g.Go(func() error { return restServer.Serve(gctx) })
	g.Go(func() error {
		return cache.NewRefresher(presence, nodeID, presenceSource(manager, nodeID), cfg.Presence.Interval).Run(gctx)
	})

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🎮 KCP :%d, комната по умолчанию %q", cfg.Server.GetKCPPort(), defaultRoom)
	logging.Info("   🌐 REST API и WebSocket :%d", cfg.Server.GetRESTPort())

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logging.Error("❌ Остановка из-за ошибки: %v", runErr)
	} else {
		runErr = nil
	}

	// === GRACEFUL SHUTDOWN ===
	logging.Info("📡 Завершение работы...")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := manager.Shutdown(sctx); err != nil {
		logging.Warn("⚠️ Не все комнаты остановились: %v", err)
	}
	forwarder.Stop()
	if n := forwarder.Dropped(); n > 0 {
		logging.Warn("⚠️ Потеряно событий в очереди пересылки: %d", n)
	}
	return runErr
}

// openBus подключает JetStream при заданном URL, иначе шину в памяти
func openBus(cfg *config.Config) (eventbus.EventBus, error) {
	url := cfg.EventBus.GetURL()
	if url == "" {
		logging.Info("📨 Шина событий: память процесса")
		return eventbus.NewMemoryBus(cfg.EventBus.QueueSize), nil
	}
	bus, err := eventbus.NewJetStreamBus(url, cfg.EventBus.Stream, cfg.EventBus.GetRetention())
	if err != nil {
		return nil, fmt.Errorf("eventbus: %w", err)
	}
	logging.Info("📨 Шина событий: NATS JetStream %s", url)
	return bus, nil
}

func presenceSource(m *room.Manager, node string) cache.Source {
	return func() []cache.RoomPresence {
		stats := m.List()
		out := make([]cache.RoomPresence, 0, len(stats))
		for _, s := range stats {
			out = append(out, cache.RoomPresence{
				RoomID:     s.ID,
				Node:       node,
				Players:    s.Players,
				MaxClients: s.MaxClients,
				Enemies:    s.Enemies,
				Weather:    string(s.Weather),
				IsDay:      s.IsDay,
				UpdatedAt:  s.UpdatedAt,
			})
		}
		return out
	}
}

func shutdownAfter(fn func(context.Context) error, what string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		logging.Warn("⚠️ Ошибка остановки %s: %v", what, err)
	}
}
