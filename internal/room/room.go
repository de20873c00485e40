package room

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/lumoria-live/internal/ai"
	"github.com/annel0/lumoria-live/internal/logging"
	"github.com/annel0/lumoria-live/internal/loot"
	"github.com/annel0/lumoria-live/internal/observability"
	"github.com/annel0/lumoria-live/internal/protocol"
	"github.com/annel0/lumoria-live/internal/vec"
	"github.com/annel0/lumoria-live/internal/world"
	"github.com/annel0/lumoria-live/internal/world/entity"
	"github.com/annel0/lumoria-live/internal/worldevent"
)

const (
	manaRegenPerTick  = 1
	defaultNamePrefix = "Player_"
	defaultNameLength = 6
)

type command func(r *Room)

// Room - изолированная симуляция: один тикер, одна горутина-писатель.
// Всё состояние меняется только внутри Run; внешние вызовы проходят
// через очередь команд.
type Room struct {
	id     string
	opts   Options
	tick   time.Duration
	state  *world.State
	ai     *ai.Controller
	sched  *worldevent.Scheduler
	router *Router
	rng    Rand
	logger *logging.Logger
	tracer trace.Tracer

	clients     map[string]Client
	clientOrder []string

	lastSpawn   time.Time
	boostFactor float64
	boostUntil  time.Time
	lastTick    time.Duration

	inbox     chan command
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	running   atomic.Bool

	stats atomic.Value // Stats
}

// New создаёт комнату. Симуляция начинается с Run.
func New(id string, opts Options) *Room {
	opts = opts.withDefaults(id)
	now := opts.Clock()

	r := &Room{
		id:          id,
		opts:        opts,
		tick:        time.Second / time.Duration(opts.TickRate),
		state:       world.NewState(now, opts.TickRate),
		rng:         opts.Rand,
		logger:      logging.GetComponentLogger("room"),
		tracer:      observability.Tracer("room"),
		clients:     make(map[string]Client),
		lastSpawn:   now,
		boostFactor: 1,
		inbox:       make(chan command, opts.InboxSize),
		closing:     make(chan struct{}),
		done:        make(chan struct{}),
	}

	r.state.SetEventSink(r.onGameEvent)
	r.ai = ai.NewController(r.state, opts.Loot, r, r.rng, ai.Options{
		MaxEnemies: opts.MaxEnemies,
		OnDeath:    r.onEnemyDeath,
		OnSpawn:    r.onEnemySpawn,
	})
	r.sched = worldevent.NewScheduler(worldevent.Deps{
		State:     r.state,
		Out:       r,
		Bosses:    r.ai,
		Booster:   r,
		Rand:      r.rng,
		OnExecute: r.onWorldEvent,
	}, now)
	r.router = newRouter(r)

	r.publishStats(now)
	return r
}

// ID возвращает идентификатор комнаты
func (r *Room) ID() string { return r.id }

// Done закрывается после завершения Run
func (r *Room) Done() <-chan struct{} { return r.done }

// Run ведёт тик комнаты до отмены ctx или Close
func (r *Room) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("room already running")
	}
	defer close(r.done)

	r.opts.Metrics.RoomOpened()
	defer r.opts.Metrics.RoomClosed(r.id)

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	r.logger.Info("🎮 Комната %s запущена (%d тиков/с)", r.id, r.opts.TickRate)

	for {
		select {
		case <-ctx.Done():
			r.dispose()
			return nil
		case <-r.closing:
			r.dispose()
			return nil
		case cmd := <-r.inbox:
			r.exec(cmd)
		case <-ticker.C:
			r.Step(r.opts.Clock())
		}
	}
}

// Close инициирует остановку комнаты
func (r *Room) Close() {
	r.closeOnce.Do(func() { close(r.closing) })
}

func (r *Room) isClosing() bool {
	select {
	case <-r.closing:
		return true
	default:
		return false
	}
}

func (r *Room) dispose() {
	r.Close()
	for _, id := range r.clientOrder {
		if err := r.clients[id].Close(); err != nil {
			r.logger.Debug("Ошибка закрытия клиента %s: %v", id, err)
		}
	}
	r.clients = make(map[string]Client)
	r.clientOrder = nil
	r.logger.Info("🗑️ Комната %s закрыта", r.id)
}

// Step выполняет один тик: мировое время, ИИ, мировые события,
// регенерация маны и появление врагов
func (r *Room) Step(now time.Time) {
	started := time.Now()

	r.state.Update(r.tick)
	r.ai.Update(now, r.tick)
	r.safe("worldevent", func() { r.sched.Update(now) })
	r.regenerateMana()
	r.safe("spawn", func() { r.maybeSpawn(now) })

	r.lastTick = time.Since(started)
	r.opts.Metrics.ObserveTick(r.id, r.lastTick, r.state.PlayerCount(), r.state.EnemyCount())
	r.publishStats(now)
}

func (r *Room) regenerateMana() {
	for _, p := range r.state.Players() {
		if p.Mana < p.MaxMana {
			p.RestoreMana(manaRegenPerTick)
		}
	}
}

func (r *Room) spawnInterval(now time.Time) time.Duration {
	if r.boostFactor > 1 && now.Before(r.boostUntil) {
		return time.Duration(float64(r.opts.SpawnInterval) / r.boostFactor)
	}
	return r.opts.SpawnInterval
}

func (r *Room) maybeSpawn(now time.Time) {
	if now.Sub(r.lastSpawn) < r.spawnInterval(now) {
		return
	}
	r.lastSpawn = now

	if _, err := r.ai.SpawnRandomEnemy(now); err != nil {
		if errors.Is(err, ai.ErrEnemyCap) {
			r.logger.Trace("Лимит врагов в комнате %s", r.id)
			return
		}
		r.logger.Warn("⚠️ Не удалось создать врага: %v", err)
	}
}

// BoostSpawnRate ускоряет появление врагов до момента until
func (r *Room) BoostSpawnRate(multiplier float64, until time.Time) {
	if multiplier <= 0 {
		return
	}
	r.boostFactor = multiplier
	r.boostUntil = until
}

func (r *Room) exec(cmd command) {
	r.safe("command", func() { cmd(r) })
}

func (r *Room) safe(stage string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.opts.Metrics.Panic(stage)
			r.logger.Error("💥 Паника в комнате %s (%s): %v", r.id, stage, rec)
		}
	}()
	fn()
}

// Do выполняет fn в горутине комнаты и ждёт завершения
func (r *Room) Do(ctx context.Context, fn func(r *Room)) error {
	finished := make(chan struct{})
	cmd := func(r *Room) {
		defer close(finished)
		fn(r)
	}

	select {
	case r.inbox <- cmd:
	case <-r.closing:
		return ErrRoomClosed
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit ставит входящее сообщение клиента в очередь без ожидания
func (r *Room) Submit(clientID string, env protocol.Envelope) error {
	select {
	case <-r.closing:
		return ErrRoomClosed
	default:
	}

	select {
	case r.inbox <- func(r *Room) { r.router.Dispatch(clientID, env, r.opts.Clock()) }:
		return nil
	default:
		return ErrInboxFull
	}
}

// Join добавляет клиента в комнату и отправляет ему welcome
func (r *Room) Join(ctx context.Context, c Client, req protocol.JoinRequest) (protocol.Welcome, error) {
	type result struct {
		welcome protocol.Welcome
		err     error
	}
	reply := make(chan result, 1)

	err := r.Do(ctx, func(r *Room) {
		w, err := r.join(c, req, r.opts.Clock())
		reply <- result{w, err}
	})
	if err != nil {
		return protocol.Welcome{}, err
	}

	select {
	case res := <-reply:
		return res.welcome, res.err
	default:
		return protocol.Welcome{}, ErrCommandFailed
	}
}

func (r *Room) join(c Client, req protocol.JoinRequest, now time.Time) (protocol.Welcome, error) {
	id := c.ID()
	_, span := r.tracer.Start(context.Background(), "room.join", trace.WithAttributes(
		attribute.String("room.id", r.id),
		attribute.String("player.id", id),
	))
	defer span.End()

	if _, exists := r.clients[id]; exists {
		return protocol.Welcome{}, ErrAlreadyJoined
	}
	if len(r.clients) >= r.opts.MaxClients {
		r.logger.Warn("🚫 Комната %s заполнена, %s отклонён", r.id, id)
		return protocol.Welcome{}, ErrRoomFull
	}

	username := req.Username
	if username == "" {
		username = DefaultUsername(id)
	}

	p := entity.NewPlayer(id, username, now)
	if req.CharacterClass != "" {
		p.CharacterClass = req.CharacterClass
	}
	if req.Level > 0 {
		p.Level = req.Level
		if p.Level > entity.MaxLevel {
			p.Level = entity.MaxLevel
		}
	}
	p.UpdatePosition(vec.Zero(), now)

	r.state.AddPlayer(p)
	r.clients[id] = c
	r.clientOrder = append(r.clientOrder, id)

	welcome := protocol.Welcome{
		PlayerID:      id,
		WorldTime:     r.state.WorldTime,
		DayNightCycle: r.state.DayNightCycle,
		ServerVersion: ServerVersion,
	}
	r.sendTo(c, protocol.MsgWelcome, welcome)
	r.publishStats(now)

	r.logger.Info("👤 Игрок %s (%s, %s) вошёл в комнату %s", username, id, p.CharacterClass, r.id)
	return welcome, nil
}

// DefaultUsername - имя по умолчанию из первых символов идентификатора сессии
func DefaultUsername(sessionID string) string {
	if len(sessionID) > defaultNameLength {
		sessionID = sessionID[:defaultNameLength]
	}
	return defaultNamePrefix + sessionID
}

// Leave удаляет игрока из комнаты
func (r *Room) Leave(ctx context.Context, clientID string, consented bool) error {
	var leaveErr error
	if err := r.Do(ctx, func(r *Room) {
		leaveErr = r.leave(clientID, consented, r.opts.Clock())
	}); err != nil {
		return err
	}
	return leaveErr
}

func (r *Room) leave(clientID string, consented bool, now time.Time) error {
	_, span := r.tracer.Start(context.Background(), "room.leave", trace.WithAttributes(
		attribute.String("room.id", r.id),
		attribute.String("player.id", clientID),
		attribute.Bool("consented", consented),
	))
	defer span.End()

	if _, ok := r.clients[clientID]; !ok {
		return ErrUnknownPlayer
	}
	delete(r.clients, clientID)
	for i, id := range r.clientOrder {
		if id == clientID {
			r.clientOrder = append(r.clientOrder[:i], r.clientOrder[i+1:]...)
			break
		}
	}

	r.state.RemovePlayer(clientID)
	r.publishStats(now)
	r.logger.Info("👋 Игрок %s покинул комнату %s (consented: %t)", clientID, r.id, consented)
	return nil
}

// Broadcast рассылает сообщение всем клиентам комнаты
func (r *Room) Broadcast(msgType string, payload interface{}) {
	r.broadcastExcept("", msgType, payload)
}

func (r *Room) broadcastExcept(exceptID, msgType string, payload interface{}) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		r.logger.Error("❌ Ошибка кодирования %s: %v", msgType, err)
		return
	}
	for _, id := range r.clientOrder {
		if id == exceptID {
			continue
		}
		if !r.clients[id].Send(data) {
			r.opts.Metrics.SendDropped()
		}
	}
}

func (r *Room) sendTo(c Client, msgType string, payload interface{}) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		r.logger.Error("❌ Ошибка кодирования %s: %v", msgType, err)
		return
	}
	if !c.Send(data) {
		r.opts.Metrics.SendDropped()
	}
}

func (r *Room) sendToID(clientID, msgType string, payload interface{}) {
	if c, ok := r.clients[clientID]; ok {
		r.sendTo(c, msgType, payload)
	}
}

func (r *Room) onGameEvent(ev world.GameEvent) {
	if ev.Type == world.EventPlayerDied {
		r.opts.Metrics.PlayerDied()
	}
	if r.opts.EventSink != nil {
		r.opts.EventSink(r.id, ev)
	}
}

func (r *Room) onEnemyDeath(e *entity.Enemy, killer *entity.Player, drop loot.Result) {
	killerID := ""
	if killer != nil {
		killerID = killer.ID
	}
	_, span := r.tracer.Start(context.Background(), "enemy.death", trace.WithAttributes(
		attribute.String("room.id", r.id),
		attribute.String("enemy.id", e.ID),
		attribute.String("enemy.type", e.Type.String()),
		attribute.String("killer.id", killerID),
		attribute.Int("loot.items", len(drop.Items)),
		attribute.Int64("loot.gold", drop.Gold),
	))
	span.End()

	rarities := make([]string, len(drop.Items))
	for i, item := range drop.Items {
		rarities[i] = item.Rarity.String()
	}
	r.opts.Metrics.EnemyKilled(e.Type.String(), rarities, drop.Gold)
}

func (r *Room) onEnemySpawn(e *entity.Enemy) {
	r.opts.Metrics.EnemySpawned(e.Type.String(), e.IsBoss)
}

func (r *Room) onWorldEvent(ev worldevent.Event, elapsed time.Duration) {
	_, span := r.tracer.Start(context.Background(), "worldevent."+ev.Type.String(), trace.WithAttributes(
		attribute.String("room.id", r.id),
		attribute.Int64("elapsed_us", elapsed.Microseconds()),
	))
	span.End()
	r.opts.Metrics.WorldEvent(ev.Type.String())
}
