package worldevent

import (
	"container/heap"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/annel0/lumoria-live/internal/logging"
	"github.com/annel0/lumoria-live/internal/protocol"
	"github.com/annel0/lumoria-live/internal/vec"
	"github.com/annel0/lumoria-live/internal/world"
	"github.com/annel0/lumoria-live/internal/world/entity"
)

// Периоды и задержки планировщика
const (
	DayNightPeriod = 12 * time.Minute
	WeatherPeriod  = 5 * time.Minute
	BossPeriod     = 15 * time.Minute

	initialWeatherDelay = 2 * time.Minute
	initialBossDelay    = 10 * time.Minute

	DefaultWeatherDuration = 5 * time.Minute
	weatherNextMin         = 3 * time.Minute
	weatherNextJitter      = 4 * time.Minute
	bossNextMin            = 15 * time.Minute
	bossNextJitter         = 10 * time.Minute

	nightSpawnMultiplier = 2.0
	nightSpawnDuration   = 5 * time.Minute

	dayNightAnnounceDelay = time.Second
	weatherAnnounceDelay  = 2 * time.Second
	bossAnnounceDelay     = 3 * time.Second
	treasureAnnounceDelay = 2 * time.Second

	DefaultTreasureType = "golden_chest"
	treasureRingMin     = 15.0
	treasureRingWidth   = 20.0

	DefaultSpawnArea = "central_clearing"
)

// Типы объявлений
const (
	KindInfo     = "info"
	KindWarning  = "warning"
	KindBoss     = "boss"
	KindTreasure = "treasure"
)

type spawnArea struct {
	name string
	pos  vec.Vec3
}

var spawnAreas = []spawnArea{
	{"central_clearing", vec.Vec3{}},
	{"northern_hills", vec.Vec3{Z: 30}},
	{"southern_swamp", vec.Vec3{Z: -30}},
	{"eastern_forest", vec.Vec3{X: 30}},
	{"western_desert", vec.Vec3{X: -30}},
}

// SpawnAreas возвращает имена зон появления боссов
func SpawnAreas() []string {
	names := make([]string, len(spawnAreas))
	for i, a := range spawnAreas {
		names[i] = a.name
	}
	return names
}

var bossTypes = []entity.EnemyType{entity.EnemyDragon, entity.EnemyOrc}

// Rand - источник случайности; *rand.Rand подходит
type Rand interface {
	Float64() float64
}

// Broadcaster рассылает уведомление всем клиентам комнаты
type Broadcaster interface {
	Broadcast(msgType string, payload interface{})
}

// BossSpawner создаёт босса в комнате
type BossSpawner interface {
	SpawnBoss(t entity.EnemyType, pos vec.Vec3, now time.Time) *entity.Enemy
}

// SpawnBooster временно ускоряет появление врагов
type SpawnBooster interface {
	BoostSpawnRate(multiplier float64, until time.Time)
}

// Deps - зависимости планировщика
type Deps struct {
	State   *world.State
	Out     Broadcaster
	Bosses  BossSpawner
	Booster SpawnBooster
	Rand    Rand
	// OnExecute вызывается после выполнения каждого события
	OnExecute func(ev Event, elapsed time.Duration)
}

// Scheduler - очередь отложенных мировых событий и периодические
// триггеры. Время задаёт вызывающий (часы комнаты).
type Scheduler struct {
	deps   Deps
	queue  eventQueue
	seq    uint64
	logger *logging.Logger

	lastDayNight time.Time
	lastWeather  time.Time
	lastBoss     time.Time
}

// NewScheduler создаёт планировщик и ставит начальные события:
// дождь через 2 минуты и дракона в central_clearing через 10 минут
func NewScheduler(deps Deps, now time.Time) *Scheduler {
	s := &Scheduler{
		deps:   deps,
		logger: logging.GetComponentLogger("worldevent"),
	}

	s.Schedule(WeatherChange, Data{Weather: world.WeatherRain, Duration: DefaultWeatherDuration}, initialWeatherDelay, now)
	dragon := entity.EnemyDragon
	s.Schedule(BossSpawn, Data{BossType: &dragon, SpawnArea: DefaultSpawnArea}, initialBossDelay, now)
	return s
}

// Schedule ставит событие через delay от now
func (s *Scheduler) Schedule(t Type, data Data, delay time.Duration, now time.Time) {
	s.seq++
	heap.Push(&s.queue, &Event{
		Type:   t,
		Data:   data,
		FireAt: now.Add(delay),
		seq:    s.seq,
	})
}

// Len - число событий в очереди
func (s *Scheduler) Len() int { return s.queue.Len() }

// Pending возвращает копию очереди в порядке срабатывания
func (s *Scheduler) Pending() []Event {
	out := make([]Event, 0, len(s.queue))
	for _, ev := range s.queue {
		out = append(out, *ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].seq < out[j].seq
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}

// Update выполняет созревшие события, затем проверяет периодические
// триггеры. События, запланированные во время выполнения, ждут
// следующего вызова.
func (s *Scheduler) Update(now time.Time) {
	var ready []*Event
	for s.queue.Len() > 0 && !s.queue[0].FireAt.After(now) {
		ready = append(ready, heap.Pop(&s.queue).(*Event))
	}
	for _, ev := range ready {
		s.safeExecute(ev, now)
	}

	s.checkPeriodic(now)
}

func (s *Scheduler) checkPeriodic(now time.Time) {
	if now.Sub(s.lastDayNight) > DayNightPeriod {
		s.TriggerDayNightTransition(now)
		s.lastDayNight = now
	}
	if now.Sub(s.lastWeather) > WeatherPeriod {
		s.TriggerWeatherChange("", now)
		s.lastWeather = now
	}
	if now.Sub(s.lastBoss) > BossPeriod {
		s.TriggerBossSpawn(nil, "", now)
		s.lastBoss = now
	}
}

func (s *Scheduler) safeExecute(ev *Event, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("💥 Сбой мирового события %s: %v", ev.Type, r)
		}
	}()

	started := time.Now()
	s.execute(ev, now)
	if s.deps.OnExecute != nil {
		s.deps.OnExecute(*ev, time.Since(started))
	}
}

func (s *Scheduler) execute(ev *Event, now time.Time) {
	s.logger.Debug("🌍 Мировое событие: %s", ev.Type)

	switch ev.Type {
	case DayNightTransition:
		s.handleDayNight(ev, now)
	case WeatherChange:
		s.handleWeather(ev, now)
	case BossSpawn:
		s.handleBossSpawn(ev, now)
	case TreasureSpawn:
		s.handleTreasure(ev, now)
	case WorldAnnouncement:
		s.handleAnnouncement(ev)
	default:
		s.logger.Warn("⚠️ Неизвестный тип мирового события: %d", ev.Type)
	}
}

func (s *Scheduler) handleDayNight(ev *Event, now time.Time) {
	state := s.deps.State
	isDay := state.IsDay()

	s.deps.Out.Broadcast(protocol.MsgDayNightTransition, protocol.DayNightTransition{
		IsDay:         isDay,
		DayNightCycle: state.DayNightCycle,
		Timestamp:     ev.FireAt.UnixMilli(),
	})

	if isDay {
		s.Schedule(WorldAnnouncement, Data{
			Message: "Dawn breaks across the land. A new day begins in Lumoria.",
			Kind:    KindInfo,
		}, dayNightAnnounceDelay, now)
		return
	}

	s.Schedule(WorldAnnouncement, Data{
		Message: "Darkness falls... dangerous creatures emerge from the shadows.",
		Kind:    KindWarning,
	}, dayNightAnnounceDelay, now)

	if s.deps.Booster != nil {
		s.deps.Booster.BoostSpawnRate(nightSpawnMultiplier, now.Add(nightSpawnDuration))
		s.logger.Info("🌙 Скорость появления врагов x%.0f на %s", nightSpawnMultiplier, nightSpawnDuration)
	}
}

var weatherAnnouncements = map[world.Weather]Data{
	world.WeatherStorm: {Message: "A powerful storm approaches! Seek shelter or face the lightning!", Kind: KindWarning},
	world.WeatherSnow:  {Message: "Snow begins to fall, blanketing the world in white.", Kind: KindInfo},
	world.WeatherFog:   {Message: "Thick fog rolls in, reducing visibility.", Kind: KindWarning},
}

func (s *Scheduler) handleWeather(ev *Event, now time.Time) {
	weather := ev.Data.Weather
	if weather == "" {
		all := world.AllWeather()
		weather = all[s.pick(len(all))]
	}
	duration := ev.Data.Duration
	if duration <= 0 {
		duration = DefaultWeatherDuration
	}

	s.deps.State.Weather = weather
	s.deps.Out.Broadcast(protocol.MsgWeatherChange, protocol.WeatherChange{
		Weather:   string(weather),
		Duration:  duration.Milliseconds(),
		Timestamp: ev.FireAt.UnixMilli(),
	})

	if announce, ok := weatherAnnouncements[weather]; ok {
		s.Schedule(WorldAnnouncement, announce, weatherAnnounceDelay, now)
	}

	next := weatherNextMin + time.Duration(s.deps.Rand.Float64()*float64(weatherNextJitter))
	s.Schedule(WeatherChange, Data{}, next, now)
}

func (s *Scheduler) handleBossSpawn(ev *Event, now time.Time) {
	var bossType entity.EnemyType
	if ev.Data.BossType != nil {
		bossType = *ev.Data.BossType
	} else {
		bossType = bossTypes[s.pick(len(bossTypes))]
	}
	pos := s.spawnPosition(ev.Data.SpawnArea)

	if existing, ok := s.deps.State.LivingBoss(bossType); ok {
		s.logger.Info("🐲 Босс %s уже жив (%s), пропускаем", bossType, existing.ID)
		return
	}

	if s.deps.Bosses != nil {
		boss := s.deps.Bosses.SpawnBoss(bossType, pos, now)
		s.Schedule(WorldAnnouncement, Data{
			Message: "A mighty " + strings.ToUpper(bossType.String()) + " has appeared! Brave adventurers, unite to face this threat!",
			Kind:    KindBoss,
		}, bossAnnounceDelay, now)
		s.logger.Info("🐲 Босс %s появился: %s", bossType, boss.ID)
	}

	next := bossNextMin + time.Duration(s.deps.Rand.Float64()*float64(bossNextJitter))
	s.Schedule(BossSpawn, Data{}, next, now)
}

func (s *Scheduler) spawnPosition(area string) vec.Vec3 {
	for _, a := range spawnAreas {
		if a.name == area {
			return a.pos
		}
	}
	return spawnAreas[s.pick(len(spawnAreas))].pos
}

func (s *Scheduler) handleTreasure(ev *Event, now time.Time) {
	var pos vec.Vec3
	if ev.Data.Position != nil {
		pos = *ev.Data.Position
	} else {
		angle := s.deps.Rand.Float64() * 2 * math.Pi
		dist := treasureRingMin + s.deps.Rand.Float64()*treasureRingWidth
		pos = vec.Vec3{X: math.Cos(angle) * dist, Z: math.Sin(angle) * dist}
	}
	treasureType := ev.Data.TreasureType
	if treasureType == "" {
		treasureType = DefaultTreasureType
	}

	s.deps.Out.Broadcast(protocol.MsgTreasureSpawned, protocol.TreasureSpawned{
		Position:     pos,
		TreasureType: treasureType,
		Timestamp:    ev.FireAt.UnixMilli(),
	})
	s.Schedule(WorldAnnouncement, Data{
		Message: "Ancient treasure has been discovered! Seek it out before others claim it!",
		Kind:    KindTreasure,
	}, treasureAnnounceDelay, now)
}

func (s *Scheduler) handleAnnouncement(ev *Event) {
	kind := ev.Data.Kind
	if kind == "" {
		kind = KindInfo
	}
	s.deps.Out.Broadcast(protocol.MsgWorldAnnouncement, protocol.WorldAnnouncement{
		Message:   ev.Data.Message,
		Type:      kind,
		Timestamp: ev.FireAt.UnixMilli(),
	})
}

func (s *Scheduler) pick(n int) int {
	i := int(s.deps.Rand.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// TriggerDayNightTransition немедленно ставит смену дня и ночи
func (s *Scheduler) TriggerDayNightTransition(now time.Time) {
	s.Schedule(DayNightTransition, Data{}, 0, now)
}

// TriggerWeatherChange ставит смену погоды; пустая погода - случайная
func (s *Scheduler) TriggerWeatherChange(weather world.Weather, now time.Time) {
	s.Schedule(WeatherChange, Data{Weather: weather}, 0, now)
}

// TriggerBossSpawn ставит появление босса; nil и "" - случайные
func (s *Scheduler) TriggerBossSpawn(bossType *entity.EnemyType, area string, now time.Time) {
	s.Schedule(BossSpawn, Data{BossType: bossType, SpawnArea: area}, 0, now)
}

// TriggerTreasureSpawn ставит появление сокровища
func (s *Scheduler) TriggerTreasureSpawn(pos *vec.Vec3, treasureType string, now time.Time) {
	s.Schedule(TreasureSpawn, Data{Position: pos, TreasureType: treasureType}, 0, now)
}

// AnnounceToWorld ставит объявление; пустой kind означает info
func (s *Scheduler) AnnounceToWorld(message, kind string, now time.Time) {
	if kind == "" {
		kind = KindInfo
	}
	s.Schedule(WorldAnnouncement, Data{Message: message, Kind: kind}, 0, now)
}
