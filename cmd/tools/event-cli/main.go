package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/annel0/lumoria-live/internal/eventbus"
	"github.com/annel0/lumoria-live/internal/loot"
	"github.com/annel0/lumoria-live/internal/storage"
	"github.com/annel0/lumoria-live/internal/world"
	"github.com/annel0/lumoria-live/internal/world/entity"
)

const timeFormat = "2006-01-02T15:04:05.000Z"

func main() {
	var (
		command = flag.String("cmd", "tail", "Command: tail, journal, loot-sim")

		natsURL = flag.String("nats", "nats://127.0.0.1:4222", "NATS server URL")
		stream  = flag.String("stream", eventbus.DefaultStream, "JetStream stream name")
		types   = flag.String("types", "", "Event types filter (comma-separated)")
		rooms   = flag.String("rooms", "", "Room IDs filter (comma-separated)")
		replay  = flag.Bool("replay", false, "Replay the stream from the beginning")
		limit   = flag.Int("limit", 0, "Stop after N events (0 - follow forever)")
		asJSON  = flag.Bool("json", false, "Print raw envelopes as JSON")

		badgerPath = flag.String("badger", "data/journal", "Badger journal directory")
		room       = flag.String("room", "game", "Room ID for journal")

		tables    = flag.String("tables", "", "Loot tables YAML (default tables if empty)")
		enemy     = flag.String("enemy", "goblin", "Enemy type")
		level     = flag.Int("level", 1, "Enemy level")
		rolls     = flag.Int("rolls", 10000, "Number of rolls")
		seed      = flag.Int64("seed", 0, "RNG seed (0 - time based)")
		magicFind = flag.Float64("magic-find", 0, "Magic find bonus, %")
		rarity    = flag.Float64("rarity", 0, "Rarity bonus, %")
		quantity  = flag.Int("quantity", 0, "Quantity bonus, extra items")
		goldFind  = flag.Float64("gold-find", 0, "Gold find bonus, %")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *command {
	case "tail":
		if err := tailEvents(ctx, &TailOptions{
			URL:    *natsURL,
			Stream: *stream,
			Filter: eventbus.Filter{Types: parseStringList(*types), Sources: parseStringList(*rooms)},
			Replay: *replay,
			Limit:  *limit,
			JSON:   *asJSON,
		}); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	case "journal":
		if err := showJournal(ctx, *badgerPath, *room, *limit); err != nil {
			log.Fatalf("❌ Journal failed: %v", err)
		}

	case "loot-sim":
		if err := simulateLoot(&SimOptions{
			TablesFile: *tables,
			Enemy:      *enemy,
			Level:      *level,
			Rolls:      *rolls,
			Seed:       *seed,
			Bonuses: loot.Bonuses{
				MagicFind:     *magicFind,
				RarityBonus:   *rarity,
				QuantityBonus: *quantity,
				GoldFind:      *goldFind,
			},
		}); err != nil {
			log.Fatalf("❌ Loot simulation failed: %v", err)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		flag.Usage()
		os.Exit(1)
	}
}

// TailOptions параметры команды tail
type TailOptions struct {
	URL    string
	Stream string
	Filter eventbus.Filter
	Replay bool
	Limit  int
	JSON   bool
}

func tailEvents(ctx context.Context, opts *TailOptions) error {
	var jsOpts []eventbus.JetStreamOption
	if opts.Replay {
		jsOpts = append(jsOpts, eventbus.WithReplay())
	}
	bus, err := eventbus.NewJetStreamBus(opts.URL, opts.Stream, 0, jsOpts...)
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Printf("📡 Streaming events from %s (stream %s)\n", opts.URL, opts.Stream)
	fmt.Println(strings.Repeat("-", 80))

	var seen atomic.Int64
	sub, err := bus.Subscribe(ctx, opts.Filter, func(_ context.Context, env *eventbus.Envelope) {
		n := seen.Add(1)
		if opts.Limit > 0 && n > int64(opts.Limit) {
			return
		}
		printEnvelope(env, opts.JSON)
		if opts.Limit > 0 && n == int64(opts.Limit) {
			cancel()
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("📊 Events received: %d\n", seen.Load())
	return nil
}

func printEnvelope(env *eventbus.Envelope, asJSON bool) {
	if asJSON {
		data, _ := json.Marshal(env)
		fmt.Println(string(data))
		return
	}
	ev, err := eventbus.DecodeGameEvent(env)
	if err != nil {
		fmt.Printf("%s [%s] %s (undecodable: %v)\n", env.Timestamp.Format(timeFormat), env.Source, env.EventType, err)
		return
	}
	printGameEvent(env.Source, ev)
}

func printGameEvent(roomID string, ev world.GameEvent) {
	line := fmt.Sprintf("%s [%s] %-16s", time.UnixMilli(ev.Timestamp).UTC().Format(timeFormat), roomID, ev.Type)
	if ev.PlayerID != "" {
		line += " player=" + ev.PlayerID
	}
	if ev.TargetID != "" {
		line += " target=" + ev.TargetID
	}
	if ev.Position != nil {
		line += fmt.Sprintf(" pos=(%.1f, %.1f, %.1f)", ev.Position.X, ev.Position.Y, ev.Position.Z)
	}
	if len(ev.Data) > 0 {
		data, _ := json.Marshal(ev.Data)
		line += " " + string(data)
	}
	fmt.Println(line)
}

// showJournal печатает хвост журнала badger без запуска сервера
func showJournal(ctx context.Context, path, roomID string, limit int) error {
	j, err := storage.NewBadgerJournal(path)
	if err != nil {
		return err
	}
	defer j.Close()

	if limit <= 0 {
		limit = storage.DefaultRecentLimit
	}
	events, err := j.Recent(ctx, roomID, limit)
	if err != nil {
		return err
	}
	fmt.Printf("📚 Journal %s, room %s: %d events\n", path, roomID, len(events))
	for _, ev := range events {
		printGameEvent(roomID, ev)
	}
	return nil
}

// SimOptions параметры команды loot-sim
type SimOptions struct {
	TablesFile string
	Enemy      string
	Level      int
	Rolls      int
	Seed       int64
	Bonuses    loot.Bonuses
}

func simulateLoot(opts *SimOptions) error {
	tables := loot.DefaultTables()
	if opts.TablesFile != "" {
		var err error
		if tables, err = loot.LoadTables(opts.TablesFile); err != nil {
			return err
		}
	}
	enemyType, err := entity.ParseEnemyType(opts.Enemy)
	if err != nil {
		return err
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	sim, err := loot.NewEngine(tables).Simulate(rand.New(rand.NewSource(seed)), enemyType, opts.Level, opts.Rolls, opts.Bonuses)
	if err != nil {
		return err
	}

	fmt.Printf("🎲 %s level %d, %d rolls (seed %d)\n", sim.EnemyType, sim.Level, sim.Rolls, seed)
	fmt.Println(strings.Repeat("-", 64))
	fmt.Printf("%-24s %8s %9s %8s %9s\n", "ITEM", "DROPS", "RATE, %", "QTY", "UPGRADES")

	items := append([]loot.ItemStats(nil), sim.Items...)
	sort.Slice(items, func(i, k int) bool { return items[i].Drops > items[k].Drops })
	for _, it := range items {
		fmt.Printf("%-24s %8d %9.2f %8d %9d\n", it.ItemID, it.Drops, it.DropRate, it.TotalQuantity, it.Upgrades)
	}
	fmt.Println(strings.Repeat("-", 64))
	fmt.Printf("💰 Gold: %d drops (%.2f%%), average %.1f\n", sim.GoldDrops, sim.GoldRate, sim.AverageGold)
	return nil
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
