package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/lumoria-live/internal/logging"
)

const (
	presenceKeyPrefix = "lumoria:presence:"
	presenceIndexKey  = "lumoria:presence:rooms"
)

// RedisPresence хранит реестр комнат в Redis: по ключу на комнату с TTL
// плюс множество-индекс id комнат.
type RedisPresence struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPresence подключается к Redis и проверяет соединение.
func NewRedisPresence(ctx context.Context, cfg Config) (*RedisPresence, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultPresenceTTL
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("Redis presence initialized: %s (ttl %s)", cfg.RedisAddr, cfg.TTL)
	return newRedisPresence(rdb, cfg.TTL), nil
}

func newRedisPresence(client *redis.Client, ttl time.Duration) *RedisPresence {
	return &RedisPresence{client: client, ttl: ttl}
}

// Publish пишет все записи одним pipeline.
func (r *RedisPresence) Publish(ctx context.Context, entries []RoomPresence) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now()

	pipe := r.client.TxPipeline()
	for _, e := range entries {
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("presence marshal %s: %w", e.RoomID, err)
		}
		pipe.Set(ctx, presenceKeyPrefix+e.RoomID, data, r.ttl)
		pipe.SAdd(ctx, presenceIndexKey, e.RoomID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisPresence) Remove(ctx context.Context, roomID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, presenceKeyPrefix+roomID)
	pipe.SRem(ctx, presenceIndexKey, roomID)
	_, err := pipe.Exec(ctx)
	return err
}

// Rooms читает индекс и значения; истёкшие id удаляются из индекса.
func (r *RedisPresence) Rooms(ctx context.Context) ([]RoomPresence, error) {
	ids, err := r.client.SMembers(ctx, presenceIndexKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []RoomPresence{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = presenceKeyPrefix + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]RoomPresence, 0, len(ids))
	var stale []interface{}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var e RoomPresence
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			stale = append(stale, ids[i])
			continue
		}
		out = append(out, e)
	}
	if len(stale) > 0 {
		r.client.SRem(ctx, presenceIndexKey, stale...)
	}

	sortByRoom(out)
	return out, nil
}

func (r *RedisPresence) Close() error {
	return r.client.Close()
}
