package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql"

	"github.com/annel0/lumoria-live/internal/world"
)

// MariaJournal реализует Journal для MariaDB/MySQL.
// Использует таблицу game_events; порядок записей внутри одной
// миллисекунды задаёт автоинкрементный seq.
type MariaJournal struct {
	db     *sql.DB
	closed atomic.Bool
}

// NewMariaJournal подключается к базе и создаёт таблицу, если её нет.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
func NewMariaJournal(ctx context.Context, dsn string) (*MariaJournal, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	j := &MariaJournal{db: db}
	if err := j.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}
	return j, nil
}

func (j *MariaJournal) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS game_events (
			seq        BIGINT       AUTO_INCREMENT PRIMARY KEY,
			event_id   VARCHAR(64)  NOT NULL,
			room_id    VARCHAR(128) NOT NULL,
			type       VARCHAR(32)  NOT NULL,
			player_id  VARCHAR(64)  NULL,
			ts         BIGINT       NOT NULL,
			payload    JSON         NOT NULL,
			UNIQUE KEY uniq_room_event (room_id, event_id),
			INDEX idx_room_ts (room_id, ts)
		) ENGINE=InnoDB
	`
	if _, err := j.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания таблицы game_events: %w", err)
	}
	return nil
}

func (j *MariaJournal) Append(ctx context.Context, roomID string, ev world.GameEvent) error {
	if j.closed.Load() {
		return ErrJournalClosed
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	query := `
		INSERT IGNORE INTO game_events (event_id, room_id, type, player_id, ts, payload)
		VALUES (?, ?, ?, NULLIF(?, ''), ?, ?)
	`
	_, err = j.db.ExecContext(ctx, query, ev.ID, roomID, ev.Type.String(), ev.PlayerID, ev.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("ошибка сохранения события %s комнаты %s: %w", ev.ID, roomID, err)
	}
	return nil
}

func (j *MariaJournal) Recent(ctx context.Context, roomID string, limit int) ([]world.GameEvent, error) {
	if j.closed.Load() {
		return nil, ErrJournalClosed
	}

	query := `
		SELECT payload FROM game_events
		WHERE room_id = ?
		ORDER BY ts DESC, seq DESC
		LIMIT ?
	`
	rows, err := j.db.QueryContext(ctx, query, roomID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала комнаты %s: %w", roomID, err)
	}
	defer rows.Close()

	var out []world.GameEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev world.GameEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("ошибка десериализации события: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, k := 0, len(out)-1; i < k; i, k = i+1, k-1 {
		out[i], out[k] = out[k], out[i]
	}
	return out, nil
}

// Close закрывает соединение с базой данных.
func (j *MariaJournal) Close() error {
	if j.closed.Swap(true) {
		return nil
	}
	return j.db.Close()
}
