package storage

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/lumoria-live/internal/world"
)

// BadgerJournal хранит журнал во встраиваемой BadgerDB.
// Ключ: ev/<hex(room)>/<timestamp, 20 цифр>/<id>, значение - JSON события.
type BadgerJournal struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// NewBadgerJournal открывает базу по пути path. Пустой путь - база в памяти.
func NewBadgerJournal(path string) (*BadgerJournal, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	return &BadgerJournal{db: db}, nil
}

func roomPrefix(roomID string) []byte {
	return []byte("ev/" + hex.EncodeToString([]byte(roomID)) + "/")
}

func eventKey(roomID string, ev world.GameEvent) []byte {
	return append(roomPrefix(roomID), fmt.Sprintf("%020d/%s", ev.Timestamp, ev.ID)...)
}

func (j *BadgerJournal) Append(ctx context.Context, roomID string, ev world.GameEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrJournalClosed
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(eventKey(roomID, ev), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Recent обходит ключи комнаты в обратном порядке и разворачивает результат.
func (j *BadgerJournal) Recent(ctx context.Context, roomID string, limit int) ([]world.GameEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrJournalClosed
	}

	limit = clampLimit(limit)
	prefix := roomPrefix(roomID)
	seek := append(append([]byte(nil), prefix...), 0xFF)

	var out []world.GameEvent
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var ev world.GameEvent
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			})
			if err != nil {
				return fmt.Errorf("ошибка десериализации события: %w", err)
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, k := 0, len(out)-1; i < k; i, k = i+1, k-1 {
		out[i], out[k] = out[k], out[i]
	}
	return out, nil
}

// Close закрывает хранилище данных
func (j *BadgerJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
