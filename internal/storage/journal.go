package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/lumoria-live/internal/world"
)

// ErrJournalClosed возвращается операциями закрытого журнала.
var ErrJournalClosed = errors.New("journal closed")

// DefaultRecentLimit - сколько записей отдаёт Recent при limit <= 0
const DefaultRecentLimit = 50

// MaxRecentLimit ограничивает размер одной выборки
const MaxRecentLimit = 1000

// Journal - архив GameEvent комнат. Работает вне пути тика:
// записи приходят из шины событий через Archiver.
type Journal interface {
	// Append сохраняет событие комнаты. Повторная запись того же ID игнорируется.
	Append(ctx context.Context, roomID string, ev world.GameEvent) error
	// Recent возвращает последние limit событий комнаты в хронологическом порядке.
	Recent(ctx context.Context, roomID string, limit int) ([]world.GameEvent, error)
	// Close освобождает ресурсы бэкенда.
	Close() error
}

// Backend - имя реализации журнала из конфигурации
type Backend string

const (
	BackendNone   Backend = "none"
	BackendMemory Backend = "memory"
	BackendBadger Backend = "badger"
	BackendMaria  Backend = "mariadb"
	BackendMongo  Backend = "mongo"
)

// Config выбирает и настраивает бэкенд журнала.
type Config struct {
	Backend    Backend
	BadgerPath string
	MariaDSN   string
	Mongo      MongoConfig
}

// Open создаёт журнал по конфигурации. Для BackendNone возвращает nil, nil.
func Open(ctx context.Context, cfg Config) (Journal, error) {
	switch cfg.Backend {
	case BackendNone:
		return nil, nil
	case "", BackendMemory:
		return NewMemoryJournal(0), nil
	case BackendBadger:
		return NewBadgerJournal(cfg.BadgerPath)
	case BackendMaria:
		return NewMariaJournal(ctx, cfg.MariaDSN)
	case BackendMongo:
		return NewMongoJournal(ctx, cfg.Mongo)
	default:
		return nil, fmt.Errorf("неизвестный бэкенд журнала %q", cfg.Backend)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		return MaxRecentLimit
	}
	return limit
}
