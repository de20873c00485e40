package storage

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/annel0/lumoria-live/internal/world"
)

// MongoConfig contains connection settings for the MongoDB journal.
type MongoConfig struct {
	URI        string // e.g. mongodb://localhost:27017
	Database   string // e.g. lumoria
	Collection string // e.g. game_events
}

// MongoJournal implements Journal on MongoDB backend.
type MongoJournal struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
	closed     atomic.Bool
}

// journalDoc - документ коллекции; GameEvent встраивается целиком
type journalDoc struct {
	RoomID string          `bson:"room_id"`
	Event  world.GameEvent `bson:",inline"`
}

// NewMongoJournal establishes connection and ensures indexes.
func NewMongoJournal(ctx context.Context, cfg MongoConfig) (*MongoJournal, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "lumoria"
	}
	if cfg.Collection == "" {
		cfg.Collection = "game_events"
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	j := &MongoJournal{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		ctxTimeout: 5 * time.Second,
	}
	if err := j.ensureIndexes(cctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return j, nil
}

func (j *MongoJournal) ensureIndexes(ctx context.Context) error {
	roomTs := mongo.IndexModel{
		Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "timestamp", Value: -1}},
		Options: options.Index().SetName("room_ts"),
	}
	_, err := j.collection.Indexes().CreateOne(ctx, roomTs)
	return err
}

// Append вставляет документ; _id совпадает с ID события, дубликаты пропускаются.
func (j *MongoJournal) Append(ctx context.Context, roomID string, ev world.GameEvent) error {
	if j.closed.Load() {
		return ErrJournalClosed
	}
	ctx, cancel := context.WithTimeout(ctx, j.ctxTimeout)
	defer cancel()

	_, err := j.collection.InsertOne(ctx, journalDoc{RoomID: roomID, Event: ev})
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (j *MongoJournal) Recent(ctx context.Context, roomID string, limit int) ([]world.GameEvent, error) {
	if j.closed.Load() {
		return nil, ErrJournalClosed
	}
	ctx, cancel := context.WithTimeout(ctx, j.ctxTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(clampLimit(limit)))
	cur, err := j.collection.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []journalDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]world.GameEvent, len(docs))
	for i, doc := range docs {
		out[len(docs)-1-i] = doc.Event
	}
	return out, nil
}

func (j *MongoJournal) Close() error {
	if j.closed.Swap(true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.ctxTimeout)
	defer cancel()
	return j.client.Disconnect(ctx)
}
