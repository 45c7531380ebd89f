package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mindsgn-studio/novawatch/internal/model"
	"github.com/mindsgn-studio/novawatch/internal/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultDBOpTimeout    = 10 * time.Second
)

// Store is the only owner of tracked items. Every method fails soft: storage
// errors are logged and reported as an empty result or false.
type Store struct {
	client    *mongo.Client
	tracked   *mongo.Collection
	logger    *slog.Logger
	opTimeout time.Duration
}

func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetConnectTimeout(DefaultConnectTimeout).
		SetServerSelectionTimeout(DefaultConnectTimeout).
		SetMaxPoolSize(10).
		SetMinPoolSize(1)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

func NewStore(ctx context.Context, cfg model.Config, logger *slog.Logger) (*Store, error) {
	client, err := Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}

	coll := cfg.TrackedColl
	if coll == "" {
		coll = "tracked"
	}
	s := NewStoreWithClient(client, cfg.DBName, coll, logger)

	if err := s.ensureIndexes(ctx); err != nil {
		logger.Warn("could not ensure indexes", slog.String("error", err.Error()))
	}
	logger.Info("connected to mongodb",
		slog.String("db", cfg.DBName),
		slog.String("collection", coll))
	return s, nil
}

func NewStoreWithClient(client *mongo.Client, dbName, collection string, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		tracked:   client.Database(dbName).Collection(collection),
		logger:    logger.With(slog.String("component", "store")),
		opTimeout: DefaultDBOpTimeout,
	}
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	_, err := s.tracked.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "uuid", Value: 1}, {Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func pairFilter(userID string, itemID int) bson.M {
	return bson.M{"uuid": userID, "id": itemID}
}

func (s *Store) fail(op string, err error, attrs ...any) {
	metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	s.logger.Warn("store operation failed",
		append([]any{slog.String("op", op), slog.String("error", err.Error())}, attrs...)...)
}

// ListAll returns every tracked item. Used once per polling cycle.
func (s *Store) ListAll(parentCtx context.Context) []model.TrackedItem {
	s.logger.Debug("obtaining tracked items")
	return s.find(parentCtx, "list_all", bson.M{})
}

func (s *Store) ListForUser(parentCtx context.Context, userID string) []model.TrackedItem {
	return s.find(parentCtx, "list_for_user", bson.M{"uuid": userID})
}

func (s *Store) find(parentCtx context.Context, op string, filter bson.M) []model.TrackedItem {
	ctx, cancel := context.WithTimeout(parentCtx, s.opTimeout)
	defer cancel()

	cursor, err := s.tracked.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		s.fail(op, err)
		return []model.TrackedItem{}
	}
	defer cursor.Close(ctx)

	items := []model.TrackedItem{}
	for cursor.Next(ctx) {
		var item model.TrackedItem
		if err := cursor.Decode(&item); err != nil {
			s.logger.Warn("decode tracked item", slog.String("error", err.Error()))
			continue
		}
		items = append(items, item)
	}
	if err := cursor.Err(); err != nil {
		s.fail(op, err)
		return []model.TrackedItem{}
	}
	return items
}

// UpsertThreshold inserts the pair or updates only its threshold.
func (s *Store) UpsertThreshold(parentCtx context.Context, item model.TrackedItem) bool {
	ctx, cancel := context.WithTimeout(parentCtx, s.opTimeout)
	defer cancel()

	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"wantedPrice": item.WantedPrice,
			"updatedAt":   now,
		},
		"$setOnInsert": bson.M{
			"createdAt": now,
		},
	}

	_, err := s.tracked.UpdateOne(ctx, pairFilter(item.UserID, item.ItemID), update, options.Update().SetUpsert(true))
	if err != nil {
		s.fail("upsert_threshold", err, slog.String("uuid", item.UserID), slog.Int("id", item.ItemID))
		return false
	}
	return true
}

// SetDisplayName writes the item name only while it is still unset.
func (s *Store) SetDisplayName(parentCtx context.Context, userID string, itemID int, name string) bool {
	ctx, cancel := context.WithTimeout(parentCtx, s.opTimeout)
	defer cancel()

	filter := pairFilter(userID, itemID)
	filter["itemName"] = bson.M{"$in": bson.A{nil, ""}}

	_, err := s.tracked.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"itemName": name}})
	if err != nil {
		s.fail("set_display_name", err, slog.String("uuid", userID), slog.Int("id", itemID))
		return false
	}
	return true
}

func (s *Store) RecordNotification(parentCtx context.Context, userID string, itemID int, price int, location string) bool {
	ctx, cancel := context.WithTimeout(parentCtx, s.opTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"lastNotification": model.Notification{
				Price:     price,
				MapCoords: location,
			},
		},
	}

	_, err := s.tracked.UpdateOne(ctx, pairFilter(userID, itemID), update)
	if err != nil {
		s.fail("record_notification", err, slog.String("uuid", userID), slog.Int("id", itemID))
		return false
	}
	return true
}

// WasAlreadyNotified reports whether the last alert for the pair had exactly
// this price and location.
func (s *Store) WasAlreadyNotified(parentCtx context.Context, userID string, itemID int, price int, location string) bool {
	ctx, cancel := context.WithTimeout(parentCtx, s.opTimeout)
	defer cancel()

	var item model.TrackedItem
	err := s.tracked.FindOne(ctx, pairFilter(userID, itemID)).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false
	}
	if err != nil {
		s.fail("was_already_notified", err, slog.String("uuid", userID), slog.Int("id", itemID))
		return false
	}

	last := item.LastNotification
	return last != nil && last.Price == price && last.MapCoords == location
}

func (s *Store) DeleteTracking(parentCtx context.Context, userID string, itemID int) bool {
	ctx, cancel := context.WithTimeout(parentCtx, s.opTimeout)
	defer cancel()

	if _, err := s.tracked.DeleteOne(ctx, pairFilter(userID, itemID)); err != nil {
		s.fail("delete_tracking", err, slog.String("uuid", userID), slog.Int("id", itemID))
		return false
	}
	return true
}
