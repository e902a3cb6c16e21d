package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	readingsCollection = "weather_readings"
	usersCollection    = "users"
)

// Mongo is the MongoDB-backed Store. One client is created at startup and
// shared by the subscriber and the HTTP handlers; the driver handles pooling.
type Mongo struct {
	client   *mongo.Client
	readings *mongo.Collection
	users    *mongo.Collection
}

// NewMongo connects to the given deployment and verifies connectivity before
// returning. An unreachable or misconfigured store is a startup error.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(database)
	return &Mongo{
		client:   client,
		readings: db.Collection(readingsCollection),
		users:    db.Collection(usersCollection),
	}, nil
}

func (m *Mongo) InsertReading(ctx context.Context, r Reading) (string, error) {
	res, err := m.readings.InsertOne(ctx, r)
	if err != nil {
		return "", fmt.Errorf("insert reading: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Sprintf("%v", res.InsertedID), nil
	}
	return oid.Hex(), nil
}

func (m *Mongo) RecentReadings(ctx context.Context, limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := m.readings.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find recent readings: %w", err)
	}
	defer cur.Close(ctx)

	var out []Reading
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode recent readings: %w", err)
	}
	return out, nil
}

func (m *Mongo) UserSettings(ctx context.Context, identity string) (map[string]any, error) {
	var doc bson.M
	err := m.users.FindOne(ctx, bson.M{"_id": identity}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get settings for %q: %w", identity, err)
	}

	settings := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		settings[k] = v
	}
	return settings, nil
}

func (m *Mongo) UpsertUserSettings(ctx context.Context, identity string, patch map[string]any) error {
	set := bson.M{}
	for k, v := range patch {
		if k == "_id" {
			continue
		}
		set[k] = v
	}
	set["updated_ts"] = time.Now().UnixMilli()

	_, err := m.users.UpdateByID(ctx, identity, bson.M{"$set": set}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert settings for %q: %w", identity, err)
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close tears down the client. Safe to call once during shutdown.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
