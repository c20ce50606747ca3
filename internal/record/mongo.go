package record

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kingrea/trailhead/internal/hydrate"
)

// MongoFetcher reads records straight from the trips collection.
type MongoFetcher struct {
	collection *mongo.Collection
}

// NewMongoFetcher wraps an existing collection handle.
func NewMongoFetcher(collection *mongo.Collection) *MongoFetcher {
	return &MongoFetcher{collection: collection}
}

// DialMongo connects to uri and returns a fetcher for database.collection
// along with a function that disconnects the client.
func DialMongo(ctx context.Context, uri, database, collection string) (*MongoFetcher, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("record: connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("record: ping mongo: %w", err)
	}
	coll := client.Database(database).Collection(collection)
	return NewMongoFetcher(coll), client.Disconnect, nil
}

// Fetch implements Fetcher.
func (f *MongoFetcher) Fetch(ctx context.Context, id string) (hydrate.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return hydrate.Record{}, ErrNotFound
	}
	var raw bson.Raw
	err := f.collection.FindOne(ctx, lookupFilter(id)).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return hydrate.Record{}, fmt.Errorf("record: fetch %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return hydrate.Record{}, fmt.Errorf("record: fetch %s: %w", id, err)
	}
	return decodeDocument(raw)
}

// lookupFilter matches the trip by id or _id and skips soft-deleted rows.
func lookupFilter(id string) bson.M {
	match := bson.A{bson.M{"id": id}, bson.M{"_id": id}}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		match = append(match, bson.M{"_id": oid})
	}
	return bson.M{
		"$or":     match,
		"deleted": bson.M{"$ne": true},
	}
}

func decodeDocument(raw bson.Raw) (hydrate.Record, error) {
	doc, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return hydrate.Record{}, fmt.Errorf("record: convert document: %w", err)
	}
	return hydrate.DecodeRecord(doc)
}
