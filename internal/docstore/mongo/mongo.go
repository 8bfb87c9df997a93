// Package mongo provides a MongoDB-backed implementation of the docstore.Store interface.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mmynk/splitbill/internal/docstore"
)

// createdField records insertion time so queries can return documents in write order.
const createdField = "_created"

var _ docstore.Store = (*MongoStore)(nil)

// Options configures the MongoDB connection.
type Options struct {
	URI      string
	Database string
	MaxPool  uint64

	// Transactions makes BatchDelete run inside a multi-document transaction.
	// Requires a replica set; standalone servers reject transactions.
	Transactions bool
}

// MongoStore implements docstore.Store on a MongoDB database.
type MongoStore struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool
}

// New connects to MongoDB and verifies connectivity.
func New(ctx context.Context, opts Options) (*MongoStore, error) {
	if opts.URI == "" {
		return nil, errors.New("mongo URI is required")
	}
	if opts.Database == "" {
		opts.Database = "splitbill"
	}

	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.MaxPool > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPool)
	}

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoStore{
		client:       client,
		db:           client.Database(opts.Database),
		transactions: opts.Transactions,
	}, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Query(ctx context.Context, collection, field string, value any) ([]docstore.Document, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: createdField, Value: 1}})
	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{field: normalize(value)}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", collection, err)
	}

	docs := make([]docstore.Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, toDocument(collection, m))
	}
	return docs, nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	var m bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	doc := toDocument(collection, m)
	return &doc, nil
}

func (s *MongoStore) Set(ctx context.Context, collection, id string, fields docstore.Fields) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}

	replacement := bson.M{"_id": id, createdField: time.Now().UnixNano()}
	for k, v := range fields {
		replacement[k] = normalize(v)
	}

	_, err := s.db.Collection(collection).ReplaceOne(ctx,
		bson.M{"_id": id},
		replacement,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return "", fmt.Errorf("failed to set document: %w", err)
	}
	return id, nil
}

func (s *MongoStore) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	id := uuid.New().String()
	doc := bson.M{"_id": id, createdField: time.Now().UnixNano()}
	for k, v := range fields {
		doc[k] = normalize(v)
	}

	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to add document: %w", err)
	}
	return id, nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *MongoStore) BatchDelete(ctx context.Context, keys []docstore.Key) error {
	if len(keys) == 0 {
		return nil
	}

	byCollection := make(map[string][]string)
	var order []string
	for _, k := range keys {
		if _, ok := byCollection[k.Collection]; !ok {
			order = append(order, k.Collection)
		}
		byCollection[k.Collection] = append(byCollection[k.Collection], k.ID)
	}

	deleteAll := func(ctx context.Context) (any, error) {
		for _, c := range order {
			_, err := s.db.Collection(c).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": byCollection[c]}})
			if err != nil {
				return nil, fmt.Errorf("failed to delete from %s: %w", c, err)
			}
		}
		return nil, nil
	}

	if !s.transactions {
		_, err := deleteAll(ctx)
		return err
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	if _, err := session.WithTransaction(ctx, deleteAll); err != nil {
		return fmt.Errorf("batch delete transaction failed: %w", err)
	}
	return nil
}

func normalize(v any) any {
	switch val := v.(type) {
	case docstore.Ref:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

func toDocument(collection string, m bson.M) docstore.Document {
	id, _ := m["_id"].(string)
	fields := make(docstore.Fields, len(m))
	for k, v := range m {
		if k == "_id" || k == createdField {
			continue
		}
		fields[k] = v
	}
	return docstore.Document{Collection: collection, ID: id, Fields: fields}
}
