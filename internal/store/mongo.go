package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/moodyoga/studio-api/internal/models"
	"github.com/moodyoga/studio-api/pkg/config"
)

// MongoCatalog is the MongoDB-backed remote catalog source. Every call is
// bounded by the configured timeout so a slow backend degrades to the local
// cache instead of hanging callers.
type MongoCatalog struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoCatalog connects to the remote document store.
func NewMongoCatalog(ctx context.Context, cfg config.RemoteConfig) (*MongoCatalog, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect remote store: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping remote store: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "classes"
	}
	return &MongoCatalog{
		client:     client,
		collection: client.Database(cfg.Database).Collection(collection),
		timeout:    timeout,
	}, nil
}

// Close disconnects from the remote store.
func (m *MongoCatalog) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// FetchAll returns every class document ordered by creation time.
func (m *MongoCatalog) FetchAll(ctx context.Context) ([]models.ClassOffering, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cursor, err := m.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"created_at": 1}))
	if err != nil {
		return nil, fmt.Errorf("fetch classes: %w", err)
	}
	defer cursor.Close(ctx)

	var classes []models.ClassOffering
	if err := cursor.All(ctx, &classes); err != nil {
		return nil, fmt.Errorf("decode classes: %w", err)
	}
	return classes, nil
}

// Insert writes a new class document keyed by its id.
func (m *MongoCatalog) Insert(ctx context.Context, class *models.ClassOffering) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, err := m.collection.InsertOne(ctx, class); err != nil {
		return fmt.Errorf("insert class: %w", err)
	}
	return nil
}

// Update replaces the document for id.
func (m *MongoCatalog) Update(ctx context.Context, id string, class *models.ClassOffering) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, err := m.collection.ReplaceOne(ctx, bson.M{"_id": id}, class, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes the document for id. Deleting a missing document is not an
// error.
func (m *MongoCatalog) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}
