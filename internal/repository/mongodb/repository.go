package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	batchesCollection      = "report_batches"
	snapshotsCollection    = "report_snapshots"
	panelRowsCollection    = "report_panel_rows"
	entitlementsCollection = "entitlements"
	configsCollection      = "task_configs"
)

// MongoDBRepository implements the report, batch, entitlement and config
// stores on top of one MongoDB database.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

// EnsureIndexes creates the unique keys the stores rely on.
func (r *MongoDBRepository) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		entitlementsCollection: {{
			Keys:    bson.D{{Key: "farm_id", Value: 1}, {Key: "registered_on", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		snapshotsCollection: {
			{
				Keys:    bson.D{{Key: "batch_id", Value: 1}, {Key: "farm_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "share_token", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
		panelRowsCollection: {{
			Keys: bson.D{
				{Key: "batch_id", Value: 1},
				{Key: "farm_id", Value: 1},
				{Key: "panel", Value: 1},
				{Key: "sub_panel", Value: 1},
				{Key: "sort", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		}},
		configsCollection: {{
			Keys:    bson.D{{Key: "farm_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
	}

	for name, models := range indexes {
		if _, err := r.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
