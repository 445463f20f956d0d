package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/internal/service/batch"
)

// SaveBatch replaces the stored state of a batch.
func (r *MongoDBRepository) SaveBatch(ctx context.Context, b models.ReportBatch) error {
	_, err := r.db.Collection(batchesCollection).ReplaceOne(ctx, bson.M{"_id": b.ID}, b, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save report batch: %w", err)
	}
	return nil
}

// Batch loads a batch by id.
func (r *MongoDBRepository) Batch(ctx context.Context, id string) (models.ReportBatch, error) {
	var b models.ReportBatch
	err := r.db.Collection(batchesCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ReportBatch{}, batch.ErrBatchNotFound
	}
	if err != nil {
		return models.ReportBatch{}, fmt.Errorf("find report batch: %w", err)
	}
	return b, nil
}
