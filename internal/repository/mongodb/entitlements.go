package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/internal/service/entitlement"
)

// History returns a farm's entitlement records in insertion order.
func (r *MongoDBRepository) History(ctx context.Context, farmID int64) ([]models.EntitlementRecord, error) {
	return r.findEntitlements(ctx, bson.M{"farm_id": farmID})
}

// Histories returns every farm's history.
func (r *MongoDBRepository) Histories(ctx context.Context) (map[int64][]models.EntitlementRecord, error) {
	records, err := r.findEntitlements(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]models.EntitlementRecord)
	for _, rec := range records {
		out[rec.FarmID] = append(out[rec.FarmID], rec)
	}
	return out, nil
}

func (r *MongoDBRepository) findEntitlements(ctx context.Context, filter bson.M) ([]models.EntitlementRecord, error) {
	// ObjectIDs grow with insertion time, which keeps same-day ties stable.
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.db.Collection(entitlementsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find entitlements: %w", err)
	}

	var records []models.EntitlementRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode entitlements: %w", err)
	}
	return records, nil
}

// UpsertManual inserts rec, or reactivates the record registered the same day.
func (r *MongoDBRepository) UpsertManual(ctx context.Context, rec models.EntitlementRecord) error {
	filter := bson.M{"farm_id": rec.FarmID, "registered_on": rec.RegisteredOn}
	update := bson.M{
		"$set": bson.M{
			"active":  true,
			"enabled": true,
			"origin":  models.OriginManual,
		},
		"$setOnInsert": bson.M{
			"coverage_start": rec.CoverageStart,
			"coverage_end":   rec.CoverageEnd,
			"stop_on":        rec.StopOn,
			"schedule_group": rec.ScheduleGroup,
		},
	}
	_, err := r.db.Collection(entitlementsCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert manual entitlement: %w", err)
	}
	return nil
}

// SetScheduleGroup changes the run slot of one keyed record.
func (r *MongoDBRepository) SetScheduleGroup(ctx context.Context, farmID int64, registeredOn time.Time, group string) error {
	filter := bson.M{"farm_id": farmID, "registered_on": registeredOn}
	res, err := r.db.Collection(entitlementsCollection).UpdateOne(ctx, filter, bson.M{"$set": bson.M{"schedule_group": group}})
	if err != nil {
		return fmt.Errorf("update schedule group: %w", err)
	}
	if res.MatchedCount == 0 {
		return entitlement.ErrRecordNotFound
	}
	return nil
}
