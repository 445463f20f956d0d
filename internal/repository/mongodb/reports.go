package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/internal/service/reporting"
)

// panelRowDoc stores numeric slots as Decimal128 with two fraction digits.
type panelRowDoc struct {
	BatchID  string                 `bson:"batch_id"`
	FarmID   int64                  `bson:"farm_id"`
	Panel    string                 `bson:"panel"`
	SubPanel string                 `bson:"sub_panel"`
	Sort     int                    `bson:"sort"`
	Code1    string                 `bson:"code_1,omitempty"`
	Code2    string                 `bson:"code_2,omitempty"`
	Counts   []primitive.Decimal128 `bson:"counts"`
	Values   []primitive.Decimal128 `bson:"values"`
	Texts    []string               `bson:"texts"`
}

func toPanelRowDoc(row models.PanelRow) (panelRowDoc, error) {
	counts, err := toDecimal128s(row.Counts)
	if err != nil {
		return panelRowDoc{}, err
	}
	values, err := toDecimal128s(row.Values)
	if err != nil {
		return panelRowDoc{}, err
	}
	return panelRowDoc{
		BatchID:  row.BatchID,
		FarmID:   row.FarmID,
		Panel:    row.Panel,
		SubPanel: row.SubPanel,
		Sort:     row.Sort,
		Code1:    row.Code1,
		Code2:    row.Code2,
		Counts:   counts,
		Values:   values,
		Texts:    row.Texts[:],
	}, nil
}

func fromPanelRowDoc(doc panelRowDoc) (models.PanelRow, error) {
	row := models.PanelRow{
		PanelKey: models.PanelKey{
			BatchID:  doc.BatchID,
			FarmID:   doc.FarmID,
			Panel:    doc.Panel,
			SubPanel: doc.SubPanel,
			Sort:     doc.Sort,
		},
		Code1: doc.Code1,
		Code2: doc.Code2,
	}
	if err := fromDecimal128s(doc.Counts, &row.Counts); err != nil {
		return models.PanelRow{}, err
	}
	if err := fromDecimal128s(doc.Values, &row.Values); err != nil {
		return models.PanelRow{}, err
	}
	copy(row.Texts[:], doc.Texts)
	return row, nil
}

func toDecimal128s(slots [models.SlotCount]decimal.Decimal) ([]primitive.Decimal128, error) {
	out := make([]primitive.Decimal128, len(slots))
	for i, d := range slots {
		v, err := primitive.ParseDecimal128(d.StringFixed(2))
		if err != nil {
			return nil, fmt.Errorf("convert slot %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func fromDecimal128s(in []primitive.Decimal128, slots *[models.SlotCount]decimal.Decimal) error {
	for i := range slots {
		if i >= len(in) {
			slots[i] = decimal.Zero
			continue
		}
		d, err := decimal.NewFromString(in[i].String())
		if err != nil {
			return fmt.Errorf("parse slot %d: %w", i+1, err)
		}
		slots[i] = d
	}
	return nil
}

// ReplaceRows swaps a farm's rows within a batch.
func (r *MongoDBRepository) ReplaceRows(ctx context.Context, batchID string, farmID int64, rows []models.PanelRow) error {
	docs := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		doc, err := toPanelRowDoc(row)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	coll := r.db.Collection(panelRowsCollection)
	if _, err := coll.DeleteMany(ctx, bson.M{"batch_id": batchID, "farm_id": farmID}); err != nil {
		return fmt.Errorf("delete panel rows: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert panel rows: %w", err)
	}
	return nil
}

// Rows returns a farm's rows within a batch in key order.
func (r *MongoDBRepository) Rows(ctx context.Context, batchID string, farmID int64) ([]models.PanelRow, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "panel", Value: 1},
		{Key: "sub_panel", Value: 1},
		{Key: "sort", Value: 1},
	})
	cursor, err := r.db.Collection(panelRowsCollection).Find(ctx, bson.M{"batch_id": batchID, "farm_id": farmID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find panel rows: %w", err)
	}

	var docs []panelRowDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode panel rows: %w", err)
	}
	rows := make([]models.PanelRow, 0, len(docs))
	for _, doc := range docs {
		row, err := fromPanelRowDoc(doc)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CreateSnapshot inserts a snapshot. The unique (batch_id, farm_id) index
// turns a second insert into reporting.ErrSnapshotExists.
func (r *MongoDBRepository) CreateSnapshot(ctx context.Context, snapshot models.ReportSnapshot) error {
	_, err := r.db.Collection(snapshotsCollection).InsertOne(ctx, snapshot)
	if mongo.IsDuplicateKeyError(err) {
		return reporting.ErrSnapshotExists
	}
	if err != nil {
		return fmt.Errorf("insert report snapshot: %w", err)
	}
	return nil
}

func (r *MongoDBRepository) Snapshot(ctx context.Context, key models.SnapshotKey) (models.ReportSnapshot, error) {
	return r.findSnapshot(ctx, bson.M{"batch_id": key.BatchID, "farm_id": key.FarmID})
}

func (r *MongoDBRepository) SnapshotByToken(ctx context.Context, token string) (models.ReportSnapshot, error) {
	return r.findSnapshot(ctx, bson.M{"share_token": token})
}

func (r *MongoDBRepository) SetShareToken(ctx context.Context, key models.SnapshotKey, token string, expiresOn time.Time) error {
	filter := bson.M{"batch_id": key.BatchID, "farm_id": key.FarmID}
	update := bson.M{"$set": bson.M{"share_token": token, "token_expires_on": expiresOn}}
	res, err := r.db.Collection(snapshotsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("set share token: %w", err)
	}
	if res.MatchedCount == 0 {
		return reporting.ErrSnapshotNotFound
	}
	return nil
}

func (r *MongoDBRepository) findSnapshot(ctx context.Context, filter bson.M) (models.ReportSnapshot, error) {
	var snapshot models.ReportSnapshot
	err := r.db.Collection(snapshotsCollection).FindOne(ctx, filter).Decode(&snapshot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ReportSnapshot{}, reporting.ErrSnapshotNotFound
	}
	if err != nil {
		return models.ReportSnapshot{}, fmt.Errorf("find report snapshot: %w", err)
	}
	return snapshot, nil
}
