package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/farmreport/internal/domain/models"
)

type farmConfigDoc struct {
	FarmID int64           `bson:"farm_id"`
	Tasks  []taskConfigDoc `bson:"tasks"`
}

type taskConfigDoc struct {
	Task          models.TaskType      `bson:"task"`
	Method        models.StrategyKind  `bson:"method"`
	Label         string               `bson:"label,omitempty"`
	OffsetDays    int                  `bson:"offset_days"`
	Rules         []groupRuleDoc       `bson:"rules,omitempty"`
	Source        models.TaskType      `bson:"source,omitempty"`
	CarryOverdue  bool                  `bson:"carry_overdue"`
	AggregateOnly bool                  `bson:"aggregate_only"`
	CountHeads    bool                  `bson:"count_heads"`
	RatePercent   *primitive.Decimal128 `bson:"rate_percent,omitempty"`
}

type groupRuleDoc struct {
	Seq        int    `bson:"seq"`
	Label      string `bson:"label"`
	Group      string `bson:"group"`
	OffsetDays int    `bson:"offset_days"`
}

func toFarmConfigDoc(cfg models.FarmConfig) (farmConfigDoc, error) {
	doc := farmConfigDoc{FarmID: cfg.FarmID}
	for _, task := range models.TaskTypes {
		taskCfg, ok := cfg.Tasks[task]
		if !ok || taskCfg.Strategy == nil {
			continue
		}
		td := taskConfigDoc{
			Task:          task,
			Method:        taskCfg.Strategy.Kind(),
			Source:        taskCfg.Source,
			CarryOverdue:  taskCfg.CarryOverdue,
			AggregateOnly: taskCfg.AggregateOnly,
			CountHeads:    taskCfg.CountHeads,
		}
		if taskCfg.RatePercent.Valid {
			rate, err := primitive.ParseDecimal128(taskCfg.RatePercent.Decimal.StringFixed(2))
			if err != nil {
				return farmConfigDoc{}, fmt.Errorf("convert %s rate: %w", task, err)
			}
			td.RatePercent = &rate
		}
		switch strategy := taskCfg.Strategy.(type) {
		case models.Uniform:
			td.Label = strategy.Label
			td.OffsetDays = strategy.OffsetDays
		case models.Grouped:
			for _, rule := range strategy.Rules {
				td.Rules = append(td.Rules, groupRuleDoc(rule))
			}
		}
		doc.Tasks = append(doc.Tasks, td)
	}
	return doc, nil
}

func fromFarmConfigDoc(doc farmConfigDoc) (models.FarmConfig, error) {
	cfg := models.FarmConfig{FarmID: doc.FarmID, Tasks: make(map[models.TaskType]models.TaskConfig, len(doc.Tasks))}
	for _, td := range doc.Tasks {
		taskCfg := models.TaskConfig{
			Task:          td.Task,
			Source:        td.Source,
			CarryOverdue:  td.CarryOverdue,
			AggregateOnly: td.AggregateOnly,
			CountHeads:    td.CountHeads,
		}
		if td.RatePercent != nil {
			rate, err := decimal.NewFromString(td.RatePercent.String())
			if err != nil {
				return models.FarmConfig{}, fmt.Errorf("parse %s rate: %w", td.Task, err)
			}
			taskCfg.RatePercent = decimal.NewNullDecimal(rate)
		}
		switch td.Method {
		case models.StrategyFarmDefault:
			taskCfg.Strategy = models.Uniform{Label: td.Label, OffsetDays: td.OffsetDays}
		case models.StrategyPerGroup:
			rules := make([]models.GroupRule, 0, len(td.Rules))
			for _, rule := range td.Rules {
				rules = append(rules, models.GroupRule(rule))
			}
			taskCfg.Strategy = models.Grouped{Rules: rules}
		default:
			return models.FarmConfig{}, fmt.Errorf("unknown forecast method %q for %s", td.Method, td.Task)
		}
		cfg.Tasks[td.Task] = taskCfg
	}
	return cfg, nil
}

// FarmConfig loads a farm's forecast configuration.
func (r *MongoDBRepository) FarmConfig(ctx context.Context, farmID int64) (models.FarmConfig, bool, error) {
	var doc farmConfigDoc
	err := r.db.Collection(configsCollection).FindOne(ctx, bson.M{"farm_id": farmID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.FarmConfig{}, false, nil
	}
	if err != nil {
		return models.FarmConfig{}, false, fmt.Errorf("find forecast config: %w", err)
	}
	cfg, err := fromFarmConfigDoc(doc)
	if err != nil {
		return models.FarmConfig{}, false, err
	}
	return cfg, true, nil
}

// SaveFarmConfig replaces a farm's forecast configuration.
func (r *MongoDBRepository) SaveFarmConfig(ctx context.Context, cfg models.FarmConfig) error {
	doc, err := toFarmConfigDoc(cfg)
	if err != nil {
		return err
	}
	_, err = r.db.Collection(configsCollection).ReplaceOne(ctx, bson.M{"farm_id": cfg.FarmID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save forecast config: %w", err)
	}
	return nil
}
