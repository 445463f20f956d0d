// Package events announces report batch lifecycle changes to other systems.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

// BatchFinished is the event type emitted once a batch reaches a terminal
// status.
const BatchFinished = "report.batch.finished"

// Publisher emits batch lifecycle events.
type Publisher interface {
	PublishBatch(ctx context.Context, batch models.ReportBatch) error
	Close() error
}

// BatchEvent is the JSON payload written for a batch.
type BatchEvent struct {
	Type          string             `json:"type"`
	BatchID       string             `json:"batch_id"`
	PeriodType    models.PeriodType  `json:"period_type"`
	PeriodFrom    string             `json:"period_from"`
	PeriodTo      string             `json:"period_to"`
	Status        models.BatchStatus `json:"status"`
	Trigger       models.Trigger     `json:"trigger"`
	ScheduleGroup string             `json:"schedule_group,omitempty"`
	TargetCount   int                `json:"target_count"`
	CompleteCount int                `json:"complete_count"`
	ErrorCount    int                `json:"error_count"`
	ElapsedMillis int64              `json:"elapsed_ms"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

// NewBatchEvent builds the payload for batch.
func NewBatchEvent(batch models.ReportBatch, at time.Time) BatchEvent {
	return BatchEvent{
		Type:          BatchFinished,
		BatchID:       batch.ID,
		PeriodType:    batch.PeriodType,
		PeriodFrom:    kst.Format(batch.PeriodFrom),
		PeriodTo:      kst.Format(batch.PeriodTo),
		Status:        batch.Status,
		Trigger:       batch.Trigger,
		ScheduleGroup: batch.ScheduleGroup,
		TargetCount:   batch.TargetCount,
		CompleteCount: batch.CompleteCount,
		ErrorCount:    batch.ErrorCount,
		ElapsedMillis: batch.Elapsed.Milliseconds(),
		OccurredAt:    at.UTC(),
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	MaxAttempts  int           // defaults to 3 when <= 0
	WriteTimeout time.Duration // defaults to 10s when zero
}

// KafkaPublisher writes batch events to a Kafka topic keyed by batch id.
type KafkaPublisher struct {
	writer      messageWriter
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// NewKafkaPublisher constructs a publisher for cfg.
func NewKafkaPublisher(cfg KafkaConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
	}
	return newKafkaPublisher(writer, cfg.MaxAttempts, logger), nil
}

func newKafkaPublisher(writer messageWriter, maxAttempts int, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: writer, maxAttempts: maxAttempts, backoff: 100 * time.Millisecond, logger: logger}
}

// PublishBatch writes the batch event, retrying transient failures with
// exponential backoff.
func (p *KafkaPublisher) PublishBatch(ctx context.Context, batch models.ReportBatch) error {
	payload, err := json.Marshal(NewBatchEvent(batch, time.Now()))
	if err != nil {
		return fmt.Errorf("marshal batch event: %w", err)
	}
	msg := kafka.Message{Key: []byte(batch.ID), Value: payload, Time: time.Now().UTC()}

	var lastErr error
	backoff := p.backoff
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if lastErr = p.writer.WriteMessages(ctx, msg); lastErr == nil {
			p.logger.Debug("batch event published", zap.String("batch_id", batch.ID), zap.Int("attempt", attempt))
			return nil
		}
		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("publish batch event: %w", ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	return fmt.Errorf("publish batch event after %d attempts: %w", p.maxAttempts, lastErr)
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// NopPublisher drops every event. It is used when Kafka is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishBatch(context.Context, models.ReportBatch) error { return nil }
func (NopPublisher) Close() error                                           { return nil }
