// Package events announces calibration results to downstream consumers
// over Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/socassist/risk-engine/internal/calibration"
)

// EventCalibrationCompleted is the event type header value.
const EventCalibrationCompleted = "risk.calibration.completed"

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config holds Kafka connection parameters.
type Config struct {
	Brokers []string
	Topic   string
}

// KafkaPublisher publishes calibration summaries as JSON messages keyed by
// run id.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher creates a publisher writing to cfg.Topic.
func NewKafkaPublisher(cfg Config, logger *slog.Logger) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafkago.RequireAll,
	}
	return newKafkaPublisher(w, cfg.Topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{writer: w, topic: topic, logger: logger}
}

// PublishCalibration sends s. Skipped runs are not published.
func (p *KafkaPublisher) PublishCalibration(ctx context.Context, s calibration.Summary) error {
	if s.Status != calibration.StatusCompleted {
		return nil
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal calibration summary: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(s.RunID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event-type", Value: []byte(EventCalibrationCompleted)},
			{Key: "config-version", Value: []byte(s.ConfigVersion)},
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: s.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}

	p.logger.Info("published calibration event",
		slog.String("topic", p.topic),
		slog.String("run_id", s.RunID),
		slog.Int("payload_size", len(payload)))
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards every event. It is used when no brokers are configured.
type Nop struct{}

// PublishCalibration does nothing.
func (Nop) PublishCalibration(context.Context, calibration.Summary) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
