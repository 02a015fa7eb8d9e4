package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"campusid/internal/platform/config"
)

// Producer abstracts the Kafka client so the worker is testable.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher streams audit events to the configured topic, keyed by DID
// so per-identity ordering is preserved across partitions.
type KafkaPublisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

// NewKafkaPublisher connects to the brokers. Returns nil when no brokers
// are configured (audit streaming disabled, local store still written).
func NewKafkaPublisher(cfg config.KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{producer: client, topic: cfg.Topic, logger: logger}, nil
}

// NewKafkaPublisherWithProducer wires a pre-built producer; used by tests.
func NewKafkaPublisherWithProducer(producer Producer, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

// Run drains the inbox until ctx is done. Publish failures are logged and
// dropped; the local audit store remains the authoritative trail.
func (p *KafkaPublisher) Run(ctx context.Context, inbox <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-inbox:
			p.publish(ctx, event)
		}
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, event Event) {
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal audit event", "error", err)
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.DID),
		Value: value,
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.logger.ErrorContext(ctx, "publish audit event",
			"action", event.Action,
			"did", event.DID,
			"error", err,
		)
	}
}

// Close flushes and closes the underlying client.
func (p *KafkaPublisher) Close() {
	p.producer.Close()
}
