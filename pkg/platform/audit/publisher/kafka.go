// Package publisher fans appended audit events out to Kafka for downstream
// consumers (SIEM pipelines, warehouse export). The ledger's store write is
// the source of truth; publishing is strictly best-effort and a broker outage
// never blocks or fails an append.
package publisher

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "rollout/pkg/platform/audit"
)

// producer is the slice of *kgo.Client this package uses, split out so unit
// tests can substitute a fake without a broker.
type producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Close()
}

// Kafka publishes audit events to a single topic, keyed by correlation ID so
// one request's trail lands in one partition, in order.
type Kafka struct {
	client producer
	topic  string
	logger *slog.Logger
}

// NewKafka connects to the given brokers. Delivery is asynchronous; failed
// deliveries are logged and dropped.
func NewKafka(brokers []string, topic string, logger *slog.Logger) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, err
	}
	return &Kafka{client: client, topic: topic, logger: logger}, nil
}

// Publish enqueues the event for delivery. Never blocks on broker state.
func (k *Kafka) Publish(ctx context.Context, event audit.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		if k.logger != nil {
			k.logger.WarnContext(ctx, "audit event marshal failed",
				"event_id", event.ID,
				"error", err,
			)
		}
		return
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.CorrelationID),
		Value: payload,
	}
	k.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil && k.logger != nil {
			k.logger.WarnContext(ctx, "audit event publish failed",
				"event_id", event.ID,
				"topic", k.topic,
				"error", err,
			)
		}
	})
}

// Close flushes buffered records and releases the client.
func (k *Kafka) Close() {
	k.client.Close()
}
