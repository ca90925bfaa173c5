package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher mirrors alerts onto a Kafka topic so monitoring consumers can
// react without polling the alert table. Delivery is async; a broker outage
// degrades to local-only alerts.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher connects to the brokers and ensures the topic exists.
func NewKafkaPublisher(ctx context.Context, brokers, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(brokers, ",")...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	// One partition is enough: alert volume is low and ordering aids triage.
	if _, err := admin.CreateTopic(ctx, 1, 1, nil, topic); err != nil && !strings.Contains(err.Error(), "TOPIC_ALREADY_EXISTS") {
		client.Close()
		return nil, fmt.Errorf("ensure alert topic %q: %w", topic, err)
	}

	return &KafkaPublisher{client: client, topic: topic, logger: logger}, nil
}

type alertMessage struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	Severity          string    `json:"severity"`
	Message           string    `json:"message"`
	RelatedEntityType string    `json:"relatedEntityType,omitempty"`
	RelatedEntityID   string    `json:"relatedEntityId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (p *KafkaPublisher) Publish(ctx context.Context, a Alert) {
	msg := alertMessage{
		ID:                a.ID.String(),
		Type:              a.Type,
		Severity:          string(a.Severity),
		Message:           a.Message,
		RelatedEntityType: a.RelatedEntityType,
		CreatedAt:         a.CreatedAt,
	}
	if a.RelatedEntityID != nil {
		msg.RelatedEntityID = a.RelatedEntityID.String()
	}
	value, err := json.Marshal(msg)
	if err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "failed to encode alert message", "error", err)
		}
		return
	}

	record := &kgo.Record{Topic: p.topic, Key: []byte(a.Type), Value: value}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil && p.logger != nil {
			p.logger.ErrorContext(ctx, "failed to publish alert", "type", a.Type, "error", err)
		}
	})
}

// Close flushes pending records and releases the client.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		p.client.Close()
		return fmt.Errorf("flush alert publisher: %w", err)
	}
	p.client.Close()
	return nil
}
