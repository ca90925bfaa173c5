//go:build integration

package alert_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"pharmatrace/internal/alert"
	"pharmatrace/pkg/testutil/containers"
)

func TestKafkaPublisherRoundTrip(t *testing.T) {
	broker := containers.NewRedpandaContainer(t)
	ctx := context.Background()
	const topic = "pharmatrace.alerts"

	publisher, err := alert.NewKafkaPublisher(ctx, broker.Broker, topic, nil)
	require.NoError(t, err)

	entityID := uuid.New()
	raised := alert.Alert{
		ID:                uuid.New(),
		Type:              alert.TypeCounterfeitDetected,
		Severity:          alert.SeverityHigh,
		Message:           "Crypto-tail verification failed - possible counterfeit",
		RelatedEntityType: "SerializedUnit",
		RelatedEntityID:   &entityID,
		CreatedAt:         time.Now().UTC(),
	}
	publisher.Publish(ctx, raised)

	// Close flushes, so the record is on the broker before we consume.
	require.NoError(t, publisher.Close(ctx))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(pollCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, alert.TypeCounterfeitDetected, string(records[0].Key))

	var got struct {
		ID                string `json:"id"`
		Type              string `json:"type"`
		Severity          string `json:"severity"`
		Message           string `json:"message"`
		RelatedEntityType string `json:"relatedEntityType"`
		RelatedEntityID   string `json:"relatedEntityId"`
	}
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, raised.ID.String(), got.ID)
	require.Equal(t, alert.TypeCounterfeitDetected, got.Type)
	require.Equal(t, string(alert.SeverityHigh), got.Severity)
	require.Equal(t, raised.Message, got.Message)
	require.Equal(t, "SerializedUnit", got.RelatedEntityType)
	require.Equal(t, entityID.String(), got.RelatedEntityID)
}
