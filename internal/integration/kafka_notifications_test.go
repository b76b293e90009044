//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/couchcryptid/hazard-alert-service/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-alert-service/internal/domain"
	"github.com/couchcryptid/hazard-alert-service/internal/observability"
)

const notificationsTopic = "test-hazard-notifications"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka container and returns its broker
// address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.6.1",
		tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	testcontainers.CleanupContainer(t, container)

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	require.NoError(t, conn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestNotificationPublishRoundTrip publishes a batch through the Publisher
// and verifies keys, headers, and payloads on the wire.
func TestNotificationPublishRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, notificationsTopic)

	publisher := kafkaadapter.NewPublisher([]string{broker}, notificationsTopic,
		observability.NewMetricsForTesting(), discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	now := time.Now().UTC().Truncate(time.Second)
	userID := uuid.New()
	batch := []domain.Notification{
		{
			ID:        uuid.New(),
			AlertID:   uuid.New(),
			UserID:    userID,
			Family:    domain.FamilyQuake,
			Status:    domain.NotificationSent,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        uuid.New(),
			AlertID:   uuid.New(),
			UserID:    userID,
			Family:    domain.FamilyFlood,
			Status:    domain.NotificationSent,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	require.NoError(t, publisher.PublishBatch(ctx, batch))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       notificationsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	for i := range batch {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read notification %d", i)

		assert.Equal(t, []byte(userID.String()), msg.Key)

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, string(batch[i].Family), headers["family"])
		_, err = time.Parse(time.RFC3339, headers["created_at"])
		assert.NoError(t, err, "created_at should be valid RFC3339")

		var got domain.Notification
		require.NoError(t, json.Unmarshal(msg.Value, &got))
		assert.Equal(t, batch[i].ID, got.ID)
		assert.Equal(t, domain.NotificationSent, got.Status)
	}
}
