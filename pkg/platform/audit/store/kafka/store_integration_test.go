//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"entrygate/internal/platform/config"
	platformkafka "entrygate/internal/platform/kafka"
	audit "entrygate/pkg/platform/audit"
	"entrygate/pkg/testutil/containers"
)

func TestStore_ProducesToBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	broker := containers.NewKafkaContainer(t)
	const topic = "entrygate.audit.test"

	producer, err := platformkafka.New(config.Kafka{Brokers: []string{broker.Broker}, AuditTopic: topic})
	require.NoError(t, err)
	t.Cleanup(producer.Close)
	require.NoError(t, platformkafka.EnsureTopic(ctx, producer, topic, 1, 1))
	require.NoError(t, platformkafka.EnsureTopic(ctx, producer, topic, 1, 1), "existing topic is not an error")

	store := New(producer, topic)
	require.NoError(t, store.Append(ctx, audit.Event{
		Timestamp: time.Now().UTC(),
		ContestID: "summer-2026",
		EntryID:   "e-1",
		Action:    string(audit.EventEntryAdmitted),
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollRecords(ctx, 1)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)

	rec := records[0]
	require.Equal(t, "summer-2026", string(rec.Key))
	var got audit.Event
	require.NoError(t, json.Unmarshal(rec.Value, &got))
	require.Equal(t, audit.CategoryCompliance, got.Category)
	require.Equal(t, "e-1", got.EntryID)
}
