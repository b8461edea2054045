//go:build integration

package broadcast_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"aims/internal/audit"
	"aims/internal/broadcast"
	"aims/pkg/testutil/containers"
)

func sampleDTO() audit.EventDTO {
	return audit.EventDTO{
		ID:            "assign:e9c1",
		OccurredAtUTC: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Type:          "Assign",
		User:          "Dana Smith (7)",
		Target:        "Hardware#42",
		Details:       "Hardware#42 assigned to user 7",
		Hash:          "deadbeefdeadbeef",
	}
}

func TestRedisSinkDeliversToSubscribers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	sub := rc.Client.Subscribe(ctx, "test:audit")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err, "subscription confirmation")

	sink := broadcast.NewRedisSink(rc.Client, "test:audit")
	dto := sampleDTO()
	require.NoError(t, sink.Publish(ctx, dto))

	select {
	case msg := <-sub.Channel():
		var got audit.EventDTO
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, dto, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no message received on pub/sub channel")
	}
}

func TestKafkaSinkProducesKeyedRecords(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()
	const topic = "aims.audit.test"

	admin, err := kgo.NewClient(kgo.SeedBrokers(rp.Brokers...))
	require.NoError(t, err)
	t.Cleanup(admin.Close)
	_, err = kadm.NewClient(admin).CreateTopic(ctx, 1, 1, nil, topic)
	require.NoError(t, err)

	sink, err := broadcast.NewKafkaSink(rp.Brokers, topic)
	require.NoError(t, err)
	t.Cleanup(sink.Close)

	dto := sampleDTO()
	require.NoError(t, sink.Publish(ctx, dto))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(fetchCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, dto.ID, string(records[0].Key))

	var got audit.EventDTO
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, dto, got)
}
