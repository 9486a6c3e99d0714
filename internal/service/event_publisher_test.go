package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestEventPublisherFansOutToRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := redisClient.Subscribe(ctx, "sigap:reports:created")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	events := NewEventPublisher(redisClient, nil, "sigap", testLogger())
	events.Publish(ctx, "reports.created", map[string]string{"kind": "daily-activity"})

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var envelope struct {
		Source  string            `json:"source"`
		Event   string            `json:"event"`
		Payload map[string]string `json:"payload"`
		SentAt  time.Time         `json:"sent_at"`
	}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &envelope))
	require.Equal(t, "reports.created", envelope.Event)
	require.Equal(t, "daily-activity", envelope.Payload["kind"])
	require.NotEmpty(t, envelope.Source)
	require.False(t, envelope.SentAt.IsZero())
}

func TestEventPublisherToleratesMissingBrokers(t *testing.T) {
	events := NewEventPublisher(nil, nil, "sigap", testLogger())

	// Must not panic and must not block.
	events.Publish(context.Background(), "reports.created", map[string]string{"kind": "daily-activity"})
	events.Publish(context.Background(), "", nil)
}
