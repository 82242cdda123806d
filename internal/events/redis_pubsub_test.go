package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisPubSub_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Event, 1)
	sub := NewRedisSubscriber(rdb, zap.NewNop())
	require.NoError(t, sub.Subscribe(ctx, StreamCampaign, func(ev Event) { received <- ev }))

	pub := NewRedisPublisher(rdb, zap.NewNop())
	require.NoError(t, pub.Publish(ctx, StreamCampaign, Event{
		Type:    EventCampaignStatusChanged,
		Payload: map[string]any{"campaign_id": "c1", "new_status": "running"},
	}))

	select {
	case ev := <-received:
		assert.Equal(t, EventCampaignStatusChanged, ev.Type)
		assert.Equal(t, "running", ev.Payload["new_status"])
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}
