package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	applog "auctionhouse/internal/log"
)

// Nothing listens on port 1.
const deadAddr = "127.0.0.1:1"

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) count(action string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), `"action":"`+action+`"`)
}

func captureLog(t *testing.T) *lockedBuffer {
	t.Helper()
	b := &lockedBuffer{}
	applog.Init(b, "warn")
	t.Cleanup(func() { applog.Init(&bytes.Buffer{}, "info") })
	return b
}

func TestNewNATSFailsWithoutServer(t *testing.T) {
	_, err := NewNATS("nats://"+deadAddr, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "connect to NATS")
}

func TestNewRedisFailsWithoutServer(t *testing.T) {
	_, err := NewRedis(deadAddr, "", 0, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "connect to Redis")
}

func TestSubjectAndChannelNames(t *testing.T) {
	require.Equal(t, "auction.notify.alice", (&NATS{prefix: "auction.notify"}).subject("alice"))

	for prefix, want := range map[string]string{"": "auction_notify:bob", "game": "game:bob"} {
		r := newRedis(redis.NewClient(&redis.Options{Addr: deadAddr}), prefix, 1)
		require.Equal(t, want, r.channel("bob"))
		require.NoError(t, r.Close())
	}
}

func TestEventWireFormat(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.FixedZone("EST", -5*3600))
	data, err := encodeEvent("alice", "bid.outbid", map[string]any{"amount": "$12.50"}, at)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, map[string]any{
		"player_id": "alice",
		"event":     "bid.outbid",
		"params":    map[string]any{"amount": "$12.50"},
		"at":        "2026-03-01T17:30:00Z",
	}, got)

	data, err = encodeEvent("bob", "listing.expired", nil, at)
	require.NoError(t, err)
	require.NotContains(t, string(data), "params")
}

func TestRedisCloseWaitsForPublishes(t *testing.T) {
	logs := captureLog(t)
	r := newRedis(redis.NewClient(&redis.Options{Addr: deadAddr, MaxRetries: -1}), "", 16)

	for i := 0; i < 5; i++ {
		r.Notify(context.Background(), "alice", "bid.outbid", nil)
	}
	require.NoError(t, r.Close())
	require.Equal(t, 5, logs.count("notify.redis.publish"))

	r.Notify(context.Background(), "alice", "bid.outbid", nil)
	require.Equal(t, 5, logs.count("notify.redis.publish"))
	require.Zero(t, logs.count("notify.redis.dropped"))
}

func TestRedisNotifyOutlivesCallerContext(t *testing.T) {
	logs := captureLog(t)
	r := newRedis(redis.NewClient(&redis.Options{Addr: deadAddr, MaxRetries: -1}), "", 4)

	ctx, cancel := context.WithCancel(context.Background())
	r.Notify(ctx, "alice", "listing.won", nil)
	cancel()
	require.NoError(t, r.Close())

	// The publish still ran and failed on the dead address, not on ctx.
	require.Equal(t, 1, logs.count("notify.redis.publish"))
	require.NotContains(t, logs.buf.String(), "context canceled")
}
