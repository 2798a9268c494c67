package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	applog "auctionhouse/internal/log"
)

const (
	redisPublishTimeout = 2 * time.Second
	redisMaxInFlight    = 64
)

var errPublishBacklog = errors.New("too many publishes in flight")

// Redis publishes notifications on the pub/sub channel <prefix>:<playerID>.
type Redis struct {
	client *redis.Client
	prefix string
	now    func() time.Time

	mu       sync.Mutex
	closed   bool
	inflight errgroup.Group
}

func NewRedis(addr, password string, db int, prefix string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}
	return newRedis(rdb, prefix, redisMaxInFlight), nil
}

func newRedis(client *redis.Client, prefix string, maxInFlight int) *Redis {
	if prefix == "" {
		prefix = "auction_notify"
	}
	r := &Redis{client: client, prefix: prefix, now: time.Now}
	r.inflight.SetLimit(maxInFlight)
	return r
}

func (r *Redis) channel(playerID string) string { return r.prefix + ":" + playerID }

// Notify publishes in the background so a slow Redis never stalls a
// settlement. When the in-flight limit is reached the notification is
// dropped.
func (r *Redis) Notify(ctx context.Context, playerID, event string, params map[string]any) {
	data, err := encodeEvent(playerID, event, params, r.now())
	if err != nil {
		applog.Warn(nil, "notify.redis.marshal", err, map[string]any{"event": event})
		return
	}
	channel := r.channel(playerID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	started := r.inflight.TryGo(func() error {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), redisPublishTimeout)
		defer cancel()
		if err := r.client.Publish(pctx, channel, data).Err(); err != nil {
			applog.Warn(nil, "notify.redis.publish", err, map[string]any{"channel": channel, "event": event})
		}
		return nil
	})
	if !started {
		applog.Warn(nil, "notify.redis.dropped", errPublishBacklog, map[string]any{"channel": channel, "event": event})
	}
}

// Close stops accepting notifications, waits for publishes already started
// and closes the client.
func (r *Redis) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	_ = r.inflight.Wait()
	return r.client.Close()
}
