package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	applog "auctionhouse/internal/log"
)

// NATS publishes notifications to <prefix>.<playerID>.
type NATS struct {
	conn   *nats.Conn
	prefix string
	now    func() time.Time
}

func NewNATS(url, prefix string) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("auctionhouse"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	if prefix == "" {
		prefix = "auction.notify"
	}
	return &NATS{conn: nc, prefix: prefix, now: time.Now}, nil
}

func (n *NATS) subject(playerID string) string { return n.prefix + "." + playerID }

func (n *NATS) Notify(_ context.Context, playerID, event string, params map[string]any) {
	data, err := encodeEvent(playerID, event, params, n.now())
	if err != nil {
		applog.Warn(nil, "notify.nats.marshal", err, map[string]any{"event": event})
		return
	}
	subject := n.subject(playerID)
	// Publish only buffers; delivery happens on the connection's flusher.
	if err := n.conn.Publish(subject, data); err != nil {
		applog.Warn(nil, "notify.nats.publish", err, map[string]any{"subject": subject, "event": event})
	}
}

// Close flushes pending messages and closes the connection.
func (n *NATS) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}
