package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	applog "auctionhouse/internal/log"
	"auctionhouse/internal/notify"
)

type capture struct{ events []string }

func (c *capture) Notify(_ context.Context, playerID, event string, _ map[string]any) {
	c.events = append(c.events, playerID+":"+event)
}

func TestMultiFansOut(t *testing.T) {
	a, b := &capture{}, &capture{}
	m := notify.Multi{a, notify.Discard{}, b}
	m.Notify(context.Background(), "alice", "bid.outbid", nil)

	require.Equal(t, []string{"alice:bid.outbid"}, a.events)
	require.Equal(t, a.events, b.events)
}

func TestLogNotifierWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	applog.Init(&buf, "info")
	t.Cleanup(func() { applog.Init(&bytes.Buffer{}, "info") })

	notify.Log{}.Notify(context.Background(), "alice", "listing.won", map[string]any{"amount": "$10.00"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "notify.listing.won", line["action"])
	fields := line["fields"].(map[string]any)
	require.Equal(t, "alice", fields["player_id"])
}
