// Package notify delivers auction notifications to players. Every backend is
// best effort: failures are logged and never reach the caller.
package notify

import (
	"context"
	"encoding/json"
	"time"

	applog "auctionhouse/internal/log"
)

// Notifier matches the engine's notification port.
type Notifier interface {
	Notify(ctx context.Context, playerID, event string, params map[string]any)
}

// Event is the wire form published by the network backends.
type Event struct {
	PlayerID string         `json:"player_id"`
	Event    string         `json:"event"`
	Params   map[string]any `json:"params,omitempty"`
	At       time.Time      `json:"at"`
}

func encodeEvent(playerID, event string, params map[string]any, at time.Time) ([]byte, error) {
	return json.Marshal(Event{PlayerID: playerID, Event: event, Params: params, At: at.UTC()})
}

// Log writes notifications to the application log.
type Log struct{}

func (Log) Notify(_ context.Context, playerID, event string, params map[string]any) {
	applog.Info(nil, "notify."+event, map[string]any{"player_id": playerID, "params": params})
}

// Multi fans a notification out to several backends.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, playerID, event string, params map[string]any) {
	for _, n := range m {
		n.Notify(ctx, playerID, event, params)
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(context.Context, string, string, map[string]any) {}
