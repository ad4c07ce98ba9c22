package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"marketplace/internal/notify"
)

var errHubStopped = errors.New("websocket hub stopped")

// DecisionEvent is pushed to dashboards; on receipt they re-read the pending list.
type DecisionEvent struct {
	Type      string    `json:"type"`
	Event     string    `json:"event"`
	RequestID string    `json:"request_id"`
	Kind      string    `json:"kind"`
	Decision  string    `json:"decision"`
	At        time.Time `json:"at"`
}

// Channel adapts the hub to notify.Channel.
type Channel struct {
	hub *Hub
}

func NewChannel(hub *Hub) *Channel {
	return &Channel{hub: hub}
}

func (c *Channel) Name() string { return "websocket" }

func (c *Channel) Send(ctx context.Context, msg notify.Message) error {
	body, err := json.Marshal(DecisionEvent{
		Type:      "approval.decided",
		Event:     msg.EventType,
		RequestID: msg.Data["request_id"],
		Kind:      msg.Data["kind"],
		Decision:  msg.Data["decision"],
		At:        time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return c.hub.Publish(ctx, body)
}
