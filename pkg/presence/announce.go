package presence

import (
	"context"

	"github.com/zfogg/sidechain/live/pkg/api"
	"github.com/zfogg/sidechain/live/pkg/realtime"
)

const (
	// Topic and Event of presence announcements
	Topic = "presence"
	Event = "presence"
)

// Announce publishes the local user's status, optionally scoped to room. The relay
// stamps the sender and updates the roster; other subscribers see the broadcast.
func Announce(ctx context.Context, ch realtime.Channel, status Status, room string) error {
	return ch.Send(ctx, Topic, Event, api.PresenceUpdate{
		Status: status.String(),
		Room:   room,
	})
}
