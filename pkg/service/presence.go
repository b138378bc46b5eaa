package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/zfogg/sidechain/live/pkg/clock"
	"github.com/zfogg/sidechain/live/pkg/config"
	"github.com/zfogg/sidechain/live/pkg/logger"
	"github.com/zfogg/sidechain/live/pkg/output"
	"github.com/zfogg/sidechain/live/pkg/presence"
)

// PresenceService shows the roster and publishes the user's own status
type PresenceService struct{}

// NewPresenceService creates a new presence service
func NewPresenceService() *PresenceService {
	return &PresenceService{}
}

// Roster prints the roster for room ("" is global). With watch it keeps polling
// and reprints every snapshot until ctx is done.
func (ps *PresenceService) Roster(ctx context.Context, room string, watch bool) error {
	s, err := requireSession()
	if err != nil {
		return err
	}

	cfg := presence.TrackerConfig{
		Scope:    room,
		Interval: config.GetMillis("presence.poll_interval_ms"),
	}
	if watch {
		cfg.OnChange = func(members []presence.Member) {
			ps.printRoster(room, members)
		}
	}

	tracker := presence.NewTracker(s.api, clock.New(), cfg)
	defer tracker.Close()

	if !watch {
		if err := tracker.Refresh(ctx); err != nil {
			return err
		}
		ps.printRoster(room, tracker.Roster())
		return nil
	}

	output.PrintInfo("Watching presence (Ctrl+C to stop)")
	tracker.Start(ctx)
	<-ctx.Done()
	return nil
}

// Set announces status over the realtime channel and holds the connection until
// ctx is done; the relay marks the user offline when it closes
func (ps *PresenceService) Set(ctx context.Context, raw string, room string) error {
	status := presence.ParseStatus(raw)
	if status == presence.Offline {
		return fmt.Errorf("unknown status %q (use online, away or busy)", raw)
	}

	s, err := requireSession()
	if err != nil {
		return err
	}

	ws, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = presence.Announce(sendCtx, ws, status, room)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to announce presence: %w", err)
	}

	logger.Debug("Announced presence", "status", status, "room", room)
	output.PrintSuccess("You are %s", status.Label())
	output.PrintInfo("Holding presence (Ctrl+C to go offline)")
	<-ctx.Done()
	return nil
}

func (ps *PresenceService) printRoster(room string, members []presence.Member) {
	if output.GetOutputFormat() != output.FormatJSON {
		scope := "everyone"
		if room != "" {
			scope = "room " + room
		}
		output.PrintInfo("%d present (%s)", len(members), scope)
	}

	rows := make([][]string, 0, len(members))
	for _, m := range members {
		rows = append(rows, []string{
			m.Username,
			statusColor(m.Status).Sprint(m.Label),
			m.RoomScope,
			humanizeSince(m.LastSeenAt),
		})
	}
	_ = output.PrintList(members, []string{"USER", "STATUS", "ROOM", "LAST SEEN"}, rows)
}

func statusColor(s presence.Status) *color.Color {
	switch s {
	case presence.Online:
		return color.New(color.FgGreen)
	case presence.Away:
		return color.New(color.FgYellow)
	case presence.Busy:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgHiBlack)
	}
}

func humanizeSince(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Local().Format("Jan 2 15:04")
	}
}
