package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/zfogg/sidechain/live/pkg/clock"
	"github.com/zfogg/sidechain/live/pkg/config"
	"github.com/zfogg/sidechain/live/pkg/logger"
	"github.com/zfogg/sidechain/live/pkg/output"
	"github.com/zfogg/sidechain/live/pkg/typing"
)

// RoomService shows and produces typing indicators for a room
type RoomService struct {
	in io.Reader
}

// NewRoomService creates a new room service reading from stdin
func NewRoomService() *RoomService {
	return &RoomService{in: os.Stdin}
}

func (rs *RoomService) coordinatorConfig(s *session, room string) typing.Config {
	var (
		mu   sync.Mutex
		last string
	)
	return typing.Config{
		RoomID:        room,
		UserID:        s.creds.UserID,
		Username:      s.creds.DisplayName(),
		ExpiryWindow:  config.GetMillis("typing.expiry_window_ms"),
		SweepInterval: config.GetMillis("typing.sweep_interval_ms"),
		StopDelay:     config.GetMillis("typing.stop_delay_ms"),
		OnChange: func(entries []typing.Entry) {
			line := typing.Describe(entries)
			mu.Lock()
			defer mu.Unlock()
			if line == last {
				return
			}
			last = line
			if output.GetOutputFormat() == output.FormatJSON {
				printTypingJSON(room, entries)
				return
			}
			if line == "" {
				output.PrintInfo("(nobody is typing)")
				return
			}
			output.PrintInfo("%s", line)
		},
	}
}

// printTypingJSON writes one compact line per change so watchers can stream it
func printTypingJSON(room string, entries []typing.Entry) {
	line, err := output.FormatAsJSON(map[string]interface{}{
		"room":   room,
		"typing": entries,
	})
	if err != nil {
		logger.Debug("Failed to encode typing change", "error", err)
		return
	}
	fmt.Fprintln(output.Out, line)
}

// Watch prints typing indicator changes for room until ctx is done
func (rs *RoomService) Watch(ctx context.Context, room string) error {
	s, err := requireSession()
	if err != nil {
		return err
	}

	ws, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	coord := typing.New(ws, clock.New(), rs.coordinatorConfig(s, room))
	if err := coord.Start(); err != nil {
		return err
	}
	defer coord.Close()

	output.PrintInfo("Watching %s (Ctrl+C to stop)", room)
	<-ctx.Done()
	return nil
}

// Type announces typing for every line read from input. An empty line or EOF
// sends the stop signal and returns.
func (rs *RoomService) Type(ctx context.Context, room string) error {
	s, err := requireSession()
	if err != nil {
		return err
	}

	ws, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	coord := typing.New(ws, clock.New(), rs.coordinatorConfig(s, room))
	if err := coord.Start(); err != nil {
		return err
	}
	defer coord.Close()

	output.PrintInfo("Type in %s; each line keeps you typing, an empty line stops", room)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(rs.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "" {
				coord.StopTyping(ctx)
				return nil
			}
			coord.StartTyping(ctx)
		}
	}
}
