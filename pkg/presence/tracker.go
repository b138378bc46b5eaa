// Package presence keeps a periodically refreshed roster of users present globally
// or in one room.
package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zfogg/sidechain/live/pkg/api"
	"github.com/zfogg/sidechain/live/pkg/clock"
	"github.com/zfogg/sidechain/live/pkg/logger"
)

const (
	DefaultInterval     = 30 * time.Second
	DefaultFetchTimeout = 10 * time.Second
)

// RosterFetcher loads the full roster for a scope ("" is global)
type RosterFetcher interface {
	Roster(ctx context.Context, scope string) ([]api.PresenceRecord, error)
}

// Member is one roster row as displayed
type Member struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Status     Status    `json:"status"`
	Label      string    `json:"label"`
	RoomScope  string    `json:"room,omitempty"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// TrackerConfig configures a Tracker
type TrackerConfig struct {
	Scope        string
	Interval     time.Duration
	FetchTimeout time.Duration

	// OnChange receives every newly applied roster
	OnChange func([]Member)

	Logger *log.Logger
}

// Tracker polls the roster and holds the last successful snapshot.
// There is no client-side expiry: staleness is bounded by Interval.
type Tracker struct {
	fetcher RosterFetcher
	clock   clock.Clock
	cfg     TrackerConfig
	log     *log.Logger

	mu      sync.Mutex
	roster  []Member
	seq     uint64
	applied uint64
	ticker  clock.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
}

// NewTracker creates a Tracker. Call Start to begin polling.
func NewTracker(fetcher RosterFetcher, clk clock.Clock, cfg TrackerConfig) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if clk == nil {
		clk = clock.New()
	}
	l := cfg.Logger
	if l == nil {
		l = logger.With("scope", cfg.Scope)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		fetcher: fetcher,
		clock:   clk,
		cfg:     cfg,
		log:     l,
		roster:  []Member{},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start refreshes immediately and then every Interval until Close or ctx is done
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.closed || t.ticker != nil {
		t.mu.Unlock()
		return
	}
	t.ticker = clock.Every(t.clock, t.cfg.Interval, t.tick)
	t.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			t.Close()
		case <-t.ctx.Done():
		}
	}()

	t.tick()
}

// Refresh fetches and applies a new snapshot. On failure the current roster is kept
// and the error returned.
func (t *Tracker) Refresh(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return context.Canceled
	}
	t.seq++
	seq := t.seq
	t.mu.Unlock()

	records, err := t.fetch(ctx)
	if err != nil {
		return err
	}

	members := make([]Member, 0, len(records))
	for _, r := range records {
		status := ParseStatus(r.Status)
		members = append(members, Member{
			UserID:     r.UserID,
			Username:   r.Username,
			Status:     status,
			Label:      status.Label(),
			RoomScope:  r.Room,
			LastSeenAt: r.LastSeenAt,
		})
	}

	t.mu.Lock()
	if t.closed || seq < t.applied {
		// A newer snapshot already landed
		t.mu.Unlock()
		return nil
	}
	t.applied = seq
	t.roster = members
	snapshot := copyMembers(members)
	t.mu.Unlock()

	if t.cfg.OnChange != nil {
		t.cfg.OnChange(snapshot)
	}
	return nil
}

// Roster returns a copy of the last applied snapshot
func (t *Tracker) Roster() []Member {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyMembers(t.roster)
}

// Close stops polling and cancels any in-flight fetch
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	ticker := t.ticker
	t.ticker = nil
	t.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
	}
	t.cancel()
}

func (t *Tracker) tick() {
	ctx, cancel := context.WithTimeout(t.ctx, t.cfg.FetchTimeout)
	defer cancel()

	if err := t.Refresh(ctx); err != nil && t.ctx.Err() == nil {
		t.log.Warn("Roster refresh failed, keeping previous roster", "error", err)
	}
}

func (t *Tracker) fetch(ctx context.Context) (records []api.PresenceRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("roster fetch panicked: %v", r)
		}
	}()
	return t.fetcher.Roster(ctx, t.cfg.Scope)
}

func copyMembers(in []Member) []Member {
	out := make([]Member, len(in))
	copy(out, in)
	return out
}
