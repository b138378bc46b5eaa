// Package typing tracks which peers are typing in a room from typing broadcasts.
//
// Broadcasts are unreliable: a lost stop signal would leave a peer stuck as typing, so
// every entry also expires ExpiryWindow after its last signal. The sweep runs every
// SweepInterval, which bounds how long an expired entry can linger.
package typing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zfogg/sidechain/live/pkg/clock"
	"github.com/zfogg/sidechain/live/pkg/logger"
	"github.com/zfogg/sidechain/live/pkg/realtime"
)

const (
	DefaultExpiryWindow  = 5 * time.Second
	DefaultSweepInterval = 1 * time.Second
	DefaultStopDelay     = 3 * time.Second

	// EventTyping is the broadcast event carrying a Payload
	EventTyping = "typing"

	sendTimeout = 5 * time.Second
)

// Topic returns the channel topic for a room
func Topic(roomID string) string {
	return "typing:" + roomID
}

// Payload is the typing broadcast body
type Payload struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	IsTyping  bool   `json:"is_typing"`
	Timestamp int64  `json:"timestamp"` // sender's clock, Unix ms
}

// Entry is a remote user currently typing
type Entry struct {
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	LastSignalAt time.Time `json:"last_signal_at"`
	SentAt       time.Time `json:"sent_at"`
}

// Config configures a Coordinator for one room
type Config struct {
	RoomID   string
	UserID   string
	Username string

	ExpiryWindow  time.Duration
	SweepInterval time.Duration
	StopDelay     time.Duration

	// OnChange receives the current list whenever it changes
	OnChange func([]Entry)

	Logger *log.Logger
}

// Coordinator owns the typing map of a single room
type Coordinator struct {
	channel realtime.Channel
	clock   clock.Clock
	cfg     Config
	log     *log.Logger

	mu        sync.Mutex
	entries   map[string]Entry
	sub       *realtime.Subscription
	sweep     clock.Timer
	stopTimer clock.Timer
	stopGen   uint64
	typing    bool
	started   bool
	closed    bool
}

// New creates a Coordinator. Call Start to begin receiving broadcasts.
func New(channel realtime.Channel, clk clock.Clock, cfg Config) *Coordinator {
	if cfg.ExpiryWindow <= 0 {
		cfg.ExpiryWindow = DefaultExpiryWindow
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.StopDelay <= 0 {
		cfg.StopDelay = DefaultStopDelay
	}
	if clk == nil {
		clk = clock.New()
	}
	l := cfg.Logger
	if l == nil {
		l = logger.With("room", cfg.RoomID)
	}

	return &Coordinator{
		channel: channel,
		clock:   clk,
		cfg:     cfg,
		log:     l,
		entries: make(map[string]Entry),
	}
}

// Start subscribes to the room topic and arms the expiry sweep
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.closed || c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	sub, err := c.channel.Subscribe(Topic(c.cfg.RoomID), c.handle)
	if err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		sub.Unsubscribe()
		return nil
	}
	c.sub = sub
	c.sweep = clock.Every(c.clock, c.cfg.SweepInterval, c.expire)
	return nil
}

// StartTyping announces that the local user is typing and re-arms the debounced stop
func (c *Coordinator) StartTyping(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.typing = true
	c.stopGen++
	gen := c.stopGen
	if c.stopTimer != nil {
		c.stopTimer.Stop()
	}
	c.stopTimer = c.clock.AfterFunc(c.cfg.StopDelay, func() { c.debouncedStop(gen) })
	c.mu.Unlock()

	c.emit(ctx, true)
}

// StopTyping cancels the debounced stop and announces the stop immediately
func (c *Coordinator) StopTyping(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.cancelStopLocked()
	c.mu.Unlock()

	c.emit(ctx, false)
}

// Typing returns the peers currently typing, sorted by user id
func (c *Coordinator) Typing() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close announces a pending stop, cancels every timer and drops the subscription
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	wasTyping := c.typing
	c.cancelStopLocked()
	c.closed = true
	if c.sweep != nil {
		c.sweep.Stop()
		c.sweep = nil
	}
	sub := c.sub
	c.sub = nil
	hadEntries := len(c.entries) > 0
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	if wasTyping {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		c.emit(ctx, false)
		cancel()
	}
	sub.Unsubscribe()
	if hadEntries {
		c.notify(nil)
	}
}

func (c *Coordinator) cancelStopLocked() {
	c.typing = false
	c.stopGen++
	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}
}

func (c *Coordinator) debouncedStop(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.stopGen {
		c.mu.Unlock()
		return
	}
	c.typing = false
	c.stopTimer = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	c.emit(ctx, false)
}

// emit sends one typing broadcast. Failures are logged and dropped.
func (c *Coordinator) emit(ctx context.Context, isTyping bool) {
	payload := Payload{
		UserID:    c.cfg.UserID,
		Username:  c.cfg.Username,
		IsTyping:  isTyping,
		Timestamp: c.clock.Now().UnixMilli(),
	}
	if err := c.channel.Send(ctx, Topic(c.cfg.RoomID), EventTyping, payload); err != nil {
		c.log.Debug("Typing broadcast failed", "is_typing", isTyping, "error", err)
	}
}

func (c *Coordinator) handle(msg realtime.Message) {
	if msg.Event != EventTyping {
		return
	}

	var p Payload
	if err := msg.Decode(&p); err != nil || p.UserID == "" {
		c.log.Debug("Dropping malformed typing payload", "error", err)
		return
	}
	if p.UserID == c.cfg.UserID {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	changed := false
	if p.IsTyping {
		name := p.Username
		if name == "" {
			name = p.UserID
		}
		_, existed := c.entries[p.UserID]
		c.entries[p.UserID] = Entry{
			UserID:       p.UserID,
			DisplayName:  name,
			LastSignalAt: c.clock.Now(),
			SentAt:       time.UnixMilli(p.Timestamp),
		}
		changed = !existed
	} else if _, ok := c.entries[p.UserID]; ok {
		delete(c.entries, p.UserID)
		changed = true
	}

	var list []Entry
	if changed {
		list = c.snapshotLocked()
	}
	c.mu.Unlock()

	if changed {
		c.notify(list)
	}
}

func (c *Coordinator) expire() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	now := c.clock.Now()
	removed := 0
	for id, e := range c.entries {
		if now.Sub(e.LastSignalAt) > c.cfg.ExpiryWindow {
			delete(c.entries, id)
			removed++
		}
	}

	var list []Entry
	if removed > 0 {
		list = c.snapshotLocked()
	}
	c.mu.Unlock()

	if removed > 0 {
		c.log.Debug("Expired typing entries", "count", removed)
		c.notify(list)
	}
}

func (c *Coordinator) snapshotLocked() []Entry {
	list := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list
}

func (c *Coordinator) notify(list []Entry) {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange(list)
	}
}
