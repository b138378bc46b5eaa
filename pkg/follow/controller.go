// Package follow drives an optimistic follow/unfollow toggle for one subject user.
//
// The displayed state flips as soon as Toggle is called and is rolled back when the
// remote write fails. At most one write is in flight per Controller.
package follow

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	clierrors "github.com/zfogg/sidechain/live/pkg/errors"
	"github.com/zfogg/sidechain/live/pkg/logger"
	"github.com/zfogg/sidechain/live/pkg/notify"
)

// GenericFailureMessage is shown when the server gave no message of its own
const GenericFailureMessage = "Failed to update follow status. Please try again."

// Relationships is the remote follow store
type Relationships interface {
	Follow(ctx context.Context, subjectID string) error
	Unfollow(ctx context.Context, subjectID string) error
	FollowStatus(ctx context.Context, subjectID string) (bool, error)
}

// State is the controller's position in the toggle state machine
type State int

const (
	StateUnknown State = iota
	StateNotFollowing
	StateFollowing
	StatePending
)

func (s State) String() string {
	switch s {
	case StateNotFollowing:
		return "not_following"
	case StateFollowing:
		return "following"
	case StatePending:
		return "pending"
	default:
		return "unknown"
	}
}

// Snapshot is what a UI renders
type Snapshot struct {
	SubjectID   string `json:"subject_id"`
	IsFollowing bool   `json:"is_following"`
	Pending     bool   `json:"pending"`
	State       State  `json:"-"`
}

// Config configures a Controller
type Config struct {
	SubjectID   string
	SubjectName string
	ActorID     string

	// InitialFollowing is shown until Initialize succeeds
	InitialFollowing bool

	// OnChange receives the final value after every committed toggle
	OnChange func(isFollowing bool)
	// OnState receives every displayed transition, optimistic ones included
	OnState func(Snapshot)

	Logger *log.Logger
}

// Controller holds the client view of one follow relationship
type Controller struct {
	rel      Relationships
	notifier notify.Notifier
	cfg      Config
	log      *log.Logger

	mu          sync.Mutex
	following   bool
	known       bool
	pending     bool
	initialized bool
	toggles     uint64
}

// NewController creates a Controller. A nil notifier discards notifications.
func NewController(rel Relationships, notifier notify.Notifier, cfg Config) *Controller {
	if notifier == nil {
		notifier = notify.Discard
	}
	l := cfg.Logger
	if l == nil {
		l = logger.With("subject", cfg.SubjectID)
	}
	return &Controller{
		rel:       rel,
		notifier:  notifier,
		cfg:       cfg,
		log:       l,
		following: cfg.InitialFollowing,
	}
}

// Initialize runs the one existence check for this controller. On failure the
// constructor default stays in place and the error is returned for logging only.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.initialized = true
	togglesBefore := c.toggles
	c.mu.Unlock()

	if !c.CanToggle() {
		return nil
	}

	isFollowing, err := c.check(ctx)
	if err != nil {
		c.log.Debug("Follow status check failed", "error", err)
		return err
	}

	c.mu.Lock()
	if c.toggles != togglesBefore {
		// A toggle already set the state the user is looking at
		c.mu.Unlock()
		return nil
	}
	c.following = isFollowing
	c.known = true
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.emitState(snap)
	return nil
}

// Toggle flips the relationship. It returns false without doing anything when a
// write is already pending or the subject is the acting user.
func (c *Controller) Toggle(ctx context.Context) bool {
	if !c.CanToggle() {
		return false
	}

	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return false
	}
	c.pending = true
	c.toggles++
	previous := c.following
	target := !previous
	c.following = target
	optimistic := c.snapshotLocked()
	c.mu.Unlock()

	settled := false
	defer func() {
		// Only reached unsettled when OnState panicked
		if !settled {
			c.mu.Lock()
			c.pending = false
			c.mu.Unlock()
		}
	}()

	c.emitState(optimistic)

	err := c.commit(ctx, target)

	c.mu.Lock()
	c.pending = false
	settled = true
	if err != nil {
		c.following = previous
	} else {
		c.known = true
	}
	final := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("Follow update failed, rolled back", "target", target, "error", err)
		c.emitState(final)
		c.notify(notify.Notification{
			Title:       "Error",
			Description: clierrors.UserMessage(err, GenericFailureMessage),
			Variant:     notify.VariantDestructive,
		})
		return true
	}

	c.emitState(final)
	c.notify(c.successNotification(target))
	if c.cfg.OnChange != nil {
		c.cfg.OnChange(target)
	}
	return true
}

// IsFollowing returns the displayed value
func (c *Controller) IsFollowing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.following
}

// Pending reports whether a write is in flight
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// State returns the current state machine position
func (c *Controller) State() State {
	return c.Snapshot().State
}

// Snapshot returns the current displayed state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// CanToggle is false for self-relationships; the follow affordance should be hidden
func (c *Controller) CanToggle() bool {
	return c.cfg.SubjectID != "" && c.cfg.SubjectID != c.cfg.ActorID
}

func (c *Controller) check(ctx context.Context) (isFollowing bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("follow status check panicked: %v", r)
		}
	}()
	return c.rel.FollowStatus(ctx, c.cfg.SubjectID)
}

func (c *Controller) commit(ctx context.Context, follow bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("follow request panicked: %v", r)
		}
	}()
	if follow {
		return c.rel.Follow(ctx, c.cfg.SubjectID)
	}
	return c.rel.Unfollow(ctx, c.cfg.SubjectID)
}

func (c *Controller) notify(n notify.Notification) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Notifier panicked", "title", n.Title, "panic", r)
		}
	}()
	c.notifier.Notify(n)
}

func (c *Controller) successNotification(following bool) notify.Notification {
	name := c.cfg.SubjectName
	if name == "" {
		name = c.cfg.SubjectID
	}
	if following {
		return notify.Notification{
			Title:       "Following",
			Description: fmt.Sprintf("You are now following %s", name),
			Variant:     notify.VariantSuccess,
		}
	}
	return notify.Notification{
		Title:       "Unfollowed",
		Description: fmt.Sprintf("You unfollowed %s", name),
		Variant:     notify.VariantDefault,
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		SubjectID:   c.cfg.SubjectID,
		IsFollowing: c.following,
		Pending:     c.pending,
	}
	switch {
	case c.pending:
		snap.State = StatePending
	case !c.known:
		snap.State = StateUnknown
	default:
		snap.State = stateOf(c.following)
	}
	return snap
}

func stateOf(following bool) State {
	if following {
		return StateFollowing
	}
	return StateNotFollowing
}

func (c *Controller) emitState(s Snapshot) {
	if c.cfg.OnState != nil {
		c.cfg.OnState(s)
	}
}
