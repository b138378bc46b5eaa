package relay

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zfogg/sidechain/live/pkg/api"
)

// DefaultPresenceTTL is how long a roster entry survives without a heartbeat
const DefaultPresenceTTL = 120 * time.Second

// RosterStore holds who is present and where
type RosterStore interface {
	// Upsert records rec, stamping LastSeenAt when it is zero
	Upsert(ctx context.Context, rec api.PresenceRecord) error
	// Touch refreshes an existing entry's LastSeenAt
	Touch(ctx context.Context, userID string) error
	Remove(ctx context.Context, userID string) error
	// List returns live entries, all of them for an empty room
	List(ctx context.Context, room string) ([]api.PresenceRecord, error)
	Close() error
}

// FollowStore holds follow relationships. Follow and Unfollow are idempotent.
type FollowStore interface {
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	Close() error
}

// MemoryRoster is an in-process RosterStore
type MemoryRoster struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]api.PresenceRecord
}

func NewMemoryRoster(ttl time.Duration) *MemoryRoster {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &MemoryRoster{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]api.PresenceRecord),
	}
}

func (m *MemoryRoster) Upsert(_ context.Context, rec api.PresenceRecord) error {
	if rec.LastSeenAt.IsZero() {
		rec.LastSeenAt = m.now().UTC()
	}
	m.mu.Lock()
	m.entries[rec.UserID] = rec
	m.mu.Unlock()
	return nil
}

func (m *MemoryRoster) Touch(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.entries[userID]; ok {
		rec.LastSeenAt = m.now().UTC()
		m.entries[userID] = rec
	}
	return nil
}

func (m *MemoryRoster) Remove(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.entries, userID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryRoster) List(_ context.Context, room string) ([]api.PresenceRecord, error) {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]api.PresenceRecord, 0, len(m.entries))
	for id, rec := range m.entries {
		if rec.LastSeenAt.Before(cutoff) {
			delete(m.entries, id)
			continue
		}
		if room != "" && rec.Room != room {
			continue
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (m *MemoryRoster) Close() error { return nil }

// MemoryFollows is an in-process FollowStore
type MemoryFollows struct {
	mu      sync.RWMutex
	follows map[string]map[string]struct{} // follower -> followees
}

func NewMemoryFollows() *MemoryFollows {
	return &MemoryFollows{follows: make(map[string]map[string]struct{})}
}

func (m *MemoryFollows) Follow(_ context.Context, followerID, followeeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.follows[followerID] == nil {
		m.follows[followerID] = make(map[string]struct{})
	}
	m.follows[followerID][followeeID] = struct{}{}
	return nil
}

func (m *MemoryFollows) Unfollow(_ context.Context, followerID, followeeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.follows[followerID]; ok {
		delete(set, followeeID)
		if len(set) == 0 {
			delete(m.follows, followerID)
		}
	}
	return nil
}

func (m *MemoryFollows) IsFollowing(_ context.Context, followerID, followeeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.follows[followerID][followeeID]
	return ok, nil
}

func (m *MemoryFollows) Close() error { return nil }

// sortRecords orders the roster by username, then user id
func sortRecords(recs []api.PresenceRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Username != recs[j].Username {
			return recs[i].Username < recs[j].Username
		}
		return recs[i].UserID < recs[j].UserID
	})
}
