package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/live/pkg/api"
	"github.com/zfogg/sidechain/live/pkg/clock"
	"github.com/zfogg/sidechain/live/pkg/realtime"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// scriptedFetcher returns queued responses in order, repeating the last one
type scriptedFetcher struct {
	mu     sync.Mutex
	calls  int
	scopes []string
	steps  []fetchStep
}

type fetchStep struct {
	records []api.PresenceRecord
	err     error
}

func (f *scriptedFetcher) Roster(_ context.Context, scope string) ([]api.PresenceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scopes = append(f.scopes, scope)
	i := f.calls
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	f.calls++
	return f.steps[i].records, f.steps[i].err
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var (
	alice = api.PresenceRecord{UserID: "u1", Username: "alice", Status: "online"}
	bob   = api.PresenceRecord{UserID: "u2", Username: "bob", Status: "idle", Room: "studio"}
	carol = api.PresenceRecord{UserID: "u3", Username: "carol", Status: "in_studio"}
)

func TestRefreshMapsRecords(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []fetchStep{{records: []api.PresenceRecord{alice, bob, carol}}}}
	tracker := NewTracker(fetcher, clock.NewFake(epoch), TrackerConfig{Scope: "studio"})
	defer tracker.Close()

	require.NoError(t, tracker.Refresh(context.Background()))

	roster := tracker.Roster()
	require.Len(t, roster, 3)
	assert.Equal(t, Online, roster[0].Status)
	assert.Equal(t, "Online", roster[0].Label)
	assert.Equal(t, Away, roster[1].Status)
	assert.Equal(t, "studio", roster[1].RoomScope)
	assert.Equal(t, Busy, roster[2].Status)
	assert.Equal(t, []string{"studio"}, fetcher.scopes)
}

func TestRosterResilience(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []fetchStep{
		{records: []api.PresenceRecord{alice, bob}},
		{err: errors.New("503 service unavailable")},
	}}
	tracker := NewTracker(fetcher, clock.NewFake(epoch), TrackerConfig{})
	defer tracker.Close()

	require.NoError(t, tracker.Refresh(context.Background()))
	before := tracker.Roster()

	assert.Error(t, tracker.Refresh(context.Background()))
	assert.Equal(t, before, tracker.Roster())
}

func TestEmptyRosterReplacesPrevious(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []fetchStep{
		{records: []api.PresenceRecord{alice}},
		{records: []api.PresenceRecord{}},
	}}
	tracker := NewTracker(fetcher, clock.NewFake(epoch), TrackerConfig{})
	defer tracker.Close()

	require.NoError(t, tracker.Refresh(context.Background()))
	require.NoError(t, tracker.Refresh(context.Background()))
	assert.Empty(t, tracker.Roster())
	assert.NotNil(t, tracker.Roster())
}

func TestRosterReturnsCopy(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []fetchStep{{records: []api.PresenceRecord{alice}}}}
	tracker := NewTracker(fetcher, clock.NewFake(epoch), TrackerConfig{})
	defer tracker.Close()

	require.NoError(t, tracker.Refresh(context.Background()))
	roster := tracker.Roster()
	roster[0].Username = "mallory"
	assert.Equal(t, "alice", tracker.Roster()[0].Username)
}

// gatedFetcher blocks each call until its gate is released
type gatedFetcher struct {
	gates   chan chan fetchStep
	started chan struct{}
}

func (f *gatedFetcher) Roster(ctx context.Context, _ string) ([]api.PresenceRecord, error) {
	gate := make(chan fetchStep)
	f.gates <- gate
	select {
	case step := <-gate:
		return step.records, step.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestOutOfOrderResponsesKeepNewest(t *testing.T) {
	fetcher := &gatedFetcher{gates: make(chan chan fetchStep, 2)}
	tracker := NewTracker(fetcher, clock.NewFake(epoch), TrackerConfig{})
	defer tracker.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = tracker.Refresh(context.Background())
	}()
	older := <-fetcher.gates

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = tracker.Refresh(context.Background())
	}()
	newer := <-fetcher.gates

	newer <- fetchStep{records: []api.PresenceRecord{carol}}
	older <- fetchStep{records: []api.PresenceRecord{alice, bob}}
	wg.Wait()

	roster := tracker.Roster()
	require.Len(t, roster, 1)
	assert.Equal(t, "carol", roster[0].Username)
}

func TestStartPollsOnInterval(t *testing.T) {
	fake := clock.NewFake(epoch)
	fetcher := &scriptedFetcher{steps: []fetchStep{{records: []api.PresenceRecord{alice}}}}

	var mu sync.Mutex
	changes := 0
	tracker := NewTracker(fetcher, fake, TrackerConfig{
		Interval: 30 * time.Second,
		OnChange: func([]Member) {
			mu.Lock()
			changes++
			mu.Unlock()
		},
	})

	tracker.Start(context.Background())
	assert.Equal(t, 1, fetcher.callCount(), "start refreshes immediately")

	fake.Advance(29 * time.Second)
	assert.Equal(t, 1, fetcher.callCount())
	fake.Advance(time.Second)
	assert.Equal(t, 2, fetcher.callCount())
	fake.Advance(60 * time.Second)
	assert.Equal(t, 4, fetcher.callCount())

	tracker.Close()
	fake.Advance(5 * time.Minute)
	assert.Equal(t, 4, fetcher.callCount(), "no polling after close")
	assert.Equal(t, 0, fake.Pending())

	mu.Lock()
	assert.Equal(t, 4, changes)
	mu.Unlock()
}

func TestPollingSurvivesFailures(t *testing.T) {
	fake := clock.NewFake(epoch)
	fetcher := &scriptedFetcher{steps: []fetchStep{
		{records: []api.PresenceRecord{alice}},
		{err: errors.New("timeout")},
		{records: []api.PresenceRecord{alice, bob}},
	}}
	tracker := NewTracker(fetcher, fake, TrackerConfig{Interval: time.Second})
	defer tracker.Close()

	tracker.Start(context.Background())
	fake.Advance(time.Second)
	assert.Len(t, tracker.Roster(), 1)
	fake.Advance(time.Second)
	assert.Len(t, tracker.Roster(), 2)
}

// flakyFetcher panics on the listed calls and otherwise returns records
type flakyFetcher struct {
	mu      sync.Mutex
	calls   int
	panicOn map[int]bool
	records []api.PresenceRecord
}

func (f *flakyFetcher) Roster(context.Context, string) ([]api.PresenceRecord, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if f.panicOn[n] {
		panic("decoder blew up")
	}
	return f.records, nil
}

func TestFetcherPanicIsARefreshFailure(t *testing.T) {
	fake := clock.NewFake(epoch)
	fetcher := &flakyFetcher{panicOn: map[int]bool{2: true}, records: []api.PresenceRecord{alice}}
	tracker := NewTracker(fetcher, fake, TrackerConfig{Interval: time.Second})
	defer tracker.Close()

	require.NotPanics(t, func() { tracker.Start(context.Background()) })
	require.Len(t, tracker.Roster(), 1)

	require.NotPanics(t, func() { fake.Advance(time.Second) })
	assert.Len(t, tracker.Roster(), 1, "previous roster kept")

	fake.Advance(time.Second)
	assert.Equal(t, 3, fetcher.calls, "polling continues after a panic")

	fetcher.panicOn[4] = true
	err := tracker.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestContextCancelClosesTracker(t *testing.T) {
	fake := clock.NewFake(epoch)
	fetcher := &scriptedFetcher{steps: []fetchStep{{records: []api.PresenceRecord{alice}}}}
	tracker := NewTracker(fetcher, fake, TrackerConfig{Interval: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	tracker.Start(ctx)
	cancel()

	require.Eventually(t, func() bool { return fake.Pending() == 0 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, tracker.Refresh(context.Background()), context.Canceled)
}

func TestAnnounce(t *testing.T) {
	broker := realtime.NewMemory()
	me := broker.Connect("u1")
	watcher := broker.Connect("u2")

	var got []api.PresenceUpdate
	_, err := watcher.Subscribe(Topic, func(m realtime.Message) {
		var u api.PresenceUpdate
		require.NoError(t, m.Decode(&u))
		got = append(got, u)
	})
	require.NoError(t, err)

	require.NoError(t, Announce(context.Background(), me, Busy, "studio"))
	require.Len(t, got, 1)
	assert.Equal(t, api.PresenceUpdate{Status: "busy", Room: "studio"}, got[0])
}
