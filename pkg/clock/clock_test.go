package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func TestFakeAfterFuncFiresAtDueTime(t *testing.T) {
	fake := NewFake(epoch)

	var firedAt time.Time
	fake.AfterFunc(3*time.Second, func() { firedAt = fake.Now() })

	fake.Advance(2999 * time.Millisecond)
	assert.True(t, firedAt.IsZero(), "timer should not fire early")

	fake.Advance(time.Millisecond)
	assert.Equal(t, epoch.Add(3*time.Second), firedAt)
	assert.Equal(t, 0, fake.Pending())
}

func TestFakeFiresInDueOrder(t *testing.T) {
	fake := NewFake(epoch)

	var order []string
	fake.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	fake.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	fake.AfterFunc(2*time.Second, func() { order = append(order, "c") })

	fake.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, epoch.Add(5*time.Second), fake.Now())
}

func TestFakeStop(t *testing.T) {
	fake := NewFake(epoch)

	fired := false
	timer := fake.AfterFunc(time.Second, func() { fired = true })
	require.Equal(t, 1, fake.Pending())

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports already stopped")
	fake.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestFakeStopAfterFire(t *testing.T) {
	fake := NewFake(epoch)
	timer := fake.AfterFunc(time.Second, func() {})
	fake.Advance(time.Second)
	assert.False(t, timer.Stop())
}

func TestFakeRunsTimersScheduledDuringAdvance(t *testing.T) {
	fake := NewFake(epoch)

	count := 0
	var reschedule func()
	reschedule = func() {
		count++
		fake.AfterFunc(time.Second, reschedule)
	}
	fake.AfterFunc(time.Second, reschedule)

	fake.Advance(3500 * time.Millisecond)
	assert.Equal(t, 3, count)
	assert.Equal(t, 1, fake.Pending())
}

func TestEvery(t *testing.T) {
	fake := NewFake(epoch)

	var ticks []time.Time
	ticker := Every(fake, time.Second, func() { ticks = append(ticks, fake.Now()) })

	fake.Advance(3 * time.Second)
	require.Len(t, ticks, 3)
	assert.Equal(t, epoch.Add(1*time.Second), ticks[0])
	assert.Equal(t, epoch.Add(3*time.Second), ticks[2])

	assert.True(t, ticker.Stop())
	fake.Advance(5 * time.Second)
	assert.Len(t, ticks, 3, "no ticks after Stop")
	assert.Equal(t, 0, fake.Pending())
}

func TestEveryStopFromCallback(t *testing.T) {
	fake := NewFake(epoch)

	count := 0
	var ticker Timer
	ticker = Every(fake, time.Second, func() {
		count++
		if count == 2 {
			ticker.Stop()
		}
	})

	fake.Advance(10 * time.Second)
	assert.Equal(t, 2, count)
}

func TestRealClock(t *testing.T) {
	c := New()
	done := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
	assert.WithinDuration(t, time.Now(), c.Now(), time.Second)
}
