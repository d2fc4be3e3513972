package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}

func assertNoEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		if ok {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
	}
}

func TestBroadcaster_NotifyReachesEverySubscriberOnce(t *testing.T) {
	b := NewBroadcaster()
	s1 := b.Register()
	s2 := b.Register()

	before := time.Now().UnixMilli()
	ts := b.notify()

	for _, s := range []*Subscription{s1, s2} {
		ev := recv(t, s)
		assert.Equal(t, EventQueueUpdate, ev.Type)
		assert.Equal(t, ts, ev.Timestamp)
		assert.GreaterOrEqual(t, ev.Timestamp, before)
		assertNoEvent(t, s)
	}
}

func TestBroadcaster_LateSubscriberMissesEarlierEvent(t *testing.T) {
	b := NewBroadcaster()
	b.Notify()

	late := b.Register()
	assertNoEvent(t, late)
}

func TestBroadcaster_TimestampsAreMonotonic(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	b := NewBroadcaster(withClock(func() time.Time { return fixed }))

	first := b.notify()
	second := b.notify()
	third := b.notify()

	assert.Equal(t, fixed.UnixMilli(), first)
	assert.Equal(t, first+1, second)
	assert.Equal(t, second+1, third)
}

func TestBroadcaster_DropsFullSubscriber(t *testing.T) {
	var gauge []int
	b := NewBroadcaster(WithBuffer(1), WithSubscriberGauge(func(n int) { gauge = append(gauge, n) }))
	slow := b.Register()
	fast := b.Register()

	b.Notify()
	recv(t, fast)
	b.Notify()

	assert.Equal(t, 1, b.Count())
	recv(t, fast)

	// the slow one got the first event, then its channel was closed
	recv(t, slow)
	_, ok := <-slow.C
	assert.False(t, ok)
	assert.Equal(t, 1, gauge[len(gauge)-1])
}

func TestBroadcaster_DeregisterTwice(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Register()

	b.Deregister(sub)
	b.Deregister(sub)

	assert.Equal(t, 0, b.Count())
	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Register()

	b.Close()

	_, ok := <-sub.C
	assert.False(t, ok)

	after := b.Register()
	_, ok = <-after.C
	assert.False(t, ok)
	assert.Equal(t, 0, b.Count())
}

func TestBroadcaster_ConcurrentUse(t *testing.T) {
	b := NewBroadcaster(WithBuffer(64))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := b.Register()
			b.Notify()
			b.Deregister(sub)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, b.Count())
}
