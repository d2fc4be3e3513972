package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisRelay_NotifyPublishes(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	local := NewBroadcaster(withClock(func() time.Time { return fixed }))
	sub := local.Register()

	rdb, mock := redismock.NewClientMock()
	relay := NewRedisRelay(discardLogger(), local, rdb, "queue:updates")

	payload, err := json.Marshal(relayMessage{Origin: relay.instance, Timestamp: fixed.UnixMilli()})
	require.NoError(t, err)
	mock.ExpectPublish("queue:updates", string(payload)).SetVal(1)

	relay.Notify()

	ev := recv(t, sub)
	assert.Equal(t, fixed.UnixMilli(), ev.Timestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisRelay_NotifyDeliversLocallyWhenPublishFails(t *testing.T) {
	local := NewBroadcaster()
	sub := local.Register()

	rdb, mock := redismock.NewClientMock()
	relay := NewRedisRelay(discardLogger(), local, rdb, "queue:updates")
	mock.Regexp().ExpectPublish("queue:updates", `.*`).SetErr(assert.AnError)

	relay.Notify()

	assert.Equal(t, EventQueueUpdate, recv(t, sub).Type)
}

func TestRedisRelay_HandleRemoteAndOwnMessages(t *testing.T) {
	local := NewBroadcaster()
	sub := local.Register()

	rdb, _ := redismock.NewClientMock()
	relay := NewRedisRelay(discardLogger(), local, rdb, "queue:updates")

	own, _ := json.Marshal(relayMessage{Origin: relay.instance, Timestamp: 1})
	assert.False(t, relay.handle(string(own)))
	assertNoEvent(t, sub)

	remote, _ := json.Marshal(relayMessage{Origin: "other", Timestamp: 42})
	assert.True(t, relay.handle(string(remote)))
	ev := recv(t, sub)
	assert.Equal(t, int64(42), ev.Timestamp)

	assert.False(t, relay.handle("not json"))
}

type countingBackOff struct {
	calls atomic.Int32
}

func (b *countingBackOff) NextBackOff() time.Duration {
	b.calls.Add(1)
	return 5 * time.Millisecond
}

func (b *countingBackOff) Reset() {}

func TestRedisRelay_RunRetriesFailedSubscribe(t *testing.T) {
	// a port nothing listens on
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	defer rdb.Close()

	counter := &countingBackOff{}
	relay := NewRedisRelay(discardLogger(), NewBroadcaster(), rdb, "queue:updates")
	relay.backOff = func() backoff.BackOff { return counter }

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err, "Run ends cleanly when ctx is done")
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after ctx was done")
	}
	assert.GreaterOrEqual(t, counter.calls.Load(), int32(2), "subscribe retried after the first failure")
}
