package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"barbershop-queue/internal/lib/logger/sl"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type relayMessage struct {
	Origin    string `json:"origin"`
	Timestamp int64  `json:"timestamp"`
}

// RedisRelay extends a process-local Broadcaster across instances: local notifications
// are published on a Redis channel, and notifications from other instances are replayed
// into the local broadcaster.
type RedisRelay struct {
	log      *slog.Logger
	local    *Broadcaster
	rdb      redis.UniversalClient
	channel  string
	instance string
	backOff  func() backoff.BackOff
}

func NewRedisRelay(log *slog.Logger, local *Broadcaster, rdb redis.UniversalClient, channel string) *RedisRelay {
	return &RedisRelay{
		log:      log,
		local:    local,
		rdb:      rdb,
		channel:  channel,
		instance: uuid.NewString(),
		backOff:  newResubscribeBackOff,
	}
}

// newResubscribeBackOff retries forever, from 500ms up to 30s between attempts.
func newResubscribeBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Notify fans out locally, then publishes for the other instances. Publish failures are
// logged only; remote viewers catch up on their next poll.
func (r *RedisRelay) Notify() {
	const op = "realtime.RedisRelay.Notify"

	ts := r.local.notify()

	payload, err := json.Marshal(relayMessage{Origin: r.instance, Timestamp: ts})
	if err != nil {
		r.log.Error("failed to encode relay message", slog.String("op", op), sl.Err(err))
		return
	}
	if err := r.rdb.Publish(context.Background(), r.channel, string(payload)).Err(); err != nil {
		r.log.Warn("failed to publish queue update", slog.String("op", op), sl.Err(err))
	}
}

// Run keeps the relay subscribed until ctx is done. A failed or dropped subscription
// is retried with backoff; the delay starts over after every successful subscribe.
func (r *RedisRelay) Run(ctx context.Context) error {
	const op = "realtime.RedisRelay.Run"
	log := r.log.With(slog.String("op", op), slog.String("channel", r.channel))

	b := backoff.WithContext(r.backOff(), ctx)
	err := backoff.RetryNotify(
		func() error { return r.listen(ctx, log, b.Reset) },
		b,
		func(err error, next time.Duration) {
			log.Warn("relay subscription lost, retrying", slog.Duration("in", next), sl.Err(err))
		},
	)
	if ctx.Err() != nil {
		log.Info("relay stopped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// listen holds one subscription. It returns nil only when ctx is done.
func (r *RedisRelay) listen(ctx context.Context, log *slog.Logger, subscribed func()) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe: %w", err)
	}
	subscribed()
	log.Info("relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription closed")
			}
			r.handle(msg.Payload)
		}
	}
}

// handle replays a remote notification locally; our own messages are ignored because
// Notify already delivered them.
func (r *RedisRelay) handle(payload string) bool {
	var m relayMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		r.log.Warn("dropping malformed relay message", sl.Err(err))
		return false
	}
	if m.Origin == r.instance {
		return false
	}
	r.local.NotifyAt(m.Timestamp)
	return true
}
