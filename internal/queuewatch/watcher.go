package queuewatch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"barbershop-queue/internal/lib/logger/sl"
	"barbershop-queue/internal/models"
	"barbershop-queue/internal/realtime"

	"github.com/cenkalti/backoff/v4"
)

var ErrStreamUnavailable = errors.New("live updates unavailable")

// Watcher keeps a customer's queue status fresh. It follows the server's event stream
// and refetches status on every queue_update; when the stream keeps failing it falls back
// to polling. Status is always read from GET /queue/status, never from the stream itself.
type Watcher struct {
	cfg    Config
	log    *slog.Logger
	client *http.Client

	onStatus func(*models.QueueView)
	onState  func(Snapshot)

	mu      sync.Mutex
	snap    Snapshot
	visible bool
	inQueue bool

	visibility chan bool
	reconnect  chan struct{}
}

type Option func(*Watcher)

func WithHTTPClient(c *http.Client) Option {
	return func(w *Watcher) { w.client = c }
}

// OnStatus is called from the Run goroutine after every successful refresh.
func OnStatus(fn func(*models.QueueView)) Option {
	return func(w *Watcher) { w.onStatus = fn }
}

// OnState is called from the Run goroutine after every state transition.
func OnState(fn func(Snapshot)) Option {
	return func(w *Watcher) { w.onState = fn }
}

func New(log *slog.Logger, cfg Config, opts ...Option) *Watcher {
	w := &Watcher{
		cfg:        cfg.withDefaults(),
		log:        log,
		client:     &http.Client{},
		visible:    true,
		snap:       Snapshot{State: Connecting},
		visibility: make(chan bool, 1),
		reconnect:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Watcher) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snap
}

// Err is the persistent error set once reconnect attempts are exhausted.
func (w *Watcher) Err() error {
	return w.Snapshot().Err
}

// SetVisible tells the watcher whether anyone is looking. Becoming visible triggers
// an immediate refresh.
func (w *Watcher) SetVisible(v bool) {
	select {
	case w.visibility <- v:
	default:
		// replace the pending value with the newest one
		select {
		case <-w.visibility:
		default:
		}
		w.visibility <- v
	}
}

// Reconnect resets the attempt counter and opens a fresh stream.
func (w *Watcher) Reconnect() {
	select {
	case w.reconnect <- struct{}{}:
	default:
	}
}

// streamMsg carries the generation of the stream that produced it, so messages from a
// stream that was already replaced are ignored.
type streamMsg struct {
	gen int
	ev  realtime.Event
	err error
}

// Run drives the state machine until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	const op = "queuewatch.Run"
	log := w.log.With(slog.String("op", op))

	var (
		events       = make(chan streamMsg, 16)
		streamCancel context.CancelFunc
		gen          int
		retry        = w.cfg.newBackOff()
		retryTimer   *time.Timer
		retryC       <-chan time.Time
	)

	stopStream := func() {
		if streamCancel != nil {
			streamCancel()
			streamCancel = nil
		}
	}
	stopBackoff := func() {
		if retryTimer != nil {
			retryTimer.Stop()
			retryTimer, retryC = nil, nil
		}
	}
	connect := func() {
		stopStream()
		stopBackoff()
		gen++
		sctx, cancel := context.WithCancel(ctx)
		streamCancel = cancel
		w.setState(Connecting, w.Snapshot().Attempt, nil)
		go w.stream(sctx, gen, events)
	}

	poll := time.NewTimer(w.nextPoll())
	resetPoll := func() {
		if !poll.Stop() {
			select {
			case <-poll.C:
			default:
			}
		}
		poll.Reset(w.nextPoll())
	}

	defer func() {
		stopStream()
		stopBackoff()
		poll.Stop()
		w.setState(Closed, 0, w.Err())
	}()

	w.refresh(ctx)
	connect()
	resetPoll()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-events:
			if msg.gen != gen {
				continue
			}
			if msg.err != nil {
				s := w.Snapshot()
				if s.State != Connecting && s.State != Open {
					continue
				}
				stopStream()
				attempt := s.Attempt + 1
				delay := retry.NextBackOff()
				if delay == backoff.Stop {
					err := fmt.Errorf("%w: %v", ErrStreamUnavailable, msg.err)
					log.Warn("giving up on live updates", slog.Int("attempts", attempt), sl.Err(msg.err))
					w.setState(Failed, attempt, err)
					w.setState(Polling, attempt, err)
					resetPoll()
					continue
				}
				log.Debug("stream failed, backing off", slog.Int("attempt", attempt), slog.Duration("delay", delay), sl.Err(msg.err))
				w.setState(Backoff, attempt, nil)
				retryTimer = time.NewTimer(delay)
				retryC = retryTimer.C
				continue
			}

			switch msg.ev.Type {
			case realtime.EventConnected:
				retry.Reset()
				w.setState(Open, 0, nil)
				resetPoll()
			case realtime.EventQueueUpdate:
				w.refresh(ctx)
				resetPoll()
			}

		case <-retryC:
			retryTimer, retryC = nil, nil
			connect()

		case <-poll.C:
			w.refresh(ctx)
			poll.Reset(w.nextPoll())

		case v := <-w.visibility:
			w.mu.Lock()
			wasHidden := !w.visible
			w.visible = v
			w.mu.Unlock()
			if v && wasHidden {
				w.refresh(ctx)
			}
			resetPoll()

		case <-w.reconnect:
			retry.Reset()
			w.setState(Connecting, 0, nil)
			connect()
			resetPoll()
		}
	}
}

func (w *Watcher) nextPoll() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg.pollInterval(w.snap.State, w.visible, w.inQueue)
}

func (w *Watcher) setState(s State, attempt int, err error) {
	w.mu.Lock()
	changed := w.snap.State != s || w.snap.Attempt != attempt
	w.snap = Snapshot{State: s, Attempt: attempt, Err: err}
	snap := w.snap
	w.mu.Unlock()

	if changed && w.onState != nil {
		w.onState(snap)
	}
}

// stream opens GET /queue/stream and forwards every decoded event until the body ends
// or ctx is cancelled. It always finishes with exactly one error message.
func (w *Watcher) stream(ctx context.Context, gen int, out chan<- streamMsg) {
	send := func(m streamMsg) {
		m.gen = gen
		select {
		case out <- m:
		case <-ctx.Done():
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.BaseURL+"/queue/stream", nil)
	if err != nil {
		send(streamMsg{err: err})
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	w.authorize(req)

	resp, err := w.client.Do(req)
	if err != nil {
		send(streamMsg{err: err})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		send(streamMsg{err: fmt.Errorf("stream: unexpected status %d", resp.StatusCode)})
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		var ev realtime.Event
		if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &ev); err != nil {
			w.log.Debug("skipping malformed event", slog.String("data", data))
			continue
		}
		send(streamMsg{ev: ev})
	}

	err = scanner.Err()
	if err == nil {
		err = errors.New("stream: closed by server")
	}
	send(streamMsg{err: err})
}

// refresh fetches the caller's status. Failures are logged and leave the previous
// status in place; the next tick retries.
func (w *Watcher) refresh(ctx context.Context) {
	const op = "queuewatch.refresh"

	view, err := w.fetchStatus(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("failed to refresh status", slog.String("op", op), sl.Err(err))
		}
		return
	}

	w.mu.Lock()
	w.inQueue = view.InQueue
	w.mu.Unlock()

	if w.onStatus != nil {
		w.onStatus(view)
	}
}

func (w *Watcher) fetchStatus(ctx context.Context) (*models.QueueView, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.BaseURL+"/queue/status", nil)
	if err != nil {
		return nil, err
	}
	w.authorize(req)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status: unexpected status %d", resp.StatusCode)
	}

	var view models.QueueView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, fmt.Errorf("status: decode: %w", err)
	}
	return &view, nil
}

func (w *Watcher) authorize(req *http.Request) {
	if w.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.cfg.Token)
	}
}
