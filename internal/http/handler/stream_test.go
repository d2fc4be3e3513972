package handler

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"barbershop-queue/internal/models"
	"barbershop-queue/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readEvent reads one "data: ..." frame and its terminating blank line.
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	blank, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "\n", blank)
	require.True(t, strings.HasPrefix(line, "data: "), line)
	return strings.TrimSuffix(strings.TrimPrefix(line, "data: "), "\n")
}

func startRelay(sub *realtime.Subscription, heartbeat time.Duration) (*bufio.Reader, *io.PipeReader, chan error) {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- relay(bufio.NewWriter(pw), sub, heartbeat)
		_ = pw.Close()
	}()
	return bufio.NewReader(pr), pr, done
}

func waitDone(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not return")
	}
	return nil
}

func TestRelay_ConnectedThenUpdates(t *testing.T) {
	b := realtime.NewBroadcaster()
	sub := b.Register()
	r, _, done := startRelay(sub, time.Hour)

	assert.Equal(t, `{"type":"connected"}`, readEvent(t, r))

	b.Notify()
	assert.Contains(t, readEvent(t, r), `"type":"queue_update","timestamp":`)

	b.Deregister(sub)
	assert.NoError(t, waitDone(t, done))
}

func TestRelay_Heartbeat(t *testing.T) {
	b := realtime.NewBroadcaster()
	sub := b.Register()
	defer b.Deregister(sub)
	r, pr, done := startRelay(sub, 20*time.Millisecond)

	readEvent(t, r)
	assert.Contains(t, readEvent(t, r), `"type":"heartbeat","timestamp":`)

	_ = pr.Close()
	assert.Error(t, waitDone(t, done))
}

func TestRelay_ClientGone(t *testing.T) {
	b := realtime.NewBroadcaster()
	sub := b.Register()
	defer b.Deregister(sub)
	r, pr, done := startRelay(sub, time.Hour)

	readEvent(t, r)
	_ = pr.Close()
	b.Notify()

	assert.Error(t, waitDone(t, done))
}

func TestStream_EndToEnd(t *testing.T) {
	b := realtime.NewBroadcaster()
	h := New(discardLogger(), &mockQueue{}, &mockAuth{}, b, Options{Heartbeat: time.Hour})

	app := fiber.New()
	app.Get("/queue/stream", func(c *fiber.Ctx) error {
		c.Locals("caller", models.Caller{UserID: "c1", Role: models.RoleClient})
		return c.Next()
	}, h.Stream)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	defer func() { _ = app.ShutdownWithTimeout(time.Second) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/queue/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	r := bufio.NewReader(resp.Body)
	assert.Equal(t, `{"type":"connected"}`, readEvent(t, r))
	assert.Equal(t, 1, b.Count())

	b.Notify()
	assert.Contains(t, readEvent(t, r), "queue_update")

	b.Close()
}
