package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"barbershop-queue/internal/lib/logger/sl"
	"barbershop-queue/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// Stream is the SSE endpoint. Each connection gets its own subscription, a connected
// event, periodic heartbeats and one queue_update per notification. Clients refetch
// their status on queue_update; no queue data travels on the stream.
func (h *Handler) Stream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	who := caller(c)
	sub := h.subs.Register()
	log := h.log.With(slog.String("op", "handler.Stream"), slog.String("user_id", who.UserID))
	log.Debug("stream opened")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.subs.Deregister(sub)

		if err := relay(w, sub, h.opts.Heartbeat); err != nil {
			log.Debug("stream closed", sl.Err(err))
			return
		}
		log.Debug("stream closed by server")
	}))

	return nil
}

// relay writes events to w until the subscription is closed (nil) or a write fails
// because the client went away (error). The heartbeat ticker stops on return.
func relay(w *bufio.Writer, sub *realtime.Subscription, heartbeat time.Duration) error {
	if err := writeEvent(w, realtime.Event{Type: realtime.EventConnected}); err != nil {
		return err
	}

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := writeEvent(w, ev); err != nil {
				return err
			}
		case t := <-ticker.C:
			if err := writeEvent(w, realtime.Event{Type: realtime.EventHeartbeat, Timestamp: t.UnixMilli()}); err != nil {
				return err
			}
		}
	}
}

func writeEvent(w *bufio.Writer, ev realtime.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}
