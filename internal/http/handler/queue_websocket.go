package handler

import (
	"log/slog"
	"sync/atomic"
	"time"

	"barbershop-queue/internal/lib/logger/sl"
	"barbershop-queue/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	wsPingInterval = 20 * time.Second
	wsPongWait     = 60 * time.Second
	wsWriteWait    = 5 * time.Second
)

var wsClientCounter atomic.Uint64

// UpgradeCheck rejects plain HTTP requests to the websocket route.
func UpgradeCheck(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

/*
|--------------------------------------------------------------------------
| WebSocket Handler
|--------------------------------------------------------------------------
*/

// QueueWebSocket relays the same events as Stream to in-shop display screens, as JSON
// text frames. All writes happen on this goroutine; a reader goroutine only watches
// for the peer going away and keeps the pong deadline fresh.
func (h *Handler) QueueWebSocket() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		id := wsClientCounter.Add(1)
		log := h.log.With(slog.String("op", "handler.QueueWebSocket"), slog.Uint64("client", id))

		sub := h.subs.Register()
		defer h.subs.Deregister(sub)
		defer c.Close()

		log.Info("display connected", slog.String("remote", c.RemoteAddr().String()))

		gone := make(chan struct{})
		_ = c.SetReadDeadline(time.Now().Add(wsPongWait))
		c.SetPongHandler(func(string) error {
			return c.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		go func() {
			defer close(gone)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						log.Warn("display closed unexpectedly", sl.Err(err))
					}
					return
				}
			}
		}()

		if err := wsWrite(c, realtime.Event{Type: realtime.EventConnected}); err != nil {
			return
		}

		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()

		for {
			select {
			case <-gone:
				log.Info("display disconnected")
				return
			case ev, ok := <-sub.C:
				if !ok {
					_ = c.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
						time.Now().Add(wsWriteWait))
					return
				}
				if err := wsWrite(c, ev); err != nil {
					return
				}
			case <-ping.C:
				_ = c.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	})
}

func wsWrite(c *websocket.Conn, ev realtime.Event) error {
	_ = c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.WriteJSON(ev)
}
