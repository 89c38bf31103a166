package events

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vercingetorx/depot/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The admin feed is same-origin tooling or an operator's own
	// client; it never needs to honor browser CORS-style origin
	// restrictions the way a public API would.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const pingInterval = 30 * time.Second

// ServeWS upgrades r to a websocket connection and streams every event
// published to h until the client disconnects. Intended to be mounted
// at /events, behind the same bearer-token gate as /metrics.
func ServeWS(h *Hub, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("events: websocket upgrade failed", logger.Error(err))
			return
		}
		defer conn.Close()

		ch, unsubscribe := h.subscribe()
		defer unsubscribe()

		// Drain and discard anything the client sends; this endpoint is
		// publish-only but a client must still be read from to notice
		// a close frame.
		go func() {
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case body, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
