package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/inkwelldev/inkwell-api/internal/events"
)

// Timing parameters for the WebSocket bridge
const (
	// writeWait is the time allowed to write a message to the client
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the client
	pongWait = 60 * time.Second

	// pingPeriod is how often pings are sent; must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
)

// WSHandler bridges the in-process notification broker to live WebSocket
// clients. Each connection gets its own subscription on the notification
// channel; published events are forwarded verbatim, without filtering or
// replay. Client messages are consumed only as a liveness signal.
type WSHandler struct {
	broker   *events.Broker
	channel  string
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates a new WSHandler forwarding events from the named
// broker channel.
func NewWSHandler(broker *events.Broker, channel string, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &WSHandler{
		broker:  broker,
		channel: channel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API carries no credentials or cookies, so cross-origin
			// subscriptions are allowed.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "ws_handler"),
	}
}

// Serve handles GET /api/ws requests, upgrading the connection and relaying
// notifications until either side closes.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		h.logger.Debug("websocket upgrade failed",
			"error", err,
			"remote_addr", r.RemoteAddr)
		return
	}

	sub := h.broker.Subscribe(h.channel)

	log := h.logger.With("remote_addr", conn.RemoteAddr().String())
	log.Debug("websocket client connected")

	// closed signals the writer loop that the client went away.
	closed := make(chan struct{})
	go h.readLoop(conn, closed, log)

	h.writeLoop(conn, sub, closed, log)

	// Cleanup runs on every exit path: forwarding has stopped, so drop the
	// subscription and close the connection.
	sub.Unsubscribe()
	if err := conn.Close(); err != nil {
		log.Debug("error closing websocket connection", "error", err)
	}
	log.Debug("websocket client disconnected")
}

// readLoop consumes client frames purely as a liveness signal. Message
// content is discarded; any read error (including a client close) ends the
// loop and signals the writer.
func (h *WSHandler) readLoop(conn *websocket.Conn, closed chan<- struct{}, log *slog.Logger) {
	defer close(closed)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	conn.SetReadLimit(512)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

// writeLoop forwards published notifications to the client and keeps the
// connection alive with periodic pings. It returns when the subscription is
// closed, a write fails, or the reader signals disconnect.
func (h *WSHandler) writeLoop(conn *websocket.Conn, sub *events.Subscription, closed <-chan struct{}, log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-sub.C():
			if !ok {
				// Broker shut down; tell the client we're going away.
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debug("websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("websocket ping failed", "error", err)
				return
			}

		case <-closed:
			return
		}
	}
}
