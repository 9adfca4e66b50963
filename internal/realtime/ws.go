package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4 * 1024
	snapshotWait   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SnapshotFunc loads the records a new subscriber can currently see
type SnapshotFunc func(ctx context.Context) ([]Message, error)

type conn struct {
	ws     *websocket.Conn
	hub    *Hub
	sub    *Subscriber
	logger *zap.Logger
}

// ServeWS upgrades the request and streams the view for sub: the subscriber
// is registered first, then the snapshot is queued, then live changes follow.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sub Subscription, snapshot SnapshotFunc) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	s := h.Subscribe(sub)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), snapshotWait)
	msgs, err := snapshot(ctx)
	cancel()
	if err != nil {
		h.logger.Error("Failed to load live view snapshot", zap.String("role", string(sub.Role)), zap.Error(err))
		h.Unsubscribe(s)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "snapshot failed"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}
	h.Prime(s, msgs)

	c := &conn{
		ws:  ws,
		hub: h,
		sub: s,
		logger: h.logger.With(
			zap.String("role", string(sub.Role)),
			zap.Uint("subject_id", sub.SubjectID),
		),
	}
	go c.writePump()
	go c.readPump()
}

// readPump only services control frames; views are read-only
func (c *conn) readPump() {
	defer func() {
		c.hub.Unsubscribe(c.sub)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Live view connection error", zap.Error(err))
			}
			return
		}
	}
}

// writePump streams queued messages and keeps the connection alive
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case m, ok := <-c.sub.Messages():
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resync required"))
				return
			}

			w, err := c.ws.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if err := json.NewEncoder(w).Encode(m); err != nil {
				w.Close()
				return
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
