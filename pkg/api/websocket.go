package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/price"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is enforced by the outer handler.
		return true
	},
}

// wsClient bridges one WebSocket connection to a price-hub subscription.
// Each client carries the hub's one-slot buffer, so a slow connection only
// ever lags by a single tick.
type wsClient struct {
	conn *websocket.Conn
	sub  *price.Subscriber
	hub  *price.Hub
	log  *zap.SugaredLogger
}

// handleWebSocket upgrades the connection and streams the price table.
// The channel is one-way; inbound frames are drained only to detect close.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("ws_upgrade_failed", "err", err)
		return
	}

	c := &wsClient{
		conn: conn,
		sub:  s.hub.Subscribe(),
		hub:  s.hub,
		log:  s.log,
	}
	go c.writePump()
	go c.readPump()
}

// readPump discards inbound frames and unsubscribes on close.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.Unsubscribe(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debugw("ws_read_error", "subscriber", c.sub.ID(), "err", err)
			}
			return
		}
	}
}

// writePump forwards price snapshots to the connection and keeps it alive
// with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case snap, ok := <-c.sub.Updates():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub dropped us.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			msg, err := json.Marshal(PriceUpdate{
				Type:      "prices",
				Prices:    snap,
				Timestamp: time.Now().UnixMilli(),
			})
			if err != nil {
				c.log.Warnw("ws_marshal_failed", "err", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
