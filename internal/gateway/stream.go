package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ItshMoh/sol-sniper-engine/internal/order"
	"github.com/ItshMoh/sol-sniper-engine/internal/store"
	"github.com/ItshMoh/sol-sniper-engine/internal/telemetry"
)

const (
	clientSendBuf = 64
	writeDeadline = 5 * time.Second
	pongWait      = 30 * time.Second
	pingInterval  = 20 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// wsObserver adapts one websocket connection to the broadcast hub. Deliver
// enqueues to the send channel without blocking; a full buffer drops the
// event rather than stalling the worker's publish.
type wsObserver struct {
	conn *websocket.Conn
	send chan order.StatusEvent
	done chan struct{}
}

func (c *wsObserver) Ready() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *wsObserver) Deliver(evt order.StatusEvent) {
	select {
	case c.send <- evt:
	default:
		telemetry.Metrics.BroadcastsDropped.Inc()
		telemetry.Warnf("gateway: dropping event for slow subscriber order=%s", evt.OrderID)
	}
}

// connectedFrame is the first message on a stream: it carries the current
// persisted status so a late subscriber starts from truthful state even
// though earlier events are never replayed.
type connectedFrame struct {
	OrderID   string       `json:"orderId"`
	Connected bool         `json:"connected"`
	Message   string       `json:"message"`
	Order     *order.Order `json:"order,omitempty"`
}

// handleStream upgrades the connection and subscribes it to the order's
// status events until the order reaches a terminal state or the transport
// closes. Closing unsubscribes the observer.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := s.store.GetOrder(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{
				Error:   "not_found",
				Message: "order not found",
			})
			return
		}
		telemetry.Errorf("gateway: stream lookup %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "store_error",
			Message: "could not load order",
		})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		telemetry.Warnf("gateway: upgrade failed for order %s: %v", id, err)
		return
	}

	c := &wsObserver{
		conn: conn,
		send: make(chan order.StatusEvent, clientSendBuf),
		done: make(chan struct{}),
	}

	// Subscribe before taking the snapshot: a transition landing between
	// the two is then delivered as an event rather than falling into a
	// gap. It may appear in both, which subscribers must tolerate anyway.
	s.hub.Subscribe(id, c)

	ord, err := s.store.GetOrder(r.Context(), id)
	if err != nil {
		telemetry.Errorf("gateway: stream snapshot %s: %v", id, err)
		s.hub.Unsubscribe(id, c)
		conn.Close()
		return
	}

	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := conn.WriteJSON(connectedFrame{
		OrderID:   id,
		Connected: true,
		Message:   "Connected. Streaming status updates...",
		Order:     ord,
	}); err != nil {
		s.hub.Unsubscribe(id, c)
		conn.Close()
		return
	}

	// A terminal order has no further events; the snapshot is the whole
	// story, so the stream ends right after it.
	if ord.Status.Terminal() {
		s.hub.Unsubscribe(id, c)
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		return
	}

	telemetry.Infof("gateway: stream connected order=%s", id)

	go s.writePump(id, c)
	go s.readPump(c)
}

// writePump drains the observer's send channel onto the connection. It owns
// the connection lifecycle: on exit it unsubscribes (so Publish never hits
// a stale observer) and closes the socket. Delivery of a terminal event
// ends the stream.
func (s *Server) writePump(orderID string, c *wsObserver) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.hub.Unsubscribe(orderID, c)
		c.conn.Close()
		telemetry.Infof("gateway: stream disconnected order=%s", orderID)
	}()

	for {
		select {
		case evt := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			data, err := json.Marshal(evt)
			if err != nil {
				telemetry.Warnf("gateway: marshal event: %v", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				telemetry.Warnf("gateway: stream write order=%s: %v", orderID, err)
				return
			}
			if evt.Status.Terminal() {
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump keeps the connection alive by consuming pongs / close frames.
// Subscribers send nothing upstream. On exit it signals writePump via
// c.done (never closes c.send).
func (s *Server) readPump(c *wsObserver) {
	defer close(c.done)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
