package live

import (
	"encoding/json"
	"net/http"
	"time"

	"foodcart/models"
	"foodcart/utils"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// snapshotEvent is sent once when a tracker connects.
const snapshotEvent = "order.snapshot"

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// OrderLookup finds orders for tracker connections.
type OrderLookup interface {
	Order(id string) (models.Order, error)
}

// AdminSocket streams every change to the admin dashboard.
func AdminSocket(hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		hub.serve(w, r, AdminRoom, nil)
	}
}

// OrderSocket streams changes to one order. The order's current state is
// sent first.
func OrderSocket(hub *Hub, orders OrderLookup) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id := ps.ByName("orderid")
		o, err := orders.Order(id)
		if err != nil {
			utils.RespondWithError(w, http.StatusNotFound, "order not found")
			return
		}
		first, err := json.Marshal(Message{Event: snapshotEvent, Order: &o})
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "encode order")
			return
		}
		hub.serve(w, r, OrderRoom(id), first)
	}
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, room string, first []byte) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	c := &Client{Conn: conn, Send: make(chan []byte, 64), Room: room}
	if first != nil {
		c.Send <- first
	}
	if !h.join(c) {
		conn.Close()
		return
	}
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for the connection closing; clients send nothing.
func (h *Hub) readPump(c *Client) {
	defer func() {
		h.leave(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
