// Package live pushes state changes to admin dashboards and order trackers
// over websockets.
package live

import (
	"context"
	"sync"

	"foodcart/metrics"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// AdminRoom receives every change.
const AdminRoom = "admin"

// OrderRoom receives changes to a single order.
func OrderRoom(orderID string) string {
	return "order:" + orderID
}

type Client struct {
	Conn *websocket.Conn
	Send chan []byte
	Room string
}

type broadcastMsg struct {
	Room string
	Data []byte
}

// Hub fans messages out to the clients of a room. All room bookkeeping
// happens on the Run goroutine.
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	done       chan struct{}
	mu         sync.Mutex
	log        logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg, 256),
		done:       make(chan struct{}),
		log:        log.WithField("component", "live"),
	}
}

// Run services the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for room, conns := range h.rooms {
				for c := range conns {
					close(c.Send)
				}
				delete(h.rooms, room)
			}
			h.mu.Unlock()
			metrics.LiveClients.Set(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.rooms[c.Room] == nil {
				h.rooms[c.Room] = make(map[*Client]bool)
			}
			h.rooms[c.Room][c] = true
			h.mu.Unlock()
			metrics.LiveClients.Inc()

		case c := <-h.unregister:
			h.drop(c)

		case m := <-h.broadcast:
			h.mu.Lock()
			var slow []*Client
			for c := range h.rooms[m.Room] {
				select {
				case c.Send <- m.Data:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()
			for _, c := range slow {
				h.log.WithField("room", c.Room).Warn("dropping slow client")
				h.drop(c)
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.rooms[c.Room]
	if !conns[c] {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.rooms, c.Room)
	}
	close(c.Send)
	metrics.LiveClients.Dec()
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues data for every client in room. It never blocks; when
// the queue is full the message is dropped.
func (h *Hub) Broadcast(room string, data []byte) {
	select {
	case h.broadcast <- broadcastMsg{Room: room, Data: data}:
	default:
		h.log.WithField("room", room).Warn("broadcast queue full, message dropped")
	}
}

// Clients is the number of clients connected to room.
func (h *Hub) Clients(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}
