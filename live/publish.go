package live

import (
	"context"
	"encoding/json"

	"foodcart/models"
	"foodcart/state"
	"foodcart/store"
)

// Message is what live clients receive.
type Message struct {
	Event  store.EventKind  `json:"event"`
	Origin state.Origin     `json:"origin,omitempty"`
	Badge  int              `json:"badge"`
	Item   *models.FoodItem `json:"item,omitempty"`
	Order  *models.Order    `json:"order,omitempty"`
}

// Publish sends c to the admin room and, for order events, to that order's
// room.
func (h *Hub) Publish(_ context.Context, c state.Change) {
	data, err := json.Marshal(Message{Event: c.Kind, Origin: c.Origin, Badge: c.Badge, Item: c.Item, Order: c.Order})
	if err != nil {
		h.log.WithError(err).Error("encode live message")
		return
	}
	h.Broadcast(AdminRoom, data)
	if c.Order != nil {
		h.Broadcast(OrderRoom(c.Order.ID), data)
	}
}
