// Package store defines the persistence boundary: item and order stores and
// the change feed they emit.
package store

import (
	"context"
	"errors"
	"time"

	"foodcart/models"
)

// ErrNotFound is returned when a write targets a record that does not exist.
var ErrNotFound = errors.New("not found")

// EventKind names a change-feed event.
type EventKind string

const (
	ItemCreated  EventKind = "item.created"
	OrderCreated EventKind = "order.created"
	OrderUpdated EventKind = "order.updated"
)

// Event is a change notification from a store. Exactly one of Item and
// Order is set, matching Kind.
type Event struct {
	Kind  EventKind        `json:"kind"`
	Item  *models.FoodItem `json:"item,omitempty"`
	Order *models.Order    `json:"order,omitempty"`
}

// EntityID is the id of the record the event is about.
func (e Event) EntityID() string {
	switch {
	case e.Item != nil:
		return e.Item.ID
	case e.Order != nil:
		return e.Order.ID
	}
	return ""
}

// ItemStore persists menu items.
type ItemStore interface {
	ListItems(ctx context.Context) ([]models.FoodItem, error)
	// InsertItem stores d and returns it with its assigned id.
	InsertItem(ctx context.Context, d models.FoodItemDraft) (models.FoodItem, error)
}

// OrderStore persists orders.
type OrderStore interface {
	// ListOrders returns orders newest first.
	ListOrders(ctx context.Context) ([]models.Order, error)
	InsertOrder(ctx context.Context, o models.Order) (models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, eta *string, at time.Time) error
}

// Feed emits change events. The channel is closed when ctx is done or the
// underlying subscription ends.
type Feed interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// Backend is a complete store implementation.
type Backend interface {
	ItemStore
	OrderStore
	Feed
	// Persistent reports whether writes outlive the process.
	Persistent() bool
	Close(ctx context.Context) error
}

// FeedBuffer is the channel capacity used by change feeds.
const FeedBuffer = 256
