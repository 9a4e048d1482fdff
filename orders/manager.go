// Package orders turns carts into orders and moves them through the
// delivery workflow.
package orders

import (
	"time"

	"foodcart/cart"
	"foodcart/models"

	"github.com/google/uuid"
)

// Manager holds the orders collection, most recent first.
// Not safe for concurrent use; state.App serializes access.
type Manager struct {
	policy Policy
	orders []models.Order
}

// NewManager returns an empty collection governed by policy.
func NewManager(policy Policy) *Manager {
	if policy == "" {
		policy = PolicyOpen
	}
	return &Manager{policy: policy}
}

// Policy is the transition policy in force.
func (m *Manager) Policy() Policy {
	return m.policy
}

// Build creates a Pending order from a snapshot of cart lines. The lines are
// deep-copied so later cart or catalog changes never reach the order.
func Build(customer models.CustomerDetails, payment models.PaymentMethod, lines []models.CartItem, now time.Time) models.Order {
	items := models.CloneItems(lines)
	return models.Order{
		ID:            uuid.NewString(),
		Customer:      customer,
		Items:         items,
		Total:         cart.Total(items),
		PaymentMethod: payment,
		CreatedAt:     now,
		Status:        models.StatusPending,
	}
}

func (m *Manager) index(id string) int {
	for i := range m.orders {
		if m.orders[i].ID == id {
			return i
		}
	}
	return -1
}

// Load replaces the collection. orders is expected newest first.
func (m *Manager) Load(orders []models.Order) {
	m.orders = make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if m.index(o.ID) >= 0 {
			continue
		}
		m.orders = append(m.orders, o.Clone())
	}
}

// Prepend inserts o at the head of the collection.
func (m *Manager) Prepend(o models.Order) {
	m.orders = append([]models.Order{o.Clone()}, m.orders...)
}

// Upsert replaces the order with o's id, or prepends o if it is unknown.
// It reports whether o was new.
func (m *Manager) Upsert(o models.Order) bool {
	if i := m.index(o.ID); i >= 0 {
		m.orders[i] = o.Clone()
		return false
	}
	m.Prepend(o)
	return true
}

// UpdateStatus sets the status of order id. eta replaces the estimated
// delivery time only when non-nil, and at stamps StatusUpdatedAt only when
// non-nil. Nothing else changes. It reports whether the order was found.
func (m *Manager) UpdateStatus(id string, status models.OrderStatus, eta *string, at *time.Time) bool {
	i := m.index(id)
	if i < 0 {
		return false
	}
	o := &m.orders[i]
	o.Status = status
	if eta != nil {
		v := *eta
		o.EstimatedDeliveryTime = &v
	}
	if at != nil {
		v := *at
		o.StatusUpdatedAt = &v
	}
	return true
}

// Get returns a copy of order id.
func (m *Manager) Get(id string) (models.Order, bool) {
	i := m.index(id)
	if i < 0 {
		return models.Order{}, false
	}
	return m.orders[i].Clone(), true
}

// List returns copies of all orders, most recent first.
func (m *Manager) List() []models.Order {
	out := make([]models.Order, len(m.orders))
	for i, o := range m.orders {
		out[i] = o.Clone()
	}
	return out
}

// Len is the number of orders held.
func (m *Manager) Len() int {
	return len(m.orders)
}
