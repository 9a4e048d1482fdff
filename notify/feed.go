// Package notify keeps the staff-facing feed of newly arrived orders.
package notify

import "foodcart/models"

// Feed lists orders that arrived since the last Clear, most recent first.
// It is independent of the orders collection. Not safe for concurrent use.
type Feed struct {
	orders []models.Order
}

// New returns an empty feed.
func New() *Feed {
	return &Feed{}
}

// Push prepends o unless an entry with the same order id is already present.
// It reports whether o was added.
func (f *Feed) Push(o models.Order) bool {
	for _, existing := range f.orders {
		if existing.ID == o.ID {
			return false
		}
	}
	f.orders = append([]models.Order{o.Clone()}, f.orders...)
	return true
}

// Clear empties the feed.
func (f *Feed) Clear() {
	f.orders = nil
}

// Len is the badge count.
func (f *Feed) Len() int {
	return len(f.orders)
}

// List returns copies of the feed entries, most recent first.
func (f *Feed) List() []models.Order {
	out := make([]models.Order, len(f.orders))
	for i, o := range f.orders {
		out[i] = o.Clone()
	}
	return out
}
