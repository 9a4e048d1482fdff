// Package cart holds a customer's selected menu items and derives totals.
package cart

import (
	"foodcart/models"

	"github.com/shopspring/decimal"
)

// Cart is an ordered list of line items keyed by food item id.
// It is not safe for concurrent use; state.App serializes access.
type Cart struct {
	items []models.CartItem
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

func (c *Cart) index(itemID string) int {
	for i := range c.items {
		if c.items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// Add increments the quantity of item if it is already in the cart,
// otherwise appends it with quantity 1. Quantities stop at
// models.MaxQuantity.
func (c *Cart) Add(item models.FoodItem) {
	if i := c.index(item.ID); i >= 0 {
		if c.items[i].Quantity < models.MaxQuantity {
			c.items[i].Quantity++
		}
		return
	}
	c.items = append(c.items, models.CartItem{FoodItem: item.Clone(), Quantity: 1})
}

// UpdateQuantity sets the quantity of itemID, capped at
// models.MaxQuantity. A quantity of zero or less removes the line.
// Unknown ids are ignored.
func (c *Cart) UpdateQuantity(itemID string, quantity int) {
	i := c.index(itemID)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		c.removeAt(i)
		return
	}
	c.items[i].Quantity = min(quantity, models.MaxQuantity)
}

// Remove drops itemID from the cart if present.
func (c *Cart) Remove(itemID string) {
	if i := c.index(itemID); i >= 0 {
		c.removeAt(i)
	}
}

func (c *Cart) removeAt(i int) {
	c.items = append(c.items[:i], c.items[i+1:]...)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
}

// Items returns a copy of the lines in the order they were first added.
func (c *Cart) Items() []models.CartItem {
	return models.CloneItems(c.items)
}

// Len is the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.items)
}

// Count is the number of units across all lines.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// Total is the sum of price × quantity over all lines, computed on every call.
func (c *Cart) Total() float64 {
	return Total(c.items)
}

// Total sums price × quantity over lines, rounded to cents.
func Total(lines []models.CartItem) float64 {
	sum := decimal.Zero
	for _, it := range lines {
		sum = sum.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum.Round(2).InexactFloat64()
}
