// Package catalog keeps the menu items known to this process.
package catalog

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"foodcart/models"
)

// Catalog holds menu items newest first. Not safe for concurrent use.
type Catalog struct {
	items []models.FoodItem
	byID  map[string]int
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{byID: make(map[string]int)}
}

// Add prepends item unless an item with the same id is already held.
// It reports whether the item was added.
func (c *Catalog) Add(item models.FoodItem) bool {
	if _, ok := c.byID[item.ID]; ok {
		return false
	}
	c.items = append([]models.FoodItem{item.Clone()}, c.items...)
	c.reindex()
	return true
}

// Load replaces the catalog with items, keeping their order and dropping
// repeated ids.
func (c *Catalog) Load(items []models.FoodItem) {
	c.items = c.items[:0]
	c.byID = make(map[string]int, len(items))
	for _, it := range items {
		if _, ok := c.byID[it.ID]; ok {
			continue
		}
		c.byID[it.ID] = len(c.items)
		c.items = append(c.items, it.Clone())
	}
}

func (c *Catalog) reindex() {
	for i, it := range c.items {
		c.byID[it.ID] = i
	}
}

// Get returns the item with id.
func (c *Catalog) Get(id string) (models.FoodItem, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.FoodItem{}, false
	}
	return c.items[i].Clone(), true
}

// All returns a copy of every item, newest first.
func (c *Catalog) All() []models.FoodItem {
	out := make([]models.FoodItem, len(c.items))
	for i, it := range c.items {
		out[i] = it.Clone()
	}
	return out
}

// Len is the number of items held.
func (c *Catalog) Len() int {
	return len(c.items)
}

// MaxPrice is the highest accepted item price.
const MaxPrice = 100000

// Validate checks a draft before it is sent to the item store.
func Validate(d models.FoodItemDraft) error {
	name := strings.TrimSpace(d.Name)
	if n := utf8.RuneCountInString(name); n == 0 || n > 100 {
		return fmt.Errorf("name must be between 1 and 100 characters")
	}
	if math.IsNaN(d.Price) || math.IsInf(d.Price, 0) || d.Price < 0 {
		return fmt.Errorf("price must be a non-negative number")
	}
	if d.Price > MaxPrice {
		return fmt.Errorf("price must not exceed %d", MaxPrice)
	}
	if len(d.Images) > models.MaxItemImages {
		return fmt.Errorf("at most %d images are allowed", models.MaxItemImages)
	}
	return nil
}
