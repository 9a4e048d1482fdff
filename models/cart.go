package models

// MaxQuantity is the most units of one item a cart line can hold.
const MaxQuantity = 999

// CartItem is a menu item held in a cart together with its quantity.
type CartItem struct {
	FoodItem `bson:",inline"`
	Quantity int `json:"quantity" bson:"quantity"`
}

// Clone returns a deep copy of the line.
func (c CartItem) Clone() CartItem {
	c.FoodItem = c.FoodItem.Clone()
	return c
}

// CloneItems deep-copies a slice of cart lines.
func CloneItems(items []CartItem) []CartItem {
	if items == nil {
		return nil
	}
	out := make([]CartItem, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
