package models

import "time"

// MaxItemImages is the number of photos a menu item may carry.
const MaxItemImages = 2

// FoodItem is a menu entry. Items are immutable once created.
type FoodItem struct {
	ID          string    `json:"id" bson:"itemid"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Size        string    `json:"size,omitempty" bson:"size,omitempty"` // e.g. "Regular", "Family"
	Price       float64   `json:"price" bson:"price"`
	Images      []string  `json:"images,omitempty" bson:"images,omitempty"`
	Video       string    `json:"video,omitempty" bson:"video,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
}

// Clone returns a copy that shares no slices with f.
func (f FoodItem) Clone() FoodItem {
	if f.Images != nil {
		f.Images = append([]string(nil), f.Images...)
	}
	return f
}

// FoodItemDraft is a menu item as submitted by an admin, before the item
// store assigns it an id.
type FoodItemDraft struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Size        string   `json:"size"`
	Price       float64  `json:"price"`
	Images      []string `json:"images"`
	Video       string   `json:"video"`
}

// Item materializes the draft with the id and creation time assigned by a store.
func (d FoodItemDraft) Item(id string, createdAt time.Time) FoodItem {
	return FoodItem{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Size:        d.Size,
		Price:       d.Price,
		Images:      append([]string(nil), d.Images...),
		Video:       d.Video,
		CreatedAt:   createdAt,
	}
}

// Draft returns the admin-editable fields of f.
func (f FoodItem) Draft() FoodItemDraft {
	return FoodItemDraft{
		Name:        f.Name,
		Description: f.Description,
		Size:        f.Size,
		Price:       f.Price,
		Images:      append([]string(nil), f.Images...),
		Video:       f.Video,
	}
}
