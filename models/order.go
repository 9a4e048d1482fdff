package models

import (
	"strings"
	"time"
)

// OrderStatus is the stage an order is in.
type OrderStatus string

const (
	StatusPending        OrderStatus = "Pending"          // placed, waiting for the kitchen
	StatusPreparing      OrderStatus = "Preparing"        // being cooked
	StatusPacked         OrderStatus = "Packed"           // ready for pickup by a rider
	StatusOutForDelivery OrderStatus = "Out for Delivery" // with the rider
	StatusDelivered      OrderStatus = "Delivered"        // customer received it
	StatusCancelled      OrderStatus = "Cancelled"        // terminal, outside the track
)

// PaymentMethod is a label chosen at checkout. No payment is processed.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "Cash on Delivery"
	PaymentUPI  PaymentMethod = "UPI"
	PaymentCard PaymentMethod = "Card"
)

// PaymentMethods lists the accepted payment labels in display order.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentUPI, PaymentCard}

// Valid reports whether p is one of PaymentMethods.
func (p PaymentMethod) Valid() bool {
	for _, m := range PaymentMethods {
		if p == m {
			return true
		}
	}
	return false
}

// CustomerDetails identifies who an order is for.
type CustomerDetails struct {
	Name    string `json:"name" bson:"name"`
	Phone   string `json:"phone" bson:"phone"`
	Address string `json:"address" bson:"address"`
	Email   string `json:"email,omitempty" bson:"email,omitempty"`
}

// Missing returns the names of the required fields that are blank.
func (c CustomerDetails) Missing() []string {
	var missing []string
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(c.Address) == "" {
		missing = append(missing, "address")
	}
	return missing
}

// Order is a snapshot of a cart taken at checkout. Only the status fields
// change after creation.
type Order struct {
	ID                    string          `json:"id" bson:"orderid"`
	Customer              CustomerDetails `json:"customer" bson:"customer"`
	Items                 []CartItem      `json:"items" bson:"items"`
	Total                 float64         `json:"total" bson:"total"`
	PaymentMethod         PaymentMethod   `json:"paymentMethod" bson:"payment_method"`
	CreatedAt             time.Time       `json:"createdAt" bson:"created_at"`
	Status                OrderStatus     `json:"status" bson:"status"`
	StatusUpdatedAt       *time.Time      `json:"statusUpdatedAt,omitempty" bson:"status_updated_at,omitempty"`
	EstimatedDeliveryTime *string         `json:"estimatedDeliveryTime,omitempty" bson:"estimated_delivery_time,omitempty"`
}

// Clone returns a deep copy of o.
func (o Order) Clone() Order {
	o.Items = CloneItems(o.Items)
	if o.StatusUpdatedAt != nil {
		t := *o.StatusUpdatedAt
		o.StatusUpdatedAt = &t
	}
	if o.EstimatedDeliveryTime != nil {
		s := *o.EstimatedDeliveryTime
		o.EstimatedDeliveryTime = &s
	}
	return o
}
