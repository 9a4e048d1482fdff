package state

import (
	"context"
	"errors"
	"strings"

	"foodcart/metrics"
	"foodcart/models"
	"foodcart/orders"
	"foodcart/store"

	"github.com/sirupsen/logrus"
)

// PlaceOrder turns the session's cart into a Pending order. The order is
// written to the order store first; only after the write is acknowledged is
// it added to the orders collection and the notification feed and the cart
// cleared. A failed write leaves every collection untouched.
func (a *App) PlaceOrder(ctx context.Context, sid string, customer models.CustomerDetails, payment models.PaymentMethod) (models.Order, error) {
	customer = models.CustomerDetails{
		Name:    strings.TrimSpace(customer.Name),
		Phone:   strings.TrimSpace(customer.Phone),
		Address: strings.TrimSpace(customer.Address),
		Email:   strings.TrimSpace(customer.Email),
	}
	if missing := customer.Missing(); len(missing) > 0 {
		return models.Order{}, invalid("missing %s", strings.Join(missing, ", "))
	}
	if !payment.Valid() {
		return models.Order{}, ErrInvalidPayment
	}

	saved, badge, err := a.commitOrder(ctx, sid, customer, payment)
	if err != nil {
		return models.Order{}, err
	}

	metrics.OrdersPlaced.WithLabelValues(string(saved.PaymentMethod)).Inc()
	metrics.NotificationBadge.Set(float64(badge))
	a.publish(ctx, Change{Event: store.Event{Kind: store.OrderCreated, Order: &saved}, Origin: OriginLocal, Badge: badge})
	a.log.WithFields(logrus.Fields{"order_id": saved.ID, "total": saved.Total, "items": len(saved.Items)}).Info("order placed")
	return saved.Clone(), nil
}

// UpdateOrderStatus moves order id to status, optionally replacing its
// estimated delivery time. The store is written first. Unknown ids return
// ErrOrderNotFound and change nothing.
func (a *App) UpdateOrderStatus(ctx context.Context, id, status string, eta *string) (models.Order, error) {
	next, err := orders.ParseStatus(status)
	if err != nil {
		return models.Order{}, invalid("%v", err)
	}
	if eta != nil {
		v := strings.TrimSpace(*eta)
		eta = &v
	}

	cur, updated, badge, err := a.commitStatus(ctx, id, next, eta)
	if err != nil {
		return models.Order{}, err
	}

	metrics.StatusTransitions.WithLabelValues(string(cur.Status), string(next)).Inc()
	a.publish(ctx, Change{Event: store.Event{Kind: store.OrderUpdated, Order: &updated}, Origin: OriginLocal, Badge: badge})
	a.log.WithFields(logrus.Fields{"order_id": id, "from": cur.Status, "to": next}).Info("order status updated")
	return updated, nil
}

// commitOrder writes the order built from the session's cart and, once the
// write is acknowledged, applies it locally.
func (a *App) commitOrder(ctx context.Context, sid string, customer models.CustomerDetails, payment models.PaymentMethod) (models.Order, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.cartFor(sid)
	if c.Len() == 0 {
		return models.Order{}, 0, ErrEmptyCart
	}
	o := orders.Build(customer, payment, c.Items(), a.now())
	saved, err := a.backend.InsertOrder(ctx, o)
	if err != nil {
		a.log.WithError(err).WithField("session", sid).Error("order write failed")
		return models.Order{}, 0, writeFailed("insert order", err)
	}
	a.orders.Prepend(saved)
	a.feed.Push(saved)
	c.Clear()
	return saved, a.feed.Len(), nil
}

// commitStatus returns the order before and after the change.
func (a *App) commitStatus(ctx context.Context, id string, next models.OrderStatus, eta *string) (models.Order, models.Order, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur, ok := a.orders.Get(id)
	if !ok {
		return models.Order{}, models.Order{}, 0, ErrOrderNotFound
	}
	if err := a.orders.Policy().Check(cur.Status, next); err != nil {
		return models.Order{}, models.Order{}, 0, err
	}
	at := a.now()
	if err := a.backend.UpdateOrderStatus(ctx, id, next, eta, at); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Order{}, models.Order{}, 0, ErrOrderNotFound
		}
		return models.Order{}, models.Order{}, 0, writeFailed("update order status", err)
	}
	var stamp = &at
	if !a.backend.Persistent() {
		stamp = nil
	}
	a.orders.UpdateStatus(id, next, eta, stamp)
	updated, _ := a.orders.Get(id)
	return cur, updated, a.feed.Len(), nil
}

// Orders returns every order, most recent first.
func (a *App) Orders() []models.Order {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orders.List()
}

// Order returns order id.
func (a *App) Order(id string) (models.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	o, ok := a.orders.Get(id)
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	return o, nil
}
