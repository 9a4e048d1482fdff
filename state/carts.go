package state

import (
	"context"
	"time"

	"foodcart/cart"
	"foodcart/models"
)

// CartView is a snapshot of one session's cart.
type CartView struct {
	Items []models.CartItem `json:"items"`
	Count int               `json:"count"`
	Total float64           `json:"total"`
}

func view(c *cart.Cart) CartView {
	return CartView{Items: c.Items(), Count: c.Count(), Total: c.Total()}
}

// cartFor returns the cart for sid, creating it. Callers hold a.mu.
func (a *App) cartFor(sid string) *cart.Cart {
	s, ok := a.carts[sid]
	if !ok {
		s = &session{cart: cart.New()}
		a.carts[sid] = s
	}
	s.seen = a.now()
	return s.cart
}

// Cart returns the cart of session sid.
func (a *App) Cart(sid string) CartView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return view(a.cartFor(sid))
}

// AddToCart adds one unit of menu item itemID to the session's cart.
func (a *App) AddToCart(sid, itemID string) (CartView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	item, ok := a.catalog.Get(itemID)
	if !ok {
		return CartView{}, ErrItemNotFound
	}
	c := a.cartFor(sid)
	c.Add(item)
	return view(c), nil
}

// UpdateCartQuantity sets the quantity of itemID. A quantity of zero or less
// removes the line. Unknown items are ignored.
func (a *App) UpdateCartQuantity(sid, itemID string, quantity int) CartView {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.cartFor(sid)
	c.UpdateQuantity(itemID, quantity)
	return view(c)
}

// RemoveFromCart drops the line for itemID.
func (a *App) RemoveFromCart(sid, itemID string) CartView {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.cartFor(sid)
	c.Remove(itemID)
	return view(c)
}

// ClearCart empties the session's cart.
func (a *App) ClearCart(sid string) CartView {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.cartFor(sid)
	c.Clear()
	return view(c)
}

// Sessions is the number of live carts.
func (a *App) Sessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.carts)
}

// PruneCarts drops carts not touched since before. It returns how many
// were dropped.
func (a *App) PruneCarts(before time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for sid, s := range a.carts {
		if s.seen.Before(before) {
			delete(a.carts, sid)
			n++
		}
	}
	return n
}

func (a *App) janitor(ctx context.Context) {
	if a.cartTTL <= 0 {
		return
	}
	every := a.cartTTL / 4
	if every < time.Second {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.PruneCarts(a.now().Add(-a.cartTTL)); n > 0 {
				a.log.WithField("carts", n).Debug("pruned idle carts")
			}
		}
	}
}
