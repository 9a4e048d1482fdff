package state

import (
	"context"
	"time"

	"foodcart/catalog"
	"foodcart/metrics"
	"foodcart/models"
	"foodcart/store"

	"github.com/sirupsen/logrus"
)

const (
	feedRetryMin = time.Second
	feedRetryMax = 30 * time.Second
)

// Run follows the backend's change feed until ctx is done, applying each
// event with Apply. A lost feed is resubscribed with exponential backoff
// and local state is resynchronized from the stores afterwards. Run also
// prunes idle carts when a CartTTL is set.
func (a *App) Run(ctx context.Context) error {
	go a.janitor(ctx)

	retry := a.retryMin
	for attempt := 0; ; attempt++ {
		events, err := a.backend.Subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.log.WithError(err).WithField("retry_in", retry).Error("change feed unavailable")
		} else {
			if attempt > 0 {
				a.resync(ctx)
			}
			started := time.Now()
			a.follow(ctx, events)
			if ctx.Err() != nil {
				return nil
			}
			if time.Since(started) > a.retryMax {
				retry = a.retryMin
			}
			a.log.WithField("retry_in", retry).Error("change feed closed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retry):
		}
		retry = min(retry*2, a.retryMax)
	}
}

func (a *App) follow(ctx context.Context, events <-chan store.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.Apply(ctx, ev)
		}
	}
}

// resync replays the stores' current contents through Apply so changes
// made while the feed was down are picked up. Records are applied oldest
// first so the collections stay newest first.
func (a *App) resync(ctx context.Context) {
	items, err := a.backend.ListItems(ctx)
	if err != nil {
		a.log.WithError(err).Warn("resync items")
	}
	for i := len(items) - 1; i >= 0; i-- {
		a.Apply(ctx, store.Event{Kind: store.ItemCreated, Item: &items[i]})
	}

	list, err := a.backend.ListOrders(ctx)
	if err != nil {
		a.log.WithError(err).Warn("resync orders")
	}
	for i := len(list) - 1; i >= 0; i-- {
		kind := store.OrderUpdated
		if _, err := a.Order(list[i].ID); err != nil {
			kind = store.OrderCreated
		}
		a.Apply(ctx, store.Event{Kind: kind, Order: &list[i]})
	}
	a.log.WithFields(logrus.Fields{"items": len(items), "orders": len(list)}).Info("state resynchronized")
}

// Apply reconciles one change-feed event with local state. Records are
// matched by id, so echoes of this process's own writes are absorbed
// without duplicates or a second notification. Creation events never
// replace a known record, and status updates older than the local one
// are dropped.
func (a *App) Apply(ctx context.Context, ev store.Event) {
	changed, badge := a.apply(ev)
	if !changed {
		return
	}
	if ev.Kind == store.OrderCreated {
		metrics.NotificationBadge.Set(float64(badge))
	}
	a.log.WithFields(logrus.Fields{"kind": ev.Kind, "id": ev.EntityID()}).Debug("applied remote change")
	a.publish(ctx, Change{Event: ev, Origin: OriginRemote, Badge: badge})
}

func (a *App) apply(ev store.Event) (bool, int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	changed := false
	switch ev.Kind {
	case store.ItemCreated:
		if ev.Item == nil {
			break
		}
		if err := catalog.Validate(ev.Item.Draft()); err != nil {
			a.log.WithError(err).WithField("id", ev.Item.ID).Warn("ignoring invalid menu item")
			break
		}
		changed = a.catalog.Add(*ev.Item)
	case store.OrderCreated:
		if ev.Order == nil {
			break
		}
		if _, known := a.orders.Get(ev.Order.ID); known {
			break
		}
		a.orders.Prepend(*ev.Order)
		a.feed.Push(*ev.Order)
		changed = true
	case store.OrderUpdated:
		if ev.Order == nil {
			break
		}
		prev, had := a.orders.Get(ev.Order.ID)
		if had && olderThan(*ev.Order, prev) {
			a.log.WithField("id", ev.Order.ID).Debug("dropping stale order update")
			break
		}
		a.orders.Upsert(*ev.Order)
		changed = !had || statusChanged(prev, *ev.Order)
	default:
		a.log.WithField("kind", ev.Kind).Warn("ignoring unknown change event")
	}
	return changed, a.feed.Len()
}

// olderThan reports whether next was stamped before cur. Unstamped orders
// cannot be ordered and are never considered older.
func olderThan(next, cur models.Order) bool {
	if next.StatusUpdatedAt == nil || cur.StatusUpdatedAt == nil {
		return false
	}
	return next.StatusUpdatedAt.Before(*cur.StatusUpdatedAt)
}

func statusChanged(prev, next models.Order) bool {
	if prev.Status != next.Status {
		return true
	}
	switch {
	case prev.EstimatedDeliveryTime == nil && next.EstimatedDeliveryTime == nil:
		return false
	case prev.EstimatedDeliveryTime == nil || next.EstimatedDeliveryTime == nil:
		return true
	}
	return *prev.EstimatedDeliveryTime != *next.EstimatedDeliveryTime
}
