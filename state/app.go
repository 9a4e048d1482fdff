// Package state is the single owner of the storefront's collections. Every
// read and write used by the HTTP layer goes through App.
package state

import (
	"context"
	"strings"
	"sync"
	"time"

	"foodcart/cart"
	"foodcart/catalog"
	"foodcart/media"
	"foodcart/metrics"
	"foodcart/models"
	"foodcart/notify"
	"foodcart/orders"
	"foodcart/store"

	"github.com/sirupsen/logrus"
)

// Origin tells publishers whether a change was made by this process or
// arrived through the store's change feed.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Change is an applied state change handed to publishers.
type Change struct {
	store.Event
	Origin Origin
	// Badge is the notification count after the change.
	Badge int
}

// Publisher is told about every change after it has been applied.
// Publish must not block.
type Publisher interface {
	Publish(ctx context.Context, c Change)
}

// Options configures an App.
type Options struct {
	Backend    store.Backend
	Media      media.Store // nil disables uploads
	Policy     orders.Policy
	Publishers []Publisher
	Log        logrus.FieldLogger
	// CartTTL drops carts idle for longer than this. Zero keeps them forever.
	CartTTL time.Duration
	Now     func() time.Time
}

type session struct {
	cart *cart.Cart
	seen time.Time
}

// App composes the catalog, carts, orders and notification feed. A single
// mutex serializes all mutations in arrival order.
type App struct {
	mu      sync.Mutex
	catalog *catalog.Catalog
	orders  *orders.Manager
	feed    *notify.Feed
	carts   map[string]*session

	backend    store.Backend
	media      media.Store
	publishers []Publisher
	cartTTL    time.Duration
	now        func() time.Time
	log        logrus.FieldLogger

	// retryMin and retryMax bound the wait before resubscribing to a lost
	// change feed.
	retryMin, retryMax time.Duration
}

// New builds an App with empty collections. Call Load to fill them from the
// backend and Run to follow its change feed.
func New(opts Options) *App {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &App{
		catalog:    catalog.New(),
		orders:     orders.NewManager(opts.Policy),
		feed:       notify.New(),
		carts:      make(map[string]*session),
		backend:    opts.Backend,
		media:      opts.Media,
		publishers: opts.Publishers,
		cartTTL:    opts.CartTTL,
		now:        now,
		log:        log.WithField("component", "state"),
		retryMin:   feedRetryMin,
		retryMax:   feedRetryMax,
	}
}

// Policy is the order status transition policy in force.
func (a *App) Policy() orders.Policy {
	return a.orders.Policy()
}

// Load replaces local items and orders with the backend's. Loaded orders
// are not added to the notification feed.
func (a *App) Load(ctx context.Context) error {
	items, err := a.backend.ListItems(ctx)
	if err != nil {
		return writeFailed("list items", err)
	}
	list, err := a.backend.ListOrders(ctx)
	if err != nil {
		return writeFailed("list orders", err)
	}

	valid := items[:0]
	for _, it := range items {
		if err := catalog.Validate(it.Draft()); err != nil {
			a.log.WithError(err).WithField("id", it.ID).Warn("skipping invalid menu item")
			continue
		}
		valid = append(valid, it)
	}
	items = valid

	a.mu.Lock()
	defer a.mu.Unlock()
	a.catalog.Load(items)
	a.orders.Load(list)
	a.log.WithFields(logrus.Fields{"items": len(items), "orders": len(list)}).Info("state loaded")
	return nil
}

func (a *App) publish(ctx context.Context, changes ...Change) {
	for _, c := range changes {
		for _, p := range a.publishers {
			p.Publish(ctx, c)
		}
	}
}

// ---- catalog ----

// Menu returns every menu item, newest first.
func (a *App) Menu() []models.FoodItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.catalog.All()
}

// MenuItem returns the item with id.
func (a *App) MenuItem(id string) (models.FoodItem, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.catalog.Get(id)
}

// AddMenuItem uploads any attached media, writes the item to the item store
// and, once the write is acknowledged, adds it to the catalog. A failed
// upload or write leaves the catalog unchanged.
func (a *App) AddMenuItem(ctx context.Context, d models.FoodItemDraft, uploads []media.Upload) (models.FoodItem, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Images = append([]string(nil), d.Images...)
	photos, videos := 0, 0
	for _, u := range uploads {
		switch u.Kind {
		case media.Photo:
			photos++
		case media.Video:
			videos++
		default:
			return models.FoodItem{}, invalid("unsupported media kind %q", u.Kind)
		}
	}
	if len(d.Images)+photos > models.MaxItemImages {
		return models.FoodItem{}, invalid("at most %d images are allowed", models.MaxItemImages)
	}
	if videos > 1 || (videos == 1 && d.Video != "") {
		return models.FoodItem{}, invalid("only one video is allowed")
	}
	if err := catalog.Validate(d); err != nil {
		return models.FoodItem{}, invalid("%v", err)
	}
	if len(uploads) > 0 && a.media == nil {
		return models.FoodItem{}, invalid("media uploads are not configured")
	}

	for _, u := range uploads {
		url, err := a.media.Upload(ctx, u)
		if err != nil {
			if media.Rejected(err) {
				return models.FoodItem{}, invalid("%s: %v", u.Name, err)
			}
			return models.FoodItem{}, writeFailed("upload "+u.Name, err)
		}
		if u.Kind == media.Photo {
			d.Images = append(d.Images, url)
		} else {
			d.Video = url
		}
	}

	item, added, badge, err := a.insertItem(ctx, d)
	if err != nil {
		return models.FoodItem{}, err
	}
	if added {
		a.publish(ctx, Change{Event: store.Event{Kind: store.ItemCreated, Item: &item}, Origin: OriginLocal, Badge: badge})
	}
	a.log.WithFields(logrus.Fields{"item_id": item.ID, "name": item.Name}).Info("menu item added")
	return item.Clone(), nil
}

func (a *App) insertItem(ctx context.Context, d models.FoodItemDraft) (models.FoodItem, bool, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	item, err := a.backend.InsertItem(ctx, d)
	if err != nil {
		return models.FoodItem{}, false, 0, writeFailed("insert item", err)
	}
	return item, a.catalog.Add(item), a.feed.Len(), nil
}

// ---- notifications ----

// Notifications returns orders that arrived since the last clear, most
// recent first.
func (a *App) Notifications() []models.Order {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.feed.List()
}

// NotificationCount is the badge count.
func (a *App) NotificationCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.feed.Len()
}

// ClearNotifications empties the feed. Orders are not touched.
func (a *App) ClearNotifications() {
	a.mu.Lock()
	a.feed.Clear()
	a.mu.Unlock()
	metrics.NotificationBadge.Set(0)
}
