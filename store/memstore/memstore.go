// Package memstore is the in-process store used when nothing is persisted.
package memstore

import (
	"context"
	"sync"
	"time"

	"foodcart/models"
	"foodcart/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store keeps items and orders in memory and fans change events out to
// every subscriber.
type Store struct {
	mu     sync.Mutex
	items  []models.FoodItem
	orders []models.Order
	subs   map[int]chan store.Event
	nextID int
	log    logrus.FieldLogger
}

var _ store.Backend = (*Store)(nil)

// New returns an empty store.
func New(log logrus.FieldLogger) *Store {
	return &Store{
		subs: make(map[int]chan store.Event),
		log:  log.WithField("component", "memstore"),
	}
}

func (s *Store) Persistent() bool { return false }

func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	return nil
}

func (s *Store) ListItems(context.Context) ([]models.FoodItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.FoodItem, len(s.items))
	for i, it := range s.items {
		out[i] = it.Clone()
	}
	return out, nil
}

func (s *Store) InsertItem(ctx context.Context, d models.FoodItemDraft) (models.FoodItem, error) {
	if err := ctx.Err(); err != nil {
		return models.FoodItem{}, err
	}
	item := d.Item(uuid.NewString(), time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]models.FoodItem{item}, s.items...)
	created := item.Clone()
	s.publish(store.Event{Kind: store.ItemCreated, Item: &created})
	return item.Clone(), nil
}

func (s *Store) ListOrders(context.Context) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = o.Clone()
	}
	return out, nil
}

func (s *Store) InsertOrder(ctx context.Context, o models.Order) (models.Order, error) {
	if err := ctx.Err(); err != nil {
		return models.Order{}, err
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = models.StatusPending
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append([]models.Order{o.Clone()}, s.orders...)
	created := o.Clone()
	s.publish(store.Event{Kind: store.OrderCreated, Order: &created})
	return o.Clone(), nil
}

// UpdateOrderStatus changes the status of order id. Nothing is persisted, so
// the update time is not recorded on the order.
func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, eta *string, _ time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID != id {
			continue
		}
		s.orders[i].Status = status
		if eta != nil {
			v := *eta
			s.orders[i].EstimatedDeliveryTime = &v
		}
		updated := s.orders[i].Clone()
		s.publish(store.Event{Kind: store.OrderUpdated, Order: &updated})
		return nil
	}
	return store.ErrNotFound
}

// Subscribe registers a change-feed listener until ctx is done.
func (s *Store) Subscribe(ctx context.Context) (<-chan store.Event, error) {
	ch := make(chan store.Event, store.FeedBuffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}()
	return ch, nil
}

// publish must be called with s.mu held. A full subscriber drops the event
// rather than blocking the writer.
func (s *Store) publish(ev store.Event) {
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.log.WithFields(logrus.Fields{"subscriber": id, "event": ev.Kind}).Warn("change feed full, dropping event")
		}
	}
}
