// Package mongostore keeps menu items and orders in MongoDB and follows
// them with change streams.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foodcart/models"
	"foodcart/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ItemsCollection  = "menu_items"
	OrdersCollection = "orders"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	items  *mongo.Collection
	orders *mongo.Collection
	log    logrus.FieldLogger
}

var _ store.Backend = (*Store)(nil)

// Connect opens uri, checks the server answers and makes sure the id
// indexes exist.
func Connect(ctx context.Context, uri, database string, log logrus.FieldLogger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client: client,
		db:     db,
		items:  db.Collection(ItemsCollection),
		orders: db.Collection(OrdersCollection),
		log:    log.WithField("component", "mongostore"),
	}
	if err := s.createIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	for coll, key := range map[*mongo.Collection]string{s.items: "itemid", s.orders: "orderid"} {
		_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: key, Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		})
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (s *Store) Persistent() bool { return true }

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var newestFirst = options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

func (s *Store) ListItems(ctx context.Context) ([]models.FoodItem, error) {
	cur, err := s.items.Find(ctx, bson.M{}, newestFirst)
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	items := []models.FoodItem{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}

func (s *Store) InsertItem(ctx context.Context, d models.FoodItemDraft) (models.FoodItem, error) {
	item := d.Item(uuid.NewString(), time.Now().UTC().Truncate(time.Millisecond))
	if _, err := s.items.InsertOne(ctx, item); err != nil {
		return models.FoodItem{}, fmt.Errorf("insert item: %w", err)
	}
	return item, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	cur, err := s.orders.Find(ctx, bson.M{}, newestFirst)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	list := []models.Order{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return list, nil
}

func (s *Store) InsertOrder(ctx context.Context, o models.Order) (models.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = models.StatusPending
	}
	o.CreatedAt = o.CreatedAt.UTC().Truncate(time.Millisecond)
	if _, err := s.orders.InsertOne(ctx, o); err != nil {
		return models.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return o, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, eta *string, at time.Time) error {
	set := bson.M{"status": status, "status_updated_at": at.UTC()}
	if eta != nil {
		set["estimated_delivery_time"] = *eta
	}
	res, err := s.orders.UpdateOne(ctx, bson.M{"orderid": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update order %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

type namespace struct {
	Coll string `bson:"coll"`
}

type changeDoc struct {
	OperationType string    `bson:"operationType"`
	NS            namespace `bson:"ns"`
	FullDocument  bson.Raw  `bson:"fullDocument"`
}

// Subscribe opens a change stream over both collections. It fails when
// the server does not support change streams (standalone servers).
func (s *Store) Subscribe(ctx context.Context) (<-chan store.Event, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"ns.coll":       bson.M{"$in": bson.A{ItemsCollection, OrdersCollection}},
			"operationType": bson.M{"$in": bson.A{"insert", "update", "replace"}},
		}}},
	}
	cs, err := s.db.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, fmt.Errorf("open change stream: %w", err)
	}

	out := make(chan store.Event, store.FeedBuffer)
	go func() {
		defer close(out)
		defer cs.Close(context.WithoutCancel(ctx))
		for cs.Next(ctx) {
			var doc changeDoc
			if err := cs.Decode(&doc); err != nil {
				s.log.WithError(err).Warn("decode change")
				continue
			}
			ev, err := toEvent(doc)
			if err != nil {
				s.log.WithError(err).Warn("skip change")
				continue
			}
			select {
			case out <- ev:
			default:
				s.log.WithField("id", ev.EntityID()).Warn("change feed full, event dropped")
			}
		}
		if err := cs.Err(); err != nil && !errors.Is(err, context.Canceled) {
			s.log.WithError(err).Warn("change stream ended")
		}
	}()
	return out, nil
}

func toEvent(doc changeDoc) (store.Event, error) {
	if doc.FullDocument == nil {
		return store.Event{}, errors.New("change without full document")
	}
	switch doc.NS.Coll {
	case ItemsCollection:
		var item models.FoodItem
		if err := bson.Unmarshal(doc.FullDocument, &item); err != nil {
			return store.Event{}, err
		}
		return store.Event{Kind: store.ItemCreated, Item: &item}, nil
	case OrdersCollection:
		var o models.Order
		if err := bson.Unmarshal(doc.FullDocument, &o); err != nil {
			return store.Event{}, err
		}
		kind := store.OrderUpdated
		if doc.OperationType == "insert" {
			kind = store.OrderCreated
		}
		return store.Event{Kind: kind, Order: &o}, nil
	}
	return store.Event{}, fmt.Errorf("unexpected collection %q", doc.NS.Coll)
}
