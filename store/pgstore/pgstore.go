// Package pgstore keeps menu items and orders in PostgreSQL. Every write
// issues pg_notify on Channel so other instances can follow along.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"foodcart/models"
	"foodcart/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type Store struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

var _ store.Backend = (*Store)(nil)

// Connect opens a pool for dsn and creates the tables if needed.
func Connect(ctx context.Context, dsn string, log logrus.FieldLogger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{pool: pool, log: log.WithField("component", "pgstore")}, nil
}

func (s *Store) Persistent() bool { return true }

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

// notice is the pg_notify payload. Records are re-read by id because
// notification payloads are capped at 8000 bytes.
type notice struct {
	Kind store.EventKind `json:"kind"`
	ID   string          `json:"id"`
}

func notify(ctx context.Context, tx pgx.Tx, kind store.EventKind, id string) error {
	payload, err := json.Marshal(notice{Kind: kind, ID: id})
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, "SELECT pg_notify($1, $2)", Channel, string(payload))
	return err
}

const itemColumns = `id, name, description, size, price, images, video, created_at`

func scanItem(row pgx.Row) (models.FoodItem, error) {
	var it models.FoodItem
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.Size, &it.Price, &it.Images, &it.Video, &it.CreatedAt)
	if len(it.Images) == 0 {
		it.Images = nil
	}
	return it, err
}

func (s *Store) ListItems(ctx context.Context) ([]models.FoodItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+itemColumns+` FROM menu_items ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := []models.FoodItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) getItem(ctx context.Context, id string) (models.FoodItem, error) {
	it, err := scanItem(s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM menu_items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.FoodItem{}, store.ErrNotFound
	}
	return it, err
}

func (s *Store) InsertItem(ctx context.Context, d models.FoodItemDraft) (models.FoodItem, error) {
	item := d.Item(uuid.NewString(), time.Now().UTC().Truncate(time.Microsecond))
	images := item.Images
	if images == nil {
		images = []string{}
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
            INSERT INTO menu_items (`+itemColumns+`)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.ID, item.Name, item.Description, item.Size, item.Price, images, item.Video, item.CreatedAt,
		)
		if err != nil {
			return err
		}
		return notify(ctx, tx, store.ItemCreated, item.ID)
	})
	if err != nil {
		return models.FoodItem{}, fmt.Errorf("insert item: %w", err)
	}
	return item, nil
}

const orderColumns = `id, customer, items, total, payment_method, created_at, status, status_updated_at, estimated_delivery_time`

func scanOrder(row pgx.Row) (models.Order, error) {
	var (
		o               models.Order
		customer, items []byte
	)
	err := row.Scan(&o.ID, &customer, &items, &o.Total, &o.PaymentMethod, &o.CreatedAt, &o.Status, &o.StatusUpdatedAt, &o.EstimatedDeliveryTime)
	if err != nil {
		return models.Order{}, err
	}
	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return models.Order{}, fmt.Errorf("decode customer of %s: %w", o.ID, err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return models.Order{}, fmt.Errorf("decode items of %s: %w", o.ID, err)
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	list := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

func (s *Store) getOrder(ctx context.Context, id string) (models.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, store.ErrNotFound
	}
	return o, err
}

func (s *Store) InsertOrder(ctx context.Context, o models.Order) (models.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = models.StatusPending
	}
	o.CreatedAt = o.CreatedAt.UTC().Truncate(time.Microsecond)

	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return models.Order{}, err
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return models.Order{}, err
	}
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
            INSERT INTO orders (`+orderColumns+`)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			o.ID, customer, items, o.Total, o.PaymentMethod, o.CreatedAt, o.Status, o.StatusUpdatedAt, o.EstimatedDeliveryTime,
		)
		if err != nil {
			return err
		}
		return notify(ctx, tx, store.OrderCreated, o.ID)
	})
	if err != nil {
		return models.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return o, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, eta *string, at time.Time) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE orders
            SET status = $2,
                status_updated_at = $3,
                estimated_delivery_time = COALESCE($4, estimated_delivery_time)
            WHERE id = $1`,
			id, status, at.UTC(), eta,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}
		return notify(ctx, tx, store.OrderUpdated, id)
	})
	if errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("update order %s: %w", id, err)
	}
	return nil
}
