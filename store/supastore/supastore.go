// Package supastore keeps menu items and orders in a Supabase project,
// using PostgREST for reads and writes and Realtime for the change feed.
// The tables match the ones pgstore creates.
package supastore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"foodcart/models"
	"foodcart/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	itemsTable  = "menu_items"
	ordersTable = "orders"
)

type Store struct {
	rest  *rest
	wsURL string
	log   logrus.FieldLogger
}

var _ store.Backend = (*Store)(nil)

type Config struct {
	URL    string
	APIKey string
	// HTTPClient defaults to one with a 30 second timeout.
	HTTPClient *http.Client
}

func New(cfg Config, log logrus.FieldLogger) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("APIKey is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	base := strings.TrimSuffix(cfg.URL, "/")
	return &Store{
		rest:  &rest{baseURL: base, apiKey: cfg.APIKey, httpClient: hc},
		wsURL: wsURL(base, cfg.APIKey),
		log:   log.WithField("component", "supastore"),
	}, nil
}

func (s *Store) Persistent() bool { return true }

func (s *Store) Close(context.Context) error { return nil }

type itemRow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Size        string    `json:"size"`
	Price       float64   `json:"price"`
	Images      []string  `json:"images"`
	Video       string    `json:"video"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r itemRow) item() models.FoodItem {
	it := models.FoodItem{
		ID: r.ID, Name: r.Name, Description: r.Description, Size: r.Size,
		Price: r.Price, Video: r.Video, CreatedAt: r.CreatedAt,
	}
	if len(r.Images) > 0 {
		it.Images = r.Images
	}
	return it
}

func toItemRow(it models.FoodItem) itemRow {
	images := it.Images
	if images == nil {
		images = []string{}
	}
	return itemRow{
		ID: it.ID, Name: it.Name, Description: it.Description, Size: it.Size,
		Price: it.Price, Images: images, Video: it.Video, CreatedAt: it.CreatedAt,
	}
}

type orderRow struct {
	ID                    string                 `json:"id"`
	Customer              models.CustomerDetails `json:"customer"`
	Items                 []models.CartItem      `json:"items"`
	Total                 float64                `json:"total"`
	PaymentMethod         models.PaymentMethod   `json:"payment_method"`
	CreatedAt             time.Time              `json:"created_at"`
	Status                models.OrderStatus     `json:"status"`
	StatusUpdatedAt       *time.Time             `json:"status_updated_at,omitempty"`
	EstimatedDeliveryTime *string                `json:"estimated_delivery_time,omitempty"`
}

func (r orderRow) order() models.Order {
	return models.Order{
		ID: r.ID, Customer: r.Customer, Items: r.Items, Total: r.Total,
		PaymentMethod: r.PaymentMethod, CreatedAt: r.CreatedAt, Status: r.Status,
		StatusUpdatedAt: r.StatusUpdatedAt, EstimatedDeliveryTime: r.EstimatedDeliveryTime,
	}
}

func toOrderRow(o models.Order) orderRow {
	items := o.Items
	if items == nil {
		items = []models.CartItem{}
	}
	return orderRow{
		ID: o.ID, Customer: o.Customer, Items: items, Total: o.Total,
		PaymentMethod: o.PaymentMethod, CreatedAt: o.CreatedAt, Status: o.Status,
		StatusUpdatedAt: o.StatusUpdatedAt, EstimatedDeliveryTime: o.EstimatedDeliveryTime,
	}
}

func (s *Store) ListItems(ctx context.Context) ([]models.FoodItem, error) {
	var rows []itemRow
	if err := s.rest.do(ctx, http.MethodGet, itemsTable, newestFirst(), nil, &rows); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items := make([]models.FoodItem, len(rows))
	for i, r := range rows {
		items[i] = r.item()
	}
	return items, nil
}

func (s *Store) InsertItem(ctx context.Context, d models.FoodItemDraft) (models.FoodItem, error) {
	item := d.Item(uuid.NewString(), time.Now().UTC().Truncate(time.Microsecond))
	var rows []itemRow
	if err := s.rest.do(ctx, http.MethodPost, itemsTable, nil, toItemRow(item), &rows); err != nil {
		return models.FoodItem{}, fmt.Errorf("insert item: %w", err)
	}
	if len(rows) == 1 {
		return rows[0].item(), nil
	}
	return item, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	var rows []orderRow
	if err := s.rest.do(ctx, http.MethodGet, ordersTable, newestFirst(), nil, &rows); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	list := make([]models.Order, len(rows))
	for i, r := range rows {
		list[i] = r.order()
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
	o.CreatedAt = o.CreatedAt.UTC()
	var rows []orderRow
	if err := s.rest.do(ctx, http.MethodPost, ordersTable, nil, toOrderRow(o), &rows); err != nil {
		return models.Order{}, fmt.Errorf("insert order: %w", err)
	}
	if len(rows) == 1 {
		return rows[0].order(), nil
	}
	return o, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, eta *string, at time.Time) error {
	patch := map[string]any{"status": status, "status_updated_at": at.UTC()}
	if eta != nil {
		patch["estimated_delivery_time"] = *eta
	}
	var rows []orderRow
	if err := s.rest.do(ctx, http.MethodPatch, ordersTable, eq("id", id), patch, &rows); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return store.ErrNotFound
		}
		return fmt.Errorf("update order %s: %w", id, err)
	}
	if len(rows) == 0 {
		return store.ErrNotFound
	}
	return nil
}
