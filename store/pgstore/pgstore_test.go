package pgstore

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"foodcart/models"
	"foodcart/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("FOODCART_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FOODCART_TEST_POSTGRES_DSN not set")
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	s, err := Connect(context.Background(), dsn, log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestItemsAndOrders(t *testing.T) {
	s := connect(t)
	ctx := context.Background()

	item, err := s.InsertItem(ctx, models.FoodItemDraft{Name: "Idli", Price: 60, Images: []string{"/a.png"}})
	require.NoError(t, err)
	got, err := s.getItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.png"}, got.Images)

	o, err := s.InsertOrder(ctx, models.Order{
		Customer:      models.CustomerDetails{Name: "Ravi", Phone: "2", Address: "y"},
		Items:         []models.CartItem{{FoodItem: item, Quantity: 3}},
		Total:         180,
		PaymentMethod: models.PaymentUPI,
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, o.Status)

	require.NoError(t, s.UpdateOrderStatus(ctx, o.ID, models.StatusPacked, nil, time.Now()))
	eta := "8 PM"
	require.NoError(t, s.UpdateOrderStatus(ctx, o.ID, models.StatusOutForDelivery, &eta, time.Now()))
	require.NoError(t, s.UpdateOrderStatus(ctx, o.ID, models.StatusDelivered, nil, time.Now()))
	assert.ErrorIs(t, s.UpdateOrderStatus(ctx, uuid.NewString(), models.StatusPacked, nil, time.Now()), store.ErrNotFound)

	back, err := s.getOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, back.Status)
	require.NotNil(t, back.EstimatedDeliveryTime)
	assert.Equal(t, eta, *back.EstimatedDeliveryTime, "a nil eta keeps the previous one")
	require.NotNil(t, back.StatusUpdatedAt)
	assert.Equal(t, 3, back.Items[0].Quantity)
	assert.Equal(t, "Ravi", back.Customer.Name)
}

func TestSubscribeSeesWrites(t *testing.T) {
	s := connect(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.Subscribe(ctx)
	require.NoError(t, err)

	o, err := s.InsertOrder(ctx, models.Order{
		Customer:      models.CustomerDetails{Name: "Meera", Phone: "3", Address: "z"},
		Items:         []models.CartItem{},
		PaymentMethod: models.PaymentCash,
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.EntityID() != o.ID {
				continue
			}
			assert.Equal(t, store.OrderCreated, ev.Kind)
			assert.Equal(t, "Meera", ev.Order.Customer.Name)
			return
		case <-deadline:
			t.Fatal("no notification received")
		}
	}
}
