package orders

import (
	"bytes"
	"testing"
	"time"

	"foodcart/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var customer = models.CustomerDetails{Name: "Asha", Phone: "9876543210", Address: "12 MG Road"}

func lines() []models.CartItem {
	return []models.CartItem{
		{FoodItem: models.FoodItem{ID: "1", Name: "Thali", Price: 299}, Quantity: 1},
		{FoodItem: models.FoodItem{ID: "2", Name: "Lassi", Price: 149}, Quantity: 2},
	}
}

func TestBuild(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	src := lines()

	o := Build(customer, models.PaymentUPI, src, now)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, 597.0, o.Total)
	assert.Equal(t, now, o.CreatedAt)
	assert.Nil(t, o.StatusUpdatedAt)
	assert.Nil(t, o.EstimatedDeliveryTime)

	src[0].Price = 1
	src[0].Quantity = 50
	assert.Equal(t, 299.0, o.Items[0].Price)
	assert.Equal(t, 1, o.Items[0].Quantity)

	other := Build(customer, models.PaymentUPI, src, now)
	assert.NotEqual(t, o.ID, other.ID)
}

func TestPrependAndList(t *testing.T) {
	m := NewManager(PolicyOpen)
	m.Prepend(models.Order{ID: "a"})
	m.Prepend(models.Order{ID: "b"})

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
}

func TestUpsert(t *testing.T) {
	m := NewManager(PolicyOpen)
	m.Prepend(models.Order{ID: "a", Status: models.StatusPending})

	assert.False(t, m.Upsert(models.Order{ID: "a", Status: models.StatusPacked}))
	assert.Equal(t, 1, m.Len())
	got, _ := m.Get("a")
	assert.Equal(t, models.StatusPacked, got.Status)

	assert.True(t, m.Upsert(models.Order{ID: "b"}))
	assert.Equal(t, "b", m.List()[0].ID)
}

func TestUpdateStatusTouchesOnlyThatOrder(t *testing.T) {
	m := NewManager(PolicyOpen)
	now := time.Now()
	a := Build(customer, models.PaymentCash, lines(), now)
	b := Build(customer, models.PaymentCard, lines(), now)
	m.Prepend(a)
	m.Prepend(b)
	before := m.List()

	require.True(t, m.UpdateStatus(a.ID, models.StatusDelivered, nil, nil))

	after := m.List()
	require.Len(t, after, 2)
	assert.Equal(t, before[0], after[0])

	want := before[1]
	want.Status = models.StatusDelivered
	assert.Equal(t, want, after[1])
}

func TestUpdateStatusOptionalFields(t *testing.T) {
	m := NewManager(PolicyOpen)
	m.Prepend(models.Order{ID: "a"})

	eta := "30 mins"
	at := time.Now()
	m.UpdateStatus("a", models.StatusPreparing, &eta, &at)
	got, _ := m.Get("a")
	require.NotNil(t, got.EstimatedDeliveryTime)
	assert.Equal(t, "30 mins", *got.EstimatedDeliveryTime)
	require.NotNil(t, got.StatusUpdatedAt)

	m.UpdateStatus("a", models.StatusPacked, nil, nil)
	got, _ = m.Get("a")
	assert.Equal(t, "30 mins", *got.EstimatedDeliveryTime)

	eta = "changed outside"
	got, _ = m.Get("a")
	assert.Equal(t, "30 mins", *got.EstimatedDeliveryTime)
}

func TestUpdateStatusUnknownID(t *testing.T) {
	m := NewManager(PolicyOpen)
	m.Prepend(models.Order{ID: "a", Status: models.StatusPending})

	assert.False(t, m.UpdateStatus("nope", models.StatusDelivered, nil, nil))
	got, _ := m.Get("a")
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestLoadSkipsDuplicates(t *testing.T) {
	m := NewManager("")
	m.Load([]models.Order{{ID: "a"}, {ID: "b"}, {ID: "a"}})
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, PolicyOpen, m.Policy())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("Out for Delivery")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOutForDelivery, s)

	_, err = ParseStatus("Lost")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestOpenPolicyAllowsAnything(t *testing.T) {
	for _, from := range Statuses {
		for _, to := range Statuses {
			assert.NoError(t, PolicyOpen.Check(from, to), "%s -> %s", from, to)
		}
	}
	assert.ErrorIs(t, PolicyOpen.Check(models.StatusPending, "Teleported"), ErrInvalidStatus)
}

func TestStrictPolicy(t *testing.T) {
	allowed := [][2]models.OrderStatus{
		{models.StatusPending, models.StatusPreparing},
		{models.StatusPending, models.StatusDelivered},
		{models.StatusPacked, models.StatusOutForDelivery},
		{models.StatusPreparing, models.StatusCancelled},
		{models.StatusDelivered, models.StatusDelivered},
	}
	for _, tc := range allowed {
		assert.NoError(t, PolicyStrict.Check(tc[0], tc[1]), "%s -> %s", tc[0], tc[1])
	}

	rejected := [][2]models.OrderStatus{
		{models.StatusDelivered, models.StatusPending},
		{models.StatusPacked, models.StatusPreparing},
		{models.StatusCancelled, models.StatusPreparing},
		{models.StatusDelivered, models.StatusCancelled},
	}
	for _, tc := range rejected {
		assert.ErrorIs(t, PolicyStrict.Check(tc[0], tc[1]), ErrIllegalTransition, "%s -> %s", tc[0], tc[1])
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("strict")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyOpen, p)

	_, err = ParsePolicy("loose")
	assert.Error(t, err)
}

func TestTrackOrder(t *testing.T) {
	eta := "7:30 PM"
	p := TrackOrder(models.Order{ID: "a", Status: models.StatusPacked, EstimatedDeliveryTime: &eta})

	assert.Equal(t, 2, p.Step)
	assert.False(t, p.Cancelled)
	require.Len(t, p.Steps, len(Track))
	assert.True(t, p.Steps[0].Done)
	assert.True(t, p.Steps[2].Done)
	assert.True(t, p.Steps[2].Current)
	assert.False(t, p.Steps[3].Done)
	assert.Equal(t, "7:30 PM", *p.EstimatedDeliveryTime)

	c := TrackOrder(models.Order{ID: "b", Status: models.StatusCancelled})
	assert.True(t, c.Cancelled)
	assert.Equal(t, -1, c.Step)
	for _, s := range c.Steps {
		assert.False(t, s.Done)
		assert.False(t, s.Current)
	}
}

func TestReceipt(t *testing.T) {
	o := Build(customer, models.PaymentCash, lines(), time.Now())

	pdf, err := Receipt(o, "http://localhost:8080/api/orders/"+o.ID+"/track")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	plain, err := Receipt(o, "")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(plain, []byte("%PDF")))
}
