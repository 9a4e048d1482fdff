package state

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"foodcart/media"
	"foodcart/models"
	"foodcart/orders"
	"foodcart/store"
	"foodcart/store/memstore"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// flakyStore fails the writes it is told to and can pretend to persist.
type flakyStore struct {
	*memstore.Store
	failItems   bool
	failOrders  bool
	failUpdates bool
	panicOrders bool
	persistent  bool
}

func (f *flakyStore) Persistent() bool { return f.persistent }

func (f *flakyStore) InsertItem(ctx context.Context, d models.FoodItemDraft) (models.FoodItem, error) {
	if f.failItems {
		return models.FoodItem{}, errBoom
	}
	return f.Store.InsertItem(ctx, d)
}

func (f *flakyStore) InsertOrder(ctx context.Context, o models.Order) (models.Order, error) {
	if f.panicOrders {
		panic("order store crashed")
	}
	if f.failOrders {
		return models.Order{}, errBoom
	}
	return f.Store.InsertOrder(ctx, o)
}

func (f *flakyStore) UpdateOrderStatus(ctx context.Context, id string, s models.OrderStatus, eta *string, at time.Time) error {
	if f.failUpdates {
		return errBoom
	}
	return f.Store.UpdateOrderStatus(ctx, id, s, eta, at)
}

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) Publish(_ context.Context, c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

type fakeMedia struct {
	err     error
	uploads []media.Upload
}

func (m *fakeMedia) Upload(_ context.Context, u media.Upload) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.uploads = append(m.uploads, u)
	return "/static/uploads/" + u.Name, nil
}

type fixture struct {
	app     *App
	backend *flakyStore
	rec     *recorder
	media   *fakeMedia
	now     time.Time
}

func newFixture(t *testing.T, policy orders.Policy) *fixture {
	t.Helper()
	f := &fixture{
		backend: &flakyStore{Store: memstore.New(quietLog())},
		rec:     &recorder{},
		media:   &fakeMedia{},
		now:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.app = New(Options{
		Backend:    f.backend,
		Media:      f.media,
		Policy:     policy,
		Publishers: []Publisher{f.rec},
		Log:        quietLog(),
		Now:        func() time.Time { return f.now },
	})
	require.NoError(t, f.app.Load(context.Background()))
	return f
}

func (f *fixture) item(t *testing.T, name string, price float64) models.FoodItem {
	t.Helper()
	it, err := f.app.AddMenuItem(context.Background(), models.FoodItemDraft{Name: name, Price: price}, nil)
	require.NoError(t, err)
	return it
}

var asha = models.CustomerDetails{Name: "Asha", Phone: "98450", Address: "12 MG Road"}

func TestPlaceOrderSnapshotsCart(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	ctx := context.Background()
	dosa := f.item(t, "Masala Dosa", 80)
	chai := f.item(t, "Chai", 15.5)

	_, err := f.app.AddToCart("s1", dosa.ID)
	require.NoError(t, err)
	f.app.AddToCart("s1", dosa.ID)
	cv, err := f.app.AddToCart("s1", chai.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, cv.Count)
	assert.InDelta(t, 175.5, cv.Total, 1e-9)

	o, err := f.app.PlaceOrder(ctx, "s1", models.CustomerDetails{Name: " Asha ", Phone: "98450", Address: "MG Road"}, models.PaymentUPI)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, "Asha", o.Customer.Name)
	assert.InDelta(t, 175.5, o.Total, 1e-9)
	assert.Len(t, o.Items, 2)
	assert.Equal(t, f.now, o.CreatedAt)

	assert.Equal(t, 0, f.app.Cart("s1").Count)
	assert.Equal(t, 1, f.app.NotificationCount())
	require.Len(t, f.app.Orders(), 1)
	assert.Equal(t, o.ID, f.app.Orders()[0].ID)

	changes := f.rec.all()
	last := changes[len(changes)-1]
	assert.Equal(t, store.OrderCreated, last.Kind)
	assert.Equal(t, OriginLocal, last.Origin)
	assert.Equal(t, 1, last.Badge)
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	ctx := context.Background()
	dosa := f.item(t, "Dosa", 80)

	_, err := f.app.PlaceOrder(ctx, "s1", asha, models.PaymentCash)
	assert.ErrorIs(t, err, ErrEmptyCart)

	f.app.AddToCart("s1", dosa.ID)
	_, err = f.app.PlaceOrder(ctx, "s1", models.CustomerDetails{Name: "Asha", Phone: " "}, models.PaymentCash)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "phone, address")

	_, err = f.app.PlaceOrder(ctx, "s1", asha, "Bitcoin")
	assert.ErrorIs(t, err, ErrInvalidPayment)

	assert.Empty(t, f.app.Orders())
	assert.Equal(t, 1, f.app.Cart("s1").Count)
}

func TestPlaceOrderWriteFailureChangesNothing(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	dosa := f.item(t, "Dosa", 80)
	f.app.AddToCart("s1", dosa.ID)
	before := len(f.rec.all())

	f.backend.failOrders = true
	_, err := f.app.PlaceOrder(context.Background(), "s1", asha, models.PaymentCard)
	require.ErrorIs(t, err, ErrWrite)
	assert.ErrorIs(t, err, errBoom)

	assert.Empty(t, f.app.Orders())
	assert.Zero(t, f.app.NotificationCount())
	assert.Equal(t, 1, f.app.Cart("s1").Count)
	assert.Len(t, f.rec.all(), before)
}

func TestCartsAreIsolatedPerSession(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	dosa := f.item(t, "Dosa", 80)

	f.app.AddToCart("a", dosa.ID)
	assert.Equal(t, 0, f.app.Cart("b").Count)

	_, err := f.app.AddToCart("a", "nope")
	assert.ErrorIs(t, err, ErrItemNotFound)

	cv := f.app.UpdateCartQuantity("a", dosa.ID, 4)
	assert.Equal(t, 4, cv.Count)
	cv = f.app.UpdateCartQuantity("a", dosa.ID, 0)
	assert.Equal(t, 0, cv.Count)

	f.app.AddToCart("a", dosa.ID)
	assert.Equal(t, 0, f.app.RemoveFromCart("a", dosa.ID).Count)
	f.app.AddToCart("a", dosa.ID)
	assert.Equal(t, 0, f.app.ClearCart("a").Count)
	assert.Equal(t, 2, f.app.Sessions())
}

func TestPruneCarts(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	f.app.Cart("old")
	f.now = f.now.Add(time.Hour)
	f.app.Cart("fresh")

	assert.Equal(t, 1, f.app.PruneCarts(f.now.Add(-30*time.Minute)))
	assert.Equal(t, 1, f.app.Sessions())
}

func placeOne(t *testing.T, f *fixture) models.Order {
	t.Helper()
	dosa := f.item(t, "Dosa", 80)
	f.app.AddToCart("s1", dosa.ID)
	o, err := f.app.PlaceOrder(context.Background(), "s1", asha, models.PaymentCash)
	require.NoError(t, err)
	return o
}

func TestUpdateOrderStatusOpenPolicy(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	ctx := context.Background()
	o := placeOne(t, f)

	eta := " 7:30 PM "
	got, err := f.app.UpdateOrderStatus(ctx, o.ID, "Delivered", &eta)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, got.Status)
	require.NotNil(t, got.EstimatedDeliveryTime)
	assert.Equal(t, "7:30 PM", *got.EstimatedDeliveryTime)
	assert.Nil(t, got.StatusUpdatedAt, "memory backend does not stamp updates")

	got, err = f.app.UpdateOrderStatus(ctx, o.ID, "Pending", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, "7:30 PM", *got.EstimatedDeliveryTime)

	last := f.rec.all()[len(f.rec.all())-1]
	assert.Equal(t, store.OrderUpdated, last.Kind)
	assert.Equal(t, models.StatusPending, last.Order.Status)
}

func TestUpdateOrderStatusErrors(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	ctx := context.Background()
	o := placeOne(t, f)

	_, err := f.app.UpdateOrderStatus(ctx, "missing", "Packed", nil)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.app.UpdateOrderStatus(ctx, o.ID, "Lost", nil)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, orders.ErrInvalidStatus)

	f.backend.failUpdates = true
	_, err = f.app.UpdateOrderStatus(ctx, o.ID, "Packed", nil)
	assert.ErrorIs(t, err, ErrWrite)

	cur, err := f.app.Order(o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, cur.Status)
}

func TestUpdateOrderStatusStrictPolicy(t *testing.T) {
	f := newFixture(t, orders.PolicyStrict)
	ctx := context.Background()
	o := placeOne(t, f)

	_, err := f.app.UpdateOrderStatus(ctx, o.ID, "Packed", nil)
	require.NoError(t, err)
	_, err = f.app.UpdateOrderStatus(ctx, o.ID, "Preparing", nil)
	assert.ErrorIs(t, err, orders.ErrIllegalTransition)
	_, err = f.app.UpdateOrderStatus(ctx, o.ID, "Cancelled", nil)
	require.NoError(t, err)
	_, err = f.app.UpdateOrderStatus(ctx, o.ID, "Pending", nil)
	assert.ErrorIs(t, err, orders.ErrIllegalTransition)

	cur, _ := f.app.Order(o.ID)
	assert.Equal(t, models.StatusCancelled, cur.Status)
}

func TestPersistentBackendStampsStatusChanges(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	f.backend.persistent = true
	o := placeOne(t, f)

	f.now = f.now.Add(10 * time.Minute)
	got, err := f.app.UpdateOrderStatus(context.Background(), o.ID, "Preparing", nil)
	require.NoError(t, err)
	require.NotNil(t, got.StatusUpdatedAt)
	assert.Equal(t, f.now, *got.StatusUpdatedAt)
}

func TestAddMenuItem(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	ctx := context.Background()

	it, err := f.app.AddMenuItem(ctx, models.FoodItemDraft{Name: "  Idli ", Price: 60, Images: []string{"/a.png"}},
		[]media.Upload{
			{Kind: media.Photo, Name: "b.png", Body: bytes.NewReader(nil)},
			{Kind: media.Video, Name: "c.mp4", Body: bytes.NewReader(nil)},
		})
	require.NoError(t, err)
	assert.Equal(t, "Idli", it.Name)
	assert.Equal(t, []string{"/a.png", "/static/uploads/b.png"}, it.Images)
	assert.Equal(t, "/static/uploads/c.mp4", it.Video)

	got, ok := f.app.MenuItem(it.ID)
	require.True(t, ok)
	assert.Equal(t, it, got)
	assert.Equal(t, it.ID, f.app.Menu()[0].ID)

	last := f.rec.all()[len(f.rec.all())-1]
	assert.Equal(t, store.ItemCreated, last.Kind)
}

func TestAddMenuItemRejectsBadDrafts(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	ctx := context.Background()
	photo := media.Upload{Kind: media.Photo, Name: "p.png", Body: bytes.NewReader(nil)}

	cases := map[string]struct {
		draft   models.FoodItemDraft
		uploads []media.Upload
	}{
		"blank name":     {draft: models.FoodItemDraft{Name: "  ", Price: 10}},
		"negative price": {draft: models.FoodItemDraft{Name: "x", Price: -1}},
		"three images":   {draft: models.FoodItemDraft{Name: "x", Images: []string{"/1", "/2"}}, uploads: []media.Upload{photo}},
		"two videos": {draft: models.FoodItemDraft{Name: "x", Video: "/v.mp4"},
			uploads: []media.Upload{{Kind: media.Video, Name: "v.mp4"}}},
		"unknown kind": {draft: models.FoodItemDraft{Name: "x"}, uploads: []media.Upload{{Kind: "audio", Name: "a.mp3"}}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.app.AddMenuItem(ctx, tc.draft, tc.uploads)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Empty(t, f.app.Menu())
	assert.Empty(t, f.media.uploads)
}

func TestAddMenuItemFailuresLeaveCatalogAlone(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	ctx := context.Background()
	photo := []media.Upload{{Kind: media.Photo, Name: "p.png", Body: bytes.NewReader(nil)}}
	draft := models.FoodItemDraft{Name: "Vada", Price: 30}

	f.media.err = errBoom
	_, err := f.app.AddMenuItem(ctx, draft, photo)
	assert.ErrorIs(t, err, ErrWrite)

	f.media.err = media.ErrInvalidMIME
	_, err = f.app.AddMenuItem(ctx, draft, photo)
	assert.ErrorIs(t, err, ErrValidation)

	f.media.err = nil
	f.backend.failItems = true
	_, err = f.app.AddMenuItem(ctx, draft, nil)
	assert.ErrorIs(t, err, ErrWrite)

	assert.Empty(t, f.app.Menu())
	assert.Empty(t, f.rec.all())
}

func TestAddMenuItemWithoutMediaStore(t *testing.T) {
	app := New(Options{Backend: memstore.New(quietLog()), Log: quietLog()})
	_, err := app.AddMenuItem(context.Background(), models.FoodItemDraft{Name: "x"},
		[]media.Upload{{Kind: media.Photo, Name: "p.png"}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestClearNotificationsKeepsOrders(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	o := placeOne(t, f)
	require.Len(t, f.app.Notifications(), 1)

	f.app.ClearNotifications()
	assert.Zero(t, f.app.NotificationCount())
	assert.Empty(t, f.app.Notifications())
	_, err := f.app.Order(o.ID)
	assert.NoError(t, err)
}

func TestApplyAbsorbsEchoes(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	ctx := context.Background()
	o := placeOne(t, f)
	it := f.app.Menu()[0]
	before := len(f.rec.all())

	f.app.Apply(ctx, store.Event{Kind: store.OrderCreated, Order: &o})
	f.app.Apply(ctx, store.Event{Kind: store.ItemCreated, Item: &it})
	f.app.Apply(ctx, store.Event{Kind: store.OrderUpdated, Order: &o})

	assert.Len(t, f.app.Orders(), 1)
	assert.Len(t, f.app.Menu(), 1)
	assert.Equal(t, 1, f.app.NotificationCount())
	assert.Len(t, f.rec.all(), before)
}

func TestApplyRemoteChanges(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	ctx := context.Background()

	remote := models.Order{ID: "r1", Customer: asha, Status: models.StatusPending, CreatedAt: f.now}
	f.app.Apply(ctx, store.Event{Kind: store.OrderCreated, Order: &remote})
	assert.Equal(t, 1, f.app.NotificationCount())

	remote.Status = models.StatusPacked
	f.app.Apply(ctx, store.Event{Kind: store.OrderUpdated, Order: &remote})
	cur, err := f.app.Order("r1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPacked, cur.Status)

	f.app.Apply(ctx, store.Event{Kind: "order.deleted"})

	changes := f.rec.all()
	require.Len(t, changes, 2)
	for _, c := range changes {
		assert.Equal(t, OriginRemote, c.Origin)
	}
	assert.Equal(t, 1, changes[0].Badge)
}

func TestRunFollowsSharedBackend(t *testing.T) {
	backend := memstore.New(quietLog())
	first := New(Options{Backend: backend, Log: quietLog()})
	second := New(Options{Backend: backend, Log: quietLog()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- first.Run(ctx) }()
	// Subscription is registered asynchronously.
	require.Eventually(t, func() bool {
		if _, err := second.AddMenuItem(ctx, models.FoodItemDraft{Name: "Poha", Price: 35}, nil); err != nil {
			return false
		}
		return len(first.Menu()) > 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestPanickingStoreReleasesLock(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	dosa := f.item(t, "Dosa", 80)
	f.app.AddToCart("s1", dosa.ID)

	f.backend.panicOrders = true
	assert.Panics(t, func() {
		f.app.PlaceOrder(context.Background(), "s1", asha, models.PaymentCash)
	})

	done := make(chan struct{})
	go func() {
		f.app.Orders()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("state lock still held after a panicking write")
	}
	assert.Equal(t, 1, f.app.Cart("s1").Count)
}

func TestLateCreatedEchoKeepsNewerStatus(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	ctx := context.Background()
	o := placeOne(t, f)
	_, err := f.app.UpdateOrderStatus(ctx, o.ID, "Preparing", nil)
	require.NoError(t, err)
	before := len(f.rec.all())

	f.app.Apply(ctx, store.Event{Kind: store.OrderCreated, Order: &o})

	cur, err := f.app.Order(o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, cur.Status)
	assert.Len(t, f.rec.all(), before)
}

func TestStaleUpdateEchoIsDropped(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	f.backend.persistent = true
	ctx := context.Background()
	o := placeOne(t, f)

	f.now = f.now.Add(time.Minute)
	preparing, err := f.app.UpdateOrderStatus(ctx, o.ID, "Preparing", nil)
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	_, err = f.app.UpdateOrderStatus(ctx, o.ID, "Packed", nil)
	require.NoError(t, err)
	before := len(f.rec.all())

	f.app.Apply(ctx, store.Event{Kind: store.OrderUpdated, Order: &preparing})

	cur, err := f.app.Order(o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPacked, cur.Status)
	assert.Len(t, f.rec.all(), before)

	// A newer update from another instance still wins.
	later := cur.Clone()
	later.Status = models.StatusOutForDelivery
	at := f.now.Add(time.Minute)
	later.StatusUpdatedAt = &at
	f.app.Apply(ctx, store.Event{Kind: store.OrderUpdated, Order: &later})
	cur, _ = f.app.Order(o.ID)
	assert.Equal(t, models.StatusOutForDelivery, cur.Status)
}

func TestApplyIgnoresInvalidItems(t *testing.T) {
	f := newFixture(t, orders.PolicyOpen)
	bad := models.FoodItem{ID: "nan", Name: "Broken", Price: math.NaN()}
	f.app.Apply(context.Background(), store.Event{Kind: store.ItemCreated, Item: &bad})
	assert.Empty(t, f.app.Menu())
	assert.Empty(t, f.rec.all())
}

// lossyFeed loses its change feed on the first subscription and refuses
// the second.
type lossyFeed struct {
	*memstore.Store
	mu    sync.Mutex
	calls int
}

func (l *lossyFeed) Subscribe(ctx context.Context) (<-chan store.Event, error) {
	l.mu.Lock()
	l.calls++
	n := l.calls
	l.mu.Unlock()
	switch n {
	case 1:
		ch := make(chan store.Event)
		close(ch)
		return ch, nil
	case 2:
		return nil, errBoom
	}
	return l.Store.Subscribe(ctx)
}

func (l *lossyFeed) subscriptions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestRunResubscribesAndResyncs(t *testing.T) {
	backend := &lossyFeed{Store: memstore.New(quietLog())}
	rec := &recorder{}
	app := New(Options{Backend: backend, Publishers: []Publisher{rec}, Log: quietLog()})
	app.retryMin, app.retryMax = 5*time.Millisecond, 20*time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.Load(ctx))

	// Written while the feed is down.
	missed, err := backend.InsertItem(ctx, models.FoodItemDraft{Name: "Poha", Price: 35})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := app.MenuItem(missed.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, backend.subscriptions(), 3)
	require.NotEmpty(t, rec.all())
	assert.Equal(t, OriginRemote, rec.all()[0].Origin)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
