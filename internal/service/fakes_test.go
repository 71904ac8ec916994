package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/repurpose-hub/checkout-service/internal/clients"
	"github.com/repurpose-hub/checkout-service/internal/errors"
	"github.com/repurpose-hub/checkout-service/internal/models"
)

type fakeCarts struct {
	mu        sync.Mutex
	carts     map[string]*models.Cart
	getErr    error
	deleteErr error
	deleted   []string
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{carts: make(map[string]*models.Cart)}
}

func (f *fakeCarts) put(userID string, items ...models.CartItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[userID] = &models.Cart{UserID: userID, Items: items}
}

func (f *fakeCarts) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	cart, ok := f.carts[userID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	copied := *cart
	copied.Items = cart.Snapshot()
	return &copied, nil
}

func (f *fakeCarts) DeleteCart(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.carts, userID)
	f.deleted = append(f.deleted, userID)
	return nil
}

type fakeCheckouts struct {
	mu        sync.Mutex
	records   map[string]models.CheckoutRecord
	createErr error
	creates   int
}

func newFakeCheckouts() *fakeCheckouts {
	return &fakeCheckouts{records: make(map[string]models.CheckoutRecord)}
}

func (f *fakeCheckouts) Create(ctx context.Context, record *models.CheckoutRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.creates++
	f.records[record.ID] = *record
	return nil
}

func (f *fakeCheckouts) GetByID(ctx context.Context, id string) (*models.CheckoutRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return &record, nil
}

func (f *fakeCheckouts) MarkCompleted(ctx context.Context, id, orderID, paymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok || record.Status != models.CheckoutStatusPendingPayment {
		return false, nil
	}
	for otherID, other := range f.records {
		if otherID != id && other.RazorpayOrderID == orderID {
			return false, fmt.Errorf("update checkout: %w", errors.ErrConflict)
		}
	}
	record.Status = models.CheckoutStatusCompleted
	record.RazorpayOrderID = orderID
	record.RazorpayPaymentID = paymentID
	f.records[id] = record
	return true, nil
}

func (f *fakeCheckouts) ListByUser(ctx context.Context, userID string) ([]*models.CheckoutRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.CheckoutRecord, 0)
	for _, r := range f.records {
		if r.UserID == userID {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeCheckouts) only() models.CheckoutRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		return r
	}
	return models.CheckoutRecord{}
}

type fakeGatewayOrders struct {
	mu     sync.Mutex
	orders map[string]models.GatewayOrder
	err    error
}

func newFakeGatewayOrders() *fakeGatewayOrders {
	return &fakeGatewayOrders{orders: make(map[string]models.GatewayOrder)}
}

func (f *fakeGatewayOrders) Create(ctx context.Context, order *models.GatewayOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.orders[order.RazorpayOrderID] = *order
	return nil
}

func (f *fakeGatewayOrders) GetByOrderID(ctx context.Context, orderID string) (*models.GatewayOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	order, ok := f.orders[orderID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return &order, nil
}

func (f *fakeGatewayOrders) MarkPaid(ctx context.Context, orderID, paymentID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok || order.Status != models.GatewayOrderStatusCreated {
		return false, nil
	}
	order.Status = models.GatewayOrderStatusPaid
	order.RazorpayPaymentID = paymentID
	order.PaymentVerifiedAt = &at
	f.orders[orderID] = order
	return true, nil
}

func (f *fakeGatewayOrders) FindPaid(ctx context.Context, orderID, paymentID string) (*models.GatewayOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok || order.RazorpayPaymentID != paymentID || order.Status != models.GatewayOrderStatusPaid {
		return nil, errors.ErrNotFound
	}
	return &order, nil
}

func (f *fakeGatewayOrders) FindByPaymentID(ctx context.Context, paymentID string) (*models.GatewayOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, order := range f.orders {
		if order.RazorpayPaymentID == paymentID {
			order := order
			return &order, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (f *fakeGatewayOrders) ListByUser(ctx context.Context, userID string) ([]*models.GatewayOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.GatewayOrder, 0)
	for _, order := range f.orders {
		if order.UserID == userID {
			order := order
			out = append(out, &order)
		}
	}
	return out, nil
}

type fakeEco struct {
	mu      sync.Mutex
	ledgers map[string]*models.EcoImpact
	err     error
	calls   int
}

func newFakeEco() *fakeEco {
	return &fakeEco{ledgers: make(map[string]*models.EcoImpact)}
}

func (f *fakeEco) Increment(ctx context.Context, userID string, d models.EcoImpactDelta, badge string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	l, ok := f.ledgers[userID]
	if !ok {
		l = &models.EcoImpact{UserID: userID, Badges: []string{}}
		f.ledgers[userID] = l
	}
	l.CO2Saved += d.CO2Saved
	l.WaterSaved += d.WaterSaved
	l.WasteDiverted += d.WasteDiverted
	l.TreesSaved += d.TreesSaved
	l.LastUpdated = at
	for _, b := range l.Badges {
		if b == badge {
			return nil
		}
	}
	l.Badges = append(l.Badges, badge)
	return nil
}

func (f *fakeEco) Get(ctx context.Context, userID string) (*models.EcoImpact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.ledgers[userID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	copied := *l
	return &copied, nil
}

func (f *fakeEco) Community(ctx context.Context) (*models.CommunityImpact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var c models.CommunityImpact
	for _, l := range f.ledgers {
		c.TotalCO2 += l.CO2Saved
		c.TotalWater += l.WaterSaved
		c.TotalWaste += l.WasteDiverted
		c.TotalTrees += l.TreesSaved
		c.TotalUsers++
	}
	return &c, nil
}

// fakeIdempotencyStore has no storage-level TTL; expiry is exercised
// through the guard's clock.
type fakeIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]models.IdempotencyEntry
	err     error
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{entries: make(map[string]models.IdempotencyEntry)}
}

func (f *fakeIdempotencyStore) Get(ctx context.Context, key string) (*models.IdempotencyEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	entry, ok := f.entries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (f *fakeIdempotencyStore) Reserve(ctx context.Context, key string, entry *models.IdempotencyEntry, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.entries[key]; ok {
		return false, nil
	}
	f.entries[key] = *entry
	return true, nil
}

func (f *fakeIdempotencyStore) Put(ctx context.Context, key string, entry *models.IdempotencyEntry, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries[key] = *entry
	return nil
}

func (f *fakeIdempotencyStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

type fakeGateway struct {
	secret    string
	mu        sync.Mutex
	created   []*clients.CreateOrderParams
	payments  map[string]*clients.RemotePayment
	createErr error
	fetches   int32
	block     chan struct{}
	seq       int
}

func newFakeGateway(secret string) *fakeGateway {
	return &fakeGateway{secret: secret, payments: make(map[string]*clients.RemotePayment)}
}

func (f *fakeGateway) CreateOrder(ctx context.Context, params *clients.CreateOrderParams) (*clients.RemoteOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	f.created = append(f.created, params)
	return &clients.RemoteOrder{
		ID:       fmt.Sprintf("order_%d", f.seq),
		Amount:   params.Amount,
		Currency: params.Currency,
		Receipt:  params.Receipt,
		Status:   "created",
	}, nil
}

func (f *fakeGateway) FetchPayment(ctx context.Context, paymentID string) (*clients.RemotePayment, error) {
	atomic.AddInt32(&f.fetches, 1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[paymentID]
	if !ok {
		return nil, errors.NotFound("Payment not found")
	}
	copied := *payment
	return &copied, nil
}

func (f *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return clients.Sign(f.secret, orderID, paymentID) == signature
}

type fakeEvents struct {
	mu    sync.Mutex
	types []string
	err   error
}

func (f *fakeEvents) record(t string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, t)
	return f.err
}

func (f *fakeEvents) PublishCheckoutInitiated(ctx context.Context, r *models.CheckoutRecord) error {
	return f.record("checkout.initiated")
}

func (f *fakeEvents) PublishCheckoutCompleted(ctx context.Context, r *models.CheckoutRecord) error {
	return f.record("checkout.completed")
}

func (f *fakeEvents) PublishPaymentVerified(ctx context.Context, o *models.GatewayOrder) error {
	return f.record("payment.verified")
}

func (f *fakeEvents) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.types...)
}

// testClock is a settable clock shared by every component under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
