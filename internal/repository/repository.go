// Package repository holds the storage adapters: Postgres for checkout,
// gateway order and eco-impact records, MongoDB for carts and Redis for
// idempotency entries.
package repository

import (
	"context"
	"time"

	"github.com/repurpose-hub/checkout-service/internal/models"
)

// CheckoutRepository persists checkout records.
type CheckoutRepository interface {
	Create(ctx context.Context, record *models.CheckoutRecord) error
	GetByID(ctx context.Context, id string) (*models.CheckoutRecord, error)

	// MarkCompleted moves a pending record to completed. It reports false
	// when the record was not pending anymore.
	MarkCompleted(ctx context.Context, id, gatewayOrderID, gatewayPaymentID string) (bool, error)

	ListByUser(ctx context.Context, userID string) ([]*models.CheckoutRecord, error)
}

// GatewayOrderRepository persists the local copy of Razorpay orders.
type GatewayOrderRepository interface {
	Create(ctx context.Context, order *models.GatewayOrder) error
	GetByOrderID(ctx context.Context, orderID string) (*models.GatewayOrder, error)

	// MarkPaid moves a created order to paid. It reports false when the
	// order was already paid.
	MarkPaid(ctx context.Context, orderID, paymentID string, verifiedAt time.Time) (bool, error)

	// FindPaid returns the paid order matching both gateway ids.
	FindPaid(ctx context.Context, orderID, paymentID string) (*models.GatewayOrder, error)

	FindByPaymentID(ctx context.Context, paymentID string) (*models.GatewayOrder, error)
	ListByUser(ctx context.Context, userID string) ([]*models.GatewayOrder, error)
}

// EcoImpactRepository persists the per-user eco-impact ledger.
type EcoImpactRepository interface {
	Increment(ctx context.Context, userID string, delta models.EcoImpactDelta, badge string, at time.Time) error
	Get(ctx context.Context, userID string) (*models.EcoImpact, error)
	Community(ctx context.Context) (*models.CommunityImpact, error)
}

// CartStore reads and clears carts owned by the cart service.
type CartStore interface {
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	DeleteCart(ctx context.Context, userID string) error
}

// IdempotencyStore keeps idempotency entries with a storage-level TTL.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*models.IdempotencyEntry, error)

	// Reserve inserts entry only if key is absent and reports whether it did.
	Reserve(ctx context.Context, key string, entry *models.IdempotencyEntry, ttl time.Duration) (bool, error)

	Put(ctx context.Context, key string, entry *models.IdempotencyEntry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

var (
	_ CheckoutRepository     = (*PostgresCheckoutRepository)(nil)
	_ GatewayOrderRepository = (*PostgresGatewayOrderRepository)(nil)
	_ EcoImpactRepository    = (*PostgresEcoImpactRepository)(nil)
	_ CartStore              = (*MongoCartStore)(nil)
	_ IdempotencyStore       = (*RedisIdempotencyStore)(nil)
)
