package service

import (
	"context"

	"github.com/repurpose-hub/checkout-service/internal/clients"
	"github.com/repurpose-hub/checkout-service/internal/models"
)

// EventPublisher emits checkout lifecycle events. Failures are logged by
// the caller and never fail the request.
type EventPublisher interface {
	PublishCheckoutInitiated(ctx context.Context, record *models.CheckoutRecord) error
	PublishCheckoutCompleted(ctx context.Context, record *models.CheckoutRecord) error
	PublishPaymentVerified(ctx context.Context, order *models.GatewayOrder) error
}

// PaymentGateway is the subset of the Razorpay client the services use.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, params *clients.CreateOrderParams) (*clients.RemoteOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*clients.RemotePayment, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

var _ PaymentGateway = (*clients.RazorpayClient)(nil)
