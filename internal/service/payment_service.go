package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/repurpose-hub/checkout-service/internal/clients"
	"github.com/repurpose-hub/checkout-service/internal/config"
	"github.com/repurpose-hub/checkout-service/internal/errors"
	"github.com/repurpose-hub/checkout-service/internal/logging"
	"github.com/repurpose-hub/checkout-service/internal/models"
	"github.com/repurpose-hub/checkout-service/internal/repository"
)

// VerifyOutcome is the result of a payment signature check.
type VerifyOutcome int

const (
	VerifyOK VerifyOutcome = iota
	VerifyInvalidSignature
	VerifyOrderNotFound
	VerifyAlreadyPaid
	VerifyFailed
)

func (o VerifyOutcome) String() string {
	switch o {
	case VerifyOK:
		return "ok"
	case VerifyInvalidSignature:
		return "invalid_signature"
	case VerifyOrderNotFound:
		return "order_not_found"
	case VerifyAlreadyPaid:
		return "already_paid"
	default:
		return "failed"
	}
}

// Succeeded reports whether the payment counts as verified.
func (o VerifyOutcome) Succeeded() bool {
	return o == VerifyOK || o == VerifyAlreadyPaid
}

// PaymentService handles payment-related business logic.
type PaymentService struct {
	gateway       PaymentGateway
	gatewayOrders repository.GatewayOrderRepository
	events        EventPublisher
	currency      string
	lookups       singleflight.Group
	now           Clock
	logger        *logging.LoggerV2
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	gateway PaymentGateway,
	gatewayOrders repository.GatewayOrderRepository,
	events EventPublisher,
	cfg config.CheckoutConfig,
) *PaymentService {
	currency := cfg.Currency
	if currency == "" {
		currency = "INR"
	}
	return &PaymentService{
		gateway:       gateway,
		gatewayOrders: gatewayOrders,
		events:        events,
		currency:      currency,
		now:           time.Now,
		logger:        logging.NewLoggerV2("payment-service"),
	}
}

// CreateRemoteOrder opens a Razorpay order and keeps a local copy.
func (s *PaymentService) CreateRemoteOrder(ctx context.Context, req *models.CreatePaymentOrderRequest) (*models.CreatePaymentOrderResponse, error) {
	if err := ValidateCreatePaymentOrderRequest(req); err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}
	paise := models.ToMinorUnits(req.Amount)

	receipt := newReceipt(req.UserID)
	notes := map[string]string{"user_id": req.UserID}
	if req.CheckoutID != "" {
		notes["checkout_id"] = req.CheckoutID
	}

	remote, err := s.gateway.CreateOrder(ctx, &clients.CreateOrderParams{
		Amount:         paise,
		Currency:       currency,
		Receipt:        receipt,
		Notes:          notes,
		PaymentCapture: 1,
	})
	if err != nil {
		s.logger.Error("Failed to create gateway order", logging.Fields{
			"user_id": req.UserID,
			"error":   err.Error(),
		})
		return nil, err
	}

	status := models.GatewayOrderStatus(remote.Status)
	if status == "" {
		status = models.GatewayOrderStatusCreated
	}
	now := s.now().UTC()
	order := &models.GatewayOrder{
		RazorpayOrderID: remote.ID,
		UserID:          req.UserID,
		CheckoutID:      req.CheckoutID,
		Amount:          req.Amount,
		AmountInPaise:   paise,
		Currency:        currency,
		Status:          status,
		Receipt:         receipt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.gatewayOrders.Create(ctx, order); err != nil {
		return nil, errors.Storage("store gateway order", err)
	}

	s.logger.Info("Gateway order created", logging.Fields{
		"razorpay_order_id": order.RazorpayOrderID,
		"user_id":           order.UserID,
		"amount_in_paise":   paise,
	})
	return &models.CreatePaymentOrderResponse{OrderID: remote.ID}, nil
}

func newReceipt(userID string) string {
	return fmt.Sprintf("receipt_%s_%s", userID, uuid.NewString()[:8])
}

// VerifySignature checks the checkout signature and marks the order paid.
func (s *PaymentService) VerifySignature(ctx context.Context, req *models.VerifyPaymentRequest) (VerifyOutcome, error) {
	if err := ValidateVerifyPaymentRequest(req); err != nil {
		return VerifyFailed, err
	}
	log := s.logger.With(logging.Fields{
		"razorpay_order_id":   req.OrderID,
		"razorpay_payment_id": req.RazorpayPaymentID,
	})

	order, err := s.gatewayOrders.GetByOrderID(ctx, req.OrderID)
	if errors.Is(err, errors.ErrNotFound) {
		return VerifyOrderNotFound, nil
	}
	if err != nil {
		return VerifyFailed, errors.Storage("read gateway order", err)
	}

	if !s.gateway.VerifySignature(req.OrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		log.Warn("Invalid payment signature")
		return VerifyInvalidSignature, nil
	}

	if order.IsPaid() {
		return s.alreadyPaid(order, req.RazorpayPaymentID)
	}

	verifiedAt := s.now().UTC()
	applied, err := s.gatewayOrders.MarkPaid(ctx, req.OrderID, req.RazorpayPaymentID, verifiedAt)
	if err != nil {
		return VerifyFailed, errors.Storage("mark gateway order paid", err)
	}
	if !applied {
		current, err := s.gatewayOrders.GetByOrderID(ctx, req.OrderID)
		if err != nil {
			return VerifyFailed, errors.Storage("read gateway order", err)
		}
		return s.alreadyPaid(current, req.RazorpayPaymentID)
	}

	order.Status = models.GatewayOrderStatusPaid
	order.RazorpayPaymentID = req.RazorpayPaymentID
	order.PaymentVerifiedAt = &verifiedAt
	order.UpdatedAt = verifiedAt

	if s.events != nil {
		if err := s.events.PublishPaymentVerified(ctx, order); err != nil {
			log.Error("Failed to publish payment verified event", logging.Fields{"error": err.Error()})
		}
	}

	log.Info("Payment verified")
	return VerifyOK, nil
}

func (s *PaymentService) alreadyPaid(order *models.GatewayOrder, paymentID string) (VerifyOutcome, error) {
	if order.RazorpayPaymentID == paymentID {
		return VerifyAlreadyPaid, nil
	}
	return VerifyFailed, errors.Conflict("order already paid with a different payment")
}

// FetchPaymentStatus returns the gateway view of a payment, compared with
// the local order when one references it. Concurrent lookups for the same
// id share one gateway call.
func (s *PaymentService) FetchPaymentStatus(ctx context.Context, paymentID string) (*models.PaymentStatus, error) {
	// Waiters share the call, so one caller going away must not fail the rest.
	shared := context.WithoutCancel(ctx)
	v, err, coalesced := s.lookups.Do(paymentID, func() (interface{}, error) {
		return s.fetchPaymentStatus(shared, paymentID)
	})
	if err != nil {
		return nil, err
	}
	if coalesced {
		s.logger.Debug("Coalesced payment lookup", logging.Fields{"payment_id": paymentID})
	}

	status := *v.(*models.PaymentStatus)
	return &status, nil
}

func (s *PaymentService) fetchPaymentStatus(ctx context.Context, paymentID string) (*models.PaymentStatus, error) {
	payment, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	status := &models.PaymentStatus{
		PaymentID: payment.ID,
		OrderID:   payment.OrderID,
		Status:    payment.Status,
		Amount:    models.FromMinorUnits(payment.Amount),
		Currency:  payment.Currency,
		Method:    payment.Method,
		Captured:  payment.Captured,
		CreatedAt: time.Unix(payment.CreatedAt, 0).UTC(),
		Email:     payment.Email,
		Contact:   payment.Contact,
	}

	local, err := s.gatewayOrders.FindByPaymentID(ctx, paymentID)
	if errors.Is(err, errors.ErrNotFound) && payment.OrderID != "" {
		// Not verified locally yet; the order still carries no payment id.
		local, err = s.gatewayOrders.GetByOrderID(ctx, payment.OrderID)
	}
	switch {
	case err == nil:
		status.LocalStatus = local.Status
		status.Drift = local.IsPaid() != status.Settled()
		if status.Drift {
			s.logger.Warn("Payment status drift", logging.Fields{
				"payment_id":     paymentID,
				"gateway_status": status.Status,
				"local_status":   local.Status,
			})
		}
	case !errors.Is(err, errors.ErrNotFound):
		s.logger.Warn("Failed to read local gateway order", logging.Fields{
			"payment_id": paymentID,
			"error":      err.Error(),
		})
	}
	return status, nil
}

// GetOrderStatus returns the stored snapshot of a gateway order.
func (s *PaymentService) GetOrderStatus(ctx context.Context, orderID string) (*models.OrderStatusResponse, error) {
	order, err := s.gatewayOrders.GetByOrderID(ctx, orderID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.NotFound("Order not found")
	}
	if err != nil {
		return nil, errors.Storage("read gateway order", err)
	}

	return &models.OrderStatusResponse{
		RazorpayOrderID: order.RazorpayOrderID,
		Status:          order.Status,
		Amount:          order.Amount,
		UserID:          order.UserID,
		CreatedAt:       order.CreatedAt,
	}, nil
}

// ListPaymentOrders returns a user's gateway orders, newest first.
func (s *PaymentService) ListPaymentOrders(ctx context.Context, userID string) ([]*models.GatewayOrder, error) {
	orders, err := s.gatewayOrders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Storage("list gateway orders", err)
	}
	if len(orders) == 0 {
		return nil, errors.NotFound("Payment orders not found")
	}
	return orders, nil
}
