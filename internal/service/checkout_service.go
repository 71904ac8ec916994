package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/repurpose-hub/checkout-service/internal/config"
	"github.com/repurpose-hub/checkout-service/internal/errors"
	"github.com/repurpose-hub/checkout-service/internal/logging"
	"github.com/repurpose-hub/checkout-service/internal/metrics"
	"github.com/repurpose-hub/checkout-service/internal/models"
	"github.com/repurpose-hub/checkout-service/internal/repository"
)

const (
	msgCheckoutInitiated = "Checkout initiated successfully"
	msgCheckoutCompleted = "Checkout completed successfully"
	msgAmountMismatch    = "Total payment does not match cart total"
	msgNegativeTotal     = "total_payment cannot be negative"
	msgCartNotFound      = "Cart not found"
	msgOrderNotFound     = "Order not found"
	msgOrdersNotFound    = "Orders not found"
	msgPaymentNotValid   = "Payment not verified or incomplete"
	nextStepPayment      = "Proceed to payment"
)

// InitiateResult is the response of a checkout initiation. Body holds the
// exact bytes to send, whether freshly produced or replayed.
type InitiateResult struct {
	StatusCode int
	Body       []byte
	Replayed   bool
}

// CheckoutService drives a checkout from initiation to completion.
type CheckoutService struct {
	checkouts     repository.CheckoutRepository
	gatewayOrders repository.GatewayOrderRepository
	carts         repository.CartStore
	guard         *IdempotencyGuard
	amounts       *AmountValidator
	eco           *EcoImpactUpdater
	events        EventPublisher
	cfg           config.CheckoutConfig
	metrics       *metrics.Metrics
	now           Clock
	logger        *logging.LoggerV2
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	checkouts repository.CheckoutRepository,
	gatewayOrders repository.GatewayOrderRepository,
	carts repository.CartStore,
	guard *IdempotencyGuard,
	amounts *AmountValidator,
	eco *EcoImpactUpdater,
	events EventPublisher,
	cfg config.CheckoutConfig,
	m *metrics.Metrics,
) *CheckoutService {
	return &CheckoutService{
		checkouts:     checkouts,
		gatewayOrders: gatewayOrders,
		carts:         carts,
		guard:         guard,
		amounts:       amounts,
		eco:           eco,
		events:        events,
		cfg:           cfg,
		metrics:       m,
		now:           time.Now,
		logger:        logging.NewLoggerV2("checkout-service"),
	}
}

// Initiate validates the declared total against the cart and opens a
// pending checkout record. With a key, the first outcome is stored and
// replayed verbatim for 30 minutes.
func (s *CheckoutService) Initiate(ctx context.Context, req *models.InitiateCheckoutRequest) (*InitiateResult, error) {
	if err := ValidateInitiateRequest(req); err != nil {
		return nil, err
	}
	key := req.IdempotencyKey
	log := s.logger.With(logging.Fields{"user_id": req.UserID, "idempotency_key": key})

	if key != "" {
		found, stored, err := s.guard.Check(ctx, key)
		if err != nil {
			s.metrics.Initiated("error")
			return nil, err
		}
		if found {
			return s.replay(log, stored), nil
		}

		reserved, existing, err := s.guard.Reserve(ctx, key)
		if err != nil {
			s.metrics.Initiated("error")
			return nil, err
		}
		if !reserved {
			if existing.Replayable(s.now()) {
				return s.replay(log, existing), nil
			}
			s.metrics.Initiated("conflict")
			return nil, errors.Conflict("a request with this idempotency key is already in progress")
		}
	}

	result, err := s.initiate(ctx, req, log)
	if err != nil {
		kind := errors.KindOf(err)
		if key != "" && (kind == errors.KindStorage || kind == errors.KindInternal) {
			s.guard.Release(ctx, key)
		}
		s.metrics.Initiated(kind.String())
		return nil, err
	}
	s.metrics.Initiated("created")
	return result, nil
}

func (s *CheckoutService) replay(log *logging.LoggerV2, entry *models.IdempotencyEntry) *InitiateResult {
	log.Info("Replaying stored checkout response", logging.Fields{"status_code": entry.StatusCode})
	s.metrics.Replay()
	s.metrics.Initiated("replayed")
	return &InitiateResult{StatusCode: entry.StatusCode, Body: entry.Body, Replayed: true}
}

func (s *CheckoutService) initiate(ctx context.Context, req *models.InitiateCheckoutRequest, log *logging.LoggerV2) (*InitiateResult, error) {
	declared := *req.TotalPayment

	check, err := s.amounts.Validate(ctx, req.UserID, declared)
	if err != nil {
		return nil, err
	}
	cart, computed := check.Cart, check.Computed

	if cart.IsEmpty() {
		if err := s.remember(ctx, req.IdempotencyKey, http.StatusNotFound, models.ErrorResponse{Error: msgCartNotFound}); err != nil {
			return nil, err
		}
		return nil, errors.NotFound(msgCartNotFound)
	}

	if declared < 0 {
		payload := map[string]interface{}{
			"error":   msgNegativeTotal,
			"details": map[string]interface{}{"field": "total_payment"},
		}
		if err := s.remember(ctx, req.IdempotencyKey, http.StatusBadRequest, payload); err != nil {
			return nil, err
		}
		return nil, errors.NewValidationPayload(msgNegativeTotal, payload)
	}

	if !check.Valid {
		payload := models.AmountMismatchResponse{
			Error:           "validation_error",
			Message:         msgAmountMismatch,
			CalculatedTotal: computed,
		}
		log.Warn("Declared total rejected", logging.Fields{"declared": declared, "calculated": computed})
		if err := s.remember(ctx, req.IdempotencyKey, http.StatusBadRequest, payload); err != nil {
			return nil, err
		}
		return nil, errors.NewValidationPayload(msgAmountMismatch, payload)
	}

	now := s.now().UTC()
	record := &models.CheckoutRecord{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Items:          cart.Snapshot(),
		TotalPrice:     computed,
		Status:         models.CheckoutStatusPendingPayment,
		PaymentMethod:  s.cfg.PaymentMethod,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.checkouts.Create(ctx, record); err != nil {
		return nil, errors.Storage("create checkout", err)
	}

	body, err := json.Marshal(models.InitiateCheckoutResponse{
		Message:    msgCheckoutInitiated,
		CheckoutID: record.ID,
		TotalPrice: record.TotalPrice,
		Status:     record.Status,
		NextStep:   nextStepPayment,
	})
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		if err := s.guard.Store(ctx, req.IdempotencyKey, http.StatusCreated, body); err != nil {
			// The record exists; the in-flight marker keeps retries out until it expires.
			log.Error("Failed to store checkout response", logging.Fields{"checkout_id": record.ID, "error": err.Error()})
		}
	}

	s.publish(ctx, "checkout.initiated", func() error { return s.events.PublishCheckoutInitiated(ctx, record) })

	log.Info("Checkout initiated", logging.Fields{"checkout_id": record.ID, "total": record.TotalPrice})
	return &InitiateResult{StatusCode: http.StatusCreated, Body: body}, nil
}

func (s *CheckoutService) remember(ctx context.Context, key string, status int, payload interface{}) error {
	if key == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.guard.Store(ctx, key, status, body)
}

// Complete finalizes a pending checkout once its payment is verified.
func (s *CheckoutService) Complete(ctx context.Context, req *models.CompleteCheckoutRequest) (*models.CompleteCheckoutResponse, error) {
	if err := ValidateCompleteRequest(req); err != nil {
		s.metrics.Completed("validation")
		return nil, err
	}
	log := s.logger.With(logging.Fields{
		"checkout_id":       req.OrderID,
		"razorpay_order_id": req.RazorpayOrderID,
	})

	resp, err := s.complete(ctx, req, log)
	if err != nil {
		s.metrics.Completed(errors.KindOf(err).String())
		return nil, err
	}
	return resp, nil
}

func (s *CheckoutService) complete(ctx context.Context, req *models.CompleteCheckoutRequest, log *logging.LoggerV2) (*models.CompleteCheckoutResponse, error) {
	completed := &models.CompleteCheckoutResponse{
		Message: msgCheckoutCompleted,
		OrderID: req.OrderID,
		Status:  models.CheckoutStatusCompleted,
	}

	record, err := s.checkouts.GetByID(ctx, req.OrderID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.NotFound(msgOrderNotFound)
	}
	if err != nil {
		return nil, errors.Storage("read checkout", err)
	}

	if record.Status.IsTerminal() {
		if record.RazorpayOrderID == req.RazorpayOrderID && record.RazorpayPaymentID == req.RazorpayPaymentID {
			log.Info("Checkout already completed")
			s.metrics.Completed("already_completed")
			return completed, nil
		}
		return nil, errors.PaymentVerification("Checkout already completed with a different payment")
	}

	paid, err := s.gatewayOrders.FindPaid(ctx, req.RazorpayOrderID, req.RazorpayPaymentID)
	if errors.Is(err, errors.ErrNotFound) {
		log.Warn("Completion attempted without verified payment")
		return nil, errors.PaymentVerification(msgPaymentNotValid)
	}
	if err != nil {
		return nil, errors.Storage("read gateway order", err)
	}
	if paid.UserID != record.UserID {
		log.Warn("Gateway order belongs to another user", logging.Fields{"gateway_user_id": paid.UserID})
		return nil, errors.PaymentVerification(msgPaymentNotValid)
	}
	if paid.CheckoutID != "" && paid.CheckoutID != record.ID {
		log.Warn("Gateway order was opened for another checkout", logging.Fields{"gateway_checkout_id": paid.CheckoutID})
		return nil, errors.PaymentVerification(msgPaymentNotValid)
	}
	if paid.AmountInPaise < models.ToMinorUnits(record.TotalPrice) {
		log.Warn("Gateway order does not cover checkout total", logging.Fields{
			"amount_in_paise": paid.AmountInPaise,
			"total":           record.TotalPrice,
		})
		return nil, errors.PaymentVerification(msgPaymentNotValid)
	}
	if !record.Status.CanTransitionTo(models.CheckoutStatusCompleted) {
		return nil, errors.Conflict("checkout cannot be completed from status " + string(record.Status))
	}

	if err := s.carts.DeleteCart(ctx, record.UserID); err != nil {
		log.Error("Failed to clear cart", logging.Fields{"error": err.Error()})
		return nil, errors.Storage("clear cart", err)
	}

	applied, err := s.checkouts.MarkCompleted(ctx, record.ID, req.RazorpayOrderID, req.RazorpayPaymentID)
	if errors.Is(err, errors.ErrConflict) {
		log.Warn("Gateway order already settles another checkout")
		return nil, errors.PaymentVerification(msgPaymentNotValid)
	}
	if err != nil {
		return nil, errors.Storage("complete checkout", err)
	}
	if !applied {
		log.Info("Checkout completed concurrently")
		s.metrics.Completed("already_completed")
		return completed, nil
	}

	record.Status = models.CheckoutStatusCompleted
	record.RazorpayOrderID = req.RazorpayOrderID
	record.RazorpayPaymentID = req.RazorpayPaymentID

	if err := s.eco.Apply(ctx, record.UserID, record.Items); err != nil {
		s.metrics.EcoImpactFailure()
		log.Error("Failed to update eco impact", logging.Fields{"user_id": record.UserID, "error": err.Error()})
	}

	s.publish(ctx, "checkout.completed", func() error { return s.events.PublishCheckoutCompleted(ctx, record) })

	s.metrics.Completed("completed")
	log.Info("Checkout completed", logging.Fields{"user_id": record.UserID})
	return completed, nil
}

// ListOrders returns a user's checkout history, newest first.
func (s *CheckoutService) ListOrders(ctx context.Context, userID string) ([]*models.CheckoutRecord, error) {
	records, err := s.checkouts.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Storage("list checkouts", err)
	}
	if len(records) == 0 {
		return nil, errors.NotFound(msgOrdersNotFound)
	}
	return records, nil
}

func (s *CheckoutService) publish(ctx context.Context, event string, fn func() error) {
	if s.events == nil {
		return
	}
	if err := fn(); err != nil {
		s.logger.Error("Failed to publish event", logging.Fields{"event": event, "error": err.Error()})
	}
}
