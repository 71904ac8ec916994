package service

import (
	"strings"

	"github.com/google/uuid"

	"github.com/repurpose-hub/checkout-service/internal/errors"
	"github.com/repurpose-hub/checkout-service/internal/models"
)

const maxIdempotencyKeyLength = 255

// ValidateInitiateRequest validates a checkout initiation request. The sign
// of total_payment is checked once the cart is known, since an empty cart
// is reported first.
func ValidateInitiateRequest(req *models.InitiateCheckoutRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return errors.NewValidationError("user_id", "user_id is required")
	}

	if req.TotalPayment == nil {
		return errors.NewValidationError("total_payment", "total_payment is required")
	}

	if len(req.IdempotencyKey) > maxIdempotencyKeyLength {
		return errors.NewValidationError("idempotency_key", "idempotency_key is too long")
	}

	return nil
}

// ValidateCompleteRequest validates a checkout completion request.
func ValidateCompleteRequest(req *models.CompleteCheckoutRequest) error {
	if _, err := uuid.Parse(req.OrderID); err != nil {
		return errors.NewValidationError("order_id", "Invalid order ID")
	}

	if req.RazorpayOrderID == "" {
		return errors.NewValidationError("razorpay_order_id", "razorpay_order_id is required")
	}

	if req.RazorpayPaymentID == "" {
		return errors.NewValidationError("razorpay_payment_id", "razorpay_payment_id is required")
	}

	return nil
}

// ValidateCreatePaymentOrderRequest validates a gateway order request.
func ValidateCreatePaymentOrderRequest(req *models.CreatePaymentOrderRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return errors.NewValidationError("user_id", "user_id is required")
	}

	if req.Amount <= 0 || models.ToMinorUnits(req.Amount) <= 0 {
		return errors.NewValidationError("amount", "amount must be greater than zero")
	}

	if req.Currency != "" && len(req.Currency) != 3 {
		return errors.NewValidationError("currency", "currency must be a 3-letter ISO code")
	}

	if req.CheckoutID != "" {
		if _, err := uuid.Parse(req.CheckoutID); err != nil {
			return errors.NewValidationError("checkout_id", "invalid checkout_id")
		}
	}

	return nil
}

// ValidateVerifyPaymentRequest validates a signature verification request.
func ValidateVerifyPaymentRequest(req *models.VerifyPaymentRequest) error {
	if req.OrderID == "" {
		return errors.NewValidationError("orderId", "orderId is required")
	}

	if req.RazorpayPaymentID == "" {
		return errors.NewValidationError("razorpayPaymentId", "razorpayPaymentId is required")
	}

	if req.RazorpaySignature == "" {
		return errors.NewValidationError("razorpaySignature", "razorpaySignature is required")
	}

	return nil
}
