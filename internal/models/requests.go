package models

import "time"

// InitiateCheckoutRequest is the body of POST /cart/checkout.
type InitiateCheckoutRequest struct {
	UserID         string   `json:"user_id" binding:"required"`
	TotalPayment   *float64 `json:"total_payment" binding:"required"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
}

// InitiateCheckoutResponse is returned (and replayed) on success.
type InitiateCheckoutResponse struct {
	Message    string         `json:"message"`
	CheckoutID string         `json:"checkout_id"`
	TotalPrice float64        `json:"total_price"`
	Status     CheckoutStatus `json:"status"`
	NextStep   string         `json:"next_step"`
}

// AmountMismatchResponse tells the client the total we expected.
type AmountMismatchResponse struct {
	Error           string  `json:"error"`
	Message         string  `json:"message"`
	CalculatedTotal float64 `json:"calculated_total"`
}

// CompleteCheckoutRequest is the body of POST /cart/complete-checkout.
type CompleteCheckoutRequest struct {
	OrderID           string `json:"order_id" binding:"required"`
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
}

type CompleteCheckoutResponse struct {
	Message string         `json:"message"`
	OrderID string         `json:"order_id"`
	Status  CheckoutStatus `json:"status"`
}

// CreatePaymentOrderRequest is the body of POST /payment/create-order.
type CreatePaymentOrderRequest struct {
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency,omitempty"`
	UserID     string  `json:"user_id" binding:"required"`
	CheckoutID string  `json:"checkout_id,omitempty"`
}

type CreatePaymentOrderResponse struct {
	OrderID string `json:"orderId"`
}

// VerifyPaymentRequest is the body of POST /payment/verify-payment.
type VerifyPaymentRequest struct {
	OrderID           string `json:"orderId" binding:"required"`
	RazorpayPaymentID string `json:"razorpayPaymentId" binding:"required"`
	RazorpaySignature string `json:"razorpaySignature" binding:"required"`
}

type VerifyPaymentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// OrderStatusResponse is the stored view of a gateway order.
type OrderStatusResponse struct {
	RazorpayOrderID string             `json:"razorpay_order_id"`
	Status          GatewayOrderStatus `json:"status"`
	Amount          float64            `json:"amount"`
	UserID          string             `json:"user_id"`
	CreatedAt       time.Time          `json:"created_at"`
}

// ErrorResponse is the generic error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
