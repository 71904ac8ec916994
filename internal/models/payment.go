package models

import "time"

// GatewayOrderStatus mirrors the Razorpay order lifecycle we track.
type GatewayOrderStatus string

const (
	GatewayOrderStatusCreated GatewayOrderStatus = "created"
	GatewayOrderStatusPaid    GatewayOrderStatus = "paid"
)

// GatewayOrder is the local record of a Razorpay order.
type GatewayOrder struct {
	RazorpayOrderID   string             `json:"razorpay_order_id"`
	UserID            string             `json:"user_id"`
	CheckoutID        string             `json:"checkout_id,omitempty"`
	Amount            float64            `json:"amount"`
	AmountInPaise     int64              `json:"amount_in_paise"`
	Currency          string             `json:"currency"`
	Status            GatewayOrderStatus `json:"status"`
	Receipt           string             `json:"receipt"`
	RazorpayPaymentID string             `json:"razorpay_payment_id,omitempty"`
	PaymentVerifiedAt *time.Time         `json:"payment_verified_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// IsPaid reports whether the signature for this order has been verified.
func (o *GatewayOrder) IsPaid() bool {
	return o.Status == GatewayOrderStatusPaid
}

// ToMinorUnits converts a major-unit amount to paise, truncating.
func ToMinorUnits(amount float64) int64 {
	return int64(amount * 100)
}

// FromMinorUnits converts paise back to major units.
func FromMinorUnits(paise int64) float64 {
	return float64(paise) / 100
}

// PaymentStatus is the normalized gateway view of a payment.
type PaymentStatus struct {
	PaymentID string    `json:"payment_id"`
	OrderID   string    `json:"order_id,omitempty"`
	Status    string    `json:"status"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Method    string    `json:"method"`
	Captured  bool      `json:"captured"`
	CreatedAt time.Time `json:"created_at"`
	Email     string    `json:"email,omitempty"`
	Contact   string    `json:"contact,omitempty"`

	// Set when a local gateway order references this payment.
	LocalStatus GatewayOrderStatus `json:"local_status,omitempty"`
	Drift       bool               `json:"drift"`
}

// Settled reports whether the gateway considers the payment successful.
func (p *PaymentStatus) Settled() bool {
	return p.Status == "captured" || p.Status == "authorized"
}
