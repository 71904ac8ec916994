package models

import "time"

// CheckoutStatus is the lifecycle state of a checkout record.
type CheckoutStatus string

const (
	CheckoutStatusPendingPayment CheckoutStatus = "pending_payment"
	CheckoutStatusCompleted      CheckoutStatus = "completed"
)

// IsTerminal reports whether no further transition is allowed.
func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusCompleted
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s CheckoutStatus) CanTransitionTo(next CheckoutStatus) bool {
	return s == CheckoutStatusPendingPayment && next == CheckoutStatusCompleted
}

func (s CheckoutStatus) String() string {
	return string(s)
}

// CheckoutRecord is one checkout attempt. Items is a snapshot taken from
// the cart at initiation and never changes afterwards.
type CheckoutRecord struct {
	ID                string         `json:"_id"`
	UserID            string         `json:"user_id"`
	Items             []CartItem     `json:"items"`
	TotalPrice        float64        `json:"total_price"`
	Status            CheckoutStatus `json:"status"`
	PaymentMethod     string         `json:"payment_method"`
	IdempotencyKey    string         `json:"idempotency_key,omitempty"`
	RazorpayOrderID   string         `json:"razorpay_order_id,omitempty"`
	RazorpayPaymentID string         `json:"razorpay_payment_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// ItemCount sums quantities of the snapshot.
func (r *CheckoutRecord) ItemCount() int {
	return CountItems(r.Items)
}

// CountItems sums positive quantities. A line priced at zero quantity
// earns no eco credit either.
func CountItems(items []CartItem) int {
	n := 0
	for _, item := range items {
		if item.Quantity > 0 {
			n += item.Quantity
		}
	}
	return n
}
