package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/repurpose-hub/checkout-service/internal/config"
	"github.com/repurpose-hub/checkout-service/internal/errors"
	"github.com/repurpose-hub/checkout-service/internal/logging"
	"github.com/repurpose-hub/checkout-service/internal/metrics"
	"github.com/repurpose-hub/checkout-service/internal/models"
	"github.com/repurpose-hub/checkout-service/internal/repository"
)

// Longest prefixes first so "Rs." is not left as ".".
var currencyPrefixes = []string{"Rs.", "Rs", "INR", "₹"}

// ParsePrice turns a display price such as "Rs. 1,250.00" into a decimal.
// ok is false when the string is not a number, in which case the price is 0.
func ParsePrice(raw string) (price decimal.Decimal, ok bool) {
	s := strings.TrimSpace(raw)
	for _, prefix := range currencyPrefixes {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = s[len(prefix):]
			break
		}
	}
	s = strings.NewReplacer(",", "", " ", "").Replace(s)

	if s == "" || s[0] < '0' || s[0] > '9' {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// PriceBreakdown is the computed total of a cart.
type PriceBreakdown struct {
	Subtotal decimal.Decimal
	Total    decimal.Decimal

	// MalformedItems lists item ids whose price could not be parsed.
	MalformedItems []string
}

// ComputeTotal sums price × quantity and applies the service fee.
func ComputeTotal(items []models.CartItem, serviceFeeRate float64) PriceBreakdown {
	var b PriceBreakdown
	subtotal := decimal.Zero
	for _, item := range items {
		price, ok := ParsePrice(item.Price)
		if !ok {
			b.MalformedItems = append(b.MalformedItems, item.ID)
		}
		qty := item.Quantity
		if qty < 0 {
			qty = 0
		}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}

	b.Subtotal = subtotal
	b.Total = subtotal.Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(serviceFeeRate))).Round(2)
	return b
}

// WithinTolerance reports |declared - computed| <= tolerance × computed.
func WithinTolerance(declared float64, computed decimal.Decimal, tolerance float64) bool {
	if computed.IsZero() {
		return true
	}
	diff := decimal.NewFromFloat(declared).Sub(computed).Abs()
	return diff.LessThanOrEqual(computed.Abs().Mul(decimal.NewFromFloat(tolerance)))
}

// AmountValidator checks a client-declared total against the user's cart.
type AmountValidator struct {
	carts     repository.CartStore
	feeRate   float64
	tolerance float64
	metrics   *metrics.Metrics
	logger    *logging.LoggerV2
}

func NewAmountValidator(carts repository.CartStore, cfg config.CheckoutConfig, m *metrics.Metrics) *AmountValidator {
	return &AmountValidator{
		carts:     carts,
		feeRate:   cfg.ServiceFeeRate,
		tolerance: cfg.AmountTolerance,
		metrics:   m,
		logger:    logging.NewLoggerV2("amount-validator"),
	}
}

// CartCheck is the outcome of checking a declared total against a cart.
type CartCheck struct {
	Cart     *models.Cart
	Valid    bool
	Computed float64
}

// Validate loads the cart and checks declared against it. A missing or
// empty cart validates trivially with a computed total of 0.
func (v *AmountValidator) Validate(ctx context.Context, userID string, declared float64) (*CartCheck, error) {
	cart, err := v.carts.GetCart(ctx, userID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		v.logger.Error("Failed to read cart", logging.Fields{"user_id": userID, "error": err.Error()})
		return nil, errors.Storage("read cart", err)
	}
	if err != nil {
		cart = nil
	}
	valid, computed := v.ValidateCart(userID, cart, declared)
	return &CartCheck{Cart: cart, Valid: valid, Computed: computed}, nil
}

// ValidateCart checks declared against an already loaded cart.
func (v *AmountValidator) ValidateCart(userID string, cart *models.Cart, declared float64) (bool, float64) {
	if cart.IsEmpty() {
		return true, 0
	}

	breakdown := ComputeTotal(cart.Items, v.feeRate)
	for _, id := range breakdown.MalformedItems {
		v.metrics.MalformedPrice()
		v.logger.Warn("Unparseable cart price counted as zero", logging.Fields{
			"user_id": userID,
			"item_id": id,
		})
	}

	computed, _ := breakdown.Total.Float64()
	return WithinTolerance(declared, breakdown.Total, v.tolerance), computed
}
