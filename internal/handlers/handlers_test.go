package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repurpose-hub/checkout-service/internal/clients"
	"github.com/repurpose-hub/checkout-service/internal/errors"
	"github.com/repurpose-hub/checkout-service/internal/models"
	"github.com/repurpose-hub/checkout-service/internal/service"
)

type stubCheckout struct {
	initiate func(req *models.InitiateCheckoutRequest) (*service.InitiateResult, error)
	complete func(req *models.CompleteCheckoutRequest) (*models.CompleteCheckoutResponse, error)
	list     func(userID string) ([]*models.CheckoutRecord, error)
}

func (s *stubCheckout) Initiate(ctx context.Context, req *models.InitiateCheckoutRequest) (*service.InitiateResult, error) {
	return s.initiate(req)
}

func (s *stubCheckout) Complete(ctx context.Context, req *models.CompleteCheckoutRequest) (*models.CompleteCheckoutResponse, error) {
	return s.complete(req)
}

func (s *stubCheckout) ListOrders(ctx context.Context, userID string) ([]*models.CheckoutRecord, error) {
	return s.list(userID)
}

type stubPayments struct {
	create func(req *models.CreatePaymentOrderRequest) (*models.CreatePaymentOrderResponse, error)
	verify func(req *models.VerifyPaymentRequest) (service.VerifyOutcome, error)
	fetch  func(paymentID string) (*models.PaymentStatus, error)
	status func(orderID string) (*models.OrderStatusResponse, error)
	list   func(userID string) ([]*models.GatewayOrder, error)
}

func (s *stubPayments) CreateRemoteOrder(ctx context.Context, req *models.CreatePaymentOrderRequest) (*models.CreatePaymentOrderResponse, error) {
	return s.create(req)
}

func (s *stubPayments) VerifySignature(ctx context.Context, req *models.VerifyPaymentRequest) (service.VerifyOutcome, error) {
	return s.verify(req)
}

func (s *stubPayments) FetchPaymentStatus(ctx context.Context, paymentID string) (*models.PaymentStatus, error) {
	return s.fetch(paymentID)
}

func (s *stubPayments) GetOrderStatus(ctx context.Context, orderID string) (*models.OrderStatusResponse, error) {
	return s.status(orderID)
}

func (s *stubPayments) ListPaymentOrders(ctx context.Context, userID string) ([]*models.GatewayOrder, error) {
	return s.list(userID)
}

type stubEco struct {
	impact    *models.EcoImpact
	community *models.CommunityImpact
	err       error
}

func (s *stubEco) Get(ctx context.Context, userID string) (*models.EcoImpact, error) {
	return s.impact, s.err
}

func (s *stubEco) Community(ctx context.Context) (*models.CommunityImpact, error) {
	return s.community, s.err
}

func newContext(method, path, body string, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	h := &Handlers{}
	c, w := newContext(http.MethodGet, "/health", "")

	h.Health(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "checkout-service", resp["service"])
}

func TestLive(t *testing.T) {
	h := &Handlers{}
	c, w := newContext(http.MethodGet, "/live", "")

	h.Live(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReady(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }

	t.Run("all dependencies up", func(t *testing.T) {
		h := NewHandlers(nil, nil, nil, nil,
			ReadinessCheck{Name: "postgres", Ping: ok},
			ReadinessCheck{Name: "redis", Ping: ok},
		)
		c, w := newContext(http.MethodGet, "/ready", "")

		h.Ready(c)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		assert.Equal(t, "ready", resp["status"])
		assert.Equal(t, map[string]interface{}{"postgres": "connected", "redis": "connected"}, resp["dependencies"])
	})

	t.Run("one dependency down", func(t *testing.T) {
		h := NewHandlers(nil, nil, nil, nil,
			ReadinessCheck{Name: "postgres", Ping: ok},
			ReadinessCheck{Name: "mongo", Ping: func(ctx context.Context) error { return stderrors.New("no reachable servers") }},
		)
		c, w := newContext(http.MethodGet, "/ready", "")

		h.Ready(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		deps := decode(t, w)["dependencies"].(map[string]interface{})
		assert.Equal(t, "no reachable servers", deps["mongo"])
		assert.Equal(t, "connected", deps["postgres"])
	})
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"not found", errors.NotFound("Cart not found"), http.StatusNotFound, `{"error":"Cart not found"}`},
		{"payment verification", errors.PaymentVerification("Payment not verified or incomplete"), http.StatusBadRequest, `{"error":"Payment not verified or incomplete"}`},
		{"conflict", errors.Conflict("in progress"), http.StatusConflict, `{"error":"in progress"}`},
		{"validation", errors.NewValidationError("order_id", "Invalid order ID"), http.StatusBadRequest, `{"error":"Invalid order ID","details":{"field":"order_id"}}`},
		{
			"validation payload",
			errors.NewValidationPayload("mismatch", models.AmountMismatchResponse{Error: "validation_error", Message: "Total payment does not match cart total", CalculatedTotal: 2880}),
			http.StatusBadRequest,
			`{"error":"validation_error","message":"Total payment does not match cart total","calculated_total":2880}`,
		},
		{"storage", errors.Storage("create checkout", stderrors.New("pq: connection refused")), http.StatusInternalServerError, `{"error":"internal server error"}`},
		{"gateway timeout", errors.UpstreamTimeout("create order", context.DeadlineExceeded), http.StatusGatewayTimeout, `{"error":"internal server error"}`},
		{"gateway reply", errors.Upstream("create order", &clients.APIError{StatusCode: 400, Code: "BAD_REQUEST_ERROR"}), http.StatusBadGateway, `{"error":"internal server error"}`},
		{"gateway transport", errors.Upstream("create order", stderrors.New("connection reset")), http.StatusInternalServerError, `{"error":"internal server error"}`},
		{"plain error", stderrors.New("boom"), http.StatusInternalServerError, `{"error":"internal server error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newContext(http.MethodGet, "/", "")
			handleError(c, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestHandleError_RetryAfter(t *testing.T) {
	c, w := newContext(http.MethodGet, "/", "")
	handleError(c, errors.UpstreamTimeout("fetch payment", context.DeadlineExceeded))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	c, w = newContext(http.MethodGet, "/", "")
	handleError(c, errors.Storage("create checkout", stderrors.New("pq: connection refused")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestInitiateCheckout(t *testing.T) {
	t.Run("writes stored bytes verbatim", func(t *testing.T) {
		var got *models.InitiateCheckoutRequest
		body := []byte(`{"message":"Checkout initiated successfully","checkout_id":"abc","total_price":2880,"status":"pending_payment","next_step":"Proceed to payment"}`)
		h := NewHandlers(&stubCheckout{initiate: func(req *models.InitiateCheckoutRequest) (*service.InitiateResult, error) {
			got = req
			return &service.InitiateResult{StatusCode: http.StatusCreated, Body: body, Replayed: true}, nil
		}}, nil, nil, nil)

		c, w := newContext(http.MethodPost, "/cart/checkout", `{"user_id":"u1","total_payment":2880}`)
		c.Request.Header.Set(HeaderIdempotencyKey, "key-1")

		h.InitiateCheckout(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, body, w.Body.Bytes())
		assert.Equal(t, "true", w.Header().Get(HeaderReplayed))
		require.NotNil(t, got)
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, 2880.0, *got.TotalPayment)
		assert.Equal(t, "key-1", got.IdempotencyKey)
	})

	t.Run("body key wins over header", func(t *testing.T) {
		var key string
		h := NewHandlers(&stubCheckout{initiate: func(req *models.InitiateCheckoutRequest) (*service.InitiateResult, error) {
			key = req.IdempotencyKey
			return &service.InitiateResult{StatusCode: http.StatusCreated, Body: []byte(`{}`)}, nil
		}}, nil, nil, nil)

		c, _ := newContext(http.MethodPost, "/cart/checkout", `{"user_id":"u1","total_payment":1,"idempotency_key":"body-key"}`)
		c.Request.Header.Set(HeaderIdempotencyKey, "header-key")

		h.InitiateCheckout(c)
		assert.Equal(t, "body-key", key)
	})

	t.Run("rejects bad bodies", func(t *testing.T) {
		h := NewHandlers(&stubCheckout{initiate: func(req *models.InitiateCheckoutRequest) (*service.InitiateResult, error) {
			t.Fatal("service must not be called")
			return nil, nil
		}}, nil, nil, nil)

		for _, body := range []string{
			`{"user_id":"u1","total_payment":10,"coupon":"FREE"}`,
			`{"user_id":"u1"}`,
			`{"total_payment":10}`,
			`not json`,
		} {
			c, w := newContext(http.MethodPost, "/cart/checkout", body)
			h.InitiateCheckout(c)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
	})

	t.Run("cart not found", func(t *testing.T) {
		h := NewHandlers(&stubCheckout{initiate: func(req *models.InitiateCheckoutRequest) (*service.InitiateResult, error) {
			return nil, errors.NotFound("Cart not found")
		}}, nil, nil, nil)

		c, w := newContext(http.MethodPost, "/cart/checkout", `{"user_id":"u1","total_payment":10}`)
		h.InitiateCheckout(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Cart not found"}`, w.Body.String())
	})
}

func TestCompleteCheckout(t *testing.T) {
	h := NewHandlers(&stubCheckout{complete: func(req *models.CompleteCheckoutRequest) (*models.CompleteCheckoutResponse, error) {
		if req.RazorpayPaymentID != "pay_1" {
			return nil, errors.PaymentVerification("Payment not verified or incomplete")
		}
		return &models.CompleteCheckoutResponse{Message: "Checkout completed successfully", OrderID: req.OrderID, Status: models.CheckoutStatusCompleted}, nil
	}}, nil, nil, nil)

	c, w := newContext(http.MethodPost, "/cart/complete-checkout", `{"order_id":"o1","razorpay_order_id":"order_1","razorpay_payment_id":"pay_1"}`)
	h.CompleteCheckout(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Checkout completed successfully","order_id":"o1","status":"completed"}`, w.Body.String())

	c, w = newContext(http.MethodPost, "/cart/complete-checkout", `{"order_id":"o1","razorpay_order_id":"order_1","razorpay_payment_id":"pay_2"}`)
	h.CompleteCheckout(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Payment not verified or incomplete"}`, w.Body.String())

	c, w = newContext(http.MethodPost, "/cart/complete-checkout", `{"order_id":"o1"}`)
	h.CompleteCheckout(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUserOrders(t *testing.T) {
	h := NewHandlers(&stubCheckout{list: func(userID string) ([]*models.CheckoutRecord, error) {
		if userID != "u1" {
			return nil, errors.NotFound("Orders not found")
		}
		return []*models.CheckoutRecord{{ID: "c1", UserID: "u1", Status: models.CheckoutStatusPendingPayment}}, nil
	}}, nil, nil, nil)

	c, w := newContext(http.MethodGet, "/orders/u1", "", gin.Param{Key: "user_id", Value: "u1"})
	h.GetUserOrders(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var records []models.CheckoutRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "c1", records[0].ID)

	c, w = newContext(http.MethodGet, "/orders/u2", "", gin.Param{Key: "user_id", Value: "u2"})
	h.GetUserOrders(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePaymentOrder(t *testing.T) {
	h := NewHandlers(nil, &stubPayments{create: func(req *models.CreatePaymentOrderRequest) (*models.CreatePaymentOrderResponse, error) {
		if req.Amount <= 0 {
			return nil, errors.NewValidationError("amount", "amount must be greater than zero")
		}
		return &models.CreatePaymentOrderResponse{OrderID: "order_1"}, nil
	}}, nil, nil)

	c, w := newContext(http.MethodPost, "/payment/create-order", `{"amount":499.99,"currency":"INR","user_id":"u1"}`)
	h.CreatePaymentOrder(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"orderId":"order_1"}`, w.Body.String())

	c, w = newContext(http.MethodPost, "/payment/create-order", `{"amount":0,"user_id":"u1"}`)
	h.CreatePaymentOrder(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyPayment(t *testing.T) {
	tests := []struct {
		name    string
		outcome service.VerifyOutcome
		err     error
		status  int
		body    string
	}{
		{"ok", service.VerifyOK, nil, http.StatusOK, `{"success":true,"message":"Payment verified successfully"}`},
		{"already paid", service.VerifyAlreadyPaid, nil, http.StatusOK, `{"success":true,"message":"Payment verified successfully"}`},
		{"bad signature", service.VerifyInvalidSignature, nil, http.StatusBadRequest, `{"success":false,"message":"Invalid payment signature"}`},
		{"unknown order", service.VerifyOrderNotFound, nil, http.StatusNotFound, `{"error":"Order not found"}`},
		{"conflict", service.VerifyFailed, errors.Conflict("order already paid with a different payment"), http.StatusConflict, `{"error":"order already paid with a different payment"}`},
		{"storage", service.VerifyFailed, errors.Storage("mark paid", stderrors.New("timeout")), http.StatusInternalServerError, `{"success":false,"message":"Payment verification failed"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(nil, &stubPayments{verify: func(req *models.VerifyPaymentRequest) (service.VerifyOutcome, error) {
				return tt.outcome, tt.err
			}}, nil, nil)

			c, w := newContext(http.MethodPost, "/payment/verify-payment", `{"orderId":"order_1","razorpayPaymentId":"pay_1","razorpaySignature":"sig"}`)
			h.VerifyPayment(c)

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestPaymentQueries(t *testing.T) {
	h := NewHandlers(nil, &stubPayments{
		fetch: func(paymentID string) (*models.PaymentStatus, error) {
			return &models.PaymentStatus{PaymentID: paymentID, Status: "captured", Amount: 499.99}, nil
		},
		status: func(orderID string) (*models.OrderStatusResponse, error) {
			return nil, errors.NotFound("Order not found")
		},
		list: func(userID string) ([]*models.GatewayOrder, error) {
			return []*models.GatewayOrder{{RazorpayOrderID: "order_1", UserID: userID}}, nil
		},
	}, nil, nil)

	c, w := newContext(http.MethodGet, "/payment/status/pay_1", "", gin.Param{Key: "payment_id", Value: "pay_1"})
	h.GetPaymentStatus(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pay_1", decode(t, w)["payment_id"])

	c, w = newContext(http.MethodGet, "/payment/order-status/order_x", "", gin.Param{Key: "razorpay_order_id", Value: "order_x"})
	h.GetOrderStatus(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Order not found"}`, w.Body.String())

	c, w = newContext(http.MethodGet, "/payment/orders/u1", "", gin.Param{Key: "user_id", Value: "u1"})
	h.GetUserPaymentOrders(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEcoImpact(t *testing.T) {
	eco := &stubEco{
		impact:    &models.EcoImpact{UserID: "u1", CO2Saved: 1.5, Badges: []string{"Eco Shopper"}},
		community: &models.CommunityImpact{TotalCO2: 4, TotalUsers: 2},
	}
	h := NewHandlers(nil, nil, eco, nil)

	c, w := newContext(http.MethodGet, "/eco-impact/u1", "", gin.Param{Key: "user_id", Value: "u1"})
	h.GetEcoImpact(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.5, decode(t, w)["co2_saved"])

	c, w = newContext(http.MethodGet, "/community-impact", "")
	h.GetCommunityImpact(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, decode(t, w)["total_users"])

	eco.err = errors.Storage("aggregate eco impact", stderrors.New("down"))
	c, w = newContext(http.MethodGet, "/community-impact", "")
	h.GetCommunityImpact(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
