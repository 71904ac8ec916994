package clients

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/repurpose-hub/checkout-service/internal/config"
	"github.com/repurpose-hub/checkout-service/internal/errors"
	"github.com/repurpose-hub/checkout-service/internal/logging"
	"github.com/repurpose-hub/checkout-service/internal/metrics"
	"github.com/repurpose-hub/checkout-service/internal/middleware"
)

const defaultGatewayTimeout = 10 * time.Second

// RazorpayClient talks to the Razorpay REST API.
type RazorpayClient struct {
	baseURL    string
	keyID      string
	keySecret  string
	timeout    time.Duration
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *logging.LoggerV2
}

// NewRazorpayClient creates a new Razorpay client.
func NewRazorpayClient(cfg config.GatewayConfig, m *metrics.Metrics, logger *logging.LoggerV2) *RazorpayClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}

	return &RazorpayClient{
		baseURL:    cfg.BaseURL,
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		timeout:    timeout,
		httpClient: &http.Client{},
		metrics:    m,
		logger:     logger,
	}
}

// CreateOrderParams is the body of POST /v1/orders.
type CreateOrderParams struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Receipt        string            `json:"receipt"`
	Notes          map[string]string `json:"notes,omitempty"`
	PaymentCapture int               `json:"payment_capture"`
}

// RemoteOrder is a Razorpay order entity.
type RemoteOrder struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"created_at"`
}

// RemotePayment is a Razorpay payment entity. Amount is in paise.
type RemotePayment struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	Method    string `json:"method"`
	Captured  bool   `json:"captured"`
	Email     string `json:"email"`
	Contact   string `json:"contact"`
	CreatedAt int64  `json:"created_at"`
}

// APIError is a non-2xx reply from Razorpay.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay returned status %d: %s %s", e.StatusCode, e.Code, e.Description)
}

// CreateOrder creates a remote order.
func (c *RazorpayClient) CreateOrder(ctx context.Context, params *CreateOrderParams) (*RemoteOrder, error) {
	c.logger.Debug("Creating Razorpay order", logging.Fields{
		"amount":   params.Amount,
		"currency": params.Currency,
		"receipt":  params.Receipt,
	})

	var order RemoteOrder
	if err := c.do(ctx, "create_order", http.MethodPost, "/v1/orders", params, &order); err != nil {
		return nil, err
	}

	c.logger.Info("Razorpay order created", logging.Fields{
		"razorpay_order_id": order.ID,
		"status":            order.Status,
	})
	return &order, nil
}

// FetchPayment retrieves a payment by id.
func (c *RazorpayClient) FetchPayment(ctx context.Context, paymentID string) (*RemotePayment, error) {
	var payment RemotePayment
	path := "/v1/payments/" + url.PathEscape(paymentID)
	if err := c.do(ctx, "fetch_payment", http.MethodGet, path, nil, &payment); err != nil {
		var apiErr *APIError
		if stderrors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, errors.NotFound("Payment not found")
		}
		return nil, err
	}
	return &payment, nil
}

// Ping issues a cheap authenticated call.
func (c *RazorpayClient) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/v1/orders?count=1", nil, nil)
}

// VerifySignature checks a checkout signature against the key secret.
func (c *RazorpayClient) VerifySignature(orderID, paymentID, signature string) bool {
	expected := Sign(c.keySecret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign returns hex(HMAC-SHA256(secret, orderID|paymentID)).
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

type errorEnvelope struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *RazorpayClient) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.roundTrip(ctx, op, method, path, in, out)
	c.metrics.Gateway(op, outcome(err), time.Since(start))
	return err
}

func (c *RazorpayClient) roundTrip(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Upstream(op, err)
	}
	c.setHeaders(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			c.logger.Warn("Razorpay request timed out", logging.Fields{"operation": op, "timeout": c.timeout.String()})
			return errors.UpstreamTimeout(op, err)
		}
		c.logger.Error("Razorpay request failed", logging.Fields{"operation": op, "error": err.Error()})
		return errors.Upstream(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope errorEnvelope
		if json.NewDecoder(resp.Body).Decode(&envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Description = envelope.Error.Description
		}
		c.logger.Error("Razorpay returned error", logging.Fields{
			"operation":   op,
			"status_code": resp.StatusCode,
			"code":        apiErr.Code,
			"description": apiErr.Description,
		})
		return errors.Upstream(op, apiErr)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(ctx, err) {
			return errors.UpstreamTimeout(op, err)
		}
		return errors.Upstream(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *RazorpayClient) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	if requestID := middleware.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set(middleware.HeaderRequestID, requestID)
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var e *errors.Error
	if errors.As(err, &e) && e.Timeout {
		return "timeout"
	}
	return "error"
}
