package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/repurpose-hub/checkout-service/internal/clients"
	"github.com/repurpose-hub/checkout-service/internal/config"
	"github.com/repurpose-hub/checkout-service/internal/errors"
	"github.com/repurpose-hub/checkout-service/internal/logging"
	"github.com/repurpose-hub/checkout-service/internal/middleware"
	"github.com/repurpose-hub/checkout-service/internal/models"
	"github.com/repurpose-hub/checkout-service/internal/service"
)

func init() {
	// Request bodies with unknown fields are rejected.
	binding.EnableDecoderDisallowUnknownFields = true
}

// CheckoutService is the checkout surface used by the handlers.
type CheckoutService interface {
	Initiate(ctx context.Context, req *models.InitiateCheckoutRequest) (*service.InitiateResult, error)
	Complete(ctx context.Context, req *models.CompleteCheckoutRequest) (*models.CompleteCheckoutResponse, error)
	ListOrders(ctx context.Context, userID string) ([]*models.CheckoutRecord, error)
}

// PaymentService is the payment surface used by the handlers.
type PaymentService interface {
	CreateRemoteOrder(ctx context.Context, req *models.CreatePaymentOrderRequest) (*models.CreatePaymentOrderResponse, error)
	VerifySignature(ctx context.Context, req *models.VerifyPaymentRequest) (service.VerifyOutcome, error)
	FetchPaymentStatus(ctx context.Context, paymentID string) (*models.PaymentStatus, error)
	GetOrderStatus(ctx context.Context, orderID string) (*models.OrderStatusResponse, error)
	ListPaymentOrders(ctx context.Context, userID string) ([]*models.GatewayOrder, error)
}

// EcoImpactService reads the eco-impact ledger.
type EcoImpactService interface {
	Get(ctx context.Context, userID string) (*models.EcoImpact, error)
	Community(ctx context.Context) (*models.CommunityImpact, error)
}

var (
	_ CheckoutService  = (*service.CheckoutService)(nil)
	_ PaymentService   = (*service.PaymentService)(nil)
	_ EcoImpactService = (*service.EcoImpactUpdater)(nil)
)

// ReadinessCheck is one dependency probed by GET /ready.
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Handlers holds all HTTP handlers for the checkout service.
type Handlers struct {
	checkoutService CheckoutService
	paymentService  PaymentService
	ecoService      EcoImpactService
	checks          []ReadinessCheck
	config          *config.Config
	logger          *logging.LoggerV2
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	checkoutService CheckoutService,
	paymentService PaymentService,
	ecoService EcoImpactService,
	cfg *config.Config,
	checks ...ReadinessCheck,
) *Handlers {
	return &Handlers{
		checkoutService: checkoutService,
		paymentService:  paymentService,
		ecoService:      ecoService,
		checks:          checks,
		config:          cfg,
		logger:          logging.NewLoggerV2("handlers"),
	}
}

var errorLogger = logging.NewLoggerV2("http-errors")

const (
	msgInternal = "internal server error"

	// Sent with gateway failures the client may retry unchanged.
	retryAfterSeconds = "1"
)

func handleError(c *gin.Context, err error) {
	var e *errors.Error
	if !errors.As(err, &e) {
		logFailure(c, http.StatusInternalServerError, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msgInternal})
		return
	}

	switch e.Kind {
	case errors.KindValidation:
		if e.Payload != nil {
			c.JSON(http.StatusBadRequest, e.Payload)
			return
		}
		body := gin.H{"error": e.Message}
		if len(e.Details) > 0 {
			body["details"] = e.Details
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.KindNotFound:
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: e.Message})
	case errors.KindPaymentVerification:
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: e.Message})
	case errors.KindConflict:
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: e.Message})
	default:
		status := upstreamStatus(e)
		logFailure(c, status, err)
		if e.Retryable {
			c.Header("Retry-After", retryAfterSeconds)
		}
		c.JSON(status, models.ErrorResponse{Error: msgInternal})
	}
}

func upstreamStatus(e *errors.Error) int {
	if e.Kind != errors.KindUpstream {
		return http.StatusInternalServerError
	}
	if e.Timeout {
		return http.StatusGatewayTimeout
	}
	var apiErr *clients.APIError
	if errors.As(e, &apiErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func logFailure(c *gin.Context, status int, err error) {
	errorLogger.Error("Request failed", logging.Fields{
		"request_id": middleware.RequestIDFromContext(c.Request.Context()),
		"path":       c.FullPath(),
		"status":     status,
		"error":      err.Error(),
	})
}

func (h *Handlers) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn("Failed to bind request", logging.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}
