package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/repurpose-hub/checkout-service/internal/errors"
	"github.com/repurpose-hub/checkout-service/internal/logging"
	"github.com/repurpose-hub/checkout-service/internal/models"
	"github.com/repurpose-hub/checkout-service/internal/service"
)

// CreatePaymentOrder handles POST /payment/create-order
func (h *Handlers) CreatePaymentOrder(c *gin.Context) {
	var req models.CreatePaymentOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.paymentService.CreateRemoteOrder(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// VerifyPayment handles POST /payment/verify-payment
func (h *Handlers) VerifyPayment(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	outcome, err := h.paymentService.VerifySignature(c.Request.Context(), &req)
	switch {
	case outcome.Succeeded():
		c.JSON(http.StatusOK, models.VerifyPaymentResponse{Success: true, Message: "Payment verified successfully"})
	case outcome == service.VerifyInvalidSignature:
		c.JSON(http.StatusBadRequest, models.VerifyPaymentResponse{Success: false, Message: "Invalid payment signature"})
	case outcome == service.VerifyOrderNotFound:
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Order not found"})
	case err != nil && (errors.KindOf(err) == errors.KindValidation || errors.KindOf(err) == errors.KindConflict):
		handleError(c, err)
	default:
		fields := logging.Fields{"razorpay_order_id": req.OrderID}
		if err != nil {
			fields["error"] = err.Error()
		}
		h.logger.Error("Payment verification failed", fields)
		c.JSON(http.StatusInternalServerError, models.VerifyPaymentResponse{Success: false, Message: "Payment verification failed"})
	}
}

// GetOrderStatus handles GET /payment/order-status/:razorpay_order_id
func (h *Handlers) GetOrderStatus(c *gin.Context) {
	status, err := h.paymentService.GetOrderStatus(c.Request.Context(), c.Param("razorpay_order_id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetPaymentStatus handles GET /payment/status/:payment_id
func (h *Handlers) GetPaymentStatus(c *gin.Context) {
	payment, err := h.paymentService.FetchPaymentStatus(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// GetUserPaymentOrders handles GET /payment/orders/:user_id
func (h *Handlers) GetUserPaymentOrders(c *gin.Context) {
	orders, err := h.paymentService.ListPaymentOrders(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}
