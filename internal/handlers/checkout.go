package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/repurpose-hub/checkout-service/internal/models"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

// InitiateCheckout handles POST /cart/checkout
func (h *Handlers) InitiateCheckout(c *gin.Context) {
	var req models.InitiateCheckoutRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader(HeaderIdempotencyKey)
	}

	result, err := h.checkoutService.Initiate(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.Header(HeaderReplayed, strconv.FormatBool(result.Replayed))
	c.Data(result.StatusCode, "application/json; charset=utf-8", result.Body)
}

// CompleteCheckout handles POST /cart/complete-checkout
func (h *Handlers) CompleteCheckout(c *gin.Context) {
	var req models.CompleteCheckoutRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.checkoutService.Complete(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetUserOrders handles GET /orders/:user_id
func (h *Handlers) GetUserOrders(c *gin.Context) {
	records, err := h.checkoutService.ListOrders(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}
