package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetEcoImpact handles GET /eco-impact/:user_id
func (h *Handlers) GetEcoImpact(c *gin.Context) {
	impact, err := h.ecoService.Get(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, impact)
}

// GetCommunityImpact handles GET /community-impact
func (h *Handlers) GetCommunityImpact(c *gin.Context) {
	total, err := h.ecoService.Community(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, total)
}
