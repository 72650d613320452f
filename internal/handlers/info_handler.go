package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skyroutes/booking-backend/internal/models"
)

// InfoHandler handles the service info endpoint
type InfoHandler struct{}

// NewInfoHandler creates a new InfoHandler
func NewInfoHandler() *InfoHandler {
	return &InfoHandler{}
}

// GetInfo reports that the API is reachable
// @Summary Service info
// @Tags Info
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /info [get]
func (h *InfoHandler) GetInfo(c *gin.Context) {
	c.JSON(http.StatusOK, models.NewSuccessResponse("Booking API is live", struct{}{}))
}
