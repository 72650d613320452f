package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/skyroutes/booking-backend/internal/models"
	"github.com/skyroutes/booking-backend/internal/services"
)

// IdempotencyKeyHeader carries the client-chosen payment idempotency key
const IdempotencyKeyHeader = "x-idempotency-key"

// BookingHandler handles booking lifecycle endpoints
type BookingHandler struct {
	bookingService *services.BookingService
	logger         *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookingService *services.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		logger:         logger,
	}
}

// ============================================================================
// CREATE BOOKING - POST /api/v1/bookings
// ============================================================================

// CreateBooking reserves seats on a flight
// @Summary Create a booking
// @Description Reserves seats on a flight and holds them until payment
// @Tags Bookings
// @Accept json
// @Produce json
// @Param request body models.CreateBookingRequest true "Booking request"
// @Success 201 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse "Validation error or not enough seats"
// @Failure 502 {object} models.APIResponse "Flights service error"
// @Router /bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, models.NewAppError(
			models.ErrCodeValidation,
			"invalid request: "+err.Error(),
			http.StatusBadRequest,
		))
		return
	}

	booking, err := h.bookingService.CreateBooking(&req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.NewSuccessResponse("Successfully completed the booking", booking))
}

// ============================================================================
// MAKE PAYMENT - POST /api/v1/bookings/payments
// ============================================================================

// MakePayment confirms a booking
// @Summary Pay for a booking
// @Description Confirms a pending booking; requires an idempotency key header
// @Tags Bookings
// @Accept json
// @Produce json
// @Param x-idempotency-key header string true "Idempotency key"
// @Param request body models.PaymentRequest true "Payment request"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse "Missing/duplicate key, expired booking or mismatch"
// @Failure 404 {object} models.APIResponse "Booking not found"
// @Router /bookings/payments [post]
func (h *BookingHandler) MakePayment(c *gin.Context) {
	idempotencyKey := c.GetHeader(IdempotencyKeyHeader)
	if idempotencyKey == "" {
		h.respondError(c, models.NewAppError(
			models.ErrCodeIdempotencyKeyMissing,
			"idempotency key is missing",
			http.StatusBadRequest,
		))
		return
	}

	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, models.NewAppError(
			models.ErrCodeValidation,
			"invalid request: "+err.Error(),
			http.StatusBadRequest,
		))
		return
	}

	booking, err := h.bookingService.MakePayment(&req, idempotencyKey)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.NewSuccessResponse("Successfully completed the payment", booking))
}

// ============================================================================
// GET BOOKING - GET /api/v1/bookings/:id
// ============================================================================

// GetBooking returns a booking by id
// @Summary Get a booking
// @Tags Bookings
// @Produce json
// @Param id path int true "Booking ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse "Booking not found"
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, ok := h.parseBookingID(c)
	if !ok {
		return
	}

	booking, err := h.bookingService.GetBooking(bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.NewSuccessResponse("Successfully fetched the booking", booking))
}

// ============================================================================
// CANCEL BOOKING - POST /api/v1/bookings/:id/cancel
// ============================================================================

// CancelBooking cancels a booking and restores its seats
// @Summary Cancel a booking
// @Description Cancels a booking; cancelling twice is a safe no-op
// @Tags Bookings
// @Produce json
// @Param id path int true "Booking ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse "Booking not found"
// @Failure 503 {object} models.APIResponse "Flights service unavailable"
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, ok := h.parseBookingID(c)
	if !ok {
		return
	}

	booking, err := h.bookingService.CancelBooking(bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.NewSuccessResponse("Successfully cancelled the booking", booking))
}

// ============================================================================
// HELPERS
// ============================================================================

func (h *BookingHandler) parseBookingID(c *gin.Context) (int64, bool) {
	bookingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.respondError(c, models.NewAppError(
			models.ErrCodeValidation,
			"invalid booking id",
			http.StatusBadRequest,
		))
		return 0, false
	}
	return bookingID, true
}

// respondError maps a service error onto the response envelope. Untyped
// errors are never leaked to clients.
func (h *BookingHandler) respondError(c *gin.Context, err error) {
	if appErr, ok := models.AsAppError(err); ok {
		if appErr.StatusCode >= http.StatusInternalServerError {
			h.logger.WithError(appErr).WithField("path", c.FullPath()).Error("Request failed")
		}
		c.JSON(appErr.StatusCode, models.NewErrorResponse(appErr))
		return
	}

	h.logger.WithError(err).WithField("path", c.FullPath()).Error("Unexpected error")
	c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
		models.NewStoreError("something went wrong"),
	))
}
