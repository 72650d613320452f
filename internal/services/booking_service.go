package services

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/skyroutes/booking-backend/internal/config"
	"github.com/skyroutes/booking-backend/internal/database"
	"github.com/skyroutes/booking-backend/internal/events"
	"github.com/skyroutes/booking-backend/internal/models"
)

// BookingService orchestrates the booking lifecycle across the local store
// and the remote flights service. Local writes are provisional until the
// remote seat adjustment succeeds; a remote failure rolls the local
// transaction back so the store never confirms seats the flights service
// did not release.
type BookingService struct {
	bookingRepo     *database.BookingRepository
	idempotencyRepo *database.IdempotencyRepository
	flights         FlightsGateway
	producer        *events.Producer
	config          config.BookingConfig
	logger          *logrus.Logger
}

// NewBookingService creates a new booking orchestration service
func NewBookingService(
	bookingRepo *database.BookingRepository,
	idempotencyRepo *database.IdempotencyRepository,
	flights FlightsGateway,
	producer *events.Producer,
	config config.BookingConfig,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookingRepo:     bookingRepo,
		idempotencyRepo: idempotencyRepo,
		flights:         flights,
		producer:        producer,
		config:          config,
		logger:          logger,
	}
}

// ============================================================================
// CREATE BOOKING (Phase 1: reserve seats)
// ============================================================================

// CreateBooking reserves seats on a flight. The booking is inserted as
// INITIATED inside a transaction, the remote seat pool is decremented, and
// only then is the transaction committed. If the remote decrement fails the
// insert is rolled back and no booking exists.
func (s *BookingService) CreateBooking(req *models.CreateBookingRequest) (*models.Booking, error) {
	seats := req.NoOfSeats
	if seats <= 0 {
		seats = 1
	}

	// 1. Fetch current capacity and price from the flights service
	flight, err := s.flights.GetFlight(req.FlightID)
	if err != nil {
		return nil, err
	}

	// 2. Reject before touching the store when capacity is insufficient
	if flight.TotalSeats < seats {
		s.logger.WithFields(logrus.Fields{
			"flight_id":       req.FlightID,
			"requested_seats": seats,
			"available_seats": flight.TotalSeats,
		}).Warn("Booking rejected, not enough seats")
		return nil, models.NewAppError(
			models.ErrCodeInsufficientSeats,
			"not enough seats available",
			http.StatusBadRequest,
		)
	}

	// 3. Server-side cost, never trusted from the client
	totalCost := flight.Price * int64(seats)

	booking := &models.Booking{
		FlightID:  req.FlightID,
		UserID:    req.UserID,
		Status:    models.BookingStatusInitiated,
		TotalCost: totalCost,
		NoOfSeats: seats,
	}

	// 4. Provisional insert
	tx, err := s.bookingRepo.BeginTx()
	if err != nil {
		return nil, models.NewStoreError("failed to start booking transaction")
	}

	if err := s.bookingRepo.CreateBooking(tx, booking); err != nil {
		tx.Rollback()
		s.logger.WithError(err).Error("Failed to insert booking")
		return nil, models.NewStoreError("failed to create booking")
	}

	// 5. Decrement remote seats; on failure discard the provisional insert
	if err := s.flights.UpdateSeats(req.FlightID, seats, true); err != nil {
		tx.Rollback()
		s.logger.WithError(err).WithField("flight_id", req.FlightID).Error("Seat decrement failed, booking rolled back")
		return nil, err
	}

	// 6. Remote seats are held, make the booking durable
	if err := tx.Commit(); err != nil {
		s.logger.WithError(err).WithField("flight_id", req.FlightID).Error("Failed to commit booking after seat decrement")
		return nil, models.NewStoreError("failed to commit booking")
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"flight_id":  booking.FlightID,
		"user_id":    booking.UserID,
		"seats":      seats,
		"total_cost": totalCost,
	}).Info("Booking created")

	s.producer.Publish(events.BookingEvent{
		Type:      events.EventBookingCreated,
		BookingID: booking.ID,
		FlightID:  booking.FlightID,
		UserID:    booking.UserID,
		Status:    booking.Status,
		NoOfSeats: booking.NoOfSeats,
		TotalCost: booking.TotalCost,
	})

	return booking, nil
}

// ============================================================================
// MAKE PAYMENT (Phase 2: confirm)
// ============================================================================

// MakePayment confirms a booking. The booking row is locked for the
// duration of the checks so concurrent payments on the same booking
// serialize; exactly one wins, the rest observe BOOKED and fail. A payment
// arriving after the payment window cancels the unconfirmed booking
// instead; BOOKED bookings are immune to expiry.
func (s *BookingService) MakePayment(req *models.PaymentRequest, idempotencyKey string) (*models.Booking, error) {
	// 1. Reject replays before opening a transaction
	used, err := s.idempotencyRepo.IsKeyUsed(idempotencyKey)
	if err != nil {
		return nil, models.NewStoreError("failed to check idempotency key")
	}
	if used {
		return nil, models.NewAppError(
			models.ErrCodeDuplicateIdempotencyKey,
			"cannot retry on a successful payment",
			http.StatusBadRequest,
		)
	}

	tx, err := s.bookingRepo.BeginTx()
	if err != nil {
		return nil, models.NewStoreError("failed to start payment transaction")
	}

	// 2. Lock the booking row for the read-then-update sequence
	booking, err := s.bookingRepo.GetBookingForUpdate(tx, req.BookingID)
	if err != nil {
		tx.Rollback()
		return nil, models.NewStoreError("failed to load booking")
	}
	if booking == nil {
		tx.Rollback()
		return nil, models.NewAppError(
			models.ErrCodeNotFound,
			"booking not found",
			http.StatusNotFound,
		)
	}

	// 3. Terminal gate first: a cancelled booking never re-enters the flow
	if booking.Status == models.BookingStatusCancelled {
		tx.Rollback()
		return nil, models.NewAppError(
			models.ErrCodeBookingExpired,
			"booking has expired",
			http.StatusBadRequest,
		)
	}

	// 4. Payment window: a late payment cancels the booking. BOOKED is
	// immune to expiry. The payment transaction is rolled back first so
	// the cancellation transaction can take the row lock.
	if booking.Status != models.BookingStatusBooked && time.Since(booking.CreatedAt) > s.config.PaymentWindow {
		tx.Rollback()
		if _, cancelErr := s.CancelBooking(booking.ID); cancelErr != nil {
			s.logger.WithError(cancelErr).WithField("booking_id", booking.ID).Error("Failed to cancel expired booking during payment")
		}
		return nil, models.NewAppError(
			models.ErrCodeBookingExpired,
			"booking has expired",
			http.StatusBadRequest,
		)
	}

	// 5. A paid booking stays paid regardless of age
	if booking.Status == models.BookingStatusBooked {
		tx.Rollback()
		return nil, models.NewAppError(
			models.ErrCodeBookingAlreadyPaid,
			"booking is already paid",
			http.StatusBadRequest,
		)
	}

	// 6. The payment must match the stored booking exactly
	if req.TotalCost != booking.TotalCost {
		tx.Rollback()
		return nil, models.NewAppError(
			models.ErrCodeAmountMismatch,
			"payment amount does not match booking cost",
			http.StatusBadRequest,
		)
	}
	if req.UserID != booking.UserID {
		tx.Rollback()
		return nil, models.NewAppError(
			models.ErrCodeUserMismatch,
			"booking does not belong to this user",
			http.StatusBadRequest,
		)
	}

	// 7. Confirm
	updated, err := s.bookingRepo.UpdateBookingStatus(tx, booking.ID, models.BookingStatusBooked)
	if err != nil {
		tx.Rollback()
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to confirm booking")
		return nil, models.NewStoreError("failed to confirm booking")
	}

	if err := tx.Commit(); err != nil {
		return nil, models.NewStoreError("failed to commit payment")
	}

	// 8. Record the key only after the payment is durable, so a failed
	// payment never burns the key. A concurrent payment with the same key
	// against a different booking loses here on the unique index.
	if err := s.idempotencyRepo.RecordKey(idempotencyKey); err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to record idempotency key after payment")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": updated.ID,
		"user_id":    updated.UserID,
		"total_cost": updated.TotalCost,
	}).Info("Payment accepted, booking confirmed")

	s.producer.Publish(events.BookingEvent{
		Type:      events.EventBookingPaid,
		BookingID: updated.ID,
		FlightID:  updated.FlightID,
		UserID:    updated.UserID,
		Status:    updated.Status,
		NoOfSeats: updated.NoOfSeats,
		TotalCost: updated.TotalCost,
	})

	return updated, nil
}

// ============================================================================
// CANCEL BOOKING (compensation)
// ============================================================================

// CancelBooking cancels a booking and restores its seats to the flight
// pool. Cancelling an already-cancelled booking is a no-op that succeeds,
// so callers can retry safely. Seats are restored before the local
// transition commits; if the restore fails the booking keeps its status.
func (s *BookingService) CancelBooking(bookingID int64) (*models.Booking, error) {
	tx, err := s.bookingRepo.BeginTx()
	if err != nil {
		return nil, models.NewStoreError("failed to start cancel transaction")
	}

	booking, err := s.bookingRepo.GetBookingForUpdate(tx, bookingID)
	if err != nil {
		tx.Rollback()
		return nil, models.NewStoreError("failed to load booking")
	}
	if booking == nil {
		tx.Rollback()
		return nil, models.NewAppError(
			models.ErrCodeNotFound,
			"booking not found",
			http.StatusNotFound,
		)
	}

	// Already cancelled: nothing to compensate
	if booking.IsTerminal() {
		tx.Rollback()
		return booking, nil
	}

	// Give the seats back before the local transition becomes visible
	if err := s.flights.UpdateSeats(booking.FlightID, booking.NoOfSeats, false); err != nil {
		tx.Rollback()
		s.logger.WithError(err).WithField("booking_id", bookingID).Error("Seat restore failed, cancellation aborted")
		return nil, err
	}

	updated, err := s.bookingRepo.UpdateBookingStatus(tx, bookingID, models.BookingStatusCancelled)
	if err != nil {
		tx.Rollback()
		return nil, models.NewStoreError("failed to cancel booking")
	}

	if err := tx.Commit(); err != nil {
		return nil, models.NewStoreError("failed to commit cancellation")
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": updated.ID,
		"flight_id":  updated.FlightID,
		"seats":      updated.NoOfSeats,
	}).Info("Booking cancelled, seats restored")

	s.producer.Publish(events.BookingEvent{
		Type:      events.EventBookingCancelled,
		BookingID: updated.ID,
		FlightID:  updated.FlightID,
		UserID:    updated.UserID,
		Status:    updated.Status,
		NoOfSeats: updated.NoOfSeats,
	})

	return updated, nil
}

// ============================================================================
// READ / MAINTENANCE
// ============================================================================

// GetBooking returns a booking by id
func (s *BookingService) GetBooking(bookingID int64) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetBookingByID(bookingID)
	if err != nil {
		return nil, models.NewStoreError("failed to load booking")
	}
	if booking == nil {
		return nil, models.NewAppError(
			models.ErrCodeNotFound,
			"booking not found",
			http.StatusNotFound,
		)
	}
	return booking, nil
}

// CancelExpiredBookings bulk-cancels unconfirmed bookings older than the
// stale window. The bulk path does not restore remote seats; swept INITIATED
// bookings leave their decrement in place until reconciled out of band.
func (s *BookingService) CancelExpiredBookings() (int64, error) {
	cutoff := time.Now().Add(-s.config.StaleWindow)

	count, err := s.bookingRepo.CancelStaleBookings(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel stale bookings: %w", err)
	}

	if count > 0 {
		s.logger.WithField("count", count).Info("Stale bookings cancelled")
		s.producer.Publish(events.BookingEvent{
			Type:  events.EventBookingsExpired,
			Count: count,
		})
	}

	return count, nil
}

// PurgeExpiredIdempotencyKeys removes idempotency keys past their TTL
func (s *BookingService) PurgeExpiredIdempotencyKeys() (int64, error) {
	cutoff := time.Now().Add(-s.config.IdempotencyKeyTTL)

	count, err := s.idempotencyRepo.PurgeKeysOlderThan(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge idempotency keys: %w", err)
	}

	if count > 0 {
		s.logger.WithField("count", count).Info("Expired idempotency keys purged")
	}

	return count, nil
}
