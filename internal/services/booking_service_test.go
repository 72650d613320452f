package services

import (
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/skyroutes/booking-backend/internal/config"
	"github.com/skyroutes/booking-backend/internal/database"
	"github.com/skyroutes/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seatUpdate struct {
	flightID  int64
	seats     int
	decrement bool
}

// stubFlightsGateway records seat updates and returns canned responses
type stubFlightsGateway struct {
	flight    *Flight
	getErr    error
	updateErr error
	updates   []seatUpdate
}

func (g *stubFlightsGateway) GetFlight(flightID int64) (*Flight, error) {
	if g.getErr != nil {
		return nil, g.getErr
	}
	return g.flight, nil
}

func (g *stubFlightsGateway) UpdateSeats(flightID int64, seats int, decrement bool) error {
	if g.updateErr != nil {
		return g.updateErr
	}
	g.updates = append(g.updates, seatUpdate{flightID: flightID, seats: seats, decrement: decrement})
	return nil
}

func setupBookingServiceTest(t *testing.T) (*BookingService, sqlmock.Sqlmock, *stubFlightsGateway, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	bookingRepo := database.NewBookingRepository(sqlxDB)
	idempotencyRepo := database.NewIdempotencyRepository(&database.PostgresDB{DB: sqlxDB})

	gateway := &stubFlightsGateway{
		flight: &Flight{ID: 10, TotalSeats: 5, Price: 500},
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.BookingConfig{
		PaymentWindow:     5 * time.Minute,
		StaleWindow:       3 * time.Minute,
		SweepInterval:     30 * time.Minute,
		IdempotencyKeyTTL: 24 * time.Hour,
	}

	service := NewBookingService(bookingRepo, idempotencyRepo, gateway, nil, cfg, logger)

	cleanup := func() {
		db.Close()
	}

	return service, mock, gateway, cleanup
}

func bookingRow(id int64, status models.BookingStatus, createdAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "flight_id", "user_id", "status", "total_cost", "no_of_seats", "created_at", "updated_at"}).
		AddRow(id, int64(10), int64(7), string(status), int64(1000), 2, createdAt, createdAt)
}

// ============================================================================
// CREATE BOOKING
// ============================================================================

func TestCreateBooking_ComputesCostAndDecrementsSeats(t *testing.T) {
	service, mock, gateway, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(int64(10), int64(7), models.BookingStatusInitiated, int64(1000), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(1), now, now))
	mock.ExpectCommit()

	booking, err := service.CreateBooking(&models.CreateBookingRequest{
		FlightID:  10,
		UserID:    7,
		NoOfSeats: 2,
	})
	require.NoError(t, err)

	// Cost is price * seats from the flights service, never from the client
	assert.Equal(t, int64(1000), booking.TotalCost)
	assert.Equal(t, models.BookingStatusInitiated, booking.Status)

	require.Len(t, gateway.updates, 1)
	assert.Equal(t, seatUpdate{flightID: 10, seats: 2, decrement: true}, gateway.updates[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBooking_DefaultsToOneSeat(t *testing.T) {
	service, mock, gateway, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(int64(10), int64(7), models.BookingStatusInitiated, int64(500), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(1), now, now))
	mock.ExpectCommit()

	booking, err := service.CreateBooking(&models.CreateBookingRequest{FlightID: 10, UserID: 7})
	require.NoError(t, err)

	assert.Equal(t, 1, booking.NoOfSeats)
	assert.Equal(t, int64(500), booking.TotalCost)
	require.Len(t, gateway.updates, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBooking_InsufficientSeats_NoWrites(t *testing.T) {
	service, mock, gateway, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	gateway.flight.TotalSeats = 1

	_, err := service.CreateBooking(&models.CreateBookingRequest{
		FlightID:  10,
		UserID:    7,
		NoOfSeats: 2,
	})
	require.Error(t, err)
	assert.True(t, models.IsErrorCode(err, models.ErrCodeInsufficientSeats))

	// Neither the store nor the remote seat pool was touched
	assert.Empty(t, gateway.updates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBooking_SeatDecrementFails_RollsBack(t *testing.T) {
	service, mock, gateway, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	now := time.Now()
	gateway.updateErr = models.NewAppError(models.ErrCodeUpstreamUnavailable, "flights service unavailable", 503)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(int64(10), int64(7), models.BookingStatusInitiated, int64(1000), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(1), now, now))
	mock.ExpectRollback()

	_, err := service.CreateBooking(&models.CreateBookingRequest{
		FlightID:  10,
		UserID:    7,
		NoOfSeats: 2,
	})
	require.Error(t, err)
	assert.True(t, models.IsErrorCode(err, models.ErrCodeUpstreamUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBooking_FlightLookupFails(t *testing.T) {
	service, mock, gateway, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	gateway.getErr = models.NewAppError(models.ErrCodeUpstreamError, "flights service returned status 500", 502)

	_, err := service.CreateBooking(&models.CreateBookingRequest{FlightID: 10, UserID: 7})
	require.Error(t, err)
	assert.True(t, models.IsErrorCode(err, models.ErrCodeUpstreamError))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================================
// MAKE PAYMENT
// ============================================================================

func expectKeyUnused(mock sqlmock.Sqlmock, key string) {
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(key).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
}

func TestMakePayment_ConfirmsBooking(t *testing.T) {
	service, mock, _, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	now := time.Now()

	expectKeyUnused(mock, "key-1")
	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT (.+) FROM bookings (.+) FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(bookingRow(1, models.BookingStatusInitiated, now))
	mock.ExpectQuery("UPDATE bookings").
		WithArgs(int64(1), models.BookingStatusBooked).
		WillReturnRows(bookingRow(1, models.BookingStatusBooked, now))
	mock.ExpectCommit()
	mock.ExpectExec("INSERT INTO payment_idempotency_keys").
		WithArgs("key-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	booking, err := service.MakePayment(&models.PaymentRequest{
		BookingID: 1,
		UserID:    7,
		TotalCost: 1000,
	}, "key-1")
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusBooked, booking.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMakePayment_DuplicateIdempotencyKey(t *testing.T) {
	service, mock, _, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("key-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := service.MakePayment(&models.PaymentRequest{
		BookingID: 1,
		UserID:    7,
		TotalCost: 1000,
	}, "key-1")
	require.Error(t, err)
	assert.True(t, models.IsErrorCode(err, models.ErrCodeDuplicateIdempotencyKey))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMakePayment_ExpiredBookingIsCancelled(t *testing.T) {
	service, mock, gateway, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	createdAt := time.Now().Add(-6 * time.Minute)

	expectKeyUnused(mock, "key-1")

	// Payment transaction observes the expired booking and backs off
	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT (.+) FROM bookings (.+) FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(bookingRow(1, models.BookingStatusInitiated, createdAt))
	mock.ExpectRollback()

	// Cancellation runs in its own transaction
	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT (.+) FROM bookings (.+) FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(bookingRow(1, models.BookingStatusInitiated, createdAt))
	mock.ExpectQuery("UPDATE bookings").
		WithArgs(int64(1), models.BookingStatusCancelled).
		WillReturnRows(bookingRow(1, models.BookingStatusCancelled, createdAt))
	mock.ExpectCommit()

	_, err := service.MakePayment(&models.PaymentRequest{
		BookingID: 1,
		UserID:    7,
		TotalCost: 1000,
	}, "key-1")
	require.Error(t, err)
	assert.True(t, models.IsErrorCode(err, models.ErrCodeBookingExpired))

	// Seats were restored by the cancellation
	require.Len(t, gateway.updates, 1)
	assert.Equal(t, seatUpdate{flightID: 10, seats: 2, decrement: false}, gateway.updates[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMakePayment_CancelledBookingFailsFast(t *testing.T) {
	service, mock, gateway, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	// Old enough to be past the window; the terminal gate wins before the
	// expiry branch, so no second cancellation transaction runs
	createdAt := time.Now().Add(-6 * time.Minute)

	expectKeyUnused(mock, "key-1")
	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT (.+) FROM bookings (.+) FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(bookingRow(1, models.BookingStatusCancelled, createdAt))
	mock.ExpectRollback()

	_, err := service.MakePayment(&models.PaymentRequest{
		BookingID: 1,
		UserID:    7,
		TotalCost: 1000,
	}, "key-1")
	require.Error(t, err)
	assert.True(t, models.IsErrorCode(err, models.ErrCodeBookingExpired))
	assert.Empty(t, gateway.updates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMakePayment_AgedBookedBookingIsNotCancelled(t *testing.T) {
	service, mock, gateway, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	// Paid well past the payment window; BOOKED is immune to expiry
	createdAt := time.Now().Add(-6 * time.Minute)

	expectKeyUnused(mock, "key-2")
	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT (.+) FROM bookings (.+) FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(bookingRow(1, models.BookingStatusBooked, createdAt))
	mock.ExpectRollback()

	_, err := service.MakePayment(&models.PaymentRequest{
		BookingID: 1,
		UserID:    7,
		TotalCost: 1000,
	}, "key-2")
	require.Error(t, err)
	assert.True(t, models.IsErrorCode(err, models.ErrCodeBookingAlreadyPaid))

	// No cancellation transaction ran and no seats were restored
	assert.Empty(t, gateway.updates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMakePayment_SecondPaymentLoses(t *testing.T) {
	service, mock, _, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	expectKeyUnused(mock, "key-2")
	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT (.+) FROM bookings (.+) FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(bookingRow(1, models.BookingStatusBooked, time.Now()))
	mock.ExpectRollback()

	_, err := service.MakePayment(&models.PaymentRequest{
		BookingID: 1,
		UserID:    7,
		TotalCost: 1000,
	}, "key-2")
	require.Error(t, err)
	assert.True(t, models.IsErrorCode(err, models.ErrCodeBookingAlreadyPaid))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMakePayment_AmountMismatch(t *testing.T) {
	service, mock, _, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	expectKeyUnused(mock, "key-1")
	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT (.+) FROM bookings (.+) FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(bookingRow(1, models.BookingStatusInitiated, time.Now()))
	mock.ExpectRollback()

	_, err := service.MakePayment(&models.PaymentRequest{
		BookingID: 1,
		UserID:    7,
		TotalCost: 900,
	}, "key-1")
	require.Error(t, err)
	assert.True(t, models.IsErrorCode(err, models.ErrCodeAmountMismatch))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMakePayment_UserMismatch(t *testing.T) {
	service, mock, _, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	expectKeyUnused(mock, "key-1")
	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT (.+) FROM bookings (.+) FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(bookingRow(1, models.BookingStatusInitiated, time.Now()))
	mock.ExpectRollback()

	_, err := service.MakePayment(&models.PaymentRequest{
		BookingID: 1,
		UserID:    8,
		TotalCost: 1000,
	}, "key-1")
	require.Error(t, err)
	assert.True(t, models.IsErrorCode(err, models.ErrCodeUserMismatch))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMakePayment_BookingNotFound(t *testing.T) {
	service, mock, _, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	expectKeyUnused(mock, "key-1")
	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT (.+) FROM bookings (.+) FOR UPDATE").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "flight_id", "user_id", "status", "total_cost", "no_of_seats", "created_at", "updated_at"}))
	mock.ExpectRollback()

	_, err := service.MakePayment(&models.PaymentRequest{
		BookingID: 99,
		UserID:    7,
		TotalCost: 1000,
	}, "key-1")
	require.Error(t, err)
	assert.True(t, models.IsErrorCode(err, models.ErrCodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================================
// CANCEL BOOKING
// ============================================================================

func TestCancelBooking_RestoresSeats(t *testing.T) {
	service, mock, gateway, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT (.+) FROM bookings (.+) FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(bookingRow(1, models.BookingStatusPending, now))
	mock.ExpectQuery("UPDATE bookings").
		WithArgs(int64(1), models.BookingStatusCancelled).
		WillReturnRows(bookingRow(1, models.BookingStatusCancelled, now))
	mock.ExpectCommit()

	booking, err := service.CancelBooking(1)
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusCancelled, booking.Status)
	require.Len(t, gateway.updates, 1)
	assert.Equal(t, seatUpdate{flightID: 10, seats: 2, decrement: false}, gateway.updates[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBooking_AlreadyCancelled_NoOp(t *testing.T) {
	service, mock, gateway, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT (.+) FROM bookings (.+) FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(bookingRow(1, models.BookingStatusCancelled, time.Now()))
	mock.ExpectRollback()

	booking, err := service.CancelBooking(1)
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusCancelled, booking.Status)
	assert.Empty(t, gateway.updates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBooking_SeatRestoreFails_KeepsStatus(t *testing.T) {
	service, mock, gateway, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	gateway.updateErr = models.NewAppError(models.ErrCodeUpstreamUnavailable, "flights service unavailable", 503)

	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT (.+) FROM bookings (.+) FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(bookingRow(1, models.BookingStatusPending, time.Now()))
	mock.ExpectRollback()

	_, err := service.CancelBooking(1)
	require.Error(t, err)
	assert.True(t, models.IsErrorCode(err, models.ErrCodeUpstreamUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================================
// READ / MAINTENANCE
// ============================================================================

func TestGetBooking_NotFound(t *testing.T) {
	service, mock, _, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	mock.ExpectQuery("(?s)SELECT (.+) FROM bookings").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "flight_id", "user_id", "status", "total_cost", "no_of_seats", "created_at", "updated_at"}))

	_, err := service.GetBooking(99)
	require.Error(t, err)
	assert.True(t, models.IsErrorCode(err, models.ErrCodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelExpiredBookings_ReturnsCount(t *testing.T) {
	service, mock, _, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	mock.ExpectExec("UPDATE bookings").
		WithArgs(models.BookingStatusCancelled, sqlmock.AnyArg(), models.BookingStatusBooked, models.BookingStatusCancelled).
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := service.CancelExpiredBookings()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeExpiredIdempotencyKeys_ReturnsCount(t *testing.T) {
	service, mock, _, cleanup := setupBookingServiceTest(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM payment_idempotency_keys").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	count, err := service.PurgeExpiredIdempotencyKeys()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
