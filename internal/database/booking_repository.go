package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/skyroutes/booking-backend/internal/models"
)

// BookingRepository handles booking database operations. Mutations that
// participate in an orchestrated flow take an explicit transaction so the
// caller controls commit/rollback across remote calls.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// BeginTx starts a new transaction
func (r *BookingRepository) BeginTx() (*sqlx.Tx, error) {
	return r.db.Beginx()
}

// CreateBooking inserts a booking inside the given transaction. The store
// assigns id, created_at and updated_at; the booking is updated in place.
func (r *BookingRepository) CreateBooking(tx *sqlx.Tx, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (flight_id, user_id, status, total_cost, no_of_seats)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := tx.QueryRow(query,
		booking.FlightID, booking.UserID, booking.Status, booking.TotalCost, booking.NoOfSeats,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetBookingByID retrieves a booking outside any transaction.
// Returns nil, nil when the booking does not exist.
func (r *BookingRepository) GetBookingByID(bookingID int64) (*models.Booking, error) {
	var booking models.Booking
	query := `
		SELECT id, flight_id, user_id, status, total_cost, no_of_seats, created_at, updated_at
		FROM bookings
		WHERE id = $1`

	err := r.db.Get(&booking, query, bookingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// GetBookingForUpdate reads a booking inside the transaction with a row
// lock, serializing concurrent read-then-update sequences on the same
// booking. Returns nil, nil when the booking does not exist.
func (r *BookingRepository) GetBookingForUpdate(tx *sqlx.Tx, bookingID int64) (*models.Booking, error) {
	var booking models.Booking
	query := `
		SELECT id, flight_id, user_id, status, total_cost, no_of_seats, created_at, updated_at
		FROM bookings
		WHERE id = $1
		FOR UPDATE`

	err := tx.Get(&booking, query, bookingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	return &booking, nil
}

// UpdateBookingStatus transitions the booking status inside the given
// transaction and returns the updated row.
func (r *BookingRepository) UpdateBookingStatus(tx *sqlx.Tx, bookingID int64, status models.BookingStatus) (*models.Booking, error) {
	var booking models.Booking
	query := `
		UPDATE bookings
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, flight_id, user_id, status, total_cost, no_of_seats, created_at, updated_at`

	err := tx.QueryRow(query, bookingID, status).Scan(
		&booking.ID, &booking.FlightID, &booking.UserID, &booking.Status,
		&booking.TotalCost, &booking.NoOfSeats, &booking.CreatedAt, &booking.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("booking %d not found", bookingID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	return &booking, nil
}

// CancelStaleBookings bulk-transitions unconfirmed bookings created before
// the cutoff to cancelled. Booked and already-cancelled rows are never
// touched. Returns the number of cancelled bookings.
func (r *BookingRepository) CancelStaleBookings(cutoff time.Time) (int64, error) {
	query := `
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE created_at < $2
		  AND status NOT IN ($3, $4)`

	result, err := r.db.Exec(query,
		models.BookingStatusCancelled, cutoff,
		models.BookingStatusBooked, models.BookingStatusCancelled,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel stale bookings: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected, nil
}
