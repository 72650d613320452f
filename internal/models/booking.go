package models

import (
	"time"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusInitiated BookingStatus = "initiated"
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusBooked    BookingStatus = "booked"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking represents a seat reservation against a flight owned by the
// remote flights service. The flight and user are references only; this
// service does not own either entity. Bookings are never physically
// deleted - cancellation is a status transition.
type Booking struct {
	ID        int64         `json:"id" db:"id"`
	FlightID  int64         `json:"flight_id" db:"flight_id"`
	UserID    int64         `json:"user_id" db:"user_id"`
	Status    BookingStatus `json:"status" db:"status"`
	TotalCost int64         `json:"total_cost" db:"total_cost"`
	NoOfSeats int           `json:"no_of_seats" db:"no_of_seats"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the booking can no longer change status.
// Cancellation is the only terminal state.
func (b *Booking) IsTerminal() bool {
	return b.Status == BookingStatusCancelled
}

// CreateBookingRequest represents the request to create a booking.
// NoOfSeats defaults to 1 when omitted.
type CreateBookingRequest struct {
	FlightID  int64 `json:"flightId" binding:"required"`
	UserID    int64 `json:"userId" binding:"required"`
	NoOfSeats int   `json:"noOfSeats"`
}

// PaymentRequest represents the request to pay for a booking
type PaymentRequest struct {
	BookingID int64 `json:"bookingId" binding:"required"`
	UserID    int64 `json:"userId" binding:"required"`
	TotalCost int64 `json:"totalCost" binding:"required"`
}
