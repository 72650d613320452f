package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/skyroutes/booking-backend/internal/config"
	"github.com/skyroutes/booking-backend/internal/models"
)

// Event types published to the booking events topic
const (
	EventBookingCreated   = "booking.created"
	EventBookingPaid      = "booking.paid"
	EventBookingCancelled = "booking.cancelled"
	EventBookingsExpired  = "bookings.expired"
)

// BookingEvent is the message published on booking lifecycle transitions.
// Consumers (notification workers, analytics) key on BookingID.
type BookingEvent struct {
	Type       string               `json:"type"`
	BookingID  int64                `json:"booking_id,omitempty"`
	FlightID   int64                `json:"flight_id,omitempty"`
	UserID     int64                `json:"user_id,omitempty"`
	Status     models.BookingStatus `json:"status,omitempty"`
	NoOfSeats  int                  `json:"no_of_seats,omitempty"`
	TotalCost  int64                `json:"total_cost,omitempty"`
	Count      int64                `json:"count,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// Producer publishes booking lifecycle events to Kafka. Publishing is
// best-effort: failures are logged and never bubble into the booking flow.
// A nil Producer is valid and publishes nothing, so event publishing can
// be switched off by configuration.
type Producer struct {
	writer *kafka.Writer
	logger *logrus.Logger
}

// NewProducer creates a Kafka producer for booking events. Returns nil
// when no brokers are configured.
func NewProducer(cfg config.EventsConfig, logger *logrus.Logger) *Producer {
	if len(cfg.Brokers) == 0 {
		logger.Info("Kafka brokers not configured, booking events disabled")
		return nil
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	logger.WithFields(logrus.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Info("Kafka booking events producer initialized")

	return &Producer{writer: writer, logger: logger}
}

// Publish sends a booking event. Safe to call on a nil Producer.
func (p *Producer) Publish(event BookingEvent) {
	if p == nil {
		return
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).WithField("event_type", event.Type).Error("Failed to marshal booking event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.Type),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": event.Type,
			"booking_id": event.BookingID,
		}).Error("Failed to publish booking event")
	}
}

// Close flushes and closes the underlying writer. Safe to call on a nil
// Producer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
