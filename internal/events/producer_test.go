package events

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/skyroutes/booking-backend/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNewProducer_DisabledWithoutBrokers(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	producer := NewProducer(config.EventsConfig{Topic: "booking-events"}, logger)
	assert.Nil(t, producer)
}

func TestNilProducer_PublishAndCloseAreSafe(t *testing.T) {
	var producer *Producer

	// Must not panic
	producer.Publish(BookingEvent{Type: EventBookingCreated, BookingID: 1})
	assert.NoError(t, producer.Close())
}
