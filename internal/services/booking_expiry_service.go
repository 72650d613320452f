package services

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/skyroutes/booking-backend/internal/config"
)

// BookingExpiryService periodically cancels stale unconfirmed bookings and
// purges idempotency keys past their TTL. It runs independently of the
// request path; a payment arriving for a booking the sweeper has not
// reached yet is still rejected by the payment-window check.
type BookingExpiryService struct {
	bookingService *BookingService
	logger         *logrus.Logger
	stopCh         chan struct{}
	interval       time.Duration
}

// NewBookingExpiryService creates a new expiry sweeper
func NewBookingExpiryService(
	bookingService *BookingService,
	cfg config.BookingConfig,
	logger *logrus.Logger,
) *BookingExpiryService {
	return &BookingExpiryService{
		bookingService: bookingService,
		logger:         logger,
		stopCh:         make(chan struct{}),
		interval:       cfg.SweepInterval,
	}
}

// Start begins the background sweep loop
func (s *BookingExpiryService) Start() {
	s.logger.WithField("interval", s.interval).Info("Starting booking expiry service")
	go s.run()
}

// Stop stops the background sweep loop
func (s *BookingExpiryService) Stop() {
	s.logger.Info("Stopping booking expiry service")
	close(s.stopCh)
}

func (s *BookingExpiryService) run() {
	// Run immediately on start
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			s.logger.Info("Booking expiry service stopped")
			return
		}
	}
}

// sweep runs one maintenance cycle
func (s *BookingExpiryService) sweep() {
	cancelled, err := s.bookingService.CancelExpiredBookings()
	if err != nil {
		s.logger.WithError(err).Error("Failed to cancel expired bookings")
	} else if cancelled > 0 {
		s.logger.WithField("count", cancelled).Info("Expired bookings cancelled")
	}

	purged, err := s.bookingService.PurgeExpiredIdempotencyKeys()
	if err != nil {
		s.logger.WithError(err).Error("Failed to purge idempotency keys")
	} else if purged > 0 {
		s.logger.WithField("count", purged).Info("Idempotency keys purged")
	}
}

// RunOnce runs a single sweep cycle (useful for testing or manual trigger)
func (s *BookingExpiryService) RunOnce() {
	s.sweep()
}
