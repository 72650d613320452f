package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/skyroutes/booking-backend/internal/config"
	"github.com/skyroutes/booking-backend/internal/models"
)

// Flight represents the flight payload returned by the flights service.
// TotalSeats is the remaining availability; Price is the per-seat price in
// currency units.
type Flight struct {
	ID         int64 `json:"id"`
	TotalSeats int   `json:"totalSeats"`
	Price      int64 `json:"price"`
}

// FlightsGateway defines the boundary to the remote flights service.
// Calls are synchronous with no built-in retry; failures propagate
// immediately to the caller.
type FlightsGateway interface {
	// GetFlight fetches current capacity and per-seat price
	GetFlight(flightID int64) (*Flight, error)

	// UpdateSeats adjusts the flight's available seats. decrement true
	// takes seats out of the pool, false restores them.
	UpdateSeats(flightID int64, seats int, decrement bool) error
}

// flightsEnvelope mirrors the flights service response envelope
type flightsEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// updateSeatsRequest is the PATCH body for seat adjustments. Dec defaults
// to decrement on the flights service side; it is always sent explicitly
// here so restores are unambiguous.
type updateSeatsRequest struct {
	Seats int  `json:"seats"`
	Dec   bool `json:"dec"`
}

// FlightsClient is the HTTP implementation of FlightsGateway
type FlightsClient struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// NewFlightsClient creates a new flights service client
func NewFlightsClient(cfg config.FlightsConfig, logger *logrus.Logger) *FlightsClient {
	return &FlightsClient{
		baseURL: cfg.ServiceURL,
		logger:  logger,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// GetFlight fetches the flight's current capacity and price
func (c *FlightsClient) GetFlight(flightID int64) (*Flight, error) {
	url := fmt.Sprintf("%s/api/v1/flights/%d", c.baseURL, flightID)

	resp, err := c.client.Get(url)
	if err != nil {
		c.logger.WithError(err).WithField("flight_id", flightID).Error("Flights service unreachable")
		return nil, models.NewAppError(
			models.ErrCodeUpstreamUnavailable,
			"flights service unavailable",
			http.StatusServiceUnavailable,
		)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewAppError(
			models.ErrCodeUpstreamError,
			"failed to read flights service response",
			http.StatusBadGateway,
		)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"flight_id": flightID,
			"status":    resp.StatusCode,
		}).Error("Flights service returned error")
		return nil, models.NewAppError(
			models.ErrCodeUpstreamError,
			fmt.Sprintf("flights service returned status %d", resp.StatusCode),
			http.StatusBadGateway,
		)
	}

	var envelope flightsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, models.NewAppError(
			models.ErrCodeUpstreamError,
			"invalid flights service response",
			http.StatusBadGateway,
		)
	}

	var flight Flight
	if err := json.Unmarshal(envelope.Data, &flight); err != nil {
		return nil, models.NewAppError(
			models.ErrCodeUpstreamError,
			"invalid flight payload",
			http.StatusBadGateway,
		)
	}

	return &flight, nil
}

// UpdateSeats adjusts seat availability on the remote flight
func (c *FlightsClient) UpdateSeats(flightID int64, seats int, decrement bool) error {
	url := fmt.Sprintf("%s/api/v1/flights/%d/seats", c.baseURL, flightID)

	payload, err := json.Marshal(updateSeatsRequest{Seats: seats, Dec: decrement})
	if err != nil {
		return fmt.Errorf("failed to marshal seats payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPatch, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build seats request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"flight_id": flightID,
			"seats":     seats,
			"decrement": decrement,
		}).Error("Flights service unreachable")
		return models.NewAppError(
			models.ErrCodeUpstreamUnavailable,
			"flights service unavailable",
			http.StatusServiceUnavailable,
		)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WithFields(logrus.Fields{
			"flight_id": flightID,
			"seats":     seats,
			"decrement": decrement,
			"status":    resp.StatusCode,
		}).Error("Flights service rejected seat update")
		return models.NewAppError(
			models.ErrCodeUpstreamError,
			fmt.Sprintf("flights service returned status %d", resp.StatusCode),
			http.StatusBadGateway,
		)
	}

	return nil
}

var _ FlightsGateway = (*FlightsClient)(nil)
