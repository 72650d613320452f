package database

import (
	"fmt"
	"net/http"
	"time"

	"github.com/skyroutes/booking-backend/internal/models"
)

// IdempotencyRepository stores used payment idempotency keys. Keys live in
// the same transactional store as bookings so deduplication survives
// process restarts and is consistent under concurrent access.
type IdempotencyRepository struct {
	db DB
}

// NewIdempotencyRepository creates a new IdempotencyRepository
func NewIdempotencyRepository(db DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// IsKeyUsed reports whether the idempotency key has already been recorded
func (r *IdempotencyRepository) IsKeyUsed(key string) (bool, error) {
	var used bool
	query := `SELECT EXISTS (SELECT 1 FROM payment_idempotency_keys WHERE key = $1)`
	if err := r.db.Get(&used, query, key); err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return used, nil
}

// RecordKey marks an idempotency key as used. The unique index on key makes
// concurrent recording race-safe: the loser gets DUPLICATE_IDEMPOTENCY_KEY.
func (r *IdempotencyRepository) RecordKey(key string) error {
	query := `
		INSERT INTO payment_idempotency_keys (key, created_at)
		VALUES ($1, NOW())
		ON CONFLICT (key) DO NOTHING`

	result, err := r.db.Exec(query, key)
	if err != nil {
		return fmt.Errorf("failed to record idempotency key: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return models.NewAppError(
			models.ErrCodeDuplicateIdempotencyKey,
			"cannot retry on a successful payment",
			http.StatusBadRequest,
		)
	}
	return nil
}

// PurgeKeysOlderThan removes used keys recorded before the cutoff. Returns
// the number of purged keys.
func (r *IdempotencyRepository) PurgeKeysOlderThan(cutoff time.Time) (int64, error) {
	query := `DELETE FROM payment_idempotency_keys WHERE created_at < $1`
	result, err := r.db.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge idempotency keys: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected, nil
}
