package storage

import (
	"context"
)

// IdempotencyRecord is the stored outcome of a finished request replay.
type IdempotencyRecord struct {
	Key           string
	AppointmentID string
	StatusCode    int
	ResponseBody  []byte
}

// ClaimIdempotencyKey inserts the key if unseen. claimed=true means the
// caller owns the key and must Finalize or Release it; claimed=false
// returns the stored record (StatusCode 0 while the first request is
// still in flight).
func (r *Repository) ClaimIdempotencyKey(ctx context.Context, key string) (IdempotencyRecord, bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key)
		VALUES ($1)
		ON CONFLICT (key) DO NOTHING
	`, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	if tag.RowsAffected() == 1 {
		return IdempotencyRecord{Key: key}, true, nil
	}

	var rec IdempotencyRecord
	rec.Key = key
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(appointment_id::text, ''), COALESCE(status_code, 0), COALESCE(response_body, '')
		FROM idempotency_keys
		WHERE key = $1
	`, key).Scan(&rec.AppointmentID, &rec.StatusCode, &rec.ResponseBody)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *Repository) FinalizeIdempotency(ctx context.Context, key, appointmentID string, statusCode int, body []byte) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE idempotency_keys
		SET appointment_id = NULLIF($2, '')::uuid,
			status_code = $3,
			response_body = $4
		WHERE key = $1
	`, key, appointmentID, statusCode, body)
	return err
}

// ReleaseIdempotencyKey drops an unfinalized claim so the client can
// retry after a failed attempt.
func (r *Repository) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM idempotency_keys
		WHERE key = $1 AND status_code IS NULL
	`, key)
	return err
}
