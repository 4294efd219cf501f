// Package leadlog keeps a Postgres audit trail of lead submission
// attempts and their outcomes. A write failure here never blocks or
// fails a submission.
package leadlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lead-capture/internal/common/errors"
	"lead-capture/internal/common/logger"
	"lead-capture/internal/models"
)

// Repository writes submission audit rows.
type Repository struct {
	db  *sql.DB
	log logger.Logger
}

// NewRepository returns a repository over the given database handle.
func NewRepository(db *sql.DB, log logger.Logger) *Repository {
	return &Repository{db: db, log: log}
}

// RecordAttempt inserts one row per submission start. The payload is
// stored as JSONB so rejected attempts keep what was actually sent.
func (r *Repository) RecordAttempt(ctx context.Context, sessionID string, attempt int64, payload *models.LeadPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal lead payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO lead_attempts (
			id, session_id, attempt, payload, created_at
		) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(),
		sessionID,
		attempt,
		payloadJSON,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return errors.NewAuditWriteFailedError(fmt.Errorf("failed to insert lead attempt: %w", err))
	}

	r.log.Debug("lead attempt recorded", map[string]interface{}{
		"session_id": sessionID,
		"attempt":    attempt,
	})
	return nil
}

// RecordOutcome inserts the resolution row for an attempt. Stale and
// discarded resolutions are recorded too; the outcome column tells
// them apart.
func (r *Repository) RecordOutcome(ctx context.Context, sessionID string, attempt int64, outcome, leadID, errorMessage string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lead_outcomes (
			id, session_id, attempt, outcome, lead_id, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(),
		sessionID,
		attempt,
		outcome,
		nullable(leadID),
		nullable(errorMessage),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return errors.NewAuditWriteFailedError(fmt.Errorf("failed to insert lead outcome: %w", err))
	}

	r.log.Debug("lead outcome recorded", map[string]interface{}{
		"session_id": sessionID,
		"attempt":    attempt,
		"outcome":    outcome,
	})
	return nil
}

// SessionAttemptCount returns how many attempts a session has made.
func (r *Repository) SessionAttemptCount(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lead_attempts WHERE session_id = $1`,
		sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count lead attempts: %w", err)
	}
	return count, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
