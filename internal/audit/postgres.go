package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRecorder stores audit entries in PostgreSQL. Writes are insert
// only; the table carries no update path.
type PostgresRecorder struct {
	db *pgxpool.Pool
}

// NewPostgresRecorder builds a recorder backed by PostgreSQL.
func NewPostgresRecorder(db *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// Record appends one entry.
func (r *PostgresRecorder) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO audit_log (id, user_id, action, correlation_id, details, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.UserID, string(entry.Action), entry.CorrelationID, details, entry.CreatedAt.UTC())
	return err
}

// ListByUser returns a user's entries oldest first.
func (r *PostgresRecorder) ListByUser(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT id, user_id, action, correlation_id, details, created_at
        FROM audit_log WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var action string
		var details []byte
		if err := rows.Scan(&entry.ID, &entry.UserID, &action, &entry.CorrelationID, &details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Action = Action(action)
		entry.CreatedAt = entry.CreatedAt.UTC()
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
