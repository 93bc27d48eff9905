package automation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores automation profiles in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a profile.
func (r *PostgresRepository) Create(ctx context.Context, profile Profile) (Profile, error) {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.Status == "" {
		profile.Status = StatusActive
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	_, err := r.db.Exec(ctx, `INSERT INTO automation_profiles (id, user_id, trader_wallet, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		profile.ID, profile.UserID, profile.TraderWallet, profile.Status, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// ListByUser returns a user's profiles oldest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Profile, error) {
	rows, err := r.db.Query(ctx, `SELECT id, user_id, trader_wallet, status, created_at, updated_at
        FROM automation_profiles WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.UserID, &p.TraderWallet, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// PauseAllActive pauses every active profile for a user in one statement.
func (r *PostgresRepository) PauseAllActive(ctx context.Context, userID string) (int, error) {
	tag, err := r.db.Exec(ctx, `UPDATE automation_profiles SET status = $3, updated_at = $4
        WHERE user_id = $1 AND status = $2`,
		userID, StatusActive, StatusPaused, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
