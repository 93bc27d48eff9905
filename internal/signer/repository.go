package signer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists delegated wallet records, one per user.
//
// Upsert is the concurrency-safe write path: records are keyed by a unique
// user id, and a stored ready record is never clobbered by any concurrent
// upsert, ready or failed. The losing writer receives the stored winner
// back with wrote=false, so at most one ready record per user survives
// concurrent first use and the winner's wallet is never orphaned by a
// slower attempt that failed. Replace bypasses the guard and is reserved
// for deliberate supersession: rotation and revocation.
type Repository interface {
	Get(ctx context.Context, userID string) (Record, error)
	Upsert(ctx context.Context, rec Record) (stored Record, wrote bool, err error)
	Replace(ctx context.Context, rec Record) (Record, error)
	MirrorAddress(ctx context.Context, userID, address string) error
}

// PostgresRepository stores wallet records in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get fetches the wallet record for a user.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (Record, error) {
	row := r.db.QueryRow(ctx, `SELECT id, user_id, external_wallet_id, address, status, created_at, updated_at
        FROM server_wallets WHERE user_id = $1`, userID)
	return scanRecord(row)
}

// Upsert inserts or updates the record keyed by user id. A stored ready
// record is never overwritten: the caller gets it back with wrote=false
// and must treat it as the durably retained result.
func (r *PostgresRepository) Upsert(ctx context.Context, rec Record) (Record, bool, error) {
	rec = withIdentity(rec)
	row := r.db.QueryRow(ctx, `INSERT INTO server_wallets (id, user_id, external_wallet_id, address, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (user_id) DO UPDATE
        SET external_wallet_id = EXCLUDED.external_wallet_id,
            address = EXCLUDED.address,
            status = EXCLUDED.status,
            updated_at = EXCLUDED.updated_at
        WHERE server_wallets.status <> 'ready'
        RETURNING id, user_id, external_wallet_id, address, status, created_at, updated_at`,
		rec.ID, rec.UserID, rec.ExternalWalletID, rec.Address, string(rec.Status), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())

	stored, err := scanRecord(row)
	if errors.Is(err, ErrRecordNotFound) {
		// Conflict with a ready winner: re-read and return it.
		stored, err := r.Get(ctx, rec.UserID)
		return stored, false, err
	}
	if err != nil {
		return Record{}, false, err
	}
	return stored, true, nil
}

// Replace unconditionally inserts or overwrites the record for a user.
// Used by rotation and revocation, which deliberately supersede a ready
// wallet.
func (r *PostgresRepository) Replace(ctx context.Context, rec Record) (Record, error) {
	rec = withIdentity(rec)
	row := r.db.QueryRow(ctx, `INSERT INTO server_wallets (id, user_id, external_wallet_id, address, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (user_id) DO UPDATE
        SET external_wallet_id = EXCLUDED.external_wallet_id,
            address = EXCLUDED.address,
            status = EXCLUDED.status,
            updated_at = EXCLUDED.updated_at
        RETURNING id, user_id, external_wallet_id, address, status, created_at, updated_at`,
		rec.ID, rec.UserID, rec.ExternalWalletID, rec.Address, string(rec.Status), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	return scanRecord(row)
}

// MirrorAddress copies the ready address into the legacy users table so
// older consumers keep resolving it without joining server_wallets.
func (r *PostgresRepository) MirrorAddress(ctx context.Context, userID, address string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET wallet_address = $2 WHERE id = $1`, userID, address)
	return err
}

func withIdentity(rec Record) Record {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return rec
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var status string
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.ExternalWalletID, &rec.Address, &status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	rec.Status = Status(status)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}
