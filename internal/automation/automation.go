// Package automation manages copy-trading profiles, the automations that
// depend on a user's delegated signer.
package automation

import (
	"context"
	"time"
)

const (
	// StatusActive marks a profile currently mirroring trades.
	StatusActive = "active"
	// StatusPaused marks a profile stopped, e.g. after signer revocation.
	StatusPaused = "paused"
)

// Profile is one copy-trading automation owned by a user.
type Profile struct {
	ID           string
	UserID       string
	TraderWallet string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository persists automation profiles.
type Repository interface {
	Create(ctx context.Context, profile Profile) (Profile, error)
	ListByUser(ctx context.Context, userID string) ([]Profile, error)

	// PauseAllActive flips every active profile of a user to paused in one
	// bulk update and reports how many were affected.
	PauseAllActive(ctx context.Context, userID string) (int, error)
}
