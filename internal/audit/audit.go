// Package audit keeps an append-only trail of every delegated-signer
// lifecycle transition and signing attempt. Entries are never updated or
// deleted.
package audit

import (
	"context"
	"time"
)

// Action is a closed set of auditable events.
type Action string

const (
	ActionServerWalletCreated  Action = "SERVER_WALLET_CREATED"
	ActionServerWalletFailed   Action = "SERVER_WALLET_FAILED"
	ActionOwnershipTransferred Action = "OWNERSHIP_TRANSFERRED"
	ActionSigningRequested     Action = "SIGNING_REQUESTED"
	ActionSigningCompleted     Action = "SIGNING_COMPLETED"
	ActionSigningFailed        Action = "SIGNING_FAILED"
)

// Entry is one audit record. CorrelationID links the requested/completed/
// failed phases of a single signing operation; a crash between phases
// leaves a visible gap rather than a fabricated outcome.
type Entry struct {
	ID            string
	UserID        string
	Action        Action
	CorrelationID string
	Details       map[string]any
	CreatedAt     time.Time
}

// Recorder appends audit entries durably. There is deliberately no way to
// mutate or remove an entry through this interface.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	ListByUser(ctx context.Context, userID string) ([]Entry, error)
}
