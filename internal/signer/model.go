package signer

import "time"

// Status tracks the lifecycle of a delegated server wallet.
type Status string

const (
	// StatusCreating marks a wallet whose remote provisioning has been
	// requested but not yet confirmed.
	StatusCreating Status = "creating"
	// StatusReady marks a wallet with a usable signing address.
	StatusReady Status = "ready"
	// StatusFailed marks a wallet whose provisioning failed or that was
	// revoked. Creation may be retried from this state.
	StatusFailed Status = "failed"
)

// ZeroAddress is the placeholder stored while no usable address exists.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// PendingWalletID is the placeholder external id stored before the remote
// service has returned a real one.
const PendingWalletID = "pending"

// Record is the durable representation of one delegated signer per user.
// Address is a usable signing address if and only if Status is StatusReady.
type Record struct {
	ID               string
	UserID           string
	ExternalWalletID string
	Address          string
	Status           Status
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Ready reports whether the record carries a usable signing address.
func (r Record) Ready() bool {
	return r.Status == StatusReady
}
