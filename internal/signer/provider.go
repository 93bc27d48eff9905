package signer

import "context"

// TypedData carries an EIP-712 payload passed through verbatim to the
// remote signing service.
type TypedData struct {
	Domain      map[string]any `json:"domain"`
	Types       map[string]any `json:"types"`
	PrimaryType string         `json:"primaryType"`
	Message     map[string]any `json:"message"`
}

// TransactionRequest describes a transaction to sign and broadcast.
type TransactionRequest struct {
	To      string `json:"to"`
	Data    string `json:"data,omitempty"`
	Value   string `json:"value,omitempty"`
	ChainID int64  `json:"chain_id"`
}

// TransactionResult reports the outcome of a broadcast transaction.
type TransactionResult struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
}

const (
	// TxStatusConfirmed means the remote service observed inclusion.
	TxStatusConfirmed = "confirmed"
	// TxStatusSubmitted means the transaction was broadcast but not yet
	// confirmed.
	TxStatusSubmitted = "submitted"
)

// Provider is the base capability surface of a delegated signer: resolve a
// user's signing address and sign payloads on their behalf. Implemented by
// the remote-backed Service and the in-memory MockProvider.
type Provider interface {
	// Address returns the ready signing address for a user, provisioning a
	// wallet record if none exists.
	Address(ctx context.Context, userID string) (string, error)

	// SignMessage signs a UTF-8 text message.
	SignMessage(ctx context.Context, userID, message string) (string, error)

	// SignRawMessage signs a binary payload, transported hex-encoded.
	SignRawMessage(ctx context.Context, userID string, message []byte) (string, error)

	// SignTypedData signs an EIP-712 payload.
	SignTypedData(ctx context.Context, userID string, data TypedData) (string, error)
}

// Rotator provisions a replacement wallet for a user, superseding the
// current one. On-chain ownership transfer of any delegated proxy is the
// caller's responsibility; rotation only records intent and swaps the
// stored record.
type Rotator interface {
	Rotate(ctx context.Context, userID string) (Record, error)
}

// Revoker terminally deactivates a user's delegated signer and pauses every
// active dependent automation. Revoking an absent or already failed record
// is a no-op.
type Revoker interface {
	Revoke(ctx context.Context, userID string) error
}

// TransactionExecutor signs and broadcasts transactions.
type TransactionExecutor interface {
	ExecuteTransaction(ctx context.Context, userID string, tx TransactionRequest) (TransactionResult, error)
}

// ExtendedProvider groups the optional capabilities on top of the base set.
type ExtendedProvider interface {
	Provider
	Rotator
	Revoker
	TransactionExecutor
}

// Extended reports whether p supports the full extended capability set.
// Callers wire extended operations only when this check passes, instead of
// probing for missing methods at call time.
func Extended(p Provider) (ExtendedProvider, bool) {
	ext, ok := p.(ExtendedProvider)
	return ext, ok
}
