package signer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/sha3"
)

// MockProvider is an in-memory signing authority used by tests and local
// development. Addresses are derived deterministically from the user id,
// wallets become ready synchronously, and both failure modes of the real
// provider can be injected on demand.
type MockProvider struct {
	mu      sync.Mutex
	records map[string]Record
	counter int

	// FailCreation makes wallet creation fail with CreationError.
	FailCreation bool
	// FailSigning makes signing calls fail with ErrSigningUnavailable.
	FailSigning bool
}

// NewMockProvider constructs an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{records: make(map[string]Record)}
}

var _ ExtendedProvider = (*MockProvider)(nil)

// Address resolves or provisions the user's deterministic address.
func (m *MockProvider) Address(ctx context.Context, userID string) (string, error) {
	rec, err := m.ensure(ctx, userID)
	if err != nil {
		return "", err
	}
	return rec.Address, nil
}

// SignMessage signs a UTF-8 message deterministically.
func (m *MockProvider) SignMessage(ctx context.Context, userID, message string) (string, error) {
	return m.signPayload(ctx, userID, []byte(message))
}

// SignRawMessage signs a binary payload deterministically.
func (m *MockProvider) SignRawMessage(ctx context.Context, userID string, message []byte) (string, error) {
	return m.signPayload(ctx, userID, message)
}

// SignTypedData signs a typed-data payload deterministically.
func (m *MockProvider) SignTypedData(ctx context.Context, userID string, data TypedData) (string, error) {
	return m.signPayload(ctx, userID, []byte(data.PrimaryType))
}

// ExecuteTransaction pretends to broadcast and reports confirmation.
func (m *MockProvider) ExecuteTransaction(ctx context.Context, userID string, tx TransactionRequest) (TransactionResult, error) {
	hash, err := m.signPayload(ctx, userID, []byte(tx.To+tx.Data))
	if err != nil {
		return TransactionResult{}, err
	}
	return TransactionResult{Hash: hash, Status: TxStatusConfirmed}, nil
}

// Rotate replaces the user's wallet with a fresh deterministic one.
func (m *MockProvider) Rotate(_ context.Context, userID string) (Record, error) {
	if m.FailCreation {
		return Record{}, &CreationError{UserID: userID, Cause: errors.New("mock creation failure")}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	rec := Record{
		ID:               fmt.Sprintf("mock-%d", m.counter),
		UserID:           userID,
		ExternalWalletID: fmt.Sprintf("mock-wallet-%d", m.counter),
		Address:          deriveAddress(fmt.Sprintf("%s:%d", userID, m.counter)),
		Status:           StatusReady,
	}
	m.records[userID] = rec
	return rec, nil
}

// Revoke marks the record failed. No-op for absent or failed records.
func (m *MockProvider) Revoke(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[userID]
	if !ok || rec.Status == StatusFailed {
		return nil
	}
	rec.Status = StatusFailed
	rec.Address = ZeroAddress
	m.records[userID] = rec
	return nil
}

// StoredRecord exposes the stored record for assertions.
func (m *MockProvider) StoredRecord(userID string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[userID]
	return rec, ok
}

func (m *MockProvider) ensure(_ context.Context, userID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[userID]; ok && rec.Status == StatusReady {
		return rec, nil
	}
	if m.FailCreation {
		rec := Record{
			UserID:           userID,
			ExternalWalletID: PendingWalletID,
			Address:          ZeroAddress,
			Status:           StatusFailed,
		}
		m.records[userID] = rec
		return Record{}, &CreationError{UserID: userID, Cause: errors.New("mock creation failure")}
	}
	m.counter++
	rec := Record{
		ID:               fmt.Sprintf("mock-%d", m.counter),
		UserID:           userID,
		ExternalWalletID: fmt.Sprintf("mock-wallet-%d", m.counter),
		Address:          deriveAddress(userID),
		Status:           StatusReady,
	}
	m.records[userID] = rec
	return rec, nil
}

func (m *MockProvider) signPayload(_ context.Context, userID string, payload []byte) (string, error) {
	m.mu.Lock()
	rec, ok := m.records[userID]
	failSigning := m.FailSigning
	m.mu.Unlock()
	if !ok || rec.Status != StatusReady {
		return "", ErrSignerNotReady
	}
	if failSigning {
		return "", fmt.Errorf("%w: mock signing failure", ErrSigningUnavailable)
	}
	digest := keccak(append([]byte(rec.Address), payload...))
	return "0x" + hex.EncodeToString(digest), nil
}

// deriveAddress maps a seed string to an EVM-style address: the last 20
// bytes of its keccak-256 digest.
func deriveAddress(seed string) string {
	digest := keccak([]byte(seed))
	return "0x" + hex.EncodeToString(digest[12:])
}

func keccak(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
