package signer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mirrormarkets/mirror/internal/audit"
	"github.com/mirrormarkets/mirror/internal/automation"
	"github.com/mirrormarkets/mirror/internal/notification"
)

// DefaultCreatingTTL bounds how long a creating record is trusted before a
// new resolve attempt re-runs provisioning instead of polling. There is no
// background reconciliation; expiry is evaluated lazily on read.
const DefaultCreatingTTL = 10 * time.Minute

// ServiceDeps aggregates the collaborators of the remote-backed provider.
type ServiceDeps struct {
	Repo        Repository
	Client      RemoteClient
	Audit       audit.Recorder
	Automations automation.Repository
	Notifier    notification.Notifier
	Logger      *slog.Logger
	CreatingTTL time.Duration
}

// Service is the remote-backed signing authority provider. It owns every
// wallet record mutation and mirrors each lifecycle transition and signing
// attempt into the audit trail.
type Service struct {
	repo        Repository
	client      RemoteClient
	audit       audit.Recorder
	automations automation.Repository
	notifier    notification.Notifier
	logger      *slog.Logger
	creatingTTL time.Duration
}

// NewService builds the remote-backed provider.
func NewService(d ServiceDeps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.CreatingTTL <= 0 {
		d.CreatingTTL = DefaultCreatingTTL
	}
	return &Service{
		repo:        d.Repo,
		client:      d.Client,
		audit:       d.Audit,
		automations: d.Automations,
		notifier:    d.Notifier,
		logger:      d.Logger,
		creatingTTL: d.CreatingTTL,
	}
}

var _ ExtendedProvider = (*Service)(nil)

// Address returns the ready signing address for a user. A missing or failed
// record triggers (re)creation; a creating record is polled once and
// promoted when the remote service reports it ready.
func (s *Service) Address(ctx context.Context, userID string) (string, error) {
	rec, err := s.repo.Get(ctx, userID)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		created, err := s.createWallet(ctx, userID)
		if err != nil {
			return "", err
		}
		return created.Address, nil
	case err != nil:
		return "", err
	}

	switch rec.Status {
	case StatusReady:
		return rec.Address, nil
	case StatusCreating:
		if time.Since(rec.UpdatedAt) > s.creatingTTL {
			// Stuck provisioning: treat as failed and start over.
			created, err := s.createWallet(ctx, userID)
			if err != nil {
				return "", err
			}
			return created.Address, nil
		}
		return s.poll(ctx, rec)
	default: // StatusFailed: retry creation.
		created, err := s.createWallet(ctx, userID)
		if err != nil {
			return "", err
		}
		return created.Address, nil
	}
}

// poll checks provisioning progress once and promotes the record when the
// remote wallet is ready.
func (s *Service) poll(ctx context.Context, rec Record) (string, error) {
	remote, err := s.client.GetWallet(ctx, rec.ExternalWalletID)
	if err != nil {
		s.logger.Warn("wallet readiness poll failed", "user_id", rec.UserID, "wallet_id", rec.ExternalWalletID, "error", err)
		return "", ErrSignerNotReady
	}
	if !remote.Ready || remote.Address == "" {
		return "", ErrSignerNotReady
	}

	rec.ExternalWalletID = remote.ID
	rec.Address = remote.Address
	rec.Status = StatusReady
	stored, wrote, err := s.repo.Upsert(ctx, rec)
	if err != nil {
		return "", err
	}
	if wrote {
		s.mirror(ctx, stored)
		s.record(ctx, audit.Entry{
			UserID: stored.UserID,
			Action: audit.ActionServerWalletCreated,
			Details: map[string]any{
				"wallet_id": stored.ExternalWalletID,
				"address":   stored.Address,
			},
		})
	}
	return stored.Address, nil
}

// createWallet runs the remote creation flow for a user with no usable
// record. Exactly one ready record survives concurrent creation: upsert
// losers adopt the stored winner and skip their own audit entry. A failed
// attempt never downgrades a concurrently won ready record; its caller
// adopts the winner instead.
func (s *Service) createWallet(ctx context.Context, userID string) (Record, error) {
	remote, err := s.client.CreateWallet(ctx)
	if err != nil {
		failed := Record{
			UserID:           userID,
			ExternalWalletID: PendingWalletID,
			Address:          ZeroAddress,
			Status:           StatusFailed,
		}
		stored, wrote, upErr := s.repo.Upsert(ctx, failed)
		switch {
		case upErr != nil:
			s.logger.Error("failed to persist wallet failure", "user_id", userID, "error", upErr)
		case wrote:
			s.record(ctx, audit.Entry{
				UserID:  userID,
				Action:  audit.ActionServerWalletFailed,
				Details: map[string]any{"error": err.Error()},
			})
		case stored.Ready():
			s.logger.Warn("wallet creation failed after a concurrent creation won", "user_id", userID, "error", err)
			return stored, nil
		}
		return Record{}, &CreationError{UserID: userID, Cause: err}
	}

	if !remote.Ready || remote.Address == "" {
		pending := Record{
			UserID:           userID,
			ExternalWalletID: remote.ID,
			Address:          ZeroAddress,
			Status:           StatusCreating,
		}
		if _, _, err := s.repo.Upsert(ctx, pending); err != nil {
			return Record{}, err
		}
		return Record{}, ErrSignerNotReady
	}

	ready := Record{
		UserID:           userID,
		ExternalWalletID: remote.ID,
		Address:          remote.Address,
		Status:           StatusReady,
	}
	stored, wrote, err := s.repo.Upsert(ctx, ready)
	if err != nil {
		return Record{}, err
	}
	if wrote {
		s.mirror(ctx, stored)
		s.record(ctx, audit.Entry{
			UserID: userID,
			Action: audit.ActionServerWalletCreated,
			Details: map[string]any{
				"wallet_id": stored.ExternalWalletID,
				"address":   stored.Address,
			},
		})
	}
	return stored, nil
}

// SignMessage signs a UTF-8 text message on the user's behalf.
func (s *Service) SignMessage(ctx context.Context, userID, message string) (string, error) {
	return s.sign(ctx, userID, "sign_message", func(walletID string) (string, error) {
		return s.client.SignMessage(ctx, walletID, message, EncodingUTF8)
	})
}

// SignRawMessage signs a binary payload, hex-encoded for transport.
func (s *Service) SignRawMessage(ctx context.Context, userID string, message []byte) (string, error) {
	payload := "0x" + hex.EncodeToString(message)
	return s.sign(ctx, userID, "sign_message", func(walletID string) (string, error) {
		return s.client.SignMessage(ctx, walletID, payload, EncodingHex)
	})
}

// SignTypedData signs an EIP-712 payload, passed through verbatim.
func (s *Service) SignTypedData(ctx context.Context, userID string, data TypedData) (string, error) {
	return s.sign(ctx, userID, "sign_typed_data", func(walletID string) (string, error) {
		return s.client.SignTypedData(ctx, walletID, data)
	})
}

// ExecuteTransaction signs and broadcasts a transaction under the same
// audit envelope as signing calls.
func (s *Service) ExecuteTransaction(ctx context.Context, userID string, tx TransactionRequest) (TransactionResult, error) {
	var result TransactionResult
	_, err := s.sign(ctx, userID, "execute_transaction", func(walletID string) (string, error) {
		res, err := s.client.SendTransaction(ctx, walletID, tx)
		if err != nil {
			return "", err
		}
		result = res
		return res.Hash, nil
	})
	if err != nil {
		return TransactionResult{}, err
	}
	return result, nil
}

// sign wraps one signing operation: require a ready record, write the
// requested entry, delegate to the remote service, then write exactly one
// terminal entry sharing the same correlation id before returning.
func (s *Service) sign(ctx context.Context, userID, operation string, call func(walletID string) (string, error)) (string, error) {
	rec, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return "", ErrSignerNotReady
		}
		return "", err
	}
	if !rec.Ready() {
		return "", ErrSignerNotReady
	}

	correlationID := uuid.NewString()
	log := s.logger.With("user_id", userID, "operation", operation, "correlation_id", correlationID)

	// The requested entry must be durable before the remote call so a
	// terminal entry can never precede it.
	if err := s.audit.Record(ctx, audit.Entry{
		UserID:        userID,
		Action:        audit.ActionSigningRequested,
		CorrelationID: correlationID,
		Details:       map[string]any{"operation": operation, "wallet_id": rec.ExternalWalletID},
	}); err != nil {
		log.Error("audit write failed, refusing to sign", "error", err)
		return "", fmt.Errorf("%w: audit unavailable", ErrSigningUnavailable)
	}

	signature, err := call(rec.ExternalWalletID)
	if err != nil {
		s.record(ctx, audit.Entry{
			UserID:        userID,
			Action:        audit.ActionSigningFailed,
			CorrelationID: correlationID,
			Details:       map[string]any{"operation": operation, "error": err.Error()},
		})
		log.Warn("signing failed", "error", err)
		return "", s.classify(err)
	}

	s.record(ctx, audit.Entry{
		UserID:        userID,
		Action:        audit.ActionSigningCompleted,
		CorrelationID: correlationID,
		Details:       map[string]any{"operation": operation},
	})
	log.Info("signing completed")
	return signature, nil
}

// classify maps remote-call failures to the caller-facing error taxonomy.
// Rate limiting and caller deadlines keep their identity; everything else
// collapses into ErrSigningUnavailable.
func (s *Service) classify(err error) error {
	switch {
	case errors.Is(err, ErrRateLimited):
		return ErrRateLimited
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	default:
		// Double-wrap so the cause (e.g. a *StatusError) stays reachable
		// through errors.Is/As alongside the unavailable sentinel.
		return fmt.Errorf("%w: %w", ErrSigningUnavailable, err)
	}
}

// Rotate provisions a replacement wallet for the user. The old record is
// superseded in place; any on-chain ownership transfer of a delegated
// proxy is the caller's responsibility.
func (s *Service) Rotate(ctx context.Context, userID string) (Record, error) {
	old, err := s.repo.Get(ctx, userID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return Record{}, err
	}

	remote, err := s.client.CreateWallet(ctx)
	if err != nil {
		failed := Record{
			UserID:           userID,
			ExternalWalletID: PendingWalletID,
			Address:          ZeroAddress,
			Status:           StatusFailed,
		}
		if _, upErr := s.repo.Replace(ctx, failed); upErr != nil {
			s.logger.Error("failed to persist wallet failure", "user_id", userID, "error", upErr)
		}
		s.record(ctx, audit.Entry{
			UserID:  userID,
			Action:  audit.ActionServerWalletFailed,
			Details: map[string]any{"error": err.Error(), "rotation": true},
		})
		return Record{}, &CreationError{UserID: userID, Cause: err}
	}
	if !remote.Ready || remote.Address == "" {
		pending := Record{
			UserID:           userID,
			ExternalWalletID: remote.ID,
			Address:          ZeroAddress,
			Status:           StatusCreating,
		}
		if _, err := s.repo.Replace(ctx, pending); err != nil {
			return Record{}, err
		}
		return Record{}, ErrSignerNotReady
	}

	replacement := Record{
		UserID:           userID,
		ExternalWalletID: remote.ID,
		Address:          remote.Address,
		Status:           StatusReady,
	}
	stored, err := s.repo.Replace(ctx, replacement)
	if err != nil {
		return Record{}, err
	}
	s.mirror(ctx, stored)

	s.record(ctx, audit.Entry{
		UserID: userID,
		Action: audit.ActionServerWalletCreated,
		Details: map[string]any{
			"wallet_id": stored.ExternalWalletID,
			"address":   stored.Address,
			"rotation":  true,
		},
	})
	s.record(ctx, audit.Entry{
		UserID: userID,
		Action: audit.ActionOwnershipTransferred,
		Details: map[string]any{
			"old_wallet_id": old.ExternalWalletID,
			"old_address":   old.Address,
			"new_wallet_id": stored.ExternalWalletID,
			"new_address":   stored.Address,
		},
	})
	s.notify(ctx, notification.Message{
		Kind:        notification.KindSignerRotated,
		Destination: userID,
		Body:        fmt.Sprintf("delegated signer rotated to %s", stored.Address),
	})
	return stored, nil
}

// Revoke terminally deactivates the user's delegated signer and pauses all
// of their active automations. Idempotent: revoking an absent or already
// failed record does nothing.
func (s *Service) Revoke(ctx context.Context, userID string) error {
	rec, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Status == StatusFailed {
		return nil
	}

	revoked := rec
	revoked.Address = ZeroAddress
	revoked.Status = StatusFailed
	// Replace, not Upsert: revocation is a deliberate supersession of a
	// ready record and must not be blocked by the ready-winner guard.
	if _, err := s.repo.Replace(ctx, revoked); err != nil {
		return err
	}

	paused := 0
	if s.automations != nil {
		paused, err = s.automations.PauseAllActive(ctx, userID)
		if err != nil {
			s.logger.Error("failed to pause automations after revocation", "user_id", userID, "error", err)
		}
	}

	s.record(ctx, audit.Entry{
		UserID: userID,
		Action: audit.ActionServerWalletFailed,
		Details: map[string]any{
			"reason":          "revoked",
			"wallet_id":       rec.ExternalWalletID,
			"address":         rec.Address,
			"paused_profiles": paused,
		},
	})
	s.notify(ctx, notification.Message{
		Kind:        notification.KindSignerRevoked,
		Destination: userID,
		Body:        fmt.Sprintf("delegated signer revoked, %d automations paused", paused),
	})
	return nil
}

// Healthy reports whether the remote signing service is reachable. Callers
// treat signing as unavailable without attempting it when this fails.
func (s *Service) Healthy(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// record appends a lifecycle audit entry. Failures are logged, never fatal:
// a broken audit store must not take the trading path down with it, except
// for the requested entry handled in sign.
func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Error("audit write failed", "user_id", entry.UserID, "action", string(entry.Action), "error", err)
	}
}

func (s *Service) mirror(ctx context.Context, rec Record) {
	if err := s.repo.MirrorAddress(ctx, rec.UserID, rec.Address); err != nil {
		s.logger.Warn("address mirror update failed", "user_id", rec.UserID, "error", err)
	}
}

func (s *Service) notify(ctx context.Context, message notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, message); err != nil {
		s.logger.Warn("notification delivery failed", "kind", message.Kind, "error", err)
	}
}
