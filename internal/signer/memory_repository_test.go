package signer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryUpsertRetainsReadyWinner(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	winner, wrote, err := repo.Upsert(ctx, Record{
		UserID:           "user-1",
		ExternalWalletID: "w1",
		Address:          "0xwinner",
		Status:           StatusReady,
	})
	require.NoError(t, err)
	require.True(t, wrote)

	// A concurrent loser's ready upsert must not clobber the winner.
	stored, wrote, err := repo.Upsert(ctx, Record{
		UserID:           "user-1",
		ExternalWalletID: "w2",
		Address:          "0xloser",
		Status:           StatusReady,
	})
	require.NoError(t, err)
	require.False(t, wrote)
	require.Equal(t, winner.ExternalWalletID, stored.ExternalWalletID)
	require.Equal(t, winner.Address, stored.Address)
}

func TestMemoryRepositoryUpsertKeepsWinnerOverFailedPlaceholder(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	winner, wrote, err := repo.Upsert(ctx, Record{
		UserID:           "user-1",
		ExternalWalletID: "w1",
		Address:          "0xready",
		Status:           StatusReady,
	})
	require.NoError(t, err)
	require.True(t, wrote)

	// A failed placeholder from a losing creation attempt must not
	// downgrade the stored ready record.
	stored, wrote, err := repo.Upsert(ctx, Record{
		UserID:           "user-1",
		ExternalWalletID: PendingWalletID,
		Address:          ZeroAddress,
		Status:           StatusFailed,
	})
	require.NoError(t, err)
	require.False(t, wrote)
	require.Equal(t, StatusReady, stored.Status)
	require.Equal(t, winner.Address, stored.Address)

	kept, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, StatusReady, kept.Status)
	require.Equal(t, "w1", kept.ExternalWalletID)
}

func TestMemoryRepositoryReplaceOverridesReadyRecord(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, _, err := repo.Upsert(ctx, Record{
		UserID:           "user-1",
		ExternalWalletID: "w1",
		Address:          "0xold",
		Status:           StatusReady,
	})
	require.NoError(t, err)

	stored, err := repo.Replace(ctx, Record{
		UserID:           "user-1",
		ExternalWalletID: "w2",
		Address:          "0xnew",
		Status:           StatusReady,
	})
	require.NoError(t, err)
	require.Equal(t, "w2", stored.ExternalWalletID)
}

func TestMemoryRepositoryReplaceAllowsRevocation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, _, err := repo.Upsert(ctx, Record{
		UserID:           "user-1",
		ExternalWalletID: "w1",
		Address:          "0xready",
		Status:           StatusReady,
	})
	require.NoError(t, err)

	stored, err := repo.Replace(ctx, Record{
		UserID:           "user-1",
		ExternalWalletID: "w1",
		Address:          ZeroAddress,
		Status:           StatusFailed,
	})
	require.NoError(t, err)
	require.Equal(t, StatusFailed, stored.Status)
}

func TestMemoryRepositoryGetMissing(t *testing.T) {
	repo := NewMemoryRepository()
	_, err := repo.Get(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrRecordNotFound)
}
