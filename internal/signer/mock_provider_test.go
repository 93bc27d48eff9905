package signer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockProviderDeterministicAddresses(t *testing.T) {
	ctx := context.Background()

	a := NewMockProvider()
	b := NewMockProvider()

	addrA, err := a.Address(ctx, "user-1")
	require.NoError(t, err)
	addrB, err := b.Address(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, addrA, addrB)
	require.Len(t, addrA, 42)

	other, err := a.Address(ctx, "user-2")
	require.NoError(t, err)
	require.NotEqual(t, addrA, other)
}

func TestMockProviderSignsAfterProvisioning(t *testing.T) {
	ctx := context.Background()
	m := NewMockProvider()

	_, err := m.SignMessage(ctx, "user-1", "hello")
	require.ErrorIs(t, err, ErrSignerNotReady)

	_, err = m.Address(ctx, "user-1")
	require.NoError(t, err)

	sig, err := m.SignMessage(ctx, "user-1", "hello")
	require.NoError(t, err)
	again, err := m.SignMessage(ctx, "user-1", "hello")
	require.NoError(t, err)
	require.Equal(t, sig, again)
}

func TestMockProviderFailureInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMockProvider()

	m.FailCreation = true
	_, err := m.Address(ctx, "user-1")
	require.True(t, IsCreationFailed(err))

	rec, ok := m.StoredRecord("user-1")
	require.True(t, ok)
	require.Equal(t, StatusFailed, rec.Status)

	m.FailCreation = false
	_, err = m.Address(ctx, "user-1")
	require.NoError(t, err)

	m.FailSigning = true
	_, err = m.SignMessage(ctx, "user-1", "hello")
	require.ErrorIs(t, err, ErrSigningUnavailable)
}

func TestMockProviderRotateAndRevoke(t *testing.T) {
	ctx := context.Background()
	m := NewMockProvider()

	first, err := m.Address(ctx, "user-1")
	require.NoError(t, err)

	rec, err := m.Rotate(ctx, "user-1")
	require.NoError(t, err)
	require.NotEqual(t, first, rec.Address)

	require.NoError(t, m.Revoke(ctx, "user-1"))
	stored, ok := m.StoredRecord("user-1")
	require.True(t, ok)
	require.Equal(t, StatusFailed, stored.Status)

	// Idempotent, including for unknown users.
	require.NoError(t, m.Revoke(ctx, "user-1"))
	require.NoError(t, m.Revoke(ctx, "ghost"))

	_, err = m.SignMessage(ctx, "user-1", "hello")
	require.ErrorIs(t, err, ErrSignerNotReady)
}
