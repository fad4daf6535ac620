package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/charity-vault/vault"
	"github.com/warp/charity-vault/vault/store"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seed(t *testing.T, m *store.Memory, id, amount string) {
	t.Helper()
	require.NoError(t, m.PutDonation(context.Background(), vault.Donation{
		ID:         vault.DonationID(id),
		DonorEmail: "alice@example.com",
		Amount:     dec(amount),
		Remaining:  dec(amount),
		CreatedAt:  time.Now(),
	}))
}

func TestMemory_SaveDonor_DropsStaleWalletIndex(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveDonor(ctx, vault.Donor{Email: "alice@example.com", WalletAddress: "0xaaa"}))
	require.NoError(t, m.SaveDonor(ctx, vault.Donor{Email: "alice@example.com", WalletAddress: "0xbbb"}))

	_, err := m.GetDonorByWallet(ctx, "0xaaa")
	assert.ErrorIs(t, err, vault.ErrNotFound)

	donor, err := m.GetDonorByWallet(ctx, "0xbbb")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", donor.Email)
}

func TestMemory_ApplyAllocation_GuardFailureLeavesStoreUntouched(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	seed(t, m, "0xa-1", "5")
	seed(t, m, "0xb-1", "1")
	require.NoError(t, m.PutReimbursement(ctx, vault.Reimbursement{
		ID: "0xr-1", Amount: dec("7"), CreatedAt: time.Now(),
	}))

	err := m.ApplyAllocation(ctx, "0xr-1", []vault.AllocationEntry{
		{DonationID: "0xa-1", AmountSpent: dec("5")},
		{DonationID: "0xb-1", AmountSpent: dec("2")}, // exceeds remaining
	})
	assert.ErrorIs(t, err, vault.ErrConcurrentModification)

	a, err := m.GetDonation(ctx, "0xa-1")
	require.NoError(t, err)
	assert.True(t, a.Remaining.Equal(dec("5")), "first entry applied despite guard failure")

	r, err := m.GetReimbursement(ctx, "0xr-1")
	require.NoError(t, err)
	assert.False(t, r.AllocationApplied)
}

func TestMemory_ApplyAllocation_SecondApplyRejected(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	seed(t, m, "0xa-1", "5")
	require.NoError(t, m.PutReimbursement(ctx, vault.Reimbursement{
		ID: "0xr-1", Amount: dec("2"), CreatedAt: time.Now(),
	}))

	entries := []vault.AllocationEntry{{DonationID: "0xa-1", AmountSpent: dec("2")}}
	require.NoError(t, m.ApplyAllocation(ctx, "0xr-1", entries))

	err := m.ApplyAllocation(ctx, "0xr-1", entries)
	assert.ErrorIs(t, err, vault.ErrAlreadyProcessed)

	d, err := m.GetDonation(ctx, "0xa-1")
	require.NoError(t, err)
	assert.True(t, d.Remaining.Equal(dec("3")))
}
