package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/charity-vault/store/sqlite"
	"github.com/warp/charity-vault/vault"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)

func testDonation(id, email, amount string, at time.Time) vault.Donation {
	return vault.Donation{
		ID:            vault.DonationID(id),
		DonorEmail:    email,
		WalletAddress: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Amount:        dec(amount),
		Remaining:     dec(amount),
		TxHash:        "0xfeed",
		BlockOrdinal:  9,
		CreatedAt:     at,
	}
}

// =============================================================================
// DONORS
// =============================================================================

func TestDonor_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	donor := vault.Donor{
		Email:         "alice@example.com",
		WalletAddress: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		CreatedAt:     testTime,
	}
	require.NoError(t, store.SaveDonor(ctx, donor))

	byEmail, err := store.GetDonorByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, donor.WalletAddress, byEmail.WalletAddress)
	assert.True(t, donor.CreatedAt.Equal(byEmail.CreatedAt))

	byWallet, err := store.GetDonorByWallet(ctx, donor.WalletAddress)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byWallet.Email)
}

func TestDonor_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetDonorByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, vault.ErrNotFound)
}

func TestDonor_ReregistrationOverwritesWallet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDonor(ctx, vault.Donor{
		Email:         "alice@example.com",
		WalletAddress: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		CreatedAt:     testTime,
	}))
	require.NoError(t, store.SaveDonor(ctx, vault.Donor{
		Email:         "alice@example.com",
		WalletAddress: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		CreatedAt:     testTime,
	}))

	donors, err := store.ListDonors(ctx)
	require.NoError(t, err)
	require.Len(t, donors, 1)
	assert.Equal(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", donors[0].WalletAddress)
}

func TestDonor_WalletUniqueAcrossEmails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDonor(ctx, vault.Donor{
		Email:         "alice@example.com",
		WalletAddress: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		CreatedAt:     testTime,
	}))

	err := store.SaveDonor(ctx, vault.Donor{
		Email:         "bob@example.com",
		WalletAddress: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		CreatedAt:     testTime,
	})
	assert.ErrorIs(t, err, vault.ErrInvalidInput)
}

// =============================================================================
// DONATIONS
// =============================================================================

func TestDonation_RoundTrip_PreservesDecimalAndTime(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d := testDonation("0xfeed-9", "alice@example.com", "2.000000000000000001", testTime)
	require.NoError(t, store.PutDonation(ctx, d))

	got, err := store.GetDonation(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("2.000000000000000001")))
	assert.True(t, got.Remaining.Equal(d.Remaining))
	assert.True(t, got.CreatedAt.Equal(testTime), "nanosecond precision must survive")
	assert.Equal(t, uint64(9), got.BlockOrdinal)
}

func TestDonation_DuplicateID_Rejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d := testDonation("0xfeed-9", "alice@example.com", "2", testTime)
	require.NoError(t, store.PutDonation(ctx, d))

	err := store.PutDonation(ctx, d)
	assert.ErrorIs(t, err, vault.ErrInvalidInput)
}

func TestDonation_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetDonation(context.Background(), "0xghost-0")
	assert.ErrorIs(t, err, vault.ErrNotFound)
}

// =============================================================================
// REIMBURSEMENTS AND APPLY
// =============================================================================

func putReimbursement(t *testing.T, store *sqlite.Store, id string, amount string) {
	t.Helper()
	require.NoError(t, store.PutReimbursement(context.Background(), vault.Reimbursement{
		ID:           vault.ReimbursementID(id),
		Amount:       dec(amount),
		TxHash:       "0xr",
		BlockOrdinal: 1,
		Invoice:      "office supplies",
		CreatedAt:    testTime,
	}))
}

func TestReimbursement_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	putReimbursement(t, store, "0xr-1", "4")

	got, err := store.GetReimbursement(ctx, "0xr-1")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("4")))
	assert.Equal(t, "office supplies", got.Invoice)
	assert.False(t, got.AllocationApplied)
}

func TestApplyAllocation_DecrementsAndMarksApplied(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutDonation(ctx, testDonation("0xa-1", "alice@example.com", "5", testTime)))
	putReimbursement(t, store, "0xr-1", "2")

	entries := []vault.AllocationEntry{{
		DonationID:  "0xa-1",
		DonorEmail:  "alice@example.com",
		AmountSpent: dec("2"),
	}}
	require.NoError(t, store.ApplyAllocation(ctx, "0xr-1", entries))

	d, err := store.GetDonation(ctx, "0xa-1")
	require.NoError(t, err)
	assert.True(t, d.Remaining.Equal(dec("3")))

	r, err := store.GetReimbursement(ctx, "0xr-1")
	require.NoError(t, err)
	assert.True(t, r.AllocationApplied)
}

func TestApplyAllocation_SecondApplyRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutDonation(ctx, testDonation("0xa-1", "alice@example.com", "5", testTime)))
	putReimbursement(t, store, "0xr-1", "2")

	entries := []vault.AllocationEntry{{DonationID: "0xa-1", AmountSpent: dec("2")}}
	require.NoError(t, store.ApplyAllocation(ctx, "0xr-1", entries))

	err := store.ApplyAllocation(ctx, "0xr-1", entries)
	assert.ErrorIs(t, err, vault.ErrAlreadyProcessed)

	// Balance decremented exactly once.
	d, err := store.GetDonation(ctx, "0xa-1")
	require.NoError(t, err)
	assert.True(t, d.Remaining.Equal(dec("3")))
}

func TestApplyAllocation_GuardFailure_RollsBackWholeBatch(t *testing.T) {
	// GIVEN: Two donations, the second with less remaining than the batch
	// wants to draw (stale allocation)
	// WHEN: ApplyAllocation runs
	// THEN: Nothing changes - not the first donation, not the applied flag

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutDonation(ctx, testDonation("0xa-1", "alice@example.com", "5", testTime)))
	require.NoError(t, store.PutDonation(ctx, testDonation("0xb-1", "bob@example.com", "1", testTime)))
	putReimbursement(t, store, "0xr-1", "7")

	entries := []vault.AllocationEntry{
		{DonationID: "0xa-1", AmountSpent: dec("5")},
		{DonationID: "0xb-1", AmountSpent: dec("2")}, // more than remaining
	}
	err := store.ApplyAllocation(ctx, "0xr-1", entries)
	assert.ErrorIs(t, err, vault.ErrConcurrentModification)

	a, err := store.GetDonation(ctx, "0xa-1")
	require.NoError(t, err)
	assert.True(t, a.Remaining.Equal(dec("5")), "partial apply leaked: %v", a.Remaining)

	r, err := store.GetReimbursement(ctx, "0xr-1")
	require.NoError(t, err)
	assert.False(t, r.AllocationApplied)
}

func TestApplyAllocation_UnknownReimbursement(t *testing.T) {
	store := newTestStore(t)

	err := store.ApplyAllocation(context.Background(), "0xghost-0", nil)
	assert.ErrorIs(t, err, vault.ErrNotFound)
}
