package vault_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/charity-vault/vault"
	vaultstore "github.com/warp/charity-vault/vault/store"
)

const (
	aliceWallet = "0xAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaa"
	bobWallet   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func newTestRecorder() (*vault.Recorder, *vaultstore.Memory) {
	store := vaultstore.NewMemory()
	return vault.NewRecorder(store), store
}

// =============================================================================
// DONOR REGISTRATION
// =============================================================================

func TestRegisterDonor_NormalizesEmailAndWallet(t *testing.T) {
	recorder, _ := newTestRecorder()

	donor, err := recorder.RegisterDonor(context.Background(), "Alice@Example.COM", aliceWallet)
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", donor.Email)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", donor.WalletAddress)
}

func TestRegisterDonor_RejectsMalformedInput(t *testing.T) {
	recorder, _ := newTestRecorder()
	ctx := context.Background()

	_, err := recorder.RegisterDonor(ctx, "not-an-email", aliceWallet)
	assert.ErrorIs(t, err, vault.ErrInvalidInput)

	_, err = recorder.RegisterDonor(ctx, "alice@example.com", "0x1234")
	assert.ErrorIs(t, err, vault.ErrInvalidInput)

	_, err = recorder.RegisterDonor(ctx, "alice@example.com", "deadbeef")
	assert.ErrorIs(t, err, vault.ErrInvalidInput)
}

func TestRegisterDonor_SameEmailNewWallet_OverwritesInPlace(t *testing.T) {
	recorder, store := newTestRecorder()
	ctx := context.Background()

	_, err := recorder.RegisterDonor(ctx, "alice@example.com", aliceWallet)
	require.NoError(t, err)

	_, err = recorder.RegisterDonor(ctx, "alice@example.com", bobWallet)
	require.NoError(t, err)

	donor, err := store.GetDonorByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, vault.NormalizeWallet(bobWallet), donor.WalletAddress)

	// The old wallet no longer resolves.
	_, err = store.GetDonorByWallet(ctx, vault.NormalizeWallet(aliceWallet))
	assert.ErrorIs(t, err, vault.ErrNotFound)
}

func TestRegisterDonor_WalletOwnedByOtherEmail_Rejected(t *testing.T) {
	recorder, _ := newTestRecorder()
	ctx := context.Background()

	_, err := recorder.RegisterDonor(ctx, "alice@example.com", aliceWallet)
	require.NoError(t, err)

	_, err = recorder.RegisterDonor(ctx, "bob@example.com", aliceWallet)
	assert.ErrorIs(t, err, vault.ErrInvalidInput)
}

// =============================================================================
// DONATION INGESTION
// =============================================================================

func TestRecord_UnregisteredWallet_Rejected(t *testing.T) {
	recorder, _ := newTestRecorder()

	_, err := recorder.Record(context.Background(), aliceWallet, dec("1"), "0xabc", 1)
	assert.ErrorIs(t, err, vault.ErrUnregisteredWallet)
}

func TestRecord_InitializesRemainingToAmount(t *testing.T) {
	recorder, _ := newTestRecorder()
	ctx := context.Background()

	_, err := recorder.RegisterDonor(ctx, "alice@example.com", aliceWallet)
	require.NoError(t, err)

	d, err := recorder.Record(ctx, aliceWallet, dec("2.5"), "0xAbC", 7)
	require.NoError(t, err)

	assert.Equal(t, vault.DonationID("0xabc-7"), d.ID)
	assert.Equal(t, "alice@example.com", d.DonorEmail)
	assert.True(t, d.Remaining.Equal(dec("2.5")))
	assert.True(t, d.Amount.Equal(d.Remaining))
}

func TestRecord_IdempotentReingestion(t *testing.T) {
	// Recording the same (txHash, ordinal) twice results in exactly one
	// donation with remaining unaffected by the second call.
	recorder, store := newTestRecorder()
	ctx := context.Background()

	_, err := recorder.RegisterDonor(ctx, "alice@example.com", aliceWallet)
	require.NoError(t, err)

	first, err := recorder.Record(ctx, aliceWallet, dec("2"), "0xabc", 1)
	require.NoError(t, err)

	second, err := recorder.Record(ctx, aliceWallet, dec("2"), "0xabc", 1)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Remaining.Equal(dec("2")))

	donations, err := store.ListDonations(ctx)
	require.NoError(t, err)
	assert.Len(t, donations, 1)
}

func TestRecord_RejectsNonPositiveAmounts(t *testing.T) {
	recorder, _ := newTestRecorder()
	ctx := context.Background()

	_, err := recorder.RegisterDonor(ctx, "alice@example.com", aliceWallet)
	require.NoError(t, err)

	_, err = recorder.Record(ctx, aliceWallet, dec("0"), "0xabc", 1)
	assert.ErrorIs(t, err, vault.ErrInvalidInput)

	_, err = recorder.Record(ctx, aliceWallet, dec("-1"), "0xabc", 2)
	assert.ErrorIs(t, err, vault.ErrInvalidInput)
}
