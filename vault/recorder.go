/*
recorder.go - Donor registration and donation ingestion

PURPOSE:
  The write path for inbound money. Resolves a wallet to a registered
  donor, then appends a Donation with Remaining initialized to the full
  amount. Also owns donor registration, since a wallet must be registered
  before any donation referencing it can land.

IDEMPOTENCY:
  Donation IDs derive from (txHash, ordinal). Recording the same on-chain
  event twice returns the stored record unchanged - re-ingestion must not
  double-count remaining balance. This is the check-then-write pattern:
  fine here because donation inserts for one chain event never race with
  different payloads, and PutDonation rejects duplicate IDs regardless.
*/
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Recorder handles donor registration and donation ingestion.
type Recorder struct {
	store Store

	// Now is the clock used for CreatedAt stamps. Overridable in tests.
	Now func() time.Time
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, Now: time.Now}
}

// RegisterDonor validates and persists an email <-> wallet registration.
// Registering an existing email with a new wallet overwrites the record in
// place. A wallet already owned by a different email is rejected.
func (r *Recorder) RegisterDonor(ctx context.Context, email, wallet string) (Donor, error) {
	if err := ValidateEmail(email); err != nil {
		return Donor{}, err
	}
	if err := ValidateWallet(wallet); err != nil {
		return Donor{}, err
	}

	email = NormalizeEmail(email)
	wallet = NormalizeWallet(wallet)

	// One wallet maps to one email.
	existing, err := r.store.GetDonorByWallet(ctx, wallet)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Donor{}, err
	}
	if err == nil && existing.Email != email {
		return Donor{}, &ValidationError{
			Field:  "walletAddress",
			Reason: "already registered to another donor",
		}
	}

	donor := Donor{
		Email:         email,
		WalletAddress: wallet,
		CreatedAt:     r.Now().UTC(),
	}
	if err := r.store.SaveDonor(ctx, donor); err != nil {
		return Donor{}, err
	}
	return donor, nil
}

// Record ingests one donation event.
//
// The wallet must already belong to a registered donor. Re-ingesting the
// same (txHash, ordinal) returns the existing record with Remaining
// untouched.
func (r *Recorder) Record(ctx context.Context, wallet string, amount decimal.Decimal, txHash string, ordinal uint64) (Donation, error) {
	if err := ValidateAmount(amount); err != nil {
		return Donation{}, err
	}
	if err := ValidateWallet(wallet); err != nil {
		return Donation{}, err
	}
	if err := ValidateTxHash(txHash); err != nil {
		return Donation{}, err
	}

	wallet = NormalizeWallet(wallet)

	donor, err := r.store.GetDonorByWallet(ctx, wallet)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Donation{}, fmt.Errorf("%w: %s", ErrUnregisteredWallet, wallet)
		}
		return Donation{}, err
	}

	id := DeriveDonationID(txHash, ordinal)
	if existing, err := r.store.GetDonation(ctx, id); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Donation{}, err
	}

	donation := Donation{
		ID:            id,
		DonorEmail:    donor.Email,
		WalletAddress: wallet,
		Amount:        amount,
		Remaining:     amount,
		TxHash:        txHash,
		BlockOrdinal:  ordinal,
		CreatedAt:     r.Now().UTC(),
	}
	if err := r.store.PutDonation(ctx, donation); err != nil {
		return Donation{}, err
	}
	return donation, nil
}
