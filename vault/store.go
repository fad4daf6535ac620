/*
store.go - Persistence interface for the three ledger collections

PURPOSE:
  Defines the boundary between the vault core and the database. The same
  Recorder/Processor logic runs unchanged against sqlite or the in-memory
  store; the interface is the design artifact, not the backing format.

COLLECTIONS:
  donors          keyed by email (lower-cased)
  donations       keyed by DonationID, Remaining is the only mutable field
  reimbursements  keyed by ReimbursementID

WRITE DISCIPLINE:
  Donations and reimbursements are append-only records. The only mutations
  the interface allows are the ones the domain needs:
  - a donation's Remaining decreases via ApplyAllocation, never any other way
  - a reimbursement's AllocationApplied flips to true via ApplyAllocation
  - a donor record may be overwritten for the same email (re-registration)

ATOMICITY:
  ApplyAllocation is the one multi-record write and it is all-or-nothing:
  either every decrement lands and the reimbursement is marked applied, or
  nothing changes. Each decrement is guarded (remaining must still cover
  the drawn amount); a failed guard surfaces ErrConcurrentModification.

ERRORS:
  Missing records return errors matching vault.ErrNotFound. Backend
  failures wrap vault.ErrStorageUnavailable (see StorageError).

IMPLEMENTATIONS:
  - store/sqlite:       production, transactional
  - vault/store/memory: tests and dev, RWMutex over maps
*/
package vault

import "context"

// Store is the durable keyed storage for donors, donations and
// reimbursements. All methods honor ctx cancellation to whatever extent
// the backend supports it.
type Store interface {
	// SaveDonor creates or overwrites the donor record for its email.
	SaveDonor(ctx context.Context, donor Donor) error

	// GetDonorByEmail returns the donor for a (normalized) email.
	GetDonorByEmail(ctx context.Context, email string) (Donor, error)

	// GetDonorByWallet returns the donor owning a (normalized) wallet.
	GetDonorByWallet(ctx context.Context, wallet string) (Donor, error)

	// ListDonors returns all donor records, unordered.
	ListDonors(ctx context.Context) ([]Donor, error)

	// PutDonation persists a new donation. Fails if the ID already exists;
	// callers handle idempotent re-ingestion by checking GetDonation first.
	PutDonation(ctx context.Context, donation Donation) error

	// GetDonation returns a donation by ID.
	GetDonation(ctx context.Context, id DonationID) (Donation, error)

	// ListDonations returns all donations, unordered. Callers sort.
	ListDonations(ctx context.Context) ([]Donation, error)

	// PutReimbursement persists a new reimbursement record.
	PutReimbursement(ctx context.Context, r Reimbursement) error

	// GetReimbursement returns a reimbursement by ID.
	GetReimbursement(ctx context.Context, id ReimbursementID) (Reimbursement, error)

	// ListReimbursements returns all reimbursements, unordered.
	ListReimbursements(ctx context.Context) ([]Reimbursement, error)

	// ApplyAllocation atomically decrements Remaining on every donation an
	// entry touches and marks the reimbursement applied.
	//
	// Guards, any of which fail the whole batch with nothing applied:
	//   - the reimbursement must exist and not be applied yet
	//     (ErrAlreadyProcessed)
	//   - every touched donation's remaining must still cover its drawn
	//     amount (ErrConcurrentModification)
	ApplyAllocation(ctx context.Context, id ReimbursementID, entries []AllocationEntry) error
}
