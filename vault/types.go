/*
Package vault implements the core of the pooled charity vault: the
donation/reimbursement ledger and the FIFO attribution engine that runs
against it.

PURPOSE:
  Donations flow into one pooled balance, so there is no intrinsic link
  between a reimbursement and the donor money that funded it. This package
  reconstructs that link deterministically: every reimbursement is
  attributed to the oldest unspent donations first, and every donation
  carries a durable "remaining" balance that only ever shrinks.

KEY CONCEPTS IN THIS FILE (types.go):
  - Donor:           email <-> wallet registration record
  - Donation:        one inbound contribution with its shrinking Remaining
  - Reimbursement:   one outbound expense drawn against the pool
  - AllocationEntry: one (donation, amount-drawn) pair from the allocator
  - AllocationResult: full output of a single allocation run

DESIGN PRINCIPLES:
  1. Precision: all amounts use decimal.Decimal - no floating-point drift
  2. Idempotency: record IDs derive from (txHash, ordinal), so re-ingesting
     the same on-chain event can never double-count
  3. Append-only history: donations are never deleted; a fully spent
     donation stays around with Remaining = 0 for audit

SEE ALSO:
  - allocate.go:  the pure FIFO allocator
  - processor.go: read-allocate-write orchestration
  - store.go:     persistence interface
*/
package vault

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type DonationID string
type ReimbursementID string

// deriveID builds a stable record ID from an on-chain event reference.
// Same (txHash, ordinal) always yields the same ID, which is what makes
// re-ingestion of the same event idempotent.
func deriveID(txHash string, ordinal uint64) string {
	return fmt.Sprintf("%s-%d", strings.ToLower(txHash), ordinal)
}

func DeriveDonationID(txHash string, ordinal uint64) DonationID {
	return DonationID(deriveID(txHash, ordinal))
}

func DeriveReimbursementID(txHash string, ordinal uint64) ReimbursementID {
	return ReimbursementID(deriveID(txHash, ordinal))
}

// =============================================================================
// DONOR - Registration record linking an email to a wallet
// =============================================================================

// Donor links an email to exactly one wallet address. Both are stored
// lower-cased. Re-registering the same email with a different wallet
// overwrites the record in place; the record is not versioned.
type Donor struct {
	Email         string
	WalletAddress string
	CreatedAt     time.Time
}

// =============================================================================
// DONATION - One inbound contribution
// =============================================================================

// Donation is one inbound contribution event.
//
// INVARIANT: 0 <= Remaining <= Amount at all times. Remaining starts at
// Amount and only ever decreases, exclusively through allocation. It is
// never increased and the record is never deleted.
type Donation struct {
	ID            DonationID
	DonorEmail    string
	WalletAddress string
	Amount        decimal.Decimal
	Remaining     decimal.Decimal
	TxHash        string
	BlockOrdinal  uint64

	// Ingestion time, not chain time. FIFO ordering runs on this.
	CreatedAt time.Time
}

// Spent reports whether the donation has been fully consumed.
func (d Donation) Spent() bool {
	return !d.Remaining.IsPositive()
}

// =============================================================================
// REIMBURSEMENT - One outbound expense
// =============================================================================

// Reimbursement is one outbound expense event. Immutable after creation,
// except for the AllocationApplied flip when its allocation lands.
type Reimbursement struct {
	ID           ReimbursementID
	Amount       decimal.Decimal
	TxHash       string
	BlockOrdinal uint64

	// Free-text invoice/expense description supplied by the event source.
	Invoice string

	// AllocationApplied guards against double-spending donations: the
	// record existing is not enough, the balance decrements for this
	// reimbursement must have landed exactly once.
	AllocationApplied bool

	CreatedAt time.Time
}

// =============================================================================
// ALLOCATION - Derived output of the FIFO allocator (not persisted)
// =============================================================================

// AllocationEntry records how much of one donation a reimbursement consumed.
type AllocationEntry struct {
	DonationID    DonationID
	DonorEmail    string
	WalletAddress string

	// The donation's original amount, for context in notifications.
	OriginalAmount decimal.Decimal

	// How much this reimbursement drew from the donation.
	AmountSpent decimal.Decimal

	// AmountSpent as a percentage of OriginalAmount. Display value only,
	// so float64 is fine here.
	PercentageSpent float64
}

// AllocationResult is the full outcome of one allocator run.
//
// INVARIANT: TotalAllocated == min(Requested, sum of remaining across all
// donations at computation time). When the pool cannot cover the request,
// the gap is carried in Shortfall rather than raised as an error; callers
// that want strictness check IsSatisfied.
type AllocationResult struct {
	Requested      decimal.Decimal
	Entries        []AllocationEntry
	TotalAllocated decimal.Decimal
	Shortfall      decimal.Decimal
	IsSatisfied    bool
}
