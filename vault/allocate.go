/*
allocate.go - The FIFO allocator

PURPOSE:
  Given the current donation set and a reimbursement amount, compute which
  donations funded the reimbursement on a strict oldest-money-first basis.
  This is the central algorithm of the system and it is a pure function:
  no I/O, no clock, no mutation of its inputs.

ALGORITHM:
  1. Drop donations with nothing left (Remaining <= 0)
  2. Sort oldest first by CreatedAt; ties break on DonationID so the
     ordering is stable and deterministic, never map-iteration order
  3. Walk the list drawing min(donation.Remaining, still-to-allocate)
     from each donation until the request is covered or the pool is empty

SHORTFALL:
  If the request exceeds the pool, every donation is fully drawn and the
  gap is reported in AllocationResult.Shortfall. Whether that is an error
  is the caller's policy, not the allocator's.

EXAMPLE:
  D1 remaining 3 (older), D2 remaining 5. Allocate(., 7) produces
  [D1 drawn 3, D2 drawn 4], TotalAllocated 7, Shortfall 0.

SEE ALSO:
  - processor.go: persists the computed deltas and emits notifications
*/
package vault

import (
	"sort"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// Allocate computes the FIFO attribution of amount across donations.
//
// Pure function: the input slice and its donations are not modified, and
// no entry is emitted twice for the same donation. Callers are responsible
// for rejecting non-positive amounts before calling; a non-positive amount
// here simply yields an empty allocation.
func Allocate(donations []Donation, amount decimal.Decimal) AllocationResult {
	// Work on a filtered copy so sorting never reorders the caller's slice.
	open := make([]Donation, 0, len(donations))
	for _, d := range donations {
		if d.Remaining.IsPositive() {
			open = append(open, d)
		}
	}

	// Oldest money first. The ID tie-break keeps identical timestamps
	// deterministic across runs and store implementations.
	sort.Slice(open, func(i, j int) bool {
		if !open[i].CreatedAt.Equal(open[j].CreatedAt) {
			return open[i].CreatedAt.Before(open[j].CreatedAt)
		}
		return open[i].ID < open[j].ID
	})

	result := AllocationResult{
		Requested:      amount,
		TotalAllocated: decimal.Zero,
	}

	remaining := amount
	for _, d := range open {
		if !remaining.IsPositive() {
			break
		}

		drawn := decimal.Min(d.Remaining, remaining)

		result.Entries = append(result.Entries, AllocationEntry{
			DonationID:      d.ID,
			DonorEmail:      d.DonorEmail,
			WalletAddress:   d.WalletAddress,
			OriginalAmount:  d.Amount,
			AmountSpent:     drawn,
			PercentageSpent: percentageOf(drawn, d.Amount),
		})

		result.TotalAllocated = result.TotalAllocated.Add(drawn)
		remaining = remaining.Sub(drawn)
	}

	if remaining.IsPositive() {
		result.Shortfall = remaining
	} else {
		result.Shortfall = decimal.Zero
	}
	result.IsSatisfied = !remaining.IsPositive()

	return result
}

// percentageOf returns drawn/total*100 as a display float.
func percentageOf(drawn, total decimal.Decimal) float64 {
	if !total.IsPositive() {
		return 0
	}
	pct, _ := drawn.Div(total).Mul(oneHundred).Float64()
	return pct
}
