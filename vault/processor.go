/*
processor.go - Reimbursement processing and the preview surface

PURPOSE:
  Orchestrates the read-allocate-write sequence: record the reimbursement
  fact, run the FIFO allocator over the current donation set, apply the
  resulting balance decrements atomically, and emit one notification
  intent per affected donor.

CONCURRENCY:
  The read-allocate-write sequence is a classic read-modify-write race if
  two reimbursements run concurrently against the same snapshot. Two
  layers of defense, both required:

  1. Single-writer queue per process: Process/Reapply serialize behind a
     mutex, so within one process allocations never interleave.
  2. Guarded apply in the store: ApplyAllocation refuses (atomically, the
     whole batch) if any donation's remaining no longer covers its drawn
     amount, so a second process cannot drive remaining negative. A guard
     failure surfaces ErrConcurrentModification and the caller may retry.

FAILURE WINDOW:
  A crash between recording the reimbursement and applying its allocation
  leaves a recorded reimbursement with AllocationApplied=false and no
  decrements. That window is inherent to the non-transactional split
  between the two writes; Reapply is the recovery path, keyed by the
  reimbursement ID. The AllocationApplied flag is what makes recovery (and
  retries in general) safe: an applied reimbursement can never be applied
  again.

SHORTFALL:
  A reimbursement larger than the pool allocates whatever is available and
  reports the gap in the result; the processor logs a warning so operators
  see under-attributed reimbursements, but does not fail the operation.

SEE ALSO:
  - allocate.go: the pure allocator this drives
  - notify.go:   the intents handed to the delivery sink
*/
package vault

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Processor orchestrates reimbursement recording, FIFO allocation and
// notification intent emission. Construct once and share; all methods are
// safe for concurrent use.
type Processor struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger

	// Serializes read-allocate-write. See the header comment.
	mu sync.Mutex

	// Now is the clock used for CreatedAt stamps. Overridable in tests.
	Now func() time.Time
}

func NewProcessor(store Store, notifier Notifier, logger *slog.Logger) *Processor {
	return &Processor{
		store:    store,
		notifier: notifier,
		logger:   logger,
		Now:      time.Now,
	}
}

// Process records a reimbursement and attributes it across donations.
//
// Returns the reimbursement record, the allocation result, and the
// notification intents that were handed to the sink. Re-processing an
// already-applied reimbursement returns ErrAlreadyProcessed along with the
// stored record; its allocation is never applied twice.
func (p *Processor) Process(ctx context.Context, amount decimal.Decimal, txHash string, ordinal uint64, invoice string) (Reimbursement, AllocationResult, []NotificationIntent, error) {
	if err := ValidateAmount(amount); err != nil {
		return Reimbursement{}, AllocationResult{}, nil, err
	}
	if err := ValidateTxHash(txHash); err != nil {
		return Reimbursement{}, AllocationResult{}, nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := DeriveReimbursementID(txHash, ordinal)

	reimbursement, err := p.store.GetReimbursement(ctx, id)
	switch {
	case err == nil:
		if reimbursement.AllocationApplied {
			return reimbursement, AllocationResult{}, nil, ErrAlreadyProcessed
		}
		// Recorded but never applied (earlier crash). Fall through and
		// apply now - the record is a pure function of its inputs, so the
		// stored one is identical to what we would write.
	case errors.Is(err, ErrNotFound):
		reimbursement = Reimbursement{
			ID:           id,
			Amount:       amount,
			TxHash:       txHash,
			BlockOrdinal: ordinal,
			Invoice:      invoice,
			CreatedAt:    p.Now().UTC(),
		}
		if err := p.store.PutReimbursement(ctx, reimbursement); err != nil {
			return Reimbursement{}, AllocationResult{}, nil, err
		}
	default:
		return Reimbursement{}, AllocationResult{}, nil, err
	}

	result, intents, err := p.allocateAndApply(ctx, reimbursement)
	if err != nil {
		return reimbursement, AllocationResult{}, nil, err
	}
	reimbursement.AllocationApplied = true
	return reimbursement, result, intents, nil
}

// Reapply re-runs allocation for a recorded reimbursement whose allocation
// never landed (crash between record and apply). Applied reimbursements
// are rejected with ErrAlreadyProcessed.
func (p *Processor) Reapply(ctx context.Context, id ReimbursementID) (Reimbursement, AllocationResult, []NotificationIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	reimbursement, err := p.store.GetReimbursement(ctx, id)
	if err != nil {
		return Reimbursement{}, AllocationResult{}, nil, err
	}
	if reimbursement.AllocationApplied {
		return reimbursement, AllocationResult{}, nil, ErrAlreadyProcessed
	}

	result, intents, err := p.allocateAndApply(ctx, reimbursement)
	if err != nil {
		return reimbursement, AllocationResult{}, nil, err
	}
	reimbursement.AllocationApplied = true
	return reimbursement, result, intents, nil
}

// allocateAndApply is steps 4-6: load donations, allocate, persist the
// deltas, emit intents. Callers hold p.mu.
func (p *Processor) allocateAndApply(ctx context.Context, r Reimbursement) (AllocationResult, []NotificationIntent, error) {
	donations, err := p.store.ListDonations(ctx)
	if err != nil {
		return AllocationResult{}, nil, err
	}

	result := Allocate(donations, r.Amount)

	if !result.IsSatisfied {
		p.logger.Warn("allocation shortfall: reimbursement exceeds pool",
			slog.String("reimbursement_id", string(r.ID)),
			slog.String("requested", result.Requested.String()),
			slog.String("allocated", result.TotalAllocated.String()),
			slog.String("shortfall", result.Shortfall.String()),
		)
	}

	if err := p.store.ApplyAllocation(ctx, r.ID, result.Entries); err != nil {
		return AllocationResult{}, nil, err
	}

	now := p.Now().UTC()
	intents := make([]NotificationIntent, 0, len(result.Entries))
	for _, entry := range result.Entries {
		intent := NewIntent(r, entry, now)
		intents = append(intents, intent)

		// Best effort: the attribution already landed, a sink hiccup must
		// not fail the reimbursement.
		if err := p.notifier.Notify(ctx, intent); err != nil {
			p.logger.Error("notification sink failed",
				slog.String("intent_id", intent.ID),
				slog.String("donor", intent.DonorEmail),
				slog.String("error", err.Error()),
			)
		}
	}

	return result, intents, nil
}

// Preview computes what Process would allocate for amount against the
// current donation set, without writing anything. The result is only valid
// for the snapshot it was computed against: no lock is held between a
// preview and a later Process call.
func (p *Processor) Preview(ctx context.Context, amount decimal.Decimal) (AllocationResult, error) {
	if err := ValidateAmount(amount); err != nil {
		return AllocationResult{}, err
	}

	donations, err := p.store.ListDonations(ctx)
	if err != nil {
		return AllocationResult{}, err
	}
	return Allocate(donations, amount), nil
}

// Donations returns donations newest-first, optionally filtered to one
// donor email.
func (p *Processor) Donations(ctx context.Context, emailFilter string) ([]Donation, error) {
	donations, err := p.store.ListDonations(ctx)
	if err != nil {
		return nil, err
	}

	if emailFilter != "" {
		email := NormalizeEmail(emailFilter)
		filtered := donations[:0]
		for _, d := range donations {
			if d.DonorEmail == email {
				filtered = append(filtered, d)
			}
		}
		donations = filtered
	}

	sort.Slice(donations, func(i, j int) bool {
		if !donations[i].CreatedAt.Equal(donations[j].CreatedAt) {
			return donations[i].CreatedAt.After(donations[j].CreatedAt)
		}
		return donations[i].ID > donations[j].ID
	})
	return donations, nil
}

// Reimbursements returns reimbursements newest-first.
func (p *Processor) Reimbursements(ctx context.Context) ([]Reimbursement, error) {
	rs, err := p.store.ListReimbursements(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.After(rs[j].CreatedAt)
		}
		return rs[i].ID > rs[j].ID
	})
	return rs, nil
}

// Summary aggregates vault-wide totals for the read surface.
type Summary struct {
	TotalDonated   decimal.Decimal
	TotalRemaining decimal.Decimal
	TotalSpent     decimal.Decimal
	DonationCount  int
	DonorCount     int
}

// Summarize computes vault totals from the current donation set.
func (p *Processor) Summarize(ctx context.Context) (Summary, error) {
	donations, err := p.store.ListDonations(ctx)
	if err != nil {
		return Summary{}, err
	}
	donors, err := p.store.ListDonors(ctx)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		TotalDonated:   decimal.Zero,
		TotalRemaining: decimal.Zero,
		DonationCount:  len(donations),
		DonorCount:     len(donors),
	}
	for _, d := range donations {
		s.TotalDonated = s.TotalDonated.Add(d.Amount)
		s.TotalRemaining = s.TotalRemaining.Add(d.Remaining)
	}
	s.TotalSpent = s.TotalDonated.Sub(s.TotalRemaining)
	return s, nil
}
