// Package store provides an in-memory vault.Store for tests and dev.
package store

import (
	"context"
	"sync"

	"github.com/warp/charity-vault/vault"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu             sync.RWMutex
	donorsByEmail  map[string]vault.Donor
	donorsByWallet map[string]string // wallet -> email
	donations      map[vault.DonationID]vault.Donation
	reimbursements map[vault.ReimbursementID]vault.Reimbursement
}

func NewMemory() *Memory {
	return &Memory{
		donorsByEmail:  make(map[string]vault.Donor),
		donorsByWallet: make(map[string]string),
		donations:      make(map[vault.DonationID]vault.Donation),
		reimbursements: make(map[vault.ReimbursementID]vault.Reimbursement),
	}
}

func (m *Memory) SaveDonor(_ context.Context, donor vault.Donor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Overwrite-in-place for the same email; drop the stale wallet index.
	if old, ok := m.donorsByEmail[donor.Email]; ok {
		delete(m.donorsByWallet, old.WalletAddress)
	}
	m.donorsByEmail[donor.Email] = donor
	m.donorsByWallet[donor.WalletAddress] = donor.Email
	return nil
}

func (m *Memory) GetDonorByEmail(_ context.Context, email string) (vault.Donor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	donor, ok := m.donorsByEmail[email]
	if !ok {
		return vault.Donor{}, vault.ErrNotFound
	}
	return donor, nil
}

func (m *Memory) GetDonorByWallet(_ context.Context, wallet string) (vault.Donor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	email, ok := m.donorsByWallet[wallet]
	if !ok {
		return vault.Donor{}, vault.ErrNotFound
	}
	return m.donorsByEmail[email], nil
}

func (m *Memory) ListDonors(_ context.Context) ([]vault.Donor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	donors := make([]vault.Donor, 0, len(m.donorsByEmail))
	for _, d := range m.donorsByEmail {
		donors = append(donors, d)
	}
	return donors, nil
}

func (m *Memory) PutDonation(_ context.Context, donation vault.Donation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.donations[donation.ID]; exists {
		return &vault.ValidationError{Field: "donation", Reason: "duplicate id"}
	}
	m.donations[donation.ID] = donation
	return nil
}

func (m *Memory) GetDonation(_ context.Context, id vault.DonationID) (vault.Donation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	donation, ok := m.donations[id]
	if !ok {
		return vault.Donation{}, vault.ErrNotFound
	}
	return donation, nil
}

func (m *Memory) ListDonations(_ context.Context) ([]vault.Donation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	donations := make([]vault.Donation, 0, len(m.donations))
	for _, d := range m.donations {
		donations = append(donations, d)
	}
	return donations, nil
}

func (m *Memory) PutReimbursement(_ context.Context, r vault.Reimbursement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reimbursements[r.ID]; exists {
		return &vault.ValidationError{Field: "reimbursement", Reason: "duplicate id"}
	}
	m.reimbursements[r.ID] = r
	return nil
}

func (m *Memory) GetReimbursement(_ context.Context, id vault.ReimbursementID) (vault.Reimbursement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reimbursements[id]
	if !ok {
		return vault.Reimbursement{}, vault.ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListReimbursements(_ context.Context) ([]vault.Reimbursement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rs := make([]vault.Reimbursement, 0, len(m.reimbursements))
	for _, r := range m.reimbursements {
		rs = append(rs, r)
	}
	return rs, nil
}

// ApplyAllocation decrements Remaining for every entry and marks the
// reimbursement applied, all under one lock. Guards are checked before any
// mutation so a failure leaves the store untouched.
func (m *Memory) ApplyAllocation(_ context.Context, id vault.ReimbursementID, entries []vault.AllocationEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reimbursements[id]
	if !ok {
		return vault.ErrNotFound
	}
	if r.AllocationApplied {
		return vault.ErrAlreadyProcessed
	}

	// Check every guard first (atomic check).
	for _, e := range entries {
		d, ok := m.donations[e.DonationID]
		if !ok {
			return vault.ErrNotFound
		}
		if d.Remaining.LessThan(e.AmountSpent) {
			return vault.ErrConcurrentModification
		}
	}

	// Apply all (atomic write).
	for _, e := range entries {
		d := m.donations[e.DonationID]
		d.Remaining = d.Remaining.Sub(e.AmountSpent)
		m.donations[e.DonationID] = d
	}

	r.AllocationApplied = true
	m.reimbursements[id] = r
	return nil
}
