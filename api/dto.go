/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupled from the domain types.
  Amounts travel as decimal strings (never JSON numbers) so no client-side
  float parsing can corrupt them; percentages are display values and stay
  float64.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients
*/
package api

import (
	"time"

	"github.com/warp/charity-vault/vault"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

type DonorDTO struct {
	Email         string `json:"email"`
	WalletAddress string `json:"wallet_address"`
	CreatedAt     string `json:"created_at"`
}

type RegisterDonorRequest struct {
	Email         string `json:"email"`
	WalletAddress string `json:"wallet_address"`
}

type DonationDTO struct {
	ID            string `json:"id"`
	DonorEmail    string `json:"donor_email"`
	WalletAddress string `json:"wallet_address"`
	Amount        string `json:"amount"`
	Remaining     string `json:"remaining"`
	TxHash        string `json:"tx_hash"`
	BlockOrdinal  uint64 `json:"block_ordinal"`
	CreatedAt     string `json:"created_at"`
}

type RecordDonationRequest struct {
	WalletAddress string `json:"wallet_address"`
	Amount        string `json:"amount"`
	TxHash        string `json:"tx_hash"`
	BlockOrdinal  uint64 `json:"block_ordinal"`
}

type ReimbursementDTO struct {
	ID                string `json:"id"`
	Amount            string `json:"amount"`
	TxHash            string `json:"tx_hash"`
	BlockOrdinal      uint64 `json:"block_ordinal"`
	Invoice           string `json:"invoice,omitempty"`
	AllocationApplied bool   `json:"allocation_applied"`
	CreatedAt         string `json:"created_at"`
}

type ProcessReimbursementRequest struct {
	Amount       string `json:"amount"`
	TxHash       string `json:"tx_hash"`
	BlockOrdinal uint64 `json:"block_ordinal"`
	Invoice      string `json:"invoice"`
}

type AllocationEntryDTO struct {
	DonationID      string  `json:"donation_id"`
	DonorEmail      string  `json:"donor_email"`
	WalletAddress   string  `json:"wallet_address"`
	OriginalAmount  string  `json:"original_amount"`
	AmountSpent     string  `json:"amount_spent"`
	PercentageSpent float64 `json:"percentage_spent"`
}

type AllocationResultDTO struct {
	Requested      string               `json:"requested"`
	TotalAllocated string               `json:"total_allocated"`
	Shortfall      string               `json:"shortfall"`
	Satisfied      bool                 `json:"satisfied"`
	Entries        []AllocationEntryDTO `json:"entries"`
}

type ProcessReimbursementResponse struct {
	Reimbursement ReimbursementDTO    `json:"reimbursement"`
	Allocation    AllocationResultDTO `json:"allocation"`
	Notifications int                 `json:"notifications"`
}

type PreviewAllocationRequest struct {
	Amount string `json:"amount"`
}

type SummaryDTO struct {
	TotalDonated   string `json:"total_donated"`
	TotalRemaining string `json:"total_remaining"`
	TotalSpent     string `json:"total_spent"`
	DonationCount  int    `json:"donation_count"`
	DonorCount     int    `json:"donor_count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// DOMAIN -> DTO CONVERSIONS
// =============================================================================

func toDonorDTO(d vault.Donor) DonorDTO {
	return DonorDTO{
		Email:         d.Email,
		WalletAddress: d.WalletAddress,
		CreatedAt:     d.CreatedAt.Format(time.RFC3339),
	}
}

func toDonationDTO(d vault.Donation) DonationDTO {
	return DonationDTO{
		ID:            string(d.ID),
		DonorEmail:    d.DonorEmail,
		WalletAddress: d.WalletAddress,
		Amount:        d.Amount.String(),
		Remaining:     d.Remaining.String(),
		TxHash:        d.TxHash,
		BlockOrdinal:  d.BlockOrdinal,
		CreatedAt:     d.CreatedAt.Format(time.RFC3339Nano),
	}
}

func toReimbursementDTO(r vault.Reimbursement) ReimbursementDTO {
	return ReimbursementDTO{
		ID:                string(r.ID),
		Amount:            r.Amount.String(),
		TxHash:            r.TxHash,
		BlockOrdinal:      r.BlockOrdinal,
		Invoice:           r.Invoice,
		AllocationApplied: r.AllocationApplied,
		CreatedAt:         r.CreatedAt.Format(time.RFC3339Nano),
	}
}

func toAllocationResultDTO(result vault.AllocationResult) AllocationResultDTO {
	entries := make([]AllocationEntryDTO, len(result.Entries))
	for i, e := range result.Entries {
		entries[i] = AllocationEntryDTO{
			DonationID:      string(e.DonationID),
			DonorEmail:      e.DonorEmail,
			WalletAddress:   e.WalletAddress,
			OriginalAmount:  e.OriginalAmount.String(),
			AmountSpent:     e.AmountSpent.String(),
			PercentageSpent: e.PercentageSpent,
		}
	}
	return AllocationResultDTO{
		Requested:      result.Requested.String(),
		TotalAllocated: result.TotalAllocated.String(),
		Shortfall:      result.Shortfall.String(),
		Satisfied:      result.IsSatisfied,
		Entries:        entries,
	}
}
