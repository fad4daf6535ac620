/*
handlers.go - HTTP API handlers for the charity vault

PURPOSE:
  Exposes the vault core over REST. Handles HTTP request/response and JSON
  shape; all domain rules live in the vault package.

ENDPOINTS:
  Donors:
    GET  /api/donors              List donors
    POST /api/donors              Register donor (email + wallet)
    GET  /api/donors/{email}      Get donor

  Donations:
    GET  /api/donations           List donations, newest first (?email=)
    POST /api/donations           Record donation event

  Reimbursements:
    GET  /api/reimbursements           List reimbursements, newest first
    POST /api/reimbursements           Record + allocate + notify
    POST /api/reimbursements/{id}/reapply  Recovery: apply a recorded,
                                           never-applied allocation

  Allocations:
    POST /api/allocations/preview  Dry-run allocation, no writes

  Summary:
    GET  /api/summary              Vault totals

ERROR HANDLING:
  Every rejection carries a machine-classifiable kind in the vault error
  plus a human-readable message here:
  - 400: invalid input (amount/email/wallet shape)
  - 404: unknown donor/reimbursement
  - 409: unregistered wallet, already-processed reimbursement,
         concurrent-modification guard
  - 500: storage failures

SEE ALSO:
  - dto.go: request/response shapes
  - server.go: routing and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/charity-vault/vault"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     vault.Store
	Recorder  *vault.Recorder
	Processor *vault.Processor
	Logger    *slog.Logger

	// Track currently loaded demo scenario
	currentScenario string
}

// NewHandler creates a handler wired to the given store and collaborators.
func NewHandler(store vault.Store, recorder *vault.Recorder, processor *vault.Processor, logger *slog.Logger) *Handler {
	return &Handler{
		Store:     store,
		Recorder:  recorder,
		Processor: processor,
		Logger:    logger,
	}
}

// =============================================================================
// DONOR HANDLERS
// =============================================================================

// RegisterDonor registers (or re-registers) an email <-> wallet pair.
func (h *Handler) RegisterDonor(w http.ResponseWriter, r *http.Request) {
	var req RegisterDonorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	donor, err := h.Recorder.RegisterDonor(r.Context(), req.Email, req.WalletAddress)
	if err != nil {
		writeDomainError(w, "Failed to register donor", err)
		return
	}

	writeJSON(w, http.StatusCreated, toDonorDTO(donor))
}

// ListDonors returns all registered donors.
func (h *Handler) ListDonors(w http.ResponseWriter, r *http.Request) {
	donors, err := h.Store.ListDonors(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list donors", err)
		return
	}

	dtos := make([]DonorDTO, len(donors))
	for i, d := range donors {
		dtos[i] = toDonorDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDonor returns one donor by email.
func (h *Handler) GetDonor(w http.ResponseWriter, r *http.Request) {
	email := vault.NormalizeEmail(chi.URLParam(r, "email"))

	donor, err := h.Store.GetDonorByEmail(r.Context(), email)
	if err != nil {
		writeDomainError(w, "Failed to get donor", err)
		return
	}
	writeJSON(w, http.StatusOK, toDonorDTO(donor))
}

// =============================================================================
// DONATION HANDLERS
// =============================================================================

// RecordDonation ingests one donation event from the chain event source.
func (h *Handler) RecordDonation(w http.ResponseWriter, r *http.Request) {
	var req RecordDonationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := vault.ParseAmount(req.Amount)
	if err != nil {
		writeDomainError(w, "Failed to record donation", err)
		return
	}

	donation, err := h.Recorder.Record(r.Context(), req.WalletAddress, amount, req.TxHash, req.BlockOrdinal)
	if err != nil {
		writeDomainError(w, "Failed to record donation", err)
		return
	}

	writeJSON(w, http.StatusCreated, toDonationDTO(donation))
}

// ListDonations returns donations newest-first, optionally filtered by
// ?email=.
func (h *Handler) ListDonations(w http.ResponseWriter, r *http.Request) {
	donations, err := h.Processor.Donations(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeDomainError(w, "Failed to list donations", err)
		return
	}

	dtos := make([]DonationDTO, len(donations))
	for i, d := range donations {
		dtos[i] = toDonationDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REIMBURSEMENT HANDLERS
// =============================================================================

// ProcessReimbursement records a reimbursement, runs FIFO allocation, and
// reports the entries plus how many donor notifications were emitted.
func (h *Handler) ProcessReimbursement(w http.ResponseWriter, r *http.Request) {
	var req ProcessReimbursementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := vault.ParseAmount(req.Amount)
	if err != nil {
		writeDomainError(w, "Failed to process reimbursement", err)
		return
	}

	reimbursement, result, intents, err := h.Processor.Process(r.Context(), amount, req.TxHash, req.BlockOrdinal, req.Invoice)
	if err != nil {
		writeDomainError(w, "Failed to process reimbursement", err)
		return
	}

	writeJSON(w, http.StatusCreated, ProcessReimbursementResponse{
		Reimbursement: toReimbursementDTO(reimbursement),
		Allocation:    toAllocationResultDTO(result),
		Notifications: len(intents),
	})
}

// ReapplyReimbursement re-runs allocation for a recorded reimbursement
// whose allocation never got applied (crash between record and apply).
func (h *Handler) ReapplyReimbursement(w http.ResponseWriter, r *http.Request) {
	id := vault.ReimbursementID(chi.URLParam(r, "id"))

	reimbursement, result, intents, err := h.Processor.Reapply(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to reapply reimbursement", err)
		return
	}

	writeJSON(w, http.StatusOK, ProcessReimbursementResponse{
		Reimbursement: toReimbursementDTO(reimbursement),
		Allocation:    toAllocationResultDTO(result),
		Notifications: len(intents),
	})
}

// ListReimbursements returns reimbursements newest-first.
func (h *Handler) ListReimbursements(w http.ResponseWriter, r *http.Request) {
	rs, err := h.Processor.Reimbursements(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list reimbursements", err)
		return
	}

	dtos := make([]ReimbursementDTO, len(rs))
	for i, rec := range rs {
		dtos[i] = toReimbursementDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ALLOCATION PREVIEW + SUMMARY
// =============================================================================

// PreviewAllocation answers "what would happen" without mutating state.
func (h *Handler) PreviewAllocation(w http.ResponseWriter, r *http.Request) {
	var req PreviewAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := vault.ParseAmount(req.Amount)
	if err != nil {
		writeDomainError(w, "Failed to preview allocation", err)
		return
	}

	result, err := h.Processor.Preview(r.Context(), amount)
	if err != nil {
		writeDomainError(w, "Failed to preview allocation", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationResultDTO(result))
}

// GetSummary returns vault-wide totals.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Processor.Summarize(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to summarize vault", err)
		return
	}

	writeJSON(w, http.StatusOK, SummaryDTO{
		TotalDonated:   summary.TotalDonated.String(),
		TotalRemaining: summary.TotalRemaining.String(),
		TotalSpent:     summary.TotalSpent.String(),
		DonationCount:  summary.DonationCount,
		DonorCount:     summary.DonorCount,
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the vault error taxonomy to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, vault.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, message, err)
	case vault.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, vault.ErrUnregisteredWallet),
		errors.Is(err, vault.ErrAlreadyProcessed),
		errors.Is(err, vault.ErrConcurrentModification):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
