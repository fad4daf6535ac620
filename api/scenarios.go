/*
scenarios.go - Demo scenario loaders

PURPOSE:
  Seeds the vault with known donor/donation data so the allocation flow
  can be exercised end to end without a chain event source. Loading is
  idempotent: donation IDs derive from their fake tx hashes, so reloading
  a scenario never double-counts.
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/warp/charity-vault/vault"
)

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ID string `json:"id"`
}

type scenarioDonation struct {
	wallet  string
	amount  string
	txHash  string
	ordinal uint64
}

type scenario struct {
	ScenarioDTO
	donors    map[string]string // email -> wallet
	donations []scenarioDonation
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "two-donor-pool",
			Name:        "Two-donor pool",
			Description: "Alice donates 2 ETH, then Bob donates 3 ETH. A 4 ETH reimbursement drains Alice fully and Bob partially.",
		},
		donors: map[string]string{
			"alice@example.com": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			"bob@example.com":   "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		},
		donations: []scenarioDonation{
			{wallet: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", amount: "2", txHash: "0xd01", ordinal: 1},
			{wallet: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", amount: "3", txHash: "0xd02", ordinal: 2},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "many-small-donations",
			Name:        "Many small donations",
			Description: "One donor drips ten 0.1 ETH donations into the pool; good for watching FIFO spillover across many records.",
		},
		donors: map[string]string{
			"carol@example.com": "0xcccccccccccccccccccccccccccccccccccccccc",
		},
		donations: func() []scenarioDonation {
			var ds []scenarioDonation
			for i := uint64(1); i <= 10; i++ {
				ds = append(ds, scenarioDonation{
					wallet:  "0xcccccccccccccccccccccccccccccccccccccccc",
					amount:  "0.1",
					txHash:  "0xdrip",
					ordinal: i,
				})
			}
			return ds
		}(),
	},
}

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scenarios": dtos,
		"current":   h.currentScenario,
	})
}

// LoadScenario seeds the store with a scenario's donors and donations.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	for _, s := range scenarios {
		if s.ID != req.ID {
			continue
		}
		if err := h.loadScenario(r.Context(), s); err != nil {
			writeDomainError(w, "Failed to load scenario", err)
			return
		}
		h.currentScenario = s.ID
		writeJSON(w, http.StatusOK, map[string]any{"loaded": s.ID})
		return
	}

	writeError(w, http.StatusNotFound, "Unknown scenario", nil)
}

func (h *Handler) loadScenario(ctx context.Context, s scenario) error {
	for email, wallet := range s.donors {
		if _, err := h.Recorder.RegisterDonor(ctx, email, wallet); err != nil {
			return err
		}
	}
	for _, d := range s.donations {
		amount, err := vault.ParseAmount(d.amount)
		if err != nil {
			return err
		}
		if _, err := h.Recorder.Record(ctx, d.wallet, amount, d.txHash, d.ordinal); err != nil {
			return err
		}
	}
	return nil
}
