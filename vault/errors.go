/*
errors.go - Centralized error types for the vault core

PURPOSE:
  One place for the whole error taxonomy. Every failure the core can
  produce classifies into one of the sentinels below, so callers (the HTTP
  layer in particular) can map errors to behavior without string matching.

ERROR CATEGORIES:
  1. Input errors    - malformed amount/email/wallet, rejected pre-write
  2. Lookup errors   - missing donor/donation/reimbursement
  3. Storage errors  - the ledger store could not complete an operation
  4. Conflict errors - idempotency and concurrency guards firing

USAGE:
  if errors.Is(err, vault.ErrUnregisteredWallet) { ... }
*/
package vault

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned for malformed or non-positive amounts and
	// malformed email/wallet formats. Always detected before any write.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnregisteredWallet is returned when a donation references a wallet
	// with no Donor record. Registration must happen first.
	ErrUnregisteredWallet = errors.New("wallet not registered")

	// ErrNotFound is returned when a queried record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable is returned when the ledger store could not
	// complete a read or write. Callers may retry with backoff; the core
	// does not retry internally.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrAlreadyProcessed is returned when a reimbursement's allocation has
	// already been applied. Re-applying would double-spend donations.
	ErrAlreadyProcessed = errors.New("reimbursement already processed")

	// ErrConcurrentModification is returned when a guarded balance update
	// detects that a donation's remaining moved underneath it.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which field failed validation and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// StorageError wraps a backend failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return ErrStorageUnavailable
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or a state conflict the client can resolve.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUnregisteredWallet) ||
		errors.Is(err, ErrAlreadyProcessed)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrConcurrentModification)
}
