/*
Package sqlite provides the SQLite-backed implementation of vault.Store.

PURPOSE:
  Durable keyed storage for the three ledger collections (donors,
  donations, reimbursements). The same patterns apply to PostgreSQL;
  only minor SQL dialect differences.

KEY TABLES:
  donors          email -> wallet registration, overwritten in place
  donations       the pooled ledger; remaining is the only mutable column
  reimbursements  expense records with the allocation_applied guard

MUTATION DISCIPLINE:
  The only UPDATE statements in this file are the two the domain allows:
  decrementing donations.remaining and flipping
  reimbursements.allocation_applied - both inside ApplyAllocation's
  transaction. There are no DELETE statements at all.

CONCURRENCY:
  ApplyAllocation runs in a single database transaction with per-donation
  guards: a decrement only lands if remaining still covers the drawn
  amount, otherwise the whole batch rolls back with
  vault.ErrConcurrentModification. Combined with the Processor's
  single-writer mutex this closes the read-modify-write race even across
  processes sharing the database file.

WAL MODE:
  Opened with WAL so readers don't block and crash recovery is sane.

AMOUNT STORAGE:
  Amounts are stored as decimal strings (TEXT), never REAL, and all
  arithmetic happens in Go via shopspring/decimal. SQLite never does math
  on money here.

USAGE:
  store, err := sqlite.New("./data/vault.db")   // ":memory:" for tests
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/charity-vault/vault"
)

// Store implements vault.Store on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; a pooled second
	// connection would see an empty schema.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS donors (
		email TEXT PRIMARY KEY,
		wallet_address TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS donations (
		id TEXT PRIMARY KEY,
		donor_email TEXT NOT NULL,
		wallet_address TEXT NOT NULL,
		amount TEXT NOT NULL,
		remaining TEXT NOT NULL,
		tx_hash TEXT NOT NULL,
		block_ordinal INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_donations_donor_email
		ON donations(donor_email);
	CREATE INDEX IF NOT EXISTS idx_donations_created_at
		ON donations(created_at);

	CREATE TABLE IF NOT EXISTS reimbursements (
		id TEXT PRIMARY KEY,
		amount TEXT NOT NULL,
		tx_hash TEXT NOT NULL,
		block_ordinal INTEGER NOT NULL,
		invoice TEXT,
		allocation_applied INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reimbursements_created_at
		ON reimbursements(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DONORS
// =============================================================================

func (s *Store) SaveDonor(ctx context.Context, donor vault.Donor) error {
	query := `
		INSERT INTO donors (email, wallet_address, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET wallet_address = excluded.wallet_address
	`
	_, err := s.db.ExecContext(ctx, query,
		donor.Email,
		donor.WalletAddress,
		donor.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &vault.ValidationError{
				Field:  "walletAddress",
				Reason: "already registered to another donor",
			}
		}
		return &vault.StorageError{Op: "save donor", Err: err}
	}
	return nil
}

func (s *Store) GetDonorByEmail(ctx context.Context, email string) (vault.Donor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT email, wallet_address, created_at FROM donors WHERE email = ?`, email)
	return scanDonorRow(row, "get donor by email")
}

func (s *Store) GetDonorByWallet(ctx context.Context, wallet string) (vault.Donor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT email, wallet_address, created_at FROM donors WHERE wallet_address = ?`, wallet)
	return scanDonorRow(row, "get donor by wallet")
}

func (s *Store) ListDonors(ctx context.Context) ([]vault.Donor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT email, wallet_address, created_at FROM donors`)
	if err != nil {
		return nil, &vault.StorageError{Op: "list donors", Err: err}
	}
	defer rows.Close()

	var donors []vault.Donor
	for rows.Next() {
		var (
			donor     vault.Donor
			createdAt string
		)
		if err := rows.Scan(&donor.Email, &donor.WalletAddress, &createdAt); err != nil {
			return nil, &vault.StorageError{Op: "scan donor", Err: err}
		}
		donor.CreatedAt = parseTime(createdAt)
		donors = append(donors, donor)
	}
	return donors, rows.Err()
}

func scanDonorRow(row *sql.Row, op string) (vault.Donor, error) {
	var (
		donor     vault.Donor
		createdAt string
	)
	err := row.Scan(&donor.Email, &donor.WalletAddress, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return vault.Donor{}, vault.ErrNotFound
	}
	if err != nil {
		return vault.Donor{}, &vault.StorageError{Op: op, Err: err}
	}
	donor.CreatedAt = parseTime(createdAt)
	return donor, nil
}

// =============================================================================
// DONATIONS
// =============================================================================

const donationColumns = `id, donor_email, wallet_address, amount, remaining, tx_hash, block_ordinal, created_at`

func (s *Store) PutDonation(ctx context.Context, d vault.Donation) error {
	query := `
		INSERT INTO donations
		(` + donationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID,
		d.DonorEmail,
		d.WalletAddress,
		d.Amount.String(),
		d.Remaining.String(),
		d.TxHash,
		d.BlockOrdinal,
		d.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &vault.ValidationError{Field: "donation", Reason: "duplicate id"}
		}
		return &vault.StorageError{Op: "put donation", Err: err}
	}
	return nil
}

func (s *Store) GetDonation(ctx context.Context, id vault.DonationID) (vault.Donation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+donationColumns+` FROM donations WHERE id = ?`, id)
	if err != nil {
		return vault.Donation{}, &vault.StorageError{Op: "get donation", Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return vault.Donation{}, &vault.StorageError{Op: "get donation", Err: err}
		}
		return vault.Donation{}, vault.ErrNotFound
	}
	return scanDonation(rows)
}

func (s *Store) ListDonations(ctx context.Context) ([]vault.Donation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+donationColumns+` FROM donations`)
	if err != nil {
		return nil, &vault.StorageError{Op: "list donations", Err: err}
	}
	defer rows.Close()

	var donations []vault.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		donations = append(donations, d)
	}
	return donations, rows.Err()
}

func scanDonation(rows *sql.Rows) (vault.Donation, error) {
	var (
		d         vault.Donation
		amount    string
		remaining string
		createdAt string
	)
	err := rows.Scan(
		&d.ID, &d.DonorEmail, &d.WalletAddress,
		&amount, &remaining, &d.TxHash, &d.BlockOrdinal, &createdAt,
	)
	if err != nil {
		return d, &vault.StorageError{Op: "scan donation", Err: err}
	}

	d.Amount = mustDecimal(amount)
	d.Remaining = mustDecimal(remaining)
	d.CreatedAt = parseTime(createdAt)
	return d, nil
}

// =============================================================================
// REIMBURSEMENTS
// =============================================================================

const reimbursementColumns = `id, amount, tx_hash, block_ordinal, invoice, allocation_applied, created_at`

func (s *Store) PutReimbursement(ctx context.Context, r vault.Reimbursement) error {
	query := `
		INSERT INTO reimbursements
		(` + reimbursementColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.Amount.String(),
		r.TxHash,
		r.BlockOrdinal,
		r.Invoice,
		boolToInt(r.AllocationApplied),
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &vault.ValidationError{Field: "reimbursement", Reason: "duplicate id"}
		}
		return &vault.StorageError{Op: "put reimbursement", Err: err}
	}
	return nil
}

func (s *Store) GetReimbursement(ctx context.Context, id vault.ReimbursementID) (vault.Reimbursement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reimbursementColumns+` FROM reimbursements WHERE id = ?`, id)
	if err != nil {
		return vault.Reimbursement{}, &vault.StorageError{Op: "get reimbursement", Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return vault.Reimbursement{}, &vault.StorageError{Op: "get reimbursement", Err: err}
		}
		return vault.Reimbursement{}, vault.ErrNotFound
	}
	return scanReimbursement(rows)
}

func (s *Store) ListReimbursements(ctx context.Context) ([]vault.Reimbursement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reimbursementColumns+` FROM reimbursements`)
	if err != nil {
		return nil, &vault.StorageError{Op: "list reimbursements", Err: err}
	}
	defer rows.Close()

	var rs []vault.Reimbursement
	for rows.Next() {
		r, err := scanReimbursement(rows)
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return rs, rows.Err()
}

func scanReimbursement(rows *sql.Rows) (vault.Reimbursement, error) {
	var (
		r         vault.Reimbursement
		amount    string
		invoice   sql.NullString
		applied   int
		createdAt string
	)
	err := rows.Scan(&r.ID, &amount, &r.TxHash, &r.BlockOrdinal, &invoice, &applied, &createdAt)
	if err != nil {
		return r, &vault.StorageError{Op: "scan reimbursement", Err: err}
	}

	r.Amount = mustDecimal(amount)
	r.Invoice = invoice.String
	r.AllocationApplied = applied != 0
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}

// =============================================================================
// ALLOCATION APPLY - The one multi-record write
// =============================================================================

// ApplyAllocation decrements remaining for every touched donation and
// marks the reimbursement applied, all inside one transaction.
//
// Each decrement re-reads remaining inside the transaction and only lands
// if it still covers the drawn amount; any guard failure rolls the whole
// batch back. SQLite's serialized writer makes the read-check-write inside
// the transaction safe against other connections.
func (s *Store) ApplyAllocation(ctx context.Context, id vault.ReimbursementID, entries []vault.AllocationEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &vault.StorageError{Op: "begin apply allocation", Err: err}
	}
	defer tx.Rollback()

	// Claim the reimbursement first: applied must flip 0 -> 1 exactly once.
	res, err := tx.ExecContext(ctx,
		`UPDATE reimbursements SET allocation_applied = 1 WHERE id = ? AND allocation_applied = 0`, id)
	if err != nil {
		return &vault.StorageError{Op: "mark reimbursement applied", Err: err}
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return &vault.StorageError{Op: "mark reimbursement applied", Err: err}
	}
	if claimed == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM reimbursements WHERE id = ?`, id).Scan(&exists); err != nil {
			return &vault.StorageError{Op: "check reimbursement", Err: err}
		}
		if exists == 0 {
			return vault.ErrNotFound
		}
		return vault.ErrAlreadyProcessed
	}

	for _, e := range entries {
		var remainingStr string
		err := tx.QueryRowContext(ctx,
			`SELECT remaining FROM donations WHERE id = ?`, e.DonationID).Scan(&remainingStr)
		if errors.Is(err, sql.ErrNoRows) {
			return vault.ErrNotFound
		}
		if err != nil {
			return &vault.StorageError{Op: "read donation remaining", Err: err}
		}

		remaining := mustDecimal(remainingStr)
		if remaining.LessThan(e.AmountSpent) {
			return vault.ErrConcurrentModification
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE donations SET remaining = ? WHERE id = ?`,
			remaining.Sub(e.AmountSpent).String(), e.DonationID)
		if err != nil {
			return &vault.StorageError{Op: "decrement donation remaining", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &vault.StorageError{Op: "commit apply allocation", Err: err}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
