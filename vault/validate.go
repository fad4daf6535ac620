// validate.go - Input validation at the core's boundary.
//
// All validation happens here, before any storage mutation. A rejected
// input never leaves partial writes behind.
package vault

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// local@domain shape. Deliberately loose: the notification sink owns
	// actual deliverability.
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	// 0x-prefixed, 40 hex characters.
	walletRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// NormalizeEmail lower-cases and trims an email for use as a key.
// Emails are case-insensitive identifiers in this system.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeWallet lower-cases and trims a wallet address for use as a key.
func NormalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

// ValidateEmail checks the local@domain shape.
func ValidateEmail(email string) error {
	if !emailRe.MatchString(NormalizeEmail(email)) {
		return &ValidationError{Field: "email", Reason: "must be local@domain"}
	}
	return nil
}

// ValidateWallet checks the 0x + 40 hex characters shape.
func ValidateWallet(wallet string) error {
	if !walletRe.MatchString(strings.TrimSpace(wallet)) {
		return &ValidationError{Field: "walletAddress", Reason: "must be 0x followed by 40 hex characters"}
	}
	return nil
}

// ParseAmount parses a decimal string and requires it to be positive.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "not a parseable decimal"}
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// ValidateAmount requires a strictly positive amount.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return nil
}

// ValidateTxHash requires a non-empty transaction reference.
func ValidateTxHash(txHash string) error {
	if strings.TrimSpace(txHash) == "" {
		return &ValidationError{Field: "txHash", Reason: "must not be empty"}
	}
	return nil
}
