/*
notify.go - Notification intents handed to the external delivery sink

PURPOSE:
  The core does not send email. It produces one NotificationIntent per
  allocation entry ("tell donor X that Y ETH of their donation funded this
  expense") and hands them to an injected Notifier. Delivery, templating
  and retry are the sink's problem.

DEPENDENCY SHAPE:
  Notifier is constructed once at process start and passed into the
  Processor. No lazily-initialized global client anywhere.
*/
package vault

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NotificationIntent is the full payload the delivery sink needs to tell
// one donor about one allocation entry.
type NotificationIntent struct {
	ID            string
	DonorEmail    string
	WalletAddress string

	// How much of this donor's donation the reimbursement consumed.
	AmountSpent     decimal.Decimal
	OriginalAmount  decimal.Decimal
	PercentageSpent float64

	// Context about the reimbursement itself.
	ReimbursementAmount decimal.Decimal
	Invoice             string
	TxHash              string

	CreatedAt time.Time
}

// Notifier consumes notification intents. Implementations must be safe
// for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, intent NotificationIntent) error
}

// NewIntent builds an intent for one allocation entry of a reimbursement.
func NewIntent(r Reimbursement, entry AllocationEntry, now time.Time) NotificationIntent {
	return NotificationIntent{
		ID:                  uuid.NewString(),
		DonorEmail:          entry.DonorEmail,
		WalletAddress:       entry.WalletAddress,
		AmountSpent:         entry.AmountSpent,
		OriginalAmount:      entry.OriginalAmount,
		PercentageSpent:     entry.PercentageSpent,
		ReimbursementAmount: r.Amount,
		Invoice:             r.Invoice,
		TxHash:              r.TxHash,
		CreatedAt:           now,
	}
}

// LogNotifier writes intents to the structured log. Useful as the default
// sink in dev and as the fallback when no delivery provider is wired.
type LogNotifier struct {
	Logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, intent NotificationIntent) error {
	n.Logger.Info("donor notification",
		slog.String("intent_id", intent.ID),
		slog.String("donor", intent.DonorEmail),
		slog.String("amount_spent", intent.AmountSpent.String()),
		slog.String("original_amount", intent.OriginalAmount.String()),
		slog.Float64("percentage_spent", intent.PercentageSpent),
		slog.String("reimbursement_amount", intent.ReimbursementAmount.String()),
		slog.String("tx_hash", intent.TxHash),
		slog.String("invoice", intent.Invoice),
	)
	return nil
}
