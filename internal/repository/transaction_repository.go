package repository

import (
	"context"

	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/models"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	GetByExternalBillID(ctx context.Context, billID string) (*models.Transaction, error)
	// AttachBill sets the external bill reference exactly once.
	AttachBill(ctx context.Context, id, billID, paymentURL string) error
	// MarkFailed settles a still-pending transaction as failed with a reason.
	MarkFailed(ctx context.Context, id, reason string) error
	// IncrementWebhookCount advances the delivery counter regardless of status.
	IncrementWebhookCount(ctx context.Context, id string) (int32, error)
	// SettleStatus applies a terminal status only if the row is still pending.
	// Returns false when the transition was not applied.
	SettleStatus(ctx context.Context, id string, status models.StatusType) (bool, error)
}
