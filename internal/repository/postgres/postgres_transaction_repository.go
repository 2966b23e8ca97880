package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/infrastructure/observability"
	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/models"
	pkgerrors "github.com/MyGovHub-Goodbye-World/billplz-payment-api/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type PostgresTransactionRepository struct {
	db *sql.DB
}

func NewPostgresTransactionRepository(db *sql.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

func (r *PostgresTransactionRepository) instrument(ctx context.Context, method string, errp *error) (context.Context, func()) {
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, method)
	start := time.Now()
	return ctx, func() {
		status := "success"
		if *errp != nil {
			status = "error"
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		observability.RepositoryCalls.WithLabelValues(method, status).Inc()
		observability.RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		span.End()
	}
}

func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *models.Transaction) (err error) {
	ctx, done := r.instrument(ctx, "CreateTransaction", &err)
	defer done()

	if tx == nil {
		err = pkgerrors.ErrNilTransaction
		slog.Error("failed to create transaction", "method", "Create", "error", err)
		return err
	}

	if !tx.Status.Valid() {
		err = pkgerrors.ErrInvalidTransactionStatus
		slog.Error("invalid transaction status", "method", "Create", "status", tx.Status, "error", err)
		return err
	}

	if tx.Amount <= 0 {
		err = fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidInput)
		slog.Error("amount must be positive", "method", "Create", "amount", tx.Amount, "error", err)
		return err
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("transaction_id", tx.ID),
		attribute.String("tenant", tx.Tenant),
		attribute.Int64("amount", tx.Amount),
		attribute.String("status", string(tx.Status)),
	)

	metadata, err := json.Marshal(tx.Metadata)
	if err != nil {
		slog.Error("failed to marshal metadata", "method", "Create", "id", tx.ID, "error", err)
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `INSERT INTO transactions (id, tenant, status, amount, description, email, name, redirect_url, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query,
		tx.ID, tx.Tenant, tx.Status, tx.Amount, tx.Description, tx.Email, tx.Name, tx.RedirectURL, metadata,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		slog.Error("failed to create transaction", "method", "Create", "id", tx.ID, "tenant", tx.Tenant, "error", err)
		return fmt.Errorf("%w: failed to create transaction: %v", pkgerrors.ErrStoreUnavailable, err)
	}

	slog.Info("transaction created", "method", "Create", "id", tx.ID, "tenant", tx.Tenant, "amount", tx.Amount, "status", tx.Status)
	return nil
}

func (r *PostgresTransactionRepository) GetByID(ctx context.Context, id string) (tx *models.Transaction, err error) {
	ctx, done := r.instrument(ctx, "GetTransactionByID", &err)
	defer done()

	query := `SELECT id, tenant, status, amount, description, email, name, redirect_url, metadata,
		external_bill_id, payment_url, failure_reason, webhook_received_count, created_at, updated_at
		FROM transactions WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

func (r *PostgresTransactionRepository) GetByExternalBillID(ctx context.Context, billID string) (tx *models.Transaction, err error) {
	ctx, done := r.instrument(ctx, "GetTransactionByExternalBillID", &err)
	defer done()

	query := `SELECT id, tenant, status, amount, description, email, name, redirect_url, metadata,
		external_bill_id, payment_url, failure_reason, webhook_received_count, created_at, updated_at
		FROM transactions WHERE external_bill_id = $1`
	return r.scanOne(ctx, query, billID)
}

func (r *PostgresTransactionRepository) scanOne(ctx context.Context, query string, arg any) (*models.Transaction, error) {
	var tx models.Transaction
	var billID, paymentURL, failureReason sql.NullString
	var metadata []byte
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&tx.ID, &tx.Tenant, &tx.Status, &tx.Amount, &tx.Description, &tx.Email, &tx.Name, &tx.RedirectURL,
		&metadata, &billID, &paymentURL, &failureReason, &tx.WebhookReceivedCount, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		slog.Warn("transaction not found", "method", "scanOne", "arg", arg)
		return nil, pkgerrors.ErrTransactionNotFound
	}
	if err != nil {
		slog.Error("failed to get transaction", "method", "scanOne", "arg", arg, "error", err)
		return nil, fmt.Errorf("%w: failed to get transaction: %v", pkgerrors.ErrStoreUnavailable, err)
	}

	tx.ExternalBillID = billID.String
	tx.PaymentURL = paymentURL.String
	tx.FailureReason = failureReason.String
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
			slog.Error("failed to unmarshal metadata", "method", "scanOne", "id", tx.ID, "error", err)
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &tx, nil
}

func (r *PostgresTransactionRepository) AttachBill(ctx context.Context, id, billID, paymentURL string) (err error) {
	ctx, done := r.instrument(ctx, "AttachBill", &err)
	defer done()

	if billID == "" || paymentURL == "" {
		err = fmt.Errorf("%w: bill id and payment url are required", pkgerrors.ErrInvalidInput)
		slog.Error("missing bill reference", "method", "AttachBill", "id", id, "error", err)
		return err
	}

	// The bill reference is write-once: the guard on NULL keeps a retry or a
	// racing writer from overwriting an already attached bill.
	query := `UPDATE transactions
		SET external_bill_id = $2, payment_url = $3, updated_at = now()
		WHERE id = $1 AND external_bill_id IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, billID, paymentURL)
	if err != nil {
		slog.Error("failed to attach bill", "method", "AttachBill", "id", id, "bill_id", billID, "error", err)
		return fmt.Errorf("%w: failed to attach bill: %v", pkgerrors.ErrStoreUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to attach bill: %v", pkgerrors.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		err = pkgerrors.ErrBillAlreadyAttached
		slog.Error("bill reference already set", "method", "AttachBill", "id", id, "bill_id", billID)
		return err
	}

	slog.Info("bill attached", "method", "AttachBill", "id", id, "bill_id", billID)
	return nil
}

func (r *PostgresTransactionRepository) MarkFailed(ctx context.Context, id, reason string) (err error) {
	ctx, done := r.instrument(ctx, "MarkFailed", &err)
	defer done()

	query := `UPDATE transactions
		SET status = $2, failure_reason = $3, updated_at = now()
		WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.StatusFailed, reason, models.StatusPending)
	if err != nil {
		slog.Error("failed to mark transaction failed", "method", "MarkFailed", "id", id, "error", err)
		return fmt.Errorf("%w: failed to mark transaction failed: %v", pkgerrors.ErrStoreUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to mark transaction failed: %v", pkgerrors.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		err = pkgerrors.ErrTransactionNotFound
		slog.Error("no pending transaction to fail", "method", "MarkFailed", "id", id)
		return err
	}

	slog.Info("transaction marked failed", "method", "MarkFailed", "id", id, "reason", reason)
	return nil
}

func (r *PostgresTransactionRepository) IncrementWebhookCount(ctx context.Context, id string) (count int32, err error) {
	ctx, done := r.instrument(ctx, "IncrementWebhookCount", &err)
	defer done()

	// Counts every delivery, duplicates included. updated_at is left alone so
	// a redelivered webhook does not look like a state change.
	query := `UPDATE transactions
		SET webhook_received_count = webhook_received_count + 1
		WHERE id = $1
		RETURNING webhook_received_count`
	err = r.db.QueryRowContext(ctx, query, id).Scan(&count)
	if stderrors.Is(err, sql.ErrNoRows) {
		slog.Error("transaction not found", "method", "IncrementWebhookCount", "id", id)
		return 0, pkgerrors.ErrTransactionNotFound
	}
	if err != nil {
		slog.Error("failed to increment webhook count", "method", "IncrementWebhookCount", "id", id, "error", err)
		return 0, fmt.Errorf("%w: failed to increment webhook count: %v", pkgerrors.ErrStoreUnavailable, err)
	}

	slog.Info("webhook delivery recorded", "method", "IncrementWebhookCount", "id", id, "count", count)
	return count, nil
}

func (r *PostgresTransactionRepository) SettleStatus(ctx context.Context, id string, status models.StatusType) (applied bool, err error) {
	ctx, done := r.instrument(ctx, "SettleStatus", &err)
	defer done()

	if !status.Terminal() {
		err = pkgerrors.ErrInvalidTransactionStatus
		slog.Error("settle requires a terminal status", "method", "SettleStatus", "id", id, "status", status, "error", err)
		return false, err
	}

	// Conditional update, not a blind overwrite: two racing webhook
	// deliveries can both reach this point, only one row update wins.
	query := `UPDATE transactions
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, id, status, models.StatusPending)
	if err != nil {
		slog.Error("failed to settle transaction", "method", "SettleStatus", "id", id, "status", status, "error", err)
		return false, fmt.Errorf("%w: failed to settle transaction: %v", pkgerrors.ErrStoreUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to settle transaction: %v", pkgerrors.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		slog.Info("transaction already settled", "method", "SettleStatus", "id", id, "status", status)
		return false, nil
	}

	slog.Info("transaction settled", "method", "SettleStatus", "id", id, "status", status)
	return true, nil
}
