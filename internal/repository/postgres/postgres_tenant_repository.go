package repository

import (
	"context"
	"database/sql"
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
)

type PostgresTenantRepository struct {
	db *sql.DB
}

func NewPostgresTenantRepository(db *sql.DB) *PostgresTenantRepository {
	return &PostgresTenantRepository{db: db}
}

func (r *PostgresTenantRepository) GetBySlug(ctx context.Context, slug string) (tenant *models.Tenant, err error) {
	tracer := otel.Tracer("tenant-repository")
	ctx, span := tracer.Start(ctx, "GetTenantBySlug")
	span.SetAttributes(attribute.String("tenant", slug))
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("GetTenantBySlug", status).Inc()
		observability.RepositoryDuration.WithLabelValues("GetTenantBySlug").Observe(time.Since(start).Seconds())
	}()

	var t models.Tenant
	query := `SELECT slug, name, billplz_api_key, collection_id, webhook_secret, api_key_hash, created_at
		FROM tenants WHERE slug = $1`
	err = r.db.QueryRowContext(ctx, query, slug).Scan(
		&t.Slug, &t.Name, &t.BillplzAPIKey, &t.CollectionID, &t.WebhookSecret, &t.APIKeyHash, &t.CreatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		slog.Warn("tenant not found", "method", "GetBySlug", "tenant", slug)
		return nil, pkgerrors.ErrTenantNotFound
	}
	if err != nil {
		slog.Error("failed to get tenant", "method", "GetBySlug", "tenant", slug, "error", err)
		return nil, fmt.Errorf("%w: failed to get tenant: %v", pkgerrors.ErrStoreUnavailable, err)
	}

	return &t, nil
}
