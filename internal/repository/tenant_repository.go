package repository

import (
	"context"

	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/models"
)

type TenantRepository interface {
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
}
