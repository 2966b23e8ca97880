package repository_test

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	repository "github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/repository/postgres"
	pkgerrors "github.com/MyGovHub-Goodbye-World/billplz-payment-api/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestPostgresTenantRepository_GetBySlug(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresTenantRepository(db)
	ctx := context.Background()

	columns := []string{"slug", "name", "billplz_api_key", "collection_id", "webhook_secret", "api_key_hash", "created_at"}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM tenants WHERE slug = $1`)).
			WithArgs("licensing").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				"licensing", "Licensing Portal", "api-key", "coll-1", "whsec", "$2a$10$hash", time.Now(),
			))

		tenant, err := repo.GetBySlug(ctx, "licensing")
		assert.NoError(t, err)
		assert.Equal(t, "licensing", tenant.Slug)
		assert.Equal(t, "coll-1", tenant.CollectionID)
		assert.Equal(t, "whsec", tenant.WebhookSecret)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM tenants WHERE slug = $1`)).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(columns))

		tenant, err := repo.GetBySlug(ctx, "ghost")
		assert.Nil(t, tenant)
		assert.ErrorIs(t, err, pkgerrors.ErrTenantNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM tenants WHERE slug = $1`)).
			WithArgs("licensing").
			WillReturnError(fmt.Errorf("connection refused"))

		tenant, err := repo.GetBySlug(ctx, "licensing")
		assert.Nil(t, tenant)
		assert.ErrorIs(t, err, pkgerrors.ErrStoreUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
