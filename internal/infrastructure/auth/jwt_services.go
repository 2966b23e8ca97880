package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/infrastructure/redis"
	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/repository"
	pkgerrors "github.com/MyGovHub-Goodbye-World/billplz-payment-api/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = time.Hour

// TokenService exchanges a tenant API key for a short-lived JWT whose
// claims carry the tenant slug.
type TokenService struct {
	tenantRepo  repository.TenantRepository
	redisClient redis.RedisClient
	jwtSecret   string
}

func NewTokenService(tenantRepo repository.TenantRepository, redisClient redis.RedisClient, jwtSecret string) *TokenService {
	return &TokenService{
		tenantRepo:  tenantRepo,
		redisClient: redisClient,
		jwtSecret:   jwtSecret,
	}
}

func (s *TokenService) IssueToken(ctx context.Context, tenantSlug, apiKey string) (string, error) {
	tenant, err := s.tenantRepo.GetBySlug(ctx, tenantSlug)
	if err != nil {
		slog.Error("failed to issue token", "tenant", tenantSlug, "error", err)
		return "", pkgerrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(tenant.APIKeyHash), []byte(apiKey)); err != nil {
		slog.Error("invalid api key", "tenant", tenantSlug)
		return "", pkgerrors.ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tenant": tenant.Slug,
		"exp":    time.Now().Add(tokenTTL).Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		slog.Error("failed to generate JWT", "tenant", tenantSlug, "error", err)
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.redisClient.Set(ctx, fmt.Sprintf("tenant:%s:token", tenant.Slug), tokenString, tokenTTL); err != nil {
		slog.Error("failed to cache JWT", "tenant", tenant.Slug, "error", err)
	}

	slog.Info("token issued", "tenant", tenant.Slug)
	return tokenString, nil
}
