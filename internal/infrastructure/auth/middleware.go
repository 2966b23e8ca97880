package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/infrastructure/redis"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// TenantContextKey carries the authenticated tenant slug through the request context.
const TenantContextKey contextKey = "tenant"

// TenantFromContext returns the tenant slug set by TenantMiddleware.
func TenantFromContext(ctx context.Context) (string, bool) {
	slug, ok := ctx.Value(TenantContextKey).(string)
	return slug, ok
}

func TenantMiddleware(redisClient redis.RedisClient, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "authorization header missing", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}

			tokenStr := parts[1]
			token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
				}
				return []byte(jwtSecret), nil
			})

			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			tenant, ok := claims["tenant"].(string)
			if !ok || tenant == "" {
				http.Error(w, "invalid tenant in token", http.StatusUnauthorized)
				return
			}

			// Only the most recently issued token per tenant is honored.
			redisKey := fmt.Sprintf("tenant:%s:token", tenant)
			storedToken, err := redisClient.Get(r.Context(), redisKey)
			if err != nil || storedToken != tokenStr {
				slog.Error("invalid or revoked token", "tenant", tenant, "error", err)
				http.Error(w, "invalid or revoked token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), TenantContextKey, tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
