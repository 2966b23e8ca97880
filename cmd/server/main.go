package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/api"
	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/config"
	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/handler"
	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/infrastructure/auth"
	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/infrastructure/billplz"
	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/infrastructure/kafka"
	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/infrastructure/migrate"
	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/infrastructure/redis"
	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/observability"
	core "github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/repository/postgres"
	service "github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/services"
	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	shutdown, _ := observability.Setup("billplz-payment-api", cfg.OTLPEndpoint)
	defer shutdown(context.Background())

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	if err := migrate.RunMigrations(db, cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	transactionRepo := core.NewPostgresTransactionRepository(db)
	tenantRepo := core.NewPostgresTenantRepository(db)
	redisClient := redis.NewClient(cfg.RedisAddr)
	defer redisClient.Close()
	kafkaProducer := kafka.NewProducer(cfg.KafkaBrokers)
	defer kafkaProducer.Close()
	gateway := billplz.NewClient(cfg.BillplzBaseURL)

	svc := service.NewPaymentService(transactionRepo, tenantRepo, gateway, redisClient, kafkaProducer, cfg.CallbackBaseURL)
	tokenService := auth.NewTokenService(tenantRepo, redisClient, cfg.JWTSecret)

	h := handler.NewHandler(svc, tokenService)
	router := api.SetupRouter(h, redisClient, cfg.JWTSecret)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		log.Printf("Starting server on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
