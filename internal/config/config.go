package config

import (
	"log/slog"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr        string   `env:"HTTP_ADDR" env-default:":8080"`
	PostgresDSN     string   `env:"POSTGRES_DSN" env-default:"host=localhost user=postgres password=postgres dbname=payments sslmode=disable"`
	RedisAddr       string   `env:"REDIS_ADDR" env-default:"localhost:6379"`
	KafkaBrokers    []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	JWTSecret       string   `env:"JWT_SECRET" env-default:"supersecret"`
	BillplzBaseURL  string   `env:"BILLPLZ_API_URL" env-default:"https://www.billplz-sandbox.com"`
	CallbackBaseURL string   `env:"CALLBACK_BASE_URL" env-default:"http://localhost:8080"`
	MigrationsPath  string   `env:"MIGRATIONS_PATH" env-default:"migrations"`
	OTLPEndpoint    string   `env:"OTLP_ENDPOINT" env-default:"localhost:4318"`
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("failed to read config from environment", "error", err)
		panic(err)
	}

	slog.Info("config loaded",
		"http_addr", cfg.HTTPAddr,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"billplz_api_url", cfg.BillplzBaseURL)
	return &cfg
}
