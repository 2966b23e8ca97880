package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	stderrors "errors"

	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/infrastructure/billplz"
	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/infrastructure/kafka"
	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/infrastructure/observability"
	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/infrastructure/redis"
	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/models"
	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/repository"
	pkgerrors "github.com/MyGovHub-Goodbye-World/billplz-payment-api/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const paymentEventsTopic = "payment-events"

type PaymentService interface {
	CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*models.Transaction, error)
	HandleWebhook(ctx context.Context, tenantSlug string, rawPayload []byte, signature string) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
}

type CreatePaymentRequest struct {
	Tenant      string            `json:"-" validate:"required"`
	Amount      int64             `json:"amount" validate:"required,gt=0"`
	Description string            `json:"description" validate:"required"`
	Email       string            `json:"email" validate:"required,email"`
	Name        string            `json:"name" validate:"required"`
	RedirectURL string            `json:"redirect_url" validate:"omitempty,url"`
	Metadata    map[string]string `json:"metadata"`
}

type paymentService struct {
	transactionRepo repository.TransactionRepository
	tenantRepo      repository.TenantRepository
	gateway         billplz.BillGateway
	redisClient     redis.RedisClient
	kafkaProducer   kafka.KafkaProducer
	callbackBaseURL string
	validate        *validator.Validate
}

func NewPaymentService(
	transactionRepo repository.TransactionRepository,
	tenantRepo repository.TenantRepository,
	gateway billplz.BillGateway,
	redisClient redis.RedisClient,
	kafkaProducer kafka.KafkaProducer,
	callbackBaseURL string,
) *paymentService {
	return &paymentService{
		transactionRepo: transactionRepo,
		tenantRepo:      tenantRepo,
		gateway:         gateway,
		redisClient:     redisClient,
		kafkaProducer:   kafkaProducer,
		callbackBaseURL: callbackBaseURL,
		validate:        validator.New(),
	}
}

// CreatePayment persists a pending transaction before touching Billplz, so a
// crash after a successful gateway call can never leave an upstream bill
// with no local record.
func (s *paymentService) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*models.Transaction, error) {
	tracer := otel.Tracer("payment-service")
	ctx, span := tracer.Start(ctx, "CreatePayment")
	defer span.End()

	if req == nil {
		span.SetStatus(codes.Error, "nil request")
		return nil, pkgerrors.ErrInvalidInput
	}
	if err := s.validate.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		slog.Warn("invalid create payment request", "tenant", req.Tenant, "error", err)
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidInput, err)
	}

	span.SetAttributes(
		attribute.String("tenant", req.Tenant),
		attribute.Int64("amount", req.Amount),
	)

	tenant, err := s.tenantRepo.GetBySlug(ctx, req.Tenant)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tenant lookup failed")
		slog.Error("failed to resolve tenant", "tenant", req.Tenant, "error", err)
		return nil, err
	}

	tx := &models.Transaction{
		ID:          uuid.NewString(),
		Tenant:      tenant.Slug,
		Status:      models.StatusPending,
		Amount:      req.Amount,
		Description: req.Description,
		Email:       req.Email,
		Name:        req.Name,
		RedirectURL: req.RedirectURL,
		Metadata:    req.Metadata,
	}
	if err := s.transactionRepo.Create(ctx, tx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction creation failed")
		return nil, err
	}

	bill, err := s.gateway.CreateBill(ctx, billplz.Credentials{
		APIKey:       tenant.BillplzAPIKey,
		CollectionID: tenant.CollectionID,
	}, billplz.CreateBillRequest{
		Amount:      req.Amount,
		Description: req.Description,
		Email:       req.Email,
		Name:        req.Name,
		CallbackURL: s.callbackBaseURL + "/payment/webhook/" + tenant.Slug,
		RedirectURL: req.RedirectURL,
	})
	if err != nil {
		// No webhook will ever arrive for a bill that was never created
		// upstream, so the gateway failure settles the record here. An
		// ambiguous timeout lands here too rather than staying pending
		// forever.
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway call failed")
		if markErr := s.transactionRepo.MarkFailed(ctx, tx.ID, err.Error()); markErr != nil {
			slog.Error("failed to mark transaction failed after gateway error",
				"transaction_id", tx.ID, "gateway_error", err, "error", markErr)
		} else {
			tx.Status = models.StatusFailed
			tx.FailureReason = err.Error()
			s.emitEvent(ctx, "payment_failed", tx)
		}
		return nil, err
	}

	if err := s.transactionRepo.AttachBill(ctx, tx.ID, bill.ID, bill.URL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bill attach failed")
		slog.Error("bill created upstream but attach failed",
			"transaction_id", tx.ID, "bill_id", bill.ID, "error", err)
		return nil, err
	}
	tx.ExternalBillID = bill.ID
	tx.PaymentURL = bill.URL

	s.emitEvent(ctx, "bill_created", tx)
	slog.Info("payment created",
		"transaction_id", tx.ID, "tenant", tenant.Slug, "bill_id", bill.ID, "amount", req.Amount)
	return tx, nil
}

// HandleWebhook applies a verified Billplz webhook to the matching
// transaction. Safe under at-least-once, duplicated, and out-of-order
// delivery: the terminal-state guard and the conditional settle make every
// delivery after the first a no-op.
func (s *paymentService) HandleWebhook(ctx context.Context, tenantSlug string, rawPayload []byte, signature string) error {
	tracer := otel.Tracer("payment-service")
	ctx, span := tracer.Start(ctx, "HandleWebhook")
	span.SetAttributes(attribute.String("tenant", tenantSlug))
	defer span.End()

	// Verification runs before anything else touches state. Rejections are
	// deliberately opaque.
	tenant, err := s.tenantRepo.GetBySlug(ctx, tenantSlug)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tenant not resolvable")
		if !stderrors.Is(err, pkgerrors.ErrTenantNotFound) {
			return err
		}
		slog.Warn("webhook for unknown tenant", "tenant", tenantSlug)
		observability.WebhookDeliveries.WithLabelValues(tenantSlug, "unauthorized").Inc()
		return pkgerrors.ErrInvalidSignature
	}
	if !VerifySignature(tenant.WebhookSecret, rawPayload, signature) {
		span.SetStatus(codes.Error, "signature mismatch")
		slog.Warn("webhook signature rejected", "tenant", tenantSlug)
		observability.WebhookDeliveries.WithLabelValues(tenantSlug, "unauthorized").Inc()
		return pkgerrors.ErrInvalidSignature
	}

	billID, outcome, err := parseWebhookPayload(rawPayload)
	if err != nil {
		span.SetStatus(codes.Error, "payload unparseable")
		slog.Warn("webhook payload rejected", "tenant", tenantSlug, "error", err)
		observability.WebhookDeliveries.WithLabelValues(tenantSlug, "invalid").Inc()
		return err
	}
	span.SetAttributes(attribute.String("bill_id", billID))

	// A webhook must follow a known creation; never create a record from one.
	tx, err := s.transactionRepo.GetByExternalBillID(ctx, billID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction lookup failed")
		if stderrors.Is(err, pkgerrors.ErrTransactionNotFound) {
			observability.WebhookDeliveries.WithLabelValues(tenantSlug, "not_found").Inc()
		}
		return err
	}
	if tx.Tenant != tenantSlug {
		// A bill reference belongs to exactly one tenant; a valid signature
		// from another tenant never reaches its record.
		span.SetStatus(codes.Error, "tenant mismatch")
		slog.Warn("webhook bill belongs to another tenant", "tenant", tenantSlug, "bill_id", billID)
		observability.WebhookDeliveries.WithLabelValues(tenantSlug, "not_found").Inc()
		return pkgerrors.ErrTransactionNotFound
	}

	count, err := s.transactionRepo.IncrementWebhookCount(ctx, tx.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "counter increment failed")
		return err
	}
	if count > 1 {
		slog.Info("webhook redelivery detected",
			"transaction_id", tx.ID, "bill_id", billID, "delivery_count", count)
	}

	if tx.Status.Terminal() {
		// Acknowledge without re-applying: duplicate delivery is not an error.
		slog.Info("webhook for settled transaction acknowledged",
			"transaction_id", tx.ID, "bill_id", billID, "status", tx.Status, "delivery_count", count)
		observability.WebhookDeliveries.WithLabelValues(tenantSlug, "duplicate").Inc()
		return nil
	}

	if !outcome.Terminal() {
		span.SetStatus(codes.Error, "unknown outcome")
		slog.Warn("webhook reported unknown outcome", "tenant", tenantSlug, "bill_id", billID)
		observability.WebhookDeliveries.WithLabelValues(tenantSlug, "invalid").Inc()
		return pkgerrors.ErrInvalidOutcome
	}

	applied, err := s.transactionRepo.SettleStatus(ctx, tx.ID, outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settle failed")
		return err
	}
	if !applied {
		// Lost the race against a concurrent delivery; the transaction is
		// settled either way.
		slog.Info("transaction settled concurrently",
			"transaction_id", tx.ID, "bill_id", billID, "delivery_count", count)
		observability.WebhookDeliveries.WithLabelValues(tenantSlug, "duplicate").Inc()
		return nil
	}

	if err := s.redisClient.Del(ctx, transactionCacheKey(tx.ID)); err != nil {
		slog.Error("failed to invalidate transaction cache", "transaction_id", tx.ID, "error", err)
	}

	tx.Status = outcome
	if outcome == models.StatusPaid {
		s.emitEvent(ctx, "payment_paid", tx)
	} else {
		s.emitEvent(ctx, "payment_failed", tx)
	}
	observability.WebhookDeliveries.WithLabelValues(tenantSlug, "applied").Inc()
	slog.Info("webhook applied",
		"transaction_id", tx.ID, "bill_id", billID, "status", outcome, "delivery_count", count)
	return nil
}

func (s *paymentService) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	tracer := otel.Tracer("payment-service")
	ctx, span := tracer.Start(ctx, "GetTransaction")
	span.SetAttributes(attribute.String("transaction_id", id))
	defer span.End()

	cacheKey := transactionCacheKey(id)
	if cached, err := s.redisClient.Get(ctx, cacheKey); err == nil {
		var cachedTx models.Transaction
		unmarshalErr := json.Unmarshal([]byte(cached), &cachedTx)
		if unmarshalErr == nil {
			return &cachedTx, nil
		}
		slog.Error("failed to unmarshal cached transaction", "transaction_id", id, "error", unmarshalErr)
	} else if !stderrors.Is(err, redis.ErrKeyNotFound) {
		slog.Error("failed to read transaction cache", "transaction_id", id, "error", err)
	}

	tx, err := s.transactionRepo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction lookup failed")
		return nil, err
	}

	if txBytes, err := json.Marshal(tx); err == nil {
		if err := s.redisClient.Set(ctx, cacheKey, string(txBytes), time.Minute); err != nil {
			slog.Error("failed to cache transaction", "transaction_id", id, "error", err)
		}
	}
	return tx, nil
}

func transactionCacheKey(id string) string {
	return fmt.Sprintf("transaction:%s", id)
}

// parseWebhookPayload extracts the bill reference and reported outcome from
// the form-encoded Billplz callback body. Billplz reports paid=true for a
// settled bill and paid=false for one that expired or failed.
func parseWebhookPayload(raw []byte) (billID string, outcome models.StatusType, err error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return "", "", fmt.Errorf("%w: malformed webhook payload", pkgerrors.ErrInvalidInput)
	}

	billID = values.Get("billplz[id]")
	if billID == "" {
		billID = values.Get("id")
	}
	if billID == "" {
		return "", "", fmt.Errorf("%w: webhook payload missing bill id", pkgerrors.ErrInvalidInput)
	}

	paid := values.Get("billplz[paid]")
	if paid == "" {
		paid = values.Get("paid")
	}
	switch paid {
	case "true":
		outcome = models.StatusPaid
	case "false":
		outcome = models.StatusFailed
	default:
		// Do not guess: an unrecognized outcome never settles a record.
		outcome = models.StatusType(paid)
	}
	return billID, outcome, nil
}

func (s *paymentService) emitEvent(ctx context.Context, eventType string, tx *models.Transaction) {
	event := map[string]interface{}{
		"event_type":       eventType,
		"transaction_id":   tx.ID,
		"tenant":           tx.Tenant,
		"external_bill_id": tx.ExternalBillID,
		"amount":           tx.Amount,
		"status":           tx.Status,
		"created_at":       time.Now().UTC().Format(time.RFC3339),
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal payment event", "transaction_id", tx.ID, "error", err)
		return
	}
	if err := s.kafkaProducer.Send(ctx, paymentEventsTopic, tx.ID, eventBytes); err != nil {
		slog.Error("failed to send payment event", "transaction_id", tx.ID, "event_type", eventType, "error", err)
	}
}
