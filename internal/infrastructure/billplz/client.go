// Package billplz wraps the Billplz v3 bill-creation API. One call, no
// retries: retry policy belongs to the caller.
package billplz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/infrastructure/observability"
	pkgerrors "github.com/MyGovHub-Goodbye-World/billplz-payment-api/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const billsEndpoint = "/api/v3/bills"

// Credentials are resolved per tenant by the caller, never by this client.
type Credentials struct {
	APIKey       string
	CollectionID string
}

type CreateBillRequest struct {
	Amount      int64 // minor currency units
	Description string
	Email       string
	Name        string
	CallbackURL string
	RedirectURL string
}

type Bill struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type BillGateway interface {
	CreateBill(ctx context.Context, creds Credentials, req CreateBillRequest) (*Bill, error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) CreateBill(ctx context.Context, creds Credentials, req CreateBillRequest) (bill *Bill, err error) {
	tracer := otel.Tracer("billplz-client")
	ctx, span := tracer.Start(ctx, "CreateBill")
	span.SetAttributes(
		attribute.String("collection_id", creds.CollectionID),
		attribute.Int64("amount", req.Amount),
	)
	defer span.End()

	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.GatewayCalls.WithLabelValues("CreateBill", status).Inc()
	}()

	form := url.Values{}
	form.Set("collection_id", creds.CollectionID)
	form.Set("email", req.Email)
	form.Set("name", req.Name)
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("description", req.Description)
	form.Set("callback_url", req.CallbackURL)
	if req.RedirectURL != "" {
		form.Set("redirect_url", req.RedirectURL)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+billsEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", pkgerrors.ErrGatewayUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	// Billplz uses HTTP basic auth with the API key as username.
	httpReq.SetBasicAuth(creds.APIKey, "")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("billplz request failed", "method", "CreateBill", "error", err)
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		slog.Error("failed to read billplz response", "method", "CreateBill", "error", err)
		return nil, fmt.Errorf("%w: reading response: %v", pkgerrors.ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		slog.Error("billplz rejected credentials", "method", "CreateBill", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", pkgerrors.ErrGatewayUnauthorized, resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		slog.Error("billplz rejected bill", "method", "CreateBill", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w: status %d: %s", pkgerrors.ErrGatewayRejected, resp.StatusCode, string(body))
	case resp.StatusCode >= 500:
		slog.Error("billplz server error", "method", "CreateBill", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", pkgerrors.ErrGatewayUnavailable, resp.StatusCode)
	}

	var b Bill
	if err := json.Unmarshal(body, &b); err != nil {
		slog.Error("failed to decode billplz response", "method", "CreateBill", "error", err)
		return nil, fmt.Errorf("%w: decoding response: %v", pkgerrors.ErrGatewayUnavailable, err)
	}
	if b.ID == "" || b.URL == "" {
		slog.Error("billplz response missing bill reference", "method", "CreateBill", "body", string(body))
		return nil, fmt.Errorf("%w: response missing bill id or url", pkgerrors.ErrGatewayUnavailable)
	}

	slog.Info("bill created", "method", "CreateBill", "bill_id", b.ID, "collection_id", creds.CollectionID)
	return &b, nil
}
