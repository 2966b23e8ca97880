package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/infrastructure/auth"
	service "github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/services"
	pkgerrors "github.com/MyGovHub-Goodbye-World/billplz-payment-api/pkg/errors"
	"github.com/gorilla/mux"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	service      service.PaymentService
	tokenService *auth.TokenService
}

func NewHandler(s service.PaymentService, tokenService *auth.TokenService) *Handler {
	return &Handler{service: s, tokenService: tokenService}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/auth/token", h.IssueToken).Methods("POST")
	r.HandleFunc("/payment/webhook/{tenant}", h.Webhook).Methods("POST")
	r.HandleFunc("/payment/{id}", h.GetPayment).Methods("GET")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/payment/create-bill", h.CreateBill).Methods("POST")
}

func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tenant string `json:"tenant"`
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	token, err := h.tokenService.IssueToken(r.Context(), req.Tenant, req.APIKey)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, err)
		} else {
			h.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	tenant, ok := auth.TenantFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("tenant not authenticated"))
		return
	}

	var req service.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Tenant = tenant

	tx, err := h.service.CreatePayment(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, pkgerrors.ErrTenantNotFound):
			h.writeError(w, http.StatusUnauthorized, err)
		case pkgerrors.IsGateway(err):
			h.writeError(w, http.StatusBadGateway, err)
		case errors.Is(err, pkgerrors.ErrStoreUnavailable):
			h.writeError(w, http.StatusServiceUnavailable, err)
		default:
			h.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"id":  tx.ID,
		"url": tx.PaymentURL,
	})
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	tenant := mux.Vars(r)["tenant"]

	// The verifier needs the exact bytes Billplz sent, not a re-serialized
	// form, so the body is read raw before any parsing.
	rawPayload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("unreadable payload"))
		return
	}
	signature := r.Header.Get("X-Signature")

	err = h.service.HandleWebhook(r.Context(), tenant, rawPayload, signature)
	if err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrInvalidSignature):
			h.writeError(w, http.StatusUnauthorized, pkgerrors.ErrInvalidSignature)
		case errors.Is(err, pkgerrors.ErrTransactionNotFound):
			h.writeError(w, http.StatusNotFound, err)
		case errors.Is(err, pkgerrors.ErrInvalidInput), errors.Is(err, pkgerrors.ErrInvalidOutcome):
			h.writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, pkgerrors.ErrStoreUnavailable):
			h.writeError(w, http.StatusServiceUnavailable, err)
		default:
			h.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	tx, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrTransactionNotFound):
			h.writeError(w, http.StatusNotFound, err)
		case errors.Is(err, pkgerrors.ErrStoreUnavailable):
			h.writeError(w, http.StatusServiceUnavailable, err)
		default:
			h.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tx)
}
