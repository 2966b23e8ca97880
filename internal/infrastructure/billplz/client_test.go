package billplz_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MyGovHub-Goodbye-World/billplz-payment-api/internal/infrastructure/billplz"
	pkgerrors "github.com/MyGovHub-Goodbye-World/billplz-payment-api/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateBill(t *testing.T) {
	ctx := context.Background()
	creds := billplz.Credentials{APIKey: "test-key", CollectionID: "coll-1"}
	req := billplz.CreateBillRequest{
		Amount:      5000,
		Description: "annual license",
		Email:       "a@b.com",
		Name:        "A",
		CallbackURL: "http://localhost:8080/payment/webhook/licensing",
		RedirectURL: "https://example.com/done",
	}

	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v3/bills", r.URL.Path)

			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "test-key", user)
			assert.Empty(t, pass)

			require.NoError(t, r.ParseForm())
			assert.Equal(t, "coll-1", r.PostForm.Get("collection_id"))
			assert.Equal(t, "5000", r.PostForm.Get("amount"))
			assert.Equal(t, "a@b.com", r.PostForm.Get("email"))
			assert.Equal(t, "http://localhost:8080/payment/webhook/licensing", r.PostForm.Get("callback_url"))

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"bill_1","url":"https://pay/bill_1"}`))
		}))
		defer srv.Close()

		bill, err := billplz.NewClient(srv.URL).CreateBill(ctx, creds, req)
		require.NoError(t, err)
		assert.Equal(t, "bill_1", bill.ID)
		assert.Equal(t, "https://pay/bill_1", bill.URL)
	})

	t.Run("AuthenticationError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		bill, err := billplz.NewClient(srv.URL).CreateBill(ctx, creds, req)
		assert.Nil(t, bill)
		assert.ErrorIs(t, err, pkgerrors.ErrGatewayUnauthorized)
	})

	t.Run("ValidationError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"error":{"message":["Email is invalid"]}}`))
		}))
		defer srv.Close()

		bill, err := billplz.NewClient(srv.URL).CreateBill(ctx, creds, req)
		assert.Nil(t, bill)
		assert.ErrorIs(t, err, pkgerrors.ErrGatewayRejected)
	})

	t.Run("ServerError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		bill, err := billplz.NewClient(srv.URL).CreateBill(ctx, creds, req)
		assert.Nil(t, bill)
		assert.ErrorIs(t, err, pkgerrors.ErrGatewayUnavailable)
	})

	t.Run("NetworkError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // connection refused

		bill, err := billplz.NewClient(srv.URL).CreateBill(ctx, creds, req)
		assert.Nil(t, bill)
		assert.ErrorIs(t, err, pkgerrors.ErrGatewayUnavailable)
	})

	t.Run("MissingBillReference", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		bill, err := billplz.NewClient(srv.URL).CreateBill(ctx, creds, req)
		assert.Nil(t, bill)
		assert.ErrorIs(t, err, pkgerrors.ErrGatewayUnavailable)
	})
}
