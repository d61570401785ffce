package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "studysphere/app/models/payment"
	"studysphere/pkg/payment/types"
)

func TestInitiate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 1500.0, body["amount"])
		assert.Equal(t, "254712345678", body["phone_number"])

		_, _ = w.Write([]byte(`{"status":"success","data":{"id":"rec-1","provider_reference":"pay_123","status":"pending"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Token: "tok"})
	result, err := c.Initiate(context.Background(), &types.Request{
		Amount:      decimal.NewFromInt(1500),
		Currency:    "KES",
		PhoneNumber: "254712345678",
	})
	require.NoError(t, err)
	assert.Equal(t, "pay_123", result.ProviderReference)
	assert.Equal(t, model.StatusPending, result.Status)
}

func TestInitiateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","error":"missing contact"}`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Initiate(context.Background(), &types.Request{Amount: decimal.NewFromInt(1)})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "missing contact", apiErr.Message)
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name string
		body string
		want model.Status
	}{
		{"status field", `{"status":"success","data":{"state":"COMPLETE","status":"complete"}}`, model.StatusComplete},
		{"state only", `{"status":"success","data":{"state":"FAILED"}}`, model.StatusFailed},
		{"unrecognised state", `{"status":"success","data":{"state":"WEIRD"}}`, model.StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/payments/verify", r.URL.Path)
				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "pay_123", body["payment_id"])
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			status, err := New(Config{BaseURL: srv.URL}).Check(context.Background(), "pay_123")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestCheckServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Check(context.Background(), "pay_123")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestPlans(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":[{"code":"basic","name":"Basic","amount":"500","currency":"KES"}]}`))
	}))
	defer srv.Close()

	plans, err := New(Config{BaseURL: srv.URL}).Plans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.True(t, decimal.NewFromInt(500).Equal(plans[0].Amount))
}
