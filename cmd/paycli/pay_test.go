package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studysphere/pkg/poller"
)

func fastPolling() poller.Config {
	return poller.Config{
		InitialDelay: 5 * time.Millisecond,
		Interval:     5 * time.Millisecond,
		MaxAttempts:  5,
		MaxWait:      time.Second,
	}
}

func newAPI(t *testing.T, completeAfter int32) (*httptest.Server, *int32) {
	t.Helper()
	var checks int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/plans", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":[{"code":"premium","name":"Premium","amount":"1500","currency":"KES"}]}`))
	})
	mux.HandleFunc("/v1/payments", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"id":"rec-1","provider_reference":"pay_123","status":"pending"}}`))
	})
	mux.HandleFunc("/v1/payments/verify", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&checks, 1) >= completeAfter {
			_, _ = w.Write([]byte(`{"status":"success","data":{"state":"COMPLETE","status":"complete"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"state":"PENDING","status":"pending"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &checks
}

func TestRunPayPlan(t *testing.T) {
	srv, checks := newAPI(t, 2)

	var out bytes.Buffer
	err := runPay(context.Background(), &out, &globalFlags{apiURL: srv.URL, timeout: time.Second}, &payOptions{
		plan:        "premium",
		phone:       "254712345678",
		currency:    "KES",
		pollOptions: fastPolling(),
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "1500.00 KES")
	assert.Contains(t, out.String(), "Payment confirmed.")
	assert.EqualValues(t, 2, atomic.LoadInt32(checks))
}

func TestRunPayGivesUp(t *testing.T) {
	srv, _ := newAPI(t, 1000)

	var out bytes.Buffer
	err := runPay(context.Background(), &out, &globalFlags{apiURL: srv.URL, timeout: time.Second}, &payOptions{
		amount:      "500",
		phone:       "254712345678",
		currency:    "KES",
		pollOptions: fastPolling(),
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "paycli status pay_123")
}

func TestRunPayRequiresAmount(t *testing.T) {
	err := runPay(context.Background(), &bytes.Buffer{}, &globalFlags{apiURL: "http://127.0.0.1:0"}, &payOptions{phone: "254712345678"})
	assert.EqualError(t, err, "either --plan or --amount is required")
}
