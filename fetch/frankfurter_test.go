package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dnldd/stocketl/shared"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

func newTestFrankfurter(t *testing.T, handler http.HandlerFunc) *FrankfurterClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewFrankfurterClient(&FrankfurterConfig{
		BaseURL: server.URL,
		Timeout: time.Second * 2,
		Logger:  &log.Logger,
	})
	assert.NoError(t, err)

	return client
}

func TestFrankfurterConfig(t *testing.T) {
	// Ensure the client cannot be created without a base url or logger.
	_, err := NewFrankfurterClient(&FrankfurterConfig{})
	assert.Error(t, err)

	client, err := NewFrankfurterClient(&FrankfurterConfig{BaseURL: FrankfurterBaseURL, Logger: &log.Logger})
	assert.NoError(t, err)
	assert.Equal(t, client.httpc.Timeout, defaultTimeout)
}

func TestFrankfurterFetchExchangeRates(t *testing.T) {
	tradeDate := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	// Ensure requests are formed with the trade date path and the base and symbols params.
	client := newTestFrankfurter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/2024-01-05")
		assert.Equal(t, r.URL.Query().Get("base"), "USD")
		assert.Equal(t, r.URL.Query().Get("symbols"), "EUR,GBP")
		_, _ = w.Write([]byte(`{"amount":1.0,"base":"USD","date":"2024-01-05","rates":{"EUR":0.9134,"GBP":0.78695}}`))
	})

	set, err := client.FetchExchangeRates(context.Background(), tradeDate, "USD", []string{"EUR", "GBP"})
	assert.NoError(t, err)
	assert.Equal(t, set.Base, "USD")
	assert.Equal(t, set.Len(), 2)
	assert.Equal(t, set.Codes(), []string{"EUR", "GBP"})

	eur, ok := set.Rate("EUR")
	assert.True(t, ok)
	assert.True(t, eur.Equal(decimal.RequireFromString("0.9134")))
	assert.Equal(t, eur.String(), "0.9134")

	// Ensure symbols are omitted when no targets are provided.
	client = newTestFrankfurter(t, func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.URL.Query()["symbols"]
		assert.False(t, ok)
		_, _ = w.Write([]byte(`{"base":"USD","date":"2024-01-05","rates":{"EUR":0.9,"JPY":144.2,"GBP":0.79}}`))
	})

	set, err = client.FetchExchangeRates(context.Background(), tradeDate, "USD", nil)
	assert.NoError(t, err)
	assert.Equal(t, set.Len(), 3)

	// Ensure an empty rate set is returned as-is.
	client = newTestFrankfurter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"base":"USD","date":"2024-01-05","rates":{}}`))
	})

	set, err = client.FetchExchangeRates(context.Background(), tradeDate, "USD", []string{"XYZ"})
	assert.NoError(t, err)
	assert.Equal(t, set.Len(), 0)

	// Ensure a response without rates yields an empty set.
	client = newTestFrankfurter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"base":"USD"}`))
	})

	set, err = client.FetchExchangeRates(context.Background(), tradeDate, "USD", nil)
	assert.NoError(t, err)
	assert.Equal(t, set.Len(), 0)

	// Ensure the provider date is kept when it differs from the trade date.
	client = newTestFrankfurter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"base":"USD","date":"2024-01-05","rates":{"EUR":0.9}}`))
	})

	weekend := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	set, err = client.FetchExchangeRates(context.Background(), weekend, "USD", []string{"EUR"})
	assert.NoError(t, err)
	assert.Equal(t, set.Date, weekend)
	assert.Equal(t, set.ProviderDate, tradeDate)
}

func TestFrankfurterFetchExchangeRatesErrors(t *testing.T) {
	tradeDate := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    int
		body      string
		date      time.Time
		base      string
		wantKind  shared.ErrorKind
		wantError string
	}{
		{
			name:      "missing trade date and base",
			status:    http.StatusOK,
			body:      `{}`,
			wantKind:  shared.ConfigurationError,
			wantError: "trade date is required",
		},
		{
			name:      "not found",
			status:    http.StatusNotFound,
			body:      `{"message":"not found"}`,
			date:      tradeDate,
			base:      "USD",
			wantKind:  shared.RemoteFetchError,
			wantError: "status 404",
		},
		{
			name:      "invalid json",
			status:    http.StatusOK,
			body:      `{"rates":`,
			date:      tradeDate,
			base:      "USD",
			wantKind:  shared.SchemaError,
			wantError: "not valid json",
		},
		{
			name:      "rates not an object",
			status:    http.StatusOK,
			body:      `{"rates":[0.9]}`,
			date:      tradeDate,
			base:      "USD",
			wantKind:  shared.SchemaError,
			wantError: "must be an object",
		},
		{
			name:      "non numeric rate",
			status:    http.StatusOK,
			body:      `{"rates":{"EUR":"0.9"}}`,
			date:      tradeDate,
			base:      "USD",
			wantKind:  shared.SchemaError,
			wantError: "EUR is not a number",
		},
		{
			name:      "non positive rate",
			status:    http.StatusOK,
			body:      `{"rates":{"EUR":0}}`,
			date:      tradeDate,
			base:      "USD",
			wantKind:  shared.SchemaError,
			wantError: "must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			client := newTestFrankfurter(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.FetchExchangeRates(context.Background(), tt.date, tt.base, nil)
			assert.Error(t, err)
			assert.Equal(t, shared.KindOf(err), tt.wantKind)
			assert.True(t, strings.Contains(err.Error(), tt.wantError))

			if tt.wantKind == shared.ConfigurationError {
				assert.Equal(t, calls, 0)
			}

			var fetchErr *shared.Error
			if tt.wantKind == shared.RemoteFetchError && errors.As(err, &fetchErr) {
				assert.Equal(t, fetchErr.StatusCode, tt.status)
				assert.Equal(t, fetchErr.Body, tt.body)
			}
		})
	}
}
