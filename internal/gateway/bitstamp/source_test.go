package bitstamp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/market"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := New(Config{RESTBaseURL: srv.URL})
	s.nowFn = func() time.Time { return time.Unix(10_000, 0) }
	return s
}

func TestTicker(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/ticker/btcusd/", r.URL.Path)
		_, _ = w.Write([]byte(`{"last":"4012.34","bid":"4012.00"}`))
	})
	price, err := s.Ticker(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, 4012.34, price)
}

func TestTickerMalformed(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"last":"n/a"}`))
	})
	_, err := s.Ticker(context.Background(), "BTCUSD")
	assert.True(t, market.IsMalformed(err))
}

func TestHistoryAggregatesTransactions(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/transactions/btcusd/", r.URL.Path)
		assert.Equal(t, "hour", r.URL.Query().Get("time"))
		// newest first, as the exchange returns them
		_, _ = w.Write([]byte(`[
			{"date":"9990","tid":"5","price":"105"},
			{"date":"9970","tid":"4","price":"104"},
			{"date":"9905","tid":"3","price":"103"},
			{"date":"9901","tid":"2","price":"101"},
			{"date":"5000","tid":"1","price":"50"}
		]`))
	})
	got, err := s.History(context.Background(), "BTCUSD", 3600, 200)
	require.NoError(t, err)

	step := market.StepFor(3600, 200)
	require.NotEmpty(t, got)
	assert.Equal(t, market.BucketStart(9901, step), got[0].Time)
	assert.Equal(t, 101.0, got[0].Open)
	assert.Equal(t, 105.0, got[len(got)-1].Close)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, step, got[i].Time-got[i-1].Time)
	}
}

func TestHistoryStatusError(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := s.History(context.Background(), "BTCUSD", 3600, 200)
	assert.True(t, market.IsFetchError(err))
}

func TestTransactionsWindow(t *testing.T) {
	assert.Equal(t, "minute", transactionsWindow(60))
	assert.Equal(t, "hour", transactionsWindow(3600))
	assert.Equal(t, "day", transactionsWindow(3601))
}
