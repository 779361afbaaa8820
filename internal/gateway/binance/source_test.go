package binance

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
	s, err := New(Config{RESTBaseURL: srv.URL})
	require.NoError(t, err)
	s.nowFn = func() time.Time { return time.Unix(1_000_000, 0) }
	return s
}

func TestTicker(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"4000.00000000"}`))
	})
	price, err := s.Ticker(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, 4000.0, price)
}

func TestTickerAPIError(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})
	_, err := s.Ticker(context.Background(), "XXXUSD")
	assert.True(t, market.IsFetchError(err))
}

func TestHistory(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "ETHBTC", q.Get("symbol"))
		assert.Equal(t, "1m", q.Get("interval"))
		assert.Equal(t, "996400000", q.Get("startTime"))
		_, _ = w.Write([]byte(`[
			[999900000,"0.05","0.06","0.04","0.055","10",999959999,"1",5,"1","1","0"],
			[999960000,"0.055","0.06","0.05","0.058","10",1000019999,"1",5,"1","1","0"]
		]`))
	})
	got, err := s.History(context.Background(), "ETHBTC", 3600, 200)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, 0.05, got[0].Open)
	assert.Equal(t, 0.058, got[len(got)-1].Close)
}
