package lakebtc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/market"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{RESTBaseURL: srv.URL})
}

func TestTicker(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"btcusd":{"last":"3999.9","bid":"3999"},"btceur":{"last":"3400"}}`))
	})
	price, err := s.Ticker(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, 3999.9, price)

	_, err = s.Ticker(context.Background(), "LTCUSD")
	assert.True(t, market.IsMalformed(err))
}

func TestHistory(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "btcusd", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`[
			{"date":2000,"price":"10","amount":"1","tid":3},
			{"date":1990,"price":"9","amount":"1","tid":2},
			{"date":100,"price":"1","amount":"1","tid":1}
		]`))
	})
	got, err := s.History(context.Background(), "BTCUSD", 60, 6)
	require.NoError(t, err)
	assert.Equal(t, []market.Candle{
		{Time: 1990, Open: 9, Close: 9},
		{Time: 2000, Open: 10, Close: 10},
	}, got)
}
