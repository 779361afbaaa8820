package bitbay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/market"
)

// fakeExchange serves trades with tid 1..total, one every 10 seconds ending
// at endTime, in pages of pageSize.
type fakeExchange struct {
	total    int64
	endTime  int64
	pageSize int64
	calls    atomic.Int32
}

func (f *fakeExchange) trade(tid int64) map[string]any {
	return map[string]any{
		"tid":    strconv.FormatInt(tid, 10),
		"date":   f.endTime - (f.total-tid)*10,
		"price":  float64(1000 + tid),
		"amount": 0.1,
		"type":   "buy",
	}
}

func (f *fakeExchange) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/API/Public/BTCPLN/ticker.json":
		_, _ = w.Write([]byte(`{"max":16500,"min":15900,"last":16123.45}`))
		return
	case "/API/Public/BTCPLN/trades.json":
	default:
		http.NotFound(w, r)
		return
	}
	f.calls.Add(1)
	var rows []map[string]any
	if since := r.URL.Query().Get("since"); since != "" {
		from, _ := strconv.ParseInt(since, 10, 64)
		for tid := from + 1; tid <= f.total && tid <= from+f.pageSize; tid++ {
			rows = append(rows, f.trade(tid))
		}
	} else {
		for tid := f.total; tid > 0 && tid > f.total-f.pageSize; tid-- {
			rows = append(rows, f.trade(tid))
		}
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	_ = json.NewEncoder(w).Encode(rows)
}

func newTestSource(t *testing.T, fx *fakeExchange, cfg Config) *Source {
	t.Helper()
	srv := httptest.NewServer(fx)
	t.Cleanup(srv.Close)
	cfg.RESTBaseURL = srv.URL
	s := New(cfg)
	s.nowFn = func() time.Time { return time.Unix(fx.endTime, 0) }
	return s
}

func TestTicker(t *testing.T) {
	fx := &fakeExchange{total: 10, endTime: 100_000, pageSize: 5}
	s := newTestSource(t, fx, Config{})
	price, err := s.Ticker(context.Background(), "BTCPLN")
	require.NoError(t, err)
	assert.Equal(t, 16123.45, price)
}

func TestHistoryBackfillsWindow(t *testing.T) {
	fx := &fakeExchange{total: 2000, endTime: 100_000, pageSize: 50}
	s := newTestSource(t, fx, Config{TIDStep: 300})

	// 3600s at one trade per 10s needs the newest 361 trades
	got, err := s.History(context.Background(), "BTCPLN", 3600, 200)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	since := fx.endTime - 3600
	cache := s.cache("BTCPLN")
	_, _, minTime, maxTime, ok := cache.Coverage()
	require.True(t, ok)
	assert.LessOrEqual(t, minTime, since)
	assert.Equal(t, fx.endTime, maxTime)

	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Time < got[j].Time }))
	assert.Equal(t, float64(1000+fx.total), got[len(got)-1].Close)

	// a second call only catches up: one empty forward page
	before := fx.calls.Load()
	_, err = s.History(context.Background(), "BTCPLN", 3600, 200)
	require.NoError(t, err)
	assert.Equal(t, before+1, fx.calls.Load())
}

func TestHistoryExhaustedKeepsProgress(t *testing.T) {
	fx := &fakeExchange{total: 2000, endTime: 100_000, pageSize: 10}
	s := newTestSource(t, fx, Config{TIDStep: 300, MaxPages: 8})

	_, err := s.History(context.Background(), "BTCPLN", 3600, 200)
	require.ErrorIs(t, err, market.ErrBackfillExhausted)
	firstLen := s.cache("BTCPLN").Len()
	assert.Greater(t, firstLen, 0)

	for i := 0; i < 10; i++ {
		if _, err = s.History(context.Background(), "BTCPLN", 3600, 200); err == nil {
			break
		}
	}
	require.NoError(t, err)
	assert.Greater(t, s.cache("BTCPLN").Len(), firstLen)
}

func TestCachesArePerMarket(t *testing.T) {
	s := New(Config{})
	assert.Same(t, s.cache("btcpln"), s.cache("BTCPLN"))
	assert.NotSame(t, s.cache("BTCPLN"), s.cache("ETHPLN"))
}
