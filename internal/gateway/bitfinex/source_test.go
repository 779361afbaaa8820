package bitfinex

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
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
	s.nowFn = func() time.Time { return time.Unix(100_000, 0) }
	return s
}

func TestTicker(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/ticker/tBTCUSD", r.URL.Path)
		_, _ = w.Write([]byte(`[4000,1.5,4001,2.1,-12,-0.003,4000.5,1200,4100,3900]`))
	})
	price, err := s.Ticker(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, 4000.5, price)
}

func TestTickerShortArray(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["error",10020,"symbol: invalid"]`))
	})
	_, err := s.Ticker(context.Background(), "XXXUSD")
	assert.True(t, market.IsMalformed(err))
}

func TestHistory(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/candles/trade:1m:tBTCUSD/hist", r.URL.Path)
		assert.Equal(t, "96400000", r.URL.Query().Get("start"))
		assert.Equal(t, "100000000", r.URL.Query().Get("end"))
		assert.Equal(t, "61", r.URL.Query().Get("limit"))
		assert.Equal(t, "-1", r.URL.Query().Get("sort"))
		_, _ = w.Write([]byte(`[
			[99960000,10,11,12,9,1],
			[99900000,9,10,12,9,1],
			[96000000,1,2,3,1,1]
		]`))
	})
	got, err := s.History(context.Background(), "BTCUSD", 3600, 200)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, market.Candle{Time: 99900, Open: 9, Close: 10}, got[0])
	assert.Equal(t, 11.0, got[len(got)-1].Close)
}

func TestTimeframeFor(t *testing.T) {
	assert.Equal(t, "1m", timeframeFor(3600))
	assert.Equal(t, "15m", timeframeFor(86400))
	assert.Equal(t, "12h", timeframeFor(30*86400))
	assert.Equal(t, "1M", timeframeFor(10*365*86400))
}

func TestHistoryReachesRecentEndAtLowResolution(t *testing.T) {
	// two hours of 1m candles ending at now, served the way the candles
	// endpoint pages them
	const now = 100_000
	var mts []int64
	for k := int64(0); k < 120; k++ {
		mts = append(mts, (now-60*k)*1000)
	}
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, _ := strconv.ParseInt(q.Get("start"), 10, 64)
		end, _ := strconv.ParseInt(q.Get("end"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))
		var rows []int64
		for _, ts := range mts {
			if ts >= start && (end == 0 || ts <= end) {
				rows = append(rows, ts)
			}
		}
		sort.Slice(rows, func(i, j int) bool {
			if q.Get("sort") == "1" {
				return rows[i] < rows[j]
			}
			return rows[i] > rows[j]
		})
		if len(rows) > limit {
			rows = rows[:limit]
		}
		parts := make([]string, 0, len(rows))
		for _, ts := range rows {
			parts = append(parts, fmt.Sprintf("[%d,5,6,7,4,1]", ts))
		}
		_, _ = w.Write([]byte("[" + strings.Join(parts, ",") + "]"))
	})

	got, err := s.History(context.Background(), "BTCUSD", 3600, 20)
	require.NoError(t, err)
	require.Len(t, got, 20)
	step := market.StepFor(3600, 20)
	assert.GreaterOrEqual(t, got[len(got)-1].Time, int64(now)-step)
	assert.GreaterOrEqual(t, got[0].Time, int64(now)-3600-step)
}

func TestCandleLimit(t *testing.T) {
	assert.Equal(t, 61, candleLimit(3600, "1m"))
	assert.Equal(t, 97, candleLimit(86400, "15m"))
	assert.Equal(t, maxCandles, candleLimit(10*365*86400, "1m"))
	assert.Equal(t, maxCandles, candleLimit(3600, "bogus"))
}
