package market

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticPager serves trades 1..total with Time = 1000 + id*10, pageSize at
// a time, the way bitbay-style endpoints page by trade id.
type syntheticPager struct {
	total    int64
	pageSize int64
	calls    atomic.Int32
	failOn   int32
}

func (p *syntheticPager) FetchTrades(_ context.Context, _ string, since *int64) ([]Trade, error) {
	n := p.calls.Add(1)
	if p.failOn != 0 && n == p.failOn {
		return nil, &FetchError{Source: "synthetic", Op: "trades", Err: errors.New("boom")}
	}
	var from int64
	if since == nil {
		from = p.total - p.pageSize + 1
	} else {
		from = *since + 1
	}
	if from < 1 {
		from = 1
	}
	var out []Trade
	for id := from; id <= p.total && id < from+p.pageSize; id++ {
		out = append(out, Trade{ID: id, Time: tradeTime(id), Price: float64(id)})
	}
	return out, nil
}

func tradeTime(id int64) int64 { return 1000 + id*10 }

func TestBackfillCoversWindowAndTerminates(t *testing.T) {
	pager := &syntheticPager{total: 1000, pageSize: 300}
	cache := NewBackfillCache("synthetic", "BTCPLN", pager, BackfillOptions{TIDStep: 300})

	since := tradeTime(400)
	trades, err := cache.TradesSince(context.Background(), since)
	require.NoError(t, err)

	require.Len(t, trades, 601)
	assert.Equal(t, int64(400), trades[0].ID)
	assert.Equal(t, int64(1000), trades[len(trades)-1].ID)
	for i := 1; i < len(trades); i++ {
		assert.Less(t, trades[i-1].Time, trades[i].Time)
	}
	for _, tr := range trades {
		assert.GreaterOrEqual(t, tr.Time, since)
	}

	maxIterations := (1000-1)/300 + 1
	assert.LessOrEqual(t, int(pager.calls.Load())-1, maxIterations)
}

func TestBackfillRequeryIsFree(t *testing.T) {
	pager := &syntheticPager{total: 1000, pageSize: 300}
	cache := NewBackfillCache("synthetic", "BTCPLN", pager, BackfillOptions{TIDStep: 300})

	since := tradeTime(500)
	first, err := cache.TradesSince(context.Background(), since)
	require.NoError(t, err)
	calls := pager.calls.Load()

	second, err := cache.TradesSince(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, calls, pager.calls.Load())
	assert.Equal(t, first, second)
}

func TestBackfillCoverageNeverShrinks(t *testing.T) {
	pager := &syntheticPager{total: 1000, pageSize: 300}
	cache := NewBackfillCache("synthetic", "BTCPLN", pager, BackfillOptions{TIDStep: 300})

	_, err := cache.TradesSince(context.Background(), tradeTime(300))
	require.NoError(t, err)
	minID, maxID, minTime, _, ok := cache.Coverage()
	require.True(t, ok)

	_, err = cache.TradesSince(context.Background(), tradeTime(900))
	require.NoError(t, err)
	minID2, maxID2, minTime2, _, _ := cache.Coverage()
	assert.Equal(t, minID, minID2)
	assert.Equal(t, maxID, maxID2)
	assert.Equal(t, minTime, minTime2)

	// Every id from the lowest cached trade up to the newest is present.
	trades, err := cache.TradesSince(context.Background(), tradeTime(300))
	require.NoError(t, err)
	for i := 1; i < len(trades); i++ {
		assert.Equal(t, trades[i-1].ID+1, trades[i].ID)
	}
}

func TestBackfillKeepsPartialProgressOnFailure(t *testing.T) {
	pager := &syntheticPager{total: 1000, pageSize: 300, failOn: 2}
	cache := NewBackfillCache("synthetic", "BTCPLN", pager, BackfillOptions{TIDStep: 300})

	_, err := cache.TradesSince(context.Background(), tradeTime(100))
	require.Error(t, err)
	assert.True(t, IsFetchError(err))
	assert.Equal(t, 300, cache.Len(), "newest page must survive the failure")

	trades, err := cache.TradesSince(context.Background(), tradeTime(100))
	require.NoError(t, err)
	assert.Equal(t, int64(100), trades[0].ID)
	// The retry did not re-request the newest page.
	assert.Equal(t, int32(5), pager.calls.Load())
}

func TestBackfillExhausted(t *testing.T) {
	stuck := TradePagerFunc(func(context.Context, string, *int64) ([]Trade, error) {
		return []Trade{{ID: 5000, Time: 10_000, Price: 1}}, nil
	})
	cache := NewBackfillCache("stuck", "BTCPLN", stuck, BackfillOptions{TIDStep: 10, MaxPages: 4})

	_, err := cache.TradesSince(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackfillExhausted))
	assert.Equal(t, 1, cache.Len())
}

func TestBackfillStopsAtLowestTradeID(t *testing.T) {
	pager := &syntheticPager{total: 50, pageSize: 30}
	cache := NewBackfillCache("synthetic", "BTCPLN", pager, BackfillOptions{TIDStep: 30})

	trades, err := cache.TradesSince(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, trades, 50)
}

func TestBackfillEmptySource(t *testing.T) {
	empty := TradePagerFunc(func(context.Context, string, *int64) ([]Trade, error) { return nil, nil })
	cache := NewBackfillCache("empty", "BTCPLN", empty, BackfillOptions{})

	trades, err := cache.TradesSince(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
	_, _, _, _, ok := cache.Coverage()
	assert.False(t, ok)
}

func TestBackfillCatchUp(t *testing.T) {
	pager := &syntheticPager{total: 600, pageSize: 300}
	cache := NewBackfillCache("synthetic", "BTCPLN", pager, BackfillOptions{TIDStep: 300})

	_, err := cache.TradesSince(context.Background(), tradeTime(400))
	require.NoError(t, err)

	pager.total = 900
	require.NoError(t, cache.CatchUp(context.Background()))
	_, maxID, _, _, _ := cache.Coverage()
	assert.Equal(t, int64(900), maxID)
}
