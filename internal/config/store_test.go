package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/market"
)

func TestStoreRemoveAlarmOnce(t *testing.T) {
	store, err := Open(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	id := store.Snapshot().Config.Alarms[0].ID

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.RemoveAlarm(id)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Empty(t, store.Snapshot().Config.Alarms)

	// persisted
	reloaded, err := Load(store.Path())
	require.NoError(t, err)
	assert.Empty(t, reloaded.Alarms)
	assert.Len(t, reloaded.Markets, 2)
}

func TestStoreAddAlarm(t *testing.T) {
	store := NewStore(*Default())
	a, err := store.AddAlarm(market.Alarm{Source: "MOCK", Market: "btcusd", Direction: market.Below, Threshold: 3900})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "mock", a.Source)
	assert.Equal(t, "BTCUSD", a.Market)

	_, err = store.AddAlarm(market.Alarm{Source: "mock", Market: "BTCUSD", Direction: "up", Threshold: 1})
	assert.Error(t, err)
	assert.Len(t, store.Snapshot().Config.Alarms, 1)
}

func TestStoreSubscribe(t *testing.T) {
	store := NewStore(*Default())
	got := make(chan Snapshot, 4)
	cancel := store.Subscribe(func(s Snapshot) { got <- s })

	require.NoError(t, store.SetMarkets([]market.TrackedMarket{{Source: "bitstamp", Market: "BTCUSD", Ticker: true}}))
	select {
	case snap := <-got:
		assert.Equal(t, int64(2), snap.Version)
		require.Len(t, snap.Config.Markets, 1)
		assert.Equal(t, "bitstamp", snap.Config.Markets[0].Source)
	case <-time.After(2 * time.Second):
		t.Fatal("listener not called")
	}

	cancel()
	require.NoError(t, store.SetMarkets(nil))
	select {
	case <-got:
		t.Fatal("listener called after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStoreSnapshotIsolated(t *testing.T) {
	store := NewStore(*Default())
	snap := store.Snapshot()
	snap.Config.Markets[0].Market = "ETHUSD"
	assert.Equal(t, "BTCUSD", store.Snapshot().Config.Markets[0].Market)
}

func TestStoreReloadKeepsPreviousOnError(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	store, err := Open(path)
	require.NoError(t, err)
	before := store.Snapshot()

	writeFile(t, path, "graph_res: -1\ngraph_currency: TOOLONG\n")
	assert.Error(t, store.Reload())
	after := store.Snapshot()
	assert.Equal(t, before.Version, after.Version)
	assert.Len(t, after.Config.Markets, 2)
}

func TestOpenOrCreateWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	store, err := OpenOrCreate(path)
	require.NoError(t, err)
	cfg := store.Snapshot().Config
	require.Len(t, cfg.Markets, 1)
	assert.Equal(t, "mock", cfg.Markets[0].Source)
	assert.Equal(t, 10, cfg.UpdateIntervalSec)

	require.NoError(t, store.SetMarkets(nil))
	again, err := OpenOrCreate(path)
	require.NoError(t, err)
	assert.Empty(t, again.Snapshot().Config.Markets)
}

func alarmConfig(n int) string {
	var b strings.Builder
	b.WriteString("markets:\n  - exchange: mock\n    market: BTCUSD\n    ticker: true\nalarms:\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "  - id: a%d\n    exchange: mock\n    market: BTCUSD\n    direction: above\n    price: %d\n", i, 1000+i)
	}
	return b.String()
}

func TestStoreWatchKeepsRemovedAlarmsRemoved(t *testing.T) {
	store, err := Open(writeConfig(t, alarmConfig(6)))
	require.NoError(t, err)
	store.Watch()

	var removed sync.Map
	var resurrected atomic.Int32
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			for _, a := range store.Snapshot().Config.Alarms {
				if _, gone := removed.Load(a.ID); gone {
					resurrected.Add(1)
				}
			}
			time.Sleep(time.Millisecond)
		}
	}()

	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("a%d", i)
		ok, err := store.RemoveAlarm(id)
		require.NoError(t, err)
		require.True(t, ok)
		removed.Store(id, struct{}{})
		time.Sleep(20 * time.Millisecond)
	}
	// let pending file events drain
	time.Sleep(300 * time.Millisecond)
	close(done)
	wg.Wait()

	assert.Zero(t, resurrected.Load())
	assert.Empty(t, store.Snapshot().Config.Alarms)
}

func TestStoreReloadSkipsOwnWrites(t *testing.T) {
	path := writeConfig(t, alarmConfig(2))
	store, err := Open(path)
	require.NoError(t, err)

	_, err = store.RemoveAlarm("a0")
	require.NoError(t, err)
	version := store.Snapshot().Version

	require.NoError(t, store.Reload())
	assert.Equal(t, version, store.Snapshot().Version)

	writeFile(t, path, alarmConfig(3))
	require.NoError(t, store.Reload())
	snap := store.Snapshot()
	assert.Equal(t, version+1, snap.Version)
	assert.Len(t, snap.Config.Alarms, 3)
}

func TestStoreReportsUnpersistedChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, alarmConfig(1))
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	ok, err := store.RemoveAlarm("a0")
	assert.True(t, ok)
	assert.ErrorIs(t, err, ErrNotPersisted)
	assert.Empty(t, store.Snapshot().Config.Alarms)

	a, err := store.AddAlarm(market.Alarm{Source: "mock", Market: "BTCUSD", Direction: market.Above, Threshold: 1})
	assert.ErrorIs(t, err, ErrNotPersisted)
	assert.NotEmpty(t, a.ID)
	assert.Len(t, store.Snapshot().Config.Alarms, 1)

	ok, err = store.RemoveAlarm("missing")
	assert.False(t, ok)
	assert.NoError(t, err)
}
