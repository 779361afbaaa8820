package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/market"
)

const sampleConfig = `
update_interval_sec: 5
graph_currency: pln
markets:
  - exchange: Bitstamp.net
    market: btcusd
    ticker: true
    graph: true
    title: true
  - exchange: mock
    market: BTCUSD
    ticker: true
alarms:
  - exchange: bitstamp.net
    market: BTCUSD
    direction: Above
    price: 5000
sources:
  bitstamp.net:
    rest_base_url: http://127.0.0.1:1
    timeout_seconds: 3
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.UpdateIntervalSec)
	assert.Equal(t, defaultGraphIntervalSec, cfg.GraphIntervalSec)
	assert.Equal(t, defaultGraphPeriodSec, cfg.GraphPeriodSec)
	assert.Equal(t, defaultGraphRes, cfg.GraphRes)
	assert.Equal(t, "PLN", cfg.GraphCurrency)
	assert.Equal(t, defaultHTTPAddr, cfg.App.HTTPAddr)
	assert.Equal(t, defaultBackfillTIDStep, cfg.Backfill.TIDStep)

	require.Len(t, cfg.Markets, 2)
	assert.Equal(t, market.MarketID{Source: "bitstamp.net", Market: "BTCUSD"}, cfg.Markets[0].ID())
	assert.True(t, cfg.Markets[0].Title)
	assert.False(t, cfg.Markets[1].Graph)

	require.Len(t, cfg.Alarms, 1)
	assert.NotEmpty(t, cfg.Alarms[0].ID)
	assert.Equal(t, market.Above, cfg.Alarms[0].Direction)
	assert.Equal(t, 5000.0, cfg.Alarms[0].Threshold)

	src := cfg.Source("Bitstamp.NET")
	assert.Equal(t, "http://127.0.0.1:1", src.RESTBaseURL)
	assert.Equal(t, 3, src.TimeoutSeconds)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad direction": "alarms:\n  - exchange: mock\n    market: BTCUSD\n    direction: sideways\n    price: 1\n",
		"bad currency":  "graph_currency: EURO\n",
		"telegram":      "notify:\n  telegram:\n    enabled: true\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, validate(cfg))
	require.Len(t, cfg.Markets, 1)
	assert.Equal(t, "mock", cfg.Markets[0].Source)
}

func TestAlarmsFor(t *testing.T) {
	cfg := Config{Alarms: []market.Alarm{
		{ID: "a", Source: "mock", Market: "BTCUSD", Direction: market.Above, Threshold: 1},
		{ID: "b", Source: "bitstamp", Market: "BTCUSD", Direction: market.Above, Threshold: 1},
		{ID: "c", Source: "MOCK", Market: "btcusd", Direction: market.Below, Threshold: 1},
	}}
	got := cfg.AlarmsFor(market.NewMarketID("mock", "BTCUSD"))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}
