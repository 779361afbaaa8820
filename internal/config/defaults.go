package config

import (
	"strings"

	"pricewatch/internal/market"
)

const (
	defaultLogLevel          = "info"
	defaultHTTPAddr          = ":9991"
	defaultUpdateIntervalSec = 10
	defaultGraphIntervalSec  = 5 * 60
	defaultGraphPeriodSec    = 60 * 60
	defaultGraphRes          = 200
	defaultGraphCurrency     = "USD"
	defaultCurrencyEndpoint  = "https://api.fixer.io/latest"
	defaultCurrencyCache     = "data/currency.cache.json"
	defaultCurrencyRefreshH  = 24
	defaultBackfillTIDStep   = market.DefaultTIDStep
	defaultBackfillMaxPages  = market.DefaultMaxPages
	defaultBackfillPageRate  = 2
)

// Default returns a configuration with every default applied and a single
// mock market, suitable for a first start.
func Default() *Config {
	cfg := &Config{
		Markets: []market.TrackedMarket{
			{Source: "mock", Market: "BTCUSD", Ticker: true, Graph: true, Title: true},
		},
	}
	cfg.applyDefaults(nil)
	return cfg
}

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	applyFieldDefaults(keys,
		intFieldDefault("update_interval_sec", &c.UpdateIntervalSec, defaultUpdateIntervalSec),
		intFieldDefault("graph_interval_sec", &c.GraphIntervalSec, defaultGraphIntervalSec),
		intFieldDefault("graph_period_sec", &c.GraphPeriodSec, defaultGraphPeriodSec),
		intFieldDefault("graph_res", &c.GraphRes, defaultGraphRes),
		stringFieldDefault("graph_currency", &c.GraphCurrency, defaultGraphCurrency),
	)
	c.GraphCurrency = strings.ToUpper(strings.TrimSpace(c.GraphCurrency))
	c.Currency.applyDefaults(keys)
	c.Backfill.applyDefaults(keys)
	for i := range c.Markets {
		id := c.Markets[i].ID()
		c.Markets[i].Source, c.Markets[i].Market = id.Source, id.Market
	}
	for i := range c.Alarms {
		id := c.Alarms[i].MarketID()
		c.Alarms[i].Source, c.Alarms[i].Market = id.Source, id.Market
		if d, err := market.ParseDirection(string(c.Alarms[i].Direction)); err == nil {
			c.Alarms[i].Direction = d
		}
	}
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.log_level", &a.LogLevel, defaultLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultHTTPAddr),
	)
}

func (c *CurrencyConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("currency.endpoint", &c.Endpoint, defaultCurrencyEndpoint),
		stringFieldDefault("currency.cache_path", &c.CachePath, defaultCurrencyCache),
		intFieldDefault("currency.refresh_hours", &c.RefreshHours, defaultCurrencyRefreshH),
	)
}

func (b *BackfillConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("backfill.tid_step", &b.TIDStep, defaultBackfillTIDStep),
		intFieldDefault("backfill.max_pages", &b.MaxPages, defaultBackfillMaxPages),
		fieldDefault{
			key:   "backfill.pages_per_sec",
			need:  func() bool { return b.PagesPerSec <= 0 },
			apply: func() { b.PagesPerSec = defaultBackfillPageRate },
		},
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

// intFieldDefault only fills non-positive values; an explicit 0 in the file
// is left for validate to reject.
func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
