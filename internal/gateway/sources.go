package gateway

import (
	"pricewatch/internal/config"
	"pricewatch/internal/gateway/binance"
	"pricewatch/internal/gateway/bitbay"
	"pricewatch/internal/gateway/bitfinex"
	"pricewatch/internal/gateway/bitmarket"
	"pricewatch/internal/gateway/bitstamp"
	"pricewatch/internal/gateway/gate"
	"pricewatch/internal/gateway/lakebtc"
	"pricewatch/internal/gateway/mock"
	"pricewatch/internal/market"
)

// NewDefaultRegistry registers every built-in source.
func NewDefaultRegistry(cfg config.Config) *Registry {
	r := NewRegistry(cfg.Sources, cfg.Backfill)
	r.Register(bitbay.ID, func(src config.SourceConfig, bf config.BackfillConfig) (market.Provider, error) {
		return bitbay.New(bitbay.Config{
			RESTBaseURL: src.RESTBaseURL,
			HTTPTimeout: src.Timeout(),
			TIDStep:     int64(bf.TIDStep),
			MaxPages:    bf.MaxPages,
			PagesPerSec: bf.PagesPerSec,
		}), nil
	}, false)
	r.Register(bitmarket.ID, func(src config.SourceConfig, _ config.BackfillConfig) (market.Provider, error) {
		return bitmarket.New(bitmarket.Config{RESTBaseURL: src.RESTBaseURL, HTTPTimeout: src.Timeout()}), nil
	}, false)
	r.Register(bitstamp.ID, func(src config.SourceConfig, _ config.BackfillConfig) (market.Provider, error) {
		return bitstamp.New(bitstamp.Config{RESTBaseURL: src.RESTBaseURL, HTTPTimeout: src.Timeout()}), nil
	}, false)
	r.Register(bitfinex.ID, func(src config.SourceConfig, _ config.BackfillConfig) (market.Provider, error) {
		return bitfinex.New(bitfinex.Config{RESTBaseURL: src.RESTBaseURL, HTTPTimeout: src.Timeout()}), nil
	}, false)
	r.Register(lakebtc.ID, func(src config.SourceConfig, _ config.BackfillConfig) (market.Provider, error) {
		return lakebtc.New(lakebtc.Config{RESTBaseURL: src.RESTBaseURL, HTTPTimeout: src.Timeout()}), nil
	}, false)
	r.Register(binance.ID, func(src config.SourceConfig, _ config.BackfillConfig) (market.Provider, error) {
		return binance.New(binance.Config{
			RESTBaseURL:  src.RESTBaseURL,
			HTTPTimeout:  src.Timeout(),
			ProxyEnabled: src.ProxyURL != "",
			RESTProxyURL: src.ProxyURL,
		})
	}, false)
	r.Register(gate.ID, func(src config.SourceConfig, _ config.BackfillConfig) (market.Provider, error) {
		return gate.New(gate.Config{
			RESTBaseURL:  src.RESTBaseURL,
			HTTPTimeout:  src.Timeout(),
			ProxyEnabled: src.ProxyURL != "",
			RESTProxyURL: src.ProxyURL,
		})
	}, false)
	r.Register(mock.ID, func(config.SourceConfig, config.BackfillConfig) (market.Provider, error) {
		return mock.New(mock.DefaultConfig()), nil
	}, true)
	return r
}
