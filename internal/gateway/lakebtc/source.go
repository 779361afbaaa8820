// Package lakebtc reads lakebtc.com public data. History is built from the
// recent trades list, one single-price candle per trade before bucketing.
package lakebtc

import (
	"context"
	"net/url"
	"strings"

	"pricewatch/internal/gateway/httpjson"
	"pricewatch/internal/market"
	symbolpkg "pricewatch/internal/pkg/symbol"
)

const ID = "lakebtc.com"

var tradesSchema = httpjson.MustCompile("lakebtc-trades", `{
	"type": "array",
	"items": {"type": "object", "required": ["date", "price"]}
}`)

type Source struct {
	cfg  Config
	rest *httpjson.Client
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	return &Source{
		cfg:  final,
		rest: httpjson.New(ID, final.RESTBaseURL, final.HTTPTimeout),
	}
}

func (s *Source) Name() string { return "LakeBTC.com" }

func (s *Source) Markets() []string { return []string{"BTCUSD", "BTCEUR"} }

// Ticker reads the combined ticker document, keyed by lowercase pair.
func (s *Source) Ticker(ctx context.Context, code string) (float64, error) {
	doc, err := s.rest.Get(ctx, httpjson.Request{Op: "ticker", Market: code, Path: "/api_v2/ticker"})
	if err != nil {
		return 0, err
	}
	pair := symbolpkg.Lower.ToExchange(code)
	entry := doc.Get(pair)
	if !entry.Exists() {
		return 0, s.rest.Malformed("ticker", "no ticker for "+strings.ToUpper(pair), nil)
	}
	price, ok := httpjson.Price(entry.Get("last"))
	if !ok {
		return 0, s.rest.Malformed("ticker", "last is not a price", nil)
	}
	return price, nil
}

func (s *Source) History(ctx context.Context, code string, periodSec int64, resolution int) ([]market.Candle, error) {
	doc, err := s.rest.Get(ctx, httpjson.Request{
		Op:     "bctrades",
		Market: code,
		Path:   "/api_v2/bctrades",
		Query:  url.Values{"symbol": {symbolpkg.Lower.ToExchange(code)}},
		Schema: tradesSchema,
	})
	if err != nil {
		return nil, err
	}
	rows := doc.Array()
	trades := make([]market.Trade, 0, len(rows))
	var newest int64
	for _, row := range rows {
		price, ok := httpjson.Price(row.Get("price"))
		if !ok {
			return nil, s.rest.Malformed("bctrades", "bad trade price", nil)
		}
		t := market.Trade{ID: row.Get("tid").Int(), Time: row.Get("date").Int(), Price: price}
		newest = max(newest, t.Time)
		trades = append(trades, t)
	}
	return market.CandlesFromTrades(trades, newest, periodSec, resolution), nil
}
