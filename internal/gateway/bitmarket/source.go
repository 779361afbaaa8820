// Package bitmarket reads bitmarket.pl public ticker and graph data.
package bitmarket

import (
	"context"
	"fmt"

	"pricewatch/internal/gateway/httpjson"
	"pricewatch/internal/market"
	symbolpkg "pricewatch/internal/pkg/symbol"
)

const ID = "bitmarket.pl"

const (
	minute = 60
	hour   = 60 * minute
	day    = 24 * hour
)

// graphRanges maps the longest period each graph file covers to its name.
var graphRanges = []struct {
	maxSec int64
	code   string
}{
	{90 * minute, "90m"},
	{6 * hour, "6h"},
	{1 * day, "1d"},
	{7 * day, "7d"},
	{30 * day, "1m"},
	{90 * day, "3m"},
	{180 * day, "6m"},
}

var (
	tickerSchema = httpjson.MustCompile("bitmarket-ticker", `{
		"type": "object",
		"required": ["last"]
	}`)
	graphSchema = httpjson.MustCompile("bitmarket-graph", `{
		"type": "array",
		"items": {"type": "object", "required": ["time", "open", "close"]}
	}`)
)

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

func (s *Source) Name() string { return "BitMarket.pl" }

func (s *Source) Markets() []string { return []string{"BTCPLN", "BTCEUR", "LTCPLN"} }

func (s *Source) Ticker(ctx context.Context, code string) (float64, error) {
	doc, err := s.rest.Get(ctx, httpjson.Request{
		Op:     "ticker",
		Market: code,
		Path:   fmt.Sprintf("/json/%s/ticker.json", symbolpkg.Normalize(code)),
		Schema: tickerSchema,
	})
	if err != nil {
		return 0, err
	}
	price, ok := httpjson.Price(doc.Get("last"))
	if !ok {
		return 0, s.rest.Malformed("ticker", "last is not a price", nil)
	}
	return price, nil
}

func graphRange(periodSec int64) string {
	for _, r := range graphRanges {
		if periodSec <= r.maxSec {
			return r.code
		}
	}
	return "1y"
}

// History windows the graph file relative to its newest point, since the
// files are regenerated on the exchange's own schedule.
func (s *Source) History(ctx context.Context, code string, periodSec int64, resolution int) ([]market.Candle, error) {
	doc, err := s.rest.Get(ctx, httpjson.Request{
		Op:     "graph",
		Market: code,
		Path:   fmt.Sprintf("/graphs/%s/%s.json", symbolpkg.Normalize(code), graphRange(periodSec)),
		Schema: graphSchema,
	})
	if err != nil {
		return nil, err
	}
	rows := doc.Array()
	if len(rows) == 0 {
		return nil, nil
	}
	candles := make([]market.Candle, 0, len(rows))
	var newest int64
	for _, row := range rows {
		open, okOpen := httpjson.Price(row.Get("open"))
		cl, okClose := httpjson.Price(row.Get("close"))
		if !okOpen || !okClose {
			return nil, s.rest.Malformed("graph", "bad graph entry", nil)
		}
		c := market.Candle{Time: row.Get("time").Int(), Open: open, Close: cl}
		newest = max(newest, c.Time)
		candles = append(candles, c)
	}
	return market.Shape(candles, newest, periodSec, resolution), nil
}
