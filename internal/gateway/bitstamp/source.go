// Package bitstamp reads bitstamp.net public ticker and transaction data.
// The exchange has no candle endpoint, so history is aggregated from raw
// transactions.
package bitstamp

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"pricewatch/internal/gateway/httpjson"
	"pricewatch/internal/logger"
	"pricewatch/internal/market"
	symbolpkg "pricewatch/internal/pkg/symbol"
)

const ID = "bitstamp.net"

var (
	tickerSchema = httpjson.MustCompile("bitstamp-ticker", `{
		"type": "object",
		"required": ["last"],
		"properties": {"last": {"type": ["string", "number"]}}
	}`)
	transactionsSchema = httpjson.MustCompile("bitstamp-transactions", `{
		"type": "array",
		"items": {"type": "object", "required": ["date", "price"]}
	}`)
)

type Source struct {
	cfg   Config
	rest  *httpjson.Client
	nowFn func() time.Time
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	return &Source{
		cfg:   final,
		rest:  httpjson.New(ID, final.RESTBaseURL, final.HTTPTimeout),
		nowFn: time.Now,
	}
}

func (s *Source) Name() string { return "Bitstamp.net" }

func (s *Source) Markets() []string { return []string{"BTCUSD", "BTCEUR", "ETHUSD"} }

func (s *Source) Ticker(ctx context.Context, code string) (float64, error) {
	pair := symbolpkg.Lower.ToExchange(code)
	doc, err := s.rest.Get(ctx, httpjson.Request{
		Op:     "ticker",
		Market: code,
		Path:   fmt.Sprintf("/api/v2/ticker/%s/", pair),
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

// transactionsWindow picks the narrowest transactions window covering the
// requested period.
func transactionsWindow(periodSec int64) string {
	switch {
	case periodSec <= 60:
		return "minute"
	case periodSec <= 3600:
		return "hour"
	default:
		return "day"
	}
}

func (s *Source) History(ctx context.Context, code string, periodSec int64, resolution int) ([]market.Candle, error) {
	window := transactionsWindow(periodSec)
	logger.Debugf("[%s] loading %s transactions for %s", ID, window, code)
	doc, err := s.rest.Get(ctx, httpjson.Request{
		Op:     "transactions",
		Market: code,
		Path:   fmt.Sprintf("/api/v2/transactions/%s/", symbolpkg.Lower.ToExchange(code)),
		Query:  url.Values{"time": {window}},
		Schema: transactionsSchema,
	})
	if err != nil {
		return nil, err
	}
	trades, err := s.parseTrades(doc)
	if err != nil {
		return nil, err
	}
	return market.CandlesFromTrades(trades, s.nowFn().Unix(), periodSec, resolution), nil
}

func (s *Source) parseTrades(doc gjson.Result) ([]market.Trade, error) {
	rows := doc.Array()
	trades := make([]market.Trade, 0, len(rows))
	for _, row := range rows {
		price, ok := httpjson.Price(row.Get("price"))
		ts := row.Get("date").Int()
		if !ok || ts <= 0 {
			return nil, s.rest.Malformed("transactions", "bad transaction row", nil)
		}
		trades = append(trades, market.Trade{ID: row.Get("tid").Int(), Time: ts, Price: price})
	}
	return trades, nil
}
