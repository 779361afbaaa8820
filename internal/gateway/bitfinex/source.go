// Package bitfinex reads the bitfinex.com v2 public ticker and candles.
package bitfinex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"pricewatch/internal/gateway/httpjson"
	"pricewatch/internal/market"
	symbolpkg "pricewatch/internal/pkg/symbol"
	"pricewatch/internal/scheduler"
)

const (
	ID = "bitfinex.com"

	// index of LAST_PRICE in the v2 ticker array
	tickerLastIdx = 6
	maxCandles    = 10000
)

// timeframes supported by the candles endpoint, shortest first.
var timeframes = []string{"1m", "5m", "15m", "30m", "1h", "3h", "6h", "12h", "1D", "7D", "14D", "1M"}

var (
	tickerSchema = httpjson.MustCompile("bitfinex-ticker", `{
		"type": "array",
		"minItems": 7,
		"items": {"type": "number"}
	}`)
	candlesSchema = httpjson.MustCompile("bitfinex-candles", `{
		"type": "array",
		"items": {"type": "array", "minItems": 3, "items": {"type": "number"}}
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

func (s *Source) Name() string { return "Bitfinex.com" }

func (s *Source) Markets() []string { return []string{"BTCUSD", "ETHUSD", "BTCEUR"} }

func (s *Source) Ticker(ctx context.Context, code string) (float64, error) {
	doc, err := s.rest.Get(ctx, httpjson.Request{
		Op:     "ticker",
		Market: code,
		Path:   "/v2/ticker/" + symbolpkg.Bitfinex.ToExchange(code),
		Schema: tickerSchema,
	})
	if err != nil {
		return 0, err
	}
	price, ok := httpjson.Price(doc.Get(strconv.Itoa(tickerLastIdx)))
	if !ok {
		return 0, s.rest.Malformed("ticker", "last price missing", nil)
	}
	return price, nil
}

// timeframeFor targets about a hundred upstream candles per period.
func timeframeFor(periodSec int64) string {
	return scheduler.PickInterval(time.Duration(periodSec/100)*time.Second, timeframes)
}

// candleLimit covers the whole period in upstream candles of timeframe tf.
func candleLimit(periodSec int64, tf string) int {
	dur, ok := scheduler.ParseIntervalDuration(tf)
	if !ok || dur <= 0 {
		return maxCandles
	}
	return min(int(time.Duration(periodSec)*time.Second/dur)+1, maxCandles)
}

// History asks for the newest candles first, so a capped page always holds
// the recent end of the period.
func (s *Source) History(ctx context.Context, code string, periodSec int64, resolution int) ([]market.Candle, error) {
	now := s.nowFn().Unix()
	tf := timeframeFor(periodSec)
	query := url.Values{}
	query.Set("start", strconv.FormatInt((now-periodSec)*1000, 10))
	query.Set("end", strconv.FormatInt(now*1000, 10))
	query.Set("limit", strconv.Itoa(candleLimit(periodSec, tf)))
	query.Set("sort", "-1")
	doc, err := s.rest.Get(ctx, httpjson.Request{
		Op:     "candles",
		Market: code,
		Path:   fmt.Sprintf("/v2/candles/trade:%s:%s/hist", tf, symbolpkg.Bitfinex.ToExchange(code)),
		Query:  query,
		Schema: candlesSchema,
	})
	if err != nil {
		return nil, err
	}
	rows := doc.Array()
	candles := make([]market.Candle, 0, len(rows))
	for _, row := range rows {
		// [MTS, OPEN, CLOSE, HIGH, LOW, VOLUME]
		cols := row.Array()
		candles = append(candles, market.Candle{
			Time:  cols[0].Int() / 1000,
			Open:  cols[1].Float(),
			Close: cols[2].Float(),
		})
	}
	return market.Shape(candles, now, periodSec, resolution), nil
}
