// Package bitbay reads bitbay.net public data. Its trades endpoint only pages
// forward by trade id, so history is rebuilt through a market.BackfillCache
// per market.
package bitbay

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pricewatch/internal/gateway/httpjson"
	"pricewatch/internal/logger"
	"pricewatch/internal/market"
	symbolpkg "pricewatch/internal/pkg/symbol"
)

const ID = "bitbay.net"

var (
	tickerSchema = httpjson.MustCompile("bitbay-ticker", `{
		"type": "object",
		"required": ["last"],
		"properties": {"last": {"type": ["string", "number"]}}
	}`)
	tradesSchema = httpjson.MustCompile("bitbay-trades", `{
		"type": "array",
		"items": {"type": "object", "required": ["tid", "date", "price"]}
	}`)
)

type Source struct {
	cfg     Config
	rest    *httpjson.Client
	limiter *rate.Limiter
	nowFn   func() time.Time

	mu     sync.Mutex
	caches map[string]*market.BackfillCache
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	var limiter *rate.Limiter
	if final.PagesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(final.PagesPerSec), 1)
	}
	return &Source{
		cfg:     final,
		rest:    httpjson.New(ID, final.RESTBaseURL, final.HTTPTimeout),
		limiter: limiter,
		nowFn:   time.Now,
		caches:  make(map[string]*market.BackfillCache),
	}
}

func (s *Source) Name() string { return "BitBay.net" }

func (s *Source) Markets() []string { return []string{"BTCPLN", "BTCEUR", "ETHPLN"} }

func (s *Source) Ticker(ctx context.Context, code string) (float64, error) {
	doc, err := s.rest.Get(ctx, httpjson.Request{
		Op:     "ticker",
		Market: code,
		Path:   fmt.Sprintf("/API/Public/%s/ticker.json", symbolpkg.Normalize(code)),
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

// FetchTrades loads one trades page: newest first without since, otherwise
// the trades with tid greater than *since.
func (s *Source) FetchTrades(ctx context.Context, code string, since *int64) ([]market.Trade, error) {
	query := url.Values{}
	if since != nil {
		query.Set("since", strconv.FormatInt(*since, 10))
	} else {
		query.Set("sort", "desc")
	}
	doc, err := s.rest.Get(ctx, httpjson.Request{
		Op:     "trades",
		Market: code,
		Path:   fmt.Sprintf("/API/Public/%s/trades.json", symbolpkg.Normalize(code)),
		Query:  query,
		Schema: tradesSchema,
	})
	if err != nil {
		return nil, err
	}
	rows := doc.Array()
	trades := make([]market.Trade, 0, len(rows))
	for _, row := range rows {
		price, ok := httpjson.Price(row.Get("price"))
		tid := row.Get("tid").Int()
		ts := row.Get("date").Int()
		if !ok || tid <= 0 || ts <= 0 {
			return nil, s.rest.Malformed("trades", "bad trade row", nil)
		}
		trades = append(trades, market.Trade{ID: tid, Time: ts, Price: price})
	}
	return trades, nil
}

func (s *Source) cache(code string) *market.BackfillCache {
	code = symbolpkg.Normalize(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[code]
	if !ok {
		c = market.NewBackfillCache(ID, code, s, market.BackfillOptions{
			TIDStep:  s.cfg.TIDStep,
			MaxPages: s.cfg.MaxPages,
			Limiter:  s.limiter,
		})
		s.caches[code] = c
	}
	return c
}

// History extends the trade cache forward to the newest trade and backwards
// to now-period, then aggregates. A call that runs out of page budget fails
// but keeps its progress for the next one.
func (s *Source) History(ctx context.Context, code string, periodSec int64, resolution int) ([]market.Candle, error) {
	cache := s.cache(code)
	if cache.Len() > 0 {
		if err := cache.CatchUp(ctx); err != nil {
			return nil, err
		}
	}
	now := s.nowFn().Unix()
	trades, err := cache.TradesSince(ctx, now-periodSec)
	if err != nil {
		return nil, err
	}
	minID, maxID, minTime, maxTime, _ := cache.Coverage()
	logger.Debugf("[%s] %s trades tids %d-%d, timestamps %d-%d (%d cached, %d pages)",
		ID, code, minID, maxID, minTime, maxTime, cache.Len(), cache.Pages())
	return market.CandlesFromTrades(trades, now, periodSec, resolution), nil
}
