package market

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"pricewatch/internal/logger"

	"golang.org/x/time/rate"
)

const (
	DefaultTIDStep  = 300
	DefaultMaxPages = 200
)

// TradePager fetches one page of raw trades. A nil since asks for the newest
// page; otherwise the page holds trades with id greater than *since.
type TradePager interface {
	FetchTrades(ctx context.Context, market string, since *int64) ([]Trade, error)
}

type TradePagerFunc func(ctx context.Context, market string, since *int64) ([]Trade, error)

func (f TradePagerFunc) FetchTrades(ctx context.Context, market string, since *int64) ([]Trade, error) {
	return f(ctx, market, since)
}

type BackfillOptions struct {
	// TIDStep is the backward stride in trade ids per iteration.
	TIDStep int64
	// MaxPages bounds the page requests of a single call.
	MaxPages int
	// Limiter paces page requests; nil means unpaced.
	Limiter *rate.Limiter
}

func (o BackfillOptions) withDefaults() BackfillOptions {
	if o.TIDStep <= 0 {
		o.TIDStep = DefaultTIDStep
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	return o
}

// BackfillCache keeps every trade seen for one market and extends its
// coverage backwards on demand. Coverage only grows, and only by whole
// strides: an interrupted stride keeps its cursor so the next call resumes
// where it stopped instead of leaving an id gap.
type BackfillCache struct {
	source string
	market string
	pager  TradePager
	opts   BackfillOptions

	mu      sync.Mutex
	trades  map[int64]Trade
	minID   int64 // every id above minID up to maxID is cached
	maxID   int64
	minTime int64
	maxTime int64
	pages   int
	pending *stride
}

// stride is one backward extension of the covered id range.
type stride struct {
	anchor  int64
	cursor  int64
	minTime int64
}

func NewBackfillCache(source, market string, pager TradePager, opts BackfillOptions) *BackfillCache {
	return &BackfillCache{
		source:  source,
		market:  market,
		pager:   pager,
		opts:    opts.withDefaults(),
		trades:  make(map[int64]Trade),
		minID:   math.MaxInt64,
		maxID:   -1,
		minTime: math.MaxInt64,
		maxTime: math.MinInt64,
	}
}

// TradesSince returns every cached trade with Time >= since in ascending
// order, paging older trades in until the cache covers since.
func (c *BackfillCache) TradesSince(ctx context.Context, since int64) ([]Trade, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	budget := c.opts.MaxPages
	if c.maxID < 0 {
		page, err := c.fetchPage(ctx, nil, &budget)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return nil, nil
		}
		for _, t := range page {
			c.minID = min(c.minID, t.ID)
			c.minTime = min(c.minTime, t.Time)
		}
	}

	for c.minTime > since {
		if c.minID <= 0 {
			// The source has nothing older.
			break
		}
		if err := c.extend(ctx, &budget); err != nil {
			return nil, err
		}
	}
	return c.collect(since), nil
}

// extend covers the ids between the next anchor and minID.
func (c *BackfillCache) extend(ctx context.Context, budget *int) error {
	if c.pending == nil {
		anchor := max(c.minID-c.opts.TIDStep, 0)
		c.pending = &stride{anchor: anchor, cursor: anchor, minTime: math.MaxInt64}
	}
	st := c.pending
	for st.cursor < c.minID {
		since := st.cursor
		page, err := c.fetchPage(ctx, &since, budget)
		if err != nil {
			return err
		}
		top := st.cursor
		for _, t := range page {
			top = max(top, t.ID)
			st.minTime = min(st.minTime, t.Time)
		}
		if top <= st.cursor {
			break
		}
		st.cursor = top
	}
	c.minID = st.anchor
	c.minTime = min(c.minTime, st.minTime)
	c.pending = nil
	return nil
}

// CatchUp pages forward from the newest cached id until the source has
// nothing newer.
func (c *BackfillCache) CatchUp(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxID < 0 {
		return nil
	}
	budget := c.opts.MaxPages
	return c.fillRange(ctx, c.maxID, math.MaxInt64, &budget)
}

// Coverage reports the covered id and time span.
func (c *BackfillCache) Coverage() (minID, maxID, minTime, maxTime int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxID < 0 {
		return 0, 0, 0, 0, false
	}
	return c.minID, c.maxID, c.minTime, c.maxTime, true
}

func (c *BackfillCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.trades)
}

// Pages counts upstream page requests over the cache lifetime.
func (c *BackfillCache) Pages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages
}

// fillRange pages forward from since until the page top reaches until or the
// source stops advancing. merge keeps maxID current, so an interrupted
// forward fill resumes from the last merged id.
func (c *BackfillCache) fillRange(ctx context.Context, since, until int64, budget *int) error {
	cursor := since
	for cursor < until {
		page, err := c.fetchPage(ctx, &cursor, budget)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		top := cursor
		for _, t := range page {
			if t.ID > top {
				top = t.ID
			}
		}
		if top <= cursor {
			return nil
		}
		cursor = top
	}
	return nil
}

func (c *BackfillCache) fetchPage(ctx context.Context, since *int64, budget *int) ([]Trade, error) {
	if *budget <= 0 {
		return nil, fmt.Errorf("%s %s: %w after %d pages", c.source, c.market, ErrBackfillExhausted, c.opts.MaxPages)
	}
	*budget--
	if c.opts.Limiter != nil {
		if err := c.opts.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	c.pages++
	page, err := c.pager.FetchTrades(ctx, c.market, since)
	if err != nil {
		return nil, err
	}
	c.merge(page)
	if len(page) > 0 {
		anchor := "newest"
		if since != nil {
			anchor = fmt.Sprintf("since=%d", *since)
		}
		logger.Debugf("[backfill] %s %s page %s trades=%d cached=%d", c.source, c.market, anchor, len(page), len(c.trades))
	}
	return page, nil
}

func (c *BackfillCache) merge(page []Trade) {
	for _, t := range page {
		c.trades[t.ID] = t
		if t.ID > c.maxID {
			c.maxID = t.ID
		}
		if t.Time > c.maxTime {
			c.maxTime = t.Time
		}
	}
}

func (c *BackfillCache) collect(since int64) []Trade {
	out := make([]Trade, 0, len(c.trades))
	for _, t := range c.trades {
		if t.Time >= since {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out
}
