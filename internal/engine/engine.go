// Package engine polls the tracked markets on two cadences and keeps their
// state, alarms and presentation in step with the configuration.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"pricewatch/internal/config"
	"pricewatch/internal/currency"
	"pricewatch/internal/logger"
	"pricewatch/internal/market"
	"pricewatch/internal/presentation"
	"pricewatch/internal/scheduler"
	"pricewatch/internal/store"
)

// ProviderSource resolves source ids. Unknown ids fail with a
// *market.ConfigurationError.
type ProviderSource interface {
	Get(id string) (market.Provider, error)
}

// ConfigSource is the configuration store the engine follows.
type ConfigSource interface {
	Snapshot() config.Snapshot
	Subscribe(fn config.ChangeListener) func()
}

type AlarmEvaluator interface {
	Evaluate(ctx context.Context, id market.MarketID, price float64) []market.Alarm
}

type Converter interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}

// Options wires the engine's collaborators. Sink must not block; in the
// application it is a presentation.Dispatcher.
type Options struct {
	Providers ProviderSource
	Config    ConfigSource
	Alarms    AlarmEvaluator
	Converter Converter
	Sink      presentation.Sink
	State     *store.StateStore
}

type tracked struct {
	id       market.MarketID
	market   market.TrackedMarket
	provider market.Provider
}

// Engine is the polling coordinator. One goroutine (Run) owns the cadences
// and reconciliation; every fetch runs on its own goroutine.
type Engine struct {
	providers ProviderSource
	cfgs      ConfigSource
	alarms    AlarmEvaluator
	converter Converter
	sink      presentation.Sink
	state     *store.StateStore
	nowFn     func() time.Time

	mu      sync.RWMutex
	cfg     config.Config
	markets []tracked

	changes chan struct{}
	wg      sync.WaitGroup
}

func New(opts Options) *Engine {
	st := opts.State
	if st == nil {
		st = store.NewStateStore()
	}
	return &Engine{
		providers: opts.Providers,
		cfgs:      opts.Config,
		alarms:    opts.Alarms,
		converter: opts.Converter,
		sink:      opts.Sink,
		state:     st,
		nowFn:     time.Now,
		changes:   make(chan struct{}, 1),
	}
}

// State exposes the market state table for read-only consumers.
func (e *Engine) State() *store.StateStore { return e.state }

// Run reconciles the current configuration, fetches everything once and
// then follows both cadences until ctx is done. Configuration changes are
// coalesced and applied between ticks.
func (e *Engine) Run(ctx context.Context) error {
	unsubscribe := e.cfgs.Subscribe(func(config.Snapshot) {
		select {
		case e.changes <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	cfg := e.cfgs.Snapshot().Config
	e.Reconcile(ctx, cfg)

	tickerCad := scheduler.NewCadence("ticker", cfg.UpdateInterval())
	defer tickerCad.Stop()
	graphCad := scheduler.NewCadence("graph", cfg.GraphInterval())
	defer graphCad.Stop()

	e.TickTicker(ctx)
	e.TickGraph(ctx)

	for {
		select {
		case <-ctx.Done():
			e.wg.Wait()
			logger.Infof("Engine: stopped")
			return nil
		case <-e.changes:
			cfg = e.cfgs.Snapshot().Config
			e.Reconcile(ctx, cfg)
			tickerCad.Reset(cfg.UpdateInterval())
			graphCad.Reset(cfg.GraphInterval())
		case <-tickerCad.C():
			e.TickTicker(ctx)
		case <-graphCad.C():
			e.TickGraph(ctx)
		}
	}
}

// Wait blocks until every launched fetch has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// ReconcileResult counts what one reconciliation did.
type ReconcileResult struct {
	Added   int
	Removed int
	Kept    int
	Changed int
	Skipped int
}

// Reconcile brings the state table in line with cfg.Markets. New markets
// start empty, dropped ones lose their state and leave the sink, and kept
// ones have their cached state pushed again. A kept market whose display
// flags changed is cleared from the sink first and counts as Changed.
// Entries with a malformed id or an unknown source are skipped with a
// warning.
func (e *Engine) Reconcile(ctx context.Context, cfg config.Config) ReconcileResult {
	var res ReconcileResult
	next := make([]tracked, 0, len(cfg.Markets))
	seen := make(map[market.MarketID]bool, len(cfg.Markets))
	for _, tm := range cfg.Markets {
		id := tm.ID()
		if err := id.Validate(); err != nil {
			logger.Warnf("Engine: skip market %s: %v", id, err)
			res.Skipped++
			continue
		}
		if seen[id] {
			logger.Warnf("Engine: skip duplicate market %s", id)
			res.Skipped++
			continue
		}
		p, err := e.providers.Get(id.Source)
		if err != nil {
			logger.Warnf("Engine: skip market %s: %v", id, err)
			res.Skipped++
			continue
		}
		seen[id] = true
		next = append(next, tracked{id: id, market: tm, provider: p})
	}

	e.mu.Lock()
	prev := make(map[market.MarketID]market.TrackedMarket, len(e.markets))
	for _, t := range e.markets {
		prev[t.id] = t.market
	}
	e.cfg = cfg
	e.markets = next
	e.mu.Unlock()

	for _, id := range e.state.IDs() {
		if seen[id] {
			continue
		}
		e.state.Remove(id)
		e.sink.RemoveMarket(id)
		res.Removed++
	}
	for _, t := range next {
		if e.state.Ensure(t.id) {
			res.Added++
			continue
		}
		res.Kept++
		ticket, ok := e.state.Current(t.id)
		if old, known := prev[t.id]; known && !sameDisplay(old, t.market) {
			// results of fetches started under the old flags must not
			// reach the sink after it was cleared
			ticket, ok = e.state.Renew(t.id)
			e.sink.RemoveMarket(t.id)
			res.Changed++
		}
		if !ok {
			continue
		}
		if st, ok := e.state.Get(t.id); ok {
			e.publish(ctx, ticket, t, st, cfg)
		}
	}
	logger.Infof("Engine: reconciled markets added=%d removed=%d kept=%d changed=%d skipped=%d",
		res.Added, res.Removed, res.Kept, res.Changed, res.Skipped)
	return res
}

func sameDisplay(a, b market.TrackedMarket) bool {
	return a.Ticker == b.Ticker && a.Graph == b.Graph && a.Title == b.Title
}

func (e *Engine) current() (config.Config, []tracked) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg, e.markets
}

// TickTicker launches a ticker fetch for every polled market without one in
// flight and returns how many were launched.
func (e *Engine) TickTicker(ctx context.Context) int {
	cfg, markets := e.current()
	launched := 0
	for _, t := range markets {
		if !t.market.Polled() {
			continue
		}
		ticket, ok := e.state.TryAcquire(t.id, store.KindTicker)
		if !ok {
			logger.Debugf("Engine: ticker fetch still running for %s", t.id)
			continue
		}
		launched++
		e.wg.Add(1)
		go func(t tracked) {
			defer e.wg.Done()
			defer e.state.Release(ticket)
			e.fetchTicker(ctx, ticket, t, cfg)
		}(t)
	}
	return launched
}

// TickGraph launches a history fetch for every graph market without one in
// flight and returns how many were launched.
func (e *Engine) TickGraph(ctx context.Context) int {
	cfg, markets := e.current()
	launched := 0
	for _, t := range markets {
		if !t.market.Graph {
			continue
		}
		ticket, ok := e.state.TryAcquire(t.id, store.KindGraph)
		if !ok {
			logger.Debugf("Engine: graph fetch still running for %s", t.id)
			continue
		}
		launched++
		e.wg.Add(1)
		go func(t tracked) {
			defer e.wg.Done()
			defer e.state.Release(ticket)
			e.fetchGraph(ctx, ticket, t, cfg)
		}(t)
	}
	return launched
}

func (e *Engine) fetchTicker(ctx context.Context, ticket store.Ticket, t tracked, cfg config.Config) {
	price, err := t.provider.Ticker(ctx, t.id.Market)
	if err != nil {
		logger.Warnf("Engine: ticker fetch failed source=%s market=%s err=%v", t.id.Source, t.id.Market, err)
		return
	}
	now := e.nowFn().Unix()
	sample := market.TickerSample{Time: now, Price: price}
	st, ok := e.state.ApplyTicker(ticket, sample, now-int64(cfg.GraphPeriodSec))
	if !ok {
		logger.Debugf("Engine: dropped ticker result for %s", t.id)
		return
	}
	if e.alarms != nil && e.state.Valid(ticket) {
		e.alarms.Evaluate(ctx, t.id, price)
	}
	var points []presentation.GraphPoint
	if t.market.Graph {
		points = e.graphPoints(ctx, st, cfg)
	}
	formatted := currency.FormatPriceIn(price, t.id.Quote())
	published := e.state.Publish(ticket, func() {
		e.pushPrice(t, formatted)
		if t.market.Graph {
			e.sink.SetGraphData(t.id, points)
		}
	})
	if !published {
		logger.Debugf("Engine: dropped stale ticker push for %s", t.id)
	}
}

func (e *Engine) fetchGraph(ctx context.Context, ticket store.Ticket, t tracked, cfg config.Config) {
	candles, err := t.provider.History(ctx, t.id.Market, int64(cfg.GraphPeriodSec), cfg.GraphRes)
	if err != nil {
		logger.Warnf("Engine: graph fetch failed source=%s market=%s err=%v", t.id.Source, t.id.Market, err)
		return
	}
	now := e.nowFn().Unix()
	st, ok := e.state.ApplyHistory(ticket, market.Window(candles, now-int64(cfg.GraphPeriodSec)))
	if !ok {
		logger.Debugf("Engine: dropped graph result for %s", t.id)
		return
	}
	points := e.graphPoints(ctx, st, cfg)
	if !e.state.Publish(ticket, func() { e.sink.SetGraphData(t.id, points) }) {
		logger.Debugf("Engine: dropped stale graph push for %s", t.id)
	}
}

func (e *Engine) publish(ctx context.Context, ticket store.Ticket, t tracked, st store.MarketState, cfg config.Config) {
	var formatted string
	if st.HasTicker && t.market.Polled() {
		formatted = currency.FormatPriceIn(st.Ticker.Price, t.id.Quote())
	}
	var points []presentation.GraphPoint
	graph := t.market.Graph && len(st.Candles) > 0
	if graph {
		points = e.graphPoints(ctx, st, cfg)
	}
	e.state.Publish(ticket, func() {
		if formatted != "" {
			e.pushPrice(t, formatted)
		}
		if graph {
			e.sink.SetGraphData(t.id, points)
		}
	})
}

func (e *Engine) pushPrice(t tracked, formatted string) {
	if t.market.Ticker {
		e.sink.SetCurrentPrice(t.id, formatted)
	}
	if t.market.Title {
		if ts, ok := e.sink.(presentation.TitleSink); ok {
			ts.SetTitle(t.id, formatted)
		}
	}
}

// graphPoints converts the windowed candles into graph currency offsets.
// One conversion factor is fetched per push; on failure the graph stays in
// the quote currency.
func (e *Engine) graphPoints(ctx context.Context, st store.MarketState, cfg config.Config) []presentation.GraphPoint {
	factor := 1.0
	quote := st.ID.Quote()
	if e.converter != nil && cfg.GraphCurrency != "" && !strings.EqualFold(quote, cfg.GraphCurrency) {
		rate, err := e.converter.Convert(ctx, 1, quote, cfg.GraphCurrency)
		if err != nil {
			logger.Warnf("Engine: graph of %s left in %s: %v", st.ID, quote, err)
		} else {
			factor = rate
		}
	}
	now := e.nowFn().Unix()
	candles := market.Window(st.Candles, now-int64(cfg.GraphPeriodSec))
	return presentation.GraphPoints(candles, now, func(v float64) float64 {
		return v * factor
	})
}
