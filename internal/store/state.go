// Package store holds the per-market runtime state shared by the fetch
// workers and the presentation layer.
package store

import (
	"sort"
	"sync"
	"sync/atomic"

	"pricewatch/internal/market"
)

// Kind names one of the two independent fetch cadences.
type Kind int

const (
	KindTicker Kind = iota
	KindGraph
	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindTicker:
		return "ticker"
	case KindGraph:
		return "graph"
	default:
		return "unknown"
	}
}

// MarketState is the cached knowledge about one market.
type MarketState struct {
	ID        market.MarketID
	Ticker    market.TickerSample
	HasTicker bool
	Candles   []market.Candle
}

func (s MarketState) clone() MarketState {
	out := s
	out.Candles = append([]market.Candle(nil), s.Candles...)
	return out
}

// Ticket is the right to run one fetch. Results are only applied while the
// market still has the generation the ticket was issued for, and only
// published while its publish generation is unchanged as well.
type Ticket struct {
	ID   market.MarketID
	Kind Kind
	Gen  uint64
	Pub  uint64
}

type entry struct {
	state    MarketState
	gen      uint64
	pub      uint64
	inflight [kindCount]bool
}

type stateShard struct {
	mu   sync.RWMutex
	data map[market.MarketID]*entry
}

const defaultShardCount = 32

// StateStore is a sharded MarketState table. Writes for one market are
// serialized by its shard lock; other markets proceed in parallel.
type StateStore struct {
	shards []stateShard
	gens   atomic.Uint64
}

func NewStateStore() *StateStore {
	return newStateStore(defaultShardCount)
}

func newStateStore(shards int) *StateStore {
	if shards <= 0 {
		shards = 1
	}
	out := &StateStore{shards: make([]stateShard, shards)}
	for i := range out.shards {
		out.shards[i] = stateShard{data: make(map[market.MarketID]*entry)}
	}
	return out
}

func (s *StateStore) shardFor(id market.MarketID) *stateShard {
	idx := hashKey(id.String()) % uint32(len(s.shards))
	return &s.shards[idx]
}

// Ensure creates empty state for id unless it already exists.
func (s *StateStore) Ensure(id market.MarketID) bool {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.data[id]; ok {
		return false
	}
	gen := s.gens.Add(1)
	sh.data[id] = &entry{state: MarketState{ID: id}, gen: gen, pub: gen}
	return true
}

// Remove discards the state of id. Fetches still running for it complete but
// their results are dropped. Remove waits for a Publish of id in progress.
func (s *StateStore) Remove(id market.MarketID) bool {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.data[id]; !ok {
		return false
	}
	delete(sh.data, id)
	return true
}

func (s *StateStore) Get(id market.MarketID) (MarketState, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.data[id]
	if !ok {
		return MarketState{}, false
	}
	return e.state.clone(), true
}

// IDs lists the tracked markets in a stable order.
func (s *StateStore) IDs() []market.MarketID {
	var out []market.MarketID
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for id := range sh.data {
			out = append(out, id)
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// TryAcquire sets the in-flight flag of (id, kind). It fails when the market
// is unknown or a fetch of that kind is already running.
func (s *StateStore) TryAcquire(id market.MarketID, kind Kind) (Ticket, bool) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.data[id]
	if !ok || e.inflight[kind] {
		return Ticket{}, false
	}
	e.inflight[kind] = true
	return Ticket{ID: id, Kind: kind, Gen: e.gen, Pub: e.pub}, true
}

// Current returns a ticket for publishing the cached state of id.
func (s *StateStore) Current(id market.MarketID) (Ticket, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.data[id]
	if !ok {
		return Ticket{}, false
	}
	return Ticket{ID: id, Gen: e.gen, Pub: e.pub}, true
}

// Renew starts a new publish generation for id. Tickets issued before it
// keep applying results but can no longer publish them.
func (s *StateStore) Renew(id market.MarketID) (Ticket, bool) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.data[id]
	if !ok {
		return Ticket{}, false
	}
	e.pub = s.gens.Add(1)
	return Ticket{ID: id, Gen: e.gen, Pub: e.pub}, true
}

// Valid reports whether results of t would still be applied.
func (s *StateStore) Valid(t Ticket) bool {
	sh := s.shardFor(t.ID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.data[t.ID]
	return ok && e.gen == t.Gen
}

// Publish runs fn while t is current for both generations. fn runs under
// the shard read lock, so it must not block or call back into the store.
func (s *StateStore) Publish(t Ticket, fn func()) bool {
	sh := s.shardFor(t.ID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.data[t.ID]
	if !ok || e.gen != t.Gen || e.pub != t.Pub {
		return false
	}
	fn()
	return true
}

// Release clears the in-flight flag the ticket set.
func (s *StateStore) Release(t Ticket) {
	sh := s.shardFor(t.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok := sh.data[t.ID]; ok && e.gen == t.Gen {
		e.inflight[t.Kind] = false
	}
}

// InFlight reports whether a fetch of kind is running for id.
func (s *StateStore) InFlight(id market.MarketID, kind Kind) bool {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.data[id]
	return ok && e.inflight[kind]
}

// ApplyTicker records a ticker sample, appends its point candle and prunes
// candles older than windowStart.
func (s *StateStore) ApplyTicker(t Ticket, sample market.TickerSample, windowStart int64) (MarketState, bool) {
	sh := s.shardFor(t.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.data[t.ID]
	if !ok || e.gen != t.Gen {
		return MarketState{}, false
	}
	e.state.Ticker = sample
	e.state.HasTicker = true
	candles := append(e.state.Candles, market.PointCandle(sample.Time, sample.Price))
	e.state.Candles = market.Window(candles, windowStart)
	return e.state.clone(), true
}

// ApplyHistory replaces the candle buffer. The latest ticker sample is put
// back on top when it is newer than the fetched history.
func (s *StateStore) ApplyHistory(t Ticket, candles []market.Candle) (MarketState, bool) {
	sh := s.shardFor(t.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.data[t.ID]
	if !ok || e.gen != t.Gen {
		return MarketState{}, false
	}
	buf := append([]market.Candle(nil), candles...)
	if e.state.HasTicker {
		n := len(buf)
		if n == 0 || buf[n-1].Time < e.state.Ticker.Time {
			buf = append(buf, market.PointCandle(e.state.Ticker.Time, e.state.Ticker.Price))
		}
	}
	e.state.Candles = buf
	return e.state.clone(), true
}

func hashKey(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	var h uint32 = offset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
