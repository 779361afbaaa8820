package presentation

import (
	"sort"
	"sync"
	"time"

	"pricewatch/internal/market"
)

// BoardEntry is what the board shows for one market.
type BoardEntry struct {
	Exchange  string       `json:"exchange"`
	Market    string       `json:"market"`
	Price     string       `json:"price,omitempty"`
	Graph     []GraphPoint `json:"graph,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Headline is the price shown in window titles and indicators.
type Headline struct {
	Exchange string `json:"exchange"`
	Market   string `json:"market"`
	Price    string `json:"price"`
}

// Board is an in-memory Sink read by the status API.
type Board struct {
	mu       sync.RWMutex
	entries  map[market.MarketID]*BoardEntry
	headline *Headline
	nowFn    func() time.Time
}

func NewBoard() *Board {
	return &Board{entries: make(map[market.MarketID]*BoardEntry), nowFn: time.Now}
}

func (b *Board) entry(id market.MarketID) *BoardEntry {
	e, ok := b.entries[id]
	if !ok {
		e = &BoardEntry{Exchange: id.Source, Market: id.Market}
		b.entries[id] = e
	}
	return e
}

func (b *Board) SetCurrentPrice(id market.MarketID, formatted string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(id)
	e.Price = formatted
	e.UpdatedAt = b.nowFn()
}

func (b *Board) SetGraphData(id market.MarketID, points []GraphPoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(id)
	e.Graph = append([]GraphPoint(nil), points...)
	e.UpdatedAt = b.nowFn()
}

func (b *Board) SetTitle(id market.MarketID, formatted string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.headline = &Headline{Exchange: id.Source, Market: id.Market, Price: formatted}
}

func (b *Board) RemoveMarket(id market.MarketID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, id)
	if b.headline != nil && b.headline.Exchange == id.Source && b.headline.Market == id.Market {
		b.headline = nil
	}
}

func (b *Board) Entry(id market.MarketID) (BoardEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[id]
	if !ok {
		return BoardEntry{}, false
	}
	out := *e
	out.Graph = append([]GraphPoint(nil), e.Graph...)
	return out, true
}

// Entries lists every market without graph data, ordered by exchange and
// market.
func (b *Board) Entries() []BoardEntry {
	b.mu.RLock()
	out := make([]BoardEntry, 0, len(b.entries))
	for _, e := range b.entries {
		row := *e
		row.Graph = nil
		out = append(out, row)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Exchange != out[j].Exchange {
			return out[i].Exchange < out[j].Exchange
		}
		return out[i].Market < out[j].Market
	})
	return out
}

func (b *Board) Headline() (Headline, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.headline == nil {
		return Headline{}, false
	}
	return *b.headline, true
}
