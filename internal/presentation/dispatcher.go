package presentation

import (
	"context"
	"sync"

	"pricewatch/internal/logger"
	"pricewatch/internal/market"
)

type updateKind int

const (
	updatePrice updateKind = iota
	updateGraph
	updateTitle
	updateRemove
)

type pendingKey struct {
	id   market.MarketID
	kind updateKind
}

type update struct {
	key    pendingKey
	text   string
	points []GraphPoint
}

// Dispatcher is an asynchronous Sink in front of another Sink. Producers
// never block: pending updates are coalesced per market and kind, so only
// the newest value of each is delivered, in first-queued order. A single
// Run goroutine delivers to the wrapped sink.
type Dispatcher struct {
	sink Sink

	mu      sync.Mutex
	pending map[pendingKey]update
	order   []pendingKey
	wake    chan struct{}
}

func NewDispatcher(sink Sink) *Dispatcher {
	return &Dispatcher{
		sink:    sink,
		pending: make(map[pendingKey]update),
		wake:    make(chan struct{}, 1),
	}
}

func (d *Dispatcher) SetCurrentPrice(id market.MarketID, formatted string) {
	d.push(update{key: pendingKey{id, updatePrice}, text: formatted})
}

func (d *Dispatcher) SetGraphData(id market.MarketID, points []GraphPoint) {
	d.push(update{key: pendingKey{id, updateGraph}, points: append([]GraphPoint(nil), points...)})
}

func (d *Dispatcher) SetTitle(id market.MarketID, formatted string) {
	d.push(update{key: pendingKey{id, updateTitle}, text: formatted})
}

// RemoveMarket drops queued updates of id and queues its removal.
func (d *Dispatcher) RemoveMarket(id market.MarketID) {
	d.mu.Lock()
	kept := d.order[:0]
	for _, k := range d.order {
		if k.id == id {
			delete(d.pending, k)
			continue
		}
		kept = append(kept, k)
	}
	d.order = kept
	d.mu.Unlock()
	d.push(update{key: pendingKey{id, updateRemove}})
}

func (d *Dispatcher) push(u update) {
	d.mu.Lock()
	if _, queued := d.pending[u.key]; !queued {
		d.order = append(d.order, u.key)
	}
	d.pending[u.key] = u
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Pending reports how many updates are waiting for delivery.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

// Run delivers updates until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.wake:
			d.Flush()
		}
	}
}

// Flush delivers everything queued so far on the calling goroutine. It must
// not run concurrently with Run's own deliveries.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	batch := make([]update, 0, len(d.order))
	for _, k := range d.order {
		batch = append(batch, d.pending[k])
	}
	d.order = nil
	d.pending = make(map[pendingKey]update)
	d.mu.Unlock()

	for _, u := range batch {
		d.deliver(u)
	}
}

func (d *Dispatcher) deliver(u update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("presentation sink panic on %s: %v", u.key.id, r)
		}
	}()
	switch u.key.kind {
	case updatePrice:
		d.sink.SetCurrentPrice(u.key.id, u.text)
	case updateGraph:
		d.sink.SetGraphData(u.key.id, u.points)
	case updateTitle:
		if ts, ok := d.sink.(TitleSink); ok {
			ts.SetTitle(u.key.id, u.text)
		}
	case updateRemove:
		d.sink.RemoveMarket(u.key.id)
	}
}
