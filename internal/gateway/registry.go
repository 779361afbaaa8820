package gateway

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"pricewatch/internal/config"
	"pricewatch/internal/market"
)

// Builder constructs one provider from its per-source settings.
type Builder func(src config.SourceConfig, backfill config.BackfillConfig) (market.Provider, error)

type entry struct {
	id     string
	build  Builder
	hidden bool
}

// Registry resolves source ids to provider instances. Instances are built
// lazily and cached for the registry's lifetime, so per-source state such as
// trade caches survives reconfiguration.
type Registry struct {
	mu        sync.Mutex
	entries   map[string]entry
	order     []string
	instances map[string]market.Provider
	sources   map[string]config.SourceConfig
	backfill  config.BackfillConfig
}

func NewRegistry(sources map[string]config.SourceConfig, backfill config.BackfillConfig) *Registry {
	r := &Registry{
		entries:   make(map[string]entry),
		instances: make(map[string]market.Provider),
		sources:   make(map[string]config.SourceConfig, len(sources)),
		backfill:  backfill,
	}
	for id, src := range sources {
		r.sources[normalizeID(id)] = src
	}
	return r
}

// Register adds a source. Hidden sources resolve through Get but are left out
// of List.
func (r *Registry) Register(id string, build Builder, hidden bool) {
	id = normalizeID(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		r.order = append(r.order, id)
	}
	r.entries[id] = entry{id: id, build: build, hidden: hidden}
	delete(r.instances, id)
}

// Get returns the cached provider for id, building it on first use.
func (r *Registry) Get(id string) (market.Provider, error) {
	id = normalizeID(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.instances[id]; ok {
		return p, nil
	}
	e, ok := r.entries[id]
	if !ok {
		return nil, &market.ConfigurationError{Field: "exchange", Value: id, Reason: "unknown source"}
	}
	p, err := e.build(r.sources[id], r.backfill)
	if err != nil {
		return nil, fmt.Errorf("build source %s: %w", id, err)
	}
	r.instances[id] = p
	return p, nil
}

// List returns the ids selectable in configuration, in registration order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if !r.entries[id].hidden {
			out = append(out, id)
		}
	}
	return out
}

// SourceInfo describes one listed source.
type SourceInfo struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Markets []string `json:"markets"`
}

// Describe builds every listed source and reports its metadata. Sources that
// fail to build are skipped.
func (r *Registry) Describe() []SourceInfo {
	ids := r.List()
	out := make([]SourceInfo, 0, len(ids))
	for _, id := range ids {
		p, err := r.Get(id)
		if err != nil {
			continue
		}
		markets := append([]string(nil), p.Markets()...)
		sort.Strings(markets)
		out = append(out, SourceInfo{ID: id, Name: p.Name(), Markets: markets})
	}
	return out
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
