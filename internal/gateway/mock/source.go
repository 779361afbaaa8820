// Package mock is a synthetic price source: a base price plus two sine waves
// and gaussian noise. It needs no network and is hidden from source lists.
package mock

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"pricewatch/internal/market"
)

const ID = "mock"

type Wave struct {
	Amplitude float64
	Frequency float64 // Hz
}

type Config struct {
	AvgPrice float64
	Noise    float64 // standard deviation
	Waves    []Wave
	Seed     uint64
}

// DefaultConfig is the BTCUSD-like series used when the source is selected
// from configuration.
func DefaultConfig() Config {
	return Config{
		AvgPrice: 4000,
		Noise:    20,
		Waves: []Wave{
			{Amplitude: 300, Frequency: 0.0003},
			{Amplitude: 100, Frequency: 0.0011},
		},
	}
}

type Source struct {
	cfg   Config
	start time.Time
	nowFn func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func New(cfg Config) *Source {
	if cfg.AvgPrice <= 0 {
		cfg.AvgPrice = DefaultConfig().AvgPrice
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Source{
		cfg:   cfg,
		start: time.Now(),
		nowFn: time.Now,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Source) Name() string { return "Mock" }

func (s *Source) Markets() []string { return []string{"BTCUSD"} }

func (s *Source) price(ts time.Time) float64 {
	elapsed := ts.Sub(s.start).Seconds()
	x := s.cfg.AvgPrice
	if s.cfg.Noise > 0 {
		s.mu.Lock()
		x += s.rng.NormFloat64() * s.cfg.Noise
		s.mu.Unlock()
	}
	for _, w := range s.cfg.Waves {
		x += w.Amplitude * math.Sin(2*math.Pi*w.Frequency*elapsed)
	}
	return x
}

func (s *Source) Ticker(ctx context.Context, _ string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.price(s.nowFn()), nil
}

func (s *Source) History(ctx context.Context, _ string, periodSec int64, resolution int) ([]market.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := s.nowFn().Unix()
	step := market.StepFor(periodSec, resolution)
	out := make([]market.Candle, 0, periodSec/step+1)
	for ts := market.BucketStart(stop-periodSec, step); ts <= stop; ts += step {
		if ts < stop-periodSec {
			continue
		}
		out = append(out, market.PointCandle(ts, s.price(time.Unix(ts, 0))))
	}
	return market.Tail(out, resolution), nil
}
