// Package currency converts prices between fiat currencies using a
// fixer-style daily rate table.
package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"pricewatch/internal/logger"
	"pricewatch/internal/pkg/circuit"
)

const (
	defaultEndpoint = "https://api.fixer.io/latest"
	defaultRefresh  = 24 * time.Hour
	breakerFailures = 3
	breakerCooldown = 5 * time.Minute
)

// ErrUnavailable is returned when no rate table could be obtained.
var ErrUnavailable = errors.New("currency rates unavailable")

// Rates is the cached rate table. Every rate is relative to Base.
type Rates struct {
	Base      string             `json:"base"`
	Date      string             `json:"date,omitempty"`
	Rates     map[string]float64 `json:"rates"`
	FetchedAt time.Time          `json:"fetched_at"`
}

type Options struct {
	Endpoint  string
	CachePath string
	Refresh   time.Duration
	Client    *http.Client
}

type Service struct {
	endpoint  string
	cachePath string
	refresh   time.Duration
	client    *http.Client
	nowFn     func() time.Time

	mu      sync.RWMutex
	rates   *Rates
	group   singleflight.Group
	breaker *circuit.Breaker
}

func NewService(opts Options) *Service {
	if strings.TrimSpace(opts.Endpoint) == "" {
		opts.Endpoint = defaultEndpoint
	}
	if opts.Refresh <= 0 {
		opts.Refresh = defaultRefresh
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Service{
		endpoint:  opts.Endpoint,
		cachePath: opts.CachePath,
		refresh:   opts.Refresh,
		client:    opts.Client,
		nowFn:     time.Now,
		breaker:   circuit.New("currency", breakerFailures, breakerCooldown),
	}
}

// Convert re-denominates amount. Identical currencies never touch the
// network.
func (s *Service) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	from = normalize(from)
	to = normalize(to)
	if from == to {
		return amount, nil
	}
	rates, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	out, err := rates.convert(decimal.NewFromFloat(amount), from, to)
	if err != nil {
		return 0, err
	}
	return out.InexactFloat64(), nil
}

// List returns the known currency codes, base first.
func (s *Service) List(ctx context.Context) ([]string, error) {
	rates, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(rates.Rates))
	for code := range rates.Rates {
		if code != rates.Base {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return append([]string{rates.Base}, codes...), nil
}

// Current returns the cached table without fetching.
func (s *Service) Current() (Rates, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rates == nil {
		return Rates{}, false
	}
	return *s.rates, true
}

func (r *Rates) convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from != r.Base {
		rate, ok := r.Rates[from]
		if !ok || rate == 0 {
			return decimal.Zero, fmt.Errorf("unknown currency %q", from)
		}
		amount = amount.Div(decimal.NewFromFloat(rate))
	}
	if to != r.Base {
		rate, ok := r.Rates[to]
		if !ok {
			return decimal.Zero, fmt.Errorf("unknown currency %q", to)
		}
		amount = amount.Mul(decimal.NewFromFloat(rate))
	}
	return amount, nil
}

func (s *Service) fresh(r *Rates) bool {
	return r != nil && s.nowFn().Sub(r.FetchedAt) < s.refresh
}

func (s *Service) load(ctx context.Context) (*Rates, error) {
	s.mu.RLock()
	cur := s.rates
	s.mu.RUnlock()
	if s.fresh(cur) {
		return cur, nil
	}
	v, err, _ := s.group.Do("rates", func() (any, error) {
		return s.refreshRates(ctx)
	})
	if err != nil {
		if cur != nil {
			logger.Warnf("currency: using stale rates from %s: %v", cur.FetchedAt.Format(time.RFC3339), err)
			return cur, nil
		}
		return nil, err
	}
	return v.(*Rates), nil
}

func (s *Service) refreshRates(ctx context.Context) (*Rates, error) {
	s.mu.RLock()
	cur := s.rates
	s.mu.RUnlock()
	if cur == nil {
		if cached, err := s.readCache(); err == nil {
			cur = cached
			s.store(cached)
		}
	}
	if s.fresh(cur) {
		return cur, nil
	}
	var rates *Rates
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		rates, err = s.fetch(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.store(rates)
	if err := s.writeCache(rates); err != nil {
		logger.Warnf("currency: write cache failed: %v", err)
	}
	return rates, nil
}

func (s *Service) store(r *Rates) {
	s.mu.Lock()
	s.rates = r
	s.mu.Unlock()
}

func (s *Service) fetch(ctx context.Context) (*Rates, error) {
	logger.Infof("currency: fetching exchange rates from %s", s.endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return parseRates(body, s.nowFn())
}

func parseRates(body []byte, now time.Time) (*Rates, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid rates payload")
	}
	doc := gjson.ParseBytes(body)
	base := normalize(doc.Get("base").String())
	if base == "" {
		return nil, fmt.Errorf("rates payload missing base")
	}
	rates := &Rates{
		Base:      base,
		Date:      doc.Get("date").String(),
		Rates:     make(map[string]float64),
		FetchedAt: now,
	}
	doc.Get("rates").ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Number && value.Float() > 0 {
			rates.Rates[normalize(key.String())] = value.Float()
		}
		return true
	})
	if len(rates.Rates) == 0 {
		return nil, fmt.Errorf("rates payload has no rates")
	}
	return rates, nil
}

func (s *Service) readCache() (*Rates, error) {
	if s.cachePath == "" {
		return nil, os.ErrNotExist
	}
	raw, err := os.ReadFile(s.cachePath)
	if err != nil {
		return nil, err
	}
	var r Rates
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	if r.Base == "" || len(r.Rates) == 0 {
		return nil, fmt.Errorf("currency cache %s is empty", s.cachePath)
	}
	return &r, nil
}

func (s *Service) writeCache(r *Rates) error {
	if s.cachePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.cachePath), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.cachePath, raw, 0o644)
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
