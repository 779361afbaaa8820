package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pricewatch/internal/market"
	symbolpkg "pricewatch/internal/pkg/symbol"
	"pricewatch/internal/scheduler"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

const (
	ID              = "binance.com"
	maxHistoryLimit = 1000
)

var intervals = []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "8h", "12h", "1d", "3d", "1w", "1M"}

// Source reads Binance spot prices through the go-binance SDK.
type Source struct {
	cfg    Config
	client *binance.Client
	nowFn  func() time.Time
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := binance.NewClient("", "")
	client.BaseURL = strings.TrimRight(final.RESTBaseURL, "/")
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, &market.ConfigurationError{Field: "sources.binance.com.proxy_url", Value: final.RESTProxyURL, Reason: err.Error()}
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Source{
		cfg:    final,
		client: client,
		nowFn:  time.Now,
	}, nil
}

func (s *Source) Name() string { return "Binance.com" }

func (s *Source) Markets() []string { return []string{"BTCUSD", "ETHUSD", "ETHBTC", "BTCEUR"} }

func (s *Source) Ticker(ctx context.Context, code string) (float64, error) {
	symbol := symbolpkg.Binance.ToExchange(code)
	prices, err := s.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fetchError("ticker", code, err)
	}
	for _, p := range prices {
		if p == nil || p.Symbol != symbol {
			continue
		}
		price := parseFloat(p.Price)
		if price <= 0 {
			break
		}
		return price, nil
	}
	return 0, &market.MalformedResponseError{Source: ID, Op: "ticker", Reason: "no price for " + symbol}
}

func (s *Source) History(ctx context.Context, code string, periodSec int64, resolution int) ([]market.Candle, error) {
	now := s.nowFn().Unix()
	step := market.StepFor(periodSec, resolution)
	interval := scheduler.PickInterval(time.Duration(step)*time.Second, intervals)
	limit := maxHistoryLimit
	if dur, ok := scheduler.ParseIntervalDuration(interval); ok && dur > 0 {
		limit = min(int(time.Duration(periodSec)*time.Second/dur)+1, maxHistoryLimit)
	}
	kls, err := s.client.NewKlinesService().
		Symbol(symbolpkg.Binance.ToExchange(code)).
		Interval(interval).
		StartTime((now - periodSec) * 1000).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fetchError("klines", code, err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			Time:  kl.OpenTime / 1000,
			Open:  parseFloat(kl.Open),
			Close: parseFloat(kl.Close),
		})
	}
	return market.Shape(out, now, periodSec, resolution), nil
}

func fetchError(op, code string, err error) error {
	fe := &market.FetchError{Source: ID, Op: op, Market: code, Err: err}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fe.Status = http.StatusBadRequest
	}
	return fe
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
