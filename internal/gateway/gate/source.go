// Package gate reads gate.io USDT-settled contract prices through the
// official gateapi SDK. USD markets are served by their USDT contract.
package gate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pricewatch/internal/logger"
	"pricewatch/internal/market"
	symbolpkg "pricewatch/internal/pkg/symbol"
	"pricewatch/internal/scheduler"

	"github.com/antihax/optional"
	gateapi "github.com/gateio/gateapi-go/v7"
)

const (
	ID                  = "gate.io"
	gateSettle          = "usdt"
	gateMaxHistoryLimit = 2000
	defaultGateREST     = "https://api.gateio.ws/api/v4"
)

var intervals = []string{"10s", "1m", "5m", "15m", "30m", "1h", "4h", "8h", "1d", "7d"}

type Source struct {
	cfg   Config
	rest  *gateapi.APIClient
	nowFn func() time.Time
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()

	restClient, err := newRESTClient(final)
	if err != nil {
		return nil, err
	}

	return &Source{
		cfg:   final,
		rest:  restClient,
		nowFn: time.Now,
	}, nil
}

func newRESTClient(cfg Config) (*gateapi.APIClient, error) {
	conf := gateapi.NewConfiguration()
	conf.BasePath = strings.TrimSpace(cfg.RESTBaseURL)
	if conf.BasePath == "" {
		conf.BasePath = defaultGateREST
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	if cfg.ProxyEnabled && cfg.RESTProxyURL != "" {
		proxyURL, err := url.Parse(cfg.RESTProxyURL)
		if err != nil {
			return nil, &market.ConfigurationError{Field: "sources.gate.io.proxy_url", Value: cfg.RESTProxyURL, Reason: err.Error()}
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	conf.HTTPClient = httpClient
	return gateapi.NewAPIClient(conf), nil
}

func (s *Source) Name() string { return "Gate.io" }

func (s *Source) Markets() []string { return []string{"BTCUSD", "ETHUSD"} }

func (s *Source) Ticker(ctx context.Context, code string) (float64, error) {
	contract := symbolpkg.Gate.ToExchange(code)
	tickers, _, err := s.rest.FuturesApi.ListFuturesTickers(ctx, gateSettle, &gateapi.ListFuturesTickersOpts{
		Contract: optional.NewString(contract),
	})
	if err != nil {
		return 0, fetchError("ticker", code, err)
	}
	for _, t := range tickers {
		if t.Contract != contract {
			continue
		}
		if price := parseFloat(t.Last); price > 0 {
			return price, nil
		}
	}
	return 0, &market.MalformedResponseError{Source: ID, Op: "ticker", Reason: "no ticker for " + contract}
}

func (s *Source) History(ctx context.Context, code string, periodSec int64, resolution int) ([]market.Candle, error) {
	now := s.nowFn().Unix()
	step := market.StepFor(periodSec, resolution)
	interval := scheduler.PickInterval(time.Duration(step)*time.Second, intervals)
	contract := symbolpkg.Gate.ToExchange(code)

	opts := &gateapi.ListFuturesCandlesticksOpts{
		From:     optional.NewInt64(now - periodSec),
		To:       optional.NewInt64(now),
		Interval: optional.NewString(interval),
	}
	kls, _, err := s.rest.FuturesApi.ListFuturesCandlesticks(ctx, gateSettle, contract, opts)
	if err != nil {
		logger.Warnf("[gate] fetch kline failed %s %s: %v", contract, interval, err)
		return nil, fetchError("candlesticks", code, err)
	}
	if len(kls) > gateMaxHistoryLimit {
		kls = kls[len(kls)-gateMaxHistoryLimit:]
	}

	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		out = append(out, market.Candle{
			Time:  int64(kl.T),
			Open:  parseFloat(kl.O),
			Close: parseFloat(kl.C),
		})
	}
	return market.Shape(out, now, periodSec, resolution), nil
}

func fetchError(op, code string, err error) error {
	return &market.FetchError{Source: ID, Op: op, Market: code, Err: err}
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
