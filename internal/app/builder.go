package app

import (
	"fmt"
	"time"

	"pricewatch/internal/alarm"
	"pricewatch/internal/config"
	"pricewatch/internal/currency"
	"pricewatch/internal/engine"
	"pricewatch/internal/gateway"
	"pricewatch/internal/gateway/notifier"
	"pricewatch/internal/logger"
	"pricewatch/internal/presentation"
	"pricewatch/internal/store"
	statushttp "pricewatch/internal/transport/http/status"
)

const alarmQueueSize = 64

type AppBuilder struct {
	store *config.Store

	registryFn func(config.Config) *gateway.Registry
	currencyFn func(config.CurrencyConfig) *currency.Service
	textFn     func(config.NotifyConfig) notifier.TextNotifier
	httpFn     func(config.AppConfig, statushttp.SourceLister, statushttp.BoardReader, statushttp.ConfigStore) (*statushttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

// WithRegistry replaces the default source registry.
func WithRegistry(fn func(config.Config) *gateway.Registry) AppBuilderOption {
	return func(b *AppBuilder) { b.registryFn = fn }
}

// WithoutHTTP disables the status API.
func WithoutHTTP() AppBuilderOption {
	return func(b *AppBuilder) {
		b.httpFn = func(config.AppConfig, statushttp.SourceLister, statushttp.BoardReader, statushttp.ConfigStore) (*statushttp.Server, error) {
			return nil, nil
		}
	}
}

func NewAppBuilder(store *config.Store, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		store:      store,
		registryFn: gateway.NewDefaultRegistry,
		currencyFn: buildCurrency,
		textFn:     buildTextNotifier,
		httpFn:     buildStatusHTTP,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if b.store == nil {
		return nil, fmt.Errorf("nil config store")
	}
	cfg := b.store.Snapshot().Config

	registry := b.registryFn(cfg)
	rates := b.currencyFn(cfg.Currency)
	board := presentation.NewBoard()
	dispatcher := presentation.NewDispatcher(board)

	sender := notifier.NewAlarmSender(b.textFn(cfg.Notify), currency.FormatPrice)
	queue := notifier.NewQueue(sender, alarmQueueSize)
	evaluator := alarm.NewEvaluator(b.store, queue)

	eng := engine.New(engine.Options{
		Providers: registry,
		Config:    b.store,
		Alarms:    evaluator,
		Converter: rates,
		Sink:      dispatcher,
		State:     store.NewStateStore(),
	})

	srv, err := b.httpFn(cfg.App, registry, board, b.store)
	if err != nil {
		return nil, err
	}

	return &App{
		store:      b.store,
		engine:     eng,
		dispatcher: dispatcher,
		board:      board,
		alarms:     queue,
		http:       srv,
		Summary:    newStartupSummary(cfg, registry.List(), srv),
	}, nil
}

func buildCurrency(cfg config.CurrencyConfig) *currency.Service {
	return currency.NewService(currency.Options{
		Endpoint:  cfg.Endpoint,
		CachePath: cfg.CachePath,
		Refresh:   time.Duration(cfg.RefreshHours) * time.Hour,
	})
}

func buildTextNotifier(cfg config.NotifyConfig) notifier.TextNotifier {
	if !cfg.Telegram.Enabled {
		logger.Infof("telegram disabled, alarms go to the log")
		return notifier.Log{}
	}
	return notifier.Multi{notifier.Log{}, notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)}
}

func buildStatusHTTP(cfg config.AppConfig, sources statushttp.SourceLister, board statushttp.BoardReader, store statushttp.ConfigStore) (*statushttp.Server, error) {
	return statushttp.NewServer(statushttp.ServerConfig{
		Addr:    cfg.HTTPAddr,
		Sources: sources,
		Board:   board,
		Config:  store,
	})
}
