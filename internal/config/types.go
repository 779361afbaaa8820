package config

import (
	"strings"
	"time"

	"pricewatch/internal/market"
)

// Config is the whole pricewatch configuration file.
type Config struct {
	App AppConfig `mapstructure:"app" yaml:"app"`

	UpdateIntervalSec int    `mapstructure:"update_interval_sec" yaml:"update_interval_sec"`
	GraphIntervalSec  int    `mapstructure:"graph_interval_sec" yaml:"graph_interval_sec"`
	GraphPeriodSec    int    `mapstructure:"graph_period_sec" yaml:"graph_period_sec"`
	GraphRes          int    `mapstructure:"graph_res" yaml:"graph_res"`
	GraphCurrency     string `mapstructure:"graph_currency" yaml:"graph_currency"`
	DarkTheme         bool   `mapstructure:"dark_theme" yaml:"dark_theme"`

	Markets []market.TrackedMarket `mapstructure:"markets" yaml:"markets"`
	Alarms  []market.Alarm         `mapstructure:"alarms" yaml:"alarms"`

	Notify   NotifyConfig            `mapstructure:"notify" yaml:"notify"`
	Currency CurrencyConfig          `mapstructure:"currency" yaml:"currency"`
	Sources  map[string]SourceConfig `mapstructure:"sources" yaml:"sources,omitempty"`
	Backfill BackfillConfig          `mapstructure:"backfill" yaml:"backfill"`
}

type AppConfig struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogPath  string `mapstructure:"log_path" yaml:"log_path"`
	HTTPAddr string `mapstructure:"http_addr" yaml:"http_addr"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`
	ChatID   string `mapstructure:"chat_id" yaml:"chat_id"`
}

// CurrencyConfig configures the exchange-rate service used to denominate
// graphs in graph_currency.
type CurrencyConfig struct {
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint"`
	CachePath    string `mapstructure:"cache_path" yaml:"cache_path"`
	RefreshHours int    `mapstructure:"refresh_hours" yaml:"refresh_hours"`
}

// SourceConfig overrides the upstream endpoint of one provider.
type SourceConfig struct {
	RESTBaseURL    string `mapstructure:"rest_base_url" yaml:"rest_base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	// ProxyURL routes SDK-backed sources through an HTTP proxy.
	ProxyURL string `mapstructure:"proxy_url" yaml:"proxy_url,omitempty"`
}

type BackfillConfig struct {
	TIDStep     int     `mapstructure:"tid_step" yaml:"tid_step"`
	MaxPages    int     `mapstructure:"max_pages" yaml:"max_pages"`
	PagesPerSec float64 `mapstructure:"pages_per_sec" yaml:"pages_per_sec"`
}

func (c Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalSec) * time.Second
}

func (c Config) GraphInterval() time.Duration {
	return time.Duration(c.GraphIntervalSec) * time.Second
}

// Source returns the overrides for one source id, if any.
func (c Config) Source(id string) SourceConfig {
	if len(c.Sources) == 0 {
		return SourceConfig{}
	}
	return c.Sources[strings.ToLower(strings.TrimSpace(id))]
}

func (s SourceConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// AlarmsFor returns the alarms attached to one market, in file order.
func (c Config) AlarmsFor(id market.MarketID) []market.Alarm {
	var out []market.Alarm
	for _, a := range c.Alarms {
		if a.MarketID() == id {
			out = append(out, a)
		}
	}
	return out
}

// Clone deep-copies the slices and maps so snapshots can be shared freely.
func (c Config) Clone() Config {
	out := c
	if c.Markets != nil {
		out.Markets = append([]market.TrackedMarket(nil), c.Markets...)
	}
	if c.Alarms != nil {
		out.Alarms = append([]market.Alarm(nil), c.Alarms...)
	}
	if c.Sources != nil {
		out.Sources = make(map[string]SourceConfig, len(c.Sources))
		for k, v := range c.Sources {
			out.Sources[k] = v
		}
	}
	return out
}

// keySet tracks the key paths explicitly present in the file.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes how one field gets its default value.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
