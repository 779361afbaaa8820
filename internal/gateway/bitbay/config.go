package bitbay

import (
	"strings"
	"time"

	"pricewatch/internal/market"
)

const defaultRESTBaseURL = "https://bitbay.net"

type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration

	// Trade backfill tuning.
	TIDStep     int64
	MaxPages    int
	PagesPerSec float64
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = defaultRESTBaseURL
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	if out.TIDStep <= 0 {
		out.TIDStep = market.DefaultTIDStep
	}
	if out.MaxPages <= 0 {
		out.MaxPages = market.DefaultMaxPages
	}
	return out
}
