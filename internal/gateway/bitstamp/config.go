package bitstamp

import (
	"strings"
	"time"
)

const defaultRESTBaseURL = "https://www.bitstamp.net"

type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
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
	return out
}
