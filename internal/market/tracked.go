package market

import (
	"fmt"
	"strings"
)

// TrackedMarket is one entry of the configured market list.
type TrackedMarket struct {
	Source string `mapstructure:"exchange" yaml:"exchange" json:"exchange"`
	Market string `mapstructure:"market" yaml:"market" json:"market"`
	Ticker bool   `mapstructure:"ticker" yaml:"ticker" json:"ticker"`
	Graph  bool   `mapstructure:"graph" yaml:"graph" json:"graph"`
	Title  bool   `mapstructure:"title" yaml:"title" json:"title"`
}

func (t TrackedMarket) ID() MarketID {
	return NewMarketID(t.Source, t.Market)
}

// Polled reports whether the ticker cadence should fetch this market. Graph
// markets need ticker samples too, to extend their history between refreshes.
func (t TrackedMarket) Polled() bool {
	return t.Ticker || t.Graph
}

type Direction string

const (
	Above Direction = "above"
	Below Direction = "below"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Above:
		return Above, nil
	case Below:
		return Below, nil
	default:
		return "", fmt.Errorf("unknown alarm direction %q", s)
	}
}

// Alarm is a one-shot price threshold on a market.
type Alarm struct {
	ID        string    `mapstructure:"id" yaml:"id" json:"id"`
	Source    string    `mapstructure:"exchange" yaml:"exchange" json:"exchange"`
	Market    string    `mapstructure:"market" yaml:"market" json:"market"`
	Direction Direction `mapstructure:"direction" yaml:"direction" json:"direction"`
	Threshold float64   `mapstructure:"price" yaml:"price" json:"price"`
}

func (a Alarm) MarketID() MarketID {
	return NewMarketID(a.Source, a.Market)
}

// Triggered compares price against the threshold; both bounds are inclusive.
func (a Alarm) Triggered(price float64) bool {
	switch a.Direction {
	case Above:
		return price >= a.Threshold
	case Below:
		return price <= a.Threshold
	default:
		return false
	}
}
