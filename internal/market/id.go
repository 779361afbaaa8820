package market

import (
	"fmt"
	"strings"
)

// MarketCodeLen is the length of a market code: two ISO 4217 codes joined.
const MarketCodeLen = 6

// MarketID addresses one tracked market on one source. It is comparable and
// is used directly as a map key.
type MarketID struct {
	Source string `json:"exchange"`
	Market string `json:"market"`
}

func NewMarketID(source, market string) MarketID {
	return MarketID{
		Source: strings.ToLower(strings.TrimSpace(source)),
		Market: strings.ToUpper(strings.TrimSpace(market)),
	}
}

func (id MarketID) String() string {
	return id.Source + ":" + id.Market
}

// Base is the traded currency (first three letters).
func (id MarketID) Base() string {
	if len(id.Market) < 3 {
		return ""
	}
	return id.Market[:3]
}

// Quote is the price currency (last three letters).
func (id MarketID) Quote() string {
	if len(id.Market) < 3 {
		return ""
	}
	return id.Market[len(id.Market)-3:]
}

// Validate reports a ConfigurationError for empty sources or malformed codes.
func (id MarketID) Validate() error {
	if id.Source == "" {
		return &ConfigurationError{Field: "exchange", Value: id.String(), Reason: "source id is empty"}
	}
	if len(id.Market) != MarketCodeLen {
		return &ConfigurationError{
			Field:  "market",
			Value:  id.Market,
			Reason: fmt.Sprintf("market code must have %d letters", MarketCodeLen),
		}
	}
	for _, r := range id.Market {
		if r < 'A' || r > 'Z' {
			return &ConfigurationError{Field: "market", Value: id.Market, Reason: "market code must be letters only"}
		}
	}
	return nil
}
