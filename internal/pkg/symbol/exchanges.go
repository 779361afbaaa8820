package symbol

import "strings"

// BitfinexConverter prefixes trading pairs with "t".
type BitfinexConverter struct{}

func (BitfinexConverter) ToExchange(code string) string {
	norm := Parse(code).Code()
	if norm == "" {
		return ""
	}
	return "t" + norm
}

func (BitfinexConverter) FromExchange(raw string) string {
	return Parse(raw).Code()
}

func (BitfinexConverter) Format() Format {
	return FormatBitfinex
}

// LowerConverter is used by REST paths that embed the lowercase pair (btcusd).
type LowerConverter struct{}

func (LowerConverter) ToExchange(code string) string {
	return strings.ToLower(Parse(code).Code())
}

func (LowerConverter) FromExchange(raw string) string {
	return Parse(raw).Code()
}

func (LowerConverter) Format() Format {
	return FormatLower
}

var (
	Bitfinex = BitfinexConverter{}
	Lower    = LowerConverter{}
)
