package symbol

import (
	"strings"
)

type Format string

const (
	FormatInternal Format = "internal"
	FormatBinance  Format = "binance"
	FormatGate     Format = "gate"
	FormatBitfinex Format = "bitfinex"
	FormatLower    Format = "lower"
)

// Converter renders an internal six-letter market code the way one exchange
// expects it, and back.
type Converter interface {
	ToExchange(code string) string

	FromExchange(raw string) string

	Format() Format
}

// CodeLen is the length of a base currency or quote currency code.
const CodeLen = 3

type Symbol struct {
	Base  string
	Quote string
}

// Code is the concatenated market code, e.g. BTCUSD.
func (s Symbol) Code() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

func (s Symbol) Internal() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

// Parse accepts BTCUSD, BTC/USD, BTC_USD, btc-usd and the Bitfinex tBTCUSD
// spelling. The quote currency is always the last three letters.
func Parse(s string) Symbol {
	s = strings.TrimSpace(s)
	if len(s) == 2*CodeLen+1 && s[0] == 't' {
		s = s[1:]
	}
	s = strings.ToUpper(s)
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	for _, sep := range []string{"/", "_", "-"} {
		if parts := strings.SplitN(s, sep, 2); len(parts) == 2 {
			return Symbol{
				Base:  strings.TrimSpace(parts[0]),
				Quote: strings.TrimSpace(parts[1]),
			}
		}
	}
	if len(s) <= CodeLen {
		return Symbol{}
	}
	return Symbol{
		Base:  s[:len(s)-CodeLen],
		Quote: s[len(s)-CodeLen:],
	}
}

// Normalize returns the six-letter code, or "" when s is not a market code.
func Normalize(s string) string {
	return Parse(s).Code()
}

func NormalizeList(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm := Normalize(s)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

// Quote returns the quote currency of a market code.
func Quote(code string) string {
	return Parse(code).Quote
}

func IsValid(s string) bool {
	sym := Parse(s)
	return len(sym.Base) == CodeLen && len(sym.Quote) == CodeLen
}

// StableQuote swaps a USD quote for USDT, for venues that only list tether
// pairs.
func StableQuote(s Symbol) Symbol {
	if s.Quote == "USD" {
		s.Quote = "USDT"
	}
	return s
}
