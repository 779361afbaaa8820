package symbol

// GateConverter renders BASE_QUOTE pairs; USD markets map to USDT.
type GateConverter struct{}

func (GateConverter) ToExchange(code string) string {
	sym := StableQuote(Parse(code))
	if sym.Base == "" || sym.Quote == "" {
		return ""
	}
	return sym.Base + "_" + sym.Quote
}

func (GateConverter) FromExchange(raw string) string {
	return Parse(raw).Code()
}

func (GateConverter) Format() Format {
	return FormatGate
}

var Gate = GateConverter{}
