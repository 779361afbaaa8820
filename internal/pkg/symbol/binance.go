package symbol

// BinanceConverter renders spot symbols; USD markets map to USDT.
type BinanceConverter struct{}

func (BinanceConverter) ToExchange(code string) string {
	return StableQuote(Parse(code)).Code()
}

func (BinanceConverter) FromExchange(raw string) string {
	return Parse(raw).Code()
}

func (BinanceConverter) Format() Format {
	return FormatBinance
}

var Binance = BinanceConverter{}
