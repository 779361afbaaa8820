package market

// Candle is one fixed-width bucket of a market's price history. Time is the
// bucket start in unix seconds.
type Candle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	Close float64 `json:"close"`
}

// PointCandle is the degenerate candle appended for a single ticker sample.
func PointCandle(ts int64, price float64) Candle {
	return Candle{Time: ts, Open: price, Close: price}
}

// TickerSample is the result of one successful ticker fetch.
type TickerSample struct {
	Time  int64   `json:"time"`
	Price float64 `json:"price"`
}

// Trade is a raw upstream trade. IDs are assigned monotonically by the source.
type Trade struct {
	ID    int64   `json:"tid"`
	Time  int64   `json:"date"`
	Price float64 `json:"price"`
}

// Window drops candles older than since. The input order is preserved.
func Window(candles []Candle, since int64) []Candle {
	if len(candles) == 0 {
		return candles
	}
	out := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if c.Time < since {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Tail keeps at most n trailing candles.
func Tail(candles []Candle, n int) []Candle {
	if n <= 0 || len(candles) <= n {
		return candles
	}
	out := make([]Candle, n)
	copy(out, candles[len(candles)-n:])
	return out
}
