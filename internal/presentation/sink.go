// Package presentation carries engine output to whatever renders it.
package presentation

import "pricewatch/internal/market"

// GraphPoint is one graph sample: seconds relative to now (zero or negative)
// and the close price in the display currency.
type GraphPoint struct {
	Offset int64   `json:"t"`
	Price  float64 `json:"price"`
}

// Sink receives presentation updates. Implementations are only ever called
// from a single goroutine.
type Sink interface {
	SetCurrentPrice(id market.MarketID, formatted string)
	SetGraphData(id market.MarketID, points []GraphPoint)
	RemoveMarket(id market.MarketID)
}

// TitleSink is implemented by sinks that show a headline price.
type TitleSink interface {
	SetTitle(id market.MarketID, formatted string)
}

// GraphPoints converts candles to points relative to now, applying convert
// to every close price.
func GraphPoints(candles []market.Candle, now int64, convert func(float64) float64) []GraphPoint {
	out := make([]GraphPoint, 0, len(candles))
	for _, c := range candles {
		price := c.Close
		if convert != nil {
			price = convert(price)
		}
		out = append(out, GraphPoint{Offset: c.Time - now, Price: price})
	}
	return out
}
