package market

import "context"

// Provider is the uniform capability set of one external price source.
type Provider interface {
	// Name is the display name of the source.
	Name() string

	// Markets lists the supported market codes.
	Markets() []string

	// Ticker returns the last traded price. Failures are returned as
	// *FetchError or *MalformedResponseError; the call never retries.
	Ticker(ctx context.Context, market string) (float64, error)

	// History returns ascending candles covering roughly [now-period, now]
	// with at most resolution buckets.
	History(ctx context.Context, market string, periodSec int64, resolution int) ([]Candle, error)
}
