package market

import "sort"

// StepFor returns the bucket width used by every provider:
// max(1, floor(period/resolution)).
func StepFor(periodSec int64, resolution int) int64 {
	if resolution <= 0 {
		resolution = 1
	}
	step := periodSec / int64(resolution)
	if step < 1 {
		step = 1
	}
	return step
}

// BucketStart floors ts to a multiple of step.
func BucketStart(ts, step int64) int64 {
	if step <= 1 {
		return ts
	}
	b := ts - ts%step
	if ts < 0 && ts%step != 0 {
		b -= step
	}
	return b
}

// Aggregate partitions trades into contiguous candles of width step.
//
// A populated bucket opens at its first trade and closes at its last. Empty
// buckets between two populated ones repeat the previous close. Empty buckets
// before the first trade are omitted: the sequence starts at the first
// populated bucket.
func Aggregate(trades []Trade, step int64) []Candle {
	if len(trades) == 0 {
		return nil
	}
	if step < 1 {
		step = 1
	}
	sorted := make([]Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	out := make([]Candle, 0, 16)
	for _, t := range sorted {
		key := BucketStart(t.Time, step)
		n := len(out)
		if n > 0 && out[n-1].Time == key {
			out[n-1].Close = t.Price
			continue
		}
		if n > 0 {
			out = fillGap(out, key, step)
		}
		out = append(out, Candle{Time: key, Open: t.Price, Close: t.Price})
	}
	return out
}

// Rebucket merges finer-grained candles into buckets of width step using the
// same rules as Aggregate.
func Rebucket(candles []Candle, step int64) []Candle {
	if len(candles) == 0 {
		return nil
	}
	if step < 1 {
		step = 1
	}
	sorted := make([]Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	out := make([]Candle, 0, len(sorted))
	for _, c := range sorted {
		key := BucketStart(c.Time, step)
		n := len(out)
		if n > 0 && out[n-1].Time == key {
			out[n-1].Close = c.Close
			continue
		}
		if n > 0 {
			out = fillGap(out, key, step)
		}
		out = append(out, Candle{Time: key, Open: c.Open, Close: c.Close})
	}
	return out
}

// fillGap appends carry-forward candles for every empty bucket strictly
// between the last candle of out and next.
func fillGap(out []Candle, next, step int64) []Candle {
	prev := out[len(out)-1]
	for ts := prev.Time + step; ts < next; ts += step {
		out = append(out, Candle{Time: ts, Open: prev.Close, Close: prev.Close})
	}
	return out
}

// Shape windows candles to [now-period, now], re-buckets them with the shared
// step convention and keeps at most resolution buckets.
func Shape(candles []Candle, now, periodSec int64, resolution int) []Candle {
	step := StepFor(periodSec, resolution)
	out := Rebucket(Window(candles, now-periodSec), step)
	return Tail(out, resolution)
}

// CandlesFromTrades aggregates the trades that fall inside [now-period, now]
// and keeps at most resolution buckets.
func CandlesFromTrades(trades []Trade, now, periodSec int64, resolution int) []Candle {
	since := now - periodSec
	in := make([]Trade, 0, len(trades))
	for _, t := range trades {
		if t.Time < since || t.Time > now {
			continue
		}
		in = append(in, t)
	}
	return Tail(Aggregate(in, StepFor(periodSec, resolution)), resolution)
}
