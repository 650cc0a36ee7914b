// Package series holds the in-memory per-product sales time series that the
// event consumer folds into and the forecast engine reads from.
package series

import (
	"sort"
	"sync"
	"time"
)

// Point is one resampled calendar-day bucket.
type Point struct {
	Day      time.Time
	Quantity int
}

// Aggregator maps productID -> exact timestamp (unix seconds, UTC) -> summed
// quantity. State is volatile; Rebuild reloads it from durable history at
// startup. One mutex serializes the consumer goroutine and request readers.
type Aggregator struct {
	mu sync.Mutex
	m  map[uint]map[int64]int
}

func New() *Aggregator {
	return &Aggregator{m: make(map[uint]map[int64]int)}
}

// Apply folds quantity into the series for productID. Two events at the same
// exact timestamp accumulate, they never overwrite.
func (a *Aggregator) Apply(productID uint, ts time.Time, quantity int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.m[productID]
	if !ok {
		s = make(map[int64]int)
		a.m[productID] = s
	}
	s[ts.UTC().Unix()] += quantity
}

// Daily resamples the series to calendar-day (UTC) buckets, sorted ascending.
// Only days with at least one entry are returned; callers densify gaps.
func (a *Aggregator) Daily(productID uint) []Point {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.m[productID]
	if !ok {
		return nil
	}
	byDay := make(map[int64]int, len(s))
	for unix, qty := range s {
		day := time.Unix(unix, 0).UTC().Truncate(24 * time.Hour)
		byDay[day.Unix()] += qty
	}
	out := make([]Point, 0, len(byDay))
	for dayUnix, qty := range byDay {
		out = append(out, Point{Day: time.Unix(dayUnix, 0).UTC(), Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

// Drop discards the series for a deleted product.
func (a *Aggregator) Drop(productID uint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.m, productID)
}
