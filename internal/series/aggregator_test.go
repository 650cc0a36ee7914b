package series

import (
	"math/rand"
	"sync"
	"testing"
	"time"
)

func TestApplySameTimestampAccumulates(t *testing.T) {
	a := New()
	ts := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	a.Apply(1, ts, 3)
	a.Apply(1, ts, 2)
	a.Apply(1, ts, 5)

	daily := a.Daily(1)
	if len(daily) != 1 {
		t.Fatalf("expected 1 point, got %d", len(daily))
	}
	if daily[0].Quantity != 10 {
		t.Fatalf("expected quantity 10, got %d", daily[0].Quantity)
	}
}

func TestDailyResamplesAndSorts(t *testing.T) {
	a := New()
	d1 := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	d0morning := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	d0evening := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	a.Apply(7, d1, 4)
	a.Apply(7, d0morning, 1)
	a.Apply(7, d0evening, 2)

	daily := a.Daily(7)
	if len(daily) != 2 {
		t.Fatalf("expected 2 days, got %d", len(daily))
	}
	if !daily[0].Day.Before(daily[1].Day) {
		t.Fatalf("days not sorted: %v, %v", daily[0].Day, daily[1].Day)
	}
	if daily[0].Quantity != 3 || daily[1].Quantity != 4 {
		t.Fatalf("unexpected buckets: %+v", daily)
	}
}

func TestApplyOrderIndependent(t *testing.T) {
	type ev struct {
		ts  time.Time
		qty int
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := make([]ev, 0, 30)
	for i := 0; i < 30; i++ {
		events = append(events, ev{ts: base.Add(time.Duration(i%5) * 12 * time.Hour), qty: i + 1})
	}

	a := New()
	for _, e := range events {
		a.Apply(1, e.ts, e.qty)
	}
	want := a.Daily(1)

	b := New()
	r := rand.New(rand.NewSource(42))
	for _, i := range r.Perm(len(events)) {
		b.Apply(1, events[i].ts, events[i].qty)
	}
	got := b.Daily(1)

	if len(got) != len(want) {
		t.Fatalf("length mismatch: %d vs %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("point %d differs: %+v vs %+v", i, got[i], want[i])
		}
	}
}

func TestConcurrentApply(t *testing.T) {
	a := New()
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				a.Apply(3, ts, 1)
			}
		}()
	}
	wg.Wait()

	daily := a.Daily(3)
	if len(daily) != 1 || daily[0].Quantity != 800 {
		t.Fatalf("expected single point with 800, got %+v", daily)
	}
}

func TestDrop(t *testing.T) {
	a := New()
	a.Apply(9, time.Now().UTC(), 5)
	if len(a.Daily(9)) != 1 {
		t.Fatalf("expected data before drop")
	}
	a.Drop(9)
	if len(a.Daily(9)) != 0 {
		t.Fatalf("expected no data after drop")
	}
}
