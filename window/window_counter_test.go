package window

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/kwertop/dgimstat/internal/util"
)

func newTestCounter(horizon int64, t *testing.T) *WindowCounter {
	c, err := NewWindowCounter(horizon, "test")
	if err != nil {
		t.Fatalf("counter with horizon %d should be created, got %v", horizon, err)
	}
	return c
}

func checkInvariant(c *WindowCounter, t *testing.T) {
	perPower := make(map[uint8]int)
	var previous uint8
	buckets := c.Buckets()
	for i, b := range buckets {
		if i > 0 && b.Power < previous {
			t.Fatalf("powers should not decrease from newest to oldest, found %d after %d", b.Power, previous)
		}
		if b.Begin > b.End {
			t.Fatalf("bucket %v begins after it ends", b)
		}
		perPower[b.Power]++
		if perPower[b.Power] > 2 {
			t.Fatalf("at most 2 buckets of size 2^%d are allowed, chain: %v", b.Power, buckets)
		}
		previous = b.Power
	}
	if c.Len() != len(buckets) {
		t.Fatalf("arena holds %d buckets but %d are reachable", c.Len(), len(buckets))
	}
}

func TestInvalidHorizon(t *testing.T) {
	for _, horizon := range []int64{0, -1, -100} {
		_, err := NewWindowCounter(horizon, "foo")
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("horizon %d should fail with ErrInvalidConfiguration, got %v", horizon, err)
		}
	}
}

func TestCounterAccessors(t *testing.T) {
	c, _ := NewWindowCounter(42, "ebola")
	if c.Label() != "ebola" {
		t.Errorf("label should be ebola, found %s", c.Label())
	}
	if c.Horizon() != 42 {
		t.Errorf("horizon should be 42, found %d", c.Horizon())
	}
	if c.Clock() != 0 {
		t.Errorf("clock of a new counter should be 0, found %d", c.Clock())
	}
}

func TestConsecutiveOnes(t *testing.T) {
	c := newTestCounter(1000, t)
	for ts := int64(1); ts <= 8; ts++ {
		c.Insert(ts, true)
	}
	buckets := c.Buckets()
	expected := []uint8{0, 0, 1, 2}
	if len(buckets) != len(expected) {
		t.Fatalf("there should be %d buckets, found %v", len(expected), buckets)
	}
	for i := range expected {
		if buckets[i].Power != expected[i] {
			t.Errorf("bucket %d should have size 2^%d, found %v", i, expected[i], buckets[i])
		}
	}
	if buckets[3].Begin != 1 || buckets[3].End != 4 {
		t.Errorf("oldest bucket should span 1..4, found %v", buckets[3])
	}
	c8, _ := c.Count(8)
	if c8 != 8 {
		t.Errorf("count of last 8 should be 8, found %d", c8)
	}
	c4, _ := c.Count(4)
	if c4 < 2 || c4 > 8 {
		t.Errorf("count of last 4 should be between 2 and 8, found %d", c4)
	}
}

func TestCountRangeError(t *testing.T) {
	c := newTestCounter(1000, t)
	c.Insert(1, true)
	_, err := c.Count(1001)
	if !errors.Is(err, ErrRange) {
		t.Errorf("k larger than the horizon should fail with ErrRange, got %v", err)
	}
	if _, err := c.Count(1000); err != nil {
		t.Errorf("k equal to the horizon should be accepted, got %v", err)
	}
}

func TestCountNonPositiveK(t *testing.T) {
	c := newTestCounter(10, t)
	c.Insert(1, true)
	c.Insert(2, true)
	for _, k := range []int64{0, -1, -50} {
		count, err := c.Count(k)
		if err != nil || count != 0 {
			t.Errorf("count for k=%d should be 0 without error, found %d, %v", k, count, err)
		}
	}
}

func TestSingleFalseEvent(t *testing.T) {
	c := newTestCounter(1000, t)
	c.Insert(100, false)
	if c.Len() != 0 {
		t.Errorf("a false event should not create a bucket, found %d", c.Len())
	}
	if c.Clock() != 100 {
		t.Errorf("clock should be 100, found %d", c.Clock())
	}
	count, _ := c.Count(100)
	if count != 0 {
		t.Errorf("count should be 0, found %d", count)
	}
}

func TestMissingTimestamp(t *testing.T) {
	c := newTestCounter(10, t)
	c.Insert(MissingTimestamp, true)
	c.Insert(-7, true)
	if c.Len() != 0 || c.Clock() != 0 {
		t.Errorf("missing timestamps should be dropped, found %d buckets and clock %d", c.Len(), c.Clock())
	}
}

func TestOutOfOrderTimestamp(t *testing.T) {
	c := newTestCounter(100, t)
	c.Insert(10, true)
	c.Insert(5, true)
	if c.Clock() != 10 {
		t.Errorf("clock should stay at 10, found %d", c.Clock())
	}
	for _, b := range c.Buckets() {
		if b.End != 10 {
			t.Errorf("late event should be stamped with the clock, found %v", b)
		}
	}
	count, _ := c.Count(1)
	if count != 2 {
		t.Errorf("count should be 2, found %d", count)
	}
}

func TestBoundedMemory(t *testing.T) {
	horizon := int64(500)
	c := newTestCounter(horizon, t)
	limit := 2 * (util.Log2Ceil(horizon) + 1)
	for ts := int64(1); ts <= 2000; ts++ {
		c.Insert(ts, ts%2 == 0)
		if c.Len() > limit {
			t.Fatalf("bucket count %d exceeds %d at timestamp %d", c.Len(), limit, ts)
		}
	}
}

func TestBoundedMemoryAllOnes(t *testing.T) {
	horizon := int64(1000)
	c := newTestCounter(horizon, t)
	limit := 2 * (util.Log2Ceil(horizon) + 1)
	for ts := int64(1); ts <= 100000; ts++ {
		c.Insert(ts, true)
	}
	if c.Len() > limit {
		t.Errorf("bucket count %d exceeds %d", c.Len(), limit)
	}
}

func TestInvariantPreservation(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	c := newTestCounter(300, t)
	ts := int64(0)
	for i := 0; i < 5000; i++ {
		ts += int64(r.Intn(3))
		c.Insert(ts, r.Intn(3) > 0)
		checkInvariant(c, t)
	}
}

func TestMonotonicClock(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	c := newTestCounter(50, t)
	latest := int64(0)
	for i := 0; i < 2000; i++ {
		ts := int64(r.Intn(10000)) - 100
		if ts < 0 {
			ts = MissingTimestamp
		}
		c.Insert(ts, r.Intn(2) == 0)
		if ts > latest {
			latest = ts
		}
		if c.Clock() != latest {
			t.Fatalf("clock should be %d, found %d", latest, c.Clock())
		}
	}
	checkInvariant(c, t)
}

func TestEvictionCorrectness(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	horizon := int64(64)
	c := newTestCounter(horizon, t)
	ts := int64(0)
	for i := 0; i < 3000; i++ {
		ts += int64(r.Intn(5))
		c.Insert(ts, r.Intn(4) == 0)
		for _, b := range c.Buckets() {
			if b.End < c.Clock()-horizon {
				t.Fatalf("bucket %v is older than the horizon at clock %d", b, c.Clock())
			}
		}
	}
}

func TestStaleHeadEvicted(t *testing.T) {
	c := newTestCounter(100, t)
	c.Insert(1, true)
	c.Insert(2, true)
	c.Insert(5000, false)
	if c.Len() != 0 {
		t.Errorf("all buckets should be evicted, found %v", c.Buckets())
	}
	count, _ := c.Count(100)
	if count != 0 {
		t.Errorf("count should be 0, found %d", count)
	}
}

func TestIdempotentCount(t *testing.T) {
	c := newTestCounter(200, t)
	for ts := int64(1); ts <= 150; ts++ {
		c.Insert(ts, ts%3 != 0)
	}
	for k := int64(1); k <= 200; k++ {
		first, _ := c.Count(k)
		second, _ := c.Count(k)
		if first != second {
			t.Fatalf("count for k=%d changed from %d to %d without inserts", k, first, second)
		}
	}
}

func TestBoundaryInterpolation(t *testing.T) {
	c := newTestCounter(100, t)
	for _, ts := range []int64{10, 20, 30, 40} {
		c.Insert(ts, true)
	}
	// buckets: [40] [30] [10..20]
	count, _ := c.Count(25)
	if count != 3 {
		t.Errorf("count of last 25 should be 3, found %d", count)
	}
	count, _ = c.Count(22)
	if count != 2 {
		t.Errorf("count of last 22 should be 2, found %d", count)
	}
	count, _ = c.Count(30)
	if count != 4 {
		t.Errorf("count of last 30 should be 4, found %d", count)
	}
}

func TestZeroSpanBoundary(t *testing.T) {
	b := Bucket{Power: 2, Begin: 9, End: 9}
	if interpolate(b, 0) != 4 {
		t.Errorf("zero span bucket should be counted whole, found %d", interpolate(b, 0))
	}
}

func testErrorBound(period int64, t *testing.T) {
	horizon := int64(1000)
	c := newTestCounter(horizon, t)
	e, _ := NewExactCounter(horizon, "exact")
	for ts := int64(1); ts <= 3000; ts++ {
		bit := ts%period == 0
		c.Insert(ts, bit)
		e.Insert(ts, bit)
		if ts%250 != 0 {
			continue
		}
		for k := int64(1); k <= horizon; k++ {
			approx, _ := c.Count(k)
			exact, _ := e.Count(k)
			if exact == 0 {
				continue
			}
			diff := float64(approx) - float64(exact)
			if diff < 0 {
				diff = -diff
			}
			if diff > 0.5*float64(exact) {
				t.Fatalf("period %d, clock %d, k=%d: approx %d is too far from exact %d", period, ts, k, approx, exact)
			}
		}
	}
}

func TestErrorBoundAllOnes(t *testing.T) {
	testErrorBound(1, t)
}

func TestErrorBoundEveryOther(t *testing.T) {
	testErrorBound(2, t)
}

func TestErrorBoundEveryThird(t *testing.T) {
	testErrorBound(3, t)
}

func TestErrorBoundEverySeventh(t *testing.T) {
	testErrorBound(7, t)
}

func TestIteratorReset(t *testing.T) {
	c := newTestCounter(100, t)
	for ts := int64(1); ts <= 5; ts++ {
		c.Insert(ts, true)
	}
	it := c.Iterator()
	first := 0
	for it.Next() {
		first++
	}
	it.Reset()
	second := 0
	for it.Next() {
		second++
	}
	if first != 3 || second != 3 {
		t.Errorf("iterator should yield 3 buckets on every pass, found %d and %d", first, second)
	}
	if it.Next() {
		t.Error("exhausted iterator should stay exhausted")
	}
}

func TestWindowCounterEquals(t *testing.T) {
	a := newTestCounter(100, t)
	b := newTestCounter(100, t)
	for ts := int64(1); ts <= 20; ts++ {
		a.Insert(ts, ts%2 == 0)
		b.Insert(ts, ts%2 == 0)
	}
	if !a.Equals(b) {
		t.Error("a and b should be equal")
	}
	b.Insert(21, true)
	if a.Equals(b) {
		t.Error("a and b shouldn't be equal after b moved on")
	}
}

func TestWindowCounterExport(t *testing.T) {
	c, _ := NewWindowCounter(10, "a")
	c.Insert(1, true)
	data, err := c.Export()
	if err != nil {
		t.Fatalf("export should succeed, got %v", err)
	}
	expected := `{"l":"a","n":10,"t":1,"b":[{"p":0,"b":1,"e":1,"c":1}]}`
	if string(data) != expected {
		t.Errorf("exported data should be %s, found %s", expected, string(data))
	}
}

func TestWindowCounterString(t *testing.T) {
	c, _ := NewWindowCounter(10, "a")
	c.Insert(3, true)
	expected := "WindowCounter(a): clock=3, horizon=10\nBucket[2^0] count=1, span=0 (3..3)\n"
	if c.String() != expected {
		t.Errorf("dump should be %q, found %q", expected, c.String())
	}
}
