package window

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// WindowCounter is the DGIM approximation of the number of true events among
// the last k positions of a boolean stream, for any k up to the retention
// horizon. Buckets are chained from the newest to the oldest; for every size
// there are at most two buckets, so the chain never holds more than
// O(log N) buckets.
// _arena_ stores the buckets and _head_ addresses the newest one
type WindowCounter struct {
	AbstractWindowCounter
	arena *bucketArena
	head  handle
}

// NewWindowCounter creates a WindowCounter retaining _horizon_ positions of history.
// It fails with ErrInvalidConfiguration when _horizon_ is smaller than 1.
func NewWindowCounter(horizon int64, label string) (*WindowCounter, error) {
	abstractCounter, err := MakeAbstractWindowCounter(horizon, label)
	if err != nil {
		return nil, err
	}
	return &WindowCounter{*abstractCounter, newBucketArena(), none}, nil
}

// Insert records the event _bit_ at _timestamp_. Missing (negative) timestamps are
// dropped. The clock never moves backward; a true event older than the clock
// is stamped with the clock.
func (c *WindowCounter) Insert(timestamp int64, bit bool) {
	if !c.advance(timestamp) {
		return
	}
	if bit {
		h := c.arena.alloc(newLeafBucket(c.clock), none)
		if err := c.arena.prepend(h, c.head); err != nil {
			panic(err)
		}
		c.head = h
	}
	c.evict()
}

// evict releases every bucket which ended before the retention horizon.
// Buckets are ordered by recency so the stale ones always form a suffix.
func (c *WindowCounter) evict() {
	if c.head == none {
		return
	}
	cutoff := c.clock - c.horizon
	if c.arena.bucket(c.head).End < cutoff {
		c.arena.releaseChain(c.head)
		c.head = none
		return
	}
	for h := c.head; ; {
		next := c.arena.next(h)
		if next == none {
			return
		}
		if c.arena.bucket(next).End < cutoff {
			c.arena.slots[h].next = none
			c.arena.releaseChain(next)
			return
		}
		h = next
	}
}

// Count returns the approximate number of true events among the latest _k_
// positions, that is events with clock - timestamp <= k.
// It returns 0 for _k_ < 1 and fails with ErrRange when _k_ exceeds the horizon.
func (c *WindowCounter) Count(k int64) (uint64, error) {
	ok, err := c.checkWindow(k)
	if !ok {
		return 0, err
	}
	var count uint64
	for h := c.head; h != none; h = c.arena.next(h) {
		b := c.arena.bucket(h)
		if c.clock-b.Begin <= k {
			count += b.Count()
		} else if c.clock-b.End <= k {
			// only the boundary bucket is estimated, nothing older overlaps
			count += interpolate(b, k-(c.clock-b.End))
			break
		}
	}
	return count, nil
}

// interpolate estimates how many of the events of _b_ fall in the last
// _inside_ time units of its span, assuming they're evenly spread.
func interpolate(b Bucket, inside int64) uint64 {
	span := b.Span()
	if span <= 0 {
		return b.Count()
	}
	return uint64(math.Round(float64(b.Count()) * float64(inside) / float64(span)))
}

// Len returns the number of live buckets
func (c *WindowCounter) Len() int {
	return c.arena.live()
}

// Iterator returns a read-only iterator over the buckets, newest first
func (c *WindowCounter) Iterator() *BucketIterator {
	return &BucketIterator{arena: c.arena, head: c.head, cursor: c.head}
}

// Buckets returns a copy of the live buckets, newest first
func (c *WindowCounter) Buckets() []Bucket {
	buckets := make([]Bucket, 0, c.Len())
	for it := c.Iterator(); it.Next(); {
		buckets = append(buckets, it.Bucket())
	}
	return buckets
}

// Equals checks if two WindowCounters hold the same horizon, clock and buckets
func (c *WindowCounter) Equals(d *WindowCounter) bool {
	if c.horizon != d.horizon || c.clock != d.clock {
		return false
	}
	a, b := c.Iterator(), d.Iterator()
	for {
		okA, okB := a.Next(), b.Next()
		if okA != okB {
			return false
		}
		if !okA {
			return true
		}
		if a.Bucket() != b.Bucket() {
			return false
		}
	}
}

func (c *WindowCounter) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "WindowCounter(%s): clock=%d, horizon=%d\n", c.label, c.clock, c.horizon)
	for it := c.Iterator(); it.Next(); {
		sb.WriteString(it.Bucket().String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// internal types used to marshal the diagnostic dump
type bucketJSON struct {
	Power uint8  `json:"p"`
	Begin int64  `json:"b"`
	End   int64  `json:"e"`
	Count uint64 `json:"c"`
}

type windowCounterJSON struct {
	Label   string       `json:"l"`
	Horizon int64        `json:"n"`
	Clock   int64        `json:"t"`
	Buckets []bucketJSON `json:"b"`
}

// Export JSON marshals the diagnostic dump of the WindowCounter
func (c *WindowCounter) Export() ([]byte, error) {
	buckets := make([]bucketJSON, 0, c.Len())
	for it := c.Iterator(); it.Next(); {
		b := it.Bucket()
		buckets = append(buckets, bucketJSON{b.Power, b.Begin, b.End, b.Count()})
	}
	return json.Marshal(windowCounterJSON{c.label, c.horizon, c.clock, buckets})
}
