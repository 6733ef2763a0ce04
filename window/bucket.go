package window

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/kwertop/dgimstat/internal/util"
)

// Bucket is a run-length record of exactly 2^Power true events.
// _Begin_ and _End_ are the timestamps of the earliest and the latest event in it.
type Bucket struct {
	Power uint8
	Begin int64
	End   int64
}

func newLeafBucket(timestamp int64) Bucket {
	return Bucket{Power: 0, Begin: timestamp, End: timestamp}
}

// Count returns the number of true events in the bucket
func (b Bucket) Count() uint64 {
	return uint64(1) << b.Power
}

// Span returns the distance between the first and the last event of the bucket
func (b Bucket) Span() int64 {
	return b.End - b.Begin
}

func (b Bucket) String() string {
	return fmt.Sprintf("Bucket[2^%d] count=%d, span=%d (%d..%d)", b.Power, b.Count(), b.Span(), b.Begin, b.End)
}

// MergeBuckets combines two buckets of the same size into one bucket of twice
// the size covering both spans.
func MergeBuckets(a, b Bucket) (Bucket, error) {
	if a.Power != b.Power {
		return Bucket{}, fmt.Errorf("dgimstat: can't merge buckets of sizes 2^%d and 2^%d: %w", a.Power, b.Power, ErrInvariantViolation)
	}
	if a.Power >= util.MaxPower {
		return Bucket{}, fmt.Errorf("dgimstat: merged bucket would exceed size 2^%d: %w", util.MaxPower, ErrInvariantViolation)
	}
	return Bucket{
		Power: a.Power + 1,
		Begin: util.Min(a.Begin, b.Begin),
		End:   util.Max(a.End, b.End),
	}, nil
}

// handle addresses a slot in a bucketArena
type handle int32

const none handle = -1

type slot struct {
	bucket Bucket
	next   handle
}

// bucketArena stores the buckets of one chain. Every live slot is owned by
// exactly one predecessor (or by the counter for the head), which _used_ makes
// checkable: releasing a slot twice is a defect and panics.
type bucketArena struct {
	slots []slot
	free  []handle
	used  *bitset.BitSet
}

func newBucketArena() *bucketArena {
	return &bucketArena{used: bitset.New(0)}
}

func (a *bucketArena) alloc(b Bucket, next handle) handle {
	var h handle
	if n := len(a.free); n > 0 {
		h = a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[h] = slot{bucket: b, next: next}
	} else {
		h = handle(len(a.slots))
		a.slots = append(a.slots, slot{bucket: b, next: next})
	}
	a.used.Set(uint(h))
	return h
}

func (a *bucketArena) release(h handle) {
	if !a.used.Test(uint(h)) {
		panic(fmt.Sprintf("dgimstat: bucket slot %d released twice", h))
	}
	a.used.Clear(uint(h))
	a.slots[h] = slot{next: none}
	a.free = append(a.free, h)
}

// releaseChain releases _h_ and every bucket after it
func (a *bucketArena) releaseChain(h handle) {
	for h != none {
		next := a.slots[h].next
		a.release(h)
		h = next
	}
}

func (a *bucketArena) bucket(h handle) Bucket {
	return a.slots[h].bucket
}

func (a *bucketArena) next(h handle) handle {
	return a.slots[h].next
}

// live returns the number of allocated buckets
func (a *bucketArena) live() int {
	return int(a.used.Count())
}

// prepend links the bucket at _h_ in front of the chain starting at _rest_.
// When _rest_ begins with two buckets of the same size as _h_, a third one
// would appear, so those two are merged first and the merged bucket is
// prepended to the remainder the same way. Like a carry in a binary counter,
// merges can ripple down the whole chain.
func (a *bucketArena) prepend(h, rest handle) error {
	if rest != none {
		second := a.slots[rest].next
		power := a.slots[h].bucket.Power
		if second != none && a.slots[rest].bucket.Power == power && a.slots[second].bucket.Power == power {
			merged, err := MergeBuckets(a.slots[rest].bucket, a.slots[second].bucket)
			if err != nil {
				return err
			}
			remaining := a.slots[second].next
			a.release(rest)
			a.release(second)
			m := a.alloc(merged, none)
			if err := a.prepend(m, remaining); err != nil {
				return err
			}
			a.slots[h].next = m
			return nil
		}
	}
	a.slots[h].next = rest
	return nil
}

// BucketIterator walks the buckets of a WindowCounter from the newest to the
// oldest. It's read-only and can be restarted with Reset. Inserting into the
// counter invalidates the iterator.
type BucketIterator struct {
	arena   *bucketArena
	head    handle
	cursor  handle
	current Bucket
}

// Next advances the iterator and reports whether a bucket is available
func (it *BucketIterator) Next() bool {
	if it.cursor == none {
		return false
	}
	it.current = it.arena.bucket(it.cursor)
	it.cursor = it.arena.next(it.cursor)
	return true
}

// Bucket returns the bucket the iterator currently points at
func (it *BucketIterator) Bucket() Bucket {
	return it.current
}

// Reset moves the iterator back to the newest bucket
func (it *BucketIterator) Reset() {
	it.cursor = it.head
	it.current = Bucket{}
}
