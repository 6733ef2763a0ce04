package window

import (
	"sort"
)

// ExactCounter stores the timestamp of every true event and counts them
// exactly. It applies the same clock and window rules as WindowCounter and is
// used to measure its error. Memory grows with the stream.
type ExactCounter struct {
	AbstractWindowCounter
	ones   []int64
	sorted bool
}

// NewExactCounter creates an ExactCounter with the same validation as NewWindowCounter
func NewExactCounter(horizon int64, label string) (*ExactCounter, error) {
	abstractCounter, err := MakeAbstractWindowCounter(horizon, label)
	if err != nil {
		return nil, err
	}
	return &ExactCounter{AbstractWindowCounter: *abstractCounter, sorted: true}, nil
}

// Insert records the event _bit_ at _timestamp_
func (e *ExactCounter) Insert(timestamp int64, bit bool) {
	if !e.advance(timestamp) || !bit {
		return
	}
	if n := len(e.ones); n > 0 && timestamp < e.ones[n-1] {
		e.sorted = false
	}
	e.ones = append(e.ones, timestamp)
}

// Count returns the number of true events with clock - timestamp <= _k_
func (e *ExactCounter) Count(k int64) (uint64, error) {
	ok, err := e.checkWindow(k)
	if !ok {
		return 0, err
	}
	if !e.sorted {
		sort.Slice(e.ones, func(i, j int) bool { return e.ones[i] < e.ones[j] })
		e.sorted = true
	}
	first := sort.Search(len(e.ones), func(i int) bool { return e.clock-e.ones[i] <= k })
	return uint64(len(e.ones) - first), nil
}

// Len returns the number of stored true events
func (e *ExactCounter) Len() int {
	return len(e.ones)
}
